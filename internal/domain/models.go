package domain

import "time"

// Fallback foreign keys applied to every ingested listing. Mapping converter
// and chassis names to their own rows is left to the storage layer.
const (
	DefaultManufacturerID = 1
	DefaultTypeID         = 1
	DefaultSellerID       = 1
)

// Candidate is one detail-page link discovered on the index page.
type Candidate struct {
	Href     string // raw href as it appeared in the anchor
	URL      string // resolved absolute URL
	SourceID string // normalized natural key, stable across runs
}

// Listing holds the structured data extracted from one detail page.
// Title and SourceID are always set; every other field is best-effort.
type Listing struct {
	SourceID     string
	Title        string
	Description  string
	Price        int // 0 means "price on request"
	Year         int
	Converter    *string
	ChassisModel *string
	Mileage      *int
	Length       *int
	Slides       *int
	BedType      *string
	FuelType     string
	Location     *string
	IsFeatured   bool
	Photos       []Photo
	ScrapedAt    time.Time
}

// Photo is one qualifying image URL for a listing. The first photo of a
// listing carries the primary flag.
type Photo struct {
	URL       string
	IsPrimary bool
}

// RunSummary is the outcome of one ingestion run.
type RunSummary struct {
	Discovered      int       `json:"discovered"`
	Skipped         int       `json:"skipped"`
	Committed       int       `json:"committed"`
	DroppedNoPhotos int       `json:"dropped_no_photos"`
	Failed          int       `json:"failed"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
}

// ListingStatus is the API response for a listing status query.
type ListingStatus struct {
	SourceID  string    `json:"source_id"`
	Title     string    `json:"title"`
	Price     int       `json:"price"`
	Year      int       `json:"year"`
	Photos    int       `json:"photos"`
	UpdatedAt time.Time `json:"updated_at"`
}
