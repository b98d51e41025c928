package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"coachranger/internal/domain"
)

// PostgresStore handles interactions with the PostgreSQL database.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(connStr string) (*PostgresStore, error) {
	db, err := pgxpool.New(context.Background(), connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// ExistsBySourceID reports whether a listing with this natural key has
// already been ingested.
func (s *PostgresStore) ExistsBySourceID(ctx context.Context, sourceID string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM rv_listings WHERE source_id = $1)`,
		sourceID,
	).Scan(&exists)
	return exists, err
}

// SaveListing writes one listing and its photo set within a single
// transaction. The listing row is upserted on source_id; the image set is
// fully replaced, never merged. Any failure rolls back the whole write.
func (s *PostgresStore) SaveListing(ctx context.Context, l *domain.Listing) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	var listingID int
	err = tx.QueryRow(ctx,
		`INSERT INTO rv_listings
		   (source_id, title, description, price, year, converter, chassis_model,
		    mileage, length, slides, bed_type, fuel_type, location, is_featured,
		    manufacturer_id, type_id, seller_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (source_id) DO UPDATE SET
		   price = EXCLUDED.price, updated_at = NOW()
		 RETURNING id`,
		l.SourceID, l.Title, l.Description, l.Price, l.Year, l.Converter, l.ChassisModel,
		l.Mileage, l.Length, l.Slides, l.BedType, l.FuelType, l.Location, l.IsFeatured,
		domain.DefaultManufacturerID, domain.DefaultTypeID, domain.DefaultSellerID,
	).Scan(&listingID)
	if err != nil {
		return 0, err
	}

	// Replace the image set wholesale. The delete is normally a no-op on
	// first insert.
	if _, err := tx.Exec(ctx, `DELETE FROM rv_images WHERE listing_id = $1`, listingID); err != nil {
		return 0, err
	}

	if len(l.Photos) > 0 {
		batch := &pgx.Batch{}
		for pos, photo := range l.Photos {
			batch.Queue(`INSERT INTO rv_images (listing_id, image_url, is_primary, position)
			             VALUES ($1, $2, $3, $4)`,
				listingID, photo.URL, photo.IsPrimary, pos)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return listingID, nil
}

// GetStatusBySourceID retrieves the persisted state of a listing.
func (s *PostgresStore) GetStatusBySourceID(ctx context.Context, sourceID string) (*domain.ListingStatus, error) {
	var status domain.ListingStatus
	err := s.db.QueryRow(ctx,
		`SELECT l.source_id, l.title, l.price, l.year,
		        (SELECT COUNT(*) FROM rv_images i WHERE i.listing_id = l.id),
		        l.updated_at
		 FROM rv_listings l WHERE l.source_id = $1`,
		sourceID,
	).Scan(&status.SourceID, &status.Title, &status.Price, &status.Year, &status.Photos, &status.UpdatedAt)

	if err == pgx.ErrNoRows {
		return nil, fmt.Errorf("not_found")
	}
	return &status, err
}
