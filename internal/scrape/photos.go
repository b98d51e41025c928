package scrape

import (
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"coachranger/internal/domain"
)

// Listing photos follow the site's filename convention: a jpeg whose name
// leads with the model year or carries the vendor token. Everything else on
// the page is navigation chrome or ad material.
var photoNamePattern = regexp.MustCompile(`(?i)^(?:(?:19|20)\d{2}|.*prevost)`)

// Navigation and ad assets are never listing photos, whatever their name.
var photoBlocklist = []string{"logo", "banner", "icon", "button", "spacer"}

// SelectPhotos collects every image source on a detail page, filters to those
// matching the listing-photo convention, resolves them to absolute URLs,
// deduplicates preserving first-seen order and caps the set at maxPhotos.
// The first photo is flagged primary. An empty result gates the listing out
// of persistence entirely.
func SelectPhotos(doc *goquery.Document, detailBaseURL string, maxPhotos int) []domain.Photo {
	var photos []domain.Photo
	seen := make(map[string]struct{})

	doc.Find("img[src]").Each(func(i int, sel *goquery.Selection) {
		if len(photos) >= maxPhotos {
			return
		}
		src, _ := sel.Attr("src")
		src = strings.TrimSpace(src)
		if !qualifiesAsListingPhoto(src) {
			return
		}

		abs := ResolveURL(src, detailBaseURL)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}

		photos = append(photos, domain.Photo{
			URL:       abs,
			IsPrimary: len(photos) == 0,
		})
	})

	return photos
}

func qualifiesAsListingPhoto(src string) bool {
	if src == "" {
		return false
	}
	name := src
	if u, err := url.Parse(src); err == nil {
		name = u.Path
	}
	name = strings.ToLower(path.Base(name))

	ext := path.Ext(name)
	if ext != ".jpg" && ext != ".jpeg" {
		return false
	}
	for _, blocked := range photoBlocklist {
		if strings.Contains(name, blocked) {
			return false
		}
	}
	return photoNamePattern.MatchString(name)
}
