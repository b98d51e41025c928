package scrape

import (
	"bytes"
	"context"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"coachranger/internal/domain"
)

// Keywords that mark an anchor as something other than a coach listing:
// category and pagination pages, plus listing types the marketplace does
// not carry (trailers, haulers and the like).
var excludedKeywords = []string{
	"trailer",
	"hauler",
	"stacker",
	"truck",
	"category",
	"page",
}

// IndexScanner fetches the listing index page and enumerates candidate
// detail-page links.
type IndexScanner struct {
	fetcher       *Fetcher
	indexURL      string
	detailBaseURL string
}

func NewIndexScanner(f *Fetcher, indexURL, detailBaseURL string) *IndexScanner {
	return &IndexScanner{
		fetcher:       f,
		indexURL:      indexURL,
		detailBaseURL: detailBaseURL,
	}
}

// Discover returns the deduplicated, ordered candidates found on the index
// page. A fetch or parse failure here aborts the entire run: there is nothing
// to fan out over without an index.
func (s *IndexScanner) Discover(ctx context.Context) ([]domain.Candidate, error) {
	body, err := s.fetcher.Get(ctx, s.indexURL)
	if err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &domain.ParseError{URL: s.indexURL, Err: err}
	}

	return FilterLinks(doc, s.detailBaseURL), nil
}

// FilterLinks selects listing-page anchors from an index document, excludes
// non-listing links, resolves each href to an absolute URL and derives the
// sourceId. Order is preserved; duplicates by sourceId are dropped.
func FilterLinks(doc *goquery.Document, detailBaseURL string) []domain.Candidate {
	var candidates []domain.Candidate
	seen := make(map[string]struct{})

	doc.Find("a[href]").Each(func(i int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if !strings.HasSuffix(strings.ToLower(href), ".html") {
			return
		}
		if isExcluded(href) {
			return
		}

		abs := ResolveURL(href, detailBaseURL)
		if abs == "" {
			return
		}

		id := SourceID(abs)
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}

		candidates = append(candidates, domain.Candidate{
			Href:     href,
			URL:      abs,
			SourceID: id,
		})
	})

	return candidates
}

func isExcluded(href string) bool {
	lower := strings.ToLower(href)
	for _, kw := range excludedKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// ResolveURL turns an anchor or image href into an absolute URL. Three cases:
// already absolute, root-relative (resolved against the base host), or
// path-relative (resolved against the detail subdirectory).
func ResolveURL(href, detailBaseURL string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}

	base, err := url.Parse(detailBaseURL)
	if err != nil {
		return ""
	}
	if strings.HasPrefix(href, "/") {
		return base.Scheme + "://" + base.Host + href
	}
	return strings.TrimRight(detailBaseURL, "/") + "/" + href
}

// SourceID derives the natural deduplication key for a listing URL: the final
// path segment, extension stripped, lowercased. It must be stable across runs
// for the same physical listing.
func SourceID(absURL string) string {
	u, err := url.Parse(absURL)
	if err != nil {
		return ""
	}
	segment := path.Base(u.Path)
	if segment == "." || segment == "/" {
		return ""
	}
	segment = strings.TrimSuffix(segment, path.Ext(segment))
	return strings.ToLower(segment)
}
