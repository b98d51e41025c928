package scrape

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"coachranger/internal/domain"
)

// Vendor-brand tokens stripped from titles. The chassis builder's name is on
// every page and carries no information inside a single-vendor marketplace.
var vendorTokens = regexp.MustCompile(`(?i)\bprevost\b`)

// Converter companies that customize the bare chassis into a coach.
var knownConverters = []string{
	"Marathon", "Liberty", "Millennium", "Featherlite", "Vantare",
	"Emerald", "Newell", "Country Coach", "Angola", "American Heritage",
	"Foretravel", "Newmar", "Entegra", "Tiffin", "Monaco", "Parliament",
	"Executive",
}

// Chassis model codes, longest first so e.g. XLII wins over XL.
var chassisModels = []string{"H3-45", "X3-45", "XLII", "H345", "X345", "XL", "H3", "X3"}

var (
	converterPatterns = compileTokens(knownConverters)
	chassisPatterns   = compileTokens(chassisModels)
)

func compileTokens(tokens []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(tokens))
	for i, t := range tokens {
		patterns[i] = regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\b`)
	}
	return patterns
}

var (
	yearPattern    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	pricePattern   = regexp.MustCompile(`\$\s*([0-9][0-9,]*)`)
	mileagePattern = regexp.MustCompile(`(?i)\b([0-9][0-9,]*)\s*miles\b`)
	lengthPattern  = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:foot|feet|ft)\b`)
	slidesPattern  = regexp.MustCompile(`(?i)\b(\d+)[\s-]*slide`)
	bedPattern     = regexp.MustCompile(`(?i)\b(king|queen|twin)[\s-]*(?:size[d]?)?[\s-]*bed`)
	fuelPattern    = regexp.MustCompile(`(?i)\b(diesel|gasoline)\b`)
	statePattern   = regexp.MustCompile(`(?i)located\s+in\s+([A-Za-z][A-Za-z .]*?(?:,\s*[A-Z]{2})?)\s*(?:[.;!(]|$)`)
	spacePattern   = regexp.MustCompile(`\s+`)
)

const (
	minDescriptionLen = 100
	featuredPriceMin  = 500_000
)

// Text markers for contact boilerplate blocks that must not be mistaken for a
// listing description.
var boilerplateMarkers = []string{"please call", "contact us", "for more information"}

// fieldRule populates one optional specification field from the flattened
// body text. Rules are independent: no rule's failure affects another.
type fieldRule func(l *domain.Listing, body string)

var fieldRules = []fieldRule{
	extractMileage,
	extractLength,
	extractSlides,
	extractBedType,
	extractFuelType,
	extractLocation,
}

// ExtractListing parses one detail-page document into a Listing. Every field
// except Title and SourceID is best-effort: the source HTML is inconsistent
// across listings, so a missing field never blocks the rest of the record.
func ExtractListing(doc *goquery.Document, cand domain.Candidate) *domain.Listing {
	doc.Find("script, style").Remove()
	body := flattenText(doc.Find("body").Text())

	l := &domain.Listing{
		SourceID:  cand.SourceID,
		Title:     extractTitle(doc, cand.SourceID),
		FuelType:  "Diesel", // every coach on this chassis is diesel
		ScrapedAt: time.Now(),
	}

	l.Year = extractYear(l.Title)
	l.Price = extractPrice(body)
	l.IsFeatured = l.Price > featuredPriceMin

	for _, rule := range fieldRules {
		rule(l, body)
	}

	l.Converter = matchToken(knownConverters, converterPatterns, l.Title, body)
	l.ChassisModel = matchToken(chassisModels, chassisPatterns, l.Title, body)
	l.Description = extractDescription(doc, l.Title)

	return l
}

// extractTitle takes the first non-empty of: the bold child of a heading, the
// document title, the sourceId itself. Vendor tokens are then stripped.
func extractTitle(doc *goquery.Document, sourceID string) string {
	title := flattenText(doc.Find("h1 b, h1 strong, h2 b, h2 strong").First().Text())
	if title == "" {
		title = flattenText(doc.Find("title").First().Text())
	}
	if title == "" {
		title = sourceID
	}
	title = vendorTokens.ReplaceAllString(title, " ")
	return flattenText(title)
}

// extractYear finds a plausible vehicle year in the title and falls back to
// the current calendar year. A listing is never blocked on a missing year.
func extractYear(title string) int {
	if m := yearPattern.FindString(title); m != "" {
		year, err := strconv.Atoi(m)
		if err == nil {
			return year
		}
	}
	return time.Now().Year()
}

// extractPrice pulls the first currency-prefixed number out of the body text.
// 0 signals "price on request" to downstream consumers, not a real price.
func extractPrice(body string) int {
	m := pricePattern.FindStringSubmatch(body)
	if m == nil {
		return 0
	}
	price, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", ""))
	if err != nil || price < 0 {
		return 0
	}
	return price
}

func extractMileage(l *domain.Listing, body string) {
	if m := mileagePattern.FindStringSubmatch(body); m != nil {
		if v, err := strconv.Atoi(strings.ReplaceAll(m[1], ",", "")); err == nil {
			l.Mileage = &v
		}
	}
}

func extractLength(l *domain.Listing, body string) {
	if m := lengthPattern.FindStringSubmatch(body); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			l.Length = &v
		}
	}
}

func extractSlides(l *domain.Listing, body string) {
	if m := slidesPattern.FindStringSubmatch(body); m != nil {
		if v, err := strconv.Atoi(m[1]); err == nil {
			l.Slides = &v
		}
	}
}

func extractBedType(l *domain.Listing, body string) {
	if m := bedPattern.FindStringSubmatch(body); m != nil {
		bed := capitalize(m[1])
		l.BedType = &bed
	}
}

func extractFuelType(l *domain.Listing, body string) {
	if m := fuelPattern.FindStringSubmatch(body); m != nil {
		l.FuelType = capitalize(m[1])
	}
}

func extractLocation(l *domain.Listing, body string) {
	if m := statePattern.FindStringSubmatch(body); m != nil {
		loc := strings.TrimSpace(m[1])
		if loc != "" {
			l.Location = &loc
		}
	}
}

// matchToken returns the first known token found whole-word in the title, then
// in the body text.
func matchToken(tokens []string, patterns []*regexp.Regexp, title, body string) *string {
	for _, haystack := range []string{title, body} {
		for i, pattern := range patterns {
			if pattern.MatchString(haystack) {
				t := tokens[i]
				return &t
			}
		}
	}
	return nil
}

// extractDescription picks the first substantial text block that is not
// contact boilerplate, falling back to the title.
func extractDescription(doc *goquery.Document, fallback string) string {
	var desc string
	doc.Find("p, div").EachWithBreak(func(i int, sel *goquery.Selection) bool {
		text := flattenText(sel.Text())
		if len(text) < minDescriptionLen {
			return true
		}
		lower := strings.ToLower(text)
		for _, marker := range boilerplateMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
		desc = text
		return false
	})
	if desc == "" {
		return fallback
	}
	return desc
}

func flattenText(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	s = strings.ToLower(s)
	return strings.ToUpper(s[:1]) + s[1:]
}
