// Package extract pulls structured data out of rendered page HTML.
// It operates on static snapshots, so everything here is testable
// without a browser.
package extract

import (
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"slidescraper/pkg/errs"
	"slidescraper/pkg/models"
)

// Selectors names the DOM hooks the site currently uses. The card and
// link classes carry CSS-module hashes and change when the site
// redeploys, so they live here rather than inline.
type Selectors struct {
	Section      string
	SectionTitle string
	Card         string
	CardLink     string
	CardTitle    string
	ShowMore     string
	SlideImage   string
}

// DefaultSelectors returns the selector set for the current site markup.
func DefaultSelectors() Selectors {
	return Selectors{
		Section:      "section",
		SectionTitle: "h2",
		Card:         ".SlideshowCard_root__pD8t4",
		CardLink:     "a.SlideshowCardLink_root__p8KI7",
		CardTitle:    ".slideshow-title",
		ShowMore:     "button.ShowMoreButton_root__oAN_0",
		SlideImage:   ".vertical-slide-image",
	}
}

const (
	minTitleLength = 5
	maxTitleLength = 500
)

// titleSelectors is the fallback chain for a presentation page title.
var titleSelectors = []string{
	`h1[data-cy="presentation-title"]`,
	"h1.slideshow-title",
	"h1",
	".presentation-title",
	`[data-testid="presentation-title"]`,
}

// Extractor parses category and presentation pages.
type Extractor struct {
	sel Selectors
}

// New creates an Extractor with the given selectors.
func New(sel Selectors) *Extractor {
	return &Extractor{sel: sel}
}

// NewDefault creates an Extractor with the current site selectors.
func NewDefault() *Extractor {
	return New(DefaultSelectors())
}

func parse(html string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, errs.Wrap(errs.KindParsing, "failed to parse page html", err)
	}
	return doc, nil
}

// FindSection locates the block for section on a category page and
// returns its subtree. A category page without the block is an
// extraction error, not an empty result.
func (e *Extractor) FindSection(html string, section models.Section) (*goquery.Selection, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	pattern := section.Pattern()
	var found *goquery.Selection
	doc.Find(e.sel.Section).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		heading := strings.TrimSpace(s.Find(e.sel.SectionTitle).First().Text())
		if strings.HasPrefix(heading, pattern) {
			found = s
			return false
		}
		return true
	})

	if found == nil {
		return nil, errs.Newf(errs.KindExtraction, "no %q block on page", pattern)
	}
	return found, nil
}

// ExtractListing collects the presentation cards in the section block
// for the given section. Cards missing a link or title are skipped.
// Records come back in document order with SequenceIndex starting at 1.
func (e *Extractor) ExtractListing(html string, section models.Section) ([]models.ListingRecord, int, error) {
	block, err := e.FindSection(html, section)
	if err != nil {
		return nil, 0, err
	}

	var recs []models.ListingRecord
	skipped := 0

	block.Find(e.sel.Card).Each(func(_ int, card *goquery.Selection) {
		href, ok := card.Find(e.sel.CardLink).First().Attr("href")
		if !ok || href == "" {
			skipped++
			return
		}
		title := strings.TrimSpace(card.Find(e.sel.CardTitle).First().Text())

		rec := models.ListingRecord{
			SequenceIndex: len(recs) + 1,
			Title:         title,
			DetailURL:     absoluteURL(href),
		}
		if !validRecord(rec) {
			skipped++
			return
		}
		recs = append(recs, rec)
	})

	return recs, skipped, nil
}

func absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return models.BaseURL + href
	}
	return href
}

func validRecord(rec models.ListingRecord) bool {
	if len(rec.Title) < minTitleLength || len(rec.Title) > maxTitleLength {
		return false
	}
	return strings.Contains(rec.DetailURL, "slideshare.net")
}

// ExtractImages collects the slide images on a presentation page in
// display order, numbered from 1. A page that rendered but holds no
// slide elements yields an empty slice and no error.
func (e *Extractor) ExtractImages(html string) ([]models.SlideImage, error) {
	doc, err := parse(html)
	if err != nil {
		return nil, err
	}

	var images []models.SlideImage
	doc.Find(e.sel.SlideImage).Each(func(_ int, img *goquery.Selection) {
		src := bestSource(img)
		if src == "" {
			return
		}
		images = append(images, models.SlideImage{
			Ordinal:   len(images) + 1,
			SourceURL: src,
		})
	})
	return images, nil
}

// bestSource picks the highest-resolution candidate from srcset,
// falling back to the plain src attribute.
func bestSource(img *goquery.Selection) string {
	if srcset, ok := img.Attr("srcset"); ok && srcset != "" {
		if best := pickLargest(srcset); best != "" {
			return best
		}
	}
	src, _ := img.Attr("src")
	return src
}

// pickLargest parses a srcset value ("url 320w, url 640w, ...") and
// returns the URL with the greatest width descriptor.
func pickLargest(srcset string) string {
	bestURL := ""
	bestWidth := -1

	for _, candidate := range strings.Split(srcset, ",") {
		fields := strings.Fields(strings.TrimSpace(candidate))
		if len(fields) == 0 {
			continue
		}
		url := fields[0]
		width := 0
		if len(fields) > 1 && strings.HasSuffix(fields[1], "w") {
			if n, err := strconv.Atoi(strings.TrimSuffix(fields[1], "w")); err == nil {
				width = n
			}
		}
		if width > bestWidth {
			bestWidth = width
			bestURL = url
		}
	}
	return bestURL
}

// ExtractTitle pulls the presentation title from a detail page, trying
// each known selector in order. Returns empty when none match.
func (e *Extractor) ExtractTitle(html string) (string, error) {
	doc, err := parse(html)
	if err != nil {
		return "", err
	}

	for _, sel := range titleSelectors {
		title := strings.TrimSpace(doc.Find(sel).First().Text())
		if title != "" {
			return title, nil
		}
	}
	return "", nil
}

// HasShowMore reports whether the section block still offers a
// load-more control.
func (e *Extractor) HasShowMore(block *goquery.Selection) bool {
	return block.Find(e.sel.ShowMore).Length() > 0
}
