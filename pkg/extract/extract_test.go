package extract

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slidescraper/pkg/errs"
	"slidescraper/pkg/models"
)

func card(title, href string) string {
	return fmt.Sprintf(`
		<div class="SlideshowCard_root__pD8t4">
			<a class="SlideshowCardLink_root__p8KI7" href=%q>
				<div class="slideshow-title">%s</div>
			</a>
		</div>`, href, title)
}

func categoryPage(heading, cards string) string {
	return fmt.Sprintf(`
		<html><body>
		<section><h2>Editors picks</h2></section>
		<section><h2>%s</h2>%s</section>
		</body></html>`, heading, cards)
}

func TestExtractListingOrder(t *testing.T) {
	html := categoryPage("Most popular in Business",
		card("Alpha presentation", "/u/alpha")+
			card("Bravo presentation", "/u/bravo")+
			card("Charlie presentation", "https://www.slideshare.net/u/charlie"))

	recs, skipped, err := NewDefault().ExtractListing(html, models.SectionPopular)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	require.Len(t, recs, 3)

	assert.Equal(t, models.ListingRecord{
		SequenceIndex: 1,
		Title:         "Alpha presentation",
		DetailURL:     "https://www.slideshare.net/u/alpha",
	}, recs[0])
	assert.Equal(t, "Bravo presentation", recs[1].Title)
	assert.Equal(t, 2, recs[1].SequenceIndex)
	assert.Equal(t, "https://www.slideshare.net/u/charlie", recs[2].DetailURL)
}

func TestExtractListingSkipsInvalidCards(t *testing.T) {
	html := categoryPage("Featured in Design",
		card("Good presentation", "/u/good")+
			card("", "/u/no-title")+ // empty title
			card("abc", "/u/short")+ // too short
			card("Offsite presentation", "https://evil.example.com/x")+ // wrong host
			`<div class="SlideshowCard_root__pD8t4"><div class="slideshow-title">No link here</div></div>`)

	recs, skipped, err := NewDefault().ExtractListing(html, models.SectionFeatured)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Good presentation", recs[0].Title)
	assert.Equal(t, 4, skipped)
	// sequence stays dense after skips
	assert.Equal(t, 1, recs[0].SequenceIndex)
}

func TestExtractListingMissingSection(t *testing.T) {
	html := categoryPage("Most popular in Business", card("A presentation", "/u/a"))

	_, _, err := NewDefault().ExtractListing(html, models.SectionNew)
	require.Error(t, err)
	var e *errs.Error
	require.True(t, errors.As(err, &e))
	assert.Equal(t, errs.KindExtraction, e.Kind)
}

func TestExtractListingEmptySectionIsNotError(t *testing.T) {
	html := categoryPage("New in Technology", "")

	recs, skipped, err := NewDefault().ExtractListing(html, models.SectionNew)
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, skipped)
}

func TestExtractImagesSrcset(t *testing.T) {
	html := `
		<html><body>
		<img class="vertical-slide-image"
			srcset="https://cdn.example.com/s1-320.jpg 320w, https://cdn.example.com/s1-2048.jpg 2048w, https://cdn.example.com/s1-640.jpg 640w"
			src="https://cdn.example.com/s1-fallback.jpg">
		<img class="vertical-slide-image" src="https://cdn.example.com/s2.jpg">
		<img class="vertical-slide-image" srcset="" src="https://cdn.example.com/s3.webp">
		</body></html>`

	images, err := NewDefault().ExtractImages(html)
	require.NoError(t, err)
	require.Len(t, images, 3)

	assert.Equal(t, 1, images[0].Ordinal)
	assert.Equal(t, "https://cdn.example.com/s1-2048.jpg", images[0].SourceURL)
	assert.Equal(t, 2, images[1].Ordinal)
	assert.Equal(t, "https://cdn.example.com/s2.jpg", images[1].SourceURL)
	assert.Equal(t, "https://cdn.example.com/s3.webp", images[2].SourceURL)
}

func TestExtractImagesEmptyPage(t *testing.T) {
	images, err := NewDefault().ExtractImages("<html><body><p>nothing here</p></body></html>")
	require.NoError(t, err)
	assert.Empty(t, images)
}

func TestExtractImagesSkipsSourcelessElements(t *testing.T) {
	html := `<html><body>
		<div class="vertical-slide-image"></div>
		<img class="vertical-slide-image" src="https://cdn.example.com/only.jpg">
		</body></html>`

	images, err := NewDefault().ExtractImages(html)
	require.NoError(t, err)
	require.Len(t, images, 1)
	assert.Equal(t, 1, images[0].Ordinal)
}

func TestExtractTitleChain(t *testing.T) {
	tests := []struct {
		name string
		html string
		want string
	}{
		{
			"preferred selector",
			`<h1 data-cy="presentation-title">Primary Title</h1><h1>Other</h1>`,
			"Primary Title",
		},
		{
			"class fallback",
			`<h1 class="slideshow-title"> Spaced Title </h1>`,
			"Spaced Title",
		},
		{
			"bare h1",
			`<div><h1>Bare Heading</h1></div>`,
			"Bare Heading",
		},
		{
			"testid fallback",
			`<span data-testid="presentation-title">Span Title</span>`,
			"Span Title",
		},
		{
			"nothing",
			`<p>no headings</p>`,
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewDefault().ExtractTitle("<html><body>" + tt.html + "</body></html>")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPickLargest(t *testing.T) {
	assert.Equal(t, "b.jpg", pickLargest("a.jpg 100w, b.jpg 900w, c.jpg 500w"))
	assert.Equal(t, "only.jpg", pickLargest("only.jpg"))
	assert.Equal(t, "", pickLargest(""))
	// density descriptors carry no width, first candidate wins
	assert.Equal(t, "x.jpg", pickLargest("x.jpg 1x, y.jpg 2x"))
}

func TestHasShowMore(t *testing.T) {
	e := NewDefault()

	withButton := categoryPage("New in Business",
		card("Some presentation", "/u/x")+`<button class="ShowMoreButton_root__oAN_0">Show More</button>`)
	block, err := e.FindSection(withButton, models.SectionNew)
	require.NoError(t, err)
	assert.True(t, e.HasShowMore(block))

	without := categoryPage("New in Business", card("Some presentation", "/u/x"))
	block, err = e.FindSection(without, models.SectionNew)
	require.NoError(t, err)
	assert.False(t, e.HasShowMore(block))
}
