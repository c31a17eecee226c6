package crawler

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/listingwatcher/config"
	apperrors "sjsage522/listingwatcher/pkg/errors"
)

const feedHTML = `<!DOCTYPE html>
<html>
<head><title>Cars for sale</title></head>
<body>
  <div class="feed_list">
    <div class="feeditem"><div class="pic"><img src="https://img.example.com/1.jpg"/></div></div>
    <div class="feeditem"><div class="pic"><img src="https://img.example.com/2.jpg"/></div></div>
    <div class="feeditem"><div class="pic"><span>no image yet</span></div></div>
    <div class="feeditem"><div class="pic"><img alt="missing src"/></div></div>
    <div class="feeditem"><div class="pic"><img src="https://img.example.com/1.jpg"/></div></div>
  </div>
</body>
</html>`

func TestListingExtractor_Extract(t *testing.T) {
	e := NewListingExtractor(Selectors{})

	urls, err := e.Extract(strings.NewReader(feedHTML))
	require.NoError(t, err)

	// Document order, duplicates kept
	assert.Equal(t, []string{
		"https://img.example.com/1.jpg",
		"https://img.example.com/2.jpg",
		"https://img.example.com/1.jpg",
	}, urls)
}

func TestListingExtractor_BotDetectionPrecedence(t *testing.T) {
	html := `<html><head><title> ShieldSquare Captcha </title></head><body>
		<div class="feeditem"><div class="pic"><img src="https://img.example.com/1.jpg"/></div></div>
	</body></html>`

	urls, err := NewListingExtractor(Selectors{}).Extract(strings.NewReader(html))
	assert.Nil(t, urls)
	assert.True(t, errors.Is(err, apperrors.ErrBotDetected))
	assert.Equal(t, "bot detection", apperrors.MessageOf(err))
}

func TestListingExtractor_NoItemsFound(t *testing.T) {
	html := `<html><head><title>Cars for sale</title></head><body><p>We changed our layout</p></body></html>`

	_, err := NewListingExtractor(Selectors{}).Extract(strings.NewReader(html))
	assert.True(t, errors.Is(err, apperrors.ErrNoItemsFound))
	assert.Equal(t, "could not find feed items", apperrors.MessageOf(err))
}

func TestListingExtractor_EntriesWithoutImages(t *testing.T) {
	html := `<html><head><title>Cars</title></head><body>
		<div class="feeditem"><div class="pic"></div></div>
		<div class="feeditem"><div class="pic"><img src=""/></div></div>
	</body></html>`

	urls, err := NewListingExtractor(Selectors{}).Extract(strings.NewReader(html))
	require.NoError(t, err)
	assert.NotNil(t, urls)
	assert.Empty(t, urls)
}

func TestListingExtractor_FeedItemWithoutPic(t *testing.T) {
	// A feed entry without the picture wrapper is not a listing entry
	html := `<html><head><title>Cars</title></head><body>
		<div class="feeditem"><img src="https://img.example.com/ad.jpg"/></div>
	</body></html>`

	_, err := NewListingExtractor(Selectors{}).Extract(strings.NewReader(html))
	assert.True(t, errors.Is(err, apperrors.ErrNoItemsFound))
}

func TestForTopicSelectors(t *testing.T) {
	e := ForTopic(config.TopicConfig{
		Topic: "flats",
		URL:   "https://example.com/flats",
		Selectors: &config.Selectors{
			Item:      "li.listing",
			Image:     "img.cover",
			Attribute: "data-src",
		},
	})
	assert.Equal(t, "title", e.Selectors.Title)
	assert.Equal(t, "ShieldSquare Captcha", e.Selectors.ChallengeText)

	html := `<html><head><title>Flats</title></head><body><ul>
		<li class="listing"><img class="cover" data-src="https://img.example.com/f1.jpg"/></li>
		<li class="listing"><img class="thumb" data-src="https://img.example.com/ignored.jpg"/></li>
	</ul></body></html>`

	urls, err := e.Extract(strings.NewReader(html))
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/f1.jpg"}, urls)
}

func TestForTopicDefaults(t *testing.T) {
	e := ForTopic(config.TopicConfig{Topic: "cars", URL: "https://example.com/cars"})
	assert.Equal(t, DefaultSelectors, e.Selectors)
}
