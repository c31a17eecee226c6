package crawler

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"sjsage522/listingwatcher/config"
	apperrors "sjsage522/listingwatcher/pkg/errors"
)

// ListingExtractor extracts listing images with configurable selectors
type ListingExtractor struct {
	Selectors Selectors
}

// NewListingExtractor creates an extractor; empty selector fields fall back
// to DefaultSelectors.
func NewListingExtractor(selectors Selectors) *ListingExtractor {
	return &ListingExtractor{Selectors: selectors.Merge()}
}

// ForTopic builds the extractor for a configured topic
func ForTopic(topic config.TopicConfig) *ListingExtractor {
	var s Selectors
	if topic.Selectors != nil {
		s = Selectors{
			Title:         topic.Selectors.Title,
			ChallengeText: topic.Selectors.ChallengeText,
			Item:          topic.Selectors.Item,
			Image:         topic.Selectors.Image,
			Attribute:     topic.Selectors.Attribute,
		}
	}
	return NewListingExtractor(s)
}

// Extract parses the page and collects one image URL per listing entry.
// A challenge page fails with a bot detection error before entries are
// looked up; a page without entries fails with a no items error. Entries
// without an image are skipped.
func (e *ListingExtractor) Extract(r io.Reader) ([]string, error) {
	doc, err := createDocument(r)
	if err != nil {
		return nil, err
	}

	title := strings.TrimSpace(doc.Find(e.Selectors.Title).First().Text())
	if title == e.Selectors.ChallengeText {
		return nil, apperrors.NewBotDetected("", title)
	}

	items := doc.Find(e.Selectors.Item)
	if items.Length() == 0 {
		return nil, apperrors.NewNoItemsFound("", e.Selectors.Item)
	}

	imageURLs := make([]string, 0, items.Length())
	items.Each(func(_ int, s *goquery.Selection) {
		src, exists := s.Find(e.Selectors.Image).Attr(e.Selectors.Attribute)
		if exists && src != "" {
			imageURLs = append(imageURLs, src)
		}
	})

	return imageURLs, nil
}

// createDocument creates a goquery document from a reader
func createDocument(r io.Reader) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, apperrors.NewParsing("", "could not parse page", err)
	}
	return doc, nil
}
