package crawler

import "io"

// Extractor turns a listing page into the image URLs of its entries
type Extractor interface {
	// Extract returns image URLs in document order. Duplicates are kept.
	Extract(r io.Reader) ([]string, error)
}

// Selectors contains CSS selectors for the elements of a listing page
type Selectors struct {
	// Title locates the page title checked against ChallengeText
	Title string
	// ChallengeText is the title of the bot challenge page
	ChallengeText string
	// Item locates listing entries
	Item string
	// Image locates the image element inside an entry
	Image string
	// Attribute holds the image URL on the Image element
	Attribute string
}

// DefaultSelectors matches the classifieds feed layout
var DefaultSelectors = Selectors{
	Title:         "title",
	ChallengeText: "ShieldSquare Captcha",
	Item:          ".feeditem .pic",
	Image:         "img",
	Attribute:     "src",
}

// Merge returns s with empty fields taken from DefaultSelectors
func (s Selectors) Merge() Selectors {
	if s.Title == "" {
		s.Title = DefaultSelectors.Title
	}
	if s.ChallengeText == "" {
		s.ChallengeText = DefaultSelectors.ChallengeText
	}
	if s.Item == "" {
		s.Item = DefaultSelectors.Item
	}
	if s.Image == "" {
		s.Image = DefaultSelectors.Image
	}
	if s.Attribute == "" {
		s.Attribute = DefaultSelectors.Attribute
	}
	return s
}
