package publisher

import (
	"context"
	"time"
)

// ListingEvent announces the new items one topic found in a run
type ListingEvent struct {
	RunID    string    `json:"run_id"`
	Topic    string    `json:"topic"`
	URL      string    `json:"url"`
	NewItems []string  `json:"new_items"`
	FoundAt  time.Time `json:"found_at"`
}

// Publisher represents a service for publishing new listing events
type Publisher interface {
	// Publish publishes an event to a stream
	Publish(ctx context.Context, event ListingEvent) error

	// TrimStreams trims the stream to the configured maximum length
	TrimStreams(ctx context.Context) error
}
