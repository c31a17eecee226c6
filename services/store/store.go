package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// SeenStore is the per-topic set of image URLs already notified.
//
// The set only grows. A save either replaces the whole set or fails, so a
// failed run never drops URLs that were seen before it.
type SeenStore interface {
	// Load returns the set for topic, creating an empty one when none exists.
	// Unreadable state is a store_corrupt error and is never reset.
	Load(ctx context.Context, topic string) ([]string, error)

	// DiffAndSave returns the candidates missing from the set, in the order
	// they first appear, and persists the set with them appended. Nothing is
	// written when there are no new items.
	DiffAndSave(ctx context.Context, topic string, candidates []string) ([]string, error)
}

// maxCASAttempts bounds optimistic save attempts on the key-value backends
const maxCASAttempts = 5

// merge appends the candidates missing from seen. Membership is exact string
// equality; a candidate repeated in one page is new only once.
func merge(seen, candidates []string) (updated []string, newItems []string) {
	members := make(map[string]struct{}, len(seen)+len(candidates))
	for _, u := range seen {
		members[u] = struct{}{}
	}

	updated = append(make([]string, 0, len(seen)+len(candidates)), seen...)
	newItems = []string{}
	for _, u := range candidates {
		if _, ok := members[u]; ok {
			continue
		}
		members[u] = struct{}{}
		updated = append(updated, u)
		newItems = append(newItems, u)
	}
	return updated, newItems
}

func decode(data []byte) ([]string, error) {
	var set []string
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, fmt.Errorf("decode seen set: %w", err)
	}
	if set == nil {
		set = []string{}
	}
	return set, nil
}

// encode renders the set as a pretty-printed JSON array
func encode(set []string) ([]byte, error) {
	if set == nil {
		set = []string{}
	}
	return json.MarshalIndent(set, "", "  ")
}
