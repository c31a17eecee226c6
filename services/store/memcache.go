package store

import (
	"context"
	"errors"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
)

// MemcacheStore keeps each topic's set under prefix:topic with no
// expiration and saves it with CompareAndSwap. Memcache evicts under memory
// pressure and caps values at 1MB by default, so size the server for it.
type MemcacheStore struct {
	client *memcache.Client
	prefix string
}

// NewMemcacheStore creates a memcache backed store
func NewMemcacheStore(client *memcache.Client, prefix string) *MemcacheStore {
	return &MemcacheStore{client: client, prefix: prefix}
}

// Key returns the memcache key of topic
func (s *MemcacheStore) Key(topic string) string {
	return s.prefix + ":" + topic
}

// Load reads the topic key, creating it as [] when missing
func (s *MemcacheStore) Load(ctx context.Context, topic string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewStore(topic, "load cancelled", err)
	}

	key := s.Key(topic)
	item, err := s.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		aerr := s.client.Add(&memcache.Item{Key: key, Value: []byte("[]")})
		switch {
		case aerr == nil:
			logger.ForStore().Info().Str("topic", topic).Str("key", key).Msg("Created empty seen set")
			return []string{}, nil
		case errors.Is(aerr, memcache.ErrNotStored):
			item, err = s.client.Get(key)
		default:
			return nil, apperrors.NewStore(topic, "could not create "+key, aerr)
		}
	}
	if err != nil {
		return nil, apperrors.NewStore(topic, "could not read "+key, err)
	}

	set, err := decode(item.Value)
	if err != nil {
		return nil, apperrors.NewStoreCorrupt(topic, "could not parse "+key, err)
	}
	return set, nil
}

// DiffAndSave merges candidates into the topic key
func (s *MemcacheStore) DiffAndSave(ctx context.Context, topic string, candidates []string) ([]string, error) {
	if _, err := s.Load(ctx, topic); err != nil {
		return nil, err
	}

	key := s.Key(topic)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewStore(topic, "save cancelled", err)
		}

		item, err := s.client.Get(key)
		if err != nil {
			return nil, apperrors.NewStore(topic, "could not read "+key, err)
		}
		seen, err := decode(item.Value)
		if err != nil {
			return nil, apperrors.NewStoreCorrupt(topic, "could not parse "+key, err)
		}

		updated, newItems := merge(seen, candidates)
		if len(newItems) == 0 {
			return newItems, nil
		}

		if item.Value, err = encode(updated); err != nil {
			return nil, apperrors.NewStore(topic, "could not encode seen set", err)
		}
		err = s.client.CompareAndSwap(item)
		switch {
		case err == nil:
			return newItems, nil
		case errors.Is(err, memcache.ErrCASConflict), errors.Is(err, memcache.ErrNotStored):
			logger.ForStore().Debug().Str("topic", topic).Int("attempt", attempt+1).Msg("Seen set changed during save, retrying")
			continue
		default:
			return nil, apperrors.NewStore(topic, "could not save "+key, err)
		}
	}

	return nil, apperrors.NewStore(topic, "could not save "+key, errors.New("too many concurrent updates"))
}
