package store

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
)

// RedisStore keeps each topic's set as a JSON array under prefix:topic.
// Saves are WATCH/MULTI compare-and-swap, so overlapping runs on several
// hosts cannot drop each other's URLs.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a Redis backed store. The caller owns client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

// Key returns the Redis key of topic
func (s *RedisStore) Key(topic string) string {
	return s.prefix + ":" + topic
}

// Load reads the topic key, creating it as [] when missing
func (s *RedisStore) Load(ctx context.Context, topic string) ([]string, error) {
	key := s.Key(topic)
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		created, serr := s.client.SetNX(ctx, key, "[]", 0).Result()
		if serr != nil {
			return nil, apperrors.NewStore(topic, "could not create "+key, serr)
		}
		if created {
			logger.ForStore().Info().Str("topic", topic).Str("key", key).Msg("Created empty seen set")
			return []string{}, nil
		}
		data, err = s.client.Get(ctx, key).Bytes()
	}
	if err != nil {
		return nil, apperrors.NewStore(topic, "could not read "+key, err)
	}

	set, err := decode(data)
	if err != nil {
		return nil, apperrors.NewStoreCorrupt(topic, "could not parse "+key, err)
	}
	return set, nil
}

// DiffAndSave merges candidates into the topic key
func (s *RedisStore) DiffAndSave(ctx context.Context, topic string, candidates []string) ([]string, error) {
	if _, err := s.Load(ctx, topic); err != nil {
		return nil, err
	}

	key := s.Key(topic)
	for attempt := 0; attempt < maxCASAttempts; attempt++ {
		var newItems []string
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil && !errors.Is(err, redis.Nil) {
				return apperrors.NewStore(topic, "could not read "+key, err)
			}

			seen := []string{}
			if err == nil {
				if seen, err = decode(data); err != nil {
					return apperrors.NewStoreCorrupt(topic, "could not parse "+key, err)
				}
			}

			var updated []string
			updated, newItems = merge(seen, candidates)
			if len(newItems) == 0 {
				return nil
			}

			encoded, err := encode(updated)
			if err != nil {
				return apperrors.NewStore(topic, "could not encode seen set", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, encoded, 0)
				return nil
			})
			return err
		}, key)

		switch {
		case err == nil:
			return newItems, nil
		case errors.Is(err, redis.TxFailedErr):
			logger.ForStore().Debug().Str("topic", topic).Int("attempt", attempt+1).Msg("Seen set changed during save, retrying")
			continue
		case apperrors.TypeOf(err) != "":
			return nil, err
		default:
			return nil, apperrors.NewStore(topic, "could not save "+key, err)
		}
	}

	return nil, apperrors.NewStore(topic, "could not save "+key, errors.New("too many concurrent updates"))
}
