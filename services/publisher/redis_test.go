package publisher

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRedisPublisher(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	publisher := NewRedisPublisher(client, "listings", 2)

	event := ListingEvent{
		RunID:    "run-1",
		Topic:    "cars",
		URL:      "https://example.com/cars",
		NewItems: []string{"u1", "u2"},
		FoundAt:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, publisher.Publish(ctx, event))

	messages, err := client.XRange(ctx, "listings", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "cars", messages[0].Values["topic"])

	var got ListingEvent
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values["event"].(string)), &got))
	assert.Equal(t, event, got)
}

func TestRedisPublisherTrimStreams(t *testing.T) {
	ctx := context.Background()
	client := newTestClient(t)
	publisher := NewRedisPublisher(client, "listings", 2)

	for _, topic := range []string{"a", "b", "c", "d"} {
		require.NoError(t, publisher.Publish(ctx, ListingEvent{Topic: topic, NewItems: []string{topic}}))
	}
	require.NoError(t, publisher.TrimStreams(ctx))

	n, err := client.XLen(ctx, "listings").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Zero disables trimming
	require.NoError(t, NewRedisPublisher(client, "listings", 0).TrimStreams(ctx))
}
