package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "sjsage522/listingwatcher/pkg/errors"
)

type sentMessage struct {
	chatID string
	text   string
}

// fakeBotAPI serves getMe and sendMessage like the Telegram Bot API
type fakeBotAPI struct {
	mu       sync.Mutex
	sent     []sentMessage
	failSend bool
}

func (f *fakeBotAPI) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasSuffix(r.URL.Path, "/getMe"):
			w.Write([]byte(`{"ok":true,"result":{"id":1,"is_bot":true,"first_name":"watcher","username":"watcher_bot"}}`))
		case strings.HasSuffix(r.URL.Path, "/sendMessage"):
			require.NoError(t, r.ParseForm())
			if f.failSend {
				w.Write([]byte(`{"ok":false,"error_code":400,"description":"Bad Request: chat not found"}`))
				return
			}
			f.mu.Lock()
			f.sent = append(f.sent, sentMessage{chatID: r.FormValue("chat_id"), text: r.FormValue("text")})
			f.mu.Unlock()
			w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}
}

func newTestNotifier(t *testing.T, api *fakeBotAPI, chatID string) *TelegramNotifier {
	t.Helper()
	server := httptest.NewServer(api.handler(t))
	t.Cleanup(server.Close)

	n, err := NewTelegramNotifierWithEndpoint("test-token", chatID, server.URL+"/bot%s/%s", time.Second)
	require.NoError(t, err)
	return n
}

func TestTelegramNotifier_Send(t *testing.T) {
	api := &fakeBotAPI{}
	n := newTestNotifier(t, api, "-100123")

	require.NoError(t, n.Send(context.Background(), "2 new items:\nu1\n----------\nu2"))

	require.Len(t, api.sent, 1)
	assert.Equal(t, "-100123", api.sent[0].chatID)
	assert.Equal(t, "2 new items:\nu1\n----------\nu2", api.sent[0].text)
}

func TestTelegramNotifier_SendToChannel(t *testing.T) {
	api := &fakeBotAPI{}
	n := newTestNotifier(t, api, "@listings")

	require.NoError(t, n.Send(context.Background(), "No new items were added"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "@listings", api.sent[0].chatID)
}

func TestTelegramNotifier_SendError(t *testing.T) {
	api := &fakeBotAPI{failSend: true}
	n := newTestNotifier(t, api, "1")

	err := n.Send(context.Background(), "hello")
	assert.True(t, errors.Is(err, apperrors.ErrNotify))
	assert.Contains(t, err.Error(), "chat not found")
}

func TestTelegramNotifier_Cancelled(t *testing.T) {
	api := &fakeBotAPI{}
	n := newTestNotifier(t, api, "1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := n.Send(ctx, "hello")
	assert.True(t, errors.Is(err, apperrors.ErrNotify))
	assert.Empty(t, api.sent)
}

func TestNewTelegramNotifier_APIUnavailable(t *testing.T) {
	var mu sync.Mutex
	down := true
	api := &fakeBotAPI{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		isDown := down
		mu.Unlock()
		if isDown {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		api.handler(t)(w, r)
	}))
	defer server.Close()

	n, err := NewTelegramNotifierWithEndpoint("test-token", "1", server.URL+"/bot%s/%s", time.Second)
	require.NoError(t, err)
	require.NotNil(t, n)

	// Sends fail while the API is down
	err = n.Send(context.Background(), "hello")
	assert.True(t, errors.Is(err, apperrors.ErrNotify))

	// and go through once it is back
	mu.Lock()
	down = false
	mu.Unlock()
	require.NoError(t, n.Send(context.Background(), "hello again"))
	require.Len(t, api.sent, 1)
	assert.Equal(t, "hello again", api.sent[0].text)
}

func TestNewTelegramNotifier_MissingSettings(t *testing.T) {
	_, err := NewTelegramNotifierWithEndpoint("", "1", "http://127.0.0.1:0/bot%s/%s", time.Second)
	assert.True(t, errors.Is(err, apperrors.ErrNotify))

	_, err = NewTelegramNotifierWithEndpoint("token", "", "http://127.0.0.1:0/bot%s/%s", time.Second)
	assert.True(t, errors.Is(err, apperrors.ErrNotify))
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short", 10))

	parts := splitMessage("aaaa\nbbbb\ncccc", 10)
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, parts)

	// No newline to cut at
	parts = splitMessage(strings.Repeat("x", 25), 10)
	assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, parts)

	// Counted in runes, not bytes
	parts = splitMessage(strings.Repeat("ש", 12), 10)
	assert.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("ש", 10), parts[0])
}
