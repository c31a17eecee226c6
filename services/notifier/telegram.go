package notifier

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"sjsage522/listingwatcher/logger"
	apperrors "sjsage522/listingwatcher/pkg/errors"
)

// maxMessageLength is the Telegram limit for one text message
const maxMessageLength = 4096

// TelegramNotifier sends messages through the Telegram Bot API
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID string
}

// NewTelegramNotifier creates a notifier for chatID, which is either a
// numeric chat id or a @channel username.
func NewTelegramNotifier(token, chatID string, timeout time.Duration) (*TelegramNotifier, error) {
	return NewTelegramNotifierWithEndpoint(token, chatID, tgbotapi.APIEndpoint, timeout)
}

// NewTelegramNotifierWithEndpoint is NewTelegramNotifier against a custom
// Bot API endpoint, formatted like tgbotapi.APIEndpoint. The token is checked
// with getMe, but an unreachable or rejecting API only logs a warning: sends
// then fail one by one and scans keep running.
func NewTelegramNotifierWithEndpoint(token, chatID, endpoint string, timeout time.Duration) (*TelegramNotifier, error) {
	if token == "" || chatID == "" {
		return nil, apperrors.NewNotify("", "bot token and chat id are required", nil)
	}

	client := &http.Client{Timeout: timeout}
	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		logger.ForNotifier().Warn().Err(err).Msg("Could not verify bot token, sending anyway")
		bot = &tgbotapi.BotAPI{Token: token, Client: client, Buffer: 100}
		bot.SetAPIEndpoint(endpoint)
	} else {
		logger.ForNotifier().Info().Str("username", bot.Self.UserName).Msg("Telegram bot created")
	}
	bot.Debug = false

	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Send delivers text, split on line boundaries when it exceeds the message
// length limit.
func (n *TelegramNotifier) Send(ctx context.Context, text string) error {
	for _, part := range splitMessage(text, maxMessageLength) {
		if err := ctx.Err(); err != nil {
			return apperrors.NewNotify("", "send cancelled", err)
		}
		if _, err := n.bot.Send(n.newMessage(part)); err != nil {
			return apperrors.NewNotify("", "failed to send message", err)
		}
	}
	return nil
}

func (n *TelegramNotifier) newMessage(text string) tgbotapi.MessageConfig {
	if id, err := strconv.ParseInt(n.chatID, 10, 64); err == nil {
		return tgbotapi.NewMessage(id, text)
	}
	return tgbotapi.NewMessageToChannel(n.chatID, text)
}

// splitMessage cuts text into parts of at most limit runes, preferring to cut
// after a newline.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var parts []string
	for len(runes) > limit {
		cut := limit
		if i := lastIndexRune(runes[:limit], '\n'); i > 0 {
			cut = i + 1
		}
		parts = append(parts, strings.TrimRight(string(runes[:cut]), "\n"))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		parts = append(parts, string(runes))
	}
	return parts
}

func lastIndexRune(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
