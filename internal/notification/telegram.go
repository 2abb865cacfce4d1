package notification

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// TelegramNotifier sends alerts to one chat through the Bot API.
// Sends are throttled to stay under Telegram's per-chat limit.
type TelegramNotifier struct {
	api     *tgbotapi.BotAPI
	chatID  int64
	channel string // @username target when the chat id is not numeric
	limiter *rate.Limiter
}

// NewTelegramNotifier creates a notifier for chat, which is either a numeric
// chat id or a channel username such as "@fxsignals". No request is made
// until the first Send.
func NewTelegramNotifier(botToken, chat string) *TelegramNotifier {
	api := &tgbotapi.BotAPI{
		Token:  botToken,
		Client: &http.Client{Timeout: 10 * time.Second},
		Buffer: 100,
	}
	api.SetAPIEndpoint(tgbotapi.APIEndpoint)

	n := &TelegramNotifier{
		api:     api,
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
	if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
		n.chatID = id
	} else {
		n.channel = chat
	}
	return n
}

func (t *TelegramNotifier) Send(ctx context.Context, alert Alert) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("telegram: rate limit: %w", err)
	}

	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}
	text := fmt.Sprintf("%s *%s*\n\n%s", emoji,
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, alert.Title),
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, alert.Message))

	var msg tgbotapi.MessageConfig
	if t.channel != "" {
		msg = tgbotapi.NewMessageToChannel(t.channel, text)
	} else {
		msg = tgbotapi.NewMessage(t.chatID, text)
	}
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("telegram: send: %w", err)
	}
	log.Printf("[telegram] sent alert: %s", alert.Title)
	return nil
}
