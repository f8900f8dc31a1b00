package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// ═══════════════════════════════════════════════════════════════════════════════
// TELEGRAM NOTIFIER - Push alerts and reports to a chat
// ═══════════════════════════════════════════════════════════════════════════════

// Telegram sends messages to a single chat. A nil *Telegram is a valid
// no-op notifier, so callers never branch on configuration.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// New authenticates against the Telegram Bot API.
func New(token string, chatID int64) (*Telegram, error) {
	if token == "" || chatID == 0 {
		return nil, fmt.Errorf("telegram token and chat id are required")
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram auth: %w", err)
	}

	log.Info().Str("bot", api.Self.UserName).Msg("🤖 Telegram bot connected")
	return &Telegram{api: api, chatID: chatID}, nil
}

// Notify sends msg to the configured chat. Delivery failures are logged,
// never returned; a flaky notifier must not affect trading.
func (t *Telegram) Notify(msg string) {
	if t == nil || t.api == nil {
		return
	}
	if _, err := t.api.Send(tgbotapi.NewMessage(t.chatID, msg)); err != nil {
		log.Error().Err(err).Msg("Telegram send failed")
	}
}
