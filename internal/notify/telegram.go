// Package notify pushes triggered alerts to Telegram.
package notify

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/quantfold/ictsignal/models"
)

// Telegram sends signal alerts to a configured chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	logger zerolog.Logger
}

// NewTelegram connects the bot. Returns an error when the token is invalid.
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}
	return &Telegram{
		bot:    bot,
		chatID: chatID,
		logger: log.With().Str("component", "telegram_notifier").Logger(),
	}, nil
}

// SendSignalAlert formats and sends one triggered alert.
func (t *Telegram) SendSignalAlert(alert models.Alert, signal *models.SignalResult) error {
	text := fmt.Sprintf(
		"Signal alert: %s\nRecommendation: %s\nStrength: %d\nBreakdown: D1 %s / H1 %s / M15 %s",
		signal.Symbol,
		signal.Recommendation,
		signal.Strength,
		signal.Breakdown.D1, signal.Breakdown.H1, signal.Breakdown.M15,
	)

	msg := tgbotapi.NewMessage(t.chatID, text)
	if _, err := t.bot.Send(msg); err != nil {
		t.logger.Error().Err(err).Str("symbol", signal.Symbol).Msg("Failed to send alert")
		return err
	}

	t.logger.Info().Str("symbol", signal.Symbol).Str("alert_id", alert.ID).Msg("Alert sent")
	return nil
}
