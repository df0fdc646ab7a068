// Package telegram is the chat-transport notifier: milestone texts and
// the rendered document go back to the user through the Bot API.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"facturabot/internal/logger"
)

// Notifier wraps one long-lived Bot API client.
type Notifier struct {
	bot *tgbotapi.BotAPI
	log zerolog.Logger
}

// New authenticates against the Bot API.
func New(token string) (*Notifier, error) {
	const op = "telegram.New"

	if token == "" {
		return nil, fmt.Errorf("%s: bot token is required", op)
	}

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to authenticate bot: %w", op, err)
	}

	log := logger.WithComponent("telegram")
	log.Info().Str("bot", bot.Self.UserName).Msg("Telegram bot authenticated")

	return &Notifier{bot: bot, log: log}, nil
}

// SendText delivers one text notification to a chat. The Bot API client
// is not context-aware; ctx is honored up front so an expired pipeline
// budget fails fast instead of queueing a late message.
func (n *Notifier) SendText(ctx context.Context, chatID int64, text string) error {
	const op = "SendText"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if _, err := n.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		return fmt.Errorf("%s: failed to send message: %w", op, err)
	}
	return nil
}

// SendDocument delivers a file attachment to a chat.
func (n *Notifier) SendDocument(ctx context.Context, chatID int64, name string, data []byte, caption string) error {
	const op = "SendDocument"

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	if _, err := n.bot.Send(doc); err != nil {
		return fmt.Errorf("%s: failed to send document: %w", op, err)
	}
	return nil
}
