package notify

import (
	"context"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramChannel sends messages to a single Telegram chat
type TelegramChannel struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *slog.Logger
}

// NewTelegramChannel creates a Telegram channel using the public Bot API
func NewTelegramChannel(token string, chatID int64, logger *slog.Logger) (*TelegramChannel, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return newTelegramChannel(api, chatID, logger), nil
}

// NewTelegramChannelWithClient creates a Telegram channel against a custom
// endpoint, formatted like tgbotapi.APIEndpoint
func NewTelegramChannelWithClient(token string, chatID int64, endpoint string, client tgbotapi.HTTPClient, logger *slog.Logger) (*TelegramChannel, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}
	return newTelegramChannel(api, chatID, logger), nil
}

func newTelegramChannel(api *tgbotapi.BotAPI, chatID int64, logger *slog.Logger) *TelegramChannel {
	logger = logger.With("component", "telegram")
	logger.Info("Telegram notifications enabled", "bot", api.Self.UserName, "chat_id", chatID)
	return &TelegramChannel{
		api:    api,
		chatID: chatID,
		logger: logger,
	}
}

func (t *TelegramChannel) Publish(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := tgbotapi.NewMessage(t.chatID, tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, message))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	if _, err := t.api.Send(msg); err != nil {
		t.logger.Error("Failed to send Telegram message", "chat_id", t.chatID, "error", err)
		return fmt.Errorf("failed to send telegram message: %w", err)
	}

	t.logger.Debug("Telegram message sent", "chat_id", t.chatID)
	return nil
}
