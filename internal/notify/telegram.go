package notify

import (
	"context"
	"net/http"
	"time"

	telebot "gopkg.in/telebot.v3"

	apperrors "github.com/Proton-105/himera-wallet/internal/errors"
)

// Sender pushes a rendered message to an out-of-app channel.
type Sender interface {
	Send(ctx context.Context, chatID int64, text string) error
}

// TelegramSender delivers messages through the Telegram Bot API.
type TelegramSender struct {
	bot *telebot.Bot
}

func NewTelegramSender(token string, timeout time.Duration) (*TelegramSender, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bot, err := telebot.NewBot(telebot.Settings{
		Token:  token,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, apperrors.NewExternalAPIError("telegram", err)
	}

	return &TelegramSender{bot: bot}, nil
}

func (s *TelegramSender) Send(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if _, err := s.bot.Send(telebot.ChatID(chatID), text); err != nil {
		return apperrors.NewExternalAPIError("telegram", err)
	}
	return nil
}
