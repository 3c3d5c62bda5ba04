package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"ms-sorteos/internal/logger"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter posts operator alerts to the admin chat. Without a bot or
// chat id it only logs.
type TelegramAlerter struct {
	bot    sender
	chatID int64
	logger *logger.Logger
}

func NewTelegramAlerter(token string, chatID int64, log *logger.Logger) (*TelegramAlerter, error) {
	return newTelegramAlerter(token, tgbotapi.APIEndpoint, chatID, log)
}

func newTelegramAlerter(token, endpoint string, chatID int64, log *logger.Logger) (*TelegramAlerter, error) {
	if log == nil {
		log = logger.Discard()
	}
	a := &TelegramAlerter{chatID: chatID, logger: log}
	if token == "" || chatID == 0 {
		log.Warn("TELEGRAM", "Bot token or admin chat id not set, alerts will only be logged")
		return a, nil
	}

	bot, err := tgbotapi.NewBotAPIWithAPIEndpoint(token, endpoint)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Info("TELEGRAM", fmt.Sprintf("Bot authorized as %s", bot.Self.UserName))
	a.bot = bot
	return a, nil
}

func (a *TelegramAlerter) Alert(_ context.Context, message string) error {
	a.logger.Warn("ALERT", message)
	if a.bot == nil {
		return nil
	}

	if _, err := a.bot.Send(tgbotapi.NewMessage(a.chatID, message)); err != nil {
		a.logger.Error("TELEGRAM", fmt.Sprintf("Error sending alert: %v", err))
		return err
	}
	return nil
}
