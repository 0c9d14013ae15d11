package telegram

import (
	"context"
	"errors"
	"strconv"

	"github.com/Vovarama1992/go-utils/logger"
	"github.com/Vovarama1992/hope/internal/ports"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot long-polls Telegram and hands every text message to the intake.
// It never replies; the result shows up in the library.
type Bot struct {
	api    *tgbotapi.BotAPI
	intake ports.Intake
	log    *logger.ZapLogger
}

func NewBot(token string, intake ports.Intake, log *logger.ZapLogger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &Bot{api: api, intake: intake, log: log}, nil
}

func (b *Bot) Run(ctx context.Context) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)
	defer b.api.StopReceivingUpdates()

	b.log.Log(logger.LogEntry{
		Level:   "info",
		Message: "telegram polling started",
		Fields:  map[string]any{"bot": b.api.Self.UserName},
	})

	for {
		select {
		case <-ctx.Done():
			return nil
		case upd, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, upd)
		}
	}
}

func (b *Bot) handle(ctx context.Context, upd tgbotapi.Update) {
	msg := upd.Message
	if msg == nil || msg.Chat == nil {
		return
	}

	sender := strconv.FormatInt(msg.Chat.ID, 10)
	err := b.intake.Receive(ctx, sender, msg.Text)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrUnauthorized), errors.Is(err, ports.ErrInvalidLink):
		// already logged by the intake
	default:
		b.log.Log(logger.LogEntry{
			Level:   "error",
			Message: "telegram intake failed",
			Error:   err,
			Fields:  map[string]any{"chat": sender},
		})
	}
}
