package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/model"
	"github.com/Mamik153/AI-Research-Assistant-Backend/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*TelegramNotifier)(nil)

// TelegramNotifier pings a configured chat when a job reaches a terminal
// state. Notification failures are best-effort and never affect the job.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *zerolog.Logger
}

func NewTelegramNotifier(token string, chatID int64, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	l := logger.With().Str("component", "TelegramNotifier").Logger()
	return &TelegramNotifier{bot: bot, chatID: chatID, log: &l}, nil
}

func (n *TelegramNotifier) NotifyJobDone(ctx context.Context, job *model.Job) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var text string
	switch job.State {
	case model.JobStateCompleted:
		text = fmt.Sprintf("✅ Research job %s on %q completed.", job.ID, job.Topic)
	case model.JobStateFailed:
		kind := "unknown"
		if job.Error != nil {
			kind = string(job.Error.Kind)
		}
		text = fmt.Sprintf("⚠️ Research job %s on %q failed (%s).", job.ID, job.Topic, kind)
	default:
		return nil // only terminal states are announced
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		return err
	}
	n.log.Debug().Str("job_id", job.ID).Msg("terminal state announced")
	return nil
}
