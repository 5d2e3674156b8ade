package workers

import (
	"context"

	"go.uber.org/zap"

	"github.com/camden-git/trustytail/bot"
	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/metrics"
	"github.com/camden-git/trustytail/telegram"
)

// ReminderSweep nudges every monitored owner whose last confirmation is older
// than the reminder threshold.
type ReminderSweep struct {
	overdueSweep
	messenger telegram.Messenger
}

func NewReminderSweep(opts SweepOptions, messenger telegram.Messenger, log *zap.Logger, m *metrics.Metrics) *ReminderSweep {
	return &ReminderSweep{
		overdueSweep: newOverdueSweep(metrics.SweepReminder, opts, log, m),
		messenger:    messenger,
	}
}

// Run sends one reminder per overdue chat. A failed send is logged and skipped;
// only a failure to read the overdue chats aborts the run.
func (s *ReminderSweep) Run(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, func(ctx context.Context, log *zap.Logger, chat database.OverdueChat, res *SweepResult) {
		_, err := s.messenger.Send(ctx, telegram.OutgoingMessage{
			ChatID:   chat.ChatID,
			Text:     bot.ReminderText,
			Keyboard: bot.ReminderKeyboard(),
		})
		s.metrics.MessageSent("reminder", err)
		if err != nil {
			s.stepFailed(log, res, "send_reminder", err)
			return
		}
		res.Sent++
		log.Debug("reminder sent")
	})
}
