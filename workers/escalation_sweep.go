package workers

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/camden-git/trustytail/bot"
	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/metrics"
	"github.com/camden-git/trustytail/repository"
	"github.com/camden-git/trustytail/telegram"
)

// EscalationSweep pauses monitoring for owners silent past the escalation
// threshold and sends their emergency text to every secondary owner.
type EscalationSweep struct {
	overdueSweep
	repos           repository.Repositories
	messenger       telegram.Messenger
	placeholderText string
	fallbackHandle  string
}

func NewEscalationSweep(
	opts SweepOptions,
	repos repository.Repositories,
	messenger telegram.Messenger,
	placeholderText, fallbackHandle string,
	log *zap.Logger,
	m *metrics.Metrics,
) *EscalationSweep {
	return &EscalationSweep{
		overdueSweep:    newOverdueSweep(metrics.SweepEscalation, opts, log, m),
		repos:           repos,
		messenger:       messenger,
		placeholderText: placeholderText,
		fallbackHandle:  fallbackHandle,
	}
}

// Run escalates every overdue chat once. Each step is attempted even when an
// earlier one failed; failures are logged and counted. Once monitoring is
// disabled the chat is not selected again until its owner re-enables it.
func (s *EscalationSweep) Run(ctx context.Context) (SweepResult, error) {
	return s.run(ctx, s.escalate)
}

func (s *EscalationSweep) escalate(ctx context.Context, log *zap.Logger, chat database.OverdueChat, res *SweepResult) {
	chatID := chat.ChatID

	emergencyText := s.placeholderText
	info, err := s.repos.EmergencyInfo.FindByChatID(ctx, chatID)
	if err != nil {
		s.stepFailed(log, res, "load_emergency_info", err)
	} else if info != nil {
		emergencyText = info.Text
	}

	_, err = s.messenger.Send(ctx, telegram.OutgoingMessage{ChatID: chatID, Text: bot.PauseNoticeText})
	s.metrics.MessageSent("pause_notice", err)
	if err != nil {
		s.stepFailed(log, res, "send_pause_notice", err)
	} else {
		res.Sent++
	}

	if err := s.repos.Monitoring.SetEnabled(ctx, chatID, false); err != nil {
		s.stepFailed(log, res, "disable_monitoring", err)
	}

	handle := s.fallbackHandle
	profile, err := s.repos.Profiles.FindByChatID(ctx, chatID)
	if err != nil {
		s.stepFailed(log, res, "load_profile", err)
	} else {
		handle = profile.Handle(s.fallbackHandle)
	}

	links, err := s.repos.SecondaryOwner.ListByPrimary(ctx, chatID)
	if err != nil {
		s.stepFailed(log, res, "list_secondary_owners", err)
		return
	}

	alert := bot.AlertText(handle, emergencyText)
	delivered := 0
	for _, link := range links {
		_, err := s.messenger.Send(ctx, telegram.OutgoingMessage{ChatID: link.SecondaryOwnerChatID, Text: alert})
		s.metrics.MessageSent("alert", err)
		if err != nil {
			s.stepFailed(log.With(zap.Int64("secondary_chat_id", link.SecondaryOwnerChatID)), res, "send_alert",
				fmt.Errorf("alert to %d: %w", link.SecondaryOwnerChatID, err))
			continue
		}
		delivered++
		res.Sent++
	}
	log.Info("escalated", zap.Int("secondary_owners", len(links)), zap.Int("alerts_delivered", delivered))
}
