package workers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camden-git/trustytail/metrics"
	"github.com/camden-git/trustytail/repository"
	"github.com/camden-git/trustytail/telegram"
)

var ErrEmptyBroadcast = errors.New("broadcast text is empty")

// Broadcaster sends one announcement to every known profile.
type Broadcaster struct {
	profiles  repository.ProfileRepository
	messenger telegram.Messenger
	pageSize  int
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewBroadcaster(profiles repository.ProfileRepository, messenger telegram.Messenger, pageSize int, log *zap.Logger, m *metrics.Metrics) *Broadcaster {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &Broadcaster{profiles: profiles, messenger: messenger, pageSize: pageSize, log: log, metrics: m}
}

// Run delivers text page by page. Per-chat failures are counted and skipped.
func (b *Broadcaster) Run(ctx context.Context, text string) (SweepResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return SweepResult{}, ErrEmptyBroadcast
	}

	res := SweepResult{RunID: uuid.NewString(), Sweep: metrics.SweepBroadcast, StartedAt: time.Now().UTC()}
	log := b.log.With(zap.String("sweep", res.Sweep), zap.String("run_id", res.RunID))

	var runErr error
	var afterID uint
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		page, err := b.profiles.ListPage(ctx, afterID, b.pageSize)
		if err != nil {
			runErr = fmt.Errorf("broadcast page %d: %w", res.Pages+1, err)
			break
		}
		if len(page) == 0 {
			break
		}
		res.Pages++

		for _, profile := range page {
			res.Chats++
			_, err := b.messenger.Send(ctx, telegram.OutgoingMessage{ChatID: profile.ChatID, Text: text})
			b.metrics.MessageSent("broadcast", err)
			if err != nil {
				res.Failures++
				log.Warn("broadcast send failed", zap.Int64("chat_id", profile.ChatID), zap.Error(err))
				continue
			}
			res.Sent++
		}
		afterID = page[len(page)-1].ID
	}

	res.FinishedAt = time.Now().UTC()
	b.metrics.ObserveSweep(res.Sweep, res.Chats, res.FinishedAt.Sub(res.StartedAt), runErr)
	if runErr != nil {
		log.Error("broadcast aborted", zap.Int("sent", res.Sent), zap.Error(runErr))
		return res, runErr
	}
	log.Info("broadcast finished", zap.Int("chats", res.Chats), zap.Int("sent", res.Sent), zap.Int("failures", res.Failures))
	return res, nil
}
