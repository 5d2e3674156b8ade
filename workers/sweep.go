package workers

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/camden-git/trustytail/database"
	"github.com/camden-git/trustytail/metrics"
)

// SweepResult summarises one sweep run.
type SweepResult struct {
	RunID      string    `json:"run_id"`
	Sweep      string    `json:"sweep"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Pages      int       `json:"pages"`
	Chats      int       `json:"chats"`
	Sent       int       `json:"sent"`
	Failures   int       `json:"failures"`
}

// SweepOptions configures the overdue selection shared by both sweeps.
type SweepOptions struct {
	DB                    database.Querier
	Builder               sq.StatementBuilderType
	PageSize              int
	IncludeNeverConfirmed bool
	// Threshold is how long since the last confirmation a chat becomes overdue.
	Threshold time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
}

type overdueSweep struct {
	name    string
	opts    SweepOptions
	log     *zap.Logger
	metrics *metrics.Metrics
}

func newOverdueSweep(name string, opts SweepOptions, log *zap.Logger, m *metrics.Metrics) overdueSweep {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 50
	}
	return overdueSweep{name: name, opts: opts, log: log, metrics: m}
}

// run pages through overdue chats with keyset pagination, fully processing each
// page before fetching the next. Chats handled earlier in the run never shift
// later pages, even when handle changes their monitoring state.
func (s overdueSweep) run(ctx context.Context, handle func(ctx context.Context, log *zap.Logger, chat database.OverdueChat, res *SweepResult)) (SweepResult, error) {
	res := SweepResult{
		RunID:     uuid.NewString(),
		Sweep:     s.name,
		StartedAt: s.opts.Now().UTC(),
	}
	log := s.log.With(zap.String("sweep", s.name), zap.String("run_id", res.RunID))

	cutoff := res.StartedAt.Add(-s.opts.Threshold)
	log.Info("sweep started", zap.Time("cutoff", cutoff), zap.Int("page_size", s.opts.PageSize))

	query := database.OverdueQuery{
		Cutoff:                cutoff,
		IncludeNeverConfirmed: s.opts.IncludeNeverConfirmed,
		Limit:                 s.opts.PageSize,
	}

	var runErr error
	for {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		page, err := database.ListOverdue(ctx, s.opts.DB, s.opts.Builder, query)
		if err != nil {
			runErr = fmt.Errorf("%s sweep page %d: %w", s.name, res.Pages+1, err)
			break
		}
		if len(page) == 0 {
			break
		}
		res.Pages++

		for _, chat := range page {
			res.Chats++
			handle(ctx, log.With(zap.Int64("chat_id", chat.ChatID)), chat, &res)
		}

		last := page[len(page)-1].ChatID
		query.After = &last
		if len(page) < s.opts.PageSize {
			break
		}
	}

	res.FinishedAt = s.opts.Now().UTC()
	s.metrics.ObserveSweep(s.name, res.Chats, res.FinishedAt.Sub(res.StartedAt), runErr)

	fields := []zap.Field{
		zap.Int("pages", res.Pages),
		zap.Int("chats", res.Chats),
		zap.Int("sent", res.Sent),
		zap.Int("failures", res.Failures),
	}
	if runErr != nil {
		log.Error("sweep aborted", append(fields, zap.Error(runErr))...)
		return res, runErr
	}
	log.Info("sweep finished", fields...)
	return res, nil
}

func (s overdueSweep) stepFailed(log *zap.Logger, res *SweepResult, step string, err error) {
	res.Failures++
	s.metrics.StepFailed(s.name, step)
	log.Warn("sweep step failed", zap.String("step", step), zap.Error(err))
}
