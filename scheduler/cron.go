package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}

// Cron runs jobs on standard five-field cron expressions. Jobs receive a
// context that is cancelled by Stop; a job still running when its next tick
// arrives causes that tick to be skipped.
type Cron struct {
	c      *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
	log    *zap.Logger
}

func NewCron(loc *time.Location, log *zap.Logger) *Cron {
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{log: log.Named("cron").Sugar()}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	ctx, cancel := context.WithCancel(context.Background())
	return &Cron{c: c, ctx: ctx, cancel: cancel, log: log}
}

// Add schedules fn under name; errors returned by fn are logged.
func (cr *Cron) Add(name, expr string, fn func(ctx context.Context) error) (cron.EntryID, error) {
	return cr.c.AddFunc(expr, func() {
		if err := fn(cr.ctx); err != nil {
			cr.log.Error("scheduled job failed", zap.String("job", name), zap.Error(err))
		}
	})
}

func (cr *Cron) Start() { cr.c.Start() }

// Stop prevents further runs, cancels the context of running jobs and waits for them to return.
func (cr *Cron) Stop() {
	done := cr.c.Stop()
	cr.cancel()
	<-done.Done()
}

func (cr *Cron) Entries() []cron.Entry { return cr.c.Entries() }
