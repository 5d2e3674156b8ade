package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCron_RejectsInvalidExpression(t *testing.T) {
	c := NewCron(nil, zap.NewNop())
	_, err := c.Add("broken", "every minute", func(context.Context) error { return nil })
	assert.Error(t, err)
}

func TestCron_RunsAndStops(t *testing.T) {
	c := NewCron(time.UTC, zap.NewNop())

	var runs atomic.Int32
	cancelled := make(chan struct{})
	_, err := c.Add("sweep", "@every 10ms", func(ctx context.Context) error {
		if runs.Add(1) == 1 {
			<-ctx.Done()
			close(cancelled)
		}
		return errors.New("logged, not fatal")
	})
	require.NoError(t, err)
	require.Len(t, c.Entries(), 1)

	c.Start()
	time.Sleep(50 * time.Millisecond)
	c.Stop()

	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("job context was not cancelled on Stop")
	}
	// the first run blocked, so overlapping ticks were skipped
	assert.Equal(t, int32(1), runs.Load())
}
