package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/camden-git/trustytail/metrics"
	"github.com/camden-git/trustytail/telegram"
)

// UpdateHandler processes one inbound update.
type UpdateHandler interface {
	Handle(ctx context.Context, update telegram.Update) error
}

// UpdateDispatcher fans updates out to a fixed pool of workers. Every chat is
// pinned to one worker, so updates of a chat are handled in arrival order while
// different chats proceed in parallel.
type UpdateDispatcher struct {
	queues  []chan telegram.Update
	handler UpdateHandler
	ctx     context.Context
	log     *zap.Logger
	metrics *metrics.Metrics

	wg      sync.WaitGroup
	mu      sync.RWMutex
	stopped bool
}

func NewUpdateDispatcher(ctx context.Context, handler UpdateHandler, numWorkers, queueSize int, log *zap.Logger, m *metrics.Metrics) *UpdateDispatcher {
	if numWorkers <= 0 {
		numWorkers = 1
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	d := &UpdateDispatcher{
		queues:  make([]chan telegram.Update, numWorkers),
		handler: handler,
		ctx:     ctx,
		log:     log,
		metrics: m,
	}
	// each worker gets its share of the total queue capacity
	perWorker := queueSize / numWorkers
	if perWorker < 1 {
		perWorker = 1
	}
	d.wg.Add(numWorkers)
	for i := range d.queues {
		d.queues[i] = make(chan telegram.Update, perWorker)
		go d.worker(i, d.queues[i])
	}
	log.Info("started update workers", zap.Int("workers", numWorkers), zap.Int("queue_size", queueSize))
	return d
}

func (d *UpdateDispatcher) worker(id int, queue <-chan telegram.Update) {
	defer d.wg.Done()
	for update := range queue {
		start := time.Now()
		err := d.handler.Handle(d.ctx, update)
		d.metrics.UpdateHandled(update.Kind(), time.Since(start), err)
		if err != nil {
			d.log.Error("failed to handle update",
				zap.Int("worker", id),
				zap.Int("update_id", update.ID),
				zap.Int64("chat_id", update.ChatID),
				zap.String("kind", update.Kind()),
				zap.Error(err))
		}
	}
	d.log.Debug("update worker stopped", zap.Int("worker", id))
}

func (d *UpdateDispatcher) queueFor(chatID int64) chan telegram.Update {
	n := int64(len(d.queues))
	idx := chatID % n
	if idx < 0 {
		idx += n
	}
	return d.queues[idx]
}

// Dispatch queues update on its chat's worker, blocking while that queue is
// full. It returns false once the dispatcher is stopped.
func (d *UpdateDispatcher) Dispatch(update telegram.Update) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		d.metrics.UpdateDropped()
		d.log.Warn("dropping update, dispatcher stopped", zap.Int("update_id", update.ID), zap.Int64("chat_id", update.ChatID))
		return false
	}
	d.queueFor(update.ChatID) <- update
	return true
}

// Stop rejects new updates, lets workers drain what is queued and waits for them.
func (d *UpdateDispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, q := range d.queues {
		close(q)
	}
	d.mu.Unlock()

	d.log.Info("stopping update workers")
	d.wg.Wait()
	d.log.Info("all update workers stopped")
}
