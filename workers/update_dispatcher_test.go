package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/camden-git/trustytail/telegram"
)

type recordingHandler struct {
	mu      sync.Mutex
	perChat map[int64][]int
	delay   time.Duration
}

func (h *recordingHandler) Handle(_ context.Context, u telegram.Update) error {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.perChat[u.ChatID] = append(h.perChat[u.ChatID], u.ID)
	if u.Text == "fail" {
		return errors.New("boom")
	}
	return nil
}

func TestUpdateDispatcher_PreservesPerChatOrder(t *testing.T) {
	h := &recordingHandler{perChat: make(map[int64][]int), delay: time.Millisecond}
	d := NewUpdateDispatcher(context.Background(), h, 3, 6, zap.NewNop(), nil)

	chats := []int64{1, 2, 3, -4, 5}
	id := 0
	for round := 0; round < 10; round++ {
		for _, chat := range chats {
			id++
			require.True(t, d.Dispatch(telegram.Update{ID: id, ChatID: chat}))
		}
	}
	d.Stop()

	for _, chat := range chats {
		ids := h.perChat[chat]
		require.Len(t, ids, 10)
		for i := 1; i < len(ids); i++ {
			assert.Less(t, ids[i-1], ids[i], "chat %d handled out of order", chat)
		}
	}
}

func TestUpdateDispatcher_StopDrainsAndRejects(t *testing.T) {
	h := &recordingHandler{perChat: make(map[int64][]int)}
	d := NewUpdateDispatcher(context.Background(), h, 2, 10, zap.NewNop(), nil)

	require.True(t, d.Dispatch(telegram.Update{ID: 1, ChatID: 7, Text: "fail"}))
	require.True(t, d.Dispatch(telegram.Update{ID: 2, ChatID: 7}))
	d.Stop()
	d.Stop()

	assert.Equal(t, []int{1, 2}, h.perChat[7], "handler errors do not stop the worker")
	assert.False(t, d.Dispatch(telegram.Update{ID: 3, ChatID: 7}))
}
