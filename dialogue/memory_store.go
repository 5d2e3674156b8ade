package dialogue

import (
	"context"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps dialogue state in process memory; entries expire after ttl.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(ttl, 2*ttl),
		ttl:   ttl,
	}
}

func (m *MemoryStore) Get(_ context.Context, chatID int64) (State, error) {
	if value, found := m.cache.Get(strconv.FormatInt(chatID, 10)); found {
		if state, ok := value.(State); ok {
			return state, nil
		}
	}
	return Idle, nil
}

func (m *MemoryStore) Set(_ context.Context, chatID int64, state State) error {
	key := strconv.FormatInt(chatID, 10)
	if state == Idle {
		m.cache.Delete(key)
		return nil
	}
	m.cache.Set(key, state, m.ttl)
	return nil
}
