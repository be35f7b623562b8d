package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUStore keeps at most size entries, evicting the least recently used ones.
// Entries also expire after ttl, which should be the longest window in use.
type LRUStore struct {
	mutex sync.Mutex
	cache *expirable.LRU[string, Entry]
}

func NewLRUStore(size int, ttl time.Duration) *LRUStore {
	return &LRUStore{
		cache: expirable.NewLRU[string, Entry](size, nil, ttl),
	}
}

func (s *LRUStore) Hit(_ context.Context, key string, limit Limit, now time.Time) (Entry, bool, error) {
	// the cache locks per call only, get + add must be one step
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, found := s.cache.Get(key)
	entry, allowed := step(entry, found, limit, now)
	if allowed {
		s.cache.Add(key, entry)
	}
	return entry, allowed, nil
}

func (s *LRUStore) Len() int {
	return s.cache.Len()
}
