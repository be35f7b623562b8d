package ratelimit

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// MemoryStore is a process local store. Entries of passed windows stay in the map
// until Sweep removes them.
type MemoryStore struct {
	mutex   sync.Mutex
	entries map[string]Entry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]Entry),
	}
}

func (s *MemoryStore) Hit(_ context.Context, key string, limit Limit, now time.Time) (Entry, bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	entry, found := s.entries[key]
	entry, allowed := step(entry, found, limit, now)
	if allowed {
		s.entries[key] = entry
	}
	return entry, allowed, nil
}

// Sweep drops the entries whose window has passed, returns the number removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if now.After(entry.ResetTime) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.entries)
}

// RunSweeper sweeps the store every interval, until ctx is done.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration, nowFunc func() time.Time) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Debugf("rate limit sweeper started, interval: %s", interval)
	for {
		select {
		case <-ctx.Done():
			log.Debugln("rate limit sweeper stopped")
			return
		case <-ticker.C:
			if removed := s.Sweep(nowFunc()); removed > 0 {
				log.Tracef("rate limit sweeper: removed %d stale entries", removed)
			}
		}
	}
}
