package ratelimit

import (
	"context"
	"time"
)

// Entry is the counter of one client key in its current window.
type Entry struct {
	Count     int
	ResetTime time.Time
}

// Store keeps the window entries. Hit must apply the whole check-then-increment
// step atomically, concurrent hits on a key near its limit must never both be admitted.
type Store interface {
	Hit(ctx context.Context, key string, limit Limit, now time.Time) (Entry, bool, error)
}

// step applies one request to the key's entry. A new window starts when there is
// no entry or the old window has passed.
func step(entry Entry, found bool, limit Limit, now time.Time) (Entry, bool) {
	if !found || now.After(entry.ResetTime) {
		return Entry{Count: 1, ResetTime: now.Add(limit.Window)}, true
	}
	if entry.Count >= limit.Max {
		return entry, false
	}
	entry.Count++
	return entry, true
}
