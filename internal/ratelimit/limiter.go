package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var ErrInvalidLimit = errors.New("invalid rate limit")

// Limit is a fixed window budget: at most Max requests per Window.
type Limit struct {
	Max    int
	Window time.Duration
}

var (
	LoginLimit   = Limit{Max: 5, Window: 15 * time.Minute}
	ContactLimit = Limit{Max: 3, Window: 10 * time.Minute}
)

func (l Limit) validate() error {
	if l.Max <= 0 || l.Window <= 0 {
		return fmt.Errorf("%w: max %d, window %s", ErrInvalidLimit, l.Max, l.Window)
	}
	return nil
}

type Result struct {
	Allowed   bool
	Remaining int
	ResetTime time.Time
	// set only when the request is denied
	RetryAfter time.Duration
}

// RetryAfterSeconds is the retry hint rounded up to whole seconds.
func (r Result) RetryAfterSeconds() int {
	return int(r.RetryAfter / time.Second)
}

// RetryAfterMinutes is the retry hint rounded up to whole minutes.
func (r Result) RetryAfterMinutes() int {
	return int(math.Ceil(r.RetryAfter.Minutes()))
}

// Limiter counts requests per client key in fixed windows. Keys of different call sites
// must be namespaced by the caller (see Key).
type Limiter struct {
	store Store
	// ability to inject time (for unit testing)
	NowFunc func() time.Time
}

func NewLimiter(store Store) *Limiter {
	return &Limiter{
		store:   store,
		NowFunc: time.Now,
	}
}

// Key namespaces a client key so different call sites never share a counter.
func Key(namespace, clientKey string) string {
	return namespace + ":" + clientKey
}

func (l *Limiter) Check(ctx context.Context, key string, limit Limit) (Result, error) {
	if err := limit.validate(); err != nil {
		return Result{}, err
	}

	now := l.NowFunc()
	entry, allowed, err := l.store.Hit(ctx, key, limit, now)
	if err != nil {
		return Result{}, fmt.Errorf("rate limit store hit [%s]: %w", key, err)
	}

	res := Result{
		Allowed:   allowed,
		ResetTime: entry.ResetTime,
	}
	if allowed {
		res.Remaining = max(limit.Max-entry.Count, 0)
		return res, nil
	}

	retryAfterSeconds := math.Ceil(entry.ResetTime.Sub(now).Seconds())
	res.RetryAfter = time.Duration(max(retryAfterSeconds, 0)) * time.Second
	return res, nil
}
