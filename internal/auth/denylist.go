package auth

import (
	"math"
	"time"

	"github.com/coocood/freecache"
)

// Denylist holds ids of revoked tokens until the tokens expire on their own.
// Entries live in a fixed size cache, the oldest are evicted when it is full.
type Denylist struct {
	cache   *freecache.Cache
	nowFunc func() time.Time
}

type denylistTimer struct {
	nowFunc func() time.Time
}

func (t denylistTimer) Now() uint32 {
	return uint32(t.nowFunc().Unix())
}

func NewDenylist(sizeBytes int) *Denylist {
	return NewDenylistWithClock(sizeBytes, time.Now)
}

func NewDenylistWithClock(sizeBytes int, nowFunc func() time.Time) *Denylist {
	return &Denylist{
		cache:   freecache.NewCacheCustomTimer(sizeBytes, denylistTimer{nowFunc: nowFunc}),
		nowFunc: nowFunc,
	}
}

func (d *Denylist) Revoke(jti string, expiresAt time.Time) error {
	ttlSeconds := int(math.Ceil(expiresAt.Sub(d.nowFunc()).Seconds()))
	if ttlSeconds <= 0 {
		// expired already, nothing to deny
		return nil
	}
	return d.cache.Set([]byte(jti), []byte{1}, ttlSeconds)
}

func (d *Denylist) IsRevoked(jti string) bool {
	_, err := d.cache.Get([]byte(jti))
	return err == nil
}

func (d *Denylist) Count() int64 {
	return d.cache.EntryCount()
}
