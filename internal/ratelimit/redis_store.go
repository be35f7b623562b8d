package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const redisKeyPrefix = "ratelimit:"

// KEYS[1] counter key, ARGV[1] max, ARGV[2] window in ms
// returns {allowed, count, ttl ms}
var hitScript = redis.NewScript(`
local count = tonumber(redis.call("GET", KEYS[1]) or "0")
local ttl = redis.call("PTTL", KEYS[1])
if count > 0 and ttl < 0 then
	redis.call("DEL", KEYS[1])
	count = 0
end
if count >= tonumber(ARGV[1]) then
	return {0, count, ttl}
end
count = redis.call("INCR", KEYS[1])
if count == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[2])
	ttl = tonumber(ARGV[2])
end
return {1, count, ttl}
`)

// RedisStore shares the counters between service instances. The window is
// tracked by the key expiry, so a key disappears once its window passes.
type RedisStore struct {
	redisClient redis.Scripter
}

func NewRedisStore(redisClient redis.Scripter) *RedisStore {
	return &RedisStore{
		redisClient: redisClient,
	}
}

func (s *RedisStore) Hit(ctx context.Context, key string, limit Limit, now time.Time) (Entry, bool, error) {
	res, err := hitScript.Run(
		ctx,
		s.redisClient,
		[]string{redisKeyPrefix + key},
		limit.Max,
		limit.Window.Milliseconds(),
	).Slice()
	if err != nil {
		return Entry{}, false, fmt.Errorf("run hit script: %w", err)
	}
	if len(res) != 3 {
		return Entry{}, false, fmt.Errorf("unexpected hit script result: %v", res)
	}

	values := make([]int64, len(res))
	for i, v := range res {
		n, ok := v.(int64)
		if !ok {
			return Entry{}, false, fmt.Errorf("unexpected hit script result value [%d]: %v", i, v)
		}
		values[i] = n
	}

	return Entry{
		Count:     int(values[1]),
		ResetTime: now.Add(time.Duration(values[2]) * time.Millisecond),
	}, values[0] == 1, nil
}
