package limiter

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/showdeck/access/internal/apperr"
)

// slidingScript keeps one sorted set per key, scored by event time in
// milliseconds. It trims entries older than the window, counts what is left
// and only then admits and records the new event, all inside one atomic
// script evaluation.
//
// KEYS[1] = rate limit key
// ARGV[1] = now (unix ms)
// ARGV[2] = window length (ms)
// ARGV[3] = budget
// ARGV[4] = unique member for this event
// Returns 1 when admitted, 0 when over budget.
var slidingScript = redis.NewScript(`
    local key = KEYS[1]
    local now_ms = tonumber(ARGV[1])
    local window_ms = tonumber(ARGV[2])
    local budget = tonumber(ARGV[3])

    redis.call('ZREMRANGEBYSCORE', key, 0, now_ms - window_ms)
    local count = redis.call('ZCARD', key)
    if count >= budget then
        return 0
    end
    redis.call('ZADD', key, now_ms, ARGV[4])
    redis.call('PEXPIRE', key, window_ms)
    return 1
`)

// RedisWindow is a Redis-backed sliding-window limiter for deployments where
// several nodes must share one budget.
type RedisWindow struct {
	rdb    *redis.Client
	prefix string
	budget int
	span   time.Duration
}

// NewRedisWindow builds a Redis limiter. The prefix namespaces keys so the
// actor and destination limiters never collide in one database.
func NewRedisWindow(rdb *redis.Client, prefix string, budget int, span time.Duration) *RedisWindow {
	return &RedisWindow{rdb: rdb, prefix: prefix, budget: budget, span: span}
}

// Allow runs the sliding-window script for the key. Redis errors are
// returned as-is so the caller can decide whether to fail open or closed.
func (l *RedisWindow) Allow(ctx context.Context, key string) error {
	now := time.Now().UnixMilli()
	member := uuid.NewString()
	res, err := slidingScript.Run(ctx, l.rdb,
		[]string{l.prefix + ":" + key},
		now, l.span.Milliseconds(), l.budget, member).Int64()
	if err != nil {
		return err
	}
	if res != 1 {
		return apperr.ErrRateLimit
	}
	return nil
}
