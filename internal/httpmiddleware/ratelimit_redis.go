package httpmiddleware

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisFixedWindow is a Redis-backed per-minute counter so the limit holds
// across instances. Fails open when Redis is unreachable.
type RedisFixedWindow struct {
	client *redis.Client
	prefix string
	limit  int
}

// NewRedisFixedWindow creates a limiter allowing perMinute requests per key.
func NewRedisFixedWindow(client *redis.Client, prefix string, perMinute int) *RedisFixedWindow {
	if prefix == "" {
		prefix = "ratelimit"
	}
	return &RedisFixedWindow{client: client, prefix: prefix, limit: perMinute}
}

// Allow implements Limiter.
func (l *RedisFixedWindow) Allow(ctx context.Context, key string) bool {
	window := time.Now().UTC().Format("200601021504")
	redisKey := l.prefix + ":" + key + ":" + window

	pipe := l.client.TxPipeline()
	count := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, 2*time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return true
	}
	return count.Val() <= int64(l.limit)
}
