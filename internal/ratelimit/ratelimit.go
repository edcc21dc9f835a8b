package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Limiter caps calls per key over a fixed window. Allow reports whether
// this call is still within budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// RedisLimiter counts with INCR and expires the counter after the window.
// INCR is atomic, so concurrent bursts cannot sneak past the cap. On Redis
// failure it fails open: an unavailable counter store should degrade the
// limit, not the feature.
type RedisLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	log    *zap.Logger
}

func NewRedisLimiter(rdb *redis.Client, limit int, window time.Duration, log *zap.Logger) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: int64(limit), window: window, log: log}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	count, err := l.rdb.Incr(ctx, key).Result()
	if err != nil {
		l.log.Warn("rate limit counter unavailable, failing open", zap.Error(err))
		return true, nil
	}

	if count == 1 {
		l.rdb.Expire(ctx, key, l.window)
	}

	return count <= l.limit, nil
}
