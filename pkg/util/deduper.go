package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"mailtriage/pkg/logger"
)

// Deduper remembers (handler, id) pairs in redis for ttl.
type Deduper struct {
	rdb    redis.Cmdable
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb redis.Cmdable, ttl time.Duration, l *zap.Logger) *Deduper {
	return &Deduper{
		rdb:    rdb,
		ttl:    ttl,
		logger: logger.OrNop(l),
	}
}

func dedupKey(handler, id string) string {
	return fmt.Sprintf("dedup:%s:%s", handler, id)
}

// AcquireOnce reports whether this is the first time handler sees id.
// When redis is unreachable it returns true so work is not lost.
func (d *Deduper) AcquireOnce(ctx context.Context, handler, id string) bool {
	key := dedupKey(handler, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		logger.WithTrace(ctx, d.logger).Warn("Redis dedup check failed, allowing processing",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.Error(err),
		)
		return true
	}

	if !ok {
		logger.WithTrace(ctx, d.logger).Debug("Skipped duplicated event",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.String("dedup_key", key),
		)
	}
	return ok
}

// Release forgets id so a later AcquireOnce succeeds again.
func (d *Deduper) Release(ctx context.Context, handler, id string) {
	if err := d.rdb.Del(ctx, dedupKey(handler, id)).Err(); err != nil {
		logger.WithTrace(ctx, d.logger).Warn("Redis dedup release failed",
			zap.String("handler", handler),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}
