// Package ratelimiter implements the fixed-window per-tenant counter
// described in spec §4.3, backed by the shared Redis cache. INCR and
// EXPIRE are issued together as a single MULTI/EXEC round trip. EXPIRE
// is sent on every call and resets the key's TTL to one window; each
// window has its own key, so this never resets a window's count.
package ratelimiter

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/pulsestream/pulsestream/internal/apierrors"
)

const window = 60 * time.Second

// Decision is the result of one CheckAndIncrement call (spec §4.3).
type Decision struct {
	Allowed       bool
	Current       int64
	Limit         int
	Remaining     int64
	ResetSeconds  int
	DegradedAdmit bool // true when the cache was unreachable and FailOpen admitted the request
}

// Limiter checks and increments the per-tenant fixed window counter.
type Limiter struct {
	redis    *redis.Client
	failOpen bool
}

// New builds a Limiter. failOpen governs spec §4.3's failure policy:
// when the cache is unreachable, true admits the request (logged as
// degraded-mode admission), false rejects it with KindCacheUnavailable.
func New(rdb *redis.Client, failOpen bool) *Limiter {
	return &Limiter{redis: rdb, failOpen: failOpen}
}

func windowKey(tenantID uuid.UUID, now time.Time) string {
	bucket := now.Unix() / int64(window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%d", tenantID, bucket)
}

// CheckAndIncrement atomically increments the current window's counter
// for tenantID and evaluates it against limit. A rejected request still
// counts as an attempt: the increment is never rolled back (spec §4.3
// step 2).
func (l *Limiter) CheckAndIncrement(ctx context.Context, tenantID uuid.UUID, limit int) (Decision, error) {
	now := time.Now()
	key := windowKey(tenantID, now)

	pipe := l.redis.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)

	if err != nil {
		return l.handleUnavailable(limit, err)
	}

	current := incr.Val()
	resetSeconds := window.Seconds() - float64(now.Unix()%int64(window.Seconds()))

	remaining := int64(limit) - current
	if remaining < 0 {
		remaining = 0
	}

	return Decision{
		Allowed:      current <= int64(limit),
		Current:      current,
		Limit:        limit,
		Remaining:    remaining,
		ResetSeconds: int(resetSeconds),
	}, nil
}

func (l *Limiter) handleUnavailable(limit int, cause error) (Decision, error) {
	if l.failOpen {
		log.Warn().Err(cause).Msg("rate limiter cache unavailable; admitting request (fail-open, degraded mode)")
		return Decision{
			Allowed:       true,
			Limit:         limit,
			DegradedAdmit: true,
		}, nil
	}
	return Decision{}, apierrors.Wrap(apierrors.KindCacheUnavailable, "rate limiter cache unavailable", cause)
}
