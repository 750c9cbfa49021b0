package slotcache

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/md-rashed-zaman/linkbook/services/booking-service/internal/availability"
	"github.com/redis/go-redis/v9"
)

// Redis shares cached slot lists between instances. Errors degrade to cache misses.
type Redis struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewRedis(rdb *redis.Client, ttl time.Duration, prefix string, logger *slog.Logger) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if strings.TrimSpace(prefix) == "" {
		prefix = "linkbook:slots"
	}
	return &Redis{rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

func (r *Redis) slotsKey(key string) string {
	return r.prefix + ":v:" + key
}

func (r *Redis) genKey(providerID string) string {
	return r.prefix + ":gen:" + providerID
}

func (r *Redis) Get(ctx context.Context, key string) ([]availability.Interval, bool) {
	raw, err := r.rdb.Get(ctx, r.slotsKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("slot cache read failed", "err", err)
		}
		return nil, false
	}
	slots, err := decode(raw)
	if err != nil {
		r.logger.Warn("slot cache entry corrupt", "key", key, "err", err)
		return nil, false
	}
	return slots, true
}

func (r *Redis) Set(ctx context.Context, key string, slots []availability.Interval) {
	raw, err := encode(slots)
	if err != nil {
		return
	}
	if err := r.rdb.Set(ctx, r.slotsKey(key), raw, r.ttl).Err(); err != nil {
		r.logger.Warn("slot cache write failed", "err", err)
	}
}

func (r *Redis) Generation(ctx context.Context, providerID string) int64 {
	n, err := r.rdb.Get(ctx, r.genKey(providerID)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.logger.Warn("slot cache generation read failed", "err", err)
		}
		return 0
	}
	return n
}

func (r *Redis) Bump(ctx context.Context, providerID string) {
	if err := r.rdb.Incr(ctx, r.genKey(providerID)).Err(); err != nil {
		r.logger.Error("slot cache invalidation failed", "provider_id", providerID, "err", err)
	}
}
