package calendar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"github.com/redis/go-redis/v9"
)

const busyKeyPrefix = "busy:"

// BusyCache is the subset of the Redis client the cache needs.
type BusyCache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Incr(ctx context.Context, key string) *redis.IntCmd
}

// CachedGateway keeps successful busy reads in Redis for a short time. Each principal has
// a version counter that a successful event write bumps, so the next read misses.
// Only writes made through this gateway invalidate: events created or moved directly in
// the provider stay invisible until the entry's TTL runs out.
// Redis failures fall through to the wrapped gateway.
type CachedGateway struct {
	next  Gateway
	cache BusyCache
	ttl   time.Duration
	log   *logger.Logger
}

func NewCachedGateway(next Gateway, cache BusyCache, ttl time.Duration, log *logger.Logger) *CachedGateway {
	return &CachedGateway{next: next, cache: cache, ttl: ttl, log: log}
}

func (c *CachedGateway) BusyIntervals(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error) {
	version, err := c.cache.Get(ctx, versionKey(principalID)).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		c.log.FromContext(ctx).Warn("Busy cache unavailable", "principal_id", principalID, "error", err)
		return c.next.BusyIntervals(ctx, principalID, start, end)
	}

	key := fmt.Sprintf("%s%s:%d:%d:%d", busyKeyPrefix, principalID, version, start.Unix(), end.Unix())
	if raw, err := c.cache.Get(ctx, key).Bytes(); err == nil {
		var busy []model.BusyInterval
		if err := json.Unmarshal(raw, &busy); err == nil {
			return busy, nil
		}
	}

	busy, err := c.next.BusyIntervals(ctx, principalID, start, end)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(busy); err == nil {
		if err := c.cache.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.log.FromContext(ctx).Warn("Failed to cache busy intervals", "principal_id", principalID, "error", err)
		}
	}
	return busy, nil
}

func (c *CachedGateway) CreateEvent(ctx context.Context, principalID string, spec EventSpec) (*EventRef, error) {
	ref, err := c.next.CreateEvent(ctx, principalID, spec)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Incr(ctx, versionKey(principalID)).Err(); err != nil {
		c.log.FromContext(ctx).Warn("Failed to invalidate busy cache", "principal_id", principalID, "error", err)
	}
	return ref, nil
}

func versionKey(principalID string) string {
	return busyKeyPrefix + "v:" + principalID
}
