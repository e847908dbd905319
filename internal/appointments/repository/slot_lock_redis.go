package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentserrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the key only while it still holds the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisSlotLocker struct {
	rdb redis.Cmdable
}

// NewRedisSlotLocker shares locks across replicas through SET NX PX with a per-holder token.
func NewRedisSlotLocker(rdb redis.Cmdable) SlotLocker {
	return &redisSlotLocker{rdb: rdb}
}

func (l *redisSlotLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*model.SlotLock, error) {
	now := time.Now().UTC()
	lock := &model.SlotLock{
		ID:        key,
		Owner:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	ok, err := l.rdb.SetNX(ctx, key, lock.Owner, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrLockHeld, key)
	}
	return lock, nil
}

func (l *redisSlotLocker) Release(ctx context.Context, lock *model.SlotLock) error {
	if err := releaseScript.Run(ctx, l.rdb, []string{lock.ID}, lock.Owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release slot lock: %w", err)
	}
	return nil
}
