package repository

import (
	"context"
	"fmt"
	"time"

	appointmentserrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	SlotLockCollectionName = "Slot_locks"
)

// SlotLocker reserves a seller's calendar while a booking is written.
type SlotLocker interface {
	// Acquire returns ErrLockHeld when another live holder owns key.
	Acquire(ctx context.Context, key string, ttl time.Duration) (*model.SlotLock, error)
	Release(ctx context.Context, lock *model.SlotLock) error
}

// SellerLockKey names the lock every booking of sellerID takes. One key per
// seller makes overlapping requests with different start times contend.
func SellerLockKey(sellerID string) string {
	return "slot_lock_" + sellerID
}

type mongoSlotLocker struct {
	cfg        *config.Config
	collection *mongo.Collection
}

// NewMongoSlotLocker relies on _id uniqueness. A TTL index on expires_at removes
// abandoned locks, and an expired lock still present is taken over.
func NewMongoSlotLocker(cfg *config.Config) SlotLocker {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoSlotLocker{
		cfg:        cfg,
		collection: db.Collection(SlotLockCollectionName),
	}
}

func (l *mongoSlotLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (*model.SlotLock, error) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	lock := &model.SlotLock{
		ID:        key,
		Owner:     uuid.NewString(),
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}

	_, err := l.collection.InsertOne(ctx, lock)
	if err == nil {
		return lock, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
	}

	// The TTL monitor runs once a minute, so an expired lock may still be present.
	res, err := l.collection.DeleteOne(ctx, bson.M{"_id": key, "expires_at": bson.M{"$lte": now}})
	if err != nil {
		return nil, fmt.Errorf("failed to clear expired slot lock: %w", err)
	}
	if res.DeletedCount == 0 {
		return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrLockHeld, key)
	}

	if _, err := l.collection.InsertOne(ctx, lock); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrLockHeld, key)
		}
		return nil, fmt.Errorf("failed to acquire slot lock: %w", err)
	}
	return lock, nil
}

func (l *mongoSlotLocker) Release(ctx context.Context, lock *model.SlotLock) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.WriteTimeout)
	defer cancel()

	if _, err := l.collection.DeleteOne(ctx, bson.M{"_id": lock.ID, "owner": lock.Owner}); err != nil {
		return fmt.Errorf("failed to release slot lock: %w", err)
	}
	return nil
}

// NopSlotLocker grants every request. Concurrent bookings of one slot then race to Persist.
type NopSlotLocker struct{}

func (NopSlotLocker) Acquire(_ context.Context, key string, ttl time.Duration) (*model.SlotLock, error) {
	now := time.Now().UTC()
	return &model.SlotLock{ID: key, ExpiresAt: now.Add(ttl), CreatedAt: now}, nil
}

func (NopSlotLocker) Release(context.Context, *model.SlotLock) error { return nil }
