package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	availabilityerrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	mongotx "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/db/mongo"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Availability"
)

type AvailabilityRepository interface {
	// RuleFor returns the active rule of a seller for one weekday, or ErrNotFound.
	RuleFor(ctx context.Context, sellerID string, dayOfWeek int) (*model.AvailabilityRule, error)
	ListBySeller(ctx context.Context, sellerID string) ([]*model.AvailabilityRule, error)
	// Replace swaps the seller's whole template atomically.
	Replace(ctx context.Context, sellerID string, rules []*model.AvailabilityRule) error
}

type mongoAvailabilityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
	txManager  mongotx.TransactionManager
}

func NewMongoAvailabilityRepository(cfg *config.Config) AvailabilityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAvailabilityRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
		txManager:  mongotx.NewTransactionManager(cfg.Client.Mongo),
	}
}

// withTimeout leaves a SessionContext untouched; wrapping it would detach the transaction.
func (r *mongoAvailabilityRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func (r *mongoAvailabilityRepository) RuleFor(ctx context.Context, sellerID string, dayOfWeek int) (*model.AvailabilityRule, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"seller_id":   sellerID,
		"day_of_week": dayOfWeek,
		"is_active":   true,
	}

	var rule model.AvailabilityRule
	if err := r.collection.FindOne(ctx, filter).Decode(&rule); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: seller %s day %d", availabilityerrors.ErrNotFound, sellerID, dayOfWeek)
		}
		return nil, fmt.Errorf("failed to find availability rule: %w", err)
	}
	return &rule, nil
}

func (r *mongoAvailabilityRepository) ListBySeller(ctx context.Context, sellerID string) ([]*model.AvailabilityRule, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "day_of_week", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"seller_id": sellerID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query availability: %w", err)
	}
	defer cursor.Close(ctx)

	rules := []*model.AvailabilityRule{}
	if err := cursor.All(ctx, &rules); err != nil {
		return nil, fmt.Errorf("failed to decode availability: %w", err)
	}
	return rules, nil
}

func (r *mongoAvailabilityRepository) Replace(ctx context.Context, sellerID string, rules []*model.AvailabilityRule) error {
	return r.txManager.ExecuteTransaction(ctx, func(sessCtx mongo.SessionContext) error {
		if _, err := r.collection.DeleteMany(sessCtx, bson.M{"seller_id": sellerID}); err != nil {
			return fmt.Errorf("failed to clear availability: %w", err)
		}
		if len(rules) == 0 {
			return nil
		}

		now := time.Now().UTC().Truncate(time.Millisecond)
		docs := make([]any, 0, len(rules))
		for _, rule := range rules {
			rule.SellerID = sellerID
			rule.CreatedAt = now
			rule.UpdatedAt = now
			docs = append(docs, rule)
		}

		if _, err := r.collection.InsertMany(sessCtx, docs); err != nil {
			return fmt.Errorf("failed to insert availability: %w", err)
		}
		return nil
	})
}
