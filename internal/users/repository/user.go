package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	userserrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/users/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Users"
)

type UserRepository interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindSellers(ctx context.Context) ([]*model.User, error)
	UpdateRole(ctx context.Context, id string, role model.Role) error

	// Credential and UpdateCredential lend the stored OAuth tokens to the calendar gateway.
	// A user who never connected a calendar gets an empty credential.
	Credential(ctx context.Context, id string) (*model.CalendarCredential, error)
	UpdateCredential(ctx context.Context, id string, cred *model.CalendarCredential) error
}

type mongoUserRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoUserRepository(cfg *config.Config) UserRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoUserRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoUserRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", userserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var user model.User
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&user); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", userserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return &user, nil
}

func (r *mongoUserRepository) FindSellers(ctx context.Context) ([]*model.User, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{
		"role":               model.RoleSeller,
		"calendar_connected": true,
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetProjection(bson.M{"access_token": 0, "refresh_token": 0, "token_expiry": 0})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query sellers: %w", err)
	}
	defer cursor.Close(ctx)

	sellers := []*model.User{}
	if err := cursor.All(ctx, &sellers); err != nil {
		return nil, fmt.Errorf("failed to decode sellers: %w", err)
	}
	return sellers, nil
}

func (r *mongoUserRepository) UpdateRole(ctx context.Context, id string, role model.Role) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	update := bson.M{"$set": bson.M{
		"role":       role,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, update)
	if err != nil {
		return fmt.Errorf("failed to update user role: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", userserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoUserRepository) Credential(ctx context.Context, id string) (*model.CalendarCredential, error) {
	user, err := r.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	cred := &model.CalendarCredential{
		AccessToken:  user.AccessToken,
		RefreshToken: user.RefreshToken,
	}
	if user.TokenExpiry != nil {
		cred.Expiry = *user.TokenExpiry
	}
	return cred, nil
}

// UpdateCredential stores a refreshed token set. An empty refresh token keeps the stored one,
// since Google omits it on most refresh responses.
func (r *mongoUserRepository) UpdateCredential(ctx context.Context, id string, cred *model.CalendarCredential) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	set := bson.M{
		"access_token": cred.AccessToken,
		"token_expiry": cred.Expiry.UTC(),
		"updated_at":   time.Now().UTC().Truncate(time.Millisecond),
	}
	if cred.RefreshToken != "" {
		set["refresh_token"] = cred.RefreshToken
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update calendar credential: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", userserrors.ErrNotFound, id)
	}
	return nil
}
