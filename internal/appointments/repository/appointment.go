package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentserrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Appointments"
)

type AppointmentRepository interface {
	Create(ctx context.Context, appt *model.Appointment) error
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	Update(ctx context.Context, id string, update model.AppointmentUpdate) error
	// UpdateStatus moves an appointment from one status to another and fails with
	// ErrStatusChanged when it is no longer in from.
	UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error
	Find(ctx context.Context, query model.AppointmentQuery) ([]*model.Appointment, error)
	// FindOverlapping returns the seller's scheduled appointments intersecting [start, end).
	FindOverlapping(ctx context.Context, sellerID string, start, end time.Time) ([]*model.Appointment, error)
}

type mongoAppointmentRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAppointmentRepository(cfg *config.Config) AppointmentRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAppointmentRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoAppointmentRepository) withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.(mongo.SessionContext); ok {
		return ctx, func() {}
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline && time.Until(deadline) < timeout {
		return context.WithDeadline(ctx, deadline)
	}
	return context.WithTimeout(ctx, timeout)
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", appointmentserrors.ErrInvalidID, id)
	}
	return oid, nil
}

func (r *mongoAppointmentRepository) Create(ctx context.Context, appt *model.Appointment) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	now := time.Now().UTC().Truncate(time.Millisecond)
	appt.CreatedAt = now
	appt.UpdatedAt = now

	result, err := r.collection.InsertOne(ctx, appt)
	if err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		appt.ID = oid.Hex()
	}
	return nil
}

func (r *mongoAppointmentRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}

	var appt model.Appointment
	if err := r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&appt); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", appointmentserrors.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to find appointment: %w", err)
	}
	return &appt, nil
}

func (r *mongoAppointmentRepository) Update(ctx context.Context, id string, update model.AppointmentUpdate) error {
	if update.IsEmpty() {
		return nil
	}

	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	set := bson.M{"updated_at": time.Now().UTC().Truncate(time.Millisecond)}
	if update.ExternalEventID != nil {
		set["external_event_id"] = *update.ExternalEventID
	}
	if update.BuyerExternalEventID != nil {
		set["buyer_external_event_id"] = *update.BuyerExternalEventID
	}
	if update.MeetingLink != nil {
		set["meeting_link"] = *update.MeetingLink
	}
	if update.Status != nil {
		set["status"] = *update.Status
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": set})
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", appointmentserrors.ErrNotFound, id)
	}
	return nil
}

func (r *mongoAppointmentRepository) UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error {
	ctx, cancel := r.withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	oid, err := objectID(id)
	if err != nil {
		return err
	}

	filter := bson.M{"_id": oid, "status": from}
	update := bson.M{"$set": bson.M{
		"status":     to,
		"updated_at": time.Now().UTC().Truncate(time.Millisecond),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to update appointment status: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", appointmentserrors.ErrStatusChanged, id)
	}
	return nil
}

func (r *mongoAppointmentRepository) Find(ctx context.Context, query model.AppointmentQuery) ([]*model.Appointment, error) {
	ctx, cancel := r.withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := bson.M{}
	if query.BuyerID != "" {
		filter["buyer_id"] = query.BuyerID
	}
	if query.SellerID != "" {
		filter["seller_id"] = query.SellerID
	}
	if query.Status != "" {
		filter["status"] = query.Status
	}
	if query.From != nil && query.To != nil {
		filter["start_time"] = bson.M{"$lt": query.To.UTC()}
		filter["end_time"] = bson.M{"$gt": query.From.UTC()}
	}

	opts := options.Find().SetSort(bson.D{{Key: "start_time", Value: -1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer cursor.Close(ctx)

	appointments := []*model.Appointment{}
	if err := cursor.All(ctx, &appointments); err != nil {
		return nil, fmt.Errorf("failed to decode appointments: %w", err)
	}
	return appointments, nil
}

func (r *mongoAppointmentRepository) FindOverlapping(ctx context.Context, sellerID string, start, end time.Time) ([]*model.Appointment, error) {
	return r.Find(ctx, model.AppointmentQuery{
		SellerID: sellerID,
		Status:   model.StatusScheduled,
		From:     &start,
		To:       &end,
	})
}
