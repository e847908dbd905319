package service

import (
	"context"
	"errors"
	"time"

	availabilityerrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/repository"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/slots"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/validator"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

const dateLayout = "2006-01-02"

type AvailabilityService interface {
	GetSlots(ctx context.Context, sellerID, date string) ([]model.Slot, error)
	ListRules(ctx context.Context, principal *auth.Principal) ([]*model.AvailabilityRule, error)
	ReplaceRules(ctx context.Context, principal *auth.Principal, req *model.AvailabilityReplaceRequest) error
}

// UserLookup resolves the seller whose availability is queried.
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// BusyReader is the read half of the calendar gateway.
type BusyReader interface {
	BusyIntervals(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error)
}

type availabilityService struct {
	repo      repository.AvailabilityRepository
	users     UserLookup
	busy      BusyReader
	validator *validator.AvailabilityValidator
	metrics   metrics.Recorder
	cfg       *config.Config
	now       func() time.Time
}

func NewAvailabilityService(
	repo repository.AvailabilityRepository,
	users UserLookup,
	busy BusyReader,
	validator *validator.AvailabilityValidator,
	recorder metrics.Recorder,
	cfg *config.Config,
) AvailabilityService {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &availabilityService{
		repo:      repo,
		users:     users,
		busy:      busy,
		validator: validator,
		metrics:   recorder,
		cfg:       cfg,
		now:       time.Now,
	}
}

func (s *availabilityService) GetSlots(ctx context.Context, sellerID, date string) ([]model.Slot, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "availability.GetSlots")
	defer span.End()
	span.SetAttributes(attribute.String("seller.id", sellerID), attribute.String("date", date))

	if date == "" {
		return nil, apperrors.InvalidInput("date query parameter is required")
	}
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, apperrors.InvalidInput("date must be formatted as YYYY-MM-DD")
	}

	seller, err := s.users.GetByID(ctx, sellerID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NotFoundWithID("Seller", sellerID)
		}
		return nil, err
	}
	if !seller.IsSeller() {
		return nil, apperrors.NotFoundWithID("Seller", sellerID)
	}

	rule, err := s.repo.RuleFor(ctx, sellerID, int(day.Weekday()))
	if err != nil {
		if errors.Is(err, availabilityerrors.ErrNotFound) {
			return []model.Slot{}, nil
		}
		s.cfg.Log.Error("Failed to load availability rule",
			"seller_id", sellerID,
			"date", date,
			"error", err,
		)
		return nil, apperrors.Persistence("load availability", err)
	}

	busy, ok := s.busyIntervals(ctx, seller, day)
	if !ok {
		return []model.Slot{}, nil
	}

	result, err := slots.Generate(*rule, day, s.now(), busy, s.cfg.SlotDuration)
	if err != nil {
		s.cfg.Log.Error("Stored availability rule is unusable",
			"seller_id", sellerID,
			"rule_id", rule.ID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to compute slots", err)
	}

	s.metrics.RecordSlotsServed(len(result))
	span.SetAttributes(attribute.Int("slots.count", len(result)))
	return result, nil
}

// busyIntervals reads the seller's busy calendar for the whole UTC day. A failed read is
// absorbed: fail_open continues with no busy intervals, fail_closed reports ok=false so
// no slot is offered.
func (s *availabilityService) busyIntervals(ctx context.Context, seller *model.User, day time.Time) ([]model.BusyInterval, bool) {
	if !seller.CalendarConnected || s.busy == nil {
		return nil, true
	}

	start := slots.StartOfDay(day)
	busy, err := s.busy.BusyIntervals(ctx, seller.ID, start, start.Add(24*time.Hour))
	if err == nil {
		return busy, true
	}

	s.metrics.RecordBusyReadFailure()
	s.cfg.Log.FromContext(ctx).Warn("Busy interval read failed",
		"seller_id", seller.ID,
		"date", day.Format(dateLayout),
		"policy", s.cfg.BusyReadPolicy,
		"error", err,
	)
	return nil, s.cfg.BusyReadPolicy != config.BusyReadFailClosed
}

func (s *availabilityService) ListRules(ctx context.Context, principal *auth.Principal) ([]*model.AvailabilityRule, error) {
	if principal == nil {
		return nil, apperrors.Unauthorized("Unauthorized")
	}

	rules, err := s.repo.ListBySeller(ctx, principal.ID)
	if err != nil {
		s.cfg.Log.Error("Failed to list availability",
			"seller_id", principal.ID,
			"error", err,
		)
		return nil, apperrors.Persistence("list availability", err)
	}
	return rules, nil
}

func (s *availabilityService) ReplaceRules(ctx context.Context, principal *auth.Principal, req *model.AvailabilityReplaceRequest) error {
	if principal == nil || !principal.IsSeller() {
		return apperrors.Unauthorized("Unauthorized")
	}
	if req == nil || req.Availability == nil {
		return apperrors.InvalidInput("availability must be an array")
	}

	if err := s.validator.ValidateRules(req.Availability); err != nil {
		s.cfg.Log.Warn("Availability validation failed",
			"seller_id", principal.ID,
			"error", err,
		)
		return apperrors.InvalidInput("Invalid availability").WithDetails(map[string]any{
			"errors": err,
		})
	}

	rules := make([]*model.AvailabilityRule, 0, len(req.Availability))
	for _, in := range req.Availability {
		if !in.IsActive {
			continue
		}
		rules = append(rules, &model.AvailabilityRule{
			DayOfWeek: in.DayOfWeek,
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			IsActive:  true,
		})
	}

	if err := s.repo.Replace(ctx, principal.ID, rules); err != nil {
		s.cfg.Log.Error("Failed to replace availability",
			"seller_id", principal.ID,
			"error", err,
		)
		return apperrors.Persistence("save availability", err)
	}

	s.cfg.Log.Info("Availability updated",
		"seller_id", principal.ID,
		"active_days", len(rules),
	)
	return nil
}
