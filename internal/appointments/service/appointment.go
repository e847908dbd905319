package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	appointmentserrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/events"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/repository"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/validator"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/calendar"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/sanitizer"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/telemetry"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Scope selects whose appointments a listing returns.
type Scope int

const (
	// ScopeOwn lists by the caller's role.
	ScopeOwn Scope = iota
	ScopeSeller
	ScopeBuyer
)

type AppointmentService interface {
	Book(ctx context.Context, principal *auth.Principal, req *model.BookingRequest) (*model.AppointmentView, error)
	List(ctx context.Context, principal *auth.Principal, scope Scope) ([]*model.AppointmentView, error)
	UpdateStatus(ctx context.Context, principal *auth.Principal, id string, req *model.StatusUpdateRequest) (*model.AppointmentView, error)
}

type UserLookup interface {
	GetByID(ctx context.Context, id string) (*model.User, error)
}

// EventWriter is the write half of the calendar gateway.
type EventWriter interface {
	CreateEvent(ctx context.Context, principalID string, spec calendar.EventSpec) (*calendar.EventRef, error)
}

type Dependencies struct {
	Repo      repository.AppointmentRepository
	Locker    repository.SlotLocker
	Users     UserLookup
	Calendar  EventWriter
	Validator *validator.AppointmentValidator
	// Booked receives one appointment.booked event per booking.
	Booked kafka.Publisher
	// SyncTasks receives a task for every calendar write that failed.
	SyncTasks kafka.Publisher
	Metrics   metrics.Recorder
}

type appointmentService struct {
	repo      repository.AppointmentRepository
	locker    repository.SlotLocker
	users     UserLookup
	calendar  EventWriter
	validator *validator.AppointmentValidator
	booked    kafka.Publisher
	syncTasks kafka.Publisher
	metrics   metrics.Recorder
	cfg       *config.Config
}

func NewAppointmentService(deps Dependencies, cfg *config.Config) AppointmentService {
	s := &appointmentService{
		repo:      deps.Repo,
		locker:    deps.Locker,
		users:     deps.Users,
		calendar:  deps.Calendar,
		validator: deps.Validator,
		booked:    deps.Booked,
		syncTasks: deps.SyncTasks,
		metrics:   deps.Metrics,
		cfg:       cfg,
	}
	if s.locker == nil {
		s.locker = repository.NopSlotLocker{}
	}
	if s.booked == nil {
		s.booked = kafka.NopPublisher{}
	}
	if s.syncTasks == nil {
		s.syncTasks = kafka.NopPublisher{}
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	return s
}

// writeResult is the outcome of one side of the dual write.
type writeResult struct {
	side        events.Side
	principalID string
	spec        calendar.EventSpec
	ref         *calendar.EventRef
	err         error
}

// Book validates the request, persists the appointment, then mirrors it onto the seller's
// and the buyer's calendars. Only the persist step can fail the booking.
func (s *appointmentService) Book(ctx context.Context, principal *auth.Principal, req *model.BookingRequest) (*model.AppointmentView, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "appointments.Book")
	defer span.End()
	log := s.cfg.Log.FromContext(ctx)

	view, err := s.book(ctx, log, principal, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.RecordBooking(bookingOutcome(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("appointment.id", view.ID))
	s.metrics.RecordBooking(metrics.OutcomeCreated)
	return view, nil
}

func (s *appointmentService) book(ctx context.Context, log *logger.Logger, principal *auth.Principal, req *model.BookingRequest) (*model.AppointmentView, error) {
	if principal == nil {
		return nil, apperrors.Unauthorized("Unauthorized")
	}

	s.sanitize(req)
	if err := s.validator.ValidateBooking(req); err != nil {
		log.Warn("Booking validation failed",
			"buyer_id", principal.ID,
			"seller_id", req.SellerID,
			"error", err,
		)
		return nil, apperrors.InvalidInput("Invalid booking request").WithDetails(map[string]any{
			"errors": err,
		})
	}

	seller, err := s.users.GetByID(ctx, req.SellerID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NotFoundWithID("Seller", req.SellerID)
		}
		return nil, err
	}
	if !seller.IsSeller() {
		return nil, apperrors.NotFoundWithID("Seller", req.SellerID)
	}

	buyer, err := s.users.GetByID(ctx, principal.ID)
	if err != nil {
		if apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, apperrors.NotFoundWithID("Buyer", principal.ID)
		}
		return nil, err
	}

	if ctx.Err() != nil {
		return nil, cancelled()
	}

	lock, err := s.acquireSellerLock(ctx, seller.ID)
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrLockHeld) {
			return nil, apperrors.Conflict("Another booking for this seller is in progress. Please try again.")
		}
		if ctx.Err() != nil {
			return nil, cancelled()
		}
		log.Error("Failed to acquire slot lock", "seller_id", seller.ID, "error", err)
		return nil, apperrors.Persistence("reserve slot", err)
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), lock); err != nil {
			log.Warn("Failed to release slot lock", "lock_id", lock.ID, "error", err)
		}
	}()

	overlapping, err := s.repo.FindOverlapping(ctx, seller.ID, req.StartTime, req.EndTime)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled()
		}
		log.Error("Failed to check overlapping appointments", "seller_id", seller.ID, "error", err)
		return nil, apperrors.Persistence("check availability", err)
	}
	if len(overlapping) > 0 {
		return nil, apperrors.Conflict("The requested time overlaps an existing appointment").WithDetails(map[string]any{
			"appointmentId": overlapping[0].ID,
		})
	}

	if ctx.Err() != nil {
		return nil, cancelled()
	}

	appt := &model.Appointment{
		BuyerID:     buyer.ID,
		SellerID:    seller.ID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime.UTC(),
		EndTime:     req.EndTime.UTC(),
		Status:      model.StatusScheduled,
	}
	if err := s.repo.Create(ctx, appt); err != nil {
		log.Error("Failed to create appointment",
			"buyer_id", buyer.ID,
			"seller_id", seller.ID,
			"error", err,
		)
		return nil, apperrors.Persistence("create appointment", err)
	}

	log.Info("Appointment created",
		"appointment_id", appt.ID,
		"buyer_id", buyer.ID,
		"seller_id", seller.ID,
		"start_time", appt.StartTime,
	)

	// The appointment exists now. The caller going away must not stop the rest.
	syncCtx := context.WithoutCancel(ctx)
	results := s.attemptExternalSync(syncCtx, log, appt, buyer, seller)
	s.finalize(syncCtx, log, appt, results)
	s.publishBooked(syncCtx, log, appt, results)

	return &model.AppointmentView{
		Appointment: appt,
		Buyer:       buyer.Party(),
		Seller:      seller.Party(),
	}, nil
}

// attemptExternalSync writes the seller's event first, since its meeting link is the
// canonical one, then the buyer's. Failures are logged and returned, never raised.
func (s *appointmentService) attemptExternalSync(ctx context.Context, log *logger.Logger, appt *model.Appointment, buyer, seller *model.User) []writeResult {
	spec := calendar.EventSpec{
		Title:       appt.Title,
		Description: appt.Description,
		Start:       appt.StartTime,
		End:         appt.EndTime,
		Attendees: []calendar.Attendee{
			{Email: buyer.Email, Name: buyer.Name},
			{Email: seller.Email, Name: seller.Name},
		},
	}
	if spec.Description == "" {
		spec.Description = fmt.Sprintf("Meeting between %s and %s", displayName(buyer), displayName(seller))
	}

	results := make([]writeResult, 0, 2)
	for _, w := range []struct {
		side      events.Side
		principal string
	}{
		{events.SideSeller, seller.ID},
		{events.SideBuyer, buyer.ID},
	} {
		sideSpec := spec
		sideSpec.IdempotencyKey = events.IdempotencyKey(appt.ID, w.side)

		ref, err := s.calendar.CreateEvent(ctx, w.principal, sideSpec)
		if err != nil {
			s.metrics.RecordCalendarWrite(string(w.side), metrics.OutcomeFailure)
			log.Warn("Calendar event creation failed",
				"appointment_id", appt.ID,
				"side", w.side,
				"principal_id", w.principal,
				"error", err,
			)
			s.enqueueSync(ctx, log, appt, w.side, w.principal, sideSpec, err)
		} else {
			s.metrics.RecordCalendarWrite(string(w.side), metrics.OutcomeSuccess)
		}
		results = append(results, writeResult{side: w.side, principalID: w.principal, spec: sideSpec, ref: ref, err: err})
	}
	return results
}

// finalize stores whatever external ids were obtained. The meeting link comes from the
// seller's event, or from the buyer's when the seller's has none.
func (s *appointmentService) finalize(ctx context.Context, log *logger.Logger, appt *model.Appointment, results []writeResult) {
	var update model.AppointmentUpdate
	for _, r := range results {
		if r.ref == nil {
			continue
		}
		id := r.ref.ID
		switch r.side {
		case events.SideSeller:
			update.ExternalEventID = &id
		case events.SideBuyer:
			update.BuyerExternalEventID = &id
		}
		if update.MeetingLink == nil && r.ref.MeetingLink != "" {
			link := r.ref.MeetingLink
			update.MeetingLink = &link
		}
	}
	if update.IsEmpty() {
		return
	}

	if err := s.repo.Update(ctx, appt.ID, update); err != nil {
		log.Error("Failed to attach calendar events to appointment",
			"appointment_id", appt.ID,
			"error", err,
		)
		// The events exist; a sync task finds them by idempotency key and records them.
		for _, r := range results {
			if r.ref != nil {
				s.enqueueSync(ctx, log, appt, r.side, r.principalID, r.spec, err)
			}
		}
		return
	}

	appt.ExternalEventID = update.ExternalEventID
	appt.BuyerExternalEventID = update.BuyerExternalEventID
	appt.MeetingLink = update.MeetingLink
}

func (s *appointmentService) enqueueSync(ctx context.Context, log *logger.Logger, appt *model.Appointment, side events.Side, principalID string, spec calendar.EventSpec, cause error) {
	if errors.Is(cause, calendar.ErrNotConnected) {
		return
	}

	msg, err := events.NewCalendarSyncMessage(events.NewCalendarSyncTask(appt, side, principalID, spec, cause), logger.RequestIDFromContext(ctx))
	if err == nil {
		err = s.syncTasks.Publish(ctx, msg)
	}
	if err != nil {
		log.Warn("Failed to enqueue calendar sync task",
			"appointment_id", appt.ID,
			"side", side,
			"error", err,
		)
		return
	}
	s.metrics.RecordSyncTask("enqueued")
}

func (s *appointmentService) publishBooked(ctx context.Context, log *logger.Logger, appt *model.Appointment, results []writeResult) {
	evt := events.Booked{
		AppointmentID: appt.ID,
		BuyerID:       appt.BuyerID,
		SellerID:      appt.SellerID,
		Title:         appt.Title,
		StartTime:     appt.StartTime,
		EndTime:       appt.EndTime,
		OccurredAt:    appt.CreatedAt,
	}
	if appt.MeetingLink != nil {
		evt.MeetingLink = *appt.MeetingLink
	}
	for _, r := range results {
		switch r.side {
		case events.SideSeller:
			evt.SellerSynced = r.err == nil
		case events.SideBuyer:
			evt.BuyerSynced = r.err == nil
		}
	}

	msg, err := events.NewBookedMessage(evt, logger.RequestIDFromContext(ctx))
	if err == nil {
		err = s.booked.Publish(ctx, msg)
	}
	if err != nil {
		log.Warn("Failed to publish booking event", "appointment_id", appt.ID, "error", err)
	}
}

func (s *appointmentService) List(ctx context.Context, principal *auth.Principal, scope Scope) ([]*model.AppointmentView, error) {
	if principal == nil {
		return nil, apperrors.Unauthorized("Unauthorized")
	}

	var query model.AppointmentQuery
	switch scope {
	case ScopeSeller:
		if !principal.IsSeller() {
			return nil, apperrors.Forbidden("Only sellers can view seller appointments")
		}
		query.SellerID = principal.ID
	case ScopeBuyer:
		if principal.IsSeller() {
			return nil, apperrors.Forbidden("Only buyers can view buyer appointments")
		}
		query.BuyerID = principal.ID
	default:
		if principal.IsSeller() {
			query.SellerID = principal.ID
		} else {
			query.BuyerID = principal.ID
		}
	}

	appts, err := s.repo.Find(ctx, query)
	if err != nil {
		s.cfg.Log.Error("Failed to list appointments",
			"principal_id", principal.ID,
			"error", err,
		)
		return nil, apperrors.Persistence("list appointments", err)
	}

	return s.populate(ctx, appts), nil
}

func (s *appointmentService) UpdateStatus(ctx context.Context, principal *auth.Principal, id string, req *model.StatusUpdateRequest) (*model.AppointmentView, error) {
	if principal == nil {
		return nil, apperrors.Unauthorized("Unauthorized")
	}
	if err := s.validator.ValidateStatus(req); err != nil {
		return nil, apperrors.InvalidInput("Invalid status").WithDetails(map[string]any{
			"errors": err,
		})
	}

	appt, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrNotFound) || errors.Is(err, appointmentserrors.ErrInvalidID) {
			return nil, apperrors.NotFoundWithID("Appointment", id)
		}
		s.cfg.Log.Error("Failed to get appointment", "appointment_id", id, "error", err)
		return nil, apperrors.Persistence("get appointment", err)
	}

	if principal.ID != appt.BuyerID && principal.ID != appt.SellerID {
		return nil, apperrors.Forbidden("Only participants can change an appointment")
	}
	if !appt.Status.CanTransitionTo(req.Status) {
		return nil, apperrors.Conflict(fmt.Sprintf("Cannot change status from %s to %s", appt.Status, req.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, appt.Status, req.Status); err != nil {
		if errors.Is(err, appointmentserrors.ErrStatusChanged) {
			return nil, apperrors.Conflict("Appointment status changed, reload and try again")
		}
		s.cfg.Log.Error("Failed to update appointment status",
			"appointment_id", id,
			"status", req.Status,
			"error", err,
		)
		return nil, apperrors.Persistence("update appointment", err)
	}

	s.cfg.Log.Info("Appointment status changed",
		"appointment_id", id,
		"from", appt.Status,
		"to", req.Status,
		"principal_id", principal.ID,
	)
	appt.Status = req.Status
	return s.populate(ctx, []*model.Appointment{appt})[0], nil
}

// populate attaches participant display fields. A participant that cannot be loaded is
// shown by id only.
func (s *appointmentService) populate(ctx context.Context, appts []*model.Appointment) []*model.AppointmentView {
	parties := make(map[string]model.Party)
	party := func(id string) model.Party {
		if p, ok := parties[id]; ok {
			return p
		}
		p := model.Party{ID: id}
		if u, err := s.users.GetByID(ctx, id); err == nil {
			p = u.Party()
		} else {
			s.cfg.Log.Warn("Failed to load appointment participant", "user_id", id, "error", err)
		}
		parties[id] = p
		return p
	}

	views := make([]*model.AppointmentView, 0, len(appts))
	for _, a := range appts {
		views = append(views, &model.AppointmentView{
			Appointment: a,
			Buyer:       party(a.BuyerID),
			Seller:      party(a.SellerID),
		})
	}
	return views
}

func (s *appointmentService) sanitize(req *model.BookingRequest) {
	req.SellerID = sanitizer.TrimAndNormalize(req.SellerID)
	req.Title = sanitizer.SanitizeText(req.Title)
	req.Description = sanitizer.SanitizeMultiline(req.Description)
}

// acquireSellerLock waits up to SlotLockWait for the seller's booking lock.
// Bookings of one seller are serialised, so overlapping requests with
// different start times still see each other in FindOverlapping.
func (s *appointmentService) acquireSellerLock(ctx context.Context, sellerID string) (*model.SlotLock, error) {
	key := repository.SellerLockKey(sellerID)
	if s.cfg.SlotLockWait <= 0 {
		return s.locker.Acquire(ctx, key, s.cfg.SlotLockTTL)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 10 * time.Millisecond
	policy.MaxInterval = 200 * time.Millisecond
	policy.MaxElapsedTime = s.cfg.SlotLockWait

	var lock *model.SlotLock
	op := func() error {
		var err error
		lock, err = s.locker.Acquire(ctx, key, s.cfg.SlotLockTTL)
		if err != nil && !errors.Is(err, appointmentserrors.ErrLockHeld) {
			return backoff.Permanent(err)
		}
		return err
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return lock, nil
}

func cancelled() error {
	return apperrors.Timeout("Booking request was cancelled before it was saved")
}

func displayName(u *model.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

func bookingOutcome(err error) string {
	switch apperrors.AsAppError(err).Code {
	case apperrors.CodeConflict:
		return metrics.OutcomeConflict
	case apperrors.CodeInvalidInput, apperrors.CodeUnauthorized:
		return metrics.OutcomeInvalid
	case apperrors.CodeNotFound:
		return metrics.OutcomeNotFound
	case apperrors.CodeTimeout:
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeError
}
