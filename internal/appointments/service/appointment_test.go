package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
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

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryRepository keeps appointments in a map. The func fields override single calls.
type memoryRepository struct {
	mu     sync.Mutex
	byID   map[string]*model.Appointment
	nextID int

	createFunc      func(ctx context.Context, appt *model.Appointment) error
	updateFunc      func(ctx context.Context, id string, update model.AppointmentUpdate) error
	overlappingFunc func(ctx context.Context, sellerID string, start, end time.Time) ([]*model.Appointment, error)
	updates         []model.AppointmentUpdate
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{byID: make(map[string]*model.Appointment)}
}

func (m *memoryRepository) Create(ctx context.Context, appt *model.Appointment) error {
	if m.createFunc != nil {
		if err := m.createFunc(ctx, appt); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	appt.ID = "appt" + string(rune('0'+m.nextID))
	appt.CreatedAt = time.Now().UTC()
	appt.UpdatedAt = appt.CreatedAt
	stored := *appt
	m.byID[appt.ID] = &stored
	return nil
}

func (m *memoryRepository) FindByID(ctx context.Context, id string) (*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return nil, appointmentserrors.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *memoryRepository) Update(ctx context.Context, id string, update model.AppointmentUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, update)
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, update)
	}
	a, ok := m.byID[id]
	if !ok {
		return appointmentserrors.ErrNotFound
	}
	if update.ExternalEventID != nil {
		a.ExternalEventID = update.ExternalEventID
	}
	if update.BuyerExternalEventID != nil {
		a.BuyerExternalEventID = update.BuyerExternalEventID
	}
	if update.MeetingLink != nil {
		a.MeetingLink = update.MeetingLink
	}
	return nil
}

func (m *memoryRepository) UpdateStatus(ctx context.Context, id string, from, to model.AppointmentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.byID[id]
	if !ok {
		return appointmentserrors.ErrNotFound
	}
	if a.Status != from {
		return appointmentserrors.ErrStatusChanged
	}
	a.Status = to
	return nil
}

func (m *memoryRepository) Find(ctx context.Context, query model.AppointmentQuery) ([]*model.Appointment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Appointment
	for _, a := range m.byID {
		if query.SellerID != "" && a.SellerID != query.SellerID {
			continue
		}
		if query.BuyerID != "" && a.BuyerID != query.BuyerID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memoryRepository) FindOverlapping(ctx context.Context, sellerID string, start, end time.Time) ([]*model.Appointment, error) {
	if m.overlappingFunc != nil {
		return m.overlappingFunc(ctx, sellerID, start, end)
	}
	return m.scanOverlapping(sellerID, start, end), nil
}

func (m *memoryRepository) scanOverlapping(sellerID string, start, end time.Time) []*model.Appointment {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Appointment
	for _, a := range m.byID {
		if a.SellerID == sellerID && a.Status == model.StatusScheduled && a.StartTime.Before(end) && a.EndTime.After(start) {
			out = append(out, a)
		}
	}
	return out
}

func (m *memoryRepository) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byID)
}

type memoryLocker struct {
	mu   sync.Mutex
	held map[string]bool
	// contended receives a signal each time Acquire finds the key taken.
	contended chan struct{}
}

func (l *memoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (*model.SlotLock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] {
		select {
		case l.contended <- struct{}{}:
		default:
		}
		return nil, appointmentserrors.ErrLockHeld
	}
	l.held[key] = true
	return &model.SlotLock{ID: key, Owner: "test", ExpiresAt: time.Now().Add(ttl)}, nil
}

func (l *memoryLocker) Release(_ context.Context, lock *model.SlotLock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, lock.ID)
	return nil
}

type stubUsers map[string]*model.User

func (s stubUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := s[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFoundWithID("User", id)
}

type fakeCalendar struct {
	mu        sync.Mutex
	calls     []calendar.EventSpec
	principal []string
	createFn  func(principalID string, spec calendar.EventSpec) (*calendar.EventRef, error)
}

func (f *fakeCalendar) CreateEvent(ctx context.Context, principalID string, spec calendar.EventSpec) (*calendar.EventRef, error) {
	f.mu.Lock()
	f.calls = append(f.calls, spec)
	f.principal = append(f.principal, principalID)
	f.mu.Unlock()
	if f.createFn != nil {
		return f.createFn(principalID, spec)
	}
	return &calendar.EventRef{ID: spec.IdempotencyKey, MeetingLink: "https://meet.google.com/" + principalID}, nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []kafka.Message
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, msg kafka.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.messages = append(p.messages, msg)
	return nil
}

type bookingRecorder struct {
	metrics.Nop
	mu       sync.Mutex
	outcomes []string
	writes   map[string]string
}

func (r *bookingRecorder) RecordBooking(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

func (r *bookingRecorder) RecordCalendarWrite(side, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.writes[side] = outcome
}

var (
	slotStart = time.Date(2030, 1, 7, 10, 0, 0, 0, time.UTC)
	slotEnd   = slotStart.Add(time.Hour)

	buyerPrincipal  = &auth.Principal{ID: "buyer", Role: model.RoleBuyer, Email: "bob@example.com", Name: "Bob"}
	sellerPrincipal = &auth.Principal{ID: "seller", Role: model.RoleSeller, Email: "sam@example.com", Name: "Sam"}
)

type bookingFixture struct {
	repo      *memoryRepository
	locker    repository.SlotLocker
	calendar  *fakeCalendar
	booked    *recordingPublisher
	syncTasks *recordingPublisher
	recorder  *bookingRecorder
	svc       AppointmentService
}

func newBookingFixture(t *testing.T, locker repository.SlotLocker) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		repo:      newMemoryRepository(),
		locker:    locker,
		calendar:  &fakeCalendar{},
		booked:    &recordingPublisher{},
		syncTasks: &recordingPublisher{},
		recorder:  &bookingRecorder{writes: map[string]string{}},
	}
	users := stubUsers{
		"seller": {ID: "seller", Role: model.RoleSeller, Email: "sam@example.com", Name: "Sam", CalendarConnected: true},
		"buyer":  {ID: "buyer", Role: model.RoleBuyer, Email: "bob@example.com", Name: "Bob", CalendarConnected: true},
		"other":  {ID: "other", Role: model.RoleBuyer, Email: "olga@example.com"},
	}
	cfg := &config.Config{Log: logger.Discard(), SlotLockTTL: 30 * time.Second, SlotLockWait: 500 * time.Millisecond}
	f.svc = NewAppointmentService(Dependencies{
		Repo:      f.repo,
		Locker:    locker,
		Users:     users,
		Calendar:  f.calendar,
		Validator: validator.NewAppointmentValidator(),
		Booked:    f.booked,
		SyncTasks: f.syncTasks,
		Metrics:   f.recorder,
	}, cfg)
	return f
}

func bookingRequest() *model.BookingRequest {
	return &model.BookingRequest{
		SellerID:  "seller",
		Title:     "Intro call",
		StartTime: slotStart,
		EndTime:   slotEnd,
	}
}

func TestBook_BothCalendarsSucceed(t *testing.T) {
	f := newBookingFixture(t, nil)

	view, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusScheduled, view.Status)
	assert.Equal(t, "buyer", view.BuyerID)
	assert.Equal(t, "Sam", view.Seller.Name)
	assert.Equal(t, "Bob", view.Buyer.Name)
	require.NotNil(t, view.ExternalEventID)
	require.NotNil(t, view.BuyerExternalEventID)
	require.NotNil(t, view.MeetingLink)
	assert.Equal(t, events.IdempotencyKey(view.ID, events.SideSeller), *view.ExternalEventID)
	assert.Equal(t, events.IdempotencyKey(view.ID, events.SideBuyer), *view.BuyerExternalEventID)
	assert.Equal(t, "https://meet.google.com/seller", *view.MeetingLink, "seller link wins")

	require.Len(t, f.calendar.principal, 2)
	assert.Equal(t, []string{"seller", "buyer"}, f.calendar.principal)
	assert.Equal(t, "Meeting between Bob and Sam", f.calendar.calls[0].Description)
	assert.Len(t, f.calendar.calls[0].Attendees, 2)

	stored, err := f.repo.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	assert.Equal(t, *view.MeetingLink, *stored.MeetingLink)
	assert.Len(t, f.repo.updates, 1)

	assert.Empty(t, f.syncTasks.messages)
	require.Len(t, f.booked.messages, 1)
	assert.Equal(t, []string{metrics.OutcomeCreated}, f.recorder.outcomes)
}

func TestBook_SellerCalendarFailsBuyerLinkUsed(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.calendar.createFn = func(principalID string, spec calendar.EventSpec) (*calendar.EventRef, error) {
		if principalID == "seller" {
			return nil, calendar.ErrCalendarWrite
		}
		return &calendar.EventRef{ID: "buyer-event", MeetingLink: "https://meet.google.com/buyer"}, nil
	}

	view, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)

	assert.Nil(t, view.ExternalEventID)
	require.NotNil(t, view.BuyerExternalEventID)
	assert.Equal(t, "buyer-event", *view.BuyerExternalEventID)
	require.NotNil(t, view.MeetingLink)
	assert.Equal(t, "https://meet.google.com/buyer", *view.MeetingLink)

	require.Len(t, f.syncTasks.messages, 1, "the failed seller side is retried asynchronously")
	assert.Equal(t, metrics.OutcomeFailure, f.recorder.writes["seller"])
	assert.Equal(t, metrics.OutcomeSuccess, f.recorder.writes["buyer"])
}

func TestBook_BuyerCalendarFailsSellerLinkKept(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.calendar.createFn = func(principalID string, spec calendar.EventSpec) (*calendar.EventRef, error) {
		if principalID == "buyer" {
			return nil, calendar.ErrCalendarWrite
		}
		return &calendar.EventRef{ID: "seller-event", MeetingLink: "https://meet.google.com/seller"}, nil
	}

	view, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)

	assert.Equal(t, model.StatusScheduled, view.Status)
	require.NotNil(t, view.ExternalEventID)
	assert.Equal(t, "seller-event", *view.ExternalEventID)
	assert.Nil(t, view.BuyerExternalEventID)
	require.NotNil(t, view.MeetingLink)
	assert.Equal(t, "https://meet.google.com/seller", *view.MeetingLink)

	require.Len(t, f.syncTasks.messages, 1, "only the buyer side is retried")
	var task events.CalendarSyncTask
	require.NoError(t, f.syncTasks.messages[0].DecodeValue(&task))
	assert.Equal(t, events.SideBuyer, task.Side)
	assert.Equal(t, "buyer", task.PrincipalID)
	assert.Equal(t, metrics.OutcomeSuccess, f.recorder.writes["seller"])
	assert.Equal(t, metrics.OutcomeFailure, f.recorder.writes["buyer"])

	stored, err := f.repo.FindByID(context.Background(), view.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.MeetingLink)
	assert.Equal(t, "https://meet.google.com/seller", *stored.MeetingLink)
}

func TestBook_BothCalendarsFail(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.calendar.createFn = func(string, calendar.EventSpec) (*calendar.EventRef, error) {
		return nil, calendar.ErrCalendarUnavailable
	}

	view, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err, "calendar failures never fail a booking")

	assert.Nil(t, view.ExternalEventID)
	assert.Nil(t, view.BuyerExternalEventID)
	assert.Nil(t, view.MeetingLink)
	assert.Empty(t, f.repo.updates, "nothing to attach")
	assert.Len(t, f.syncTasks.messages, 2)
	assert.Equal(t, 1, f.repo.count())
}

func TestBook_NotConnectedIsNotRetried(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.calendar.createFn = func(principalID string, spec calendar.EventSpec) (*calendar.EventRef, error) {
		if principalID == "buyer" {
			return nil, calendar.ErrNotConnected
		}
		return &calendar.EventRef{ID: "seller-event"}, nil
	}

	view, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)

	assert.Nil(t, view.MeetingLink)
	assert.Empty(t, f.syncTasks.messages)
}

func TestBook_AttachFailureEnqueuesSucceededSides(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.repo.updateFunc = func(context.Context, string, model.AppointmentUpdate) error {
		return errors.New("write concern timeout")
	}

	view, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)

	assert.Nil(t, view.ExternalEventID, "in-memory appointment mirrors the store")
	assert.Len(t, f.syncTasks.messages, 2)
}

func TestBook_PublishFailuresAreAbsorbed(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.booked.err = errors.New("broker down")
	f.syncTasks.err = errors.New("broker down")
	f.calendar.createFn = func(string, calendar.EventSpec) (*calendar.EventRef, error) {
		return nil, calendar.ErrCalendarWrite
	}

	_, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)
}

func TestBook_KeepsProvidedDescription(t *testing.T) {
	f := newBookingFixture(t, nil)
	req := bookingRequest()
	req.Title = "<b>Intro</b>   call"
	req.Description = "Agenda:\r\n\r\n\r\n<script>x</script>pricing"

	view, err := f.svc.Book(context.Background(), buyerPrincipal, req)
	require.NoError(t, err)

	assert.Equal(t, "Intro call", view.Title)
	assert.Equal(t, "Agenda:\n\npricing", view.Description)
	assert.Equal(t, view.Description, f.calendar.calls[0].Description)
}

func TestBook_Errors(t *testing.T) {
	tests := []struct {
		name      string
		principal *auth.Principal
		mutate    func(*model.BookingRequest)
		code      string
		outcome   string
	}{
		{"no principal", nil, func(*model.BookingRequest) {}, apperrors.CodeUnauthorized, metrics.OutcomeInvalid},
		{"missing title", buyerPrincipal, func(r *model.BookingRequest) { r.Title = "  " }, apperrors.CodeInvalidInput, metrics.OutcomeInvalid},
		{"end before start", buyerPrincipal, func(r *model.BookingRequest) { r.EndTime = r.StartTime.Add(-time.Minute) }, apperrors.CodeInvalidInput, metrics.OutcomeInvalid},
		{"unknown seller", buyerPrincipal, func(r *model.BookingRequest) { r.SellerID = "ghost" }, apperrors.CodeNotFound, metrics.OutcomeNotFound},
		{"seller is a buyer", buyerPrincipal, func(r *model.BookingRequest) { r.SellerID = "other" }, apperrors.CodeNotFound, metrics.OutcomeNotFound},
		{"unknown buyer", &auth.Principal{ID: "ghost", Role: model.RoleBuyer}, func(*model.BookingRequest) {}, apperrors.CodeNotFound, metrics.OutcomeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newBookingFixture(t, nil)
			req := bookingRequest()
			tt.mutate(req)

			_, err := f.svc.Book(context.Background(), tt.principal, req)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, []string{tt.outcome}, f.recorder.outcomes)
			assert.Zero(t, f.repo.count())
			assert.Empty(t, f.calendar.calls)
		})
	}
}

func TestBook_OverlapIsConflict(t *testing.T) {
	f := newBookingFixture(t, nil)
	_, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)

	req := bookingRequest()
	req.StartTime = slotStart.Add(30 * time.Minute)
	req.EndTime = slotEnd.Add(30 * time.Minute)
	_, err = f.svc.Book(context.Background(), buyerPrincipal, req)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Equal(t, 1, f.repo.count())
}

func TestBook_AdjacentSlotsDoNotConflict(t *testing.T) {
	f := newBookingFixture(t, nil)
	_, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)

	req := bookingRequest()
	req.StartTime = slotEnd
	req.EndTime = slotEnd.Add(time.Hour)
	_, err = f.svc.Book(context.Background(), buyerPrincipal, req)

	require.NoError(t, err)
	assert.Equal(t, 2, f.repo.count())
}

func TestBook_PersistFailure(t *testing.T) {
	f := newBookingFixture(t, nil)
	f.repo.createFunc = func(context.Context, *model.Appointment) error {
		return errors.New("E11000 duplicate key")
	}

	_, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.Error(t, err)

	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeInternal, appErr.Code)
	assert.Equal(t, apperrors.GenericInternalMessage, appErr.PublicMessage())
	assert.Empty(t, f.calendar.calls, "no calendar writes without a stored appointment")
	assert.Empty(t, f.booked.messages)
}

func TestBook_CancelledBeforePersist(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.repo.overlappingFunc = func(context.Context, string, time.Time, time.Time) ([]*model.Appointment, error) {
		cancel()
		return nil, nil
	}

	_, err := f.svc.Book(ctx, buyerPrincipal, bookingRequest())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeTimeout))
	assert.Equal(t, 504, apperrors.AsAppError(err).StatusCode())
	assert.Zero(t, f.repo.count())
	assert.Equal(t, []string{metrics.OutcomeTimeout}, f.recorder.outcomes)
}

func TestBook_CancelAfterPersistStillSyncs(t *testing.T) {
	f := newBookingFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	f.repo.createFunc = func(context.Context, *model.Appointment) error {
		cancel()
		return nil
	}
	f.calendar.createFn = func(principalID string, spec calendar.EventSpec) (*calendar.EventRef, error) {
		return &calendar.EventRef{ID: spec.IdempotencyKey}, nil
	}

	view, err := f.svc.Book(ctx, buyerPrincipal, bookingRequest())
	require.NoError(t, err)
	assert.NotNil(t, view.ExternalEventID)
	assert.Len(t, f.calendar.calls, 2)
}

func TestBook_ConcurrentWithoutGuardDoubleBooks(t *testing.T) {
	f := newBookingFixture(t, repository.NopSlotLocker{})

	var arrived sync.WaitGroup
	arrived.Add(2)
	f.repo.overlappingFunc = func(context.Context, string, time.Time, time.Time) ([]*model.Appointment, error) {
		arrived.Done()
		arrived.Wait()
		return nil, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
		}(i)
	}
	wg.Wait()

	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])
	assert.Equal(t, 2, f.repo.count())
}

func TestBook_HeldSlotLockIsConflict(t *testing.T) {
	locker := &memoryLocker{held: map[string]bool{}}
	f := newBookingFixture(t, locker)

	held, err := locker.Acquire(context.Background(), repository.SellerLockKey("seller"), time.Minute)
	require.NoError(t, err)

	_, err = f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	assert.Zero(t, f.repo.count())

	require.NoError(t, locker.Release(context.Background(), held))
	_, err = f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)
	assert.Empty(t, locker.held, "lock released after booking")
}

func TestBook_ConcurrentOverlapWithDifferentStartIsConflict(t *testing.T) {
	locker := &memoryLocker{held: map[string]bool{}, contended: make(chan struct{}, 1)}
	f := newBookingFixture(t, locker)

	entered := make(chan struct{})
	proceed := make(chan struct{})
	var calls atomic.Int32
	f.repo.overlappingFunc = func(_ context.Context, sellerID string, start, end time.Time) ([]*model.Appointment, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-proceed
		}
		return f.repo.scanOverlapping(sellerID, start, end), nil
	}

	first := bookingRequest()
	second := bookingRequest()
	second.StartTime = slotStart.Add(30 * time.Minute)
	second.EndTime = slotEnd.Add(30 * time.Minute)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, errs[0] = f.svc.Book(context.Background(), buyerPrincipal, first)
	}()
	<-entered
	go func() {
		defer wg.Done()
		_, errs[1] = f.svc.Book(context.Background(), buyerPrincipal, second)
	}()
	<-locker.contended
	close(proceed)
	wg.Wait()

	require.NoError(t, errs[0])
	require.Error(t, errs[1])
	assert.True(t, apperrors.HasCode(errs[1], apperrors.CodeConflict))
	assert.Equal(t, 1, f.repo.count())
	assert.Equal(t, int32(2), calls.Load(), "the waiting booking checked overlaps after the first was saved")
}

func seedAppointment(t *testing.T, f *bookingFixture) *model.AppointmentView {
	t.Helper()
	view, err := f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)
	return view
}

func TestList_Scopes(t *testing.T) {
	f := newBookingFixture(t, nil)
	seedAppointment(t, f)

	views, err := f.svc.List(context.Background(), buyerPrincipal, ScopeOwn)
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "Sam", views[0].Seller.Name)

	views, err = f.svc.List(context.Background(), sellerPrincipal, ScopeSeller)
	require.NoError(t, err)
	assert.Len(t, views, 1)

	views, err = f.svc.List(context.Background(), &auth.Principal{ID: "other", Role: model.RoleBuyer}, ScopeBuyer)
	require.NoError(t, err)
	assert.Empty(t, views)

	_, err = f.svc.List(context.Background(), buyerPrincipal, ScopeSeller)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.List(context.Background(), sellerPrincipal, ScopeBuyer)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.List(context.Background(), nil, ScopeOwn)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUnauthorized))
}

func TestUpdateStatus(t *testing.T) {
	f := newBookingFixture(t, nil)
	appt := seedAppointment(t, f)

	_, err := f.svc.UpdateStatus(context.Background(), &auth.Principal{ID: "other", Role: model.RoleBuyer}, appt.ID,
		&model.StatusUpdateRequest{Status: model.StatusCancelled})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeForbidden))

	_, err = f.svc.UpdateStatus(context.Background(), buyerPrincipal, appt.ID,
		&model.StatusUpdateRequest{Status: model.StatusScheduled})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInput))

	_, err = f.svc.UpdateStatus(context.Background(), buyerPrincipal, "missing",
		&model.StatusUpdateRequest{Status: model.StatusCancelled})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	view, err := f.svc.UpdateStatus(context.Background(), sellerPrincipal, appt.ID,
		&model.StatusUpdateRequest{Status: model.StatusCancelled})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, view.Status)
	assert.Equal(t, "Bob", view.Buyer.Name)

	_, err = f.svc.UpdateStatus(context.Background(), buyerPrincipal, appt.ID,
		&model.StatusUpdateRequest{Status: model.StatusCompleted})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict), "cancelled is terminal")
}

func TestUpdateStatus_CancelledSlotCanBeRebooked(t *testing.T) {
	f := newBookingFixture(t, nil)
	appt := seedAppointment(t, f)

	_, err := f.svc.UpdateStatus(context.Background(), buyerPrincipal, appt.ID,
		&model.StatusUpdateRequest{Status: model.StatusCancelled})
	require.NoError(t, err)

	_, err = f.svc.Book(context.Background(), buyerPrincipal, bookingRequest())
	require.NoError(t, err)
}
