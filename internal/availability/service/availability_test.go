package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	availabilityerrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/availability/validator"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/auth"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/config"
	apperrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAvailabilityRepository struct {
	ruleForFunc func(ctx context.Context, sellerID string, dayOfWeek int) (*model.AvailabilityRule, error)
	listFunc    func(ctx context.Context, sellerID string) ([]*model.AvailabilityRule, error)
	replaceFunc func(ctx context.Context, sellerID string, rules []*model.AvailabilityRule) error
}

func (m *mockAvailabilityRepository) RuleFor(ctx context.Context, sellerID string, dayOfWeek int) (*model.AvailabilityRule, error) {
	if m.ruleForFunc != nil {
		return m.ruleForFunc(ctx, sellerID, dayOfWeek)
	}
	return nil, availabilityerrors.ErrNotFound
}

func (m *mockAvailabilityRepository) ListBySeller(ctx context.Context, sellerID string) ([]*model.AvailabilityRule, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx, sellerID)
	}
	return []*model.AvailabilityRule{}, nil
}

func (m *mockAvailabilityRepository) Replace(ctx context.Context, sellerID string, rules []*model.AvailabilityRule) error {
	if m.replaceFunc != nil {
		return m.replaceFunc(ctx, sellerID, rules)
	}
	return nil
}

type mockUsers struct {
	users map[string]*model.User
}

func (m *mockUsers) GetByID(ctx context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, apperrors.NotFoundWithID("User", id)
}

type mockBusyReader struct {
	calls            int
	gotStart, gotEnd time.Time
	busyFunc         func(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error)
}

func (m *mockBusyReader) BusyIntervals(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error) {
	m.calls++
	m.gotStart, m.gotEnd = start, end
	if m.busyFunc != nil {
		return m.busyFunc(ctx, principalID, start, end)
	}
	return nil, nil
}

type countingRecorder struct {
	metrics.Nop
	busyFailures int
	slotsServed  int
}

func (c *countingRecorder) RecordBusyReadFailure()      { c.busyFailures++ }
func (c *countingRecorder) RecordSlotsServed(count int) { c.slotsServed += count }

// 2030-01-07 is a Monday.
var monday = time.Date(2030, 1, 7, 0, 0, 0, 0, time.UTC)

func mondayRule(ctx context.Context, sellerID string, dayOfWeek int) (*model.AvailabilityRule, error) {
	if dayOfWeek != int(time.Monday) {
		return nil, fmt.Errorf("%w: day %d", availabilityerrors.ErrNotFound, dayOfWeek)
	}
	return &model.AvailabilityRule{SellerID: sellerID, DayOfWeek: dayOfWeek, StartTime: "09:00", EndTime: "17:00", IsActive: true}, nil
}

type fixture struct {
	repo     *mockAvailabilityRepository
	busy     *mockBusyReader
	recorder *countingRecorder
	cfg      *config.Config
	svc      AvailabilityService
}

func newFixture(policy string) *fixture {
	f := &fixture{
		repo:     &mockAvailabilityRepository{ruleForFunc: mondayRule},
		busy:     &mockBusyReader{},
		recorder: &countingRecorder{},
		cfg: &config.Config{
			Log:            logger.Discard(),
			SlotDuration:   time.Hour,
			BusyReadPolicy: policy,
		},
	}
	users := &mockUsers{users: map[string]*model.User{
		"seller":       {ID: "seller", Role: model.RoleSeller, CalendarConnected: true},
		"disconnected": {ID: "disconnected", Role: model.RoleSeller},
		"buyer":        {ID: "buyer", Role: model.RoleBuyer},
	}}
	svc := NewAvailabilityService(f.repo, users, f.busy, validator.NewAvailabilityValidator(), f.recorder, f.cfg)
	svc.(*availabilityService).now = func() time.Time { return monday }
	f.svc = svc
	return f
}

func TestGetSlots_ExcludesBusyInterval(t *testing.T) {
	f := newFixture(config.BusyReadFailOpen)
	f.busy.busyFunc = func(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error) {
		return []model.BusyInterval{{Start: monday.Add(12 * time.Hour), End: monday.Add(13 * time.Hour)}}, nil
	}

	got, err := f.svc.GetSlots(context.Background(), "seller", "2030-01-07")
	require.NoError(t, err)

	var hours []int
	for _, s := range got {
		hours = append(hours, s.Start.Hour())
	}
	assert.Equal(t, []int{9, 10, 11, 13, 14, 15, 16}, hours)
	assert.Equal(t, monday, f.busy.gotStart, "busy read covers the whole UTC day")
	assert.Equal(t, monday.Add(24*time.Hour), f.busy.gotEnd)
	assert.Equal(t, 7, f.recorder.slotsServed)
}

func TestGetSlots_FailOpenOffersEverySlot(t *testing.T) {
	f := newFixture(config.BusyReadFailOpen)
	f.busy.busyFunc = func(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error) {
		return nil, errors.New("calendar unavailable")
	}

	got, err := f.svc.GetSlots(context.Background(), "seller", "2030-01-07")
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.Equal(t, 1, f.recorder.busyFailures)
}

func TestGetSlots_FailClosedOffersNothing(t *testing.T) {
	f := newFixture(config.BusyReadFailClosed)
	f.busy.busyFunc = func(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error) {
		return nil, errors.New("calendar unavailable")
	}

	got, err := f.svc.GetSlots(context.Background(), "seller", "2030-01-07")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Equal(t, 1, f.recorder.busyFailures)
}

func TestGetSlots_SkipsBusyReadWhenCalendarNotConnected(t *testing.T) {
	f := newFixture(config.BusyReadFailOpen)

	got, err := f.svc.GetSlots(context.Background(), "disconnected", "2030-01-07")
	require.NoError(t, err)
	assert.Len(t, got, 8)
	assert.Zero(t, f.busy.calls)
}

func TestGetSlots_NoRuleForDay(t *testing.T) {
	f := newFixture(config.BusyReadFailOpen)

	got, err := f.svc.GetSlots(context.Background(), "seller", "2030-01-08")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, f.busy.calls)
}

func TestGetSlots_Errors(t *testing.T) {
	tests := []struct {
		name     string
		sellerID string
		date     string
		wantCode string
	}{
		{"missing date", "seller", "", apperrors.CodeInvalidInput},
		{"malformed date", "seller", "07/01/2030", apperrors.CodeInvalidInput},
		{"impossible date", "seller", "2030-02-30", apperrors.CodeInvalidInput},
		{"unknown seller", "nobody", "2030-01-07", apperrors.CodeNotFound},
		{"buyer is not a seller", "buyer", "2030-01-07", apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.BusyReadFailOpen)
			_, err := f.svc.GetSlots(context.Background(), tt.sellerID, tt.date)
			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
		})
	}
}

func TestGetSlots_RuleStoreFailureIsHard(t *testing.T) {
	f := newFixture(config.BusyReadFailOpen)
	f.repo.ruleForFunc = func(ctx context.Context, sellerID string, dayOfWeek int) (*model.AvailabilityRule, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.svc.GetSlots(context.Background(), "seller", "2030-01-07")
	require.Error(t, err)
	assert.Equal(t, 500, apperrors.AsAppError(err).StatusCode())
}

func TestReplaceRules_StoresOnlyActiveRows(t *testing.T) {
	f := newFixture(config.BusyReadFailOpen)
	var stored []*model.AvailabilityRule
	var storedFor string
	f.repo.replaceFunc = func(ctx context.Context, sellerID string, rules []*model.AvailabilityRule) error {
		storedFor, stored = sellerID, rules
		return nil
	}

	err := f.svc.ReplaceRules(context.Background(), &auth.Principal{ID: "seller", Role: model.RoleSeller}, &model.AvailabilityReplaceRequest{
		Availability: []model.AvailabilityRuleInput{
			{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true},
			{DayOfWeek: 2, StartTime: "09:00", EndTime: "17:00", IsActive: false},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "seller", storedFor)
	require.Len(t, stored, 1)
	assert.Equal(t, 1, stored[0].DayOfWeek)
	assert.True(t, stored[0].IsActive)
}

func TestReplaceRules_Rejections(t *testing.T) {
	seller := &auth.Principal{ID: "seller", Role: model.RoleSeller}
	valid := &model.AvailabilityReplaceRequest{Availability: []model.AvailabilityRuleInput{{DayOfWeek: 1, StartTime: "09:00", EndTime: "17:00", IsActive: true}}}

	tests := []struct {
		name      string
		principal *auth.Principal
		req       *model.AvailabilityReplaceRequest
		wantCode  string
	}{
		{"buyer", &auth.Principal{ID: "buyer", Role: model.RoleBuyer}, valid, apperrors.CodeUnauthorized},
		{"anonymous", nil, valid, apperrors.CodeUnauthorized},
		{"missing array", seller, &model.AvailabilityReplaceRequest{}, apperrors.CodeInvalidInput},
		{"inverted window", seller, &model.AvailabilityReplaceRequest{Availability: []model.AvailabilityRuleInput{{DayOfWeek: 1, StartTime: "17:00", EndTime: "09:00"}}}, apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(config.BusyReadFailOpen)
			called := false
			f.repo.replaceFunc = func(ctx context.Context, sellerID string, rules []*model.AvailabilityRule) error {
				called = true
				return nil
			}

			err := f.svc.ReplaceRules(context.Background(), tt.principal, tt.req)
			assert.True(t, apperrors.HasCode(err, tt.wantCode), "got %v", err)
			assert.False(t, called)
		})
	}
}

func TestReplaceRules_EmptyArrayClearsTemplate(t *testing.T) {
	f := newFixture(config.BusyReadFailOpen)
	called := false
	f.repo.replaceFunc = func(ctx context.Context, sellerID string, rules []*model.AvailabilityRule) error {
		called = true
		assert.Empty(t, rules)
		return nil
	}

	err := f.svc.ReplaceRules(context.Background(), &auth.Principal{ID: "seller", Role: model.RoleSeller}, &model.AvailabilityReplaceRequest{Availability: []model.AvailabilityRuleInput{}})
	require.NoError(t, err)
	assert.True(t, called)
}
