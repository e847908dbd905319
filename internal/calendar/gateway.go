// Package calendar is the boundary to the participants' external calendars. It reads busy
// intervals, creates events, and keeps each principal's OAuth credential fresh.
package calendar

import (
	"context"
	"errors"
	"time"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
)

var (
	// ErrCalendarUnavailable means a busy read produced no information.
	ErrCalendarUnavailable = errors.New("calendar unavailable")

	// ErrCalendarWrite means an event could not be created.
	ErrCalendarWrite = errors.New("calendar write failed")

	// ErrNotConnected means the principal never granted calendar access.
	// It is always wrapped together with one of the two errors above.
	ErrNotConnected = errors.New("calendar not connected")
)

type Gateway interface {
	BusyIntervals(ctx context.Context, principalID string, start, end time.Time) ([]model.BusyInterval, error)
	CreateEvent(ctx context.Context, principalID string, spec EventSpec) (*EventRef, error)
}

// CredentialStore lends a principal's credential and takes back a refreshed one.
type CredentialStore interface {
	Credential(ctx context.Context, principalID string) (*model.CalendarCredential, error)
	UpdateCredential(ctx context.Context, principalID string, cred *model.CalendarCredential) error
}

type Attendee struct {
	Email string
	Name  string
}

type EventSpec struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []Attendee
	// IdempotencyKey becomes the provider event id, so a retried write never duplicates.
	IdempotencyKey string
}

type EventRef struct {
	ID          string
	MeetingLink string
}
