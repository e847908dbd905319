// Package events defines the appointment messages carried over Kafka.
package events

import (
	"time"

	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/calendar"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
)

const (
	EventTypeBooked       = "appointment.booked"
	EventTypeCalendarSync = "appointment.calendar_sync"

	SchemaVersion = "1"
	Source        = "scheduler"
)

// Side names which participant's calendar an event belongs to.
type Side string

const (
	SideSeller Side = "seller"
	SideBuyer  Side = "buyer"
)

// IdempotencyKey is the provider event id for one side of an appointment. Appointment ids
// are hex, and the suffix keeps both within Google's base32hex event id alphabet.
func IdempotencyKey(appointmentID string, side Side) string {
	if side == SideBuyer {
		return appointmentID + "b"
	}
	return appointmentID + "s"
}

type Booked struct {
	AppointmentID string    `json:"appointmentId"`
	BuyerID       string    `json:"buyerId"`
	SellerID      string    `json:"sellerId"`
	Title         string    `json:"title"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	MeetingLink   string    `json:"meetingLink,omitempty"`
	SellerSynced  bool      `json:"sellerSynced"`
	BuyerSynced   bool      `json:"buyerSynced"`
	OccurredAt    time.Time `json:"occurredAt"`
}

type Attendee struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// CalendarSyncTask asks the worker to create one side's event that the request path
// could not.
type CalendarSyncTask struct {
	AppointmentID string     `json:"appointmentId"`
	Side          Side       `json:"side"`
	PrincipalID   string     `json:"principalId"`
	Title         string     `json:"title"`
	Description   string     `json:"description,omitempty"`
	StartTime     time.Time  `json:"startTime"`
	EndTime       time.Time  `json:"endTime"`
	Attendees     []Attendee `json:"attendees"`
	LastError     string     `json:"lastError,omitempty"`
}

func NewCalendarSyncTask(appt *model.Appointment, side Side, principalID string, spec calendar.EventSpec, cause error) CalendarSyncTask {
	attendees := make([]Attendee, 0, len(spec.Attendees))
	for _, a := range spec.Attendees {
		attendees = append(attendees, Attendee{Email: a.Email, Name: a.Name})
	}
	task := CalendarSyncTask{
		AppointmentID: appt.ID,
		Side:          side,
		PrincipalID:   principalID,
		Title:         spec.Title,
		Description:   spec.Description,
		StartTime:     spec.Start,
		EndTime:       spec.End,
		Attendees:     attendees,
	}
	if cause != nil {
		task.LastError = cause.Error()
	}
	return task
}

// EventSpec rebuilds the event the request path attempted, with the same idempotency key.
func (t CalendarSyncTask) EventSpec() calendar.EventSpec {
	attendees := make([]calendar.Attendee, 0, len(t.Attendees))
	for _, a := range t.Attendees {
		attendees = append(attendees, calendar.Attendee{Email: a.Email, Name: a.Name})
	}
	return calendar.EventSpec{
		Title:          t.Title,
		Description:    t.Description,
		Start:          t.StartTime,
		End:            t.EndTime,
		Attendees:      attendees,
		IdempotencyKey: IdempotencyKey(t.AppointmentID, t.Side),
	}
}

func NewBookedMessage(evt Booked, correlationID string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(evt.AppointmentID).
		WithValue(evt).
		WithEventType(EventTypeBooked).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithCorrelationID(correlationID).
		Build()
}

func NewCalendarSyncMessage(task CalendarSyncTask, correlationID string) (kafka.Message, error) {
	return kafka.NewMessage().
		WithKey(task.AppointmentID).
		WithValue(task).
		WithEventType(EventTypeCalendarSync).
		WithSchemaVersion(SchemaVersion).
		WithSource(Source).
		WithCorrelationID(correlationID).
		Build()
}
