// Package calendarsync consumes calendar sync tasks and retries the calendar writes the
// booking path could not complete.
package calendarsync

import (
	"context"
	"errors"

	appointmentserrors "github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/errors"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/appointments/events"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/internal/calendar"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/kafka"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/logger"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/metrics"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/model"
	"github.com/Vijaysingh1621/google-seller-buyer-Scheduler/pkg/telemetry"

	"go.opentelemetry.io/otel/attribute"
)

const (
	OutcomeSynced  = "synced"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

type AppointmentStore interface {
	FindByID(ctx context.Context, id string) (*model.Appointment, error)
	Update(ctx context.Context, id string, update model.AppointmentUpdate) error
}

type EventWriter interface {
	CreateEvent(ctx context.Context, principalID string, spec calendar.EventSpec) (*calendar.EventRef, error)
}

type Worker struct {
	store    AppointmentStore
	calendar EventWriter
	metrics  metrics.Recorder
	log      *logger.Logger
}

func NewWorker(store AppointmentStore, calendar EventWriter, recorder metrics.Recorder, log *logger.Logger) *Worker {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Worker{
		store:    store,
		calendar: calendar,
		metrics:  recorder,
		log:      log,
	}
}

// Handle is a kafka.MessageHandler. Returned errors are classified by the consumer: transient
// ones are retried with backoff, permanent ones go to the dead letter topic.
func (w *Worker) Handle(ctx context.Context, msg kafka.Message) error {
	if msg.GetEventType() != events.EventTypeCalendarSync {
		w.log.Warn("Ignoring unexpected event type", "event_type", msg.GetEventType(), "event_id", msg.GetEventID())
		return nil
	}

	var task events.CalendarSyncTask
	if err := msg.DecodeValue(&task); err != nil {
		w.metrics.RecordSyncTask(OutcomeFailed)
		return kafka.NewPermanentError("decode calendar sync task", err)
	}

	ctx, span := telemetry.Tracer().Start(ctx, "calendarsync.Handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("appointment.id", task.AppointmentID),
		attribute.String("calendar.side", string(task.Side)),
	)

	log := w.log.With(
		"appointment_id", task.AppointmentID,
		"side", task.Side,
		"correlation_id", msg.GetCorrelationID(),
	)

	appt, err := w.store.FindByID(ctx, task.AppointmentID)
	if err != nil {
		if errors.Is(err, appointmentserrors.ErrNotFound) || errors.Is(err, appointmentserrors.ErrInvalidID) {
			w.metrics.RecordSyncTask(OutcomeSkipped)
			log.Warn("Appointment for sync task no longer exists")
			return nil
		}
		return kafka.NewTransientError("load appointment", err)
	}
	if appt.Status != model.StatusScheduled {
		w.metrics.RecordSyncTask(OutcomeSkipped)
		log.Info("Skipping calendar sync for inactive appointment", "status", appt.Status)
		return nil
	}

	ref, err := w.calendar.CreateEvent(ctx, task.PrincipalID, task.EventSpec())
	if err != nil {
		span.RecordError(err)
		w.metrics.RecordCalendarWrite(string(task.Side), metrics.OutcomeFailure)
		if errors.Is(err, calendar.ErrNotConnected) {
			w.metrics.RecordSyncTask(OutcomeSkipped)
			return kafka.NewPermanentError("calendar not connected", err)
		}
		w.metrics.RecordSyncTask(OutcomeFailed)
		log.Warn("Calendar sync attempt failed", "retry_count", msg.GetRetryCount(), "error", err)
		return kafka.NewTransientError("create calendar event", err)
	}
	w.metrics.RecordCalendarWrite(string(task.Side), metrics.OutcomeSuccess)

	if err := w.store.Update(ctx, appt.ID, attachment(appt, task.Side, ref)); err != nil {
		w.metrics.RecordSyncTask(OutcomeFailed)
		return kafka.NewTransientError("attach calendar event", err)
	}

	w.metrics.RecordSyncTask(OutcomeSynced)
	log.Info("Calendar event synced", "event_id", ref.ID)
	return nil
}

// attachment records the event id for its side. The seller's meeting link always wins; the
// buyer's is used only when the appointment has none.
func attachment(appt *model.Appointment, side events.Side, ref *calendar.EventRef) model.AppointmentUpdate {
	id := ref.ID
	var update model.AppointmentUpdate
	switch side {
	case events.SideSeller:
		update.ExternalEventID = &id
	case events.SideBuyer:
		update.BuyerExternalEventID = &id
	}

	if ref.MeetingLink != "" && (side == events.SideSeller || appt.MeetingLink == nil || *appt.MeetingLink == "") {
		link := ref.MeetingLink
		update.MeetingLink = &link
	}
	return update
}
