// Package metrics collects the scheduler's Prometheus metrics and exposes them for
// scraping.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Booking outcomes.
const (
	OutcomeCreated  = "created"
	OutcomeConflict = "conflict"
	OutcomeInvalid  = "invalid"
	OutcomeNotFound = "not_found"
	OutcomeTimeout  = "timeout"
	OutcomeError    = "error"
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
)

// Recorder is what services and workers record into.
type Recorder interface {
	RecordBooking(outcome string)
	RecordCalendarWrite(side, outcome string)
	RecordBusyReadFailure()
	RecordSlotsServed(count int)
	ObserveCalendarLatency(operation string, d time.Duration)
	RecordSyncTask(outcome string)
	RecordMessage(topic, outcome string, d time.Duration)
}

type Collector struct {
	bookings          *prometheus.CounterVec
	calendarWrites    *prometheus.CounterVec
	busyReadFailures  prometheus.Counter
	slotsServed       prometheus.Counter
	calendarLatency   *prometheus.HistogramVec
	syncTasks         *prometheus.CounterVec
	messagesProcessed *prometheus.CounterVec
	messageDuration   *prometheus.HistogramVec
}

// NewCollector creates the collector and registers every metric on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		bookings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_bookings_total",
			Help: "Booking attempts by outcome.",
		}, []string{"outcome"}),
		calendarWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_calendar_writes_total",
			Help: "External calendar event writes by participant side and outcome.",
		}, []string{"side", "outcome"}),
		busyReadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_busy_read_failures_total",
			Help: "Busy-interval reads that failed and were absorbed.",
		}),
		slotsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "scheduler_slots_served_total",
			Help: "Bookable slots returned by availability queries.",
		}),
		calendarLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_calendar_request_seconds",
			Help:    "Latency of calendar provider calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		syncTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_calendar_sync_tasks_total",
			Help: "Calendar sync retry tasks handled by the worker, by outcome.",
		}, []string{"outcome"}),
		messagesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scheduler_kafka_messages_total",
			Help: "Kafka messages handled, by topic and outcome.",
		}, []string{"topic", "outcome"}),
		messageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scheduler_kafka_message_seconds",
			Help:    "Kafka message handling time.",
			Buckets: prometheus.DefBuckets,
		}, []string{"topic"}),
	}

	reg.MustRegister(
		c.bookings,
		c.calendarWrites,
		c.busyReadFailures,
		c.slotsServed,
		c.calendarLatency,
		c.syncTasks,
		c.messagesProcessed,
		c.messageDuration,
	)

	return c
}

func (c *Collector) RecordBooking(outcome string) {
	c.bookings.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordCalendarWrite(side, outcome string) {
	c.calendarWrites.WithLabelValues(side, outcome).Inc()
}

func (c *Collector) RecordBusyReadFailure() {
	c.busyReadFailures.Inc()
}

func (c *Collector) RecordSlotsServed(count int) {
	c.slotsServed.Add(float64(count))
}

func (c *Collector) ObserveCalendarLatency(operation string, d time.Duration) {
	c.calendarLatency.WithLabelValues(operation).Observe(d.Seconds())
}

func (c *Collector) RecordSyncTask(outcome string) {
	c.syncTasks.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordMessage(topic, outcome string, d time.Duration) {
	c.messagesProcessed.WithLabelValues(topic, outcome).Inc()
	c.messageDuration.WithLabelValues(topic).Observe(d.Seconds())
}

// Nop discards everything. Used when metrics are disabled and in tests.
type Nop struct{}

func (Nop) RecordBooking(string)                         {}
func (Nop) RecordCalendarWrite(string, string)           {}
func (Nop) RecordBusyReadFailure()                       {}
func (Nop) RecordSlotsServed(int)                        {}
func (Nop) ObserveCalendarLatency(string, time.Duration) {}
func (Nop) RecordSyncTask(string)                        {}
func (Nop) RecordMessage(string, string, time.Duration)  {}

// Handler serves the registry in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
