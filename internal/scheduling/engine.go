package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

var schedulingTracer = otel.Tracer("clinic.internal.scheduling")

// Engine owns one ScheduleStore and its ledger. Availability reads share a
// read lock; book, reschedule and cancel hold the write lock for their whole
// check-then-commit sequence.
type Engine struct {
	mu            sync.RWMutex
	store         *ScheduleStore
	ledger        *ledger
	clock         Clock
	maxSlots      int
	bufferMinutes int
	newID         func() string

	publisher events.Publisher
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used for past-date checks and timestamps.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithMaxSlots caps availability results and the booking re-check. Non-positive values are ignored.
func WithMaxSlots(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSlots = n
		}
	}
}

// WithBufferMinutes records the configured buffer. It does not change slot selection.
func WithBufferMinutes(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.bufferMinutes = n
		}
	}
}

// WithPublisher sends booking events to p after each committed change.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		if p != nil {
			e.publisher = p
		}
	}
}

// WithMetrics records operation counts and latencies. Nil disables them.
func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithIDGenerator overrides appointment id allocation (tests).
func WithIDGenerator(fn func() string) Option {
	return func(e *Engine) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// NewEngine wraps store. The store must not be mutated by anything else afterwards.
func NewEngine(store *ScheduleStore, logger *logging.Logger, opts ...Option) *Engine {
	if store == nil {
		panic("scheduling: schedule store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		store:     store,
		ledger:    newLedger(),
		clock:     SystemClock{Location: time.UTC},
		maxSlots:  DefaultMaxSlots,
		newID:     uuid.NewString,
		publisher: events.NopPublisher{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxSlots is the default availability cap.
func (e *Engine) MaxSlots() int { return e.maxSlots }

// BufferMinutes is the configured (inert) buffer between appointments.
func (e *Engine) BufferMinutes() int { return e.bufferMinutes }

// Today returns the current date in the engine clock's zone.
func (e *Engine) Today() string {
	return today(e.clock).Format(DateLayout)
}

// Availability lists bookable candidates. Malformed or past dates yield an empty slice.
func (e *Engine) Availability(ctx context.Context, q AvailabilityQuery) []CandidateSlot {
	_, span := schedulingTracer.Start(ctx, "scheduling.availability")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.date", q.Date),
		attribute.String("clinic.doctor", q.Doctor),
		attribute.String("clinic.appointment_type", string(q.Type)),
	)
	started := time.Now()

	limit := q.MaxSlots
	if limit <= 0 {
		limit = e.maxSlots
	}

	e.mu.RLock()
	slots := computeAvailability(e.store, e.clock, q, limit)
	e.mu.RUnlock()

	span.SetAttributes(attribute.Int("clinic.slots", len(slots)))
	e.metrics.ObserveOperation("availability", "ok", time.Since(started).Seconds())
	return slots
}

// Appointment returns a copy of an active appointment.
func (e *Engine) Appointment(ctx context.Context, id string) (Appointment, error) {
	_, span := schedulingTracer.Start(ctx, "scheduling.get")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", id))

	e.mu.RLock()
	defer e.mu.RUnlock()
	apt, ok := e.ledger.get(id)
	if !ok {
		return Appointment{}, ErrAppointmentNotFound
	}
	return *apt, nil
}

// ActiveAppointments copies the ledger ordered by date and start.
func (e *Engine) ActiveAppointments() []Appointment {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.ledger.snapshot()
}

// SlotsFor exposes the store view under the read lock.
func (e *Engine) SlotsFor(doctorFilter, date string) []ScheduledSlot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.SlotsFor(doctorFilter, date)
}

// Doctors lists doctor names in schedule order.
func (e *Engine) Doctors() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Doctors()
}

func (e *Engine) now() string {
	return e.clock.Now().Format(TimestampLayout)
}

// finish records the outcome of a mutating operation on span and metrics.
func (e *Engine) finish(span trace.Span, op string, started time.Time, err error) {
	if err != nil {
		span.RecordError(err)
	}
	e.metrics.ObserveOperation(op, outcome(err), time.Since(started).Seconds())
}

// publish emits after the write lock is released. Failures are logged only:
// the ledger change has already committed.
func (e *Engine) publish(ctx context.Context, eventType string, apt Appointment) {
	evt := events.AppointmentEvent{
		AppointmentID:   apt.ID,
		PatientName:     apt.PatientName,
		PatientEmail:    apt.PatientEmail,
		PatientPhone:    apt.PatientPhone,
		DoctorName:      apt.DoctorName,
		Date:            apt.Date,
		StartTime:       apt.StartTime,
		EndTime:         apt.EndTime,
		AppointmentType: string(apt.Type),
		Status:          string(apt.Status),
		PreviousDate:    apt.PreviousDate,
		PreviousTime:    apt.PreviousTime,
		OccurredAt:      e.now(),
	}
	if err := e.publisher.Publish(ctx, eventType, evt); err != nil {
		e.logger.Error("failed to publish appointment event", "error", err, "type", eventType, "appointment_id", apt.ID)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidFormat):
		return "invalid_format"
	case errors.Is(err, ErrPastDate):
		return "past_date"
	case errors.Is(err, ErrSlotUnavailable):
		return "slot_unavailable"
	case errors.Is(err, ErrSlotAlreadyBooked):
		return "already_booked"
	case errors.Is(err, ErrAppointmentNotFound):
		return "not_found"
	case errors.Is(err, ErrVerificationFailed):
		return "verification_failed"
	case errors.Is(err, ErrInvalidAppointmentType):
		return "invalid_type"
	default:
		return "error"
	}
}
