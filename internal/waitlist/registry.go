// Package waitlist records patients waiting for a slot on a preferred date.
package waitlist

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// StatusActive is the only status an entry ever has.
const StatusActive = "active"

// ErrNotFound is returned by Get for unknown ids.
var ErrNotFound = errors.New("waitlist: entry not found")

// Entry is one waitlist request.
type Entry struct {
	ID              string                     `json:"waitlist_id"`
	PatientName     string                     `json:"patient_name"`
	PatientEmail    string                     `json:"patient_email"`
	PatientPhone    string                     `json:"patient_phone"`
	PreferredDate   string                     `json:"preferred_date"`
	AppointmentType scheduling.AppointmentType `json:"appointment_type"`
	DoctorName      string                     `json:"doctor_name,omitempty"`
	Status          string                     `json:"status"`
	CreatedAt       string                     `json:"created_at"`
}

// Request carries the fields a patient supplies.
type Request struct {
	PatientName     string
	PatientEmail    string
	PatientPhone    string
	PreferredDate   string
	AppointmentType scheduling.AppointmentType
	DoctorName      string
}

// Registry is an append-only, concurrency-safe list of entries. It has its
// own lock and never touches the scheduling engine.
type Registry struct {
	mu      sync.RWMutex
	entries []*Entry
	byID    map[string]*Entry

	clock     scheduling.Clock
	newID     func() string
	publisher events.Publisher
	metrics   *metrics.SchedulingMetrics
	logger    *logging.Logger
}

// Option configures a Registry.
type Option func(*Registry)

func WithClock(c scheduling.Clock) Option {
	return func(r *Registry) {
		if c != nil {
			r.clock = c
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Registry) {
		if p != nil {
			r.publisher = p
		}
	}
}

func WithMetrics(m *metrics.SchedulingMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func NewRegistry(logger *logging.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = logging.Default()
	}
	r := &Registry{
		byID:      make(map[string]*Entry),
		clock:     scheduling.SystemClock{Location: time.UTC},
		newID:     uuid.NewString,
		publisher: events.NopPublisher{},
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add always succeeds and returns the stored entry.
func (r *Registry) Add(ctx context.Context, req Request) Entry {
	entry := &Entry{
		PatientName:     req.PatientName,
		PatientEmail:    req.PatientEmail,
		PatientPhone:    req.PatientPhone,
		PreferredDate:   req.PreferredDate,
		AppointmentType: req.AppointmentType,
		DoctorName:      req.DoctorName,
		Status:          StatusActive,
		CreatedAt:       r.clock.Now().Format(scheduling.TimestampLayout),
	}

	r.mu.Lock()
	entry.ID = r.uniqueID()
	r.entries = append(r.entries, entry)
	r.byID[entry.ID] = entry
	out := *entry
	r.mu.Unlock()

	r.metrics.ObserveWaitlist(string(out.AppointmentType))
	r.logger.Info("waitlist entry added", "waitlist_id", out.ID, "preferred_date", out.PreferredDate, "appointment_type", out.AppointmentType)

	evt := events.WaitlistEvent{
		WaitlistID:      out.ID,
		PatientName:     out.PatientName,
		PatientEmail:    out.PatientEmail,
		PatientPhone:    out.PatientPhone,
		PreferredDate:   out.PreferredDate,
		AppointmentType: string(out.AppointmentType),
		DoctorName:      out.DoctorName,
		OccurredAt:      out.CreatedAt,
	}
	if err := r.publisher.Publish(ctx, events.TypeWaitlistJoined, evt); err != nil {
		r.logger.Error("failed to publish waitlist event", "error", err, "waitlist_id", out.ID)
	}
	return out
}

// uniqueID retries on the (practically impossible) collision. Caller holds mu.
func (r *Registry) uniqueID() string {
	for {
		id := r.newID()
		if _, taken := r.byID[id]; !taken {
			return id
		}
	}
}

// Query returns entries in insertion order. Empty filters match everything.
func (r *Registry) Query(date string, appointmentType scheduling.AppointmentType) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		if date != "" && e.PreferredDate != date {
			continue
		}
		if appointmentType != "" && e.AppointmentType != appointmentType {
			continue
		}
		out = append(out, *e)
	}
	return out
}

func (r *Registry) Get(id string) (Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byID[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return *e, nil
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
