package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/events"
)

// Book rejects a slot the ledger already holds, re-validates the rest against
// the same capped availability a client is shown, and commits the ledger entry
// and the slot flag in one critical section.
func (e *Engine) Book(ctx context.Context, req BookingRequest) (Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.book")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.date", req.Date),
		attribute.String("clinic.start", req.StartTime),
		attribute.String("clinic.doctor", req.DoctorName),
	)
	started := time.Now()

	apt, err := e.book(req)
	e.finish(span, "book", started, err)
	if err != nil {
		return Appointment{}, err
	}
	span.SetAttributes(attribute.String("clinic.appointment_id", apt.ID))
	e.logger.Info("appointment booked", "appointment_id", apt.ID, "doctor", apt.DoctorName, "date", apt.Date, "start", apt.StartTime)
	e.publish(ctx, events.TypeAppointmentBooked, apt)
	return apt, nil
}

func (e *Engine) book(req BookingRequest) (Appointment, error) {
	if _, ok := parseDate(req.Date); !ok {
		return Appointment{}, fmt.Errorf("%w: date %q", ErrInvalidFormat, req.Date)
	}
	if _, ok := parseClock(req.StartTime); !ok {
		return Appointment{}, fmt.Errorf("%w: time %q", ErrInvalidFormat, req.StartTime)
	}
	apptType := req.Type
	if apptType == "" {
		apptType = GeneralConsultation
	}
	end, minutes, ok := endClock(req.StartTime, apptType)
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %q", ErrInvalidAppointmentType, apptType)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	key := SlotKey{Date: req.Date, Start: req.StartTime, Doctor: req.DoctorName}
	if _, taken := e.ledger.holder(key); taken {
		return Appointment{}, fmt.Errorf("%w: %s", ErrSlotAlreadyBooked, key)
	}
	slot := e.offeredSlot(AvailabilityQuery{Date: req.Date, Doctor: req.DoctorName, Type: apptType}, req.StartTime)
	if slot == nil {
		return Appointment{}, fmt.Errorf("%w: %s", ErrSlotUnavailable, key)
	}

	apt := &Appointment{
		ID:              e.newID(),
		PatientName:     req.PatientName,
		PatientEmail:    req.PatientEmail,
		PatientPhone:    req.PatientPhone,
		DoctorName:      req.DoctorName,
		Date:            req.Date,
		StartTime:       req.StartTime,
		EndTime:         end,
		Type:            apptType,
		DurationMinutes: minutes,
		Reason:          req.Reason,
		Status:          StatusConfirmed,
		CreatedAt:       e.now(),
	}
	e.ledger.insert(apt)
	slot.Available = false
	e.metrics.SetActiveAppointments(e.ledger.len())
	return *apt, nil
}

// offeredSlot returns the store slot for start when the capped availability
// for q (q.Doctor set) offers it, or nil. Callers hold the write lock.
func (e *Engine) offeredSlot(q AvailabilityQuery, start string) *Slot {
	for _, c := range computeAvailability(e.store, e.clock, q, e.maxSlots) {
		if c.StartClock() == start && c.DoctorName == q.Doctor {
			return e.store.find(q.Doctor, q.Date, start)
		}
	}
	return nil
}
