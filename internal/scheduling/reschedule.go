package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/events"
)

// Reschedule moves an appointment to newDate/newStart with the same doctor
// and type. Either both slots change or neither does.
func (e *Engine) Reschedule(ctx context.Context, id, newDate, newStart string) (RescheduleResult, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.reschedule")
	defer span.End()
	span.SetAttributes(
		attribute.String("clinic.appointment_id", id),
		attribute.String("clinic.date", newDate),
		attribute.String("clinic.start", newStart),
	)
	started := time.Now()

	res, err := e.reschedule(id, newDate, newStart)
	e.finish(span, "reschedule", started, err)
	if err != nil {
		return RescheduleResult{}, err
	}
	e.logger.Info("appointment rescheduled",
		"appointment_id", id,
		"from", res.Old.Date+" "+res.Old.StartTime,
		"to", res.New.Date+" "+res.New.StartTime,
	)
	e.publish(ctx, events.TypeAppointmentRescheduled, res.Appointment)
	return res, nil
}

func (e *Engine) reschedule(id, newDate, newStart string) (RescheduleResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	apt, ok := e.ledger.get(id)
	if !ok {
		return RescheduleResult{}, fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}
	date, okDate := parseDate(newDate)
	if !okDate {
		return RescheduleResult{}, fmt.Errorf("%w: date %q", ErrInvalidFormat, newDate)
	}
	if _, ok := parseClock(newStart); !ok {
		return RescheduleResult{}, fmt.Errorf("%w: time %q", ErrInvalidFormat, newStart)
	}
	if isPast(e.clock, date) {
		return RescheduleResult{}, fmt.Errorf("%w: %s", ErrPastDate, newDate)
	}

	oldKey := apt.Key()
	newKey := SlotKey{Date: newDate, Start: newStart, Doctor: apt.DoctorName}
	newSlot := e.offeredSlot(AvailabilityQuery{Date: newDate, Doctor: apt.DoctorName, Type: apt.Type}, newStart)
	if newSlot == nil {
		return RescheduleResult{}, fmt.Errorf("%w: %s", ErrSlotUnavailable, newKey)
	}
	if holder, taken := e.ledger.holder(newKey); taken && holder != id {
		return RescheduleResult{}, fmt.Errorf("%w: %s", ErrSlotAlreadyBooked, newKey)
	}
	end, _, ok := endClock(newStart, apt.Type)
	if !ok {
		return RescheduleResult{}, fmt.Errorf("%w: %q", ErrInvalidAppointmentType, apt.Type)
	}

	// Both slots are resolved before anything changes so the commit cannot fail halfway.
	oldSlot := e.store.find(oldKey.Doctor, oldKey.Date, oldKey.Start)

	old := apt.summary()
	if oldSlot != nil {
		oldSlot.Available = true
	}
	apt.PreviousDate = old.Date
	apt.PreviousTime = old.StartTime
	apt.Date = newDate
	apt.StartTime = newStart
	apt.EndTime = end
	apt.RescheduledAt = e.now()
	e.ledger.move(apt, oldKey)
	newSlot.Available = false

	return RescheduleResult{Appointment: *apt, Old: old, New: apt.summary()}, nil
}
