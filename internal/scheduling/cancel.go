package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/clinic-scheduler/internal/events"
)

// Cancel releases the appointment's slot and drops it from the ledger.
// A non-empty verifyEmail must equal the booked email exactly.
func (e *Engine) Cancel(ctx context.Context, id, verifyEmail string) (Appointment, error) {
	ctx, span := schedulingTracer.Start(ctx, "scheduling.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("clinic.appointment_id", id))
	started := time.Now()

	apt, err := e.cancel(id, verifyEmail)
	e.finish(span, "cancel", started, err)
	if err != nil {
		return Appointment{}, err
	}
	e.logger.Info("appointment cancelled", "appointment_id", id, "doctor", apt.DoctorName, "date", apt.Date, "start", apt.StartTime)
	e.publish(ctx, events.TypeAppointmentCancelled, apt)
	return apt, nil
}

func (e *Engine) cancel(id, verifyEmail string) (Appointment, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	apt, ok := e.ledger.get(id)
	if !ok {
		return Appointment{}, fmt.Errorf("%w: %s", ErrAppointmentNotFound, id)
	}
	if verifyEmail != "" && verifyEmail != apt.PatientEmail {
		return Appointment{}, ErrVerificationFailed
	}

	if err := e.store.MarkAvailable(apt.DoctorName, apt.Date, apt.StartTime); err != nil {
		e.logger.Warn("cancelled appointment had no schedule slot", "appointment_id", id, "error", err)
	}
	e.ledger.remove(id)
	e.metrics.SetActiveAppointments(e.ledger.len())

	snapshot := *apt
	snapshot.Status = StatusCancelled
	return snapshot, nil
}
