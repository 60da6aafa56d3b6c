package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/events"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// ConfirmationNotifier emails patients (and optionally the front desk) when
// appointment and waitlist events are delivered.
type ConfirmationNotifier struct {
	email      EmailSender
	clinicName string
	staffEmail string
	logger     *logging.Logger
}

// NotifierConfig holds display and routing settings.
type NotifierConfig struct {
	ClinicName string
	// StaffEmail receives a copy of every notice when set.
	StaffEmail string
}

func NewConfirmationNotifier(email EmailSender, cfg NotifierConfig, logger *logging.Logger) *ConfirmationNotifier {
	if email == nil {
		panic("notify: email sender required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.ClinicName) == "" {
		cfg.ClinicName = "the clinic"
	}
	return &ConfirmationNotifier{
		email:      email,
		clinicName: cfg.ClinicName,
		staffEmail: strings.TrimSpace(cfg.StaffEmail),
		logger:     logger,
	}
}

// Handle implements events.DeliveryHandler. Unknown event types are ignored.
func (n *ConfirmationNotifier) Handle(ctx context.Context, env events.Envelope) error {
	var msg EmailMessage
	switch env.Type {
	case events.TypeAppointmentBooked, events.TypeAppointmentRescheduled, events.TypeAppointmentCancelled:
		var evt events.AppointmentEvent
		if err := env.Decode(&evt); err != nil {
			return err
		}
		msg = n.appointmentMessage(env.Type, evt)
	case events.TypeWaitlistJoined:
		var evt events.WaitlistEvent
		if err := env.Decode(&evt); err != nil {
			return err
		}
		msg = n.waitlistMessage(evt)
	default:
		n.logger.Debug("notify: ignoring event", "type", env.Type)
		return nil
	}

	if msg.To == "" {
		n.logger.Warn("notify: event has no patient email", "type", env.Type, "event_id", env.ID)
	} else if err := n.email.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: send %s: %w", env.Type, err)
	}

	if n.staffEmail != "" {
		staff := msg
		staff.To = n.staffEmail
		staff.ToName = "Front Desk"
		staff.Subject = "[staff copy] " + msg.Subject
		staff.ReplyTo = msg.To
		if err := n.email.Send(ctx, staff); err != nil {
			n.logger.Error("notify: staff copy failed", "error", err, "type", env.Type)
		}
	}
	return nil
}

func (n *ConfirmationNotifier) appointmentMessage(eventType string, evt events.AppointmentEvent) EmailMessage {
	when := describeSlot(evt.Date, evt.StartTime)
	label := scheduling.AppointmentType(evt.AppointmentType).Label()

	var subject, body string
	switch eventType {
	case events.TypeAppointmentBooked:
		subject = fmt.Sprintf("Appointment confirmed: %s", when)
		body = fmt.Sprintf("Hi %s,\n\nYour %s with %s at %s is confirmed for %s (until %s).\nAppointment ID: %s\n\nKeep this ID to reschedule or cancel.",
			firstName(evt.PatientName), label, evt.DoctorName, n.clinicName, when, evt.EndTime, evt.AppointmentID)
	case events.TypeAppointmentRescheduled:
		subject = fmt.Sprintf("Appointment moved to %s", when)
		body = fmt.Sprintf("Hi %s,\n\nYour %s with %s has been moved from %s to %s (until %s).\nAppointment ID: %s",
			firstName(evt.PatientName), label, evt.DoctorName, describeSlot(evt.PreviousDate, evt.PreviousTime), when, evt.EndTime, evt.AppointmentID)
	default:
		subject = fmt.Sprintf("Appointment cancelled: %s", when)
		body = fmt.Sprintf("Hi %s,\n\nYour %s with %s on %s has been cancelled and the slot released.\nReply or chat with us any time to book again.",
			firstName(evt.PatientName), label, evt.DoctorName, when)
	}
	return EmailMessage{
		To:       evt.PatientEmail,
		ToName:   evt.PatientName,
		ReplyTo:  n.staffEmail,
		Subject:  subject,
		Body:     body,
		Category: eventType,
		Ref:      evt.AppointmentID,
	}
}

func (n *ConfirmationNotifier) waitlistMessage(evt events.WaitlistEvent) EmailMessage {
	day := describeSlot(evt.PreferredDate, "")
	body := fmt.Sprintf("Hi %s,\n\nYou're on the %s waitlist for a %s on %s. We'll contact you at %s if a slot opens.\nWaitlist ID: %s",
		firstName(evt.PatientName), n.clinicName, scheduling.AppointmentType(evt.AppointmentType).Label(), day, evt.PatientEmail, evt.WaitlistID)
	return EmailMessage{
		To:       evt.PatientEmail,
		ToName:   evt.PatientName,
		ReplyTo:  n.staffEmail,
		Subject:  fmt.Sprintf("Waitlist confirmation for %s", day),
		Body:     body,
		Category: events.TypeWaitlistJoined,
		Ref:      evt.WaitlistID,
	}
}

// describeSlot renders "Monday, March 10 at 9:00 AM", falling back to the raw values.
func describeSlot(date, clock string) string {
	d, err := time.Parse(scheduling.DateLayout, date)
	if err != nil {
		return strings.TrimSpace(date + " " + clock)
	}
	if clock == "" {
		return d.Format("Monday, January 2")
	}
	t, err := time.Parse(scheduling.DateLayout+" "+scheduling.TimeLayout, date+" "+clock)
	if err != nil {
		return d.Format("Monday, January 2") + " at " + clock
	}
	return t.Format("Monday, January 2 at 3:04 PM")
}

func firstName(full string) string {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "there"
	}
	return fields[0]
}
