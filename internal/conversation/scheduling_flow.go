package conversation

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/internal/waitlist"
)

// step is what the previous assistant turn was waiting for.
type step int

const (
	stepNone step = iota
	stepConfirmBooking
	stepCollectContact
	stepWaitlist
)

const (
	collectContactPrefix  = "Before I can finalize your booking"
	waitlistContactPrefix = "To add you to the waitlist"
)

func pendingStep(history []ChatMessage) step {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != ChatRoleAssistant {
			continue
		}
		content := history[i].Content
		switch {
		case strings.Contains(content, confirmationPrompt):
			return stepConfirmBooking
		case strings.HasPrefix(content, collectContactPrefix):
			return stepCollectContact
		case strings.Contains(content, waitlistOffer), strings.HasPrefix(content, waitlistContactPrefix):
			return stepWaitlist
		}
		return stepNone
	}
	return stepNone
}

func lastAssistant(history []ChatMessage) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == ChatRoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

func mentionsContact(message string) bool {
	return emailPattern.MatchString(message) || extractPhone(message) != "" || extractName(message) != ""
}

func (a *Agent) handleScheduling(ctx context.Context, t *turn) {
	fields := a.nlu.ExtractBookingFields(t.message, t.history)
	fields.DoctorName = canonicalDoctor(fields.DoctorName, a.scheduler.Doctors())
	lower := strings.ToLower(t.message)
	confirmed := containsAny(lower, confirmationKeywords)
	pending := pendingStep(t.history)
	t.responder = responderTemplate

	if pending == stepWaitlist && a.waitlist != nil && (confirmed || mentionsContact(t.message)) {
		if fields.Date == "" {
			// The offer names the date that had no slots.
			fields.Date = isoDatePattern.FindString(lastAssistant(t.history))
		}
		if fields.Date != "" {
			a.joinWaitlist(ctx, t, fields)
			return
		}
	}

	if (confirmed || pending == stepCollectContact) && fields.Date != "" && fields.Time != "" {
		a.confirmOrBook(ctx, t, fields, confirmed && pending == stepConfirmBooking)
		return
	}

	switch {
	case containsAny(lower, rescheduleKeywords):
		t.resp.Response = rescheduleReply
		return
	case strings.Contains(lower, "cancel"):
		t.resp.Response = cancelReply
		return
	}

	date := fields.Date
	if date == "" {
		if !containsAny(lower, browseCues) {
			reply, err := a.complete(ctx, t, schedulingPrompt(a.kb.Info()), userPromptWithContext(t.message, t.history, "", ""))
			if err != nil {
				t.resp.Response = askDateReply
				return
			}
			t.resp.Response = reply
			t.responder = responderLLM
			return
		}
		date = a.tomorrow()
	}
	if date < a.scheduler.Today() {
		t.resp.Response = pastDateReply
		return
	}

	slots := a.scheduler.Availability(ctx, scheduling.AvailabilityQuery{
		Date:   date,
		Doctor: fields.DoctorName,
		Type:   fields.Type,
	})
	if len(slots) == 0 {
		t.resp.Response = noSlotsReply(date)
		return
	}

	slotsText := "Date: " + date + "\n" + formatSlots(slots, fields.Type)
	reply, err := a.complete(ctx, t, schedulingPrompt(a.kb.Info()), userPromptWithContext(t.message, t.history, slotsText, ""))
	if err != nil {
		reply = fallbackReply(t.message, slotsText, a.kb.Info())
	} else {
		t.responder = responderLLM
	}
	t.resp.Response = reply
	t.resp.RequiresConfirmation = containsAny(strings.ToLower(reply), []string{"confirm", "book", "proceed"})
}

// confirmOrBook summarises a complete booking, or books it when the patient
// has confirmed a summary.
func (a *Agent) confirmOrBook(ctx context.Context, t *turn, fields BookingFields, book bool) {
	if missing := fields.MissingContact(); len(missing) > 0 {
		t.resp.Response = missingContactReply(missing)
		return
	}
	if fields.Date < a.scheduler.Today() {
		t.resp.Response = pastDateReply
		return
	}

	slot, ok := a.resolveSlot(ctx, fields)
	if !ok {
		t.resp.Response = "I'm sorry, " + fields.Time + " on " + fields.Date + " isn't available." + tryAnotherTime
		if alternatives := a.scheduler.Availability(ctx, scheduling.AvailabilityQuery{Date: fields.Date, Type: fields.Type}); len(alternatives) > 0 {
			t.resp.Response += " Here is what's open:\n" + formatSlots(alternatives, fields.Type)
		}
		return
	}

	if !book {
		t.resp.Response = confirmationSummary(fields, slot.DoctorName)
		t.resp.RequiresConfirmation = true
		return
	}

	typ := fields.Type
	if typ == "" {
		typ = scheduling.GeneralConsultation
	}
	apt, err := a.scheduler.Book(ctx, scheduling.BookingRequest{
		PatientName:  fields.PatientName,
		PatientEmail: fields.PatientEmail,
		PatientPhone: fields.PatientPhone,
		Date:         fields.Date,
		StartTime:    fields.Time,
		DoctorName:   slot.DoctorName,
		Type:         typ,
		Reason:       fields.Reason,
	})
	t.responder = responderEngine
	if err != nil {
		t.resp.Response = bookingFailureReply(err)
		a.logger.Info("chat booking failed", "error", err, "date", fields.Date, "time", fields.Time, "doctor", slot.DoctorName)
		return
	}
	t.resp.Response = bookedReply(apt)
	t.resp.AppointmentID = apt.ID
}

// resolveSlot finds the offered slot starting at the requested time, honouring
// a doctor preference when one was given.
func (a *Agent) resolveSlot(ctx context.Context, fields BookingFields) (scheduling.CandidateSlot, bool) {
	candidates := a.scheduler.Availability(ctx, scheduling.AvailabilityQuery{
		Date:     fields.Date,
		Doctor:   fields.DoctorName,
		Type:     fields.Type,
		MaxSlots: candidateSearchLimit,
	})
	for _, c := range candidates {
		if c.StartClock() == fields.Time {
			return c, true
		}
	}
	return scheduling.CandidateSlot{}, false
}

func (a *Agent) joinWaitlist(ctx context.Context, t *turn, fields BookingFields) {
	if fields.PatientName == "" || fields.PatientEmail == "" {
		var missing []string
		if fields.PatientName == "" {
			missing = append(missing, "your full name")
		}
		if fields.PatientEmail == "" {
			missing = append(missing, "your email address")
		}
		t.resp.Response = waitlistContactPrefix + " for " + fields.Date + ", please provide " + strings.Join(missing, " and ") + "."
		return
	}
	typ := fields.Type
	if typ == "" {
		typ = scheduling.GeneralConsultation
	}
	entry := a.waitlist.Add(ctx, waitlist.Request{
		PatientName:     fields.PatientName,
		PatientEmail:    fields.PatientEmail,
		PatientPhone:    fields.PatientPhone,
		PreferredDate:   fields.Date,
		AppointmentType: typ,
		DoctorName:      fields.DoctorName,
	})
	t.resp.Response = waitlistJoinedReply(entry.ID, entry.PreferredDate)
	t.resp.WaitlistID = entry.ID
	t.responder = responderEngine
}

func (a *Agent) tomorrow() string {
	today, err := time.Parse(scheduling.DateLayout, a.scheduler.Today())
	if err != nil {
		return time.Now().AddDate(0, 0, 1).Format(scheduling.DateLayout)
	}
	return today.AddDate(0, 0, 1).Format(scheduling.DateLayout)
}

func bookingFailureReply(err error) string {
	switch {
	case errors.Is(err, scheduling.ErrSlotAlreadyBooked), errors.Is(err, scheduling.ErrSlotUnavailable):
		return "I'm sorry, that slot is no longer available." + tryAnotherTime
	case errors.Is(err, scheduling.ErrPastDate):
		return pastDateReply
	case errors.Is(err, scheduling.ErrInvalidFormat), errors.Is(err, scheduling.ErrInvalidAppointmentType):
		return "I couldn't understand that date, time or appointment type." + tryAnotherTime
	}
	return "I encountered an error while booking your appointment. Please try again."
}

// canonicalDoctor maps "dr. johnson" or "Dr. Sarah" onto a scheduled doctor's
// exact name. Unknown names pass through unchanged.
func canonicalDoctor(name string, doctors []string) string {
	if name == "" {
		return ""
	}
	want := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(strings.TrimPrefix(name, "Dr."), "Dr ")))
	var partial []string
	for _, d := range doctors {
		bare := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(d, "Dr.")))
		if bare == want {
			return d
		}
		for _, word := range strings.Fields(bare) {
			if word == want {
				partial = append(partial, d)
				break
			}
		}
	}
	if len(partial) == 1 {
		return partial[0]
	}
	return name
}
