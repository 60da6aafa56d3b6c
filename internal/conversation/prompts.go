package conversation

import (
	"fmt"
	"strings"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

const (
	defaultClinicName  = "HealthCare Plus Clinic"
	defaultClinicPhone = "+91 9897761393"

	promptHistoryTurns = 5
	faqHistoryTurns    = 3
)

const schedulingSystemPrompt = `You are a helpful and professional appointment scheduling assistant for %s.

Your responsibilities:
1. Understand what the patient needs and suggest the matching appointment type
2. Offer 3-5 of the available slots you are given, never invent others
3. Collect the patient's full name, email and phone number before booking
4. Summarise every detail and ask for confirmation before a booking is made
5. Offer the waitlist when nothing is available
6. Answer clinic questions from the provided clinic information

Appointment types and durations:
- General Consultation: 30 minutes - routine checkups, symptoms, general health concerns
- Follow-up: 15 minutes - follow-up visits, prescription refills
- Physical Exam: 45 minutes - comprehensive physical examinations
- Specialist Consultation: 60 minutes - specialist visits, complex issues

Guidelines:
- Be friendly, empathetic and concise; this is a healthcare setting
- Remember details the patient already gave (name, email, phone, preferences)
- When the patient says "around 3" or similar, clarify AM or PM
- Past dates cannot be booked: "I'm sorry, but I cannot schedule appointments for past dates. Please provide a future date."
- To reschedule, ask for the appointment ID and the new date and time
- To cancel, ask for the appointment ID and the email used to book
- When the patient changes appointment type mid-flow, acknowledge the change and continue`

const faqSystemPrompt = `You are a helpful assistant for %s.
Answer the user's question based on the provided context from the clinic's FAQ database.
If the context doesn't contain enough information, politely say so and suggest contacting the clinic directly at %s.
Be concise, friendly, and professional.`

func clinicName(info ClinicInfo) string {
	if info.ClinicName != "" {
		return info.ClinicName
	}
	return defaultClinicName
}

func clinicPhone(info ClinicInfo) string {
	if info.Phone != "" {
		return info.Phone
	}
	return defaultClinicPhone
}

func schedulingPrompt(info ClinicInfo) string {
	return fmt.Sprintf(schedulingSystemPrompt, clinicName(info))
}

func faqPrompt(info ClinicInfo) string {
	return fmt.Sprintf(faqSystemPrompt, clinicName(info), clinicPhone(info))
}

// userPromptWithContext frames the current message with recent history,
// the slots on offer and any clinic facts.
func userPromptWithContext(message string, history []ChatMessage, slots, faqContext string) string {
	var b strings.Builder
	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range tail(history, promptHistoryTurns) {
			fmt.Fprintf(&b, "%s: %s\n", roleLabel(msg.Role), msg.Content)
		}
		b.WriteString("\n")
	}
	if slots != "" {
		b.WriteString("Available appointment slots:\n")
		b.WriteString(slots)
		b.WriteString("\n\n")
	}
	if faqContext != "" {
		b.WriteString("Relevant clinic information:\n")
		b.WriteString(faqContext)
		b.WriteString("\n\n")
	}
	b.WriteString("Current user message: ")
	b.WriteString(message)
	return b.String()
}

func faqUserPrompt(question string, history []ChatMessage, faqContext string) string {
	var b strings.Builder
	b.WriteString("Context from FAQ database:\n")
	b.WriteString(faqContext)
	b.WriteString("\n\n")
	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range tail(history, faqHistoryTurns) {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n")
	}
	b.WriteString("User question: ")
	b.WriteString(question)
	b.WriteString("\n\nPlease provide a helpful answer based on the context provided.")
	return b.String()
}

func roleLabel(role string) string {
	if role == "" {
		return "User"
	}
	return capitalize(role)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func tail(history []ChatMessage, n int) []ChatMessage {
	if len(history) > n {
		return history[len(history)-n:]
	}
	return history
}

// formatSlots groups candidate slots by doctor:
//
//	Dr. A:
//	  - 09:00 to 09:30 (General Consultation, 30 minutes)
func formatSlots(slots []scheduling.CandidateSlot, typ scheduling.AppointmentType) string {
	if len(slots) == 0 {
		return "No available slots found for the requested date."
	}
	suffix := ""
	if typ.Valid() {
		suffix = fmt.Sprintf(" (%s, %d minutes)", typ.Label(), typ.Minutes())
	}
	var order []string
	byDoctor := make(map[string][]scheduling.CandidateSlot)
	for _, s := range slots {
		if _, seen := byDoctor[s.DoctorName]; !seen {
			order = append(order, s.DoctorName)
		}
		byDoctor[s.DoctorName] = append(byDoctor[s.DoctorName], s)
	}
	var lines []string
	for _, doctor := range order {
		lines = append(lines, doctor+":")
		for _, s := range byDoctor[doctor] {
			lines = append(lines, fmt.Sprintf("  - %s to %s%s", s.StartClock(), s.EndClock(), suffix))
		}
	}
	return strings.Join(lines, "\n")
}

func confirmationSummary(f BookingFields, doctor string) string {
	typ := f.Type
	if typ == "" {
		typ = scheduling.GeneralConsultation
	}
	var b strings.Builder
	b.WriteString("Perfect! Before I confirm your booking, let me summarize the details:\n\n")
	fmt.Fprintf(&b, "• **Date**: %s\n", f.Date)
	fmt.Fprintf(&b, "• **Time**: %s\n", f.Time)
	if doctor != "" {
		fmt.Fprintf(&b, "• **Doctor**: %s\n", doctor)
	}
	fmt.Fprintf(&b, "• **Type**: %s\n", typ.Label())
	fmt.Fprintf(&b, "• **Name**: %s\n", f.PatientName)
	fmt.Fprintf(&b, "• **Email**: %s\n", f.PatientEmail)
	fmt.Fprintf(&b, "• **Phone**: %s\n\n", f.PatientPhone)
	b.WriteString(confirmationPrompt)
	return b.String()
}

// confirmationPrompt closes every summary; its presence in the previous
// assistant turn marks a booking awaiting the patient's yes.
const confirmationPrompt = "Please confirm if all details are correct, and I'll proceed with the booking."

func bookedReply(apt scheduling.Appointment) string {
	return fmt.Sprintf(
		"Your appointment is confirmed! Appointment ID: %s. %s with %s on %s from %s to %s. A confirmation has been sent to %s.",
		apt.ID, apt.Type.Label(), apt.DoctorName, apt.Date, apt.StartTime, apt.EndTime, apt.PatientEmail,
	)
}

func missingContactReply(missing []string) string {
	return "Before I can finalize your booking, I need to collect some information. Please provide " + strings.Join(missing, ", ") + "."
}

const (
	rescheduleReply  = "I can help you reschedule your appointment. Please provide your appointment ID and your preferred new date and time."
	cancelReply      = "I can help you cancel your appointment. Please provide your appointment ID and your email address for verification."
	askDateReply     = "I'd be happy to help you find available appointments! Please let me know what date you prefer (e.g., '2025-01-15' or 'tomorrow'), and I'll show you the available time slots."
	waitlistOffer    = "Would you like me to add you to our waitlist for this date? We'll notify you if a slot becomes available."
	tryAnotherTime   = " Would you like to try a different time?"
	pastDateReply    = "I'm sorry, but I cannot schedule appointments for past dates. Please provide a future date."
	slotsOfferSuffix = "\n\nPlease let me know which date and time works for you, and I'll need your name, phone number, and email to complete the booking."
)

func noSlotsReply(date string) string {
	return fmt.Sprintf("I couldn't find any available slots for %s. Would you like to try a different date? %s", date, waitlistOffer)
}

func waitlistJoinedReply(id, date string) string {
	return fmt.Sprintf("You're on the waitlist for %s (reference %s). We'll contact you as soon as a slot opens up.", date, id)
}

// fallbackReply answers without the LLM.
func fallbackReply(message, slots string, info ClinicInfo) string {
	msg := strings.ToLower(message)
	phone := clinicPhone(info)
	switch {
	case slots != "" && containsAny(msg, browseCues):
		return "I'd be happy to help you book an appointment! Here are the available slots:\n" + slots + slotsOfferSuffix
	case containsAny(msg, []string{"book", "appointment", "schedule", "see doctor"}):
		if slots != "" {
			return "I'd be happy to help you book an appointment! Here are available slots:\n" + slots + slotsOfferSuffix
		}
		return "I'd be happy to help you book an appointment! What date would you prefer? I'll check availability and show you options."
	case slots != "":
		return "Here are the available slots:\n" + slots + slotsOfferSuffix
	case containsAny(msg, []string{"hours", "open", "closed", "when"}):
		if hours := formatHours(info.Hours); hours != "" {
			return fmt.Sprintf("Our clinic hours are %s. For more details, please call us at %s.", hours, phone)
		}
		return fmt.Sprintf("Our clinic hours are Monday through Friday from 9:00 AM to 5:00 PM, and Saturday from 10:00 AM to 2:00 PM. We are closed on Sundays. For more details, please call us at %s.", phone)
	case containsAny(msg, []string{"insurance", "accept"}):
		return fmt.Sprintf("We accept most major insurance plans. Please bring your insurance card to your appointment. For more information, call us at %s.", phone)
	}
	return fmt.Sprintf("I'm here to help you with appointment scheduling or answer questions about our clinic. How can I assist you today? You can also call us directly at %s.", phone)
}

var weekdayOrder = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

func formatHours(hours map[string]string) string {
	var parts []string
	for _, day := range weekdayOrder {
		if h, ok := hours[day]; ok {
			parts = append(parts, fmt.Sprintf("%s: %s", capitalize(day), h))
		}
	}
	return strings.Join(parts, "; ")
}

// faqFallback pulls the first answer line out of retrieved context.
func faqFallback(faqContext string, info ClinicInfo) string {
	phone := clinicPhone(info)
	if faqContext != "" && faqContext != NoFAQMatch {
		if _, after, ok := strings.Cut(faqContext, "Answer:"); ok {
			answer := strings.TrimSpace(after)
			if line, _, _ := strings.Cut(answer, "\n"); line != "" {
				return fmt.Sprintf("%s For more information, please call us at %s.", line, phone)
			}
		}
	}
	return fmt.Sprintf("I apologize, but I'm unable to answer that right now. For immediate assistance, please call us at %s. Our staff will be happy to help you.", phone)
}
