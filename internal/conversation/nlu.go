package conversation

import (
	"strings"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

// Intent routes a chat turn.
type Intent string

const (
	IntentScheduling Intent = "scheduling"
	IntentFAQ        Intent = "faq"
)

// BookingFields is everything the extractor could find across a conversation.
// Empty strings mean "not mentioned".
type BookingFields struct {
	Date         string
	Time         string
	DoctorName   string
	PatientName  string
	PatientEmail string
	PatientPhone string
	Type         scheduling.AppointmentType
	// TypeChanged is set when the patient switched type mid-flow ("actually, make it a follow-up").
	TypeChanged bool
	Reason      string
}

// MissingContact lists the patient details still needed to book.
func (f BookingFields) MissingContact() []string {
	var missing []string
	if f.PatientName == "" {
		missing = append(missing, "your full name")
	}
	if f.PatientEmail == "" {
		missing = append(missing, "your email address")
	}
	if f.PatientPhone == "" {
		missing = append(missing, "your phone number")
	}
	return missing
}

// NLU classifies turns and pulls booking details out of free text.
type NLU interface {
	ClassifyIntent(text string, history []ChatMessage) Intent
	ExtractBookingFields(text string, history []ChatMessage) BookingFields
}

// RuleBasedNLU is a keyword and regex implementation of NLU. Relative dates
// ("today", "tomorrow") resolve against its clock.
type RuleBasedNLU struct {
	clock scheduling.Clock
}

var _ NLU = (*RuleBasedNLU)(nil)

func NewRuleBasedNLU(clock scheduling.Clock) *RuleBasedNLU {
	if clock == nil {
		clock = scheduling.NewSystemClock("")
	}
	return &RuleBasedNLU{clock: clock}
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

func countMatches(s string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			n++
		}
	}
	return n
}

// lastTurns joins the lowercased content of the final n history messages.
func lastTurns(history []ChatMessage, n int) string {
	if len(history) > n {
		history = history[len(history)-n:]
	}
	parts := make([]string, 0, len(history))
	for _, msg := range history {
		parts = append(parts, strings.ToLower(msg.Content))
	}
	return strings.Join(parts, " ")
}

// userTurns returns user messages newest first.
func userTurns(history []ChatMessage) []string {
	out := make([]string, 0, len(history))
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == ChatRoleUser {
			out = append(out, history[i].Content)
		}
	}
	return out
}
