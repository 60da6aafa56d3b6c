package conversation

import "strings"

var schedulingKeywords = []string{
	"appointment", "schedule", "book", "available", "slot", "time",
	"doctor", "visit", "see", "meet", "consultation", "when can i",
	"i need", "i want to", "make an appointment", "show me", "options",
	"show options", "times available", "available times",
}

var faqKeywords = []string{
	"what are", "how do", "when are", "where is", "why", "hours", "open", "closed",
	"insurance", "accept", "parking", "cancel policy", "cost",
	"price", "fee", "service", "provide", "do you accept", "can i get",
	"what should i bring", "what to bring", "bring to", "required", "documents",
	"how do i cancel", "how to cancel", "how do i reschedule", "how to reschedule",
	"cancel or reschedule", "reschedule or cancel", "cancellation", "rescheduling",
	"what is the address", "address", "location", "directions",
	"what time", "what are your", "tell me about", "information about",
}

var (
	browseCues       = []string{"show", "options", "available", "slots", "times"}
	bookingContext   = []string{"appointment", "book", "schedule", "date", "prefer"}
	explicitSchedule = []string{"schedule", "appointment", "book"}
)

// ClassifyIntent scores the message against scheduling and FAQ keywords.
// A recent scheduling context turns "show me options" into scheduling, and
// ties go to FAQ.
func (n *RuleBasedNLU) ClassifyIntent(text string, history []ChatMessage) Intent {
	msg := strings.ToLower(text)
	sched := countMatches(msg, schedulingKeywords)
	faq := countMatches(msg, faqKeywords)

	if len(history) > 0 {
		recent := lastTurns(history, 3)
		if containsAny(recent, schedulingKeywords) {
			sched += 2
		}
		if containsAny(recent, faqKeywords) {
			faq += 2
		}
		if containsAny(msg, browseCues) && containsAny(lastTurns(history, 2), bookingContext) {
			return IntentScheduling
		}
	}

	switch {
	case faq > sched+1:
		return IntentFAQ
	case containsAny(msg, explicitSchedule):
		return IntentScheduling
	case faq >= sched:
		return IntentFAQ
	default:
		return IntentScheduling
	}
}
