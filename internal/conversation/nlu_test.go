package conversation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

var testNow = time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

func newTestNLU() *RuleBasedNLU {
	return NewRuleBasedNLU(scheduling.FixedClock{T: testNow})
}

func TestClassifyIntent(t *testing.T) {
	nlu := newTestNLU()
	bookingHistory := []ChatMessage{
		{Role: ChatRoleUser, Content: "I'd like to book an appointment"},
		{Role: ChatRoleAssistant, Content: "Sure! What date do you prefer?"},
	}

	tests := []struct {
		name    string
		message string
		history []ChatMessage
		want    Intent
	}{
		{"hours question", "What are your hours?", nil, IntentFAQ},
		{"insurance question", "Do you accept insurance?", nil, IntentFAQ},
		{"address and parking", "What is the address and is there parking?", nil, IntentFAQ},
		{"explicit booking", "I want to book an appointment", nil, IntentScheduling},
		{"browse in booking context", "show me options", bookingHistory, IntentScheduling},
		{"greeting ties to faq", "hello", nil, IntentFAQ},
		{"faq lead of one without explicit keyword", "What documents are required for the visit?", nil, IntentFAQ},
		{"scheduling words only", "Can I see a doctor?", nil, IntentScheduling},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nlu.ClassifyIntent(tt.message, tt.history))
		})
	}
}

func TestExtractBookingFieldsFromSingleMessage(t *testing.T) {
	nlu := newTestNLU()

	tests := []struct {
		name    string
		message string
		want    BookingFields
	}{
		{
			name:    "iso date, meridiem time and doctor",
			message: "I'd like 2025-03-10 at 9am with Dr. Sarah Johnson",
			want:    BookingFields{Date: "2025-03-10", Time: "09:00", DoctorName: "Dr. Sarah Johnson"},
		},
		{
			name:    "us date and minutes with pm",
			message: "How about 03/12/2025 2:30pm",
			want:    BookingFields{Date: "2025-03-12", Time: "14:30"},
		},
		{
			name:    "dashed us date and 24h clock",
			message: "03-11-2025 16:45",
			want:    BookingFields{Date: "2025-03-11", Time: "16:45"},
		},
		{
			name:    "tomorrow",
			message: "tomorrow at 10:15",
			want:    BookingFields{Date: "2025-03-10", Time: "10:15"},
		},
		{
			name:    "today and midnight",
			message: "today 12am",
			want:    BookingFields{Date: "2025-03-09", Time: "00:00"},
		},
		{
			name:    "noon",
			message: "2025-03-10 12pm",
			want:    BookingFields{Date: "2025-03-10", Time: "12:00"},
		},
		{
			name:    "invalid calendar date ignored",
			message: "2025-02-30",
			want:    BookingFields{},
		},
		{
			name:    "contact details",
			message: "My name is John Smith, email john.smith@example.com, phone 555-123-4567",
			want:    BookingFields{PatientName: "John Smith", PatientEmail: "john.smith@example.com", PatientPhone: "555-123-4567"},
		},
		{
			name:    "indian phone",
			message: "call me on +91 9897761393",
			want:    BookingFields{PatientPhone: "+91 9897761393"},
		},
		{
			name:    "bare name segment",
			message: "Priya Sharma, priya@example.com",
			want:    BookingFields{PatientName: "Priya Sharma", PatientEmail: "priya@example.com"},
		},
		{
			name:    "weekday is not a name",
			message: "Monday Morning",
			want:    BookingFields{},
		},
		{
			name:    "physical exam type and reason",
			message: "I need a physical exam",
			want:    BookingFields{Type: scheduling.PhysicalExam, Reason: "physical examination"},
		},
		{
			name:    "headache reason",
			message: "I have a headache",
			want:    BookingFields{Reason: "headache"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, nlu.ExtractBookingFields(tt.message, nil))
		})
	}
}

func TestExtractBookingFieldsPrefersNewestUserTurn(t *testing.T) {
	nlu := newTestNLU()
	history := []ChatMessage{
		{Role: ChatRoleUser, Content: "I'd like a general consultation on 2025-03-10 at 9am. I'm Asha Rao"},
		{Role: ChatRoleAssistant, Content: "Dr. Michael Chen has 10:00 on 2025-03-12"},
	}

	got := nlu.ExtractBookingFields("Actually, make it a follow-up on 2025-03-11", history)

	assert.Equal(t, "2025-03-11", got.Date)
	assert.Equal(t, "09:00", got.Time, "time carries over from the earlier turn")
	assert.Equal(t, "Asha Rao", got.PatientName)
	assert.Empty(t, got.DoctorName, "assistant turns are not mined")
	assert.Equal(t, scheduling.FollowUp, got.Type)
	assert.True(t, got.TypeChanged)
}

func TestMissingContact(t *testing.T) {
	assert.Equal(t,
		[]string{"your full name", "your email address", "your phone number"},
		BookingFields{}.MissingContact())
	assert.Empty(t, BookingFields{PatientName: "A B", PatientEmail: "a@b.co", PatientPhone: "5551234567"}.MissingContact())
}
