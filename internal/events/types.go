package events

const (
	TypeAppointmentBooked      = "appointment.booked.v1"
	TypeAppointmentRescheduled = "appointment.rescheduled.v1"
	TypeAppointmentCancelled   = "appointment.cancelled.v1"
	TypeWaitlistJoined         = "waitlist.joined.v1"
)

// AppointmentEvent is emitted whenever the ledger commits a change.
type AppointmentEvent struct {
	AppointmentID   string `json:"appointment_id"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
	PatientPhone    string `json:"patient_phone,omitempty"`
	DoctorName      string `json:"doctor_name"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time"`
	AppointmentType string `json:"appointment_type"`
	Status          string `json:"status"`
	PreviousDate    string `json:"previous_date,omitempty"`
	PreviousTime    string `json:"previous_time,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

// WaitlistEvent is emitted when a patient joins the waitlist.
type WaitlistEvent struct {
	WaitlistID      string `json:"waitlist_id"`
	PatientName     string `json:"patient_name"`
	PatientEmail    string `json:"patient_email"`
	PatientPhone    string `json:"patient_phone,omitempty"`
	PreferredDate   string `json:"preferred_date"`
	AppointmentType string `json:"appointment_type"`
	DoctorName      string `json:"doctor_name,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}
