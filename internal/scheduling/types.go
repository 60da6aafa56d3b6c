// Package scheduling owns doctor availability and the appointment ledger.
package scheduling

import (
	"fmt"
	"strings"
	"time"
)

const (
	// DateLayout is the wire format for calendar dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for wall-clock times.
	TimeLayout = "15:04"
	// TimestampLayout renders local timestamps without a zone suffix.
	TimestampLayout = "2006-01-02T15:04:05"

	// DefaultMaxSlots caps availability results when callers pass zero.
	DefaultMaxSlots = 5
)

// AppointmentType is a visit category with a fixed duration.
type AppointmentType string

const (
	GeneralConsultation    AppointmentType = "general_consultation"
	FollowUp               AppointmentType = "follow_up"
	PhysicalExam           AppointmentType = "physical_exam"
	SpecialistConsultation AppointmentType = "specialist_consultation"
)

var appointmentDurations = map[AppointmentType]time.Duration{
	GeneralConsultation:    30 * time.Minute,
	FollowUp:               15 * time.Minute,
	PhysicalExam:           45 * time.Minute,
	SpecialistConsultation: 60 * time.Minute,
}

// AppointmentTypes lists the supported types in display order.
func AppointmentTypes() []AppointmentType {
	return []AppointmentType{GeneralConsultation, FollowUp, PhysicalExam, SpecialistConsultation}
}

// Duration returns the fixed length of the appointment type.
func (t AppointmentType) Duration() (time.Duration, bool) {
	d, ok := appointmentDurations[t]
	return d, ok
}

// Minutes returns the duration in whole minutes, or zero for unknown types.
func (t AppointmentType) Minutes() int {
	d, ok := appointmentDurations[t]
	if !ok {
		return 0
	}
	return int(d / time.Minute)
}

// Valid reports whether t is one of the supported types.
func (t AppointmentType) Valid() bool {
	_, ok := appointmentDurations[t]
	return ok
}

// Label renders "physical_exam" as "Physical Exam".
func (t AppointmentType) Label() string {
	parts := strings.Split(string(t), "_")
	for i, p := range parts {
		if p == "" {
			continue
		}
		parts[i] = strings.ToUpper(p[:1]) + p[1:]
	}
	return strings.Join(parts, " ")
}

// ParseAppointmentType resolves a wire value. An empty string yields ("", nil).
func ParseAppointmentType(raw string) (AppointmentType, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return "", nil
	}
	t := AppointmentType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidAppointmentType, raw)
	}
	return t, nil
}

// Slot is one bookable span on a doctor's day.
type Slot struct {
	Start     string `json:"start"`
	End       string `json:"end"`
	Available bool   `json:"available"`
}

// DaySchedule is a doctor's ordered slots for one date.
type DaySchedule struct {
	Date      string  `json:"date"`
	TimeSlots []*Slot `json:"time_slots"`
}

// Doctor owns its day schedules in document order.
type Doctor struct {
	Name           string         `json:"name"`
	AvailableSlots []*DaySchedule `json:"available_slots"`
}

// ScheduledSlot is a read-only view of a slot labelled with its doctor.
type ScheduledSlot struct {
	Doctor    string
	Date      string
	Start     string
	End       string
	Available bool
}

// CandidateSlot is an availability result. Times are local, without zone.
type CandidateSlot struct {
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	DoctorName string `json:"doctor_name"`
	Available  bool   `json:"available"`
}

// StartClock returns the HH:MM part of StartTime.
func (c CandidateSlot) StartClock() string {
	return clockPart(c.StartTime)
}

// EndClock returns the HH:MM part of EndTime.
func (c CandidateSlot) EndClock() string {
	return clockPart(c.EndTime)
}

func clockPart(ts string) string {
	if i := strings.IndexByte(ts, 'T'); i >= 0 && len(ts) >= i+6 {
		return ts[i+1 : i+6]
	}
	return ""
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a ledger record. Values handed out by the engine are copies.
type Appointment struct {
	ID              string            `json:"appointment_id"`
	PatientName     string            `json:"patient_name"`
	PatientEmail    string            `json:"patient_email"`
	PatientPhone    string            `json:"patient_phone"`
	DoctorName      string            `json:"doctor_name"`
	Date            string            `json:"date"`
	StartTime       string            `json:"start_time"`
	EndTime         string            `json:"end_time"`
	Type            AppointmentType   `json:"appointment_type"`
	DurationMinutes int               `json:"duration_minutes"`
	Reason          string            `json:"reason,omitempty"`
	Status          AppointmentStatus `json:"status"`
	CreatedAt       string            `json:"created_at"`
	RescheduledAt   string            `json:"rescheduled_at,omitempty"`
	PreviousDate    string            `json:"previous_date,omitempty"`
	PreviousTime    string            `json:"previous_time,omitempty"`
}

// Key returns the slot identity of the appointment.
func (a Appointment) Key() SlotKey {
	return SlotKey{Date: a.Date, Start: a.StartTime, Doctor: a.DoctorName}
}

// Summary is the date/time triple reported for a reschedule.
type Summary struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

func (a Appointment) summary() Summary {
	return Summary{Date: a.Date, StartTime: a.StartTime, EndTime: a.EndTime}
}

// SlotKey is the uniqueness boundary for active bookings.
type SlotKey struct {
	Date   string
	Start  string
	Doctor string
}

func (k SlotKey) String() string {
	return k.Date + "_" + k.Start + "_" + k.Doctor
}

// AvailabilityQuery selects candidate slots.
type AvailabilityQuery struct {
	Date   string
	Doctor string
	Type   AppointmentType
	// MaxSlots <= 0 uses the engine default.
	MaxSlots int
	// BufferMinutes is accepted for compatibility and has no effect on selection.
	BufferMinutes int
}

// BookingRequest carries everything needed to book a slot.
type BookingRequest struct {
	PatientName  string
	PatientEmail string
	PatientPhone string
	Date         string
	StartTime    string
	DoctorName   string
	Type         AppointmentType
	Reason       string
}

// RescheduleResult reports where an appointment moved from and to.
type RescheduleResult struct {
	Appointment Appointment
	Old         Summary
	New         Summary
}
