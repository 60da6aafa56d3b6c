package scheduling

import "errors"

var (
	// ErrInvalidFormat indicates a malformed date or time string.
	ErrInvalidFormat = errors.New("scheduling: invalid date or time format")
	// ErrPastDate indicates a date before today in the clinic zone.
	ErrPastDate = errors.New("scheduling: date is in the past")
	// ErrSlotUnavailable indicates the slot is not in current availability.
	ErrSlotUnavailable = errors.New("scheduling: slot unavailable")
	// ErrSlotAlreadyBooked indicates another active appointment holds the slot.
	ErrSlotAlreadyBooked = errors.New("scheduling: slot already booked")
	// ErrAppointmentNotFound indicates an unknown appointment id.
	ErrAppointmentNotFound = errors.New("scheduling: appointment not found")
	// ErrVerificationFailed indicates the supplied email does not match the booking.
	ErrVerificationFailed = errors.New("scheduling: email verification failed")
	// ErrSlotNotFound indicates no slot exists for a doctor/date/start triple.
	ErrSlotNotFound = errors.New("scheduling: slot not found")
	// ErrInvalidAppointmentType indicates an unsupported appointment type.
	ErrInvalidAppointmentType = errors.New("scheduling: invalid appointment type")
	// ErrInvalidSchedule indicates the schedule document failed validation.
	ErrInvalidSchedule = errors.New("scheduling: invalid schedule")
)
