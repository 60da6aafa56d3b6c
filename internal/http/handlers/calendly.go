package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/internal/waitlist"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// SchedulingEngine is what the booking endpoints need from the engine.
type SchedulingEngine interface {
	Availability(ctx context.Context, q scheduling.AvailabilityQuery) []scheduling.CandidateSlot
	Book(ctx context.Context, req scheduling.BookingRequest) (scheduling.Appointment, error)
	Reschedule(ctx context.Context, id, newDate, newStart string) (scheduling.RescheduleResult, error)
	Cancel(ctx context.Context, id, verifyEmail string) (scheduling.Appointment, error)
	Appointment(ctx context.Context, id string) (scheduling.Appointment, error)
}

// WaitlistRegistry is what the waitlist endpoints need.
type WaitlistRegistry interface {
	Add(ctx context.Context, req waitlist.Request) waitlist.Entry
	Query(date string, appointmentType scheduling.AppointmentType) []waitlist.Entry
}

type CalendlyConfig struct {
	Engine   SchedulingEngine
	Waitlist WaitlistRegistry
	Logger   *logging.Logger
}

// CalendlyHandler serves the Calendly-style booking API under /api/calendly.
type CalendlyHandler struct {
	engine   SchedulingEngine
	waitlist WaitlistRegistry
	validate *validator.Validate
	logger   *logging.Logger
}

func NewCalendlyHandler(cfg CalendlyConfig) *CalendlyHandler {
	if cfg.Engine == nil {
		panic("handlers: scheduling engine cannot be nil")
	}
	if cfg.Waitlist == nil {
		panic("handlers: waitlist registry cannot be nil")
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Default()
	}
	return &CalendlyHandler{
		engine:   cfg.Engine,
		waitlist: cfg.Waitlist,
		validate: newValidator(),
		logger:   cfg.Logger,
	}
}

// Routes mounts the handler's endpoints. limit, when non-nil, wraps the
// mutating routes.
func (h *CalendlyHandler) Routes(limit func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/availability", h.Availability)
	r.Get("/waitlist", h.ListWaitlist)
	r.Get("/appointments/{appointmentID}", h.GetAppointment)
	r.Group(func(mut chi.Router) {
		if limit != nil {
			mut.Use(limit)
		}
		mut.Post("/book", h.Book)
		mut.Post("/reschedule", h.Reschedule)
		mut.Post("/cancel", h.Cancel)
		mut.Post("/waitlist", h.JoinWaitlist)
	})
	return r
}

type AvailabilityResponse struct {
	Date  string                     `json:"date"`
	Slots []scheduling.CandidateSlot `json:"slots"`
}

// Availability handles GET /availability?date=&doctor_name=&appointment_type=.
// Unknown appointment types are ignored, and malformed or past dates yield no slots.
func (h *CalendlyHandler) Availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := strings.TrimSpace(q.Get("date"))
	if date == "" {
		writeFailure(w, http.StatusBadRequest, "date is required")
		return
	}

	query := scheduling.AvailabilityQuery{
		Date:   date,
		Doctor: strings.TrimSpace(q.Get("doctor_name")),
	}
	if typ, err := scheduling.ParseAppointmentType(q.Get("appointment_type")); err == nil {
		query.Type = typ
	}
	if raw := q.Get("buffer_minutes"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			query.BufferMinutes = n
		}
	}

	writeJSON(w, http.StatusOK, AvailabilityResponse{
		Date:  date,
		Slots: h.engine.Availability(r.Context(), query),
	})
}

type BookRequest struct {
	PatientName     string `json:"patient_name" validate:"required"`
	PatientEmail    string `json:"patient_email" validate:"required,email"`
	PatientPhone    string `json:"patient_phone" validate:"required"`
	Date            string `json:"date" validate:"required"`
	StartTime       string `json:"start_time" validate:"required"`
	DoctorName      string `json:"doctor_name" validate:"required"`
	AppointmentType string `json:"appointment_type,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

type BookResponse struct {
	Success            bool                    `json:"success"`
	AppointmentID      string                  `json:"appointment_id,omitempty"`
	Message            string                  `json:"message"`
	AppointmentDetails *scheduling.Appointment `json:"appointment_details,omitempty"`
}

// Book handles POST /book.
func (h *CalendlyHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req BookRequest
	if msg, ok := decodeAndValidate(r, h.validate, &req); !ok {
		writeFailure(w, http.StatusBadRequest, msg)
		return
	}
	typ, err := scheduling.ParseAppointmentType(req.AppointmentType)
	if err != nil {
		h.writeEngineError(w, "book", err)
		return
	}

	apt, err := h.engine.Book(r.Context(), scheduling.BookingRequest{
		PatientName:  strings.TrimSpace(req.PatientName),
		PatientEmail: strings.TrimSpace(req.PatientEmail),
		PatientPhone: strings.TrimSpace(req.PatientPhone),
		Date:         req.Date,
		StartTime:    req.StartTime,
		DoctorName:   req.DoctorName,
		Type:         typ,
		Reason:       req.Reason,
	})
	if err != nil {
		h.writeEngineError(w, "book", err)
		return
	}
	writeJSON(w, http.StatusOK, BookResponse{
		Success:            true,
		AppointmentID:      apt.ID,
		Message:            fmt.Sprintf("Appointment successfully booked! Your appointment ID is %s.", apt.ID),
		AppointmentDetails: &apt,
	})
}

type RescheduleRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	NewDate       string `json:"new_date" validate:"required"`
	NewStartTime  string `json:"new_start_time" validate:"required"`
}

type RescheduleResponse struct {
	Success        bool                `json:"success"`
	AppointmentID  string              `json:"appointment_id"`
	Message        string              `json:"message"`
	OldAppointment *scheduling.Summary `json:"old_appointment,omitempty"`
	NewAppointment *scheduling.Summary `json:"new_appointment,omitempty"`
}

// Reschedule handles POST /reschedule.
func (h *CalendlyHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	var req RescheduleRequest
	if msg, ok := decodeAndValidate(r, h.validate, &req); !ok {
		writeFailure(w, http.StatusBadRequest, msg)
		return
	}

	res, err := h.engine.Reschedule(r.Context(), req.AppointmentID, req.NewDate, req.NewStartTime)
	if err != nil {
		h.writeEngineError(w, "reschedule", err)
		return
	}
	writeJSON(w, http.StatusOK, RescheduleResponse{
		Success:        true,
		AppointmentID:  req.AppointmentID,
		Message:        fmt.Sprintf("Appointment successfully rescheduled to %s at %s.", res.New.Date, res.New.StartTime),
		OldAppointment: &res.Old,
		NewAppointment: &res.New,
	})
}

type CancelRequest struct {
	AppointmentID string `json:"appointment_id" validate:"required"`
	PatientEmail  string `json:"patient_email,omitempty" validate:"omitempty,email"`
}

type CancelResponse struct {
	Success              bool                    `json:"success"`
	AppointmentID        string                  `json:"appointment_id"`
	Message              string                  `json:"message"`
	CancelledAppointment *scheduling.Appointment `json:"cancelled_appointment,omitempty"`
}

// Cancel handles POST /cancel. A supplied email must match the booking.
func (h *CalendlyHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	var req CancelRequest
	if msg, ok := decodeAndValidate(r, h.validate, &req); !ok {
		writeFailure(w, http.StatusBadRequest, msg)
		return
	}

	apt, err := h.engine.Cancel(r.Context(), req.AppointmentID, req.PatientEmail)
	if err != nil {
		h.writeEngineError(w, "cancel", err)
		return
	}
	writeJSON(w, http.StatusOK, CancelResponse{
		Success:       true,
		AppointmentID: apt.ID,
		Message: fmt.Sprintf("Appointment successfully cancelled. Your slot for %s at %s has been released.",
			apt.Date, apt.StartTime),
		CancelledAppointment: &apt,
	})
}

type WaitlistRequest struct {
	PatientName     string `json:"patient_name" validate:"required"`
	PatientEmail    string `json:"patient_email" validate:"required,email"`
	PatientPhone    string `json:"patient_phone" validate:"required"`
	PreferredDate   string `json:"preferred_date" validate:"required"`
	AppointmentType string `json:"appointment_type,omitempty"`
	DoctorName      string `json:"doctor_name,omitempty"`
}

type WaitlistResponse struct {
	Success    bool   `json:"success"`
	WaitlistID string `json:"waitlist_id"`
	Message    string `json:"message"`
}

// JoinWaitlist handles POST /waitlist. Entries are accepted for any date.
func (h *CalendlyHandler) JoinWaitlist(w http.ResponseWriter, r *http.Request) {
	var req WaitlistRequest
	if msg, ok := decodeAndValidate(r, h.validate, &req); !ok {
		writeFailure(w, http.StatusBadRequest, msg)
		return
	}
	typ, err := scheduling.ParseAppointmentType(req.AppointmentType)
	if err != nil {
		h.writeEngineError(w, "waitlist", err)
		return
	}
	if typ == "" {
		typ = scheduling.GeneralConsultation
	}

	entry := h.waitlist.Add(r.Context(), waitlist.Request{
		PatientName:     strings.TrimSpace(req.PatientName),
		PatientEmail:    strings.TrimSpace(req.PatientEmail),
		PatientPhone:    strings.TrimSpace(req.PatientPhone),
		PreferredDate:   req.PreferredDate,
		AppointmentType: typ,
		DoctorName:      req.DoctorName,
	})
	writeJSON(w, http.StatusOK, WaitlistResponse{
		Success:    true,
		WaitlistID: entry.ID,
		Message: fmt.Sprintf("You've been added to our waitlist for %s. We'll notify you at %s if a slot becomes available.",
			entry.PreferredDate, entry.PatientEmail),
	})
}

type WaitlistListResponse struct {
	Entries []waitlist.Entry `json:"entries"`
	Count   int              `json:"count"`
}

// ListWaitlist handles GET /waitlist?date=&appointment_type=.
func (h *CalendlyHandler) ListWaitlist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	typ, err := scheduling.ParseAppointmentType(q.Get("appointment_type"))
	if err != nil {
		writeFailure(w, http.StatusBadRequest, "Invalid appointment type.")
		return
	}
	entries := h.waitlist.Query(strings.TrimSpace(q.Get("date")), typ)
	writeJSON(w, http.StatusOK, WaitlistListResponse{Entries: entries, Count: len(entries)})
}

// GetAppointment handles GET /appointments/{appointmentID}.
func (h *CalendlyHandler) GetAppointment(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "appointmentID"))
	apt, err := h.engine.Appointment(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, "get_appointment", err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

// engineFailure maps engine errors to a status and a patient-facing message.
func engineFailure(err error) (int, string) {
	switch {
	case errors.Is(err, scheduling.ErrInvalidFormat):
		return http.StatusBadRequest, "Invalid date or time format. Use YYYY-MM-DD and HH:MM."
	case errors.Is(err, scheduling.ErrPastDate):
		return http.StatusBadRequest, "Cannot reschedule to a past date."
	case errors.Is(err, scheduling.ErrInvalidAppointmentType):
		return http.StatusBadRequest, "Invalid appointment type."
	case errors.Is(err, scheduling.ErrAppointmentNotFound):
		return http.StatusNotFound, "Appointment not found. Please check your appointment ID."
	case errors.Is(err, scheduling.ErrSlotNotFound):
		return http.StatusNotFound, "The requested slot does not exist."
	case errors.Is(err, scheduling.ErrSlotAlreadyBooked):
		return http.StatusConflict, "This appointment slot has already been booked. Please select another time."
	case errors.Is(err, scheduling.ErrSlotUnavailable):
		return http.StatusConflict, "The requested slot is no longer available. Please choose a different time."
	case errors.Is(err, scheduling.ErrVerificationFailed):
		return http.StatusForbidden, "Email verification failed. Please provide the correct email address."
	}
	return http.StatusInternalServerError, "Something went wrong. Please try again."
}

func (h *CalendlyHandler) writeEngineError(w http.ResponseWriter, op string, err error) {
	status, msg := engineFailure(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("calendly: operation failed", "operation", op, "error", err)
	} else {
		h.logger.Info("calendly: request rejected", "operation", op, "reason", err)
	}
	writeFailure(w, status, msg)
}
