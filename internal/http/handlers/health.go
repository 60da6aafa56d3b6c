package handlers

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
)

// ServiceVersion is reported by the root banner.
const ServiceVersion = "1.0.0"

// Root handles GET /.
func Root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "Appointment Scheduling Agent API",
		"version": ServiceVersion,
	})
}

// Health handles GET /health.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type statsSource interface {
	ActiveAppointments() []scheduling.Appointment
}

type waitlistSize interface {
	Len() int
}

// StatsHandler reports ledger size and scheduling operation counts.
type StatsHandler struct {
	engine   statsSource
	waitlist waitlistSize
	gatherer prometheus.Gatherer
}

func NewStatsHandler(engine statsSource, wl waitlistSize, gatherer prometheus.Gatherer) *StatsHandler {
	return &StatsHandler{engine: engine, waitlist: wl, gatherer: gatherer}
}

type StatsResponse struct {
	ActiveAppointments int                      `json:"active_appointments"`
	WaitlistEntries    int                      `json:"waitlist_entries"`
	Operations         []metrics.OperationCount `json:"operations"`
}

// Stats handles GET /api/stats.
func (h *StatsHandler) Stats(w http.ResponseWriter, _ *http.Request) {
	var resp StatsResponse
	if h.engine != nil {
		resp.ActiveAppointments = len(h.engine.ActiveAppointments())
	}
	if h.waitlist != nil {
		resp.WaitlistEntries = h.waitlist.Len()
	}
	resp.Operations = metrics.SnapshotOperations(h.gatherer)
	writeJSON(w, http.StatusOK, resp)
}
