package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/wolfman30/clinic-scheduler/internal/observability/metrics"
	"github.com/wolfman30/clinic-scheduler/internal/scheduling"
	"github.com/wolfman30/clinic-scheduler/internal/waitlist"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const testSchedule = `{
  "doctors": [
    {
      "name": "Dr. Sarah Johnson",
      "available_slots": [
        {"date": "2025-03-10", "time_slots": [
          {"start": "09:00", "end": "09:30", "available": true},
          {"start": "10:00", "end": "11:00", "available": true},
          {"start": "14:00", "end": "14:30", "available": false}
        ]}
      ]
    },
    {
      "name": "Dr. Michael Chen",
      "available_slots": [
        {"date": "2025-03-10", "time_slots": [
          {"start": "09:30", "end": "10:30", "available": true}
        ]}
      ]
    }
  ]
}`

var testNow = time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

type fixture struct {
	engine   *scheduling.Engine
	waitlist *waitlist.Registry
	registry *prometheus.Registry
	router   chi.Router
	faker    *gofakeit.Faker
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := scheduling.LoadSchedule(strings.NewReader(testSchedule))
	if err != nil {
		t.Fatalf("load schedule: %v", err)
	}
	reg := prometheus.NewRegistry()
	m := metrics.NewSchedulingMetrics(reg)
	clock := scheduling.FixedClock{T: testNow}

	seq := 0
	engine := scheduling.NewEngine(store, logging.Discard(),
		scheduling.WithClock(clock),
		scheduling.WithMetrics(m),
		scheduling.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("apt-%d", seq)
		}),
	)
	wl := waitlist.NewRegistry(logging.Discard(),
		waitlist.WithClock(clock),
		waitlist.WithMetrics(m),
		waitlist.WithIDGenerator(func() string { return "wl-1" }),
	)

	h := NewCalendlyHandler(CalendlyConfig{Engine: engine, Waitlist: wl, Logger: logging.Discard()})
	r := chi.NewRouter()
	r.Mount("/api/calendly", h.Routes(nil))

	return &fixture{engine: engine, waitlist: wl, registry: reg, router: r, faker: gofakeit.New(7)}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		if err := json.NewEncoder(&buf).Encode(b); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) bookRequest(date, start, doctor string) BookRequest {
	return BookRequest{
		PatientName:  f.faker.Name(),
		PatientEmail: f.faker.Email(),
		PatientPhone: f.faker.Phone(),
		Date:         date,
		StartTime:    start,
		DoctorName:   doctor,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func TestWriteFailure(t *testing.T) {
	rec := httptest.NewRecorder()
	writeFailure(rec, http.StatusTeapot, "oops")

	expectStatus(t, rec, http.StatusTeapot)
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected content type application/json, got %q", ct)
	}
	body := decode[map[string]any](t, rec)
	if body["success"] != false || body["message"] != "oops" {
		t.Fatalf("unexpected body %v", body)
	}
}
