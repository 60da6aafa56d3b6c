package scheduling

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

const fixtureSchedule = `{
  "doctors": [
    {
      "name": "Dr. A",
      "available_slots": [
        {"date": "2025-03-10", "time_slots": [
          {"start": "09:00", "end": "09:30", "available": true},
          {"start": "10:00", "end": "11:00", "available": true},
          {"start": "11:00", "end": "11:15", "available": true},
          {"start": "14:00", "end": "14:30", "available": false}
        ]},
        {"date": "2025-03-11", "time_slots": [
          {"start": "09:00", "end": "10:00", "available": true}
        ]},
        {"date": "2025-03-08", "time_slots": [
          {"start": "09:00", "end": "09:30", "available": true}
        ]}
      ]
    },
    {
      "name": "Dr. B",
      "available_slots": [
        {"date": "2025-03-10", "time_slots": [
          {"start": "09:15", "end": "10:00", "available": true}
        ]}
      ]
    }
  ]
}`

// fixtureNow is the day before the main fixture date.
var fixtureNow = time.Date(2025, 3, 9, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *ScheduleStore {
	t.Helper()
	store, err := LoadSchedule(strings.NewReader(fixtureSchedule))
	if err != nil {
		t.Fatalf("load fixture: %v", err)
	}
	return store
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	seq := 0
	base := []Option{
		WithClock(FixedClock{T: fixtureNow}),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("apt-%d", seq)
		}),
	}
	return NewEngine(newTestStore(t), logging.Discard(), append(base, opts...)...)
}

func bookingFor(date, start, doctor string, typ AppointmentType) BookingRequest {
	return BookingRequest{
		PatientName:  "Asha Rao",
		PatientEmail: "right@example.com",
		PatientPhone: "+15555550100",
		Date:         date,
		StartTime:    start,
		DoctorName:   doctor,
		Type:         typ,
	}
}
