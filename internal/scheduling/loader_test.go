package scheduling

import (
	"errors"
	"strings"
	"testing"
)

func TestLoadScheduleKeepsDocumentOrder(t *testing.T) {
	store := newTestStore(t)
	doctors := store.Doctors()
	if len(doctors) != 2 || doctors[0] != "Dr. A" || doctors[1] != "Dr. B" {
		t.Fatalf("unexpected doctors %v", doctors)
	}
}

func TestLoadScheduleRejectsInvalidDocuments(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{"doctors": [`},
		{"missing name", `{"doctors":[{"name":"","available_slots":[]}]}`},
		{"duplicate doctor", `{"doctors":[{"name":"Dr. A"},{"name":"Dr. A"}]}`},
		{"bad date", `{"doctors":[{"name":"Dr. A","available_slots":[{"date":"10/03/2025","time_slots":[]}]}]}`},
		{"duplicate date", `{"doctors":[{"name":"Dr. A","available_slots":[{"date":"2025-03-10"},{"date":"2025-03-10"}]}]}`},
		{"bad clock", `{"doctors":[{"name":"Dr. A","available_slots":[{"date":"2025-03-10","time_slots":[{"start":"9:00","end":"09:30","available":true}]}]}]}`},
		{"end before start", `{"doctors":[{"name":"Dr. A","available_slots":[{"date":"2025-03-10","time_slots":[{"start":"10:00","end":"09:30","available":true}]}]}]}`},
		{"duplicate start", `{"doctors":[{"name":"Dr. A","available_slots":[{"date":"2025-03-10","time_slots":[{"start":"09:00","end":"09:30"},{"start":"09:00","end":"09:45"}]}]}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSchedule(strings.NewReader(tt.doc))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.name != "not json" && !errors.Is(err, ErrInvalidSchedule) {
				t.Fatalf("expected ErrInvalidSchedule, got %v", err)
			}
		})
	}
}
