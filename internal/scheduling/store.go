package scheduling

import (
	"fmt"
	"strings"
)

// ScheduleStore is the single in-memory copy of every doctor's slots.
// It is not safe for concurrent use on its own; Engine serialises access.
type ScheduleStore struct {
	doctors []*Doctor
}

// NewScheduleStore wraps already validated doctors, keeping their order.
func NewScheduleStore(doctors []*Doctor) *ScheduleStore {
	return &ScheduleStore{doctors: doctors}
}

// Doctors returns doctor names in store order.
func (s *ScheduleStore) Doctors() []string {
	names := make([]string, 0, len(s.doctors))
	for _, d := range s.doctors {
		names = append(names, d.Name)
	}
	return names
}

// SlotsFor lists every slot on date, available or not. doctorFilter matches
// doctor names case-insensitively by substring; empty matches all.
func (s *ScheduleStore) SlotsFor(doctorFilter, date string) []ScheduledSlot {
	var out []ScheduledSlot
	s.eachDay(doctorFilter, date, func(doc *Doctor, day *DaySchedule) bool {
		for _, slot := range day.TimeSlots {
			out = append(out, ScheduledSlot{
				Doctor:    doc.Name,
				Date:      day.Date,
				Start:     slot.Start,
				End:       slot.End,
				Available: slot.Available,
			})
		}
		return true
	})
	return out
}

// MarkBooked flips the slot to unavailable.
func (s *ScheduleStore) MarkBooked(doctor, date, start string) error {
	return s.setAvailable(doctor, date, start, false)
}

// MarkAvailable flips the slot back to available.
func (s *ScheduleStore) MarkAvailable(doctor, date, start string) error {
	return s.setAvailable(doctor, date, start, true)
}

func (s *ScheduleStore) setAvailable(doctor, date, start string, available bool) error {
	slot := s.find(doctor, date, start)
	if slot == nil {
		return fmt.Errorf("%w: %s", ErrSlotNotFound, SlotKey{Date: date, Start: start, Doctor: doctor})
	}
	slot.Available = available
	return nil
}

// find resolves an exact doctor name, date and start.
func (s *ScheduleStore) find(doctor, date, start string) *Slot {
	for _, doc := range s.doctors {
		if doc.Name != doctor {
			continue
		}
		for _, day := range doc.AvailableSlots {
			if day.Date != date {
				continue
			}
			for _, slot := range day.TimeSlots {
				if slot.Start == start {
					return slot
				}
			}
		}
	}
	return nil
}

// eachDay visits matching doctors' schedules for date in store order until fn returns false.
func (s *ScheduleStore) eachDay(doctorFilter, date string, fn func(*Doctor, *DaySchedule) bool) {
	filter := strings.ToLower(strings.TrimSpace(doctorFilter))
	for _, doc := range s.doctors {
		if filter != "" && !strings.Contains(strings.ToLower(doc.Name), filter) {
			continue
		}
		for _, day := range doc.AvailableSlots {
			if day.Date != date {
				continue
			}
			if !fn(doc, day) {
				return
			}
		}
	}
}
