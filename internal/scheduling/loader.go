package scheduling

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

type scheduleDocument struct {
	Doctors []*Doctor `json:"doctors"`
}

// LoadSchedule decodes and validates a schedule document.
func LoadSchedule(r io.Reader) (*ScheduleStore, error) {
	var doc scheduleDocument
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("scheduling: decode schedule: %w", err)
	}
	if err := validateDoctors(doc.Doctors); err != nil {
		return nil, err
	}
	return NewScheduleStore(doc.Doctors), nil
}

func validateDoctors(doctors []*Doctor) error {
	seenDoctor := make(map[string]struct{}, len(doctors))
	for i, doc := range doctors {
		if doc == nil || strings.TrimSpace(doc.Name) == "" {
			return fmt.Errorf("%w: doctor %d has no name", ErrInvalidSchedule, i)
		}
		if _, dup := seenDoctor[doc.Name]; dup {
			return fmt.Errorf("%w: duplicate doctor %q", ErrInvalidSchedule, doc.Name)
		}
		seenDoctor[doc.Name] = struct{}{}

		seenDate := make(map[string]struct{}, len(doc.AvailableSlots))
		for _, day := range doc.AvailableSlots {
			if day == nil {
				return fmt.Errorf("%w: %s has an empty day entry", ErrInvalidSchedule, doc.Name)
			}
			if _, ok := parseDate(day.Date); !ok {
				return fmt.Errorf("%w: %s has bad date %q", ErrInvalidSchedule, doc.Name, day.Date)
			}
			if _, dup := seenDate[day.Date]; dup {
				return fmt.Errorf("%w: %s lists %s twice", ErrInvalidSchedule, doc.Name, day.Date)
			}
			seenDate[day.Date] = struct{}{}
			if err := validateSlots(doc.Name, day); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateSlots(doctor string, day *DaySchedule) error {
	seenStart := make(map[string]struct{}, len(day.TimeSlots))
	for _, slot := range day.TimeSlots {
		if slot == nil {
			return fmt.Errorf("%w: %s %s has an empty slot", ErrInvalidSchedule, doctor, day.Date)
		}
		start, okStart := parseClock(slot.Start)
		end, okEnd := parseClock(slot.End)
		if !okStart || !okEnd {
			return fmt.Errorf("%w: %s %s slot %q-%q is not HH:MM", ErrInvalidSchedule, doctor, day.Date, slot.Start, slot.End)
		}
		if !start.Before(end) {
			return fmt.Errorf("%w: %s %s slot %s ends before it starts", ErrInvalidSchedule, doctor, day.Date, slot.Start)
		}
		if _, dup := seenStart[slot.Start]; dup {
			return fmt.Errorf("%w: %s %s has two slots at %s", ErrInvalidSchedule, doctor, day.Date, slot.Start)
		}
		seenStart[slot.Start] = struct{}{}
	}
	return nil
}
