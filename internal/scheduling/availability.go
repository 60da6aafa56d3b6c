package scheduling

import (
	"sort"
	"time"
)

// computeAvailability gathers candidates doctor by doctor and stops as soon as
// limit candidates are collected; the capped set is then ordered by start time.
// A doctor later in store order can therefore be left out even when it has an
// earlier slot. limit <= 0 collects everything. Callers hold at least a read lock.
func computeAvailability(store *ScheduleStore, clock Clock, q AvailabilityQuery, limit int) []CandidateSlot {
	date, ok := parseDate(q.Date)
	if !ok || isPast(clock, date) {
		return []CandidateSlot{}
	}

	var required time.Duration
	if q.Type != "" {
		d, ok := q.Type.Duration()
		if !ok {
			d = 30 * time.Minute
		}
		required = d
	}

	out := make([]CandidateSlot, 0, max(limit, 0))
	full := func() bool { return limit > 0 && len(out) >= limit }

	store.eachDay(q.Doctor, q.Date, func(doc *Doctor, day *DaySchedule) bool {
		for _, slot := range day.TimeSlots {
			if !slot.Available {
				continue
			}
			start, okStart := parseClock(slot.Start)
			end, okEnd := parseClock(slot.End)
			if !okStart || !okEnd {
				continue
			}
			endClock := slot.End
			if required > 0 {
				if end.Sub(start) < required {
					continue
				}
				endClock = start.Add(required).Format(TimeLayout)
			}
			out = append(out, CandidateSlot{
				StartTime:  timestamp(q.Date, slot.Start),
				EndTime:    timestamp(q.Date, endClock),
				DoctorName: doc.Name,
				Available:  true,
			})
			if full() {
				return false
			}
		}
		return true
	})

	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime < out[j].StartTime })
	return out
}

func timestamp(date, clock string) string {
	return date + "T" + clock + ":00"
}

// endClock adds the type's duration to an HH:MM start.
func endClock(start string, t AppointmentType) (string, int, bool) {
	s, ok := parseClock(start)
	if !ok {
		return "", 0, false
	}
	d, ok := t.Duration()
	if !ok {
		return "", 0, false
	}
	return s.Add(d).Format(TimeLayout), int(d / time.Minute), true
}
