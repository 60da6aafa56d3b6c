package scheduling

import "time"

// Clock supplies "now" in the clinic's zone.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in a fixed location.
type SystemClock struct {
	Location *time.Location
}

// NewSystemClock loads the named zone, falling back to UTC.
func NewSystemClock(timezone string) SystemClock {
	loc, err := time.LoadLocation(timezone)
	if err != nil || timezone == "" {
		loc = time.UTC
	}
	return SystemClock{Location: loc}
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// FixedClock always reports the same instant.
type FixedClock struct {
	T time.Time
}

func (c FixedClock) Now() time.Time { return c.T }

// today truncates now to a calendar date in its own location.
func today(c Clock) time.Time {
	now := c.Now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func parseDate(raw string) (time.Time, bool) {
	d, err := time.Parse(DateLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

func parseClock(raw string) (time.Time, bool) {
	t, err := time.Parse(TimeLayout, raw)
	if err != nil || t.Format(TimeLayout) != raw {
		return time.Time{}, false
	}
	return t, true
}

func isPast(c Clock, date time.Time) bool {
	return date.Before(today(c))
}
