package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for job dates.
const DateLayout = "2006-01-02"

// Clock is a wall-clock time of day without a date.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" (24h). Seconds ("HH:MM:SS") are accepted and dropped.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return Clock{}, fmt.Errorf("parse clock %q: want HH:MM", s)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return Clock{}, fmt.Errorf("parse clock %q: invalid hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return Clock{}, fmt.Errorf("parse clock %q: invalid minute", s)
	}

	return Clock{Hour: h, Minute: m}, nil
}

// MustClock is ParseClock for literals known to be valid.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

// On anchors the clock to the calendar day of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	y, mo, d := day.Date()
	return time.Date(y, mo, d, c.Hour, c.Minute, 0, 0, day.Location())
}

func (c Clock) Minutes() int { return c.Hour*60 + c.Minute }

func (c Clock) String() string { return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute) }

// ParseDate parses a "YYYY-MM-DD" day in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, strings.TrimSpace(s), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return d, nil
}
