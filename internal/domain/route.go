package domain

import "time"

// Represents a single scheduled service visit for the day.
// Stops are immutable once a timeline computation begins; SequenceIndex
// is the schedule order.
type Stop struct {
	ID                       string
	Address                  string
	ScheduledTime            *Clock
	EstimatedDurationMinutes int
	SequenceIndex            int
}

// One point-to-point travel segment between consecutive path positions.
type Leg struct {
	FromIndex       int
	ToIndex         int
	DurationSeconds int
	DistanceMeters  int
}

func (l Leg) Duration() time.Duration {
	return time.Duration(l.DurationSeconds) * time.Second
}

// EntryStatus compares a projected arrival with the scheduled time.
type EntryStatus string

const (
	EntryOnTime EntryStatus = "on_time"
	EntryEarly  EntryStatus = "early"
	EntryLate   EntryStatus = "late"
)

// Projected arrival and departure for one stop.
//
// EstimatedArrival is when the technician gets there; ActualStart is when
// work begins (never before the scheduled time). DelayMinutes is the
// magnitude of the gap for early and late entries and zero otherwise.
type TimelineEntry struct {
	StopID             string
	EstimatedArrival   time.Time
	ActualStart        time.Time
	EstimatedDeparture time.Time
	Status             EntryStatus
	DelayMinutes       int
	Travel             *Leg
	Err                *InputError
}

// Represents the projected day for one technician.
// A RouteTimeline is replaced wholesale on recompute and never mutated.
type RouteTimeline struct {
	Date                time.Time
	Entries             []TimelineEntry
	Legs                []Leg
	LeaveHomeBy         *time.Time
	HomeArrival         *time.Time
	TotalDriveSeconds   int
	TotalDistanceMeters int
}
