package domain

import "time"

// HomeTargetID identifies the home base as an adherence target.
const HomeTargetID = "home"

type AdherenceState string

const (
	AdherenceAhead  AdherenceState = "ahead"
	AdherenceOnTime AdherenceState = "on_time"
	AdherenceBehind AdherenceState = "behind"
)

// Live comparison between the plan and the current travel estimate
// to the next relevant stop.
type AdherenceStatus struct {
	State                    AdherenceState
	DeltaMinutes             int
	TargetStopID             string
	TargetAddress            string
	EstimatedArrivalAtTarget time.Time
	TravelSeconds            int
}

// A single geodetic fix from the technician's device.
type PositionFix struct {
	Lat            float64
	Lng            float64
	Timestamp      time.Time
	AccuracyMeters float64
}

func (p PositionFix) Location() Location {
	return CoordinateLocation(p.Lat, p.Lng)
}
