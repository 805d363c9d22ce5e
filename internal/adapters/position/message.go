package position

import (
	"field-route-service/internal/domain"
	"time"
)

// StatusUnavailable in a message ends the technician's position streams.
const StatusUnavailable = "unavailable"

// Message is the JSON wire format for a device position fix.
type Message struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Timestamp time.Time `json:"timestamp"`
	Accuracy  float64   `json:"accuracy,omitempty"`
	Status    string    `json:"status,omitempty"`
}

func MessageFromFix(fix domain.PositionFix) Message {
	return Message{
		Lat:       fix.Lat,
		Lng:       fix.Lng,
		Timestamp: fix.Timestamp,
		Accuracy:  fix.AccuracyMeters,
	}
}

func (m Message) Fix() domain.PositionFix {
	ts := m.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return domain.PositionFix{
		Lat:            m.Lat,
		Lng:            m.Lng,
		Timestamp:      ts,
		AccuracyMeters: m.Accuracy,
	}
}

// Valid reports whether the coordinates are geodetically plausible.
func (m Message) Valid() bool {
	return m.Lat >= -90 && m.Lat <= 90 && m.Lng >= -180 && m.Lng <= 180
}
