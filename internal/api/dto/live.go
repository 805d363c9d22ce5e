package dto

import "encoding/json"

// LiveMessage is the envelope for every WebSocket frame in both directions.
type LiveMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type SetDatePayload struct {
	Date string `json:"date"`
}

type PermissionPayload struct {
	Granted bool `json:"granted"`
}

type PhaseResponse struct {
	Phase string `json:"phase"`
	Token uint64 `json:"token"`
	Error string `json:"error,omitempty"`
}

type SnapshotPayload struct {
	Version      uint64             `json:"version"`
	SessionID    string             `json:"session_id"`
	TechnicianID string             `json:"technician_id"`
	Date         string             `json:"date"`
	HomeAddress  string             `json:"home_address"`
	Tracking     bool               `json:"tracking"`
	Plan         PhaseResponse      `json:"plan"`
	Timeline     *TimelineResponse  `json:"timeline,omitempty"`
	Adherence    PhaseResponse      `json:"adherence"`
	Status       *AdherenceResponse `json:"status,omitempty"`
	Position     *PositionRequest   `json:"position,omitempty"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}
