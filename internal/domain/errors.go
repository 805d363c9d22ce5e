package domain

import (
	"errors"
	"fmt"
)

// ErrPositionUnavailable signals that the position source was denied or failed.
// The static timeline stays valid; live classification stops.
var ErrPositionUnavailable = errors.New("position unavailable")

// Routing status values set by the projector itself.
const (
	RoutingStatusMissingLeg = "missing_leg"
	RoutingStatusFailed     = "failed"
)

// RoutingError is returned when the routing provider rejects or fails a request.
type RoutingError struct {
	Status string
	Err    error
}

func (e *RoutingError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("routing error: status=%s", e.Status)
	}
	return fmt.Sprintf("routing error: status=%s: %v", e.Status, e.Err)
}

func (e *RoutingError) Unwrap() error { return e.Err }

// InputError marks a stop that cannot be routed, such as one without an address.
type InputError struct {
	StopID string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("stop %s: %s", e.StopID, e.Reason)
}
