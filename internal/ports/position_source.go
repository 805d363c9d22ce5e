package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// A live subscription to one technician's position fixes.
//
// Fixes is closed when the stream ends; Err then reports why
// (domain.ErrPositionUnavailable for denied or failed sources, nil after Close).
type PositionStream interface {
	Fixes() <-chan domain.PositionFix
	Err() error
	Close() error
}

// Contract for subscribing to device position fixes.
type PositionSource interface {
	Subscribe(ctx context.Context, technicianID string) (PositionStream, error)
}

// PositionFeed is a PositionSource that also accepts fixes from devices.
type PositionFeed interface {
	PositionSource
	Publish(ctx context.Context, technicianID string, fix domain.PositionFix) error
	// Revoke ends all current subscriptions for the technician with ErrPositionUnavailable.
	Revoke(ctx context.Context, technicianID string) error
}
