package ports

import (
	"context"
	"field-route-service/internal/domain"
)

type TravelMode string

const ModeDriving TravelMode = "driving"

// Ordered route request. Waypoints are stopovers visited in the given
// order; providers must not reorder them.
type RouteRequest struct {
	Origin      domain.Location
	Destination domain.Location
	Waypoints   []domain.Location
	Mode        TravelMode
}

// Path returns origin, waypoints and destination in travel order.
func (r RouteRequest) Path() []domain.Location {
	path := make([]domain.Location, 0, len(r.Waypoints)+2)
	path = append(path, r.Origin)
	path = append(path, r.Waypoints...)
	path = append(path, r.Destination)
	return path
}

// Travel duration and distance for one leg of a route.
type LegResult struct {
	DistanceMeters  int
	DurationSeconds int
}

// Legs in path order: len(Legs) == len(Waypoints)+1 for a complete result.
type RouteResult struct {
	Legs   []LegResult
	Status string
}

// Contract for retrieving ordered multi-leg travel estimates.
type RoutingProvider interface {
	// Return one leg per consecutive pair of locations in the request path.
	Route(ctx context.Context, req RouteRequest) (RouteResult, error)
}
