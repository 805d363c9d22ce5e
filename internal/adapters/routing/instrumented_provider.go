package routing

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"time"
)

// RouteObserver records one routing call.
type RouteObserver interface {
	RoutingObserve(kind, status string, d time.Duration)
}

// InstrumentedProvider reports call kind, outcome and latency of every route request.
type InstrumentedProvider struct {
	next     ports.RoutingProvider
	observer RouteObserver
}

func NewInstrumentedProvider(next ports.RoutingProvider, observer RouteObserver) *InstrumentedProvider {
	return &InstrumentedProvider{next: next, observer: observer}
}

func (p *InstrumentedProvider) Route(ctx context.Context, req ports.RouteRequest) (ports.RouteResult, error) {
	start := time.Now()
	res, err := p.next.Route(ctx, req)

	kind := "multi"
	if len(req.Waypoints) == 0 {
		kind = "point"
	}

	status := res.Status
	if err != nil {
		status = domain.RoutingStatusFailed
		var re *domain.RoutingError
		if errors.As(err, &re) {
			status = re.Status
		}
	}
	if status == "" {
		status = StatusOK
	}

	p.observer.RoutingObserve(kind, status, time.Since(start))
	return res, err
}
