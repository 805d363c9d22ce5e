package routing

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"fmt"
	"sync"
)

type MockPair struct {
	From, To string
	Meters   int
	Seconds  int
}

// MockRoutingProvider answers routes from a fixed table of location pairs
// keyed by domain.Location.Key. It records every request it receives.
type MockRoutingProvider struct {
	m map[string]ports.LegResult

	mu       sync.Mutex
	requests []ports.RouteRequest
	Err      error
}

func NewMockRoutingProvider(pairs []MockPair) *MockRoutingProvider {
	m := make(map[string]ports.LegResult, len(pairs))
	for _, p := range pairs {
		m[p.From+"|"+p.To] = ports.LegResult{DistanceMeters: p.Meters, DurationSeconds: p.Seconds}
	}
	return &MockRoutingProvider{m: m}
}

func (p *MockRoutingProvider) Route(ctx context.Context, req ports.RouteRequest) (ports.RouteResult, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	failure := p.Err
	p.mu.Unlock()

	if failure != nil {
		return ports.RouteResult{}, failure
	}

	path := req.Path()
	legs := make([]ports.LegResult, 0, len(path)-1)
	for i := 1; i < len(path); i++ {
		from, to := path[i-1].Key(), path[i].Key()
		r, ok := p.m[from+"|"+to]
		if !ok {
			return ports.RouteResult{}, &domain.RoutingError{
				Status: "not_found",
				Err:    fmt.Errorf("missing pair %q -> %q", from, to),
			}
		}
		legs = append(legs, r)
	}

	return ports.RouteResult{Legs: legs, Status: "ok"}, nil
}

// Calls returns how many route requests were made.
func (p *MockRoutingProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of the recorded requests.
func (p *MockRoutingProvider) Requests() []ports.RouteRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]ports.RouteRequest, len(p.requests))
	copy(out, p.requests)
	return out
}
