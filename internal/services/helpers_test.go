package services

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"sync"
	"testing"
	"time"
)

var testDay = time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)

func at(hhmm string) time.Time {
	return domain.MustClock(hhmm).On(testDay)
}

func stop(id, address, sched string, dur int) domain.Stop {
	s := domain.Stop{ID: id, Address: address, EstimatedDurationMinutes: dur}
	if sched != "" {
		c := domain.MustClock(sched)
		s.ScheduledTime = &c
	}
	return s
}

func sequenced(stops ...domain.Stop) []domain.Stop {
	for i := range stops {
		stops[i].SequenceIndex = i
	}
	return stops
}

type gateResult struct {
	res ports.RouteResult
	err error
}

type gatedCall struct {
	Req     ports.RouteRequest
	release chan gateResult
}

func (c *gatedCall) Legs(seconds ...int) {
	legs := make([]ports.LegResult, 0, len(seconds))
	for _, s := range seconds {
		legs = append(legs, ports.LegResult{DurationSeconds: s, DistanceMeters: s * 10})
	}
	c.release <- gateResult{res: ports.RouteResult{Legs: legs, Status: "ok"}}
}

func (c *gatedCall) Fail(err error) {
	c.release <- gateResult{err: err}
}

// gatedProvider holds matching requests until the test releases them and
// sends everything else to next.
type gatedProvider struct {
	next    ports.RoutingProvider
	gate    func(ports.RouteRequest) bool
	arrived chan *gatedCall
}

func newGatedProvider(next ports.RoutingProvider, gate func(ports.RouteRequest) bool) *gatedProvider {
	return &gatedProvider{next: next, gate: gate, arrived: make(chan *gatedCall, 16)}
}

func (g *gatedProvider) Route(ctx context.Context, req ports.RouteRequest) (ports.RouteResult, error) {
	if !g.gate(req) {
		return g.next.Route(ctx, req)
	}
	c := &gatedCall{Req: req, release: make(chan gateResult, 1)}
	g.arrived <- c
	select {
	case r := <-c.release:
		return r.res, r.err
	case <-ctx.Done():
		return ports.RouteResult{}, ctx.Err()
	}
}

func (g *gatedProvider) next1(t *testing.T) *gatedCall {
	t.Helper()
	select {
	case c := <-g.arrived:
		return c
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a routing call")
	}
	return nil
}

func livePoint(req ports.RouteRequest) bool { return req.Origin.Coordinates != nil }
func planPath(req ports.RouteRequest) bool  { return req.Origin.Coordinates == nil }

type fakeMetrics struct {
	mu         sync.Mutex
	recomputes map[string]int
	stale      map[string]int
	adherence  map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{recomputes: map[string]int{}, stale: map[string]int{}, adherence: map[string]int{}}
}

func (m *fakeMetrics) RecomputeInc(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recomputes[reason]++
}

func (m *fakeMetrics) StaleInc(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stale[kind]++
}

func (m *fakeMetrics) AdherenceInc(state string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.adherence[state]++
}

func (m *fakeMetrics) staleCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stale[kind]
}
