package position

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"sync"
)

// MemoryFeed is an in-process PositionFeed used when no broker is configured.
type MemoryFeed struct {
	mu   sync.Mutex
	subs map[string]map[*stream]struct{}
}

func NewMemoryFeed() *MemoryFeed {
	return &MemoryFeed{subs: make(map[string]map[*stream]struct{})}
}

func (f *MemoryFeed) Subscribe(ctx context.Context, technicianID string) (ports.PositionStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newStream()

	f.mu.Lock()
	if f.subs[technicianID] == nil {
		f.subs[technicianID] = make(map[*stream]struct{})
	}
	f.subs[technicianID][s] = struct{}{}
	f.mu.Unlock()

	s.setRelease(func() { f.remove(technicianID, s) })
	return s, nil
}

func (f *MemoryFeed) Publish(_ context.Context, technicianID string, fix domain.PositionFix) error {
	for _, s := range f.snapshot(technicianID) {
		s.push(fix)
	}
	return nil
}

func (f *MemoryFeed) Revoke(_ context.Context, technicianID string) error {
	for _, s := range f.snapshot(technicianID) {
		s.end(domain.ErrPositionUnavailable)
	}
	return nil
}

// Subscribers returns the number of open streams for the technician.
func (f *MemoryFeed) Subscribers(technicianID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[technicianID])
}

func (f *MemoryFeed) snapshot(technicianID string) []*stream {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]*stream, 0, len(f.subs[technicianID]))
	for s := range f.subs[technicianID] {
		out = append(out, s)
	}
	return out
}

func (f *MemoryFeed) remove(technicianID string, s *stream) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.subs[technicianID], s)
	if len(f.subs[technicianID]) == 0 {
		delete(f.subs, technicianID)
	}
}
