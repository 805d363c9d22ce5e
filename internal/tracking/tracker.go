package tracking

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"fmt"
	"log"
	"sync"
)

var (
	ErrAlreadyStarted = errors.New("tracker already started")
	ErrStopped        = errors.New("tracker stopped")
)

// Tracker owns one position subscription for one technician.
//
// Only the most recent fix is kept for delivery: a fix that has not been
// read yet is replaced by the next one. A tracker is single-use; after the
// stream ends or Stop is called a new Tracker must be created.
type Tracker struct {
	source       ports.PositionSource
	technicianID string

	fixes chan domain.PositionFix
	done  chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	latest  *domain.PositionFix
	err     error
}

func New(source ports.PositionSource, technicianID string) *Tracker {
	return &Tracker{
		source:       source,
		technicianID: technicianID,
		fixes:        make(chan domain.PositionFix, 1),
		done:         make(chan struct{}),
	}
}

// Start subscribes to the source. The subscription lives until Stop,
// ctx cancellation, or the stream ending.
func (t *Tracker) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}
	if t.started {
		return ErrAlreadyStarted
	}

	stream, err := t.source.Subscribe(ctx, t.technicianID)
	if err != nil {
		return fmt.Errorf("start tracker technician=%s: %w: %v", t.technicianID, domain.ErrPositionUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.started = true

	go t.run(ctx, stream)
	log.Printf("tracker started technician=%s", t.technicianID)
	return nil
}

func (t *Tracker) run(ctx context.Context, stream ports.PositionStream) {
	defer close(t.done)
	defer close(t.fixes)

	in := stream.Fixes()
	for {
		select {
		case <-ctx.Done():
			_ = stream.Close()
			t.finish(nil, true)
			return
		case fix, ok := <-in:
			if !ok {
				t.finish(stream.Err(), false)
				return
			}
			t.record(fix)
		}
	}
}

func (t *Tracker) record(fix domain.PositionFix) {
	t.mu.Lock()
	f := fix
	t.latest = &f
	t.mu.Unlock()

	// Replace an undelivered fix; this goroutine is the only writer.
	select {
	case t.fixes <- fix:
	default:
		select {
		case <-t.fixes:
		default:
		}
		t.fixes <- fix
	}
}

func (t *Tracker) finish(err error, released bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped || released {
		t.err = nil
		return
	}
	if err == nil {
		// Streams only end on their own when the source gave up.
		err = domain.ErrPositionUnavailable
	}
	if !errors.Is(err, domain.ErrPositionUnavailable) {
		err = fmt.Errorf("%w: %v", domain.ErrPositionUnavailable, err)
	}
	t.err = err
	log.Printf("tracker ended technician=%s err=%v", t.technicianID, err)
}

// Fixes delivers the latest undelivered fix. It is closed when the
// subscription ends.
func (t *Tracker) Fixes() <-chan domain.PositionFix { return t.fixes }

// Done is closed once the subscription has been released.
func (t *Tracker) Done() <-chan struct{} { return t.done }

// Err reports why the stream ended: nil after Stop, otherwise an error
// wrapping domain.ErrPositionUnavailable.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Latest returns the most recent fix seen, if any.
func (t *Tracker) Latest() (domain.PositionFix, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.latest == nil {
		return domain.PositionFix{}, false
	}
	return *t.latest, true
}

// Stop releases the subscription and waits for it to wind down. Safe to
// call more than once and before Start.
func (t *Tracker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		if t.started {
			<-t.done
		}
		return
	}
	t.stopped = true
	started := t.started
	cancel := t.cancel
	t.mu.Unlock()

	if !started {
		close(t.fixes)
		close(t.done)
		return
	}
	cancel()
	<-t.done
}
