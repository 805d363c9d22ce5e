package position

import (
	"field-route-service/internal/domain"
	"sync"
)

// stream is a latest-fix-wins PositionStream shared by the feeds.
type stream struct {
	ch chan domain.PositionFix

	mu      sync.Mutex
	closed  bool
	err     error
	release func()
}

func newStream() *stream {
	return &stream{ch: make(chan domain.PositionFix, 1)}
}

func (s *stream) Fixes() <-chan domain.PositionFix { return s.ch }

func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *stream) Close() error {
	s.end(nil)
	return nil
}

// push offers fix, replacing any fix the consumer has not read yet.
// Writers are serialized by mu, so the send after draining cannot block.
func (s *stream) push(fix domain.PositionFix) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- fix:
	default:
		select {
		case <-s.ch:
		default:
		}
		s.ch <- fix
	}
}

func (s *stream) end(err error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
	release := s.release
	s.release = nil
	s.mu.Unlock()

	if release != nil {
		release()
	}
}

// setRelease registers the function that frees the underlying
// subscription. It runs immediately if the stream already ended.
func (s *stream) setRelease(fn func()) {
	s.mu.Lock()
	if !s.closed {
		s.release = fn
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	fn()
}
