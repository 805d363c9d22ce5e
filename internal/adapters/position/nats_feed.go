package position

import (
	"context"
	"encoding/json"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/nats-io/nats.go"
)

// FeedMetrics receives connection and traffic signals from a feed.
type FeedMetrics interface {
	PositionFixInc(source string)
	NATSSetConnected(connected bool)
}

// NATSFeed publishes and subscribes position fixes on
// "<prefix>.<technician>" subjects.
type NATSFeed struct {
	nc      *nats.Conn
	prefix  string
	metrics FeedMetrics

	mu      sync.Mutex
	streams map[*nats.Subscription]*stream
}

func NewNATSFeed(url, prefix string, m FeedMetrics) (*NATSFeed, error) {
	f := &NATSFeed{
		prefix:  strings.Trim(strings.TrimSpace(prefix), "."),
		metrics: m,
		streams: make(map[*nats.Subscription]*stream),
	}
	if f.prefix == "" {
		f.prefix = "fieldroute.positions"
	}

	nc, err := nats.Connect(url,
		nats.Name("field-route-service"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			f.setConnected(false)
			log.Printf("nats disconnected err=%v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			f.setConnected(true)
			log.Printf("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			f.setConnected(false)
			f.failAll(errors.New("nats connection closed"))
			log.Printf("nats closed")
		}),
		nats.ErrorHandler(func(_ *nats.Conn, sub *nats.Subscription, err error) {
			log.Printf("nats async error subject=%s err=%v", subjectOf(sub), err)
			if sub != nil && errors.Is(err, nats.ErrPermissionViolation) {
				f.fail(sub, err)
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %q: %w", url, err)
	}
	f.nc = nc
	f.setConnected(true)

	return f, nil
}

func (f *NATSFeed) subject(technicianID string) string {
	return f.prefix + "." + subjectToken(technicianID)
}

func (f *NATSFeed) Subscribe(ctx context.Context, technicianID string) (ports.PositionStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newStream()
	subject := f.subject(technicianID)

	sub, err := f.nc.Subscribe(subject, func(msg *nats.Msg) {
		var m Message
		if err := json.Unmarshal(msg.Data, &m); err != nil {
			log.Printf("nats position decode failed subject=%s err=%v", msg.Subject, err)
			return
		}
		if m.Status == StatusUnavailable {
			s.end(domain.ErrPositionUnavailable)
			return
		}
		if !m.Valid() {
			log.Printf("nats position out of range subject=%s lat=%f lng=%f", msg.Subject, m.Lat, m.Lng)
			return
		}
		if f.metrics != nil {
			f.metrics.PositionFixInc("nats")
		}
		s.push(m.Fix())
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}

	f.mu.Lock()
	f.streams[sub] = s
	f.mu.Unlock()

	s.setRelease(func() {
		f.mu.Lock()
		delete(f.streams, sub)
		f.mu.Unlock()
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			log.Printf("nats unsubscribe failed subject=%s err=%v", subject, err)
		}
	})

	return s, nil
}

func (f *NATSFeed) Publish(_ context.Context, technicianID string, fix domain.PositionFix) error {
	return f.publish(technicianID, MessageFromFix(fix))
}

func (f *NATSFeed) Revoke(_ context.Context, technicianID string) error {
	return f.publish(technicianID, Message{Status: StatusUnavailable})
}

func (f *NATSFeed) publish(technicianID string, m Message) error {
	b, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal position: %w", err)
	}
	if err := f.nc.Publish(f.subject(technicianID), b); err != nil {
		return fmt.Errorf("publish position technician=%s: %w", technicianID, err)
	}
	return nil
}

func (f *NATSFeed) Close() {
	if f.nc != nil {
		_ = f.nc.Drain()
		f.nc.Close()
	}
}

func (f *NATSFeed) fail(sub *nats.Subscription, cause error) {
	f.mu.Lock()
	s := f.streams[sub]
	f.mu.Unlock()
	if s != nil {
		s.end(fmt.Errorf("%w: %v", domain.ErrPositionUnavailable, cause))
	}
}

func (f *NATSFeed) failAll(cause error) {
	f.mu.Lock()
	all := make([]*stream, 0, len(f.streams))
	for _, s := range f.streams {
		all = append(all, s)
	}
	f.mu.Unlock()

	for _, s := range all {
		s.end(fmt.Errorf("%w: %v", domain.ErrPositionUnavailable, cause))
	}
}

func (f *NATSFeed) setConnected(connected bool) {
	if f.metrics != nil {
		f.metrics.NATSSetConnected(connected)
	}
}

func subjectOf(sub *nats.Subscription) string {
	if sub == nil {
		return ""
	}
	return sub.Subject
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS token cannot contain spaces, '>', '*', or trailing '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
