package handlers

import (
	"context"
	"encoding/json"
	"field-route-service/internal/adapters/position"
	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"field-route-service/internal/services"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// LiveHandler runs one route session per WebSocket connection.
type LiveHandler struct {
	Env *Env

	mu       sync.Mutex
	sessions map[string]*services.Session
}

func NewLiveHandler(env *Env) *LiveHandler {
	return &LiveHandler{Env: env, sessions: make(map[string]*services.Session)}
}

// liveClient holds outbound traffic for one connection. Snapshots are
// latest-wins: a slow reader only ever receives the newest version.
type liveClient struct {
	id string

	mu     sync.Mutex
	latest *services.Snapshot
	wake   chan struct{}

	control chan []byte
}

func newLiveClient(id string) *liveClient {
	return &liveClient{
		id:      id,
		wake:    make(chan struct{}, 1),
		control: make(chan []byte, 16),
	}
}

func (c *liveClient) offer(snap services.Snapshot) {
	c.mu.Lock()
	if c.latest == nil || snap.Version > c.latest.Version {
		c.latest = &snap
	}
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *liveClient) take() (services.Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil {
		return services.Snapshot{}, false
	}
	snap := *c.latest
	c.latest = nil
	return snap, true
}

func (c *liveClient) send(msgType string, payload any) {
	data, err := encodeLive(msgType, payload)
	if err != nil {
		return
	}
	select {
	case c.control <- data:
	default:
		log.Printf("live client=%s dropped %s frame, buffer full", c.id, msgType)
	}
}

func encodeLive(msgType string, payload any) ([]byte, error) {
	msg := dto.LiveMessage{Type: msgType}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		msg.Payload = raw
	}
	return json.Marshal(msg)
}

// ServeWS handles GET /live?technician=<id>&date=YYYY-MM-DD.
func (h *LiveHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	tech := strings.TrimSpace(q.Get("technician"))
	if tech == "" {
		writeError(w, r, http.StatusBadRequest, "technician is required")
		return
	}
	date, err := h.Env.parseDate(q.Get("date"))
	if err != nil {
		writeServiceError(w, r, "open live session", err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.Env.AllowedOrigins,
	})
	if err != nil {
		log.Printf("websocket accept failed: %v", err)
		return
	}

	client := newLiveClient(uuid.New().String())
	sess := h.newSession(client, tech, date)

	h.register(client.id, sess)
	defer h.unregister(client.id, sess)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Printf("live session opened session=%s technician=%s date=%s", client.id, tech, date.Format(domain.DateLayout))
	sess.Start(ctx)

	go h.writeLoop(ctx, conn, client)
	h.readLoop(ctx, conn, client, sess)
}

func (h *LiveHandler) newSession(client *liveClient, tech string, date time.Time) *services.Session {
	var positions ports.PositionSource
	if h.Env.Positions != nil {
		positions = h.Env.Positions
	}
	var loader services.StopLoader
	if h.Env.Repo != nil {
		loader = h.Env.LoadStops
	}
	dayStart := h.Env.DayStart
	if dayStart == (domain.Clock{}) {
		dayStart = services.DefaultDayStart
	}

	return services.NewSession(services.SessionConfig{
		ID:           client.id,
		TechnicianID: tech,
		Date:         date,
		HomeAddress:  h.Env.home(nil),
		Provider:     h.Env.Provider,
		Positions:    positions,
		LoadStops:    loader,
		DayStart:     &dayStart,
		PlanWindow:   h.Env.PlanWindow,
		LiveWindow:   h.Env.LiveWindow,
		Now:          h.Env.Now,
		OnUpdate:     client.offer,
		Metrics:      h.Env.metrics(),
	})
}

func (h *LiveHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *liveClient, sess *services.Session) {
	defer conn.Close(websocket.StatusNormalClosure, "")

	for {
		msgType, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				log.Printf("websocket read error client=%s err=%v", client.id, err)
			}
			return
		}

		if msgType != websocket.MessageText {
			continue
		}

		var msg dto.LiveMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			client.send("error", dto.ErrorPayload{Error: "invalid message format"})
			continue
		}

		h.dispatch(client, sess, msg)
	}
}

func (h *LiveHandler) dispatch(client *liveClient, sess *services.Session, msg dto.LiveMessage) {
	switch msg.Type {
	case "position":
		var p position.Message
		if err := json.Unmarshal(msg.Payload, &p); err != nil || !p.Valid() {
			client.send("error", dto.ErrorPayload{Error: "invalid position"})
			return
		}
		if p.Status == position.StatusUnavailable {
			sess.SuspendTracking()
			return
		}
		h.Env.metrics().PositionFixInc("ws")
		sess.OnPosition(p.Fix())

	case "refresh":
		sess.Recompute(services.ReasonManualRefresh)

	case "set_date":
		var p dto.SetDatePayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			client.send("error", dto.ErrorPayload{Error: "invalid set_date payload"})
			return
		}
		date, err := h.Env.parseDate(p.Date)
		if err != nil {
			client.send("error", dto.ErrorPayload{Error: err.Error()})
			return
		}
		sess.SetDate(date)

	case "permission":
		var p dto.PermissionPayload
		if err := json.Unmarshal(msg.Payload, &p); err != nil {
			client.send("error", dto.ErrorPayload{Error: "invalid permission payload"})
			return
		}
		if !p.Granted {
			sess.SuspendTracking()
			return
		}
		if err := sess.RestartTracking(); err != nil {
			client.send("error", dto.ErrorPayload{Error: err.Error()})
		}

	case "ping":
		client.send("pong", nil)

	default:
		client.send("error", dto.ErrorPayload{Error: "unknown message type " + msg.Type})
	}
}

func (h *LiveHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *liveClient) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	write := func(data []byte) bool {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return conn.Write(writeCtx, websocket.MessageText, data) == nil
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-client.wake:
			snap, ok := client.take()
			if !ok {
				continue
			}
			data, err := encodeLive("snapshot", toSnapshotPayload(snap))
			if err != nil {
				log.Printf("encode snapshot failed client=%s err=%v", client.id, err)
				continue
			}
			if !write(data) {
				return
			}

		case data := <-client.control:
			if !write(data) {
				return
			}

		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := conn.Ping(pingCtx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

func (h *LiveHandler) register(id string, sess *services.Session) {
	h.mu.Lock()
	h.sessions[id] = sess
	h.mu.Unlock()
	h.Env.metrics().SessionOpened()
}

func (h *LiveHandler) unregister(id string, sess *services.Session) {
	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()

	sess.Close()
	h.Env.metrics().SessionClosed()
	log.Printf("live session closed session=%s", id)
}

// Sessions returns the number of open live sessions.
func (h *LiveHandler) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Close ends every open session, releasing their position subscriptions.
func (h *LiveHandler) Close() {
	h.mu.Lock()
	open := make([]*services.Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		open = append(open, s)
	}
	h.mu.Unlock()

	for _, s := range open {
		s.Close()
	}
}
