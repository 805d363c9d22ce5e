package services

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"field-route-service/internal/tracking"
	"log"
	"sync"
	"time"
)

// Reason names the event that triggered a recompute.
type Reason string

const (
	ReasonSessionStart  Reason = "session_start"
	ReasonStopsChanged  Reason = "stops_changed"
	ReasonHomeChanged   Reason = "home_changed"
	ReasonDateChanged   Reason = "date_changed"
	ReasonManualRefresh Reason = "manual_refresh"
	ReasonPositionFix   Reason = "position_fix"
	ReasonPlanReady     Reason = "plan_ready"
)

// Phase is the state of one computation slot in a session.
type Phase string

const (
	PhaseIdle        Phase = "idle"
	PhaseComputing   Phase = "computing"
	PhaseReady       Phase = "ready"
	PhaseError       Phase = "error"
	PhaseUnavailable Phase = "unavailable"
)

// StopLoader fetches the ordered stops for a day.
type StopLoader func(ctx context.Context, date time.Time) ([]domain.Stop, error)

// SessionMetrics receives recompute bookkeeping from sessions.
type SessionMetrics interface {
	RecomputeInc(reason string)
	StaleInc(kind string)
	AdherenceInc(state string)
}

type SessionConfig struct {
	ID           string
	TechnicianID string
	Date         time.Time
	Stops        []domain.Stop
	HomeAddress  string

	Provider  ports.RoutingProvider
	Positions ports.PositionSource
	LoadStops StopLoader

	DayStart   *domain.Clock
	PlanWindow time.Duration
	LiveWindow time.Duration

	Now      func() time.Time
	OnUpdate func(Snapshot)
	Metrics  SessionMetrics
}

// PlanView is the last applied timeline together with the stops it was
// computed from.
type PlanView struct {
	Phase    Phase
	Token    uint64
	Stops    []domain.Stop
	Timeline *domain.RouteTimeline
	Err      error
}

type AdherenceView struct {
	Phase    Phase
	Token    uint64
	Status   *domain.AdherenceStatus
	Position *domain.PositionFix
	Err      error
}

// Snapshot is a consistent copy of session state. Version increases with
// every applied change so consumers can drop out-of-order deliveries.
type Snapshot struct {
	Version      uint64
	SessionID    string
	TechnicianID string
	Date         time.Time
	HomeAddress  string
	Tracking     bool
	Plan         PlanView
	Adherence    AdherenceView
}

// Session reconciles one technician's day plan with live positions.
//
// Every trigger goes through Recompute, which mints a fresh token and
// starts the work asynchronously. Only the result carrying the latest
// token is applied; anything older is discarded as stale. In-flight
// provider calls are not cancelled.
type Session struct {
	cfg SessionConfig

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	closed     bool
	version    uint64
	date       time.Time
	stops      []domain.Stop
	home       string
	planToken  uint64
	adhToken   uint64
	plan       PlanView
	adherence  AdherenceView
	position   *domain.PositionFix
	tracker    *tracking.Tracker
	trackerGen uint64
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Session{
		cfg:       cfg,
		date:      cfg.Date,
		stops:     cfg.Stops,
		home:      cfg.HomeAddress,
		plan:      PlanView{Phase: PhaseIdle},
		adherence: AdherenceView{Phase: PhaseIdle},
	}
}

// Start begins position tracking (when a source is configured) and the
// first plan computation. A tracking failure is not fatal: the session
// keeps serving the static plan.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if s.cfg.Positions != nil {
		if err := s.RestartTracking(); err != nil {
			log.Printf("session=%s tracking unavailable err=%v", s.cfg.ID, err)
		}
	}
	s.Recompute(ReasonSessionStart)
}

// Recompute is the single entry point for every trigger. It never blocks
// on the provider and returns the token minted for the new computation
// (zero if nothing was started).
func (s *Session) Recompute(reason Reason) uint64 {
	switch reason {
	case ReasonPositionFix, ReasonPlanReady:
		return s.startAdherence(reason)
	default:
		return s.startPlan(reason)
	}
}

func (s *Session) SetStops(stops []domain.Stop) uint64 {
	s.mu.Lock()
	s.stops = stops
	s.mu.Unlock()
	return s.Recompute(ReasonStopsChanged)
}

func (s *Session) SetHome(address string) uint64 {
	s.mu.Lock()
	s.home = address
	s.mu.Unlock()
	return s.Recompute(ReasonHomeChanged)
}

// SetDate switches the session to another day. The position subscription
// is released and recreated along with the plan.
func (s *Session) SetDate(date time.Time) uint64 {
	s.mu.Lock()
	s.date = date
	s.position = nil
	s.adhToken++
	s.resetAdherenceLocked()
	s.mu.Unlock()

	if s.cfg.Positions != nil {
		if err := s.RestartTracking(); err != nil {
			log.Printf("session=%s tracking unavailable err=%v", s.cfg.ID, err)
		}
	}
	return s.Recompute(ReasonDateChanged)
}

// OnPosition records a live fix and reclassifies adherence.
func (s *Session) OnPosition(fix domain.PositionFix) uint64 {
	s.mu.Lock()
	f := fix
	s.position = &f
	s.adherence.Position = &f
	s.mu.Unlock()
	return s.Recompute(ReasonPositionFix)
}

// RestartTracking releases the current position subscription, if any, and
// subscribes again. Used on date and permission changes.
func (s *Session) RestartTracking() error {
	if s.cfg.Positions == nil {
		return errors.New("session has no position source")
	}

	s.mu.Lock()
	if s.closed || s.ctx == nil {
		s.mu.Unlock()
		return errors.New("session not running")
	}
	old := s.tracker
	s.trackerGen++
	gen := s.trackerGen
	tr := tracking.New(s.cfg.Positions, s.cfg.TechnicianID)
	s.tracker = tr
	ctx := s.ctx
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	if err := tr.Start(ctx); err != nil {
		s.markUnavailable(gen, err)
		return err
	}

	s.mu.Lock()
	if s.adherence.Phase == PhaseUnavailable {
		s.adherence.Phase = PhaseIdle
		s.adherence.Err = nil
	}
	s.mu.Unlock()
	s.notify()

	go s.consume(gen, tr)
	return nil
}

// SuspendTracking releases the position subscription after permission is
// withdrawn. Adherence stops updating; the plan stays valid.
func (s *Session) SuspendTracking() {
	s.mu.Lock()
	tr := s.tracker
	s.tracker = nil
	s.trackerGen++
	gen := s.trackerGen
	s.mu.Unlock()

	if tr != nil {
		tr.Stop()
	}
	s.markUnavailable(gen, domain.ErrPositionUnavailable)
}

// consume forwards fixes until the tracker ends. Not counted in wg;
// Close stops the tracker, which ends it.
func (s *Session) consume(gen uint64, tr *tracking.Tracker) {
	for fix := range tr.Fixes() {
		if !s.currentTracker(gen) {
			return
		}
		s.OnPosition(fix)
	}
	if err := tr.Err(); err != nil {
		s.markUnavailable(gen, err)
	}
}

func (s *Session) currentTracker(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return gen == s.trackerGen && !s.closed
}

// markUnavailable stops adherence updates; the plan stays valid.
func (s *Session) markUnavailable(gen uint64, err error) {
	s.mu.Lock()
	if gen != s.trackerGen || s.closed {
		s.mu.Unlock()
		return
	}
	s.adhToken++
	s.adherence.Phase = PhaseUnavailable
	s.adherence.Token = s.adhToken
	s.adherence.Err = err
	s.mu.Unlock()

	log.Printf("session=%s position unavailable err=%v", s.cfg.ID, err)
	s.notify()
}

func (s *Session) startPlan(reason Reason) uint64 {
	s.mu.Lock()
	if s.closed || s.ctx == nil {
		s.mu.Unlock()
		return 0
	}
	s.planToken++
	token := s.planToken
	// Adherence computed against the previous plan must not land.
	s.adhToken++
	switch {
	case reason == ReasonDateChanged:
		s.resetAdherenceLocked()
	case s.adherence.Phase == PhaseComputing:
		s.adherence.Phase = PhaseIdle
	}
	s.plan.Phase = PhaseComputing
	s.plan.Token = token

	ctx := s.ctx
	date := s.date
	stops := s.stops
	home := s.home
	s.wg.Add(1)
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecomputeInc(string(reason))
	}
	s.notify()

	load := s.cfg.LoadStops != nil &&
		(reason == ReasonSessionStart || reason == ReasonDateChanged || reason == ReasonManualRefresh)

	go func() {
		defer s.wg.Done()

		if load {
			loaded, err := s.cfg.LoadStops(ctx, date)
			if err != nil {
				s.applyPlan(token, nil, false, nil, err)
				return
			}
			stops = loaded
		}

		timeline, err := ProjectTimeline(ctx, ProjectRequest{
			Date:        date,
			Stops:       stops,
			HomeAddress: home,
			DayStart:    s.cfg.DayStart,
			PlanWindow:  s.cfg.PlanWindow,
		}, s.cfg.Provider)
		s.applyPlan(token, stops, load, timeline, err)
	}()

	return token
}

// resetAdherenceLocked drops the status and fix of the previous day. A
// withdrawn position source stays unavailable.
func (s *Session) resetAdherenceLocked() {
	view := AdherenceView{Phase: PhaseIdle, Token: s.adhToken}
	if s.adherence.Phase == PhaseUnavailable {
		view.Phase, view.Err = PhaseUnavailable, s.adherence.Err
	}
	s.adherence = view
}

func (s *Session) applyPlan(token uint64, stops []domain.Stop, loaded bool, timeline *domain.RouteTimeline, err error) {
	s.mu.Lock()
	if token != s.planToken || s.closed {
		s.mu.Unlock()
		s.stale("plan", token)
		return
	}

	if err != nil {
		s.plan.Phase = PhaseError
		s.plan.Err = err
		s.mu.Unlock()
		log.Printf("session=%s plan failed token=%d err=%v", s.cfg.ID, token, err)
		s.notify()
		return
	}

	if loaded {
		s.stops = stops
	}
	s.plan = PlanView{
		Phase:    PhaseReady,
		Token:    token,
		Stops:    stops,
		Timeline: timeline,
	}
	havePosition := s.position != nil
	s.mu.Unlock()

	s.notify()
	if havePosition {
		s.Recompute(ReasonPlanReady)
	}
}

func (s *Session) startAdherence(reason Reason) uint64 {
	s.mu.Lock()
	if s.closed || s.ctx == nil {
		s.mu.Unlock()
		return 0
	}
	if s.position == nil || s.plan.Timeline == nil || s.adherence.Phase == PhaseUnavailable {
		s.mu.Unlock()
		return 0
	}

	s.adhToken++
	token := s.adhToken
	s.adherence.Phase = PhaseComputing
	s.adherence.Token = token

	ctx := s.ctx
	req := ClassifyRequest{
		Position:    *s.position,
		Timeline:    s.plan.Timeline,
		Stops:       s.plan.Stops,
		HomeAddress: s.home,
		Date:        s.plan.Timeline.Date,
		Now:         s.cfg.Now(),
		LiveWindow:  s.cfg.LiveWindow,
	}
	s.wg.Add(1)
	s.mu.Unlock()

	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecomputeInc(string(reason))
	}
	s.notify()

	go func() {
		defer s.wg.Done()
		status, err := ClassifyAdherence(ctx, req, s.cfg.Provider)
		s.applyAdherence(token, status, err)
	}()

	return token
}

func (s *Session) applyAdherence(token uint64, status *domain.AdherenceStatus, err error) {
	s.mu.Lock()
	if token != s.adhToken || s.closed {
		s.mu.Unlock()
		s.stale("adherence", token)
		return
	}

	if err != nil {
		s.adherence.Phase = PhaseError
		s.adherence.Err = err
		s.mu.Unlock()
		log.Printf("session=%s adherence failed token=%d err=%v", s.cfg.ID, token, err)
		s.notify()
		return
	}

	s.adherence.Phase = PhaseReady
	s.adherence.Status = status
	s.adherence.Err = nil
	s.mu.Unlock()

	if status != nil && s.cfg.Metrics != nil {
		s.cfg.Metrics.AdherenceInc(string(status.State))
	}
	s.notify()
}

func (s *Session) stale(kind string, token uint64) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.StaleInc(kind)
	}
	log.Printf("session=%s discarded stale %s result token=%d", s.cfg.ID, kind, token)
}

// Snapshot returns a copy of the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() Snapshot {
	return Snapshot{
		Version:      s.version,
		SessionID:    s.cfg.ID,
		TechnicianID: s.cfg.TechnicianID,
		Date:         s.date,
		HomeAddress:  s.home,
		Tracking:     s.tracker != nil && s.adherence.Phase != PhaseUnavailable,
		Plan:         s.plan,
		Adherence:    s.adherence,
	}
}

func (s *Session) notify() {
	s.mu.Lock()
	s.version++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.cfg.OnUpdate != nil {
		s.cfg.OnUpdate(snap)
	}
}

// Wait blocks until all in-flight computations have been applied or discarded.
func (s *Session) Wait() {
	s.wg.Wait()
}

// Close releases the position subscription and discards in-flight work.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	tr := s.tracker
	cancel := s.cancel
	s.mu.Unlock()

	if tr != nil {
		tr.Stop()
	}
	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}
