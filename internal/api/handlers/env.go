package handlers

import (
	"context"
	"field-route-service/internal/api/dto"
	"field-route-service/internal/domain"
	"field-route-service/internal/ports"
	"field-route-service/internal/services"
	"fmt"
	"strings"
	"time"
)

// Metrics is what the HTTP layer reports besides session bookkeeping.
type Metrics interface {
	services.SessionMetrics
	PositionFixInc(source string)
	SessionOpened()
	SessionClosed()
}

type noopMetrics struct{}

func (noopMetrics) RecomputeInc(string)   {}
func (noopMetrics) StaleInc(string)       {}
func (noopMetrics) AdherenceInc(string)   {}
func (noopMetrics) PositionFixInc(string) {}
func (noopMetrics) SessionOpened()        {}
func (noopMetrics) SessionClosed()        {}

// Env carries the dependencies and day-planning defaults shared by handlers.
type Env struct {
	Repo      ports.JobRepository
	Provider  ports.RoutingProvider
	Positions ports.PositionFeed

	HomeAddress            string
	Location               *time.Location
	DayStart               domain.Clock
	PlanWindow             time.Duration
	LiveWindow             time.Duration
	DefaultDurationMinutes int

	Metrics Metrics
	Now     func() time.Time

	// Ping checks the job store for /health. Nil skips the check.
	Ping func(ctx context.Context) error

	// AllowedOrigins are host patterns accepted on cross-origin /live
	// upgrades. Empty allows same-origin clients only.
	AllowedOrigins []string
}

func (e *Env) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Env) location() *time.Location {
	if e.Location != nil {
		return e.Location
	}
	return time.Local
}

func (e *Env) metrics() Metrics {
	if e.Metrics != nil {
		return e.Metrics
	}
	return noopMetrics{}
}

// parseDate resolves a "YYYY-MM-DD" value; empty means today.
func (e *Env) parseDate(s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		y, m, d := e.now().In(e.location()).Date()
		return time.Date(y, m, d, 0, 0, 0, 0, e.location()), nil
	}
	day, err := domain.ParseDate(s, e.location())
	if err != nil {
		return time.Time{}, badRequest{msg: "date must be YYYY-MM-DD"}
	}
	return day, nil
}

func (e *Env) selectOptions() services.SelectOptions {
	return services.SelectOptions{DefaultDurationMinutes: e.DefaultDurationMinutes}
}

// LoadStops reads the day's jobs and selects the stops to visit.
func (e *Env) LoadStops(ctx context.Context, date time.Time) ([]domain.Stop, error) {
	if e.Repo == nil {
		return nil, fmt.Errorf("load stops: no job repository configured")
	}
	day := date.Format(domain.DateLayout)
	jobs, err := e.Repo.ListJobs(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("load stops: %w", err)
	}
	return services.SelectStops(jobs, day, e.selectOptions()), nil
}

// stopsFor uses inline stops when given and the job store otherwise.
func (e *Env) stopsFor(ctx context.Context, req dto.TimelineRequest, date time.Time) ([]domain.Stop, error) {
	if req.Stops == nil {
		return e.LoadStops(ctx, date)
	}

	day := date.Format(domain.DateLayout)
	jobs := make([]*domain.Job, 0, len(req.Stops))
	seen := make(map[string]bool, len(req.Stops))
	for i, s := range req.Stops {
		id := strings.TrimSpace(s.ID)
		if id == "" {
			id = fmt.Sprintf("stop-%d", i+1)
		}
		if seen[id] {
			return nil, badRequest{msg: fmt.Sprintf("stops[%d].id %q is duplicated", i, id)}
		}
		seen[id] = true
		if s.ScheduledTime != "" {
			if _, err := domain.ParseClock(s.ScheduledTime); err != nil {
				return nil, badRequest{msg: fmt.Sprintf("stops[%d].scheduled_time must be HH:MM", i)}
			}
		}
		if s.DurationMinutes < 0 {
			return nil, badRequest{msg: fmt.Sprintf("stops[%d].duration_minutes must not be negative", i)}
		}
		jobs = append(jobs, &domain.Job{
			JobID:           id,
			Date:            day,
			Status:          domain.JobScheduled,
			SiteAddress:     s.Address,
			ScheduledTime:   s.ScheduledTime,
			DurationMinutes: s.DurationMinutes,
		})
	}
	return services.SelectStops(jobs, day, e.selectOptions()), nil
}

func (e *Env) home(override *string) string {
	if override != nil {
		return strings.TrimSpace(*override)
	}
	return strings.TrimSpace(e.HomeAddress)
}

// project builds the timeline described by a request.
func (e *Env) project(ctx context.Context, req dto.TimelineRequest) ([]domain.Stop, *domain.RouteTimeline, string, error) {
	date, err := e.parseDate(req.Date)
	if err != nil {
		return nil, nil, "", err
	}

	dayStart := e.DayStart
	if dayStart == (domain.Clock{}) {
		dayStart = services.DefaultDayStart
	}
	if req.DayStart != "" {
		if dayStart, err = domain.ParseClock(req.DayStart); err != nil {
			return nil, nil, "", badRequest{msg: "day_start must be HH:MM"}
		}
	}

	stops, err := e.stopsFor(ctx, req, date)
	if err != nil {
		return nil, nil, "", err
	}

	home := e.home(req.HomeAddress)
	tl, err := services.ProjectTimeline(ctx, services.ProjectRequest{
		Date:        date,
		Stops:       stops,
		HomeAddress: home,
		DayStart:    &dayStart,
		PlanWindow:  e.PlanWindow,
	}, e.Provider)
	if err != nil {
		return nil, nil, "", err
	}
	return stops, tl, home, nil
}
