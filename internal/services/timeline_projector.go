package services

import (
	"context"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// DefaultPlanWindow is the early/late tolerance of the full-day plan.
	DefaultPlanWindow = 15 * time.Minute
	// DefaultLiveWindow is the ahead/behind tolerance of live adherence.
	DefaultLiveWindow = 5 * time.Minute
)

// DefaultDayStart is when the day begins if the first stop has no scheduled time.
var DefaultDayStart = domain.Clock{Hour: 8}

type ProjectRequest struct {
	Date        time.Time
	Stops       []domain.Stop
	HomeAddress string
	// DayStart anchors the clock when the first stop is unscheduled. Nil means DefaultDayStart.
	DayStart *domain.Clock
	// PlanWindow is the early/late tolerance. Zero means DefaultPlanWindow.
	PlanWindow time.Duration
}

// ProjectTimeline builds the cascading arrival/departure plan for one day.
//
// The whole path is requested from the provider in a single call. Delays
// only propagate forward: work at a stop never starts before its scheduled
// time, so an early arrival cannot pull later stops earlier.
func ProjectTimeline(
	ctx context.Context,
	req ProjectRequest,
	provider ports.RoutingProvider,
) (_ *domain.RouteTimeline, err error) {
	defer obs.Time(ctx, "timeline.Project")(&err)

	out := &domain.RouteTimeline{
		Date:    req.Date,
		Entries: []domain.TimelineEntry{},
		Legs:    []domain.Leg{},
	}
	if len(req.Stops) == 0 {
		return out, nil
	}

	window := req.PlanWindow
	if window <= 0 {
		window = DefaultPlanWindow
	}
	dayStart := DefaultDayStart
	if req.DayStart != nil {
		dayStart = *req.DayStart
	}

	home := strings.TrimSpace(req.HomeAddress)
	hasHome := home != ""

	// Unroutable stops stay in the entry list but are kept out of the path.
	path := make([]domain.Location, 0, len(req.Stops)+2)
	pathPos := make([]int, len(req.Stops))
	inputErrs := make([]*domain.InputError, len(req.Stops))
	routable := 0

	if hasHome {
		path = append(path, domain.AddressLocation(home))
	}
	for i, s := range req.Stops {
		if strings.TrimSpace(s.Address) == "" {
			inputErrs[i] = &domain.InputError{StopID: s.ID, Reason: "no resolvable address"}
			pathPos[i] = -1
			continue
		}
		pathPos[i] = len(path)
		path = append(path, domain.AddressLocation(s.Address))
		routable++
	}
	if hasHome {
		path = append(path, domain.AddressLocation(home))
	}

	legs := []domain.Leg{}
	if routable > 0 && len(path) >= 2 {
		legs, err = requestLegs(ctx, provider, path)
		if err != nil {
			return nil, err
		}
	}

	var (
		prevDeparture time.Time
		started       bool
	)

	entries := make([]domain.TimelineEntry, 0, len(req.Stops))
	for i, s := range req.Stops {
		var sched *time.Time
		if s.ScheduledTime != nil {
			t := s.ScheduledTime.On(req.Date)
			sched = &t
		}

		if inputErrs[i] != nil {
			at := prevDeparture
			if !started {
				at = dayStart.On(req.Date)
				if sched != nil {
					at = *sched
				}
			}
			entries = append(entries, domain.TimelineEntry{
				StopID:             s.ID,
				EstimatedArrival:   at,
				ActualStart:        at,
				EstimatedDeparture: at,
				Status:             domain.EntryOnTime,
				Err:                inputErrs[i],
			})
			continue
		}

		var travel *domain.Leg
		if p := pathPos[i]; p > 0 {
			l := legs[p-1]
			travel = &l
		}

		var rawArrival time.Time
		switch {
		case started && travel != nil:
			rawArrival = prevDeparture.Add(travel.Duration())
		case started:
			rawArrival = prevDeparture
		case sched != nil:
			rawArrival = *sched
			if hasHome && travel != nil {
				leaveBy := sched.Add(-travel.Duration())
				out.LeaveHomeBy = &leaveBy
			}
		case travel != nil:
			rawArrival = dayStart.On(req.Date).Add(travel.Duration())
		default:
			rawArrival = dayStart.On(req.Date)
		}
		started = true

		status, delay := domain.EntryOnTime, 0
		actualStart := rawArrival
		if sched != nil {
			status, delay = classifyDelay(roundMinutes(rawArrival.Sub(*sched)), window)
			if rawArrival.Before(*sched) {
				actualStart = *sched
			}
		}

		departure := actualStart.Add(time.Duration(s.EstimatedDurationMinutes) * time.Minute)
		entries = append(entries, domain.TimelineEntry{
			StopID:             s.ID,
			EstimatedArrival:   rawArrival,
			ActualStart:        actualStart,
			EstimatedDeparture: departure,
			Status:             status,
			DelayMinutes:       delay,
			Travel:             travel,
		})
		prevDeparture = departure
	}

	if hasHome && started && len(legs) > 0 {
		homeArrival := prevDeparture.Add(legs[len(legs)-1].Duration())
		out.HomeArrival = &homeArrival
	}

	for _, l := range legs {
		out.TotalDriveSeconds += l.DurationSeconds
		out.TotalDistanceMeters += l.DistanceMeters
	}
	out.Entries = entries
	out.Legs = legs

	return out, nil
}

// requestLegs asks the provider for the whole path and checks that every
// consecutive pair got a leg. A missing leg would desynchronize entries
// from stops, so it fails the computation.
func requestLegs(ctx context.Context, provider ports.RoutingProvider, path []domain.Location) ([]domain.Leg, error) {
	if provider == nil {
		return nil, &domain.RoutingError{Status: domain.RoutingStatusFailed, Err: errors.New("no routing provider configured")}
	}

	req := ports.RouteRequest{
		Origin:      path[0],
		Destination: path[len(path)-1],
		Waypoints:   path[1 : len(path)-1],
		Mode:        ports.ModeDriving,
	}

	res, err := provider.Route(ctx, req)
	if err != nil {
		return nil, asRoutingError(err)
	}

	want := len(path) - 1
	if len(res.Legs) != want {
		return nil, &domain.RoutingError{
			Status: domain.RoutingStatusMissingLeg,
			Err:    fmt.Errorf("provider returned %d legs for %d-location path, want %d", len(res.Legs), len(path), want),
		}
	}

	legs := make([]domain.Leg, 0, want)
	for i, l := range res.Legs {
		if l.DurationSeconds < 0 || l.DistanceMeters < 0 {
			return nil, &domain.RoutingError{
				Status: domain.RoutingStatusMissingLeg,
				Err:    fmt.Errorf("leg %d has negative metrics", i),
			}
		}
		legs = append(legs, domain.Leg{
			FromIndex:       i,
			ToIndex:         i + 1,
			DurationSeconds: l.DurationSeconds,
			DistanceMeters:  l.DistanceMeters,
		})
	}

	return legs, nil
}

func asRoutingError(err error) error {
	var re *domain.RoutingError
	if errors.As(err, &re) {
		return re
	}
	return &domain.RoutingError{Status: domain.RoutingStatusFailed, Err: err}
}

// classifyDelay maps a signed delay in minutes to a plan status. The window
// is exclusive: a delay of exactly ±window is on time.
func classifyDelay(delay int, window time.Duration) (domain.EntryStatus, int) {
	limit := int(window / time.Minute)
	switch {
	case delay > limit:
		return domain.EntryLate, delay
	case delay < -limit:
		return domain.EntryEarly, -delay
	default:
		return domain.EntryOnTime, 0
	}
}

// roundMinutes rounds half away from zero.
func roundMinutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
