package services

import (
	"context"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"strings"
	"time"
)

type ClassifyRequest struct {
	Position    domain.PositionFix
	Timeline    *domain.RouteTimeline
	Stops       []domain.Stop
	HomeAddress string
	// Date anchors scheduled times. Zero means Timeline.Date.
	Date time.Time
	Now  time.Time
	// LiveWindow is the ahead/behind tolerance. Zero means DefaultLiveWindow.
	LiveWindow time.Duration
}

type adherenceTarget struct {
	id        string
	address   string
	scheduled *time.Time
}

// ClassifyAdherence compares a live travel estimate to the next relevant
// stop with its scheduled time. It returns nil when no target remains.
func ClassifyAdherence(
	ctx context.Context,
	req ClassifyRequest,
	provider ports.RoutingProvider,
) (_ *domain.AdherenceStatus, err error) {
	defer obs.Time(ctx, "adherence.Classify")(&err)

	now := req.Now
	if now.IsZero() {
		now = time.Now()
	}
	window := req.LiveWindow
	if window <= 0 {
		window = DefaultLiveWindow
	}

	target, ok := selectTarget(req, now)
	if !ok {
		return nil, nil
	}

	if provider == nil {
		return nil, asRoutingError(fmt.Errorf("no routing provider configured"))
	}
	res, err := provider.Route(ctx, ports.RouteRequest{
		Origin:      req.Position.Location(),
		Destination: domain.AddressLocation(target.address),
		Mode:        ports.ModeDriving,
	})
	if err != nil {
		return nil, asRoutingError(err)
	}
	if len(res.Legs) != 1 {
		return nil, &domain.RoutingError{
			Status: domain.RoutingStatusMissingLeg,
			Err:    fmt.Errorf("provider returned %d legs for point-to-point route", len(res.Legs)),
		}
	}

	travel := res.Legs[0].DurationSeconds
	eta := now.Add(time.Duration(travel) * time.Second)

	status := &domain.AdherenceStatus{
		State:                    domain.AdherenceOnTime,
		TargetStopID:             target.id,
		TargetAddress:            target.address,
		EstimatedArrivalAtTarget: eta,
		TravelSeconds:            travel,
	}
	if target.scheduled != nil {
		delta := roundMinutes(eta.Sub(*target.scheduled))
		limit := int(window / time.Minute)
		switch {
		case delta > limit:
			status.State = domain.AdherenceBehind
		case delta < -limit:
			status.State = domain.AdherenceAhead
		}
		if delta < 0 {
			delta = -delta
		}
		status.DeltaMinutes = delta
	}

	return status, nil
}

// selectTarget picks the first stop still ahead of now: scheduled stops by
// their scheduled time, unscheduled ones by their projected arrival.
// Stops that could not be routed are skipped. Home is the fallback.
// Stop ids need not be unique.
func selectTarget(req ClassifyRequest, now time.Time) (adherenceTarget, bool) {
	date := req.Date
	if date.IsZero() && req.Timeline != nil {
		date = req.Timeline.Date
	}

	// Entries are index-aligned with the stops they were projected from.
	aligned := req.Timeline != nil && len(req.Timeline.Entries) == len(req.Stops)

	for i, s := range req.Stops {
		if strings.TrimSpace(s.Address) == "" {
			continue
		}
		var entry domain.TimelineEntry
		hasEntry := aligned
		if aligned {
			entry = req.Timeline.Entries[i]
		}
		if hasEntry && entry.Err != nil {
			continue
		}

		if s.ScheduledTime != nil {
			sched := s.ScheduledTime.On(date)
			if sched.After(now) {
				return adherenceTarget{id: s.ID, address: s.Address, scheduled: &sched}, true
			}
			continue
		}

		if hasEntry && entry.EstimatedArrival.After(now) {
			return adherenceTarget{id: s.ID, address: s.Address}, true
		}
	}

	if home := strings.TrimSpace(req.HomeAddress); home != "" {
		return adherenceTarget{id: domain.HomeTargetID, address: home}, true
	}

	return adherenceTarget{}, false
}
