package services

import (
	"field-route-service/internal/domain"
	"slices"
	"strings"
)

// DefaultDurationMinutes is the on-site duration assumed when a job declares none.
const DefaultDurationMinutes = 60

type SelectOptions struct {
	DefaultDurationMinutes int
}

// SelectStops turns the day's job records into the ordered stop list.
//
// Jobs outside date or in a terminal state are dropped. Timed stops sort
// ascending by scheduled time; untimed stops follow in input order.
// A job without any address still becomes a stop so the projector can
// report it instead of losing it.
func SelectStops(jobs []*domain.Job, date string, opts SelectOptions) []domain.Stop {
	defaultDuration := opts.DefaultDurationMinutes
	if defaultDuration <= 0 {
		defaultDuration = DefaultDurationMinutes
	}

	date = strings.TrimSpace(date)
	stops := make([]domain.Stop, 0, len(jobs))
	for _, job := range jobs {
		if job == nil || strings.TrimSpace(job.Date) != date || job.Status.Terminal() {
			continue
		}

		address := strings.TrimSpace(job.SiteAddress)
		if address == "" {
			address = strings.TrimSpace(job.BillingAddress)
		}

		duration := job.DurationMinutes
		if duration <= 0 {
			duration = defaultDuration
		}

		var scheduled *domain.Clock
		if strings.TrimSpace(job.ScheduledTime) != "" {
			// Unparseable times are treated as unscheduled.
			if c, err := domain.ParseClock(job.ScheduledTime); err == nil {
				scheduled = &c
			}
		}

		stops = append(stops, domain.Stop{
			ID:                       job.JobID,
			Address:                  address,
			ScheduledTime:            scheduled,
			EstimatedDurationMinutes: duration,
		})
	}

	slices.SortStableFunc(stops, func(a, b domain.Stop) int {
		switch {
		case a.ScheduledTime == nil && b.ScheduledTime == nil:
			return 0
		case a.ScheduledTime == nil:
			return 1
		case b.ScheduledTime == nil:
			return -1
		}
		return a.ScheduledTime.Minutes() - b.ScheduledTime.Minutes()
	})

	for i := range stops {
		stops[i].SequenceIndex = i
	}

	return stops
}
