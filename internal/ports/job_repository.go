package ports

import (
	"context"
	"field-route-service/internal/domain"
)

// Port: a read-only boundary for retrieving job records.
type JobRepository interface {
	// Retrieve all jobs recorded for the given "YYYY-MM-DD" date.
	ListJobs(ctx context.Context, date string) ([]*domain.Job, error)
}
