package repositories

import (
	"context"
	"database/sql"
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/platform/obs"
	"fmt"
)

// SQL-backed implementation of the JobRepository port.
type SQLJobRepository struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewSQLJobRepository(conn *sql.DB, dialect db.Dialect) *SQLJobRepository {
	return &SQLJobRepository{DB: conn, Dialect: dialect}
}

// Return all jobs for the date with the customer's billing address attached.
func (s *SQLJobRepository) ListJobs(ctx context.Context, date string) (_ []*domain.Job, err error) {
	defer obs.Time(ctx, "jobs.ListJobs")(&err)

	if s.DB == nil {
		return nil, errors.New("sql job repository: DB is nil")
	}

	query := s.Dialect.Rebind(`
	SELECT
		j.job_id,
		j.customer_id,
		j.job_date,
		j.status,
		j.site_address,
		COALESCE(c.billing_address, ''),
		j.scheduled_time,
		j.duration_minutes
	FROM jobs j
	LEFT JOIN customers c ON c.customer_id = j.customer_id
	WHERE j.job_date = ?
	ORDER BY j.job_id`)

	rows, err := s.DB.QueryContext(ctx, query, date)
	if err != nil {
		return nil, fmt.Errorf("list jobs: query jobs table: %w", err)
	}
	defer rows.Close()

	jobs := make([]*domain.Job, 0, 16)
	for rows.Next() {
		var j domain.Job
		var status string
		if err := rows.Scan(
			&j.JobID, &j.CustomerID, &j.Date, &status,
			&j.SiteAddress, &j.BillingAddress, &j.ScheduledTime, &j.DurationMinutes,
		); err != nil {
			return nil, fmt.Errorf("list jobs: scan row: %w", err)
		}
		j.Status = domain.JobStatus(status)
		jobs = append(jobs, &j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list jobs: row iteration: %w", err)
	}

	return jobs, nil
}
