package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"fmt"
	"os"
	"strings"
)

type CustomerSeed struct {
	CustomerID     string `json:"customer_id"`
	Name           string `json:"name"`
	BillingAddress string `json:"billing_address"`
}

type JobSeed struct {
	JobID           string `json:"job_id"`
	CustomerID      string `json:"customer_id"`
	Date            string `json:"date"`
	Status          string `json:"status"`
	SiteAddress     string `json:"site_address"`
	ScheduledTime   string `json:"scheduled_time"`
	DurationMinutes int    `json:"duration_minutes"`
}

type Seed struct {
	Customers []CustomerSeed `json:"customers"`
	Jobs      []JobSeed      `json:"jobs"`
}

// Populate the database with customers and jobs from a JSON file.
func SeedFromJSON(ctx context.Context, conn *sql.DB, dialect db.Dialect, jsonPath string) (Seed, error) {
	bytes, err := os.ReadFile(jsonPath)
	if err != nil {
		return Seed{}, fmt.Errorf("seed jobs: read %q: %w", jsonPath, err)
	}

	var data Seed
	if err := json.Unmarshal(bytes, &data); err != nil {
		return Seed{}, fmt.Errorf("seed jobs: parse json: %w", err)
	}

	if err := Insert(ctx, conn, dialect, data); err != nil {
		return Seed{}, err
	}
	return data, nil
}

// Insert validates and upserts the seed in one transaction.
func Insert(ctx context.Context, conn *sql.DB, dialect db.Dialect, data Seed) error {
	for i, c := range data.Customers {
		if strings.TrimSpace(c.CustomerID) == "" {
			return fmt.Errorf("seed jobs: customer at index %d: customer_id cannot be empty", i+1)
		}
	}
	for i, j := range data.Jobs {
		if strings.TrimSpace(j.JobID) == "" {
			return fmt.Errorf("seed jobs: job at index %d: job_id cannot be empty", i+1)
		}
		if _, err := domain.ParseDate(j.Date, nil); err != nil {
			return fmt.Errorf("seed jobs: job %s: %w", j.JobID, err)
		}
		if j.ScheduledTime != "" {
			if _, err := domain.ParseClock(j.ScheduledTime); err != nil {
				return fmt.Errorf("seed jobs: job %s: %w", j.JobID, err)
			}
		}
		if j.DurationMinutes < 0 {
			return fmt.Errorf("seed jobs: job %s: negative duration", j.JobID)
		}
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed jobs: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	customerStmt, err := tx.PrepareContext(ctx, dialect.Rebind(`
	INSERT INTO customers (customer_id, name, billing_address)
	VALUES (?, ?, ?)
	ON CONFLICT (customer_id) DO UPDATE
	SET name = excluded.name,
		billing_address = excluded.billing_address`))
	if err != nil {
		return fmt.Errorf("seed jobs: prepare customer insert: %w", err)
	}
	defer customerStmt.Close()

	for _, c := range data.Customers {
		if _, err := customerStmt.ExecContext(ctx, c.CustomerID, c.Name, strings.TrimSpace(c.BillingAddress)); err != nil {
			return fmt.Errorf("seed jobs: insert customer_id=%s: %w", c.CustomerID, err)
		}
	}

	jobStmt, err := tx.PrepareContext(ctx, dialect.Rebind(`
	INSERT INTO jobs (job_id, customer_id, job_date, status, site_address, scheduled_time, duration_minutes)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (job_id) DO UPDATE
	SET customer_id = excluded.customer_id,
		job_date = excluded.job_date,
		status = excluded.status,
		site_address = excluded.site_address,
		scheduled_time = excluded.scheduled_time,
		duration_minutes = excluded.duration_minutes`))
	if err != nil {
		return fmt.Errorf("seed jobs: prepare job insert: %w", err)
	}
	defer jobStmt.Close()

	for _, j := range data.Jobs {
		status := j.Status
		if status == "" {
			status = string(domain.JobScheduled)
		}
		if _, err := jobStmt.ExecContext(ctx,
			j.JobID, j.CustomerID, j.Date, status,
			strings.TrimSpace(j.SiteAddress), j.ScheduledTime, j.DurationMinutes,
		); err != nil {
			return fmt.Errorf("seed jobs: insert job_id=%s: %w", j.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed jobs: commit tx: %w", err)
	}

	return nil
}
