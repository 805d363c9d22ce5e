package repositories

import (
	"context"
	"database/sql"
	"errors"
	"field-route-service/internal/platform/db"
	"fmt"
)

// Initialize the job store and cache tables. Statements are portable
// across SQLite and Postgres.
func InitSchema(ctx context.Context, conn *sql.DB) error {
	if conn == nil {
		return errors.New("init schema: DB is nil")
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("init schema: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	statements := []string{
		`
	CREATE TABLE IF NOT EXISTS customers (
		customer_id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		billing_address TEXT NOT NULL DEFAULT ''
	)`,
		`
	CREATE TABLE IF NOT EXISTS jobs (
		job_id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL REFERENCES customers(customer_id),
		job_date TEXT NOT NULL,
		status TEXT NOT NULL,
		site_address TEXT NOT NULL DEFAULT '',
		scheduled_time TEXT NOT NULL DEFAULT '',
		duration_minutes INTEGER NOT NULL DEFAULT 0
	)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_job_date ON jobs(job_date)`,
		`
	CREATE TABLE IF NOT EXISTS leg_cache (
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_meters INTEGER NOT NULL,
		duration_seconds INTEGER NOT NULL,
		PRIMARY KEY (origin, destination)
	)`,
		`
	CREATE TABLE IF NOT EXISTS geocode_cache (
		address TEXT PRIMARY KEY,
		lon DOUBLE PRECISION NOT NULL,
		lat DOUBLE PRECISION NOT NULL
	)`,
	}

	for i, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: exec statement #%d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("init schema: commit tx: %w", err)
	}

	return nil
}

// OpenAndInit opens the store and ensures the schema exists.
func OpenAndInit(ctx context.Context, dialect db.Dialect, dsn string) (*sql.DB, error) {
	conn, err := db.Open(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	if err := InitSchema(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}
