package cache

import (
	"context"
	"database/sql"
	"errors"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/platform/obs"
	"field-route-service/internal/ports"
	"fmt"
	"strings"
)

// SQLLegCache stores origin->destination leg metrics keyed by normalized
// address. It serves both SQLite and Postgres.
type SQLLegCache struct {
	DB      *sql.DB
	Dialect db.Dialect
}

func NewSQLLegCache(conn *sql.DB, dialect db.Dialect) *SQLLegCache {
	return &SQLLegCache{DB: conn, Dialect: dialect}
}

// Fetch cached legs for one origin and multiple destinations.
func (s *SQLLegCache) GetMany(
	ctx context.Context,
	origin string,
	destinations []string,
) (_ map[string]ports.LegResult, err error) {
	defer obs.Time(ctx, "leg.cache.GetMany")(&err)

	if s.DB == nil {
		return nil, errors.New("leg cache: db is nil")
	}
	if origin == "" {
		return nil, errors.New("get leg cache: origin must not be empty")
	}

	uniq := uniqueKeys(destinations)
	if len(uniq) == 0 {
		return map[string]ports.LegResult{}, nil
	}

	cond, args := matchAny(s.Dialect, "destination", uniq)
	q := s.Dialect.Rebind(`
	SELECT destination, distance_meters, duration_seconds
	FROM leg_cache
	WHERE origin = ?
		AND ` + cond)

	rows, err := s.DB.QueryContext(ctx, q, append([]any{origin}, args...)...)
	if err != nil {
		return nil, fmt.Errorf("get leg cache: query leg_cache table: %w", err)
	}
	defer rows.Close()

	out := make(map[string]ports.LegResult, len(uniq))
	for rows.Next() {
		var dest string
		var r ports.LegResult
		if err := rows.Scan(&dest, &r.DistanceMeters, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("get leg cache: scan rows: %w", err)
		}
		out[dest] = r
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("get leg cache: row iteration: %w", err)
	}

	return out, nil
}

// Store many legs for a single origin, replacing existing entries.
func (s *SQLLegCache) PutMany(
	ctx context.Context,
	origin string,
	results map[string]ports.LegResult,
) (err error) {
	defer obs.Time(ctx, "leg.cache.PutMany")(&err)

	if s.DB == nil {
		return errors.New("leg cache: db is nil")
	}
	if origin == "" {
		return errors.New("insert leg cache: origin must not be empty")
	}
	if len(results) == 0 {
		return nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert leg cache: db begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, s.Dialect.Rebind(`
	INSERT INTO leg_cache (origin, destination, distance_meters, duration_seconds)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (origin, destination) DO UPDATE
	SET distance_meters = excluded.distance_meters,
		duration_seconds = excluded.duration_seconds`))
	if err != nil {
		return fmt.Errorf("insert leg cache: db prepare: %w", err)
	}
	defer stmt.Close()

	for dest, r := range results {
		if strings.TrimSpace(dest) == "" {
			return errors.New("insert leg cache: empty destination key")
		}
		if _, err := stmt.ExecContext(ctx, origin, dest, r.DistanceMeters, r.DurationSeconds); err != nil {
			return fmt.Errorf("insert leg cache dest=%q: %w", dest, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert leg cache commit: %w", err)
	}
	return nil
}
