package cache

import (
	"context"
	"database/sql"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/ports"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := repositories.OpenAndInit(context.Background(), db.SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestSQLLegCache_RoundTripAndUpsert(t *testing.T) {
	ctx := context.Background()
	c := NewSQLLegCache(openTestDB(t), db.SQLite)

	require.NoError(t, c.PutMany(ctx, "A", map[string]ports.LegResult{
		"B": {DistanceMeters: 1000, DurationSeconds: 60},
		"C": {DistanceMeters: 2000, DurationSeconds: 120},
	}))
	require.NoError(t, c.PutMany(ctx, "A", map[string]ports.LegResult{
		"B": {DistanceMeters: 1100, DurationSeconds: 66},
	}))

	got, err := c.GetMany(ctx, "A", []string{"B", " B ", "C", "D", ""})
	require.NoError(t, err)
	assert.Equal(t, map[string]ports.LegResult{
		"B": {DistanceMeters: 1100, DurationSeconds: 66},
		"C": {DistanceMeters: 2000, DurationSeconds: 120},
	}, got)

	got, err = c.GetMany(ctx, "B", []string{"A"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLLegCache_Validation(t *testing.T) {
	ctx := context.Background()
	c := NewSQLLegCache(openTestDB(t), db.SQLite)

	_, err := c.GetMany(ctx, "", []string{"B"})
	assert.Error(t, err)
	assert.Error(t, c.PutMany(ctx, "A", map[string]ports.LegResult{" ": {}}))

	got, err := c.GetMany(ctx, "A", nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	var nilDB SQLLegCache
	_, err = nilDB.GetMany(ctx, "A", []string{"B"})
	assert.Error(t, err)
}

func TestSQLGeocodeCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c := NewSQLGeocodeCache(openTestDB(t), db.SQLite)

	require.NoError(t, c.PutMany(ctx, map[string]domain.Coordinates{
		"1 Home St": {Lon: -112.07, Lat: 33.45},
	}))

	got, err := c.GetMany(ctx, []string{"1 Home St", "2 Oak Ave"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, -112.07, got["1 Home St"].Lon, 1e-9)
	assert.InDelta(t, 33.45, got["1 Home St"].Lat, 1e-9)
}

func TestMatchAny(t *testing.T) {
	cond, args := matchAny(db.SQLite, "address", []string{"a", "b"})
	assert.Equal(t, "address IN (?,?)", cond)
	assert.Len(t, args, 2)

	cond, args = matchAny(db.Postgres, "address", []string{"a", "b"})
	assert.Equal(t, "address = ANY(?::text[])", cond)
	assert.Equal(t, []any{[]string{"a", "b"}}, args)
}
