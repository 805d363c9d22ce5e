package config

import (
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "PLAN_WINDOW", "LIVE_WINDOW", "DAY_START", "PORT", "REDIS_DB", "TZ", "DEFAULT_DURATION_MINUTES", "LIVE_ALLOWED_ORIGINS"} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, db.SQLite, cfg.DBDriver)
	assert.Equal(t, cfg.DBPath, cfg.DSN())
	assert.Equal(t, 15*time.Minute, cfg.PlanWindow)
	assert.Equal(t, 5*time.Minute, cfg.LiveWindow)
	assert.Equal(t, domain.Clock{Hour: 8}, cfg.DayStart)
	assert.Equal(t, 60, cfg.DefaultDurationMinutes)
	assert.Empty(t, cfg.LiveAllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/field")
	t.Setenv("PLAN_WINDOW", "10m")
	t.Setenv("DAY_START", "07:30")
	t.Setenv("TZ", "America/Phoenix")
	t.Setenv("LIVE_ALLOWED_ORIGINS", " app.example.com, ,*.fieldops.example ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, db.Postgres, cfg.DBDriver)
	assert.Equal(t, "postgres://localhost/field", cfg.DSN())
	assert.Equal(t, 10*time.Minute, cfg.PlanWindow)
	assert.Equal(t, domain.Clock{Hour: 7, Minute: 30}, cfg.DayStart)
	assert.Equal(t, "America/Phoenix", cfg.Location.String())
	assert.Equal(t, []string{"app.example.com", "*.fieldops.example"}, cfg.LiveAllowedOrigins)
}

func TestLoad_Invalid(t *testing.T) {
	cases := map[string][2]string{
		"driver":    {"DB_DRIVER", "oracle"},
		"window":    {"LIVE_WINDOW", "soon"},
		"negative":  {"PLAN_WINDOW", "-5m"},
		"day start": {"DAY_START", "25:00"},
		"redis db":  {"REDIS_DB", "x"},
		"duration":  {"DEFAULT_DURATION_MINUTES", "0"},
		"time zone": {"TZ", "Mars/Olympus"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_PostgresNeedsURL(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.Error(t, err)
}
