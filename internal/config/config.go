package config

import (
	"errors"
	"field-route-service/internal/domain"
	"field-route-service/internal/platform/db"
	"field-route-service/internal/services"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	DBDriver    db.Dialect
	DBPath      string
	DatabaseURL string
	SeedPath    string

	HomeAddress string

	ORSAPIKey  string
	ORSBaseURL string
	ORSProfile string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RouteCacheTTL time.Duration

	NATSURL               string
	PositionSubjectPrefix string

	MetricsAddr string

	// LiveAllowedOrigins are extra WebSocket origin host patterns.
	LiveAllowedOrigins []string

	Location               *time.Location
	DayStart               domain.Clock
	PlanWindow             time.Duration
	LiveWindow             time.Duration
	DefaultDurationMinutes int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  Get("PORT", "8080"),
		DBPath:                Get("DB_PATH", "data/app.db"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		SeedPath:              Get("SEED_PATH", "data/seeds/jobs.json"),
		HomeAddress:           strings.TrimSpace(os.Getenv("HOME_ADDRESS")),
		ORSAPIKey:             strings.TrimSpace(os.Getenv("ORS_API_KEY")),
		ORSBaseURL:            os.Getenv("ORS_BASE_URL"),
		ORSProfile:            Get("ORS_PROFILE", "driving-car"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		NATSURL:               os.Getenv("NATS_URL"),
		PositionSubjectPrefix: Get("POSITION_SUBJECT_PREFIX", "fieldroute.positions"),
		LiveAllowedOrigins:    splitList(os.Getenv("LIVE_ALLOWED_ORIGINS")),
		// Empty disables the metrics server.
		MetricsAddr: os.Getenv("METRICS_ADDR"),
	}

	var err error
	if cfg.DBDriver, err = db.ParseDialect(os.Getenv("DB_DRIVER")); err != nil {
		return nil, fmt.Errorf("invalid DB_DRIVER: %w", err)
	}
	if cfg.DBDriver == db.Postgres && strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL is required when DB_DRIVER=postgres")
	}

	if cfg.RedisDB, err = intEnv("REDIS_DB", 0, 0); err != nil {
		return nil, err
	}
	if cfg.RouteCacheTTL, err = durationEnv("ROUTE_CACHE_TTL", 2*time.Minute); err != nil {
		return nil, err
	}
	if cfg.PlanWindow, err = durationEnv("PLAN_WINDOW", services.DefaultPlanWindow); err != nil {
		return nil, err
	}
	if cfg.LiveWindow, err = durationEnv("LIVE_WINDOW", services.DefaultLiveWindow); err != nil {
		return nil, err
	}
	if cfg.DefaultDurationMinutes, err = intEnv("DEFAULT_DURATION_MINUTES", services.DefaultDurationMinutes, 1); err != nil {
		return nil, err
	}

	cfg.DayStart = services.DefaultDayStart
	if v := os.Getenv("DAY_START"); v != "" {
		if cfg.DayStart, err = domain.ParseClock(v); err != nil {
			return nil, fmt.Errorf("invalid DAY_START: %w", err)
		}
	}

	// Time zone
	if tz := os.Getenv("TZ"); tz == "" {
		cfg.Location = time.Local
	} else {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("invalid TZ: %v", err)
		}
		cfg.Location = loc
	}

	return cfg, nil
}

// DSN returns the connection string for the configured driver.
func (c *Config) DSN() string {
	if c.DBDriver == db.Postgres {
		return c.DatabaseURL
	}
	return c.DBPath
}

// Get returns the environment value for key, or fallback when unset.
func Get(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return d, nil
}

func intEnv(key string, def, min int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || n < min {
		return 0, fmt.Errorf("invalid %s: %q", key, v)
	}
	return n, nil
}

// splitList parses a comma-separated value, dropping empty items.
func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
