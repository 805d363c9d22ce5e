// Package app assembles adapters from configuration. Both binaries share it.
package app

import (
	"context"
	"database/sql"
	"errors"
	"field-route-service/internal/adapters/cache"
	"field-route-service/internal/adapters/position"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/adapters/routing"
	"field-route-service/internal/config"
	"field-route-service/internal/metrics"
	"field-route-service/internal/ports"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// OpenDatabase opens the configured store and makes sure the schema exists.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	conn, err := repositories.OpenAndInit(ctx, cfg.DBDriver, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return conn, nil
}

// Routing is the assembled provider chain plus the resources it holds.
type Routing struct {
	Provider ports.RoutingProvider
	redis    *redis.Client
}

func (r *Routing) Close() error {
	if r.redis != nil {
		return r.redis.Close()
	}
	return nil
}

// BuildRouting wires ORS with SQL caches, an optional Redis route cache and
// metrics: instrumented -> redis cache -> ORS -> SQL caches.
func BuildRouting(ctx context.Context, cfg *config.Config, conn *sql.DB, observer routing.RouteObserver) (*Routing, error) {
	if cfg.ORSAPIKey == "" {
		return nil, errors.New("ORS_API_KEY is required")
	}

	ors, err := routing.NewORSRoutingProvider(cfg.ORSAPIKey, routing.ORSOptions{
		BaseURL:      cfg.ORSBaseURL,
		Profile:      cfg.ORSProfile,
		LegCache:     cache.NewSQLLegCache(conn, cfg.DBDriver),
		GeocodeCache: cache.NewSQLGeocodeCache(conn, cfg.DBDriver),
	})
	if err != nil {
		return nil, fmt.Errorf("build routing: %w", err)
	}

	out := &Routing{Provider: ors}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Printf("redis unreachable addr=%s err=%v (route cache will fall through)", cfg.RedisAddr, err)
		}
		cancel()
		out.redis = client
		out.Provider = routing.NewCachedProvider(out.Provider, client, cfg.RouteCacheTTL)
		log.Printf("route cache enabled addr=%s ttl=%s", cfg.RedisAddr, cfg.RouteCacheTTL)
	}
	if observer != nil {
		out.Provider = routing.NewInstrumentedProvider(out.Provider, observer)
	}

	return out, nil
}

// Feed is the position feed the server publishes to and sessions subscribe on.
type Feed struct {
	ports.PositionFeed
	nats *position.NATSFeed
}

func (f *Feed) Close() {
	if f.nats != nil {
		f.nats.Close()
	}
}

// BuildFeed connects to NATS when configured and falls back to an
// in-process feed otherwise.
func BuildFeed(cfg *config.Config, m *metrics.Collector) (*Feed, error) {
	if cfg.NATSURL == "" {
		log.Printf("position feed=memory")
		return &Feed{PositionFeed: position.NewMemoryFeed()}, nil
	}

	var fm position.FeedMetrics
	if m != nil {
		fm = m
	}
	nf, err := position.NewNATSFeed(cfg.NATSURL, cfg.PositionSubjectPrefix, fm)
	if err != nil {
		return nil, fmt.Errorf("build feed: %w", err)
	}
	log.Printf("position feed=nats url=%s prefix=%s", cfg.NATSURL, cfg.PositionSubjectPrefix)
	return &Feed{PositionFeed: nf, nats: nf}, nil
}
