package main

import (
	"context"
	"errors"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/api"
	"field-route-service/internal/api/handlers"
	"field-route-service/internal/app"
	"field-route-service/internal/config"
	"field-route-service/internal/metrics"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// main is the application composition root.
// It wires concrete adapters (SQL, ORS, Redis, NATS) behind ports and starts the HTTP server.
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := app.OpenDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	// Seed demo data on startup for local runs.
	if cfg.SeedPath != "" {
		if _, err := os.Stat(cfg.SeedPath); err == nil {
			seed, err := repositories.SeedFromJSON(ctx, conn, cfg.DBDriver, cfg.SeedPath)
			if err != nil {
				return err
			}
			log.Printf("seeded path=%s customers=%d jobs=%d", cfg.SeedPath, len(seed.Customers), len(seed.Jobs))
		}
	}

	collector := metrics.NewCollector()

	rt, err := app.BuildRouting(ctx, cfg, conn, collector)
	if err != nil {
		return err
	}
	defer rt.Close()

	feed, err := app.BuildFeed(cfg, collector)
	if err != nil {
		return err
	}
	defer feed.Close()

	env := &handlers.Env{
		Repo:                   repositories.NewSQLJobRepository(conn, cfg.DBDriver),
		Provider:               rt.Provider,
		Positions:              feed,
		HomeAddress:            cfg.HomeAddress,
		Location:               cfg.Location,
		DayStart:               cfg.DayStart,
		PlanWindow:             cfg.PlanWindow,
		LiveWindow:             cfg.LiveWindow,
		DefaultDurationMinutes: cfg.DefaultDurationMinutes,
		Metrics:                collector,
		Ping:                   conn.PingContext,
		AllowedOrigins:         cfg.LiveAllowedOrigins,
	}
	live := handlers.NewLiveHandler(env)
	defer live.Close()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		metricsSrv = collector.Serve(cfg.MetricsAddr)
	}

	// WriteTimeout stays generous for cold-cache timelines (external API latency).
	// WebSocket connections are hijacked and not subject to it.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(env, live),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening addr=:%s db=%s home=%q", cfg.Port, cfg.DBDriver, cfg.HomeAddress)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Printf("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	live.Close()
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	return srv.Shutdown(shutdownCtx)
}
