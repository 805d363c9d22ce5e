package main

import (
	"context"
	"errors"
	"field-route-service/internal/adapters/repositories"
	"field-route-service/internal/app"
	"field-route-service/internal/config"
	"field-route-service/internal/domain"
	"field-route-service/internal/report"
	"field-route-service/internal/services"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "dbtool",
		Short:        "Manage the job store and inspect day timelines",
		SilenceUsage: true,
	}
	root.AddCommand(newInitCmd(), newSeedCmd(), newTimelineCmd())
	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log.Println("Initializing database schema...")
			conn, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			log.Println("Schema ready.")
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load customers and jobs from a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if path == "" {
				path = cfg.SeedPath
			}

			conn, err := app.OpenDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			log.Println("Seeding database...")
			seed, err := repositories.SeedFromJSON(cmd.Context(), conn, cfg.DBDriver, path)
			if err != nil {
				return err
			}
			log.Printf("Seeding complete. customers=%d jobs=%d", len(seed.Customers), len(seed.Jobs))
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "seed file (default SEED_PATH)")
	return cmd
}

func newTimelineCmd() *cobra.Command {
	var (
		date     string
		home     string
		dayStart string
	)
	cmd := &cobra.Command{
		Use:   "timeline",
		Short: "Print the projected timeline for a day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			day := time.Now().In(cfg.Location)
			if date != "" {
				if day, err = domain.ParseDate(date, cfg.Location); err != nil {
					return err
				}
			}
			start := cfg.DayStart
			if dayStart != "" {
				if start, err = domain.ParseClock(dayStart); err != nil {
					return err
				}
			}
			if !cmd.Flags().Changed("home") {
				home = cfg.HomeAddress
			}

			conn, err := app.OpenDatabase(ctx, cfg)
			if err != nil {
				return err
			}
			defer conn.Close()

			rt, err := app.BuildRouting(ctx, cfg, conn, nil)
			if err != nil {
				return err
			}
			defer rt.Close()

			dayKey := day.Format(domain.DateLayout)
			jobs, err := repositories.NewSQLJobRepository(conn, cfg.DBDriver).ListJobs(ctx, dayKey)
			if err != nil {
				return err
			}
			stops := services.SelectStops(jobs, dayKey, services.SelectOptions{
				DefaultDurationMinutes: cfg.DefaultDurationMinutes,
			})
			if len(stops) == 0 {
				return errors.New("no visitable jobs on " + dayKey)
			}

			dayDate, err := domain.ParseDate(dayKey, cfg.Location)
			if err != nil {
				return err
			}
			tl, err := services.ProjectTimeline(ctx, services.ProjectRequest{
				Date:        dayDate,
				Stops:       stops,
				HomeAddress: home,
				DayStart:    &start,
				PlanWindow:  cfg.PlanWindow,
			}, rt.Provider)
			if err != nil {
				return err
			}

			return report.WriteTimeline(cmd.OutOrStdout(), stops, tl)
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to project, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&home, "home", "", "home address (default HOME_ADDRESS, empty disables)")
	cmd.Flags().StringVar(&dayStart, "day-start", "", "HH:MM used when the first stop is unscheduled")
	return cmd
}
