// Package main is the entry point of the progression worker.
//
// The worker runs the batch jobs on the scheduler (daily streak reset at the
// calendar boundary, closing idle combos) and forwards the resulting domain
// events to the notification sinks.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/KaripeHS/BlayStorm-sub001/config"
	"github.com/KaripeHS/BlayStorm-sub001/internal/app"
	"github.com/KaripeHS/BlayStorm-sub001/internal/infrastructure/scheduler"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load(os.Getenv("BLAYSTORM_CONFIG_FILE"))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := app.NewSlogLogger(cfg.Log)
	log.Info("starting progression worker",
		"env", cfg.App.Environment,
		"version", cfg.App.Version,
		"store", cfg.App.Store,
	)

	// ─────────────────────────────────────────────────────────────────────────
	// 2. SERVICES (store, cache, locks, sinks, event bus, jobs)
	// ─────────────────────────────────────────────────────────────────────────
	a, err := app.New(ctx, cfg, log, app.Options{Migrate: true})
	if err != nil {
		return err
	}
	defer func() {
		log.Info("releasing connections...")
		a.Close()
	}()

	if !cfg.Scheduler.Enabled {
		log.Warn("scheduler disabled, worker only forwards notifications")
	} else {
		a.Scheduler.OnJobComplete(func(r scheduler.JobResult) {
			if !r.Success {
				log.Error("scheduled job failed", "job", r.JobName, "error", r.Error)
			}
		})
		if err := a.Scheduler.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		for _, j := range a.Scheduler.ListJobs() {
			log.Info("job scheduled", "job", j.Name, "schedule", j.Schedule, "next_run", j.NextRun.Format(time.RFC3339))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	<-ctx.Done()
	log.Info("received shutdown signal", "timeout", cfg.App.ShutdownTimeout.String())

	done := make(chan struct{})
	go func() {
		defer close(done)
		if a.Scheduler.IsRunning() {
			if err := a.Scheduler.Stop(); err != nil {
				log.Warn("scheduler stop failed", "error", err)
			}
		}
		if err := a.Bus.Close(); err != nil {
			log.Warn("event bus close failed", "error", err)
		}
	}()

	select {
	case <-done:
		log.Info("shutdown completed successfully")
	case <-time.After(cfg.App.ShutdownTimeout):
		log.Warn("shutdown timed out, exiting with work in flight")
	}
	return nil
}
