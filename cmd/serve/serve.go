// Package serve implements the serve command: the HTTP API, the live batch
// event stream and the scheduled re-announcements.
package serve

import (
	"context"
	"fmt"
	"time"

	"github.com/jonesrussell/seo-pinger/cmd/common"
	"github.com/jonesrussell/seo-pinger/infrastructure/logger"
	"github.com/jonesrussell/seo-pinger/infrastructure/profiling"
	"github.com/jonesrussell/seo-pinger/infrastructure/sse"
	"github.com/jonesrussell/seo-pinger/internal/api"
	"github.com/jonesrussell/seo-pinger/internal/batch"
	"github.com/jonesrussell/seo-pinger/internal/config"
	"github.com/jonesrussell/seo-pinger/internal/handler"
	"github.com/jonesrussell/seo-pinger/internal/schedule"
	"github.com/jonesrussell/seo-pinger/internal/submission"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

// Command creates the serve command.
func Command(flags *common.GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:          "serve",
		Short:        "Run the HTTP API",
		Long:         `Serve the batch API, the per-batch event stream, /metrics and /health, and run the configured schedules.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := common.NewCommandDeps(flags, false)
			if err != nil {
				return err
			}
			defer func() { _ = deps.Logger.Sync() }()

			return run(cmd.Context(), deps.Config, deps.Logger)
		},
	}
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	profiler, err := profiling.StartPyroscope(cfg.Profiling, cfg.Service.Name, cfg.Service.Version, log)
	if err != nil {
		log.Warn("Failed to start profiler", logger.Error(err))
	}
	defer func() { _ = profiler.Stop() }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pipeline, err := common.NewPipeline(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = pipeline.Close() }()

	if cfg.Catalog.Watch {
		go func() {
			if watchErr := pipeline.Registry.Watch(ctx); watchErr != nil {
				log.Warn("Custom endpoints watcher stopped", logger.Error(watchErr))
			}
		}()
	}

	broker := sse.NewBroker(log,
		sse.WithEventBufferSize(cfg.Events.EventBufferSize),
		sse.WithClientBufferSize(cfg.Events.ClientBufferSize),
		sse.WithMaxClients(cfg.Events.MaxClients),
	)
	if startErr := broker.Start(ctx); startErr != nil {
		return fmt.Errorf("start sse broker: %w", startErr)
	}
	defer func() { _ = broker.Stop() }()

	manager := batch.NewManager(pipeline.Orchestrator, broker, log, pipeline.Metrics, batch.Config{
		Retention:  cfg.Batches.Retention,
		MaxBatches: cfg.Batches.MaxBatches,
	})
	go manager.RunJanitor(ctx)
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if shutdownErr := manager.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Warn("Batches did not stop in time", logger.Error(shutdownErr))
		}
	}()

	scheduler, err := startScheduler(cfg.Schedules, manager, log)
	if err != nil {
		return err
	}
	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		_ = scheduler.Stop(stopCtx)
	}()

	dedup := submission.DedupPolicy(cfg.Submission.Dedup)
	routes := api.Routes{
		Batches:     handler.NewBatchHandler(manager, dedup, log),
		Endpoints:   handler.NewEndpointHandler(pipeline.Registry, pipeline.Resolver, log),
		Schedules:   handler.NewScheduleHandler(scheduler, log),
		Broker:      broker,
		BatchEvents: manager,
		Metrics:     pipeline.Metrics,
	}

	// done signals background goroutines (rate limiter) on shutdown
	done := make(chan struct{})
	defer close(done)

	server := api.NewServer(cfg, routes, pipeline.Redis, log, done)

	log.Info("seo-pinger starting",
		logger.Int("port", cfg.Service.Port),
		logger.String("strategy", cfg.Resolver.Strategy),
		logger.Bool("auth", cfg.Auth.JWTSecret != ""),
		logger.Int("schedules", len(cfg.Schedules)),
	)

	if runErr := server.Run(ctx); runErr != nil {
		return fmt.Errorf("run server: %w", runErr)
	}

	log.Info("seo-pinger exited cleanly")
	return nil
}

func startScheduler(jobs []schedule.Job, starter schedule.Starter, log logger.Logger) (*schedule.Scheduler, error) {
	s := schedule.New(starter, log)
	for _, job := range jobs {
		if err := s.Add(job); err != nil {
			return nil, fmt.Errorf("register schedule: %w", err)
		}
	}
	s.Start()
	return s, nil
}
