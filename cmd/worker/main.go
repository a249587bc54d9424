package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/therealutkarshpriyadarshi/quizreel/internal/app"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/database"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/logging"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/queue"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/scheduler"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

func main() {
	// Load configuration
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := app.NewLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	log = log.WithComponent("worker")
	app.WatchConfig(log)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.FatalWithErr("Failed to initialize services", err)
	}
	defer a.Close()

	if err := a.Queue.SetupDeadLetterQueue(); err != nil {
		log.ErrorWithErr("Failed to setup dead letter queue", err)
	}

	if cfg.Metrics.Enabled {
		metricsServer := metrics.NewServer(cfg.Metrics.Port, log.Zerolog())
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.ErrorWithErr("Metrics server stopped", err)
			}
		}()
		defer metricsServer.Shutdown(context.Background())
	}

	monitoring.NewMonitor(a.Repo, a.Queue, log.Zerolog()).Start(ctx, cfg.Pipeline.MonitorInterval)

	sweeper := scheduler.NewPendingSweeper(a.Repo, a.Queue, a.Renderer, scheduler.Options{
		Interval: cfg.Pipeline.SweepInterval,
		Batch:    cfg.Pipeline.SweepBatch,
	}, log.Zerolog())
	go sweeper.Run(ctx)

	// Handle shutdown gracefully
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		log.Info("Shutting down worker gracefully...")
		cancel()
	}()

	log.Info("Worker started, waiting for stage requests...")
	if err := a.Queue.ConsumeStages(ctx, stageHandler(a.Pipeline, log)); err != nil {
		log.FatalWithErr("Failed to consume stage requests", err)
	}

	// Wait for shutdown
	<-ctx.Done()
	log.Info("Worker stopped")
}

// stageHandler runs one queued request. Requests for missing jobs or that
// the job's state rejects are acknowledged and dropped. Other failures are
// returned so the queue dead-letters the request.
func stageHandler(p *pipeline.Orchestrator, log *logging.Logger) queue.Handler {
	return func(ctx context.Context, req *models.StageRequest) error {
		jobLog := log.WithJobID(req.JobID)
		if req.RunAll {
			jobLog.Info("Running job to completion")
		} else {
			jobLog.WithStage(string(req.Step)).Info("Running stage")
		}

		job, err := p.Run(ctx, req)
		if pipeline.IsValidation(err) || errors.Is(err, database.ErrNotFound) {
			jobLog.WithField("reason", err.Error()).Warn("Dropping stage request")
			return nil
		}
		if err != nil {
			return err
		}

		jobLog.WithField("status", job.Status).Info("Stage request complete")
		return nil
	}
}
