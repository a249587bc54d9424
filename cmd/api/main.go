package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/therealutkarshpriyadarshi/quizreel/internal/app"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/logging"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/middleware"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/monitoring"
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
	log = log.WithComponent("api")
	app.WatchConfig(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.FatalWithErr("Failed to initialize services", err)
	}
	defer a.Close()

	// Background workers
	rateLimiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	go rateLimiter.Cleanup(ctx, 10*time.Minute)

	if a.Webhooks != nil {
		go a.Webhooks.RetryWorker(ctx)
	}

	monitor := monitoring.NewMonitor(a.Repo, a.Queue, log.Zerolog())
	monitor.Start(ctx, cfg.Pipeline.MonitorInterval)

	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		metricsServer = metrics.NewServer(cfg.Metrics.Port, log.Zerolog())
		go func() {
			if err := metricsServer.Start(); err != nil {
				log.ErrorWithErr("Metrics server stopped", err)
			}
		}()
	}

	api := &API{
		pipeline:  a.Pipeline,
		questions: a.Repo,
		webhooks:  a.Repo,
		jobs:      a.Repo,
		queue:     a.Queue,
		progress:  a.Cache,
		monitor:   monitor,
		fonts:     a.Fonts,
		frames: FrameSpec{
			Width:  cfg.Render.Width,
			Height: cfg.Render.Height,
			FPS:    cfg.Render.FPS,
		},
		health: map[string]func(context.Context) error{
			"database": a.DB.Health,
			"redis":    a.Cache.Ping,
			"storage":  a.Storage.Health,
		},
		rateLimiter: rateLimiter,
		log:         log,
	}

	router := setupRouter(api)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server in goroutine
	go func() {
		log.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.FatalWithErr("Failed to start server", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Cancel context for background workers
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.ErrorWithErr("Server forced to shutdown", err)
	}
	shutdownMetrics(shutdownCtx, metricsServer, log)

	log.Info("Server stopped")
}

func shutdownMetrics(ctx context.Context, srv *metrics.Server, log *logging.Logger) {
	if srv == nil {
		return
	}
	if err := srv.Shutdown(ctx); err != nil {
		log.ErrorWithErr("Metrics server forced to shutdown", err)
	}
}
