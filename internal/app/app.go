// Package app builds the service graph shared by the API server and the
// stage worker.
package app

import (
	"context"
	"fmt"
	"io"

	"github.com/therealutkarshpriyadarshi/quizreel/internal/cache"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/compositor"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/database"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/events"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/fonts"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/llm"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/logging"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/queue"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/render"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/script"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/storage"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/tracing"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/tts"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/webhook"
)

// App holds every long-lived dependency of a process
type App struct {
	Config   *config.Config
	Logger   *logging.Logger
	DB       *database.DB
	Repo     *database.Repository
	Cache    *cache.Cache
	Storage  *storage.Storage
	Queue    *queue.Queue
	Fonts    *fonts.Set
	Renderer *render.Renderer
	Webhooks *webhook.Service
	Events   *events.Publisher
	Pipeline *pipeline.Orchestrator

	closers []func()
}

// NewLogger builds the process logger from cfg
func NewLogger(cfg config.LoggingConfig) (*logging.Logger, error) {
	return logging.NewLogger(logging.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     "stdout",
		TimeFormat: cfg.TimeFormat,
	})
}

// WatchConfig hot-applies the log level when the config file changes
func WatchConfig(log *logging.Logger) {
	config.Watch(func(cfg *config.Config) {
		if log.SetLevel(cfg.Logging.Level) {
			log.WithField("level", cfg.Logging.Level).Info("Log level reloaded")
		}
	}, func(err error) {
		log.ErrorWithErr("Ignoring config reload", err)
	})
}

// New connects to every backing service and wires the pipeline. On error
// whatever was already opened is closed.
func New(ctx context.Context, cfg *config.Config, log *logging.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}
	if err := a.init(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg, log := a.Config, a.Logger
	zl := log.Zerolog()

	_, tracerCloser, err := tracing.InitTracer(cfg.Tracing)
	if err != nil {
		return err
	}
	a.onClose(closeQuietly(tracerCloser))

	a.DB, err = database.New(cfg.Database, zl)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	a.onClose(a.DB.Close)
	if err := a.DB.InitSchema(ctx); err != nil {
		return err
	}
	a.Repo = database.NewRepository(a.DB)

	a.Cache, err = cache.NewCache(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.onClose(func() { a.Cache.Close() })

	a.Storage, err = storage.New(ctx, cfg.Storage, zl)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}

	a.Queue, err = queue.New(cfg.Queue, zl)
	if err != nil {
		return fmt.Errorf("failed to connect to queue: %w", err)
	}
	a.onClose(func() { a.Queue.Close() })

	a.Fonts, err = fonts.Default()
	if err != nil {
		return err
	}

	a.Renderer = render.NewRenderer(
		render.NewFFmpeg(cfg.Render.FFmpegPath, cfg.Render.FFprobePath),
		a.Fonts,
		render.Options{
			Width:   cfg.Render.Width,
			Height:  cfg.Render.Height,
			FPS:     cfg.Render.FPS,
			Workers: cfg.Render.Workers,
			Preset:  cfg.Render.Preset,
			CRF:     cfg.Render.CRF,
		},
		zl,
	)
	if !a.Renderer.Available() {
		log.Warn("ffmpeg not found, video stages will park jobs in render_pending")
	}

	speech := tts.NewCachingSynthesizer(
		tts.NewElevenLabsClient(tts.Config{
			APIKey:         cfg.TTS.APIKey,
			Endpoint:       cfg.TTS.Endpoint,
			VoiceID:        cfg.TTS.VoiceID,
			ModelID:        cfg.TTS.ModelID,
			Timeout:        cfg.TTS.Timeout,
			RequestsPerMin: cfg.TTS.RequestsPerMin,
		}, zl),
		cfg.TTS.CacheTTL,
		2*cfg.TTS.CacheTTL,
	)

	var writer pipeline.ScriptWriter
	if cfg.LLM.Enabled {
		gen, err := llm.NewGeminiClient(ctx, llm.Config{
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			Temperature:    cfg.LLM.Temperature,
			RequestsPerMin: cfg.LLM.RequestsPerMin,
			Timeout:        cfg.LLM.Timeout,
		}, zl)
		if err != nil {
			return err
		}
		writer = llm.NewScriptWriter(gen)
	}

	var notifiers []pipeline.Notifier
	if cfg.Webhook.Enabled {
		a.Webhooks = webhook.NewService(a.Repo, cfg.Webhook, zl)
		a.onClose(a.Webhooks.Wait)
		notifiers = append(notifiers, a.Webhooks)
	}
	if cfg.MQTT.Enabled {
		a.Events, err = events.Connect(cfg.MQTT, zl)
		if err != nil {
			return err
		}
		a.onClose(a.Events.Close)
		notifiers = append(notifiers, a.Events)
	}

	deps := pipeline.Deps{
		Store:     a.Repo,
		Objects:   a.Storage,
		Speech:    speech,
		Renderer:  a.Renderer,
		Locker:    pipeline.CacheLocker{Cache: a.Cache},
		Progress:  a.Cache,
		Cache:     a.Cache,
		Writer:    writer,
		Notifiers: notifiers,
		Scripts:   script.NewSynthesizer(script.DefaultCatalog(), nil),
		Visuals:   compositor.DefaultCatalog(),
		Logger:    log,
	}
	a.Pipeline = pipeline.New(deps, pipeline.OptionsFromConfig(cfg))

	return nil
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeQuietly(c io.Closer) func() {
	return func() { c.Close() }
}
