package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a wrapper around zerolog.Logger
type Logger struct {
	logger zerolog.Logger
}

// Config holds logging configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, file path
	TimeFormat string // RFC3339, RFC3339Nano, Unix, etc.
}

func openOutput(name string) (io.Writer, error) {
	switch name {
	case "", "stdout":
		return os.Stdout, nil
	case "stderr":
		return os.Stderr, nil
	default:
		return os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	}
}

// NewLogger creates a new logger with the given configuration and installs
// it as the global zerolog logger.
func NewLogger(cfg Config) (*Logger, error) {
	output, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	l := New(output, cfg)
	log.Logger = l.logger
	return l, nil
}

// New builds a logger writing to w without touching global state
func New(w io.Writer, cfg Config) *Logger {
	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}

	if cfg.Format == "console" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: timeFormat}
	}

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}

	return &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() (*Logger, error) {
	return NewLogger(Config{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
}

// Zerolog returns the underlying logger for packages that take a
// zerolog.Logger directly.
func (l *Logger) Zerolog() zerolog.Logger {
	return l.logger
}

// SetLevel changes the minimum level of this logger. Unknown levels are
// ignored and reported as false.
func (l *Logger) SetLevel(level string) bool {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return false
	}
	l.logger = l.logger.Level(lvl)
	zerolog.SetGlobalLevel(lvl)
	return true
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// WithComponent tags every entry with the emitting component
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{logger: l.logger.With().Str("component", name).Logger()}
}

// WithJobID adds a job ID to the logger
func (l *Logger) WithJobID(jobID string) *Logger {
	return &Logger{logger: l.logger.With().Str("job_id", jobID).Logger()}
}

// WithStage adds the stage being run to the logger
func (l *Logger) WithStage(stage string) *Logger {
	return &Logger{logger: l.logger.With().Str("stage", stage).Logger()}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// ErrorWithErr logs an error message with an error
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string) {
	l.logger.Fatal().Msg(msg)
}

// FatalWithErr logs a fatal message with an error and exits
func (l *Logger) FatalWithErr(msg string, err error) {
	l.logger.Fatal().Err(err).Msg(msg)
}

// LogHTTPRequest logs HTTP request details
func (l *Logger) LogHTTPRequest(method, path, clientIP string, statusCode int, duration time.Duration) {
	l.logger.Info().
		Str("method", method).
		Str("path", path).
		Str("client_ip", clientIP).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("HTTP request")
}

// LogStageEvent logs a stage transition or failure for a job
func (l *Logger) LogStageEvent(jobID, stage, outcome string, duration time.Duration, err error) {
	evt := l.logger.Info()
	if err != nil {
		evt = l.logger.Error().Err(err)
	}

	evt.
		Str("job_id", jobID).
		Str("stage", stage).
		Str("outcome", outcome).
		Dur("duration_ms", duration).
		Msg("Stage event")
}

// LogExternalCall logs a call to a collaborator service
func (l *Logger) LogExternalCall(service, operation string, duration time.Duration, err error) {
	evt := l.logger.Debug()
	if err != nil {
		evt = l.logger.Warn().Err(err)
	}

	evt.
		Str("service", service).
		Str("operation", operation).
		Dur("duration_ms", duration).
		Msg("External call")
}

// LogRenderProgress logs encoder progress for a job
func (l *Logger) LogRenderProgress(jobID string, progress float64) {
	l.logger.Info().
		Str("job_id", jobID).
		Float64("progress", progress).
		Msg("Render progress")
}
