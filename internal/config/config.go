package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Queue    QueueConfig
	Render   RenderConfig
	TTS      TTSConfig
	LLM      LLMConfig
	Logging  LoggingConfig
	Tracing  TracingConfig
	Metrics  MetricsConfig
	MQTT     MQTTConfig
	Webhook  WebhookConfig
	Pipeline PipelineConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	RateLimit       float64
	RateBurst       int
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig holds object storage configuration
type StorageConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	BucketName      string
	Region          string
	UseSSL          bool
	URLExpiry       time.Duration
}

// QueueConfig holds message queue configuration
type QueueConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Vhost    string
}

// URL returns the AMQP connection URL
func (q QueueConfig) URL() string {
	return fmt.Sprintf("amqp://%s:%s@%s:%d%s", q.User, q.Password, q.Host, q.Port, q.Vhost)
}

// RenderConfig holds frame rendering and encoding configuration
type RenderConfig struct {
	Width           int
	Height          int
	FPS             int
	Workers         int
	FFmpegPath      string
	FFprobePath     string
	Preset          string
	CRF             int
	TempDir         string
	WordsPerSecond  float64
	RescaleToAudio  bool
	DefaultTemplate int
}

// TTSConfig holds text-to-speech configuration
type TTSConfig struct {
	APIKey         string
	Endpoint       string
	VoiceID        string
	ModelID        string
	Timeout        time.Duration
	RequestsPerMin int
	CacheTTL       time.Duration
}

// LLMConfig holds text generation configuration
type LLMConfig struct {
	Enabled        bool
	APIKey         string
	Model          string
	Temperature    float32
	Timeout        time.Duration
	RequestsPerMin int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string
	Format     string
	TimeFormat string
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Endpoint    string
}

// MetricsConfig holds metrics server configuration
type MetricsConfig struct {
	Enabled bool
	Port    int
}

// MQTTConfig holds stage event publishing configuration
type MQTTConfig struct {
	Enabled     bool
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         int
}

// WebhookConfig holds webhook delivery configuration
type WebhookConfig struct {
	Enabled       bool
	Timeout       time.Duration
	RetryInterval time.Duration
	MaxRetries    int
}

// PipelineConfig holds job orchestration configuration
type PipelineConfig struct {
	LockTTL         time.Duration
	JobCacheTTL     time.Duration
	StageTimeout    time.Duration
	SweepInterval   time.Duration
	SweepBatch      int
	MonitorInterval time.Duration
}

// Load reads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

// Validate rejects settings the pipeline cannot run with
func (c *Config) Validate() error {
	if c.Render.FPS <= 0 {
		return fmt.Errorf("render.fps must be positive, got %d", c.Render.FPS)
	}
	if c.Render.Width <= 0 || c.Render.Height <= 0 {
		return fmt.Errorf("render size must be positive, got %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.Width%2 != 0 || c.Render.Height%2 != 0 {
		return fmt.Errorf("render size must be even for yuv420p, got %dx%d", c.Render.Width, c.Render.Height)
	}
	if c.Render.WordsPerSecond <= 0 {
		return fmt.Errorf("render.wordsPerSecond must be positive, got %.2f", c.Render.WordsPerSecond)
	}
	if c.Pipeline.LockTTL <= 0 {
		return fmt.Errorf("pipeline.lockTTL must be positive")
	}
	if c.Pipeline.StageTimeout > 0 && c.Pipeline.StageTimeout >= c.Pipeline.LockTTL {
		return fmt.Errorf("pipeline.lockTTL (%v) must exceed pipeline.stageTimeout (%v)", c.Pipeline.LockTTL, c.Pipeline.StageTimeout)
	}
	return nil
}

// Watch calls onChange with the reloaded config whenever the file changes.
// Reloads that fail to parse or validate are reported to onError and the
// previous config stays in effect.
func Watch(onChange func(*Config), onError func(error)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}

		var config Config
		if err := viper.Unmarshal(&config); err != nil {
			onError(fmt.Errorf("failed to unmarshal config: %w", err))
			return
		}
		if err := config.Validate(); err != nil {
			onError(fmt.Errorf("invalid config: %w", err))
			return
		}
		onChange(&config)
	})
	viper.WatchConfig()
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.readTimeout", "30s")
	viper.SetDefault("server.writeTimeout", "30s")
	viper.SetDefault("server.shutdownTimeout", "10s")
	viper.SetDefault("server.rateLimit", 10)
	viper.SetDefault("server.rateBurst", 20)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "quizreel")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.maxConns", 25)
	viper.SetDefault("database.minConns", 5)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Storage defaults
	viper.SetDefault("storage.endpoint", "localhost:9000")
	viper.SetDefault("storage.accessKeyID", "minioadmin")
	viper.SetDefault("storage.secretAccessKey", "minioadmin")
	viper.SetDefault("storage.bucketName", "reels")
	viper.SetDefault("storage.region", "us-east-1")
	viper.SetDefault("storage.useSSL", false)
	viper.SetDefault("storage.urlExpiry", "168h")

	// Queue defaults
	viper.SetDefault("queue.host", "localhost")
	viper.SetDefault("queue.port", 5672)
	viper.SetDefault("queue.user", "guest")
	viper.SetDefault("queue.password", "guest")
	viper.SetDefault("queue.vhost", "/")

	// Render defaults
	viper.SetDefault("render.width", 1080)
	viper.SetDefault("render.height", 1920)
	viper.SetDefault("render.fps", 30)
	viper.SetDefault("render.workers", 0)
	viper.SetDefault("render.ffmpegPath", "ffmpeg")
	viper.SetDefault("render.ffprobePath", "ffprobe")
	viper.SetDefault("render.preset", "medium")
	viper.SetDefault("render.crf", 23)
	viper.SetDefault("render.tempDir", "/tmp/quizreel")
	viper.SetDefault("render.wordsPerSecond", 2.5)
	viper.SetDefault("render.rescaleToAudio", true)
	viper.SetDefault("render.defaultTemplate", 1)

	// TTS defaults
	viper.SetDefault("tts.apiKey", "")
	viper.SetDefault("tts.endpoint", "https://api.elevenlabs.io/v1/text-to-speech")
	viper.SetDefault("tts.voiceID", "21m00Tcm4TlvDq8ikWAM")
	viper.SetDefault("tts.modelID", "eleven_monolingual_v1")
	viper.SetDefault("tts.timeout", "60s")
	viper.SetDefault("tts.requestsPerMin", 20)
	viper.SetDefault("tts.cacheTTL", "30m")

	// LLM defaults
	viper.SetDefault("llm.enabled", false)
	viper.SetDefault("llm.apiKey", "")
	viper.SetDefault("llm.model", "gemini-2.0-flash")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.timeout", "60s")
	viper.SetDefault("llm.requestsPerMin", 15)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.timeFormat", time.RFC3339)

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.serviceName", "quizreel")
	viper.SetDefault("tracing.endpoint", "localhost:6831")

	// Metrics defaults
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)

	// MQTT defaults
	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.brokerURL", "tcp://localhost:1883")
	viper.SetDefault("mqtt.clientID", "quizreel")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.topicPrefix", "quizreel")
	viper.SetDefault("mqtt.qos", 1)

	// Webhook defaults
	viper.SetDefault("webhook.enabled", true)
	viper.SetDefault("webhook.timeout", "30s")
	viper.SetDefault("webhook.retryInterval", "1m")
	viper.SetDefault("webhook.maxRetries", 5)

	// Pipeline defaults
	viper.SetDefault("pipeline.lockTTL", "25m")
	viper.SetDefault("pipeline.jobCacheTTL", "10m")
	viper.SetDefault("pipeline.stageTimeout", "20m")
	viper.SetDefault("pipeline.sweepInterval", "1m")
	viper.SetDefault("pipeline.sweepBatch", 10)
	viper.SetDefault("pipeline.monitorInterval", "15s")
}
