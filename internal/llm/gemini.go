// Package llm writes narration scripts with a generative text model.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

const (
	defaultModel       = "gemini-2.0-flash"
	defaultTemperature = float32(0.7)
)

// ErrEmptyResponse is returned when the model produces no text
var ErrEmptyResponse = errors.New("model returned no text")

// TextGenerator produces text for a prompt
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Config configures the Gemini client
type Config struct {
	APIKey         string
	Model          string
	Temperature    float32
	RequestsPerMin int
	Timeout        time.Duration
}

// GeminiClient generates text with the Gemini API
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	logger      zerolog.Logger
}

// NewGeminiClient creates a Gemini client
func NewGeminiClient(ctx context.Context, cfg Config, logger zerolog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = defaultTemperature
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMin))
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: temperature,
		timeout:     timeout,
		limiter:     rate.NewLimiter(limit, 2),
		logger:      logger.With().Str("component", "llm").Str("model", model).Logger(),
	}, nil
}

// Generate sends prompt to the model and returns its text
func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}

	g.logger.Debug().
		Int("chars", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Generated text")

	return text, nil
}
