// Package tts synthesizes narration audio from script text.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultEndpoint = "https://api.elevenlabs.io/v1/text-to-speech"
	defaultVoiceID  = "21m00Tcm4TlvDq8ikWAM"
	defaultModelID  = "eleven_monolingual_v1"
)

// ErrEmptyAudio is returned when the provider answers with no audio bytes
var ErrEmptyAudio = errors.New("tts returned empty audio")

// ProviderError carries the provider's own error message unchanged
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return e.Message
}

// Synthesizer turns text into encoded audio
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config configures the ElevenLabs client
type Config struct {
	APIKey          string
	Endpoint        string
	VoiceID         string
	ModelID         string
	Stability       float64
	SimilarityBoost float64
	Timeout         time.Duration
	RequestsPerMin  int
}

// ElevenLabsClient calls the ElevenLabs text-to-speech API
type ElevenLabsClient struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

type speechRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// NewElevenLabsClient creates a new ElevenLabs TTS client
func NewElevenLabsClient(cfg Config, logger zerolog.Logger) *ElevenLabsClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = defaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = defaultModelID
	}
	if cfg.Stability == 0 {
		cfg.Stability = 0.5
	}
	if cfg.SimilarityBoost == 0 {
		cfg.SimilarityBoost = 0.75
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	limit := rate.Inf
	if cfg.RequestsPerMin > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMin))
	}

	return &ElevenLabsClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With().Str("component", "tts").Logger(),
	}
}

// Name returns the provider name
func (c *ElevenLabsClient) Name() string { return "elevenlabs" }

// Synthesize returns MP3 audio for text. Countdown directives and markdown
// emphasis are removed before sending.
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	clean := CleanForSpeech(text)
	if clean == "" {
		return nil, fmt.Errorf("no speakable text")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(speechRequest{
		Text:    clean,
		ModelID: c.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       c.cfg.Stability,
			SimilarityBoost: c.cfg.SimilarityBoost,
			Style:           0,
			UseSpeakerBoost: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.Endpoint, "/") + "/" + c.cfg.VoiceID
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("elevenlabs request: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Message: providerMessage(resp.StatusCode, audio)}
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}

	c.logger.Debug().
		Int("chars", len(clean)).
		Int("bytes", len(audio)).
		Dur("duration", time.Since(start)).
		Msg("Synthesized narration")

	return audio, nil
}

// providerMessage extracts detail.message or message from an error body,
// falling back to the raw body.
func providerMessage(status int, body []byte) string {
	var parsed struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		var detail struct {
			Message string `json:"message"`
		}
		if len(parsed.Detail) > 0 && json.Unmarshal(parsed.Detail, &detail) == nil && detail.Message != "" {
			return detail.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	if msg := strings.TrimSpace(string(body)); msg != "" {
		return msg
	}
	return fmt.Sprintf("elevenlabs API error (status %d)", status)
}

var (
	countdownDirective = regexp.MustCompile(`\[COUNTDOWN:.*?\]`)
	spaces             = regexp.MustCompile(`\s+`)
)

// CleanForSpeech strips display-only markup from narration
func CleanForSpeech(text string) string {
	text = countdownDirective.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, "**", "")
	return strings.TrimSpace(spaces.ReplaceAllString(text, " "))
}
