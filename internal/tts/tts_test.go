package tts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanForSpeech(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ready? [COUNTDOWN:5] 5... 4...", "Ready? 5... 4..."},
		{"The **answer** is A", "The answer is A"},
		{"  plain   text ", "plain text"},
		{"[COUNTDOWN:a] [COUNTDOWN:b]", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanForSpeech(tt.in), tt.in)
	}
}

func TestSynthesizeSendsRequest(t *testing.T) {
	var got speechRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/text-to-speech/voice-1", r.URL.Path)
		assert.Equal(t, "secret", r.Header.Get("xi-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte("ID3-audio"))
	}))
	defer server.Close()

	c := NewElevenLabsClient(Config{
		APIKey:   "secret",
		Endpoint: server.URL + "/v1/text-to-speech",
		VoiceID:  "voice-1",
	}, zerolog.Nop())

	audio, err := c.Synthesize(context.Background(), "Hello **there** [COUNTDOWN:5]")
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-audio"), audio)

	assert.Equal(t, "Hello there", got.Text)
	assert.Equal(t, defaultModelID, got.ModelID)
	assert.Equal(t, 0.5, got.VoiceSettings.Stability)
	assert.Equal(t, 0.75, got.VoiceSettings.SimilarityBoost)
	assert.True(t, got.VoiceSettings.UseSpeakerBoost)
}

func TestSynthesizeProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"detail message", http.StatusUnauthorized, `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`, "Invalid API key"},
		{"top-level message", http.StatusTooManyRequests, `{"message":"Quota exceeded"}`, "Quota exceeded"},
		{"plain body", http.StatusBadGateway, `upstream down`, "upstream down"},
		{"empty body", http.StatusInternalServerError, ``, "elevenlabs API error (status 500)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := NewElevenLabsClient(Config{Endpoint: server.URL}, zerolog.Nop())
			_, err := c.Synthesize(context.Background(), "hello")

			var perr *ProviderError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.status, perr.StatusCode)
			assert.Equal(t, tt.want, err.Error())
		})
	}
}

func TestSynthesizeEmptyAudio(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewElevenLabsClient(Config{Endpoint: server.URL}, zerolog.Nop())
	_, err := c.Synthesize(context.Background(), "hello")
	assert.True(t, errors.Is(err, ErrEmptyAudio))
}

func TestSynthesizeRejectsBlankText(t *testing.T) {
	c := NewElevenLabsClient(Config{Endpoint: "http://127.0.0.1:1"}, zerolog.Nop())
	_, err := c.Synthesize(context.Background(), "  [COUNTDOWN:3] ")
	assert.Error(t, err)
}

type countingSynth struct {
	calls int
	err   error
}

func (s *countingSynth) Synthesize(ctx context.Context, text string) ([]byte, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return []byte("audio:" + text), nil
}

func TestCachingSynthesizer(t *testing.T) {
	inner := &countingSynth{}
	c := NewCachingSynthesizer(inner, time.Minute, time.Minute)
	ctx := context.Background()

	a, err := c.Synthesize(ctx, "hello")
	require.NoError(t, err)
	b, err := c.Synthesize(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, inner.calls)

	// markup-only differences share an entry
	_, err = c.Synthesize(ctx, "**hello**")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.calls)

	c.Forget("hello")
	_, err = c.Synthesize(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestCachingSynthesizerDoesNotCacheFailures(t *testing.T) {
	inner := &countingSynth{err: errors.New("boom")}
	c := NewCachingSynthesizer(inner, time.Minute, time.Minute)

	_, err := c.Synthesize(context.Background(), "x")
	assert.Error(t, err)
	_, err = c.Synthesize(context.Background(), "x")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
