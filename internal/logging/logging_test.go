package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:   "JSON format to stdout",
			config: Config{Level: "info", Format: "json", Output: "stdout"},
		},
		{
			name:   "Console format to stderr",
			config: Config{Level: "debug", Format: "console", Output: "stderr"},
		},
		{
			name:   "Invalid log level defaults to info",
			config: Config{Level: "invalid", Format: "json", Output: "stdout"},
		},
		{
			name:    "Unwritable file",
			config:  Config{Level: "info", Output: "/nonexistent-dir/quizreel.log"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewLogger() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && logger == nil {
				t.Error("Expected non-nil logger")
			}
		})
	}
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("Failed to parse log line %q: %v", line, err)
		}
		out = append(out, entry)
	}
	return out
}

func TestLogStageEvent(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "debug"})

	logger.WithJobID("job-1").LogStageEvent("job-1", "audio", "success", 250*time.Millisecond, nil)
	logger.LogStageEvent("job-2", "video", "failure", time.Second, errors.New("encoder crashed"))

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d", len(entries))
	}

	if entries[0]["level"] != "info" || entries[0]["stage"] != "audio" || entries[0]["outcome"] != "success" {
		t.Errorf("Unexpected first entry: %v", entries[0])
	}
	if entries[1]["level"] != "error" || entries[1]["error"] != "encoder crashed" {
		t.Errorf("Unexpected second entry: %v", entries[1])
	}
}

func TestWithFields(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info"})

	logger.WithComponent("pipeline").WithStage("captions").WithField("attempt", 2).Info("running")

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e["component"] != "pipeline" || e["stage"] != "captions" || e["attempt"] != float64(2) {
		t.Errorf("Unexpected entry: %v", e)
	}
	if e["message"] != "running" {
		t.Errorf("Expected message running, got %v", e["message"])
	}
}

func TestSetLevel(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.TraceLevel)

	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info"})

	logger.Debug("hidden")
	if buf.Len() != 0 {
		t.Fatalf("Expected debug to be filtered, got %s", buf.String())
	}

	if !logger.SetLevel("debug") {
		t.Fatal("Expected debug to be accepted")
	}
	logger.Debug("visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Errorf("Expected debug output after SetLevel, got %s", buf.String())
	}

	if logger.SetLevel("loud") {
		t.Error("Expected unknown level to be rejected")
	}
}

func TestExternalCallLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info"})

	logger.LogExternalCall("tts", "synthesize", time.Second, nil)
	if buf.Len() != 0 {
		t.Errorf("Expected successful call at debug level to be filtered")
	}

	logger.LogExternalCall("tts", "synthesize", time.Second, errors.New("quota"))
	entries := decodeLines(t, &buf)
	if len(entries) != 1 || entries[0]["level"] != "warn" || entries[0]["service"] != "tts" {
		t.Errorf("Unexpected entries: %v", entries)
	}
}

func TestZerologAccessor(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Config{Level: "info"})

	zl := logger.Zerolog()
	zl.Info().Str("k", "v").Msg("direct")

	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("Expected direct zerolog output, got %s", buf.String())
	}
}
