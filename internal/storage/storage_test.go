package storage

import (
	"testing"
)

func TestGetContentType(t *testing.T) {
	tests := []struct {
		filePath string
		wantType string
	}{
		{"render-jobs/1/audio.mp3", "audio/mpeg"},
		{"render-jobs/1/video.mp4", "video/mp4"},
		{"frame.png", "image/png"},
		{"captions.json", "application/json"},
		{"unknown.xyz", "application/octet-stream"},
	}

	for _, tt := range tests {
		t.Run(tt.filePath, func(t *testing.T) {
			contentType := getContentType(tt.filePath)
			if contentType != tt.wantType {
				t.Errorf("getContentType(%q) = %q, want %q", tt.filePath, contentType, tt.wantType)
			}
		})
	}
}

func TestArtifactKeys(t *testing.T) {
	if got := AudioKey("abc"); got != "render-jobs/abc/audio.mp3" {
		t.Errorf("AudioKey() = %q", got)
	}
	if got := VideoKey("abc"); got != "render-jobs/abc/video.mp4" {
		t.Errorf("VideoKey() = %q", got)
	}
}
