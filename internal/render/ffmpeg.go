// Package render encodes composited frames and narration audio into an MP4
// with FFmpeg.
package render

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"strconv"
)

// ErrRenderUnavailable means no encoder binary is installed. Callers treat it
// as a pending render rather than a failure.
var ErrRenderUnavailable = errors.New("video encoder unavailable")

// ErrProbeUnavailable means no ffprobe binary is installed
var ErrProbeUnavailable = errors.New("media prober unavailable")

// FFmpeg wraps FFmpeg operations
type FFmpeg struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpeg creates a new FFmpeg instance
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	return &FFmpeg{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
	}
}

// Available reports whether the ffmpeg binary can be found
func (f *FFmpeg) Available() bool {
	_, err := exec.LookPath(f.ffmpegPath)
	return err == nil
}

// MediaMetadata holds the ffprobe fields we read
type MediaMetadata struct {
	Format  FormatInfo   `json:"format"`
	Streams []StreamInfo `json:"streams"`
}

// FormatInfo holds format information
type FormatInfo struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	BitRate    string `json:"bit_rate"`
}

// StreamInfo holds stream information
type StreamInfo struct {
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Probe extracts metadata from a media file
func (f *FFmpeg) Probe(ctx context.Context, inputPath string) (*MediaMetadata, error) {
	args := []string{
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		inputPath,
	}

	cmd := exec.CommandContext(ctx, f.ffprobePath, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w, stderr: %s", err, stderr.String())
	}

	return parseMetadata(stdout.Bytes())
}

func parseMetadata(data []byte) (*MediaMetadata, error) {
	var metadata MediaMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("failed to parse ffprobe output: %w", err)
	}
	return &metadata, nil
}

// Duration returns the container duration in seconds
func (m *MediaMetadata) Duration() (float64, error) {
	d, err := strconv.ParseFloat(m.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", m.Format.Duration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %.3f", d)
	}
	return d, nil
}

// ProbeDuration measures the length of encoded audio held in memory
func (f *FFmpeg) ProbeDuration(ctx context.Context, audio []byte) (float64, error) {
	if _, err := exec.LookPath(f.ffprobePath); err != nil {
		return 0, ErrProbeUnavailable
	}

	tmp, err := os.CreateTemp("", "quizreel-audio-*.mp3")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	metadata, err := f.Probe(ctx, tmp.Name())
	if err != nil {
		return 0, err
	}
	return metadata.Duration()
}

// EncodeOptions describes a raw-frame encode
type EncodeOptions struct {
	AudioPath  string
	OutputPath string
	Width      int
	Height     int
	FPS        int
	FrameCount int
	Preset     string
	CRF        int
}

func (o EncodeOptions) args() []string {
	preset := o.Preset
	if preset == "" {
		preset = "medium"
	}
	crf := o.CRF
	if crf <= 0 {
		crf = 23
	}

	args := []string{
		"-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", o.Width, o.Height),
		"-r", strconv.Itoa(o.FPS),
		"-i", "pipe:0",
	}
	if o.AudioPath != "" {
		args = append(args, "-i", o.AudioPath, "-map", "0:v", "-map", "1:a", "-c:a", "aac", "-b:a", "192k")
	}
	args = append(args,
		"-c:v", "libx264",
		"-preset", preset,
		"-crf", strconv.Itoa(crf),
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		"-progress", "pipe:1",
		o.OutputPath,
	)
	return args
}

// ProgressCallback is called with progress updates
type ProgressCallback func(progress float64)

// FrameWriter streams raw RGBA frames, in order, into the encoder
type FrameWriter func(ctx context.Context, w io.Writer) error

var progressRegex = regexp.MustCompile(`out_time_ms=(\d+)`)

// parseProgress turns an ffmpeg -progress line into percent of total seconds
func parseProgress(line string, total float64) (float64, bool) {
	matches := progressRegex.FindStringSubmatch(line)
	if len(matches) < 2 || total <= 0 {
		return 0, false
	}
	us, err := strconv.ParseFloat(matches[1], 64)
	if err != nil {
		return 0, false
	}
	progress := (us / 1000000.0) / total * 100
	if progress > 100 {
		progress = 100
	}
	return progress, true
}

// EncodeFrames runs ffmpeg with frames piped on stdin and the narration as a
// second input.
func (f *FFmpeg) EncodeFrames(ctx context.Context, opts EncodeOptions, frames FrameWriter, progressCB ProgressCallback) error {
	if !f.Available() {
		return ErrRenderUnavailable
	}

	cmd := exec.CommandContext(ctx, f.ffmpegPath, opts.args()...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	total := float64(opts.FrameCount) / float64(opts.FPS)
	progressDone := make(chan struct{})
	go func() {
		defer close(progressDone)
		scanner := bufio.NewScanner(stdout)
		for scanner.Scan() {
			if progress, ok := parseProgress(scanner.Text(), total); ok && progressCB != nil {
				progressCB(progress)
			}
		}
	}()

	writeErr := frames(ctx, stdin)
	closeErr := stdin.Close()
	<-progressDone
	waitErr := cmd.Wait()

	if writeErr != nil {
		return fmt.Errorf("failed to stream frames: %w", writeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close ffmpeg stdin: %w", closeErr)
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg failed: %w, stderr: %s", waitErr, stderrBuf.String())
	}

	if progressCB != nil {
		progressCB(100)
	}

	return nil
}
