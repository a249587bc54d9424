package render

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/compositor"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/fonts"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/raster"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/timeline"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

func testInput(t *testing.T) (compositor.Storyboard, compositor.VisualTemplate) {
	t.Helper()
	q := &models.Question{
		ExamName:     "GATE",
		CourseName:   "CS",
		Statement:    "2 + 2?",
		QuestionType: models.QuestionTypeMCQ,
		Options:      models.Options{"A": "4", "B": "5"},
		Answer:       "A",
	}
	// 0.4s question, 5s timer, 0.4s answer
	tl := timeline.Segment("Go. 5... 4... 3... 2... 1... Four.", timeline.Options{})
	tmpl, err := compositor.DefaultCatalog().Lookup(2)
	require.NoError(t, err)
	return compositor.NewStoryboard(q, tl), tmpl
}

func smallRenderer(t *testing.T, workers int) *Renderer {
	t.Helper()
	set, err := fonts.Default()
	require.NoError(t, err)
	return NewRenderer(
		NewFFmpeg("/nonexistent/ffmpeg", "/nonexistent/ffprobe"),
		set,
		Options{Width: 54, Height: 96, FPS: 5, Workers: workers},
		zerolog.Nop(),
	)
}

func TestWriteFramesOrderedAndComplete(t *testing.T) {
	sb, tmpl := testInput(t)
	r := smallRenderer(t, 3)
	n := compositor.FrameCount(sb.Timeline.TotalDuration, r.opts.FPS)
	require.Equal(t, 29, n)

	var buf bytes.Buffer
	require.NoError(t, r.WriteFrames(context.Background(), &buf, sb, tmpl, n))

	frameSize := 54 * 96 * 4
	require.Equal(t, n*frameSize, buf.Len())

	// each frame must match a sequential single-surface render
	set, _ := fonts.Default()
	seq := raster.New(54, 96, set)
	defer seq.Close()
	out := buf.Bytes()
	for k := 0; k < n; k++ {
		f := compositor.Render(sb, compositor.FrameTime(k, r.opts.FPS), tmpl, set)
		want := seq.Draw(f).Pix
		assert.True(t, bytes.Equal(want, out[k*frameSize:(k+1)*frameSize]), "frame %d differs", k)
	}
}

func TestWriteFramesHonorsCancellation(t *testing.T) {
	sb, tmpl := testInput(t)
	r := smallRenderer(t, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := r.WriteFrames(ctx, &buf, sb, tmpl, 10)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) { return 0, errors.New("broken pipe") }

func TestWriteFramesSurfacesWriteErrors(t *testing.T) {
	sb, tmpl := testInput(t)
	r := smallRenderer(t, 2)

	err := r.WriteFrames(context.Background(), failingWriter{}, sb, tmpl, 4)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to write frame 0")
}

func TestRenderWithoutEncoder(t *testing.T) {
	sb, tmpl := testInput(t)
	r := smallRenderer(t, 1)

	assert.False(t, r.Available())
	_, err := r.Render(context.Background(), Input{Storyboard: sb, Template: tmpl, OutputPath: "out.mp4"}, nil)
	assert.True(t, errors.Is(err, ErrRenderUnavailable))

	_, err = r.ProbeDuration(context.Background(), []byte("ID3"))
	assert.True(t, errors.Is(err, ErrProbeUnavailable))
}

func TestEncodeArgs(t *testing.T) {
	args := EncodeOptions{
		AudioPath:  "/tmp/a.mp3",
		OutputPath: "/tmp/v.mp4",
		Width:      1080,
		Height:     1920,
		FPS:        30,
	}.args()

	assert.Equal(t, []string{"-y", "-f", "rawvideo", "-pix_fmt", "rgba", "-s", "1080x1920", "-r", "30", "-i", "pipe:0"}, args[:11])
	assert.Contains(t, args, "/tmp/a.mp3")
	assert.Contains(t, args, "libx264")
	assert.Contains(t, args, "medium")
	assert.Contains(t, args, "+faststart")
	assert.Equal(t, "/tmp/v.mp4", args[len(args)-1])

	silent := EncodeOptions{OutputPath: "v.mp4", Width: 1, Height: 1, FPS: 1}.args()
	assert.NotContains(t, silent, "aac")
}

func TestParseProgress(t *testing.T) {
	p, ok := parseProgress("out_time_ms=5000000", 10)
	require.True(t, ok)
	assert.InDelta(t, 50.0, p, 1e-9)

	p, ok = parseProgress("out_time_ms=20000000", 10)
	require.True(t, ok)
	assert.Equal(t, 100.0, p)

	_, ok = parseProgress("frame=12", 10)
	assert.False(t, ok)
	_, ok = parseProgress("out_time_ms=1", 0)
	assert.False(t, ok)
}

func TestMetadataDuration(t *testing.T) {
	m, err := parseMetadata([]byte(`{"format":{"duration":"12.480000"},"streams":[{"codec_type":"audio","codec_name":"mp3"}]}`))
	require.NoError(t, err)
	d, err := m.Duration()
	require.NoError(t, err)
	assert.InDelta(t, 12.48, d, 1e-9)

	m, err = parseMetadata([]byte(`{"format":{"duration":"N/A"}}`))
	require.NoError(t, err)
	_, err = m.Duration()
	assert.Error(t, err)

	_, err = parseMetadata([]byte("not json"))
	assert.Error(t, err)
}

func TestResultSpeedRatio(t *testing.T) {
	assert.Equal(t, 0.0, Result{Duration: 10}.SpeedRatio())
}
