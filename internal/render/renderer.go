package render

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/rs/zerolog"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/compositor"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/fonts"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/raster"
	"golang.org/x/sync/errgroup"
)

// Options tunes the frame pipeline
type Options struct {
	Width   int
	Height  int
	FPS     int
	Workers int
	Preset  string
	CRF     int
}

func (o Options) withDefaults() Options {
	if o.Width <= 0 {
		o.Width = compositor.Width
	}
	if o.Height <= 0 {
		o.Height = compositor.Height
	}
	if o.FPS <= 0 {
		o.FPS = compositor.FPS
	}
	if o.Workers <= 0 {
		o.Workers = runtime.NumCPU()
	}
	return o
}

// Input is one reel to encode
type Input struct {
	Storyboard compositor.Storyboard
	Template   compositor.VisualTemplate
	AudioPath  string
	OutputPath string
}

// Result summarizes a finished encode
type Result struct {
	Frames   int
	Duration float64
	Elapsed  time.Duration
}

// SpeedRatio is seconds of video produced per second of wall time
func (r Result) SpeedRatio() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return r.Duration / r.Elapsed.Seconds()
}

// Renderer turns a storyboard into a video file
type Renderer struct {
	ffmpeg *FFmpeg
	fonts  *fonts.Set
	opts   Options
	logger zerolog.Logger
}

// NewRenderer creates a renderer
func NewRenderer(ffmpeg *FFmpeg, set *fonts.Set, opts Options, logger zerolog.Logger) *Renderer {
	return &Renderer{
		ffmpeg: ffmpeg,
		fonts:  set,
		opts:   opts.withDefaults(),
		logger: logger.With().Str("component", "render").Logger(),
	}
}

// Available reports whether encoding is possible on this host
func (r *Renderer) Available() bool {
	return r.ffmpeg.Available()
}

// ProbeDuration measures encoded audio
func (r *Renderer) ProbeDuration(ctx context.Context, audio []byte) (float64, error) {
	return r.ffmpeg.ProbeDuration(ctx, audio)
}

// Render composites every frame of in and encodes it with the narration.
// It returns ErrRenderUnavailable when no encoder is installed.
func (r *Renderer) Render(ctx context.Context, in Input, progressCB ProgressCallback) (Result, error) {
	if !r.ffmpeg.Available() {
		return Result{}, ErrRenderUnavailable
	}

	total := in.Storyboard.Timeline.TotalDuration
	n := compositor.FrameCount(total, r.opts.FPS)
	if n == 0 {
		return Result{}, fmt.Errorf("timeline has no duration to render")
	}

	r.logger.Info().
		Int("frames", n).
		Float64("duration", total).
		Int("workers", r.opts.Workers).
		Str("output", in.OutputPath).
		Msg("Starting render")

	start := time.Now()
	opts := EncodeOptions{
		AudioPath:  in.AudioPath,
		OutputPath: in.OutputPath,
		Width:      r.opts.Width,
		Height:     r.opts.Height,
		FPS:        r.opts.FPS,
		FrameCount: n,
		Preset:     r.opts.Preset,
		CRF:        r.opts.CRF,
	}

	writer := func(ctx context.Context, w io.Writer) error {
		return r.WriteFrames(ctx, w, in.Storyboard, in.Template, n)
	}
	if err := r.ffmpeg.EncodeFrames(ctx, opts, writer, progressCB); err != nil {
		return Result{}, err
	}

	res := Result{Frames: n, Duration: float64(n) / float64(r.opts.FPS), Elapsed: time.Since(start)}
	r.logger.Info().
		Int("frames", n).
		Dur("elapsed", res.Elapsed).
		Float64("speed", res.SpeedRatio()).
		Msg("Render complete")

	return res, nil
}

// WriteFrames rasterizes frames [0, n) and writes them to w in index order.
// Frames are drawn in batches, one per worker goroutine, each with its own
// surface; ctx is checked before every batch and every frame.
func (r *Renderer) WriteFrames(ctx context.Context, w io.Writer, sb compositor.Storyboard, tmpl compositor.VisualTemplate, n int) error {
	workers := r.opts.Workers
	if workers > n {
		workers = n
	}

	surfaces := make([]*raster.Rasterizer, workers)
	bufs := make([][]byte, workers)
	frameSize := r.opts.Width * r.opts.Height * 4
	for i := range surfaces {
		surfaces[i] = raster.New(r.opts.Width, r.opts.Height, r.fonts)
		bufs[i] = make([]byte, frameSize)
	}
	defer func() {
		for _, s := range surfaces {
			s.Close()
		}
	}()

	for first := 0; first < n; first += workers {
		if err := ctx.Err(); err != nil {
			return err
		}

		last := first + workers
		if last > n {
			last = n
		}

		g, gctx := errgroup.WithContext(ctx)
		for k := first; k < last; k++ {
			slot := k - first
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				frame := compositor.Render(sb, compositor.FrameTime(k, r.opts.FPS), tmpl, r.fonts)
				img := surfaces[slot].Draw(frame)
				copy(bufs[slot], img.Pix)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for slot := 0; slot < last-first; slot++ {
			if _, err := w.Write(bufs[slot]); err != nil {
				return fmt.Errorf("failed to write frame %d: %w", first+slot, err)
			}
		}
	}

	return nil
}
