package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/therealutkarshpriyadarshi/quizreel/internal/database"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/render"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/script"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/storage"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/timeline"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/tts"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// requireStage checks that job sits exactly at want. A job past want has
// already produced this stage's artifact.
func requireStage(op string, job *models.RenderJob, want ...models.Stage) error {
	for _, s := range want {
		if job.Status == s {
			return nil
		}
	}
	if job.Status.Rank() > want[len(want)-1].Rank() {
		return invalid(op, "already done: job %s is %s", job.ID, job.Status)
	}
	return invalid(op, "job %s is %s, requires %s", job.ID, job.Status, want[0])
}

// GenerateScript synthesizes narration for a created job
func (o *Orchestrator) GenerateScript(ctx context.Context, jobID string, req ScriptRequest) (*models.RenderJob, error) {
	return o.runStage(ctx, jobID, models.StepScript, func(ctx context.Context, job *models.RenderJob) error {
		return o.generateScript(ctx, job, req)
	})
}

func (o *Orchestrator) generateScript(ctx context.Context, job *models.RenderJob, req ScriptRequest) error {
	const op = "generate script"

	if err := requireStage(op, job, models.StageCreated); err != nil {
		return err
	}
	if req.UseLLM && o.writer == nil {
		return invalid(op, "text generation is not configured")
	}

	q, err := o.question(ctx, op, job.QuestionID)
	if err != nil {
		return err
	}

	in := script.InputFromQuestion(q, req.TemplateID)
	res, err := o.scripts.Synthesize(in)
	if errors.Is(err, script.ErrUnknownTemplate) {
		return invalid(op, "%v", err)
	}
	if err != nil {
		return fmt.Errorf("failed to synthesize script: %w", err)
	}

	text := res.Script
	if req.UseLLM {
		tmpl, _ := o.scripts.Catalog().Get(res.TemplateID)
		in.TemplateID = res.TemplateID
		err := o.call(ctx, "llm", "write", func(ctx context.Context) error {
			var err error
			text, err = o.writer.Write(ctx, in, tmpl.Countdown)
			return err
		})
		if err != nil {
			return err
		}
	}

	next := *job
	next.Script = text
	next.ScriptTemplateID = res.TemplateID
	next.Status = models.StageScriptGenerated
	next.LastError = ""
	if err := o.persist(ctx, op, &next, models.StageCreated); err != nil {
		return err
	}

	if err := o.store.MarkQuestionUsed(ctx, job.QuestionID); err != nil {
		o.log.WithJobID(job.ID).ErrorWithErr("Failed to mark question used", err)
	}

	*job = next
	return nil
}

// GenerateAudio voices the script, measures it and uploads the audio
func (o *Orchestrator) GenerateAudio(ctx context.Context, jobID string) (*models.RenderJob, error) {
	return o.runStage(ctx, jobID, models.StepAudio, o.generateAudio)
}

func (o *Orchestrator) generateAudio(ctx context.Context, job *models.RenderJob) error {
	const op = "generate audio"

	if err := requireStage(op, job, models.StageScriptGenerated); err != nil {
		return err
	}
	if !job.HasScript() {
		return invalid(op, "job %s has no script", job.ID)
	}

	var audio []byte
	err := o.call(ctx, "tts", "synthesize", func(ctx context.Context) error {
		var err error
		audio, err = o.speech.Synthesize(ctx, job.Script)
		if err == nil && len(audio) == 0 {
			err = tts.ErrEmptyAudio
		}
		return err
	})
	if err != nil {
		return err
	}

	duration, err := o.measure(ctx, job, audio)
	if err != nil {
		return err
	}

	key := storage.AudioKey(job.ID)
	if err := o.call(ctx, "storage", "put", func(ctx context.Context) error {
		return o.objects.Put(ctx, key, audio)
	}); err != nil {
		return err
	}

	next := *job
	next.AudioKey = key
	next.AudioDuration = duration
	next.Status = models.StageAudioGenerated
	next.LastError = ""

	err = o.call(ctx, "storage", "url", func(ctx context.Context) error {
		var err error
		next.AudioURL, err = o.objects.URL(ctx, key)
		return err
	})
	if err == nil {
		err = o.persist(ctx, op, &next, models.StageScriptGenerated)
	}
	if err != nil {
		o.discard(ctx, job.ID, key, err)
		return err
	}

	*job = next
	return nil
}

// measure returns the audio length in seconds. Hosts without a prober fall
// back to the words-per-second estimate of the script.
func (o *Orchestrator) measure(ctx context.Context, job *models.RenderJob, audio []byte) (float64, error) {
	var duration float64
	err := o.call(ctx, "ffprobe", "probe", func(ctx context.Context) error {
		var err error
		duration, err = o.renderer.ProbeDuration(ctx, audio)
		if errors.Is(err, render.ErrProbeUnavailable) {
			return nil
		}
		return err
	})
	if err != nil {
		return 0, err
	}

	if duration == 0 {
		duration = timeline.EstimateDuration(job.Script, o.TimelineOptions())
		o.log.WithJobID(job.ID).WithField("estimated", duration).Warn("Audio prober unavailable, using estimated duration")
	}
	if duration <= 0 || math.IsNaN(duration) || math.IsInf(duration, 0) {
		return 0, external("ffprobe", "probe", fmt.Errorf("invalid audio duration %v", duration))
	}
	return duration, nil
}

// GenerateCaptions segments the script into a timed caption timeline
func (o *Orchestrator) GenerateCaptions(ctx context.Context, jobID string) (*models.RenderJob, error) {
	return o.runStage(ctx, jobID, models.StepCaptions, o.generateCaptions)
}

func (o *Orchestrator) generateCaptions(ctx context.Context, job *models.RenderJob) error {
	const op = "generate captions"

	if err := requireStage(op, job, models.StageAudioGenerated); err != nil {
		return err
	}
	if !job.HasScript() || !job.HasAudio() {
		return invalid(op, "job %s is missing its script or audio", job.ID)
	}

	tl := timeline.Segment(job.Script, o.TimelineOptions())
	if tl.Empty() {
		return invalid(op, "script of job %s has no words", job.ID)
	}
	if o.opts.RescaleToAudio {
		tl = timeline.Rescale(tl, job.AudioDuration)
	}
	tl = tl.Rounded()
	if err := timeline.Validate(tl); err != nil {
		return fmt.Errorf("failed to build caption timeline: %w", err)
	}

	next := *job
	next.Timeline = &tl
	next.Status = models.StageCaptionsGenerated
	next.LastError = ""
	if err := o.persist(ctx, op, &next, models.StageAudioGenerated); err != nil {
		return err
	}

	*job = next
	return nil
}

// RenderVideo composites and encodes the reel. Without an encoder the job
// is parked in render_pending and the stage can be invoked again later.
func (o *Orchestrator) RenderVideo(ctx context.Context, jobID string) (*models.RenderJob, error) {
	return o.runStage(ctx, jobID, models.StepVideo, o.renderVideo)
}

func (o *Orchestrator) renderVideo(ctx context.Context, job *models.RenderJob) error {
	const op = "render video"

	if err := requireStage(op, job, models.StageCaptionsGenerated, models.StageRenderPending); err != nil {
		return err
	}
	if !job.HasTimeline() || !job.HasAudio() {
		return invalid(op, "job %s is missing its captions or audio", job.ID)
	}

	sb, tmpl, err := o.Storyboard(ctx, job)
	if err != nil {
		return err
	}

	if !o.renderer.Available() {
		return o.park(ctx, op, job)
	}

	if o.opts.TempDir != "" {
		if err := os.MkdirAll(o.opts.TempDir, 0755); err != nil {
			return fmt.Errorf("failed to create temp directory: %w", err)
		}
	}
	tempDir, err := os.MkdirTemp(o.opts.TempDir, job.ID+"-")
	if err != nil {
		return fmt.Errorf("failed to create temp directory: %w", err)
	}
	defer os.RemoveAll(tempDir)

	audioPath := filepath.Join(tempDir, "audio"+filepath.Ext(job.AudioKey))
	if err := o.call(ctx, "storage", "get", func(ctx context.Context) error {
		return o.objects.GetFile(ctx, job.AudioKey, audioPath)
	}); err != nil {
		return err
	}

	in := render.Input{
		Storyboard: sb,
		Template:   tmpl,
		AudioPath:  audioPath,
		OutputPath: filepath.Join(tempDir, "video.mp4"),
	}

	var res render.Result
	err = o.call(ctx, "ffmpeg", "render", func(ctx context.Context) error {
		var err error
		res, err = o.renderer.Render(ctx, in, o.progressCallback(ctx, job.ID))
		return err
	})
	if errors.Is(err, render.ErrRenderUnavailable) {
		return o.park(ctx, op, job)
	}
	if err != nil {
		return err
	}
	metrics.RecordRender(res.Frames, res.SpeedRatio())

	key := storage.VideoKey(job.ID)
	if err := o.call(ctx, "storage", "put", func(ctx context.Context) error {
		return o.objects.PutFile(ctx, key, in.OutputPath)
	}); err != nil {
		return err
	}

	next := *job
	next.VideoKey = key
	next.Status = models.StageVideoRendered
	next.LastError = ""

	err = o.call(ctx, "storage", "url", func(ctx context.Context) error {
		var err error
		next.VideoURL, err = o.objects.URL(ctx, key)
		return err
	})
	if err == nil {
		err = o.persist(ctx, op, &next, job.Status)
	}
	if err != nil {
		o.discard(ctx, job.ID, key, err)
		return err
	}

	o.recordProgress(ctx, job.ID, 100)
	*job = next
	return nil
}

// park moves a job into render_pending. A job already parked is left as is.
func (o *Orchestrator) park(ctx context.Context, op string, job *models.RenderJob) error {
	metrics.RenderPendingTotal.Inc()
	o.log.WithJobID(job.ID).Warn("Video encoder unavailable, job is pending render")

	if job.Status == models.StageRenderPending {
		return nil
	}

	next := *job
	next.Status = models.StageRenderPending
	next.LastError = ""
	if err := o.persist(ctx, op, &next, job.Status); err != nil {
		return err
	}

	*job = next
	return nil
}

func (o *Orchestrator) progressCallback(ctx context.Context, jobID string) render.ProgressCallback {
	logged := -1
	return func(progress float64) {
		o.recordProgress(ctx, jobID, progress)
		if step := int(progress) / 10; step > logged {
			logged = step
			o.log.LogRenderProgress(jobID, progress)
		}
	}
}

func (o *Orchestrator) recordProgress(ctx context.Context, jobID string, progress float64) {
	if o.progress == nil {
		return
	}
	if err := o.progress.SetJobProgress(ctx, jobID, progress, o.opts.JobCacheTTL); err != nil {
		o.log.WithJobID(jobID).ErrorWithErr("Failed to store render progress", err)
	}
}

// discard removes an uploaded object whose job update did not land. A
// stale update means another writer advanced the job and owns the key.
func (o *Orchestrator) discard(ctx context.Context, jobID, key string, cause error) {
	if errors.Is(cause, database.ErrStaleStatus) {
		o.log.WithJobID(jobID).WithField("key", key).Warn("Job advanced by another writer, keeping object")
		return
	}
	if err := o.objects.Delete(context.WithoutCancel(ctx), key); err != nil {
		o.log.WithJobID(jobID).WithField("key", key).ErrorWithErr("Failed to delete orphaned object", err)
	}
}
