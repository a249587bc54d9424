// Package pipeline drives a render job through its stages: script, audio,
// captions and video. Each stage runs under a per-job lock, checks the
// persisted status, calls its collaborators and advances the status with a
// conditional update. A failed stage leaves the job where it was with the
// error recorded so the stage can be retried.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/therealutkarshpriyadarshi/quizreel/internal/compositor"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/database"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/logging"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/script"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/timeline"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/tracing"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// ScriptRequest selects how the script stage builds narration.
// TemplateID zero picks a narration style at random.
type ScriptRequest struct {
	TemplateID int  `json:"template_id"`
	UseLLM     bool `json:"use_llm"`
}

// Deps are the collaborators of an Orchestrator. Writer, Locker, Progress,
// Cache and Notifiers are optional.
type Deps struct {
	Store     Store
	Objects   ObjectStore
	Speech    Speech
	Writer    ScriptWriter
	Renderer  VideoRenderer
	Locker    Locker
	Progress  ProgressRecorder
	Cache     JobCache
	Notifiers []Notifier
	Scripts   *script.Synthesizer
	Visuals   *compositor.Catalog
	Logger    *logging.Logger
}

// lockGrace covers the work a stage does outside its timeout, such as
// recording the error and releasing the lock.
const lockGrace = time.Minute

// Options tunes stage behavior
type Options struct {
	WordsPerSecond        float64
	RescaleToAudio        bool
	LockTTL               time.Duration
	JobCacheTTL           time.Duration
	StageTimeout          time.Duration
	TempDir               string
	DefaultVisualTemplate int
	Script                ScriptRequest
}

// OptionsFromConfig collects the orchestrator settings from cfg
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WordsPerSecond:        cfg.Render.WordsPerSecond,
		RescaleToAudio:        cfg.Render.RescaleToAudio,
		LockTTL:               cfg.Pipeline.LockTTL,
		JobCacheTTL:           cfg.Pipeline.JobCacheTTL,
		StageTimeout:          cfg.Pipeline.StageTimeout,
		TempDir:               cfg.Render.TempDir,
		DefaultVisualTemplate: cfg.Render.DefaultTemplate,
		Script:                ScriptRequest{UseLLM: cfg.LLM.Enabled},
	}
}

// Orchestrator runs render job stages
type Orchestrator struct {
	store     Store
	objects   ObjectStore
	speech    Speech
	writer    ScriptWriter
	renderer  VideoRenderer
	locker    Locker
	progress  ProgressRecorder
	cache     JobCache
	notifiers []Notifier
	scripts   *script.Synthesizer
	visuals   *compositor.Catalog
	opts      Options
	log       *logging.Logger
}

// New creates an orchestrator
func New(deps Deps, opts Options) *Orchestrator {
	if deps.Scripts == nil {
		deps.Scripts = script.NewSynthesizer(nil, nil)
	}
	if deps.Visuals == nil {
		deps.Visuals = compositor.DefaultCatalog()
	}
	if deps.Logger == nil {
		deps.Logger = logging.New(io.Discard, logging.Config{})
	}
	if opts.WordsPerSecond <= 0 {
		opts.WordsPerSecond = timeline.DefaultWordsPerSecond
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = 15 * time.Minute
	}
	// The lock is never refreshed, so it must outlive the longest stage.
	if opts.StageTimeout > 0 && opts.LockTTL < opts.StageTimeout+lockGrace {
		opts.LockTTL = opts.StageTimeout + lockGrace
	}
	if opts.JobCacheTTL <= 0 {
		opts.JobCacheTTL = 10 * time.Minute
	}
	if opts.DefaultVisualTemplate == 0 {
		opts.DefaultVisualTemplate = compositor.DefaultID
	}

	return &Orchestrator{
		store:     deps.Store,
		objects:   deps.Objects,
		speech:    deps.Speech,
		writer:    deps.Writer,
		renderer:  deps.Renderer,
		locker:    deps.Locker,
		progress:  deps.Progress,
		cache:     deps.Cache,
		notifiers: deps.Notifiers,
		scripts:   deps.Scripts,
		visuals:   deps.Visuals,
		opts:      opts,
		log:       deps.Logger.WithComponent("pipeline"),
	}
}

// Scripts returns the narration synthesizer used by the script stage
func (o *Orchestrator) Scripts() *script.Synthesizer {
	return o.scripts
}

// Visuals returns the visual template catalog
func (o *Orchestrator) Visuals() *compositor.Catalog {
	return o.visuals
}

// TimelineOptions returns the segmentation settings used by the captions stage
func (o *Orchestrator) TimelineOptions() timeline.Options {
	return timeline.Options{WordsPerSecond: o.opts.WordsPerSecond}
}

// CreateJob starts a render job for a question in the created stage
func (o *Orchestrator) CreateJob(ctx context.Context, questionID string, visualTemplateID int) (*models.RenderJob, error) {
	const op = "create job"

	visualTemplateID, err := o.visualTemplate(op, visualTemplateID)
	if err != nil {
		return nil, err
	}
	if _, err := o.question(ctx, op, questionID); err != nil {
		return nil, err
	}

	job := &models.RenderJob{
		QuestionID:       questionID,
		VisualTemplateID: visualTemplateID,
		Status:           models.StageCreated,
	}
	if err := o.store.CreateRenderJob(ctx, job); err != nil {
		return nil, external("store", op, err)
	}

	o.cacheJob(ctx, job)
	o.log.WithJobID(job.ID).WithField("question_id", questionID).Info("Render job created")
	return job, nil
}

// AcceptScript stores a caller-supplied script as a new job already in the
// script_generated stage and marks the question used.
func (o *Orchestrator) AcceptScript(ctx context.Context, questionID, text string, scriptTemplateID, visualTemplateID int) (*models.RenderJob, error) {
	const op = "accept script"

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, invalid(op, "script is empty")
	}
	if scriptTemplateID != 0 {
		if _, ok := o.scripts.Catalog().Get(scriptTemplateID); !ok {
			return nil, invalid(op, "%v: %d", script.ErrUnknownTemplate, scriptTemplateID)
		}
	}
	visualTemplateID, err := o.visualTemplate(op, visualTemplateID)
	if err != nil {
		return nil, err
	}
	if _, err := o.question(ctx, op, questionID); err != nil {
		return nil, err
	}

	job := &models.RenderJob{
		QuestionID:       questionID,
		Script:           text,
		ScriptTemplateID: scriptTemplateID,
		VisualTemplateID: visualTemplateID,
		Status:           models.StageScriptGenerated,
	}
	if err := o.store.CreateRenderJob(ctx, job); err != nil {
		return nil, external("store", op, err)
	}

	if err := o.store.MarkQuestionUsed(ctx, questionID); err != nil {
		o.log.WithJobID(job.ID).ErrorWithErr("Failed to mark question used", err)
	}

	o.cacheJob(ctx, job)
	o.notify(ctx, job, models.StepScript, nil)
	o.log.WithJobID(job.ID).WithField("question_id", questionID).Info("Script accepted")
	return job, nil
}

// GetJob returns a job, reading through the cache
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (*models.RenderJob, error) {
	if o.cache != nil {
		job, err := o.cache.GetJob(ctx, jobID)
		if err != nil {
			o.log.WithJobID(jobID).ErrorWithErr("Failed to read job cache", err)
		}
		metrics.RecordCacheAccess("job", job != nil)
		if job != nil {
			return job, nil
		}
	}

	job, err := o.store.GetRenderJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	o.cacheJob(ctx, job)
	return job, nil
}

// GetJobByQuestion returns the newest job for a question
func (o *Orchestrator) GetJobByQuestion(ctx context.Context, questionID string) (*models.RenderJob, error) {
	return o.store.GetRenderJobByQuestion(ctx, questionID)
}

// Storyboard gathers what a frame of job needs: the caption timeline, the
// question display fields and the visual template.
func (o *Orchestrator) Storyboard(ctx context.Context, job *models.RenderJob) (compositor.Storyboard, compositor.VisualTemplate, error) {
	const op = "storyboard"

	if !job.HasTimeline() {
		return compositor.Storyboard{}, compositor.VisualTemplate{}, invalid(op, "job %s has no captions yet", job.ID)
	}
	tmpl, err := o.visuals.Lookup(job.VisualTemplateID)
	if err != nil {
		return compositor.Storyboard{}, compositor.VisualTemplate{}, invalid(op, "%v", err)
	}
	q, err := o.question(ctx, op, job.QuestionID)
	if err != nil {
		return compositor.Storyboard{}, compositor.VisualTemplate{}, err
	}
	return compositor.NewStoryboard(q, *job.Timeline), tmpl, nil
}

// Advance runs exactly the next stage for the job's current status
func (o *Orchestrator) Advance(ctx context.Context, jobID string) (*models.RenderJob, error) {
	return o.advance(ctx, jobID, o.opts.Script)
}

func (o *Orchestrator) advance(ctx context.Context, jobID string, sreq ScriptRequest) (*models.RenderJob, error) {
	job, err := o.store.GetRenderJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	switch job.Status {
	case models.StageCreated:
		return o.GenerateScript(ctx, jobID, sreq)
	case models.StageScriptGenerated:
		return o.GenerateAudio(ctx, jobID)
	case models.StageAudioGenerated:
		return o.GenerateCaptions(ctx, jobID)
	case models.StageCaptionsGenerated, models.StageRenderPending:
		return o.RenderVideo(ctx, jobID)
	case models.StageVideoRendered:
		return job, invalid("advance", "job %s is already complete", jobID)
	default:
		return job, invalid("advance", "job %s has unknown status %q", jobID, job.Status)
	}
}

// RunToCompletion advances the job until it is rendered or parked in
// render_pending. ctx is checked between stages.
func (o *Orchestrator) RunToCompletion(ctx context.Context, jobID string) (*models.RenderJob, error) {
	return o.runAll(ctx, jobID, o.opts.Script)
}

func (o *Orchestrator) runAll(ctx context.Context, jobID string, sreq ScriptRequest) (*models.RenderJob, error) {
	job, err := o.store.GetRenderJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status.Terminal() {
		return job, nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return job, err
		}

		job, err = o.advance(ctx, jobID, sreq)
		if err != nil {
			return job, err
		}
		if job.Status.Terminal() || job.Status == models.StageRenderPending {
			return job, nil
		}
	}
}

// Run executes a queued stage request
func (o *Orchestrator) Run(ctx context.Context, req *models.StageRequest) (*models.RenderJob, error) {
	sreq := o.opts.Script
	if req.TemplateID != 0 {
		sreq.TemplateID = req.TemplateID
	}
	if req.UseLLM {
		sreq.UseLLM = true
	}

	if req.RunAll {
		return o.runAll(ctx, req.JobID, sreq)
	}

	switch req.Step {
	case models.StepScript:
		return o.GenerateScript(ctx, req.JobID, sreq)
	case models.StepAudio:
		return o.GenerateAudio(ctx, req.JobID)
	case models.StepCaptions:
		return o.GenerateCaptions(ctx, req.JobID)
	case models.StepVideo:
		return o.RenderVideo(ctx, req.JobID)
	default:
		return nil, invalid("run", "unknown step %q", req.Step)
	}
}

type stageFunc func(ctx context.Context, job *models.RenderJob) error

// runStage wraps one stage attempt with the job lock, tracing, metrics,
// error recording and notification. run must only change job after the
// new state is persisted.
func (o *Orchestrator) runStage(ctx context.Context, jobID string, step models.Step, run stageFunc) (*models.RenderJob, error) {
	log := o.log.WithJobID(jobID).WithStage(string(step))

	release, err := o.lock(ctx, jobID)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.ErrorWithErr("Failed to release job lock", err)
		}
	}()

	if o.opts.StageTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.StageTimeout)
		defer cancel()
	}

	span, ctx := tracing.StartStageSpan(ctx, jobID, string(step))
	metrics.JobsInFlight.Inc()
	defer metrics.JobsInFlight.Dec()

	start := time.Now()
	job, err := o.store.GetRenderJob(ctx, jobID)
	if err != nil {
		tracing.Finish(span, err)
		return nil, err
	}

	err = run(ctx, job)
	duration := time.Since(start)

	outcome := "success"
	switch {
	case err == nil:
		if job.Status == models.StageRenderPending {
			outcome = "pending"
		}
		o.cacheJob(ctx, job)
		o.notify(ctx, job, step, nil)
		tracing.Finish(span, nil)
	case IsValidation(err):
		outcome = "rejected"
		tracing.SetTag(span, "rejected", err.Error())
		tracing.Finish(span, nil)
	default:
		outcome = "failure"
		job.LastError = err.Error()
		if rerr := o.store.RecordJobError(context.WithoutCancel(ctx), jobID, job.LastError); rerr != nil {
			log.ErrorWithErr("Failed to record stage error", rerr)
		}
		o.forgetJob(ctx, jobID)
		o.notify(ctx, job, step, err)
		tracing.Finish(span, err)
	}

	metrics.RecordStage(string(step), outcome, duration.Seconds())
	log.LogStageEvent(jobID, string(step), outcome, duration, err)

	return job, err
}

func (o *Orchestrator) lock(ctx context.Context, jobID string) (func(context.Context) error, error) {
	if o.locker == nil {
		return func(context.Context) error { return nil }, nil
	}

	release, err := o.locker.Acquire(ctx, jobID, o.opts.LockTTL)
	if errors.Is(err, ErrJobBusy) {
		metrics.LockContentionTotal.Inc()
		return nil, err
	}
	if err != nil {
		return nil, external("redis", "lock", err)
	}
	return release, nil
}

// call runs one collaborator request with a span, metrics and a log line,
// wrapping failures as ExternalServiceError.
func (o *Orchestrator) call(ctx context.Context, service, op string, fn func(ctx context.Context) error) error {
	span, ctx := tracing.StartExternalSpan(ctx, service, op)
	start := time.Now()

	err := fn(ctx)
	duration := time.Since(start)

	tracing.Finish(span, err)
	metrics.RecordExternalCall(service, duration.Seconds(), err)
	o.log.LogExternalCall(service, op, duration, err)

	if err != nil {
		return external(service, op, err)
	}
	return nil
}

// persist writes next with a conditional status update
func (o *Orchestrator) persist(ctx context.Context, op string, next *models.RenderJob, expected models.Stage) error {
	err := o.store.AdvanceRenderJob(ctx, next, expected)
	if errors.Is(err, database.ErrStaleStatus) {
		return &ValidationError{
			Op:     op,
			Reason: fmt.Sprintf("job %s is no longer %s", next.ID, expected),
			Err:    err,
		}
	}
	if err != nil {
		return external("store", op, err)
	}
	return nil
}

func (o *Orchestrator) question(ctx context.Context, op, id string) (*models.Question, error) {
	q, err := o.store.GetQuestion(ctx, id)
	if errors.Is(err, database.ErrNotFound) {
		return nil, fmt.Errorf("%s: question %s: %w", op, id, database.ErrNotFound)
	}
	if err != nil {
		return nil, external("store", op, err)
	}
	if err := q.Validate(); err != nil {
		return nil, invalid(op, "question %s: %v", id, err)
	}
	return q, nil
}

func (o *Orchestrator) visualTemplate(op string, id int) (int, error) {
	if id == 0 {
		id = o.opts.DefaultVisualTemplate
	}
	if _, err := o.visuals.Lookup(id); err != nil {
		return 0, invalid(op, "%v", err)
	}
	return id, nil
}

func (o *Orchestrator) cacheJob(ctx context.Context, job *models.RenderJob) {
	if o.cache == nil {
		return
	}
	if err := o.cache.SetJob(context.WithoutCancel(ctx), job, o.opts.JobCacheTTL); err != nil {
		o.log.WithJobID(job.ID).ErrorWithErr("Failed to cache job", err)
	}
}

func (o *Orchestrator) forgetJob(ctx context.Context, jobID string) {
	if o.cache == nil {
		return
	}
	if err := o.cache.DeleteJob(context.WithoutCancel(ctx), jobID); err != nil {
		o.log.WithJobID(jobID).ErrorWithErr("Failed to drop cached job", err)
	}
}

func (o *Orchestrator) notify(ctx context.Context, job *models.RenderJob, step models.Step, stageErr error) {
	ev := models.StageEvent{
		JobID:      job.ID,
		QuestionID: job.QuestionID,
		Step:       step,
		Status:     job.Status,
	}
	if stageErr != nil {
		ev.Error = stageErr.Error()
	}

	ctx = context.WithoutCancel(ctx)
	for _, n := range o.notifiers {
		if err := n.NotifyStage(ctx, ev); err != nil {
			o.log.WithJobID(job.ID).ErrorWithErr("Failed to send stage notification", err)
		}
	}
}
