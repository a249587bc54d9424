package pipeline

import (
	"context"
	"errors"
	"time"

	"github.com/therealutkarshpriyadarshi/quizreel/internal/cache"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/render"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/script"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Store persists questions and render jobs
type Store interface {
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	MarkQuestionUsed(ctx context.Context, id string) error
	CreateRenderJob(ctx context.Context, job *models.RenderJob) error
	GetRenderJob(ctx context.Context, id string) (*models.RenderJob, error)
	GetRenderJobByQuestion(ctx context.Context, questionID string) (*models.RenderJob, error)
	AdvanceRenderJob(ctx context.Context, job *models.RenderJob, expected models.Stage) error
	RecordJobError(ctx context.Context, id, message string) error
}

// ObjectStore holds audio and video artifacts
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte) error
	PutFile(ctx context.Context, key, path string) error
	GetFile(ctx context.Context, key, path string) error
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// Speech turns narration into encoded audio
type Speech interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// ScriptWriter produces narration with a text-generation model
type ScriptWriter interface {
	Write(ctx context.Context, in script.Input, fallbackCountdown string) (string, error)
}

// VideoRenderer measures audio and encodes reels
type VideoRenderer interface {
	Available() bool
	ProbeDuration(ctx context.Context, audio []byte) (float64, error)
	Render(ctx context.Context, in render.Input, progressCB render.ProgressCallback) (render.Result, error)
}

// Locker serializes stages per job. The returned func releases the lock.
type Locker interface {
	Acquire(ctx context.Context, jobID string, ttl time.Duration) (func(context.Context) error, error)
}

// ProgressRecorder stores render progress for polling clients
type ProgressRecorder interface {
	SetJobProgress(ctx context.Context, jobID string, progress float64, ttl time.Duration) error
}

// JobCache is a read-through cache of render jobs
type JobCache interface {
	SetJob(ctx context.Context, job *models.RenderJob, ttl time.Duration) error
	GetJob(ctx context.Context, jobID string) (*models.RenderJob, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// Notifier announces stage outcomes
type Notifier interface {
	NotifyStage(ctx context.Context, ev models.StageEvent) error
}

// CacheLocker adapts the Redis cache to Locker
type CacheLocker struct {
	Cache *cache.Cache
}

// Acquire takes the per-job lock or returns ErrJobBusy
func (l CacheLocker) Acquire(ctx context.Context, jobID string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := l.Cache.AcquireLock(ctx, "job:"+jobID, ttl)
	if errors.Is(err, cache.ErrLockHeld) {
		return nil, ErrJobBusy
	}
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}
