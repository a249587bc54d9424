package main

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/database"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/fonts"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/logging"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/middleware"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/monitoring"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/pipeline"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/queue"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// QuestionStore reads and writes quiz questions
type QuestionStore interface {
	CreateQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id string) (*models.Question, error)
	ListUnusedQuestions(ctx context.Context, limit int) ([]*models.Question, error)
}

// WebhookStore manages webhook subscriptions
type WebhookStore interface {
	CreateWebhook(ctx context.Context, webhook *models.Webhook) error
	GetWebhook(ctx context.Context, id string) (*models.Webhook, error)
	DeleteWebhook(ctx context.Context, id string) error
}

// StageQueue hands stage requests to workers
type StageQueue interface {
	PublishStage(ctx context.Context, req *models.StageRequest) error
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
	RequeueDeadLetters(ctx context.Context, max int) ([]queue.DeadLetter, error)
}

// JobLister browses render jobs by stage
type JobLister interface {
	ListRenderJobs(ctx context.Context, status models.Stage, limit, offset int) ([]*models.RenderJob, error)
	CountRenderJobsByStatus(ctx context.Context) (map[models.Stage]int, error)
}

// ProgressReader reports render progress
type ProgressReader interface {
	GetJobProgress(ctx context.Context, jobID string) (float64, bool, error)
}

// SystemMonitor reports sampled queue and job figures
type SystemMonitor interface {
	GetSnapshot() monitoring.Snapshot
	GetSystemHealth() string
	GetAlerts() []string
}

// FrameSpec is the raster size and cadence of previews
type FrameSpec struct {
	Width  int
	Height int
	FPS    int
}

// API serves the HTTP interface
type API struct {
	pipeline    *pipeline.Orchestrator
	questions   QuestionStore
	webhooks    WebhookStore
	jobs        JobLister
	queue       StageQueue
	progress    ProgressReader
	monitor     SystemMonitor
	fonts       *fonts.Set
	frames      FrameSpec
	health      map[string]func(context.Context) error
	rateLimiter *middleware.RateLimiter
	log         *logging.Logger
}

// errorResponse maps pipeline and store errors onto status codes
func errorResponse(c *gin.Context, err error) {
	var ext *pipeline.ExternalServiceError
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, pipeline.ErrJobBusy):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case pipeline.IsValidation(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &ext):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "service": ext.Service})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
