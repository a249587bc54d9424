// Package scheduler re-queues render jobs that were parked in render_pending
// once an encoder is available again.
package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Repository lists jobs by status
type Repository interface {
	ListRenderJobs(ctx context.Context, status models.Stage, limit, offset int) ([]*models.RenderJob, error)
}

// StagePublisher hands stage requests to workers
type StagePublisher interface {
	PublishStage(ctx context.Context, req *models.StageRequest) error
}

// Encoder reports whether video rendering is possible on this host
type Encoder interface {
	Available() bool
}

// Options tunes the sweeper
type Options struct {
	Interval time.Duration
	// Batch caps the number of jobs published per sweep
	Batch int
	// Cooldown is how long a published job is skipped by later sweeps
	Cooldown time.Duration
}

// PendingSweeper periodically publishes video stage requests for parked
// jobs, oldest first
type PendingSweeper struct {
	repo      Repository
	publisher StagePublisher
	encoder   Encoder
	opts      Options
	log       zerolog.Logger

	mu        sync.Mutex
	published map[string]time.Time
	now       func() time.Time
}

// NewPendingSweeper creates a sweeper
func NewPendingSweeper(repo Repository, publisher StagePublisher, encoder Encoder, opts Options, log zerolog.Logger) *PendingSweeper {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Batch <= 0 {
		opts.Batch = 10
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * opts.Interval
	}

	return &PendingSweeper{
		repo:      repo,
		publisher: publisher,
		encoder:   encoder,
		opts:      opts,
		log:       log.With().Str("component", "scheduler").Logger(),
		published: make(map[string]time.Time),
		now:       time.Now,
	}
}

// Run sweeps every interval until ctx is done
func (s *PendingSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.opts.Interval).Int("batch", s.opts.Batch).Msg("pending render sweeper started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.log.Error().Err(err).Msg("pending render sweep failed")
			}
		}
	}
}

// Sweep publishes up to Batch parked jobs and returns how many it published.
// Nothing is published while the encoder is unavailable.
func (s *PendingSweeper) Sweep(ctx context.Context) (int, error) {
	if !s.encoder.Available() {
		return 0, nil
	}

	jobs, err := s.repo.ListRenderJobs(ctx, models.StageRenderPending, s.opts.Batch*4, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending jobs: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for id, at := range s.published {
		if now.Sub(at) >= s.opts.Cooldown {
			delete(s.published, id)
		}
	}

	pq := &PriorityQueue{}
	heap.Init(pq)
	for _, job := range jobs {
		if _, recent := s.published[job.ID]; recent {
			continue
		}
		heap.Push(pq, &QueueItem{Job: job, Timestamp: job.UpdatedAt})
	}

	count := 0
	for count < s.opts.Batch && pq.Len() > 0 {
		item := heap.Pop(pq).(*QueueItem)

		req := &models.StageRequest{
			JobID:       item.Job.ID,
			Step:        models.StepVideo,
			RequestedAt: now,
		}
		if err := s.publisher.PublishStage(ctx, req); err != nil {
			return count, fmt.Errorf("failed to publish job %s: %w", item.Job.ID, err)
		}

		s.published[item.Job.ID] = now
		count++
		s.log.Info().Str("job_id", item.Job.ID).Time("parked_at", item.Timestamp).Msg("re-queued parked render")
	}

	return count, nil
}

// PriorityQueue orders parked jobs by how long they have waited
type PriorityQueue []*QueueItem

// QueueItem represents a job in the priority queue
type QueueItem struct {
	Job       *models.RenderJob
	Timestamp time.Time
	Index     int
}

func (pq PriorityQueue) Len() int { return len(pq) }

func (pq PriorityQueue) Less(i, j int) bool {
	if !pq[i].Timestamp.Equal(pq[j].Timestamp) {
		return pq[i].Timestamp.Before(pq[j].Timestamp)
	}
	return pq[i].Job.ID < pq[j].Job.ID
}

func (pq PriorityQueue) Swap(i, j int) {
	pq[i], pq[j] = pq[j], pq[i]
	pq[i].Index = i
	pq[j].Index = j
}

func (pq *PriorityQueue) Push(x interface{}) {
	n := len(*pq)
	item := x.(*QueueItem)
	item.Index = n
	*pq = append(*pq, item)
}

func (pq *PriorityQueue) Pop() interface{} {
	old := *pq
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.Index = -1
	*pq = old[0 : n-1]
	return item
}
