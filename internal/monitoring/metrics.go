package monitoring

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// Snapshot holds the last collected system figures
type Snapshot struct {
	QueueDepth   int                  `json:"queue_depth"`
	DLQDepth     int                  `json:"dlq_depth"`
	JobsByStatus map[models.Stage]int `json:"jobs_by_status"`
	TotalJobs    int                  `json:"total_jobs"`
	LastUpdated  time.Time            `json:"last_updated"`
}

// Health thresholds
const (
	criticalDLQDepth  = 100
	warningQueueDepth = 1000
)

// JobCounter counts render jobs per status
type JobCounter interface {
	CountRenderJobsByStatus(ctx context.Context) (map[models.Stage]int, error)
}

// QueueProvider defines the interface for queue metrics
type QueueProvider interface {
	GetQueueDepth() (int, error)
	GetDLQDepth() (int, error)
}

// Monitor periodically samples queue and job figures into gauges
type Monitor struct {
	mu            sync.RWMutex
	snapshot      Snapshot
	repo          JobCounter
	queueProvider QueueProvider
	log           zerolog.Logger
}

// NewMonitor creates a new monitoring service
func NewMonitor(repo JobCounter, queueProvider QueueProvider, log zerolog.Logger) *Monitor {
	return &Monitor{
		repo:          repo,
		queueProvider: queueProvider,
		log:           log.With().Str("component", "monitoring").Logger(),
	}
}

// Start collects every interval until ctx is done
func (m *Monitor) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 15 * time.Second
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := m.Collect(ctx); err != nil {
					m.log.Error().Err(err).Msg("failed to update metrics")
				}
			}
		}
	}()
}

// Collect samples once and publishes the figures as gauges
func (m *Monitor) Collect(ctx context.Context) error {
	queueDepth, err := m.queueProvider.GetQueueDepth()
	if err != nil {
		return fmt.Errorf("failed to get queue depth: %w", err)
	}

	dlqDepth, err := m.queueProvider.GetDLQDepth()
	if err != nil {
		return fmt.Errorf("failed to get DLQ depth: %w", err)
	}

	counts, err := m.repo.CountRenderJobsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to get job counts: %w", err)
	}

	snap := Snapshot{
		QueueDepth:   queueDepth,
		DLQDepth:     dlqDepth,
		JobsByStatus: counts,
		LastUpdated:  time.Now(),
	}
	byName := make(map[string]int, len(counts))
	for status, n := range counts {
		snap.TotalJobs += n
		byName[string(status)] = n
	}

	metrics.UpdateQueueMetrics(queueDepth, dlqDepth)
	metrics.UpdateJobCounts(byName)

	m.mu.Lock()
	m.snapshot = snap
	m.mu.Unlock()
	return nil
}

// GetSnapshot returns the last collected figures
func (m *Monitor) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.snapshot
	snap.JobsByStatus = make(map[models.Stage]int, len(m.snapshot.JobsByStatus))
	for k, v := range m.snapshot.JobsByStatus {
		snap.JobsByStatus[k] = v
	}
	return snap
}

// GetSystemHealth returns overall system health
func (m *Monitor) GetSystemHealth() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.snapshot.DLQDepth > criticalDLQDepth {
		return "critical"
	}
	if m.snapshot.QueueDepth > warningQueueDepth {
		return "warning"
	}
	return "healthy"
}

// GetAlerts returns current system alerts
func (m *Monitor) GetAlerts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var alerts []string

	if m.snapshot.DLQDepth > criticalDLQDepth {
		alerts = append(alerts, fmt.Sprintf("High DLQ depth: %d messages", m.snapshot.DLQDepth))
	}

	if m.snapshot.QueueDepth > warningQueueDepth {
		alerts = append(alerts, fmt.Sprintf("High queue depth: %d stage requests pending", m.snapshot.QueueDepth))
	}

	if pending := m.snapshot.JobsByStatus[models.StageRenderPending]; pending > 0 {
		alerts = append(alerts, fmt.Sprintf("%d jobs waiting for an encoder", pending))
	}

	return alerts
}
