package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizreel_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizreel_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Stage Metrics
	StageOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizreel_stage_operations_total",
			Help: "Total number of stage attempts by outcome",
		},
		[]string{"stage", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizreel_stage_duration_seconds",
			Help:    "Stage duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 14), // 50ms to ~7 minutes
		},
		[]string{"stage"},
	)

	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizreel_jobs_in_flight",
			Help: "Number of jobs with a stage currently running",
		},
	)

	JobsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quizreel_jobs_by_status",
			Help: "Number of render jobs in each status",
		},
		[]string{"status"},
	)

	LockContentionTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quizreel_lock_contention_total",
			Help: "Stage requests rejected because the job was busy",
		},
	)

	// External Collaborator Metrics
	ExternalCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizreel_external_calls_total",
			Help: "Total number of calls to external services",
		},
		[]string{"service", "outcome"},
	)

	ExternalCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizreel_external_call_duration_seconds",
			Help:    "External call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14),
		},
		[]string{"service"},
	)

	// Render Metrics
	FramesRenderedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quizreel_frames_rendered_total",
			Help: "Total number of frames rasterized",
		},
	)

	RenderSpeedRatio = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quizreel_render_speed_ratio",
			Help:    "Render speed ratio (video duration / processing time)",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.0, 4.0, 8.0, 16.0},
		},
	)

	RenderPendingTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quizreel_render_pending_total",
			Help: "Render attempts deferred because no encoder was available",
		},
	)

	// Queue Metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizreel_queue_depth",
			Help: "Number of stage requests waiting in queue",
		},
	)

	DeadLetterDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quizreel_dead_letter_depth",
			Help: "Number of stage requests parked on the dead letter queue",
		},
	)

	// Cache Metrics
	CacheHitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizreel_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_type"},
	)

	CacheMissesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizreel_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_type"},
	)

	// Notification Metrics
	WebhookDeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizreel_webhook_deliveries_total",
			Help: "Total number of webhook delivery attempts",
		},
		[]string{"status"},
	)

	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizreel_events_published_total",
			Help: "Total number of stage events published",
		},
		[]string{"outcome"},
	)
)

func outcome(err error) string {
	if err != nil {
		return "failure"
	}
	return "success"
}

// RecordHTTPRequest records an HTTP request
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration)
}

// RecordStage records one stage attempt
func RecordStage(stage, result string, duration float64) {
	StageOperationsTotal.WithLabelValues(stage, result).Inc()
	StageDuration.WithLabelValues(stage).Observe(duration)
}

// RecordExternalCall records a call to a collaborator service
func RecordExternalCall(service string, duration float64, err error) {
	ExternalCallsTotal.WithLabelValues(service, outcome(err)).Inc()
	ExternalCallDuration.WithLabelValues(service).Observe(duration)
}

// RecordRender records a finished render
func RecordRender(frames int, speedRatio float64) {
	FramesRenderedTotal.Add(float64(frames))
	if speedRatio > 0 {
		RenderSpeedRatio.Observe(speedRatio)
	}
}

// UpdateQueueMetrics updates queue gauges
func UpdateQueueMetrics(queueDepth, dlqDepth int) {
	QueueDepth.Set(float64(queueDepth))
	DeadLetterDepth.Set(float64(dlqDepth))
}

// UpdateJobCounts replaces the per-status job gauges
func UpdateJobCounts(counts map[string]int) {
	JobsByStatus.Reset()
	for status, n := range counts {
		JobsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// RecordCacheAccess records cache hit or miss
func RecordCacheAccess(cacheType string, hit bool) {
	if hit {
		CacheHitsTotal.WithLabelValues(cacheType).Inc()
	} else {
		CacheMissesTotal.WithLabelValues(cacheType).Inc()
	}
}

// RecordWebhookDelivery records a webhook delivery attempt
func RecordWebhookDelivery(status string) {
	WebhookDeliveriesTotal.WithLabelValues(status).Inc()
}

// RecordEventPublished records an MQTT publish
func RecordEventPublished(err error) {
	EventsPublishedTotal.WithLabelValues(outcome(err)).Inc()
}
