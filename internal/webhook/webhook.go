package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// retryDelays is the backoff schedule between delivery attempts
var retryDelays = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	4 * time.Hour,
	12 * time.Hour,
}

// maxResponseBody bounds how much of a receiver's reply is stored
const maxResponseBody = 4096

// Repository defines the interface for webhook persistence
type Repository interface {
	GetWebhook(ctx context.Context, id string) (*models.Webhook, error)
	GetWebhooksByEvent(ctx context.Context, event string) ([]*models.Webhook, error)
	CreateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	UpdateDelivery(ctx context.Context, delivery *models.WebhookDelivery) error
	GetPendingDeliveries(ctx context.Context, limit int) ([]*models.WebhookDelivery, error)
}

// Service handles webhook delivery and retry logic
type Service struct {
	client        *http.Client
	repo          Repository
	maxRetries    int
	retryInterval time.Duration
	log           zerolog.Logger
	wg            sync.WaitGroup
	now           func() time.Time
}

// NewService creates a new webhook service
func NewService(repo Repository, cfg config.WebhookConfig, log zerolog.Logger) *Service {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	interval := cfg.RetryInterval
	if interval <= 0 {
		interval = time.Minute
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 || maxRetries > len(retryDelays) {
		maxRetries = len(retryDelays)
	}

	return &Service{
		client:        &http.Client{Timeout: timeout},
		repo:          repo,
		maxRetries:    maxRetries,
		retryInterval: interval,
		log:           log.With().Str("component", "webhook").Logger(),
		now:           time.Now,
	}
}

// Notify records a delivery for every subscriber of event and attempts
// each one in the background.
func (s *Service) Notify(ctx context.Context, event string, data interface{}) error {
	webhooks, err := s.repo.GetWebhooksByEvent(ctx, event)
	if err != nil {
		return fmt.Errorf("failed to get webhooks: %w", err)
	}

	payload := models.WebhookEvent{
		Event:     event,
		Timestamp: s.now(),
		Data:      data,
	}

	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for _, webhook := range webhooks {
		if !webhook.IsActive {
			continue
		}

		delivery := &models.WebhookDelivery{
			ID:        uuid.New().String(),
			WebhookID: webhook.ID,
			Event:     event,
			Payload:   string(payloadBytes),
			Status:    models.WebhookDeliveryStatusPending,
		}

		if err := s.repo.CreateDelivery(ctx, delivery); err != nil {
			s.log.Error().Err(err).Str("webhook_id", webhook.ID).Msg("failed to create delivery")
			continue
		}

		s.deliverAsync(webhook, delivery)
	}

	return nil
}

// NotifyStage sends the stage event under the webhook event that matches it
func (s *Service) NotifyStage(ctx context.Context, ev models.StageEvent) error {
	event := models.WebhookEventStageCompleted
	switch {
	case ev.Error != "":
		event = models.WebhookEventStageFailed
	case ev.Status == models.StageRenderPending:
		event = models.WebhookEventRenderPending
	}
	return s.Notify(ctx, event, ev)
}

// Wait blocks until in-flight deliveries finish
func (s *Service) Wait() {
	s.wg.Wait()
}

func (s *Service) deliverAsync(webhook *models.Webhook, delivery *models.WebhookDelivery) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.deliver(context.Background(), webhook, delivery)
	}()
}

// deliver attempts to deliver a webhook
func (s *Service) deliver(ctx context.Context, webhook *models.Webhook, delivery *models.WebhookDelivery) {
	payload := []byte(delivery.Payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(payload))
	if err != nil {
		s.markDeliveryFailed(ctx, delivery, 0, fmt.Sprintf("failed to create request: %v", err))
		return
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "QuizReel-Webhook/1.0")
	req.Header.Set("X-Webhook-Event", delivery.Event)
	req.Header.Set("X-Webhook-Delivery", delivery.ID)

	if webhook.Secret != "" {
		req.Header.Set("X-Webhook-Signature", Sign(payload, webhook.Secret))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.markDeliveryFailed(ctx, delivery, 0, fmt.Sprintf("failed to send request: %v", err))
		return
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.markDeliveryFailed(ctx, delivery, resp.StatusCode, string(body))
		return
	}

	now := s.now()
	delivery.Status = models.WebhookDeliveryStatusDelivered
	delivery.StatusCode = resp.StatusCode
	delivery.ResponseBody = string(body)
	delivery.NextRetryAt = nil
	delivery.CompletedAt = &now
	metrics.RecordWebhookDelivery(delivery.Status)

	if err := s.repo.UpdateDelivery(ctx, delivery); err != nil {
		s.log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to update delivery")
	}
}

// markDeliveryFailed schedules the next attempt or gives up once the
// retry budget is spent.
func (s *Service) markDeliveryFailed(ctx context.Context, delivery *models.WebhookDelivery, statusCode int, responseBody string) {
	delivery.StatusCode = statusCode
	delivery.ResponseBody = responseBody
	delivery.RetryCount++

	if delivery.RetryCount <= s.maxRetries {
		nextRetry := s.now().Add(retryDelays[delivery.RetryCount-1])
		delivery.NextRetryAt = &nextRetry
		delivery.Status = models.WebhookDeliveryStatusPending
	} else {
		now := s.now()
		delivery.NextRetryAt = nil
		delivery.Status = models.WebhookDeliveryStatusFailed
		delivery.CompletedAt = &now
	}
	metrics.RecordWebhookDelivery(delivery.Status)

	s.log.Warn().
		Str("delivery_id", delivery.ID).
		Int("status_code", statusCode).
		Int("retry_count", delivery.RetryCount).
		Str("status", delivery.Status).
		Msg("webhook delivery failed")

	if err := s.repo.UpdateDelivery(ctx, delivery); err != nil {
		s.log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to update delivery")
	}
}

// Sign returns the HMAC-SHA256 signature header value for payload
func Sign(payload []byte, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return "sha256=" + hex.EncodeToString(h.Sum(nil))
}

// RetryWorker processes pending webhook deliveries until ctx is done
func (s *Service) RetryWorker(ctx context.Context) {
	ticker := time.NewTicker(s.retryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RetryPending(ctx)
		}
	}
}

// RetryPending reattempts deliveries whose retry time has come
func (s *Service) RetryPending(ctx context.Context) {
	deliveries, err := s.repo.GetPendingDeliveries(ctx, 100)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to get pending deliveries")
		return
	}

	for _, delivery := range deliveries {
		if delivery.NextRetryAt != nil && s.now().Before(*delivery.NextRetryAt) {
			continue
		}

		webhook, err := s.repo.GetWebhook(ctx, delivery.WebhookID)
		if err != nil {
			s.log.Error().Err(err).Str("delivery_id", delivery.ID).Msg("failed to get webhook for delivery")
			continue
		}
		if !webhook.IsActive {
			continue
		}

		s.deliverAsync(webhook, delivery)
	}
}
