package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// Webhook represents a webhook subscription to job stage events
type Webhook struct {
	ID        string        `json:"id" db:"id"`
	URL       string        `json:"url" db:"url"`
	Events    WebhookEvents `json:"events" db:"events"`
	Secret    string        `json:"secret,omitempty" db:"secret"`
	IsActive  bool          `json:"is_active" db:"is_active"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// WebhookEvents holds the events a webhook subscribes to
type WebhookEvents struct {
	StageCompleted bool `json:"stage_completed"`
	StageFailed    bool `json:"stage_failed"`
	RenderPending  bool `json:"render_pending"`
}

// Wants reports whether the subscription covers event
func (we WebhookEvents) Wants(event string) bool {
	switch event {
	case WebhookEventStageCompleted:
		return we.StageCompleted
	case WebhookEventStageFailed:
		return we.StageFailed
	case WebhookEventRenderPending:
		return we.RenderPending
	default:
		return false
	}
}

// Value implements driver.Valuer for database storage
func (we WebhookEvents) Value() (driver.Value, error) {
	return json.Marshal(we)
}

// Scan implements sql.Scanner for database retrieval
func (we *WebhookEvents) Scan(value interface{}) error {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, we)
	case string:
		return json.Unmarshal([]byte(v), we)
	}
	return nil
}

// WebhookDelivery represents a webhook delivery attempt
type WebhookDelivery struct {
	ID           string     `json:"id" db:"id"`
	WebhookID    string     `json:"webhook_id" db:"webhook_id"`
	Event        string     `json:"event" db:"event"`
	Payload      string     `json:"payload" db:"payload"`
	Status       string     `json:"status" db:"status"`
	StatusCode   int        `json:"status_code" db:"status_code"`
	ResponseBody string     `json:"response_body,omitempty" db:"response_body"`
	RetryCount   int        `json:"retry_count" db:"retry_count"`
	NextRetryAt  *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty" db:"completed_at"`
}

// WebhookDeliveryStatus constants
const (
	WebhookDeliveryStatusPending   = "pending"
	WebhookDeliveryStatusDelivered = "delivered"
	WebhookDeliveryStatusFailed    = "failed"
)

// WebhookEvent represents the payload sent to webhooks
type WebhookEvent struct {
	Event     string      `json:"event"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// StageEvent is the data carried by every stage notification
type StageEvent struct {
	JobID      string `json:"job_id"`
	QuestionID string `json:"question_id"`
	Step       Step   `json:"step"`
	Status     Stage  `json:"status"`
	Error      string `json:"error,omitempty"`
}

// Webhook event types
const (
	WebhookEventStageCompleted = "job.stage_completed"
	WebhookEventStageFailed    = "job.stage_failed"
	WebhookEventRenderPending  = "job.render_pending"
)
