package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

const (
	StageQueueName = "quizreel_stages"
	ExchangeName   = "quizreel"
)

// Handler runs one stage request. A returned error dead-letters the message.
type Handler func(ctx context.Context, req *models.StageRequest) error

// Queue provides message queue operations
type Queue struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	log     zerolog.Logger
}

// New creates a new queue client and declares the stage and dead-letter
// topology.
func New(cfg config.QueueConfig, log zerolog.Logger) (*Queue, error) {
	conn, err := amqp.Dial(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	q := &Queue{
		conn:    conn,
		channel: channel,
		log:     log.With().Str("component", "queue").Logger(),
	}

	if err := q.declare(); err != nil {
		q.Close()
		return nil, err
	}
	if err := q.SetupDeadLetterQueue(); err != nil {
		q.Close()
		return nil, err
	}

	return q, nil
}

func (q *Queue) declare() error {
	err := q.channel.ExchangeDeclare(
		ExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		StageQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue: %w", err)
	}

	err = q.channel.QueueBind(StageQueueName, StageQueueName, ExchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("failed to bind queue: %w", err)
	}

	return nil
}

// Close closes the queue connection
func (q *Queue) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}

// PublishStage queues a stage request for a worker
func (q *Queue) PublishStage(ctx context.Context, req *models.StageRequest) error {
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now()
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal stage request: %w", err)
	}

	err = q.channel.PublishWithContext(ctx,
		ExchangeName,
		StageQueueName,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    req.RequestedAt,
			MessageId:    req.JobID,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish stage request: %w", err)
	}

	return nil
}

// decodeStageRequest parses and checks a queued message body
func decodeStageRequest(body []byte) (*models.StageRequest, error) {
	var req models.StageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stage request: %w", err)
	}
	if req.JobID == "" {
		return nil, errors.New("stage request has no job id")
	}
	if !req.RunAll && req.Step == "" {
		return nil, errors.New("stage request names no step")
	}
	if req.Step != "" {
		if _, err := models.ParseStep(string(req.Step)); err != nil {
			return nil, err
		}
	}
	return &req, nil
}

// ConsumeStages delivers stage requests to handler one at a time until ctx
// is done. Failed requests are parked on the dead-letter queue with the
// failure reason and nacked without requeue.
func (q *Queue) ConsumeStages(ctx context.Context, handler Handler) error {
	err := q.channel.Qos(
		1,     // prefetch count
		0,     // prefetch size
		false, // global
	)
	if err != nil {
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	msgs, err := q.channel.Consume(
		StageQueueName,
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				q.handle(ctx, msg, handler)
			}
		}
	}()

	return nil
}

func (q *Queue) handle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	req, err := decodeStageRequest(msg.Body)
	if err == nil {
		err = handler(ctx, req)
	}
	if err == nil {
		msg.Ack(false)
		return
	}

	if dlqErr := q.PublishToDeadLetterQueue(ctx, msg.Body, err.Error()); dlqErr != nil {
		q.log.Error().Err(dlqErr).Str("message_id", msg.MessageId).Msg("failed to dead-letter stage request")
	}
	msg.Nack(false, false)
}

// GetQueueDepth returns the number of messages in the stage queue
func (q *Queue) GetQueueDepth() (int, error) {
	info, err := q.channel.QueueInspect(StageQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect queue: %w", err)
	}

	return info.Messages, nil
}
