package queue

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	DeadLetterQueueName    = "quizreel_stages_dlq"
	DeadLetterExchangeName = "quizreel_dlq"

	headerFailureReason = "x-failure-reason"
	headerFailedAt      = "x-failed-at"
)

// DeadLetter is a parked stage request
type DeadLetter struct {
	Body     []byte
	Reason   string
	FailedAt string
}

// SetupDeadLetterQueue declares the dead letter exchange and queue
func (q *Queue) SetupDeadLetterQueue() error {
	err := q.channel.ExchangeDeclare(
		DeadLetterExchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ exchange: %w", err)
	}

	_, err = q.channel.QueueDeclare(
		DeadLetterQueueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare DLQ: %w", err)
	}

	err = q.channel.QueueBind(
		DeadLetterQueueName,
		DeadLetterQueueName,
		DeadLetterExchangeName,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to bind DLQ: %w", err)
	}

	q.log.Debug().Msg("dead letter queue declared")
	return nil
}

func deadLetterHeaders(reason string, at time.Time) amqp.Table {
	return amqp.Table{
		headerFailureReason: reason,
		headerFailedAt:      at.Format(time.RFC3339),
	}
}

func deadLetterFrom(body []byte, headers amqp.Table) DeadLetter {
	dl := DeadLetter{Body: body}
	if val, ok := headers[headerFailureReason].(string); ok {
		dl.Reason = val
	}
	if val, ok := headers[headerFailedAt].(string); ok {
		dl.FailedAt = val
	}
	return dl
}

// PublishToDeadLetterQueue parks a failed message body with its reason
func (q *Queue) PublishToDeadLetterQueue(ctx context.Context, body []byte, reason string) error {
	now := time.Now()
	err := q.channel.PublishWithContext(ctx,
		DeadLetterExchangeName,
		DeadLetterQueueName,
		false,
		false,
		amqp.Publishing{
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    now,
			Headers:      deadLetterHeaders(reason, now),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish to DLQ: %w", err)
	}

	q.log.Warn().Str("reason", reason).Msg("stage request moved to dead letter queue")
	return nil
}

// RequeueDeadLetters moves up to max parked requests back onto the stage
// queue and returns them.
func (q *Queue) RequeueDeadLetters(ctx context.Context, max int) ([]DeadLetter, error) {
	var moved []DeadLetter
	for len(moved) < max {
		msg, ok, err := q.channel.Get(DeadLetterQueueName, false)
		if err != nil {
			return moved, fmt.Errorf("failed to read DLQ: %w", err)
		}
		if !ok {
			break
		}

		err = q.channel.PublishWithContext(ctx,
			ExchangeName,
			StageQueueName,
			false,
			false,
			amqp.Publishing{
				DeliveryMode: amqp.Persistent,
				ContentType:  "application/json",
				Body:         msg.Body,
				Timestamp:    time.Now(),
			},
		)
		if err != nil {
			msg.Nack(false, true)
			return moved, fmt.Errorf("failed to requeue dead letter: %w", err)
		}

		msg.Ack(false)
		moved = append(moved, deadLetterFrom(msg.Body, msg.Headers))
	}

	return moved, nil
}

// GetDLQDepth returns the number of messages in the dead letter queue
func (q *Queue) GetDLQDepth() (int, error) {
	info, err := q.channel.QueueInspect(DeadLetterQueueName)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect DLQ: %w", err)
	}

	return info.Messages, nil
}
