package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/config"
	"github.com/therealutkarshpriyadarshi/quizreel/internal/metrics"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

// ErrPublishTimeout is returned when the broker does not acknowledge a
// publish in time.
var ErrPublishTimeout = errors.New("mqtt publish timed out")

const publishTimeout = 5 * time.Second

// publisher is the part of mqtt.Client the event publisher needs
type publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// Message is the payload published for every stage transition
type Message struct {
	models.StageEvent
	Timestamp time.Time `json:"timestamp"`
}

// Publisher publishes job stage transitions to MQTT. The latest message per
// job is retained so late subscribers see the current stage.
type Publisher struct {
	conn      mqtt.Client
	client    publisher
	prefix    string
	qos       byte
	connected atomic.Bool
	log       zerolog.Logger
	now       func() time.Time
}

// Connect dials the broker
func Connect(cfg config.MQTTConfig, log zerolog.Logger) (*Publisher, error) {
	p := &Publisher{
		prefix: cfg.TopicPrefix,
		qos:    byte(cfg.QoS),
		log:    log.With().Str("component", "events").Logger(),
		now:    time.Now,
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetryInterval(5 * time.Second).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(p.onConnectionLost)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	p.conn = mqtt.NewClient(opts)
	p.client = p.conn
	token := p.conn.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
	}

	return p, nil
}

func (p *Publisher) onConnect(_ mqtt.Client) {
	p.connected.Store(true)
	p.log.Info().Str("prefix", p.prefix).Msg("mqtt connected")
}

func (p *Publisher) onConnectionLost(_ mqtt.Client, err error) {
	p.connected.Store(false)
	p.log.Warn().Err(err).Msg("mqtt connection lost, will auto-reconnect")
}

// IsConnected reports whether the broker connection is up
func (p *Publisher) IsConnected() bool {
	return p.connected.Load()
}

// Topic returns the stage topic of a job
func (p *Publisher) Topic(jobID string) string {
	return fmt.Sprintf("%s/jobs/%s/stage", p.prefix, jobID)
}

// NotifyStage publishes a stage event and waits for the broker to accept it
func (p *Publisher) NotifyStage(ctx context.Context, ev models.StageEvent) error {
	payload, err := json.Marshal(Message{StageEvent: ev, Timestamp: p.now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to marshal stage event: %w", err)
	}

	token := p.client.Publish(p.Topic(ev.JobID), p.qos, true, payload)

	select {
	case <-token.Done():
		err = token.Error()
	case <-ctx.Done():
		err = ctx.Err()
	case <-time.After(publishTimeout):
		err = ErrPublishTimeout
	}
	metrics.RecordEventPublished(err)

	if err != nil {
		return fmt.Errorf("failed to publish stage event: %w", err)
	}
	return nil
}

// Close disconnects from the broker
func (p *Publisher) Close() {
	if p.conn != nil {
		p.log.Info().Msg("disconnecting mqtt client")
		p.conn.Disconnect(1000)
	}
}
