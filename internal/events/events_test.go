package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/therealutkarshpriyadarshi/quizreel/pkg/models"
)

type fakeToken struct {
	done chan struct{}
	err  error
}

func newFakeToken(err error, complete bool) *fakeToken {
	t := &fakeToken{done: make(chan struct{}), err: err}
	if complete {
		close(t.done)
	}
	return t
}

func (t *fakeToken) Wait() bool                     { <-t.done; return true }
func (t *fakeToken) WaitTimeout(time.Duration) bool { return true }
func (t *fakeToken) Done() <-chan struct{}          { return t.done }
func (t *fakeToken) Error() error                   { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	token mqtt.Token
	sent  []published
}

func (f *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	f.sent = append(f.sent, published{topic, qos, retained, payload.([]byte)})
	return f.token
}

func newTestPublisher(client publisher) *Publisher {
	return &Publisher{
		client: client,
		prefix: "quizreel",
		qos:    1,
		log:    zerolog.Nop(),
		now:    func() time.Time { return time.Date(2024, 2, 3, 4, 5, 6, 0, time.UTC) },
	}
}

func TestNotifyStage(t *testing.T) {
	client := &fakeClient{token: newFakeToken(nil, true)}
	p := newTestPublisher(client)

	err := p.NotifyStage(context.Background(), models.StageEvent{
		JobID:  "job-1",
		Step:   models.StepCaptions,
		Status: models.StageCaptionsGenerated,
	})
	require.NoError(t, err)
	require.Len(t, client.sent, 1)

	msg := client.sent[0]
	assert.Equal(t, "quizreel/jobs/job-1/stage", msg.topic)
	assert.Equal(t, byte(1), msg.qos)
	assert.True(t, msg.retained)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.payload, &decoded))
	assert.Equal(t, "job-1", decoded["job_id"])
	assert.Equal(t, "captions_generated", decoded["status"])
	assert.Equal(t, "2024-02-03T04:05:06Z", decoded["timestamp"])
}

func TestNotifyStageBrokerError(t *testing.T) {
	p := newTestPublisher(&fakeClient{token: newFakeToken(errors.New("not connected"), true)})

	err := p.NotifyStage(context.Background(), models.StageEvent{JobID: "job-2"})
	assert.ErrorContains(t, err, "not connected")
}

func TestNotifyStageHonorsContext(t *testing.T) {
	p := newTestPublisher(&fakeClient{token: newFakeToken(nil, false)})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := p.NotifyStage(ctx, models.StageEvent{JobID: "job-3"})
	assert.True(t, errors.Is(err, context.Canceled))
}
