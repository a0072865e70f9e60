package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formvault/formvault/libs/shared/logging"
	"github.com/formvault/formvault/libs/shared/mq"
)

type publishedMessage struct {
	key     string
	value   []byte
	headers map[string]string
}

type memoryPublisher struct {
	messages []publishedMessage
	err      error
}

func (m *memoryPublisher) Publish(_ context.Context, key string, value []byte, headers map[string]string) error {
	if m.err != nil {
		return m.err
	}
	m.messages = append(m.messages, publishedMessage{key: key, value: value, headers: headers})
	return nil
}

type redeliverFunc func(ctx context.Context, id string) (*FormSubmission, error)

func (f redeliverFunc) Redeliver(ctx context.Context, id string) (*FormSubmission, error) {
	return f(ctx, id)
}

func TestKafkaEventPublisher(t *testing.T) {
	pub := &memoryPublisher{}
	sub := newTestSubmission()
	require.NoError(t, sub.MarkProcessing())
	require.NoError(t, sub.MarkFailed("status code 500"))

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, NewKafkaEventPublisher(pub).Publish(context.Background(), newEvent(EventStatusChanged, sub, StatusProcessing, at)))

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, sub.ID, msg.key)
	assert.Equal(t, EventStatusChanged, msg.headers["event_type"])

	var ev Event
	require.NoError(t, json.Unmarshal(msg.value, &ev))
	assert.Equal(t, StatusFailed, ev.Status)
	assert.Equal(t, StatusProcessing, ev.PreviousStatus)
	assert.Equal(t, "status code 500", ev.FailureReason)
	assert.Equal(t, at, ev.OccurredAt)
	assert.NotContains(t, string(msg.value), sub.EncryptedData)
}

func TestRedeliveryQueueEnqueue(t *testing.T) {
	pub := &memoryPublisher{}
	queue := NewRedeliveryQueue(pub)
	queue.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

	require.NoError(t, queue.Enqueue(context.Background(), " sub-1 ", "api"))

	require.Len(t, pub.messages, 1)
	msg := pub.messages[0]
	assert.Equal(t, "sub-1", msg.key)
	assert.JSONEq(t, `{"submissionId":"sub-1"}`, string(msg.value))
	assert.Equal(t, "api", msg.headers["requested_by"])
	assert.Equal(t, "2026-03-01T12:00:00Z", msg.headers["requested_at"])

	assert.Error(t, queue.Enqueue(context.Background(), "  ", "api"))
	assert.Error(t, NewRedeliveryQueue(nil).Enqueue(context.Background(), "sub-1", ""))

	pub.err = errors.New("broker unavailable")
	assert.Error(t, queue.Enqueue(context.Background(), "sub-2", ""))
}

func redeliveryMessage(id string) mq.Message {
	value, _ := json.Marshal(RedeliveryRequest{SubmissionID: id})
	return mq.Message{Topic: "formvault.redeliveries", Key: []byte(id), Value: value}
}

func TestWorkerHandleMessage(t *testing.T) {
	delivered := newTestSubmission()
	require.NoError(t, delivered.MarkProcessing())
	require.NoError(t, delivered.MarkDelivered())

	failed := newTestSubmission()
	require.NoError(t, failed.MarkProcessing())
	require.NoError(t, failed.MarkFailed("status code 503"))

	interrupted := newTestSubmission()
	require.NoError(t, interrupted.MarkProcessing())

	var requested []string
	worker := NewRedeliveryWorker(redeliverFunc(func(_ context.Context, id string) (*FormSubmission, error) {
		requested = append(requested, id)
		switch id {
		case "delivered":
			return delivered, nil
		case "failed":
			return failed, nil
		case "interrupted":
			return interrupted, nil
		case "missing":
			return nil, fmt.Errorf("%w: missing", ErrSubmissionNotFound)
		case "no-hook":
			return nil, ErrNoWebhook
		case "busy":
			return nil, &TransitionError{From: StatusDelivered, To: StatusProcessing}
		default:
			return nil, errors.New("database unavailable")
		}
	}), logging.Discard())
	ctx := context.Background()

	assert.NoError(t, worker.HandleMessage(ctx, redeliveryMessage("delivered")))
	assert.NoError(t, worker.HandleMessage(ctx, redeliveryMessage("interrupted")))
	assert.NoError(t, worker.HandleMessage(ctx, redeliveryMessage("missing")))
	assert.NoError(t, worker.HandleMessage(ctx, redeliveryMessage("no-hook")))
	assert.NoError(t, worker.HandleMessage(ctx, redeliveryMessage("busy")))

	err := worker.HandleMessage(ctx, redeliveryMessage("failed"))
	assert.ErrorIs(t, err, ErrDeliveryFailed)
	assert.Contains(t, err.Error(), "status code 503")

	assert.Error(t, worker.HandleMessage(ctx, redeliveryMessage("other")))
	assert.Error(t, worker.HandleMessage(ctx, mq.Message{Value: []byte("{")}))
	assert.Error(t, worker.HandleMessage(ctx, mq.Message{Value: []byte(`{"submissionId":" "}`)}))

	assert.Equal(t, []string{"delivered", "interrupted", "missing", "no-hook", "busy", "failed", "other"}, requested)
}

func TestWorkerRunRequiresConsumer(t *testing.T) {
	worker := NewRedeliveryWorker(nil, nil)
	assert.Error(t, worker.Run(context.Background(), nil))
	assert.Error(t, worker.HandleMessage(context.Background(), redeliveryMessage("x")))
}
