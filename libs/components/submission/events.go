package submission

import (
	"context"
	"time"

	"github.com/formvault/formvault/libs/shared/mq"
)

const (
	EventCreated       = "submission.created"
	EventStatusChanged = "submission.status_changed"
)

// Event announces a submission change. It carries identifiers and status
// only, never submitted values.
type Event struct {
	Type           string    `json:"type"`
	SubmissionID   string    `json:"submission_id"`
	FormSchemaID   string    `json:"form_schema_id"`
	Status         Status    `json:"status"`
	PreviousStatus Status    `json:"previous_status,omitempty"`
	FailureReason  string    `json:"failure_reason,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

func newEvent(kind string, sub *FormSubmission, previous Status, at time.Time) Event {
	ev := Event{
		Type:           kind,
		SubmissionID:   sub.ID,
		FormSchemaID:   sub.FormSchemaID,
		Status:         sub.Status(),
		PreviousStatus: previous,
		OccurredAt:     at.UTC(),
	}
	if reason := sub.FailureReason(); reason != nil {
		ev.FailureReason = *reason
	}
	return ev
}

// EventPublisher receives submission events.
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// KafkaEventPublisher writes events as JSON keyed by submission id, so all
// events of one submission stay ordered on a partition.
type KafkaEventPublisher struct {
	pub mq.Publisher
}

// NewKafkaEventPublisher wraps a topic publisher.
func NewKafkaEventPublisher(pub mq.Publisher) *KafkaEventPublisher {
	return &KafkaEventPublisher{pub: pub}
}

// Publish implements EventPublisher.
func (k *KafkaEventPublisher) Publish(ctx context.Context, ev Event) error {
	return mq.PublishJSON(ctx, k.pub, ev.SubmissionID, ev, map[string]string{
		"event_type": ev.Type,
	})
}
