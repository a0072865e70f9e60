package submission

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/formvault/formvault/libs/shared/mq"
)

// RedeliveryRequest is the message body on the redelivery topic.
type RedeliveryRequest struct {
	SubmissionID string `json:"submissionId"`
}

// RedeliveryQueue enqueues manual webhook retries for the worker.
type RedeliveryQueue struct {
	producer mq.Publisher
	now      func() time.Time
}

// NewRedeliveryQueue constructs a queue publishing through producer.
func NewRedeliveryQueue(producer mq.Publisher) *RedeliveryQueue {
	return &RedeliveryQueue{producer: producer, now: time.Now}
}

// Enqueue publishes a redelivery request keyed by submission id.
func (q *RedeliveryQueue) Enqueue(ctx context.Context, submissionID, requestedBy string) error {
	if q == nil || q.producer == nil {
		return errors.New("redelivery queue producer not configured")
	}
	submissionID = strings.TrimSpace(submissionID)
	if submissionID == "" {
		return errors.New("submission id is required")
	}

	headers := map[string]string{
		"requested_at": q.now().UTC().Format(time.RFC3339Nano),
	}
	if requestedBy != "" {
		headers["requested_by"] = requestedBy
	}
	return mq.PublishJSON(ctx, q.producer, submissionID, RedeliveryRequest{SubmissionID: submissionID}, headers)
}
