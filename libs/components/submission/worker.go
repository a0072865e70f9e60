package submission

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/formvault/formvault/libs/shared/mq"
)

// Redeliverer retries delivery of a stored submission. *Pipeline implements it.
type Redeliverer interface {
	Redeliver(ctx context.Context, id string) (*FormSubmission, error)
}

// RedeliveryWorker consumes redelivery requests.
type RedeliveryWorker struct {
	pipeline Redeliverer
	logger   *slog.Logger
}

// NewRedeliveryWorker constructs a worker.
func NewRedeliveryWorker(pipeline Redeliverer, logger *slog.Logger) *RedeliveryWorker {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedeliveryWorker{pipeline: pipeline, logger: logger}
}

// HandleMessage processes one redelivery request. Requests that can never
// succeed (unknown submission, no webhook, wrong state) are logged and
// dropped; a delivery that fails again returns an ErrDeliveryFailed error.
func (w *RedeliveryWorker) HandleMessage(ctx context.Context, msg mq.Message) error {
	if w == nil || w.pipeline == nil {
		return fmt.Errorf("redelivery worker not initialised")
	}

	var req RedeliveryRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("decode redelivery message: %w", err)
	}
	if strings.TrimSpace(req.SubmissionID) == "" {
		return fmt.Errorf("submission id missing from message")
	}

	sub, err := w.pipeline.Redeliver(ctx, req.SubmissionID)
	switch {
	case errors.Is(err, ErrSubmissionNotFound), errors.Is(err, ErrNoWebhook), errors.Is(err, ErrInvalidTransition):
		w.logger.Warn("submission worker: skipping redelivery", "submission_id", req.SubmissionID, "reason", err)
		return nil
	case err != nil:
		return err
	}

	switch sub.Status() {
	case StatusDelivered:
		w.logger.Info("submission worker: redelivered", "submission_id", sub.ID)
		return nil
	case StatusFailed:
		return fmt.Errorf("%w: %s", ErrDeliveryFailed, *sub.FailureReason())
	default:
		w.logger.Warn("submission worker: redelivery interrupted", "submission_id", sub.ID, "status", sub.Status())
		return nil
	}
}

// Run consumes until ctx is cancelled.
func (w *RedeliveryWorker) Run(ctx context.Context, consumer *mq.Consumer) error {
	if consumer == nil {
		return fmt.Errorf("consumer is nil")
	}
	return consumer.Run(ctx)
}
