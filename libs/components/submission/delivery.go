package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/formvault/formvault/libs/shared/observability"
)

const (
	HeaderSubmissionID    = "X-FormVault-Submission-Id"
	HeaderDeliveryAttempt = "X-FormVault-Delivery-Attempt"
)

// DeliveryPolicy bounds webhook retries.
type DeliveryPolicy struct {
	MaxAttempts    int
	AttemptTimeout time.Duration
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64
}

// DefaultDeliveryPolicy is three attempts, 10s each, backing off from
// 500ms and doubling up to 10s.
func DefaultDeliveryPolicy() DeliveryPolicy {
	return DeliveryPolicy{
		MaxAttempts:    3,
		AttemptTimeout: 10 * time.Second,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     10 * time.Second,
		Multiplier:     2,
	}
}

func (p DeliveryPolicy) normalize() DeliveryPolicy {
	defaults := DefaultDeliveryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaults.MaxAttempts
	}
	if p.AttemptTimeout <= 0 {
		p.AttemptTimeout = defaults.AttemptTimeout
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaults.InitialBackoff
	}
	if p.MaxBackoff < p.InitialBackoff {
		p.MaxBackoff = p.InitialBackoff
	}
	if p.Multiplier < 1 {
		p.Multiplier = defaults.Multiplier
	}
	return p
}

func (p DeliveryPolicy) backOff(ctx context.Context) backoff.BackOffContext {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	b.MaxInterval = p.MaxBackoff
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = 0.2
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// WebhookTransport sends webhook requests. *http.Client satisfies it.
type WebhookTransport interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookPayload is the JSON body POSTed to a developer's webhook.
type WebhookPayload struct {
	SubmissionID  string   `json:"submission_id"`
	FormSchemaID  string   `json:"form_schema_id"`
	EncryptedData string   `json:"encrypted_data"`
	EncryptedKey  string   `json:"encrypted_key"`
	Metadata      Metadata `json:"metadata"`
	CreatedAt     string   `json:"created_at"`
}

// NewWebhookPayload builds the delivery body for sub.
func NewWebhookPayload(sub *FormSubmission) WebhookPayload {
	return WebhookPayload{
		SubmissionID:  sub.ID,
		FormSchemaID:  sub.FormSchemaID,
		EncryptedData: sub.EncryptedData,
		EncryptedKey:  sub.EncryptedKey,
		Metadata:      sub.Metadata,
		CreatedAt:     sub.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// DeliveryOutcome summarises a delivery. Reason holds the last attempt's
// error when Delivered is false.
type DeliveryOutcome struct {
	Delivered  bool
	Attempts   int
	StatusCode int
	Reason     string
	Cancelled  bool
}

// Err returns nil for a successful delivery and an error matching
// ErrDeliveryFailed otherwise.
func (o DeliveryOutcome) Err() error {
	if o.Delivered {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDeliveryFailed, o.Reason)
}

// Deliverer delivers a submission to a webhook URL.
type Deliverer interface {
	Deliver(ctx context.Context, sub *FormSubmission, url string) DeliveryOutcome
}

// WebhookDeliverer POSTs submissions and retries with exponential backoff.
type WebhookDeliverer struct {
	transport WebhookTransport
	policy    DeliveryPolicy
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// NewWebhookDeliverer builds a deliverer. A nil transport uses a plain
// *http.Client; per-attempt timeouts come from the policy. metrics and
// logger may be nil.
func NewWebhookDeliverer(transport WebhookTransport, policy DeliveryPolicy, metrics *observability.Metrics, logger *slog.Logger) *WebhookDeliverer {
	if transport == nil {
		transport = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookDeliverer{
		transport: transport,
		policy:    policy.normalize(),
		metrics:   metrics,
		logger:    logger,
	}
}

// Policy returns the effective retry policy.
func (d *WebhookDeliverer) Policy() DeliveryPolicy { return d.policy }

// Deliver attempts delivery up to MaxAttempts times. Attempts run
// sequentially; cancelling ctx aborts the current attempt or backoff wait
// and yields an outcome with Cancelled set.
func (d *WebhookDeliverer) Deliver(ctx context.Context, sub *FormSubmission, url string) DeliveryOutcome {
	started := time.Now()
	outcome := DeliveryOutcome{}

	body, err := json.Marshal(NewWebhookPayload(sub))
	if err != nil {
		outcome.Reason = fmt.Sprintf("encode payload: %v", err)
		return outcome
	}

	operation := func() error {
		outcome.Attempts++
		status, err := d.attempt(ctx, sub.ID, url, body, outcome.Attempts)
		outcome.StatusCode = status
		if err != nil {
			outcome.Reason = err.Error()
			d.logger.Warn("submission: webhook attempt failed",
				"submission_id", sub.ID,
				"attempt", outcome.Attempts,
				"max_attempts", d.policy.MaxAttempts,
				"error", outcome.Reason)
		}
		return err
	}

	err = backoff.Retry(operation, d.policy.backOff(ctx))
	switch {
	case err == nil:
		outcome.Delivered = true
		outcome.Reason = ""
	case ctx.Err() != nil:
		outcome.Cancelled = true
		if outcome.Reason == "" {
			outcome.Reason = ctx.Err().Error()
		}
	}

	d.metrics.DeliveryFinished(outcome.Delivered, time.Since(started))
	return outcome
}

func (d *WebhookDeliverer) attempt(ctx context.Context, submissionID, url string, body []byte, attempt int) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, d.policy.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		d.metrics.WebhookAttempt("invalid_request")
		return 0, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSubmissionID, submissionID)
	req.Header.Set(HeaderDeliveryAttempt, strconv.Itoa(attempt))

	resp, err := d.transport.Do(req)
	if err != nil {
		if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			d.metrics.WebhookAttempt("timeout")
			return 0, fmt.Errorf("timeout after %s: %w", d.policy.AttemptTimeout, err)
		}
		d.metrics.WebhookAttempt("error")
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		d.metrics.WebhookAttempt("status")
		return resp.StatusCode, fmt.Errorf("status code %d", resp.StatusCode)
	}
	d.metrics.WebhookAttempt("success")
	return resp.StatusCode, nil
}
