package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/formvault/formvault/libs/components/envelope"
	"github.com/formvault/formvault/libs/components/form"
	"github.com/formvault/formvault/libs/shared/observability"
)

// Sealer encrypts validated data to a developer's public key.
type Sealer interface {
	Seal(data map[string]string, publicKey string) (envelope.Envelope, error)
}

// SchemaRepository loads schemas by id. Unknown ids yield an error matching
// form.ErrSchemaNotFound.
type SchemaRepository interface {
	Get(ctx context.Context, id string) (*form.Schema, error)
}

// Pipeline validates, seals, stores and delivers submissions.
type Pipeline struct {
	store     SubmissionStore
	sealer    Sealer
	deliverer Deliverer
	schemas   SchemaRepository
	events    EventPublisher
	metrics   *observability.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// PipelineOption customizes a Pipeline.
type PipelineOption func(*Pipeline)

// WithSchemas enables Redeliver and Archive lookups.
func WithSchemas(repo SchemaRepository) PipelineOption {
	return func(p *Pipeline) { p.schemas = repo }
}

// WithEvents publishes lifecycle events. Publish failures are logged only.
func WithEvents(events EventPublisher) PipelineOption {
	return func(p *Pipeline) { p.events = events }
}

func WithMetrics(m *observability.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

func WithLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPipeline assembles a pipeline around its collaborators.
func NewPipeline(store SubmissionStore, sealer Sealer, deliverer Deliverer, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		store:     store,
		sealer:    sealer,
		deliverer: deliverer,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs one submission through validation, encryption, storage and,
// when the schema has a webhook, delivery. Validation, encryption and the
// initial save abort with ErrValidationFailed, ErrEncryptionFailed or
// ErrPersistenceFailed. A failed delivery is recorded on the returned
// submission and is not an error. Without a webhook the submission stays
// StatusNew.
func (p *Pipeline) Process(ctx context.Context, schema *form.Schema, data map[string]string, metadata Metadata) (*FormSubmission, error) {
	if err := form.Validate(schema, data); err != nil {
		p.metrics.SubmissionProcessed("invalid")
		return nil, fmt.Errorf("%w: %w", ErrValidationFailed, err)
	}

	sealed, err := p.sealer.Seal(data, schema.PublicKey)
	if err != nil {
		p.metrics.SubmissionProcessed("encryption_failed")
		p.logger.Error("submission: encryption failed", "form_schema_id", schema.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrEncryptionFailed, err)
	}

	sub := NewFormSubmission(schema.ID, sealed, metadata, p.now())
	if err := p.store.Save(ctx, sub); err != nil {
		p.metrics.SubmissionProcessed("persistence_failed")
		p.logger.Error("submission: save failed", "form_schema_id", schema.ID, "error", err)
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	p.publish(ctx, EventCreated, sub, "")
	p.logger.Info("submission: stored", "submission_id", sub.ID, "form_schema_id", schema.ID)

	webhook := schema.Webhook()
	if webhook == "" {
		p.metrics.SubmissionProcessed("stored")
		return sub, nil
	}

	if err := p.deliver(ctx, sub, webhook); err != nil {
		return nil, err
	}
	return sub, nil
}

// Redeliver retries webhook delivery for a stored submission in New or
// Failed state.
func (p *Pipeline) Redeliver(ctx context.Context, id string) (*FormSubmission, error) {
	if p.schemas == nil {
		return nil, errors.New("submission: redelivery requires a schema repository")
	}

	sub, err := p.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	schema, err := p.schemas.Get(ctx, sub.FormSchemaID)
	if err != nil {
		return nil, fmt.Errorf("load schema %s: %w", sub.FormSchemaID, err)
	}
	webhook := schema.Webhook()
	if webhook == "" {
		return nil, ErrNoWebhook
	}

	if err := p.deliver(ctx, sub, webhook); err != nil {
		return nil, err
	}
	return sub, nil
}

// Archive moves a Delivered or Failed submission to Archived and persists it.
func (p *Pipeline) Archive(ctx context.Context, id string) (*FormSubmission, error) {
	sub, err := p.store.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := sub.Status()
	if err := sub.Archive(); err != nil {
		return nil, err
	}
	if err := p.store.UpdateStatus(ctx, sub); err != nil {
		p.metrics.StatusUpdateFailed()
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailed, err)
	}
	p.publish(ctx, EventStatusChanged, sub, previous)
	return sub, nil
}

// deliver drives sub through Processing to Delivered or Failed. Status
// writes are best effort. When ctx is cancelled mid-delivery the
// submission is left in Processing and nothing further is written. Once
// the webhook has answered, the final status is written even if ctx has
// since been cancelled.
func (p *Pipeline) deliver(ctx context.Context, sub *FormSubmission, webhook string) error {
	previous := sub.Status()
	if err := sub.MarkProcessing(); err != nil {
		return err
	}
	p.persistStatus(ctx, sub, previous)

	outcome := p.deliverer.Deliver(ctx, sub, webhook)
	if outcome.Cancelled {
		p.metrics.SubmissionProcessed("cancelled")
		p.logger.Warn("submission: delivery cancelled", "submission_id", sub.ID, "attempts", outcome.Attempts)
		return nil
	}

	if outcome.Delivered {
		if err := sub.MarkDelivered(); err != nil {
			return err
		}
		p.metrics.SubmissionProcessed("delivered")
	} else {
		if err := sub.MarkFailed(outcome.Reason); err != nil {
			return err
		}
		p.metrics.SubmissionProcessed("delivery_failed")
		p.logger.Warn("submission: delivery failed",
			"submission_id", sub.ID,
			"attempts", outcome.Attempts,
			"error", outcome.Err())
	}
	p.persistStatus(context.WithoutCancel(ctx), sub, StatusProcessing)
	return nil
}

func (p *Pipeline) persistStatus(ctx context.Context, sub *FormSubmission, previous Status) {
	if err := p.store.UpdateStatus(ctx, sub); err != nil {
		p.metrics.StatusUpdateFailed()
		p.logger.Error("submission: status update failed",
			"submission_id", sub.ID,
			"status", sub.Status(),
			"error", err)
		return
	}
	p.publish(ctx, EventStatusChanged, sub, previous)
}

func (p *Pipeline) publish(ctx context.Context, kind string, sub *FormSubmission, previous Status) {
	if p.events == nil {
		return
	}
	if err := p.events.Publish(ctx, newEvent(kind, sub, previous, p.now())); err != nil {
		p.logger.Warn("submission: event publish failed", "submission_id", sub.ID, "event", kind, "error", err)
	}
}
