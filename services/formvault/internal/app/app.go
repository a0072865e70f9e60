// Package app wires the FormVault components shared by the API and worker
// binaries.
package app

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/formvault/formvault/libs/components/developer"
	"github.com/formvault/formvault/libs/components/envelope"
	"github.com/formvault/formvault/libs/components/form"
	"github.com/formvault/formvault/libs/components/submission"
	"github.com/formvault/formvault/libs/shared/cache"
	"github.com/formvault/formvault/libs/shared/config"
	"github.com/formvault/formvault/libs/shared/mq"
	"github.com/formvault/formvault/libs/shared/observability"
)

// Components holds the wired repositories and the submission pipeline.
type Components struct {
	Developers *developer.GormRepository
	Schemas    form.Repository
	Store      *submission.GormStore
	Pipeline   *submission.Pipeline
	Metrics    *observability.Metrics

	// Queue is nil when Kafka is not configured.
	Queue *submission.RedeliveryQueue

	logger  *slog.Logger
	closers []io.Closer
}

// Migrate creates or updates the tables owned by FormVault.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(&developer.Developer{}, &form.Schema{}, &submission.Record{})
}

// DeliveryPolicy maps the webhook settings onto a retry policy.
func DeliveryPolicy(cfg config.WebhookConfig) submission.DeliveryPolicy {
	return submission.DeliveryPolicy{
		MaxAttempts:    cfg.MaxAttempts,
		AttemptTimeout: cfg.Timeout,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Multiplier:     cfg.BackoffMultiplier,
	}
}

// Build assembles the components. Redis and Kafka are optional: a Redis
// connection failure falls back to uncached schema reads, while a Kafka
// misconfiguration is an error.
func Build(ctx context.Context, cfg *config.AppConfig, db *gorm.DB, reg prometheus.Registerer, logger *slog.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Components{
		Developers: developer.NewGormRepository(db),
		Store:      submission.NewGormStore(db),
		Metrics:    observability.NewMetrics(reg),
		logger:     logger,
	}

	var schemas form.Repository = form.NewGormRepository(db)
	if cfg.RedisEnabled() {
		rdb, err := cache.NewRedis(ctx, cache.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.ServiceName + ":",
		})
		if err != nil {
			logger.Warn("schema cache disabled", "addr", cfg.RedisAddr, "error", err)
		} else {
			c.closers = append(c.closers, rdb)
			schemas = form.NewCachedRepository(schemas, rdb, cfg.SchemaCacheTTL, logger)
		}
	}
	c.Schemas = schemas

	opts := []submission.PipelineOption{
		submission.WithSchemas(schemas),
		submission.WithMetrics(c.Metrics),
		submission.WithLogger(logger),
	}

	if cfg.KafkaEnabled() {
		events, err := mq.NewProducer(mq.ProducerConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.EventsTopic,
			ClientID: cfg.KafkaClientID,
		})
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.closers = append(c.closers, events)
		opts = append(opts, submission.WithEvents(submission.NewKafkaEventPublisher(events)))

		redeliveries, err := mq.NewProducer(mq.ProducerConfig{
			Brokers:  cfg.KafkaBrokers,
			Topic:    cfg.RedeliveryTopic,
			ClientID: cfg.KafkaClientID,
		})
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.closers = append(c.closers, redeliveries)
		c.Queue = submission.NewRedeliveryQueue(redeliveries)
	}

	deliverer := submission.NewWebhookDeliverer(nil, DeliveryPolicy(cfg.Webhook), c.Metrics, logger)
	c.Pipeline = submission.NewPipeline(c.Store, envelope.NewEncryptor(), deliverer, opts...)
	return c, nil
}

// Mount registers every HTTP route on router. gatherer backs /metrics.
func (c *Components) Mount(router chi.Router, gatherer prometheus.Gatherer) {
	var queue submission.Enqueuer
	if c.Queue != nil {
		queue = c.Queue
	}

	forms := form.NewHandler(c.Schemas, c.Developers)
	submissions := submission.NewHandler(c.Pipeline, c.Store, c.Schemas, queue, c.logger)

	developer.NewHandler(c.Developers).Mount(router, "/api/developers")
	router.Route("/api/forms", func(r chi.Router) {
		forms.Routes(r)
		submissions.FormRoutes(r)
	})
	submissions.Mount(router, "/api/submissions")
	observability.RegisterMetricsEndpoint(router, gatherer)
}

// Close releases cache and broker connections.
func (c *Components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
