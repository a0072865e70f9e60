package form

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/formvault/formvault/libs/shared/cache"
)

// CachedRepository serves Get from a cache and invalidates entries on
// writes. Cache failures fall through to the wrapped repository.
type CachedRepository struct {
	Repository
	cache  cache.Cache
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedRepository decorates repo with a read-through cache.
func NewCachedRepository(repo Repository, c cache.Cache, ttl time.Duration, logger *slog.Logger) *CachedRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedRepository{Repository: repo, cache: c, ttl: ttl, logger: logger}
}

func cacheKey(id string) string { return "schema:" + id }

// Get returns the cached schema or loads and caches it.
func (r *CachedRepository) Get(ctx context.Context, id string) (*Schema, error) {
	raw, err := r.cache.Get(ctx, cacheKey(id))
	switch {
	case err == nil:
		var schema Schema
		if jsonErr := json.Unmarshal(raw, &schema); jsonErr == nil {
			return &schema, nil
		}
		r.logger.Warn("form: dropping undecodable cache entry", "schema_id", id)
	case !errors.Is(err, cache.ErrMiss):
		r.logger.Warn("form: cache read failed", "schema_id", id, "error", err)
	}

	schema, err := r.Repository.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r.store(ctx, schema)
	return schema, nil
}

// UpdateFields updates the schema and invalidates its cache entry.
func (r *CachedRepository) UpdateFields(ctx context.Context, id string, fields []FieldDefinition) (*Schema, error) {
	schema, err := r.Repository.UpdateFields(ctx, id, fields)
	r.invalidate(ctx, id)
	return schema, err
}

// UpdateWebhook updates the schema and invalidates its cache entry.
func (r *CachedRepository) UpdateWebhook(ctx context.Context, id string, webhookURL *string) (*Schema, error) {
	schema, err := r.Repository.UpdateWebhook(ctx, id, webhookURL)
	r.invalidate(ctx, id)
	return schema, err
}

// Delete removes the schema and its cache entry.
func (r *CachedRepository) Delete(ctx context.Context, id string) error {
	err := r.Repository.Delete(ctx, id)
	r.invalidate(ctx, id)
	return err
}

func (r *CachedRepository) store(ctx context.Context, schema *Schema) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return
	}
	if err := r.cache.Set(ctx, cacheKey(schema.ID), raw, r.ttl); err != nil {
		r.logger.Warn("form: cache write failed", "schema_id", schema.ID, "error", err)
	}
}

func (r *CachedRepository) invalidate(ctx context.Context, id string) {
	if err := r.cache.Delete(ctx, cacheKey(id)); err != nil {
		r.logger.Warn("form: cache invalidation failed", "schema_id", id, "error", err)
	}
}
