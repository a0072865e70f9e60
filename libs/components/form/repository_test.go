package form

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/formvault/formvault/libs/shared/cache"
	"github.com/formvault/formvault/libs/shared/database/databasetest"
	"github.com/formvault/formvault/libs/shared/logging"
)

func newRepo(t *testing.T) *GormRepository {
	t.Helper()
	return NewGormRepository(databasetest.SQLite(t, &Schema{}))
}

func TestGormRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	schema := ContactSchema("11111111-1111-1111-1111-111111111111", "age1key")
	require.NoError(t, repo.Create(ctx, schema))
	require.NotEmpty(t, schema.ID)

	loaded, err := repo.Get(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, "Contact Form", loaded.Name)
	require.Len(t, loaded.Fields, 3)
	assert.Equal(t, Text(2000), loaded.Fields[2].Type)

	url := "https://example.com/hook"
	updated, err := repo.UpdateWebhook(ctx, schema.ID, &url)
	require.NoError(t, err)
	assert.Equal(t, url, updated.Webhook())

	updated, err = repo.UpdateFields(ctx, schema.ID, []FieldDefinition{{ID: "email", Name: "Email", Type: Email(), Required: true}})
	require.NoError(t, err)
	assert.Len(t, updated.Fields, 1)

	updated, err = repo.UpdateWebhook(ctx, schema.ID, nil)
	require.NoError(t, err)
	assert.Nil(t, updated.WebhookURL)

	list, err := repo.List(ctx, "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = repo.List(ctx, "22222222-2222-2222-2222-222222222222")
	require.NoError(t, err)
	assert.Empty(t, list)

	require.NoError(t, repo.Delete(ctx, schema.ID))
	_, err = repo.Get(ctx, schema.ID)
	assert.ErrorIs(t, err, ErrSchemaNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, schema.ID), ErrSchemaNotFound)
}

func TestGormRepositoryRejectsInvalidSchemas(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	err := repo.Create(ctx, schemaWith(
		FieldDefinition{ID: "a", Name: "A", Type: Email()},
		FieldDefinition{ID: "a", Name: "A", Type: Email()},
	))
	var invalid *InvalidSchemaError
	assert.True(t, errors.As(err, &invalid))

	schema := ContactSchema("dev", "age1key")
	require.NoError(t, repo.Create(ctx, schema))
	_, err = repo.UpdateFields(ctx, schema.ID, []FieldDefinition{{ID: "x", Name: "X", Type: FieldType{Kind: "bogus"}}})
	assert.True(t, errors.As(err, &invalid))

	_, err = repo.UpdateFields(ctx, "missing", nil)
	assert.True(t, IsNotFound(err))
}

type memoryCache struct {
	entries map[string][]byte
	gets    int
	failGet error
}

func newMemoryCache() *memoryCache { return &memoryCache{entries: map[string][]byte{}} }

func (m *memoryCache) Get(_ context.Context, key string) ([]byte, error) {
	m.gets++
	if m.failGet != nil {
		return nil, m.failGet
	}
	value, ok := m.entries[key]
	if !ok {
		return nil, cache.ErrMiss
	}
	return value, nil
}

func (m *memoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	m.entries[key] = value
	return nil
}

func (m *memoryCache) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.entries, key)
	}
	return nil
}

func TestCachedRepositoryReadThrough(t *testing.T) {
	ctx := context.Background()
	base := newRepo(t)
	mem := newMemoryCache()
	repo := NewCachedRepository(base, mem, time.Minute, logging.Discard())

	schema := NewsletterSchema("dev", "age1key")
	require.NoError(t, repo.Create(ctx, schema))

	first, err := repo.Get(ctx, schema.ID)
	require.NoError(t, err)
	assert.Contains(t, mem.entries, "schema:"+schema.ID)

	// Removing the row proves the second read is served from the cache.
	require.NoError(t, base.Delete(ctx, schema.ID))
	second, err := repo.Get(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, first.Name, second.Name)
	assert.Equal(t, first.Fields, second.Fields)
}

func TestCachedRepositoryInvalidatesOnWrite(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCache()
	repo := NewCachedRepository(newRepo(t), mem, time.Minute, logging.Discard())

	schema := NewsletterSchema("dev", "age1key")
	require.NoError(t, repo.Create(ctx, schema))
	_, err := repo.Get(ctx, schema.ID)
	require.NoError(t, err)

	url := "https://example.com/hook"
	_, err = repo.UpdateWebhook(ctx, schema.ID, &url)
	require.NoError(t, err)
	assert.NotContains(t, mem.entries, "schema:"+schema.ID)

	loaded, err := repo.Get(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, url, loaded.Webhook())

	require.NoError(t, repo.Delete(ctx, schema.ID))
	_, err = repo.Get(ctx, schema.ID)
	assert.ErrorIs(t, err, ErrSchemaNotFound)
}

func TestCachedRepositoryFallsBackOnCacheErrors(t *testing.T) {
	ctx := context.Background()
	mem := newMemoryCache()
	mem.failGet = errors.New("connection refused")
	repo := NewCachedRepository(newRepo(t), mem, time.Minute, logging.Discard())

	schema := NewsletterSchema("dev", "age1key")
	require.NoError(t, repo.Create(ctx, schema))

	loaded, err := repo.Get(ctx, schema.ID)
	require.NoError(t, err)
	assert.Equal(t, schema.ID, loaded.ID)
}
