package form

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ErrSchemaNotFound is returned when no schema has the requested id.
var ErrSchemaNotFound = errors.New("form: schema not found")

// Repository defines the persistence contract for form schemas.
type Repository interface {
	List(ctx context.Context, developerID string) ([]Schema, error)
	Create(ctx context.Context, schema *Schema) error
	Get(ctx context.Context, id string) (*Schema, error)
	UpdateFields(ctx context.Context, id string, fields []FieldDefinition) (*Schema, error)
	UpdateWebhook(ctx context.Context, id string, webhookURL *string) (*Schema, error)
	Delete(ctx context.Context, id string) error
}

// GormRepository provides a relational-backed implementation of Repository.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository constructs a repository from a database connection.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// List returns schemas, newest first, optionally filtered by developer.
func (r *GormRepository) List(ctx context.Context, developerID string) ([]Schema, error) {
	query := r.db.WithContext(ctx).Model(&Schema{}).Order("created_at DESC")
	if developerID = strings.TrimSpace(developerID); developerID != "" {
		query = query.Where("developer_id = ?", developerID)
	}

	var schemas []Schema
	if err := query.Find(&schemas).Error; err != nil {
		return nil, err
	}
	return schemas, nil
}

// Create validates and persists a new schema.
func (r *GormRepository) Create(ctx context.Context, schema *Schema) error {
	if err := schema.Validate(); err != nil {
		return &InvalidSchemaError{Err: err}
	}
	return r.db.WithContext(ctx).Create(schema).Error
}

// Get returns a schema by id.
func (r *GormRepository) Get(ctx context.Context, id string) (*Schema, error) {
	var entity Schema
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &entity, nil
}

// UpdateFields replaces the field list of a schema.
func (r *GormRepository) UpdateFields(ctx context.Context, id string, fields []FieldDefinition) (*Schema, error) {
	if err := validateFields(fields); err != nil {
		return nil, &InvalidSchemaError{Err: err}
	}
	return r.update(ctx, id, map[string]any{"fields": datatypes.JSONSlice[FieldDefinition](fields)})
}

// UpdateWebhook sets or clears the webhook URL.
func (r *GormRepository) UpdateWebhook(ctx context.Context, id string, webhookURL *string) (*Schema, error) {
	return r.update(ctx, id, map[string]any{"webhook_url": webhookURL})
}

func (r *GormRepository) update(ctx context.Context, id string, updates map[string]any) (*Schema, error) {
	var entity Schema
	tx := r.db.WithContext(ctx)
	if err := tx.First(&entity, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}

	if err := tx.Model(&entity).Updates(updates).Error; err != nil {
		return nil, err
	}

	var reloaded Schema
	if err := tx.First(&reloaded, "id = ?", id).Error; err != nil {
		return nil, mapNotFound(err)
	}
	return &reloaded, nil
}

// Delete removes a schema by id.
func (r *GormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&Schema{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrSchemaNotFound
	}
	return nil
}

// InvalidSchemaError wraps a schema definition problem.
type InvalidSchemaError struct {
	Err error
}

func (e *InvalidSchemaError) Error() string { return fmt.Sprintf("invalid schema: %v", e.Err) }

func (e *InvalidSchemaError) Unwrap() error { return e.Err }

// IsNotFound reports whether an error indicates a missing schema.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSchemaNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func mapNotFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrSchemaNotFound
	}
	return err
}
