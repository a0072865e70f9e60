package developer

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no developer has the requested id.
	ErrNotFound = errors.New("developer: not found")
	// ErrEmailTaken is returned when another developer already uses the email.
	ErrEmailTaken = errors.New("developer: email already registered")
	// ErrInactive is returned when resolving the key of a deactivated developer.
	ErrInactive = errors.New("developer: inactive")
)

// Repository defines the persistence contract for developers.
type Repository interface {
	List(ctx context.Context, search string) ([]Developer, error)
	Create(ctx context.Context, entity *Developer) error
	Find(ctx context.Context, id string) (*Developer, error)
	Update(ctx context.Context, id string, updates map[string]any) (*Developer, error)
	Delete(ctx context.Context, id string) error
}

// GormRepository persists developers via GORM.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new developer repository.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// List returns developers optionally filtered by a name or email search.
func (r *GormRepository) List(ctx context.Context, search string) ([]Developer, error) {
	query := r.db.WithContext(ctx).Model(&Developer{}).Order("created_at DESC")
	if search != "" {
		like := "%" + search + "%"
		query = query.Where("LOWER(name) LIKE LOWER(?) OR LOWER(email) LIKE LOWER(?)", like, like)
	}

	var developers []Developer
	if err := query.Find(&developers).Error; err != nil {
		return nil, err
	}
	return developers, nil
}

// Create persists a new developer.
func (r *GormRepository) Create(ctx context.Context, entity *Developer) error {
	return mapError(r.db.WithContext(ctx).Create(entity).Error)
}

// Find returns a developer by id.
func (r *GormRepository) Find(ctx context.Context, id string) (*Developer, error) {
	var entity Developer
	if err := r.db.WithContext(ctx).First(&entity, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &entity, nil
}

// Update applies changes to an existing developer.
func (r *GormRepository) Update(ctx context.Context, id string, updates map[string]any) (*Developer, error) {
	var entity Developer
	tx := r.db.WithContext(ctx)
	if err := tx.First(&entity, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}

	if err := tx.Model(&entity).Updates(updates).Error; err != nil {
		return nil, mapError(err)
	}

	var reloaded Developer
	if err := tx.First(&reloaded, "id = ?", id).Error; err != nil {
		return nil, mapError(err)
	}
	return &reloaded, nil
}

// Delete removes a developer.
func (r *GormRepository) Delete(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Delete(&Developer{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// PublicKey returns the registered key of an active developer.
func (r *GormRepository) PublicKey(ctx context.Context, id string) (string, error) {
	entity, err := r.Find(ctx, id)
	if err != nil {
		return "", err
	}
	if !entity.Active {
		return "", fmt.Errorf("%w: %s", ErrInactive, id)
	}
	return entity.PublicKey, nil
}

func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrEmailTaken
	default:
		return err
	}
}
