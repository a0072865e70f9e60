package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// ListOptions pages and filters FindBySchema results. From and To bound
// the creation time inclusively when set.
type ListOptions struct {
	Limit  int
	Offset int
	From   *time.Time
	To     *time.Time
}

func (o ListOptions) normalize() ListOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// StatusCounts aggregates submissions by status.
type StatusCounts struct {
	New                     int64 `json:"new"`
	Processing              int64 `json:"processing"`
	Delivered               int64 `json:"delivered"`
	Failed                  int64 `json:"failed"`
	Archived                int64 `json:"archived"`
	OldestProcessingSeconds int   `json:"oldestProcessingSeconds"`
}

// SubmissionStore persists submissions.
type SubmissionStore interface {
	Save(ctx context.Context, sub *FormSubmission) error
	UpdateStatus(ctx context.Context, sub *FormSubmission) error
	FindByID(ctx context.Context, id string) (*FormSubmission, error)
	FindBySchema(ctx context.Context, schemaID string, opts ListOptions) ([]*FormSubmission, error)
	CountBySchema(ctx context.Context, schemaID string) (int64, error)
	StatusCounts(ctx context.Context) (StatusCounts, error)
}

// Record is the database row for a submission.
type Record struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	FormSchemaID  string    `gorm:"type:uuid;not null;index"`
	EncryptedData string    `gorm:"type:text;not null"`
	EncryptedKey  string    `gorm:"type:text;not null"`
	IPAddress     string    `gorm:"size:64"`
	UserAgent     string    `gorm:"size:512"`
	Referrer      string    `gorm:"size:2048"`
	Country       string    `gorm:"size:8"`
	Status        string    `gorm:"not null;index"`
	FailureReason *string   `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"index"`
	UpdatedAt     time.Time
}

// TableName pins the table name.
func (Record) TableName() string { return "form_submissions" }

func toRecord(sub *FormSubmission) Record {
	snap := sub.Snapshot()
	return Record{
		ID:            snap.ID,
		FormSchemaID:  snap.FormSchemaID,
		EncryptedData: snap.EncryptedData,
		EncryptedKey:  snap.EncryptedKey,
		IPAddress:     snap.Metadata.IPAddress,
		UserAgent:     snap.Metadata.UserAgent,
		Referrer:      snap.Metadata.Referrer,
		Country:       snap.Metadata.Country,
		Status:        string(snap.Status),
		FailureReason: snap.FailureReason,
		CreatedAt:     snap.CreatedAt,
	}
}

func (r Record) toSubmission() (*FormSubmission, error) {
	return RestoreFormSubmission(Snapshot{
		ID:            r.ID,
		FormSchemaID:  r.FormSchemaID,
		EncryptedData: r.EncryptedData,
		EncryptedKey:  r.EncryptedKey,
		Metadata: Metadata{
			IPAddress: r.IPAddress,
			UserAgent: r.UserAgent,
			Referrer:  r.Referrer,
			Country:   r.Country,
		},
		CreatedAt:     r.CreatedAt,
		Status:        Status(r.Status),
		FailureReason: r.FailureReason,
	})
}

// GormStore persists submissions via GORM.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore constructs a store backed by the provided DB connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Save inserts a new submission. Nothing is written when it fails.
func (s *GormStore) Save(ctx context.Context, sub *FormSubmission) error {
	record := toRecord(sub)
	return s.db.WithContext(ctx).Create(&record).Error
}

// UpdateStatus writes the submission's status and failure reason.
func (s *GormStore) UpdateStatus(ctx context.Context, sub *FormSubmission) error {
	result := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("id = ?", sub.ID).
		Updates(map[string]any{
			"status":         string(sub.Status()),
			"failure_reason": sub.FailureReason(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrSubmissionNotFound, sub.ID)
	}
	return nil
}

// FindByID locates a submission by primary key.
func (s *GormStore) FindByID(ctx context.Context, id string) (*FormSubmission, error) {
	var record Record
	if err := s.db.WithContext(ctx).First(&record, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
		}
		return nil, err
	}
	return record.toSubmission()
}

// FindBySchema lists a schema's submissions, newest first.
func (s *GormStore) FindBySchema(ctx context.Context, schemaID string, opts ListOptions) ([]*FormSubmission, error) {
	opts = opts.normalize()
	query := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("form_schema_id = ?", schemaID).
		Order("created_at DESC").
		Limit(opts.Limit).
		Offset(opts.Offset)
	if opts.From != nil {
		query = query.Where("created_at >= ?", opts.From.UTC())
	}
	if opts.To != nil {
		query = query.Where("created_at <= ?", opts.To.UTC())
	}

	var records []Record
	if err := query.Find(&records).Error; err != nil {
		return nil, err
	}

	out := make([]*FormSubmission, 0, len(records))
	for _, record := range records {
		sub, err := record.toSubmission()
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, nil
}

// CountBySchema returns the number of submissions for a schema.
func (s *GormStore) CountBySchema(ctx context.Context, schemaID string) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Model(&Record{}).Where("form_schema_id = ?", schemaID).Count(&total).Error
	return total, err
}

// StatusCounts aggregates submission counts and the age of the oldest
// submission still in Processing.
func (s *GormStore) StatusCounts(ctx context.Context) (StatusCounts, error) {
	counts := StatusCounts{}

	type result struct {
		Status string
		Total  int64
	}

	var rows []result
	if err := s.db.WithContext(ctx).
		Model(&Record{}).
		Select("status, COUNT(*) as total").
		Group("status").
		Find(&rows).Error; err != nil {
		return counts, err
	}

	for _, row := range rows {
		switch Status(row.Status) {
		case StatusNew:
			counts.New = row.Total
		case StatusProcessing:
			counts.Processing = row.Total
		case StatusDelivered:
			counts.Delivered = row.Total
		case StatusFailed:
			counts.Failed = row.Total
		case StatusArchived:
			counts.Archived = row.Total
		}
	}

	var oldest Record
	err := s.db.WithContext(ctx).
		Model(&Record{}).
		Where("status = ?", string(StatusProcessing)).
		Order("created_at ASC").
		Limit(1).
		Find(&oldest).Error
	if err != nil {
		return counts, err
	}

	if !oldest.CreatedAt.IsZero() {
		wait := time.Since(oldest.CreatedAt)
		if wait < 0 {
			wait = 0
		}
		counts.OldestProcessingSeconds = int(wait.Seconds())
	}
	return counts, nil
}
