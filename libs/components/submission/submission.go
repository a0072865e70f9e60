package submission

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/formvault/formvault/libs/components/envelope"
)

// Status is the lifecycle state of a submission.
type Status string

const (
	StatusNew        Status = "new"
	StatusProcessing Status = "processing"
	StatusDelivered  Status = "delivered"
	StatusFailed     Status = "failed"
	StatusArchived   Status = "archived"
)

// ParseStatus maps a stored status string to a Status.
func ParseStatus(raw string) (Status, error) {
	switch status := Status(strings.ToLower(strings.TrimSpace(raw))); status {
	case StatusNew, StatusProcessing, StatusDelivered, StatusFailed, StatusArchived:
		return status, nil
	default:
		return "", fmt.Errorf("submission: unknown status %q", raw)
	}
}

// Metadata is non-sensitive request context captured with a submission.
// Empty values are omitted on the wire.
type Metadata struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
	Referrer  string `json:"referrer,omitempty"`
	Country   string `json:"country,omitempty"`
}

// FormSubmission is one sealed submission. Status and failure reason change
// only through the lifecycle methods.
type FormSubmission struct {
	ID            string
	FormSchemaID  string
	EncryptedData string
	EncryptedKey  string
	Metadata      Metadata
	CreatedAt     time.Time

	status        Status
	failureReason *string
}

// NewFormSubmission creates a submission in StatusNew with a fresh id.
func NewFormSubmission(schemaID string, sealed envelope.Envelope, metadata Metadata, createdAt time.Time) *FormSubmission {
	return &FormSubmission{
		ID:            uuid.NewString(),
		FormSchemaID:  schemaID,
		EncryptedData: sealed.EncryptedData,
		EncryptedKey:  sealed.EncryptedKey,
		Metadata:      metadata,
		CreatedAt:     createdAt.UTC(),
		status:        StatusNew,
	}
}

// Snapshot is the full persisted state of a submission.
type Snapshot struct {
	ID            string
	FormSchemaID  string
	EncryptedData string
	EncryptedKey  string
	Metadata      Metadata
	CreatedAt     time.Time
	Status        Status
	FailureReason *string
}

// RestoreFormSubmission rehydrates a stored submission. Snapshots with a
// failure reason on a non-failed status, or a failed status without one,
// are rejected.
func RestoreFormSubmission(s Snapshot) (*FormSubmission, error) {
	if strings.TrimSpace(s.ID) == "" {
		return nil, errors.New("submission: id is required")
	}
	if s.EncryptedData == "" || s.EncryptedKey == "" {
		return nil, fmt.Errorf("submission %s: encrypted payload is incomplete", s.ID)
	}
	status, err := ParseStatus(string(s.Status))
	if err != nil {
		return nil, err
	}
	if (status == StatusFailed) != (s.FailureReason != nil) {
		return nil, fmt.Errorf("submission %s: failure reason does not match status %s", s.ID, status)
	}

	sub := &FormSubmission{
		ID:            s.ID,
		FormSchemaID:  s.FormSchemaID,
		EncryptedData: s.EncryptedData,
		EncryptedKey:  s.EncryptedKey,
		Metadata:      s.Metadata,
		CreatedAt:     s.CreatedAt,
		status:        status,
	}
	if s.FailureReason != nil {
		reason := *s.FailureReason
		sub.failureReason = &reason
	}
	return sub, nil
}

// Snapshot returns a copy of the submission's state.
func (s *FormSubmission) Snapshot() Snapshot {
	return Snapshot{
		ID:            s.ID,
		FormSchemaID:  s.FormSchemaID,
		EncryptedData: s.EncryptedData,
		EncryptedKey:  s.EncryptedKey,
		Metadata:      s.Metadata,
		CreatedAt:     s.CreatedAt,
		Status:        s.status,
		FailureReason: s.FailureReason(),
	}
}

// Status returns the current lifecycle state.
func (s *FormSubmission) Status() Status { return s.status }

// FailureReason returns a copy of the failure reason. It is non-nil exactly
// when the status is StatusFailed.
func (s *FormSubmission) FailureReason() *string {
	if s.failureReason == nil {
		return nil
	}
	reason := *s.failureReason
	return &reason
}

// ToDTO converts the submission into a response-friendly structure.
func (s *FormSubmission) ToDTO() map[string]any {
	dto := map[string]any{
		"id":            s.ID,
		"formSchemaId":  s.FormSchemaID,
		"encryptedData": s.EncryptedData,
		"encryptedKey":  s.EncryptedKey,
		"metadata":      s.Metadata,
		"status":        s.status,
		"createdAt":     s.CreatedAt,
	}
	if s.failureReason != nil {
		dto["failureReason"] = *s.failureReason
	}
	return dto
}
