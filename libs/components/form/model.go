package form

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Schema is a developer's form definition.
type Schema struct {
	ID          string                               `json:"id" gorm:"type:uuid;primaryKey"`
	Name        string                               `json:"name" gorm:"not null"`
	DeveloperID string                               `json:"developerId" gorm:"type:uuid;not null;index"`
	PublicKey   string                               `json:"publicKey" gorm:"not null"`
	Fields      datatypes.JSONSlice[FieldDefinition] `json:"fields" gorm:"type:jsonb"`
	WebhookURL  *string                              `json:"webhookUrl"`
	CreatedAt   time.Time                            `json:"createdAt"`
	UpdatedAt   time.Time                            `json:"updatedAt"`
}

// TableName pins the table name.
func (Schema) TableName() string { return "form_schemas" }

// BeforeCreate ensures that a UUID is present for new records.
func (s *Schema) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}

// NewSchema builds an unsaved schema.
func NewSchema(name, developerID, publicKey string, fields []FieldDefinition) *Schema {
	return &Schema{
		Name:        strings.TrimSpace(name),
		DeveloperID: strings.TrimSpace(developerID),
		PublicKey:   strings.TrimSpace(publicKey),
		Fields:      datatypes.JSONSlice[FieldDefinition](fields),
	}
}

// Validate checks the schema definition. Field ids must be unique.
func (s *Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("name is required")
	}
	if strings.TrimSpace(s.DeveloperID) == "" {
		return errors.New("developer id is required")
	}
	if strings.TrimSpace(s.PublicKey) == "" {
		return errors.New("public key is required")
	}
	return validateFields(s.Fields)
}

func validateFields(fields []FieldDefinition) error {
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if err := field.Validate(); err != nil {
			return err
		}
		if _, dup := seen[field.ID]; dup {
			return fmt.Errorf("duplicate field id %q", field.ID)
		}
		seen[field.ID] = struct{}{}
	}
	return nil
}

// AddField appends a field, rejecting invalid definitions and duplicate ids.
func (s *Schema) AddField(field FieldDefinition) error {
	if err := field.Validate(); err != nil {
		return err
	}
	if _, ok := s.Field(field.ID); ok {
		return fmt.Errorf("duplicate field id %q", field.ID)
	}
	s.Fields = append(s.Fields, field)
	return nil
}

// Field returns the definition with the given id.
func (s *Schema) Field(id string) (FieldDefinition, bool) {
	for _, field := range s.Fields {
		if field.ID == id {
			return field, true
		}
	}
	return FieldDefinition{}, false
}

// Webhook returns the configured webhook URL or "".
func (s *Schema) Webhook() string {
	if s == nil || s.WebhookURL == nil {
		return ""
	}
	return strings.TrimSpace(*s.WebhookURL)
}

// ToDTO converts the model into a response-friendly structure.
func (s Schema) ToDTO() map[string]any {
	fields := []FieldDefinition(s.Fields)
	if fields == nil {
		fields = []FieldDefinition{}
	}
	dto := map[string]any{
		"id":          s.ID,
		"name":        s.Name,
		"developerId": s.DeveloperID,
		"publicKey":   s.PublicKey,
		"fields":      fields,
		"createdAt":   s.CreatedAt,
		"updatedAt":   s.UpdatedAt,
	}
	if url := s.Webhook(); url != "" {
		dto["webhookUrl"] = url
	}
	return dto
}
