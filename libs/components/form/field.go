package form

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
)

// FieldKind names a field type variant.
type FieldKind string

const (
	KindText     FieldKind = "text"
	KindEmail    FieldKind = "email"
	KindPhone    FieldKind = "phone"
	KindNumber   FieldKind = "number"
	KindDate     FieldKind = "date"
	KindSelect   FieldKind = "select"
	KindCheckbox FieldKind = "checkbox"
	KindFile     FieldKind = "file"
)

// FieldType is a tagged variant. Kind selects the variant and only the
// payload fields belonging to that kind may be set:
//
//	text     MaxLength
//	phone    CountryCode
//	number   Min, Max
//	date     Format
//	select   Options
//	file     AllowedTypes, MaxSizeMB
type FieldType struct {
	Kind         FieldKind `json:"kind"`
	MaxLength    *int      `json:"max_length,omitempty"`
	CountryCode  *string   `json:"country_code,omitempty"`
	Min          *float64  `json:"min,omitempty"`
	Max          *float64  `json:"max,omitempty"`
	Format       string    `json:"format,omitempty"`
	Options      []string  `json:"options,omitempty"`
	AllowedTypes []string  `json:"allowed_types,omitempty"`
	MaxSizeMB    int       `json:"max_size_mb,omitempty"`
}

// Text returns a text type. A maxLength of zero or less means unbounded.
func Text(maxLength int) FieldType {
	t := FieldType{Kind: KindText}
	if maxLength > 0 {
		t.MaxLength = &maxLength
	}
	return t
}

func Email() FieldType { return FieldType{Kind: KindEmail} }

func Phone(countryCode string) FieldType {
	t := FieldType{Kind: KindPhone}
	if countryCode = strings.TrimSpace(countryCode); countryCode != "" {
		t.CountryCode = &countryCode
	}
	return t
}

// Number returns a numeric type; nil bounds are not enforced.
func Number(lo, hi *float64) FieldType {
	return FieldType{Kind: KindNumber, Min: lo, Max: hi}
}

func Date(format string) FieldType { return FieldType{Kind: KindDate, Format: format} }

func Select(options ...string) FieldType { return FieldType{Kind: KindSelect, Options: options} }

func Checkbox() FieldType { return FieldType{Kind: KindCheckbox} }

func File(maxSizeMB int, allowedTypes ...string) FieldType {
	return FieldType{Kind: KindFile, MaxSizeMB: maxSizeMB, AllowedTypes: allowedTypes}
}

// Bound returns a pointer to v for use as a Number bound.
func Bound(v float64) *float64 { return &v }

// Validate checks that the variant is known and carries only its own payload.
func (t FieldType) Validate() error {
	foreign := func(name string) error {
		return fmt.Errorf("%s is not allowed for %s fields", name, t.Kind)
	}

	if t.MaxLength != nil && t.Kind != KindText {
		return foreign("max_length")
	}
	if t.CountryCode != nil && t.Kind != KindPhone {
		return foreign("country_code")
	}
	if (t.Min != nil || t.Max != nil) && t.Kind != KindNumber {
		return foreign("min/max")
	}
	if t.Format != "" && t.Kind != KindDate {
		return foreign("format")
	}
	if len(t.Options) > 0 && t.Kind != KindSelect {
		return foreign("options")
	}
	if (len(t.AllowedTypes) > 0 || t.MaxSizeMB != 0) && t.Kind != KindFile {
		return foreign("allowed_types/max_size_mb")
	}

	switch t.Kind {
	case KindText:
		if t.MaxLength != nil && *t.MaxLength < 0 {
			return errors.New("max_length must not be negative")
		}
	case KindNumber:
		if t.Min != nil && (math.IsNaN(*t.Min) || math.IsInf(*t.Min, 0)) {
			return errors.New("min must be finite")
		}
		if t.Max != nil && (math.IsNaN(*t.Max) || math.IsInf(*t.Max, 0)) {
			return errors.New("max must be finite")
		}
		if t.Min != nil && t.Max != nil && *t.Min > *t.Max {
			return errors.New("min must not exceed max")
		}
	case KindDate:
		if strings.TrimSpace(t.Format) == "" {
			return errors.New("date fields require a format")
		}
	case KindSelect:
		if len(t.Options) == 0 {
			return errors.New("select fields require at least one option")
		}
	case KindFile:
		if t.MaxSizeMB < 0 {
			return errors.New("max_size_mb must not be negative")
		}
	case KindEmail, KindPhone, KindCheckbox:
	default:
		return fmt.Errorf("unknown field kind %q", t.Kind)
	}
	return nil
}

// ValidationRules are optional per-field checks applied after type checks.
type ValidationRules struct {
	Regex              string `json:"regex,omitempty"`
	CustomErrorMessage string `json:"custom_error_message,omitempty"`
}

// FieldDefinition is one field of a schema.
type FieldDefinition struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Type     FieldType       `json:"type"`
	Required bool            `json:"required"`
	Rules    ValidationRules `json:"rules"`
}

// Validate checks the definition itself, not a submitted value.
func (f FieldDefinition) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return errors.New("field id is required")
	}
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("field %q: name is required", f.ID)
	}
	if err := f.Type.Validate(); err != nil {
		return fmt.Errorf("field %q: %w", f.ID, err)
	}
	if f.Rules.Regex != "" {
		if _, err := regexp.Compile(f.Rules.Regex); err != nil {
			return fmt.Errorf("field %q: invalid regex: %w", f.ID, err)
		}
	}
	return nil
}
