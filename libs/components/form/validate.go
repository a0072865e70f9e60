package form

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidSubmission matches every *ValidationError via errors.Is.
var ErrInvalidSubmission = errors.New("form: invalid submission")

// ValidationError lists every field-level problem found in a submission,
// in schema order.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Errors, "; ")
}

// Is reports whether target is ErrInvalidSubmission.
func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSubmission }

// Validate checks data against the schema's fields. It returns nil or a
// *ValidationError carrying all messages; it never stops at the first one.
// Keys in data that the schema does not define are ignored.
func Validate(schema *Schema, data map[string]string) error {
	if schema == nil {
		return &ValidationError{Errors: []string{"form schema is missing"}}
	}

	var problems []string
	for _, field := range schema.Fields {
		value, present := data[field.ID]

		if field.Required && (!present || value == "") {
			problems = append(problems, fmt.Sprintf("Field '%s' is required", field.Name))
			continue
		}
		if !present {
			continue
		}

		problems = append(problems, checkType(field, value)...)
		if msg, ok := checkRules(field, value); !ok {
			problems = append(problems, msg)
		}
	}

	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Errors: problems}
}

func checkType(field FieldDefinition, value string) []string {
	switch field.Type.Kind {
	case KindEmail:
		if !strings.Contains(value, "@") {
			return []string{fmt.Sprintf("Invalid email in field '%s'", field.Name)}
		}
	case KindText:
		if field.Type.MaxLength != nil && len(value) > *field.Type.MaxLength {
			return []string{fmt.Sprintf("Field '%s' exceeds maximum length", field.Name)}
		}
	case KindNumber:
		return checkNumber(field, value)
	case KindPhone, KindDate, KindSelect, KindCheckbox, KindFile:
	}
	return nil
}

func checkNumber(field FieldDefinition, value string) []string {
	num, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return []string{fmt.Sprintf("Invalid number in field '%s'", field.Name)}
	}

	var problems []string
	if field.Type.Min != nil && num < *field.Type.Min {
		problems = append(problems, fmt.Sprintf("Number too small in field '%s'", field.Name))
	}
	if field.Type.Max != nil && num > *field.Type.Max {
		problems = append(problems, fmt.Sprintf("Number too large in field '%s'", field.Name))
	}
	return problems
}

func checkRules(field FieldDefinition, value string) (string, bool) {
	if field.Rules.Regex == "" || value == "" {
		return "", true
	}
	pattern, err := regexp.Compile(field.Rules.Regex)
	if err == nil && pattern.MatchString(value) {
		return "", true
	}
	if field.Rules.CustomErrorMessage != "" {
		return field.Rules.CustomErrorMessage, false
	}
	return fmt.Sprintf("Field '%s' does not match the required format", field.Name), false
}
