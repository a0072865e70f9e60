package form

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func schemaWith(fields ...FieldDefinition) *Schema {
	return NewSchema("test", "dev-1", "age1key", fields)
}

func validationMessages(t *testing.T, err error) []string {
	t.Helper()
	require.Error(t, err)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	return verr.Errors
}

func TestValidateRequiredEmailMissing(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "email", Name: "Email", Type: Email(), Required: true})

	err := Validate(schema, map[string]string{})

	assert.Equal(t, []string{"Field 'Email' is required"}, validationMessages(t, err))
	assert.ErrorIs(t, err, ErrInvalidSubmission)
}

func TestValidateNumberAboveMax(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "age", Name: "age", Type: Number(Bound(0), Bound(100))})

	err := Validate(schema, map[string]string{"age": "150"})

	assert.Equal(t, []string{"Number too large in field 'age'"}, validationMessages(t, err))
}

func TestValidateAcceptsValidData(t *testing.T) {
	schema := schemaWith(
		FieldDefinition{ID: "email", Name: "Email", Type: Email(), Required: true},
		FieldDefinition{ID: "name", Name: "Name", Type: Text(5)},
		FieldDefinition{ID: "age", Name: "Age", Type: Number(Bound(0), Bound(100)), Required: true},
		FieldDefinition{ID: "phone", Name: "Phone", Type: Phone("+1")},
		FieldDefinition{ID: "plan", Name: "Plan", Type: Select("free", "pro")},
		FieldDefinition{ID: "terms", Name: "Terms", Type: Checkbox()},
	)

	err := Validate(schema, map[string]string{
		"email": "ada@example.com",
		"name":  "Ada",
		"age":   "36.5",
		"phone": "anything",
		"plan":  "enterprise",
		"terms": "on",
		"extra": "ignored",
	})

	assert.NoError(t, err)
}

func TestValidateRequiredEmptyStringSkipsTypeChecks(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "age", Name: "Age", Type: Number(nil, nil), Required: true})

	err := Validate(schema, map[string]string{"age": ""})

	assert.Equal(t, []string{"Field 'Age' is required"}, validationMessages(t, err))
}

func TestValidateOptionalAbsentFieldIsSkipped(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "email", Name: "Email", Type: Email()})

	assert.NoError(t, Validate(schema, nil))
}

func TestValidatePresentOptionalValuesAreTypeChecked(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "email", Name: "Email", Type: Email()})

	err := Validate(schema, map[string]string{"email": "not-an-email"})

	assert.Equal(t, []string{"Invalid email in field 'Email'"}, validationMessages(t, err))
}

func TestValidateTextLengthCountsBytes(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "name", Name: "Name", Type: Text(3)})

	assert.NoError(t, Validate(schema, map[string]string{"name": "abc"}))

	for _, input := range []string{"abcd", "ééé"} {
		err := Validate(schema, map[string]string{"name": input})
		assert.Equal(t, []string{"Field 'Name' exceeds maximum length"}, validationMessages(t, err), input)
	}
}

func TestValidateNumberErrors(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "n", Name: "n", Type: Number(Bound(10), Bound(20))})

	cases := map[string][]string{
		"abc":  {"Invalid number in field 'n'"},
		"":     {"Invalid number in field 'n'"},
		"-Inf": {"Number too small in field 'n'"},
		"+Inf": {"Number too large in field 'n'"},
		"5":    {"Number too small in field 'n'"},
		"21":   {"Number too large in field 'n'"},
	}
	for input, want := range cases {
		t.Run(input, func(t *testing.T) {
			err := Validate(schema, map[string]string{"n": input})
			assert.Equal(t, want, validationMessages(t, err))
		})
	}

	assert.NoError(t, Validate(schema, map[string]string{"n": "10"}))
	assert.NoError(t, Validate(schema, map[string]string{"n": "20"}))
}

func TestValidateNumberAcceptsAnythingParseFloatAccepts(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "n", Name: "n", Type: Number(nil, nil)})

	for _, input := range []string{"inf", "-Inf", "NaN", "1e308", "0x1p-2", "-0"} {
		assert.NoError(t, Validate(schema, map[string]string{"n": input}), input)
	}
}

func TestValidateCollectsAllErrorsInSchemaOrder(t *testing.T) {
	schema := schemaWith(
		FieldDefinition{ID: "name", Name: "Name", Type: Text(2), Required: true},
		FieldDefinition{ID: "email", Name: "Email", Type: Email(), Required: true},
		FieldDefinition{ID: "age", Name: "Age", Type: Number(Bound(0), nil)},
	)

	err := Validate(schema, map[string]string{"name": "long", "age": "-1"})

	assert.Equal(t, []string{
		"Field 'Name' exceeds maximum length",
		"Field 'Email' is required",
		"Number too small in field 'Age'",
	}, validationMessages(t, err))
}

func TestValidateRegexRule(t *testing.T) {
	schema := schemaWith(
		FieldDefinition{ID: "zip", Name: "Zip", Type: Text(0), Rules: ValidationRules{Regex: `^\d{5}$`}},
		FieldDefinition{ID: "code", Name: "Code", Type: Text(0), Rules: ValidationRules{Regex: `^[A-Z]+$`, CustomErrorMessage: "Code must be upper case"}},
	)

	err := Validate(schema, map[string]string{"zip": "12a45", "code": "abc"})
	assert.Equal(t, []string{
		"Field 'Zip' does not match the required format",
		"Code must be upper case",
	}, validationMessages(t, err))

	assert.NoError(t, Validate(schema, map[string]string{"zip": "12345", "code": "ABC"}))
	assert.NoError(t, Validate(schema, map[string]string{"zip": ""}))
}

func TestValidateDoesNotMutateInput(t *testing.T) {
	schema := schemaWith(FieldDefinition{ID: "email", Name: "Email", Type: Email(), Required: true})
	data := map[string]string{"email": "bad"}

	_ = Validate(schema, data)

	assert.Equal(t, map[string]string{"email": "bad"}, data)
	assert.Len(t, schema.Fields, 1)
}

func TestValidateNilSchema(t *testing.T) {
	assert.ErrorIs(t, Validate(nil, map[string]string{}), ErrInvalidSubmission)
}
