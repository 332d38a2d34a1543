package validator

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordValidatorRequiredField(t *testing.T) {
	v := NewRecordValidator()

	definitions := map[string]FieldDefinition{
		"trip_id": {Type: FieldTypeString, Required: true},
	}

	result := v.ValidateProperties(map[string]any{"trip_id": ""}, definitions)
	assert.False(t, result.IsValid, "expected empty string to be rejected")

	result = v.ValidateProperties(map[string]any{"trip_id": "   "}, definitions)
	assert.False(t, result.IsValid, "expected whitespace value to be rejected")

	result = v.ValidateProperties(map[string]any{"trip_id": "TRIP-1"}, definitions)
	assert.True(t, result.IsValid, "unexpected errors: %+v", result.Errors)
	assert.NoError(t, result.Err())
}

func TestRecordValidatorDecimalBounds(t *testing.T) {
	v := NewRecordValidator()
	definitions := map[string]FieldDefinition{
		"moisture": {Type: FieldTypeDecimal, Min: Bound(0), Max: Bound(100)},
	}

	result := v.ValidateProperties(map[string]any{
		"moisture": decimal.NewNullDecimal(decimal.RequireFromString("0.25")),
	}, definitions)
	assert.True(t, result.IsValid)

	result = v.ValidateProperties(map[string]any{
		"moisture": decimal.NewNullDecimal(decimal.RequireFromString("150")),
	}, definitions)
	require.False(t, result.IsValid)
	assert.Equal(t, "moisture", result.Errors[0].Field)
	assert.ErrorIs(t, result.Err(), ErrInvalidRecord)
	assert.Contains(t, result.Err().Error(), "at most 100")

	result = v.ValidateProperties(map[string]any{"moisture": decimal.NullDecimal{}}, definitions)
	assert.True(t, result.IsValid, "missing optional decimal must be accepted")
}

func TestRecordValidatorDateOrder(t *testing.T) {
	v := NewRecordValidator()
	definitions := map[string]FieldDefinition{
		"loading_date":   {Type: FieldTypeDate},
		"unloading_date": {Type: FieldTypeDate, NotBefore: "loading_date"},
	}
	loaded := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	earlier := loaded.AddDate(0, 0, -2)

	result := v.ValidateProperties(map[string]any{
		"loading_date":   &loaded,
		"unloading_date": &earlier,
	}, definitions)
	require.False(t, result.IsValid)
	assert.Contains(t, result.Errors[0].Message, "is before 'loading_date'")

	var missing *time.Time
	result = v.ValidateProperties(map[string]any{
		"loading_date":   missing,
		"unloading_date": &earlier,
	}, definitions)
	assert.True(t, result.IsValid)
}

func TestRecordValidatorRejectsUnknownProperty(t *testing.T) {
	v := NewRecordValidator()
	result := v.ValidateProperties(map[string]any{"vessel": "MV Ocean"}, map[string]FieldDefinition{})
	require.False(t, result.IsValid)
	assert.Equal(t, "vessel", result.Errors[0].Field)
}
