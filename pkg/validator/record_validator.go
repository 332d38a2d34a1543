package validator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// FieldType names the value kind a field definition expects.
type FieldType string

const (
	FieldTypeString  FieldType = "STRING"
	FieldTypeDecimal FieldType = "DECIMAL"
	FieldTypeDate    FieldType = "DATE"
)

// RecordValidator checks normalized records against field definitions before
// they are written.
type RecordValidator struct{}

// NewRecordValidator creates a new record validator
func NewRecordValidator() *RecordValidator {
	return &RecordValidator{}
}

// FieldDefinition represents a field definition for validation
type FieldDefinition struct {
	Type      FieldType
	Required  bool
	MaxLength int
	Min       *decimal.Decimal
	Max       *decimal.Decimal
	// NotBefore names a date field this one must not precede.
	NotBefore string
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   any    `json:"value,omitempty"`
}

// ValidationResult represents the result of validation
type ValidationResult struct {
	IsValid bool              `json:"is_valid"`
	Errors  []ValidationError `json:"errors"`
}

// Err folds the validation errors into one error, or nil when valid.
func (r ValidationResult) Err() error {
	if r.IsValid {
		return nil
	}
	messages := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		messages = append(messages, e.Message)
	}
	return fmt.Errorf("%w: %s", ErrInvalidRecord, strings.Join(messages, "; "))
}

// Bound is a convenience for building Min/Max limits.
func Bound(value int64) *decimal.Decimal {
	d := decimal.NewFromInt(value)
	return &d
}

// ValidateProperties validates record properties against field definitions.
// Values may be string, decimal.Decimal, decimal.NullDecimal, time.Time or
// *time.Time; a nil pointer, an invalid NullDecimal or a blank string counts
// as missing.
func (rv *RecordValidator) ValidateProperties(properties map[string]any, fieldDefinitions map[string]FieldDefinition) ValidationResult {
	result := ValidationResult{
		IsValid: true,
		Errors:  []ValidationError{},
	}

	names := make([]string, 0, len(fieldDefinitions))
	for name := range fieldDefinitions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, fieldName := range names {
		fieldDef := fieldDefinitions[fieldName]
		value, exists := properties[fieldName]
		present := exists && !isMissing(value)

		if fieldDef.Required && !present {
			result.fail(fieldName, fmt.Sprintf("required field '%s' is missing", fieldName), nil)
			continue
		}
		if !present {
			continue
		}

		if err := rv.validateField(fieldName, value, fieldDef, properties); err != nil {
			result.fail(fieldName, err.Error(), value)
		}
	}

	// Check for extra properties not defined in schema
	for propertyName, value := range properties {
		if _, exists := fieldDefinitions[propertyName]; !exists {
			result.fail(propertyName, fmt.Sprintf("property '%s' is not defined in schema", propertyName), value)
		}
	}

	return result
}

func (r *ValidationResult) fail(field, message string, value any) {
	r.IsValid = false
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: message, Value: value})
}

func (rv *RecordValidator) validateField(fieldName string, value any, def FieldDefinition, properties map[string]any) error {
	switch def.Type {
	case FieldTypeString:
		str, ok := value.(string)
		if !ok {
			return fmt.Errorf("field '%s' must be a string, got %T", fieldName, value)
		}
		if def.MaxLength > 0 && len([]rune(str)) > def.MaxLength {
			return fmt.Errorf("field '%s' exceeds %d characters", fieldName, def.MaxLength)
		}
	case FieldTypeDecimal:
		number, ok := toDecimal(value)
		if !ok {
			return fmt.Errorf("field '%s' must be a decimal, got %T", fieldName, value)
		}
		if def.Min != nil && number.LessThan(*def.Min) {
			return fmt.Errorf("field '%s' must be at least %s, got %s", fieldName, def.Min.String(), number.String())
		}
		if def.Max != nil && number.GreaterThan(*def.Max) {
			return fmt.Errorf("field '%s' must be at most %s, got %s", fieldName, def.Max.String(), number.String())
		}
	case FieldTypeDate:
		date, ok := toDate(value)
		if !ok {
			return fmt.Errorf("field '%s' must be a date, got %T", fieldName, value)
		}
		if def.NotBefore == "" {
			return nil
		}
		other, exists := properties[def.NotBefore]
		if !exists || isMissing(other) {
			return nil
		}
		if earliest, ok := toDate(other); ok && date.Before(earliest) {
			return fmt.Errorf("field '%s' (%s) is before '%s' (%s)",
				fieldName, date.Format(time.DateOnly), def.NotBefore, earliest.Format(time.DateOnly))
		}
	default:
		return fmt.Errorf("field '%s' has unsupported type %q", fieldName, def.Type)
	}
	return nil
}

func isMissing(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case decimal.NullDecimal:
		return !v.Valid
	case *time.Time:
		return v == nil
	}
	return false
}

func toDecimal(value any) (decimal.Decimal, bool) {
	switch v := value.(type) {
	case decimal.Decimal:
		return v, true
	case decimal.NullDecimal:
		return v.Decimal, v.Valid
	}
	return decimal.Decimal{}, false
}

func toDate(value any) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, true
	case *time.Time:
		if v == nil {
			return time.Time{}, false
		}
		return *v, true
	}
	return time.Time{}, false
}
