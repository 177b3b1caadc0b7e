// Package schema validates source record attributes before they enter the
// pipeline. Failures quarantine the record; the batch continues.
package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/Ramsey-B/clover/pkg/models"
)

// ValidationError is a single field-level failure
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Reason  string `json:"reason"` // quarantine reason code
}

// ValidationResult reports the outcome of validating one record's attributes
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// Validator validates attribute maps against a RecordSchema
type Validator struct {
	schema models.RecordSchema
}

// NewValidator builds a validator for a record schema
func NewValidator(schema models.RecordSchema) *Validator {
	return &Validator{schema: schema}
}

// Validate checks required keys and per-property constraints. A nil or
// explicitly null value only fails required keys; optional absence is fine.
func (v *Validator) Validate(attributes map[string]any) ValidationResult {
	result := ValidationResult{Valid: true}

	for _, required := range v.schema.Required {
		if value, exists := attributes[required]; !exists || value == nil || value == "" {
			result.Valid = false
			result.Errors = append(result.Errors, ValidationError{
				Field:   required,
				Message: "required attribute is missing",
				Reason:  models.QuarantineReasonMissingRequired,
			})
		}
	}

	for name, def := range v.schema.Properties {
		value, exists := attributes[name]
		if !exists || value == nil {
			continue
		}
		result.Errors = append(result.Errors, validateProperty(name, value, def)...)
	}

	if len(result.Errors) > 0 {
		result.Valid = false
	}
	return result
}

func validateProperty(name string, value any, def models.PropertyDefinition) []ValidationError {
	if !isValidType(value, def.Type) {
		return []ValidationError{{
			Field:   name,
			Message: fmt.Sprintf("expected type %s, got %s", def.Type, typeName(value)),
			Reason:  models.QuarantineReasonInvalidType,
		}}
	}

	var errs []ValidationError

	if def.Format != "" {
		if err := validateFormat(value, def.Format); err != nil {
			errs = append(errs, ValidationError{
				Field:   name,
				Message: err.Error(),
				Reason:  models.QuarantineReasonInvalidType,
			})
		}
	}

	if def.Type == "object" && def.Properties != nil {
		if obj, ok := value.(map[string]any); ok {
			for nested, nestedDef := range def.Properties {
				if nestedValue, exists := obj[nested]; exists && nestedValue != nil {
					errs = append(errs, validateProperty(name+"."+nested, nestedValue, nestedDef)...)
				}
			}
		}
	}

	if def.Type == "array" && def.Items != nil {
		if arr, ok := value.([]any); ok {
			for i, item := range arr {
				errs = append(errs, validateProperty(fmt.Sprintf("%s[%d]", name, i), item, *def.Items)...)
			}
		}
	}

	return errs
}

func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		switch value.(type) {
		case float64, float32, int, int64, int32:
			return true
		}
		return false
	case "integer":
		switch v := value.(type) {
		case float64:
			return v == float64(int64(v))
		case int, int64, int32:
			return true
		}
		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	case "array":
		rv := reflect.ValueOf(value)
		return rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array
	default:
		// Unknown types pass (permissive)
		return true
	}
}

func typeName(value any) string {
	if value == nil {
		return "null"
	}

	switch value.(type) {
	case string:
		return "string"
	case float64, float32, int, int64, int32:
		return "number"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		rv := reflect.ValueOf(value)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			return "array"
		}
		return fmt.Sprintf("%T", value)
	}
}

func validateFormat(value any, format string) error {
	str, ok := value.(string)
	if !ok {
		// Format only applies to strings
		return nil
	}

	switch format {
	case "email":
		if !emailRegex.MatchString(str) {
			return fmt.Errorf("invalid email format")
		}
	case "date":
		if !dateRegex.MatchString(str) {
			return fmt.Errorf("invalid date format (expected YYYY-MM-DD)")
		}
	case "date-time":
		if !dateTimeRegex.MatchString(str) {
			return fmt.Errorf("invalid date-time format (expected ISO 8601)")
		}
	case "phone":
		if !isValidPhone(str) {
			return fmt.Errorf("invalid phone format")
		}
	case "uuid":
		if !uuidRegex.MatchString(str) {
			return fmt.Errorf("invalid UUID format")
		}
	}

	return nil
}

var (
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	dateRegex     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}(T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})?)?$`)
	uuidRegex     = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}$`)
)

func isValidPhone(s string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "+", "").Replace(s)
	return len(cleaned) >= 7 && len(cleaned) <= 15
}
