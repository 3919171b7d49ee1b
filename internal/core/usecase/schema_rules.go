package usecase

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,63}$`)

var optionListSchema = jsonschema.MustCompileString("option-list.json", `{
	"type": "array",
	"minItems": 1,
	"uniqueItems": true,
	"items": {"type": "string", "minLength": 1, "maxLength": 200, "pattern": "\\S"}
}`)

func schemaError(field, message string) error {
	return domain.NewFieldError(domain.ErrSchema, "metadata_field", field, message)
}

// validateFieldDefinition checks that every rule attribute is legal for the data type.
func validateFieldDefinition(f domain.MetadataField) error {
	if !fieldNamePattern.MatchString(f.Name) {
		return schemaError("name", "must start with a letter and contain only letters, digits and underscores (max 64)")
	}
	if strings.TrimSpace(f.Label) == "" {
		return schemaError("label", "label is required")
	}
	if !f.DataType.Valid() {
		return schemaError("data_type", fmt.Sprintf("unsupported data type %q", f.DataType))
	}

	if f.Pattern != "" {
		if f.DataType != domain.DataTypeString {
			return schemaError("pattern", "pattern applies to string fields only")
		}
		if _, err := regexp.Compile(f.Pattern); err != nil {
			return schemaError("pattern", "invalid regular expression")
		}
	}
	if f.PatternMessage != "" && f.Pattern == "" {
		return schemaError("pattern_message", "pattern message requires a pattern")
	}
	if f.MaxLength != nil {
		if f.DataType != domain.DataTypeString {
			return schemaError("max_length", "max length applies to string fields only")
		}
		if *f.MaxLength <= 0 {
			return schemaError("max_length", "max length must be positive")
		}
	}
	if f.MinValue != nil || f.MaxValue != nil {
		if f.DataType != domain.DataTypeNumber {
			return schemaError("min_value", "numeric range applies to number fields only")
		}
		if f.MinValue != nil && f.MaxValue != nil && *f.MinValue > *f.MaxValue {
			return schemaError("min_value", "min value exceeds max value")
		}
	}

	if f.DataType.HasOptions() {
		if err := validateOptionList(f.Options); err != nil {
			return err
		}
	} else if f.Options != "" {
		return schemaError("options", "options apply to select fields only")
	}

	if f.DefaultValue != "" {
		candidate := f
		candidate.Required = false
		if _, _, err := candidate.Coerce(f.DefaultValue); err != nil {
			return schemaError("default_value", "default value does not satisfy the field rules")
		}
	}
	return nil
}

func validateOptionList(serialized string) error {
	if strings.TrimSpace(serialized) == "" {
		return schemaError("options", "select fields need at least one option")
	}
	var decoded any
	if err := json.Unmarshal([]byte(serialized), &decoded); err != nil {
		return schemaError("options", "options must be a JSON array of strings")
	}
	if err := optionListSchema.Validate(decoded); err != nil {
		return schemaError("options", "options must be unique, non-empty strings")
	}
	return nil
}

func encodeOptions(options []string) (string, error) {
	if len(options) == 0 {
		return "", nil
	}
	trimmed := make([]string, 0, len(options))
	for _, o := range options {
		trimmed = append(trimmed, strings.TrimSpace(o))
	}
	raw, err := json.Marshal(trimmed)
	if err != nil {
		return "", fmt.Errorf("encode options: %w", err)
	}
	return string(raw), nil
}
