package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

type DataType string

const (
	DataTypeString      DataType = "string"
	DataTypeNumber      DataType = "number"
	DataTypeDate        DataType = "date"
	DataTypeBoolean     DataType = "boolean"
	DataTypeSelect      DataType = "select"
	DataTypeMultiSelect DataType = "multiselect"
)

// DateLayout is the canonical wire form of Date values.
const DateLayout = "2006-01-02"

func (t DataType) Valid() bool {
	switch t {
	case DataTypeString, DataTypeNumber, DataTypeDate, DataTypeBoolean, DataTypeSelect, DataTypeMultiSelect:
		return true
	default:
		return false
	}
}

func (t DataType) HasOptions() bool {
	return t == DataTypeSelect || t == DataTypeMultiSelect
}

// MetadataField is an admin-defined attribute. A nil ProfileID marks a global field.
type MetadataField struct {
	ID             string     `json:"id"`
	ProfileID      *string    `json:"profile_id,omitempty"`
	Name           string     `json:"name"`
	Label          string     `json:"label"`
	DataType       DataType   `json:"data_type"`
	Required       bool       `json:"required"`
	DefaultValue   string     `json:"default_value,omitempty"`
	Pattern        string     `json:"pattern,omitempty"`
	PatternMessage string     `json:"pattern_message,omitempty"`
	MinValue       *float64   `json:"min_value,omitempty"`
	MaxValue       *float64   `json:"max_value,omitempty"`
	MaxLength      *int       `json:"max_length,omitempty"`
	Options        string     `json:"options,omitempty"`
	DisplayOrder   int        `json:"display_order"`
	VisibleInList  bool       `json:"visible_in_list"`
	Searchable     bool       `json:"searchable"`
	Enabled        bool       `json:"enabled"`
	CreatedBy      string     `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

// BelongsTo reports whether the field applies to documents of profileID.
func (f MetadataField) BelongsTo(profileID string) bool {
	return f.ProfileID == nil || *f.ProfileID == profileID
}

// OptionList decodes the serialized option list.
func (f MetadataField) OptionList() ([]string, error) {
	if strings.TrimSpace(f.Options) == "" {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal([]byte(f.Options), &out); err != nil {
		return nil, fmt.Errorf("decode options: %w", err)
	}
	return out, nil
}

// MetadataValue is a tagged variant: only the slot matching Kind is populated.
type MetadataValue struct {
	ID         string     `json:"id"`
	DocumentID string     `json:"document_id"`
	FieldID    string     `json:"field_id"`
	Kind       DataType   `json:"kind"`
	StringVal  *string    `json:"string_value,omitempty"`
	NumberVal  *float64   `json:"number_value,omitempty"`
	DateVal    *time.Time `json:"date_value,omitempty"`
	BoolVal    *bool      `json:"bool_value,omitempty"`
	JSONVal    *string    `json:"json_value,omitempty"`
	CreatedBy  string     `json:"created_by"`
	UpdatedBy  string     `json:"updated_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	DeletedAt  *time.Time `json:"deleted_at,omitempty"`
}

// Raw returns the populated slot as a plain Go value.
func (v MetadataValue) Raw() any {
	switch v.Kind {
	case DataTypeString, DataTypeSelect:
		if v.StringVal != nil {
			return *v.StringVal
		}
	case DataTypeNumber:
		if v.NumberVal != nil {
			return *v.NumberVal
		}
	case DataTypeDate:
		if v.DateVal != nil {
			return v.DateVal.Format(DateLayout)
		}
	case DataTypeBoolean:
		if v.BoolVal != nil {
			return *v.BoolVal
		}
	case DataTypeMultiSelect:
		if v.JSONVal != nil {
			var out []string
			if err := json.Unmarshal([]byte(*v.JSONVal), &out); err == nil {
				return out
			}
		}
	}
	return nil
}

// String renders the value for exports and audit details.
func (v MetadataValue) String() string {
	switch raw := v.Raw().(type) {
	case nil:
		return ""
	case string:
		return raw
	case float64:
		return strconv.FormatFloat(raw, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(raw)
	case []string:
		return strings.Join(raw, ", ")
	default:
		return fmt.Sprint(raw)
	}
}

// FieldValue joins a stored value with its definition for display.
type FieldValue struct {
	Field MetadataField `json:"field"`
	Value MetadataValue `json:"value"`
}

// FieldValueInput names a field by id or, failing that, by name.
type FieldValueInput struct {
	FieldID   string `json:"field_id,omitempty"`
	FieldName string `json:"field_name,omitempty"`
	Value     any    `json:"value"`
}

// DisplayOrder assigns a position to one entity in a bulk reorder.
type DisplayOrder struct {
	ID    string `json:"id"`
	Order int    `json:"order"`
}

// Coerce validates raw against f and fills the matching slot of a new value.
// empty is true when raw carries no value at all; the caller decides whether
// that clears an existing row.
func (f MetadataField) Coerce(raw any) (value MetadataValue, empty bool, err error) {
	value.FieldID = f.ID
	value.Kind = f.DataType

	if isEmptyRaw(raw) {
		if f.Required {
			return MetadataValue{}, true, f.fail(ErrRequiredField, "value is required")
		}
		return value, true, nil
	}

	switch f.DataType {
	case DataTypeString:
		s, ok := raw.(string)
		if !ok {
			return MetadataValue{}, false, f.fail(ErrValidation, "expected text")
		}
		if f.MaxLength != nil && utf8.RuneCountInString(s) > *f.MaxLength {
			return MetadataValue{}, false, f.fail(ErrValidation, fmt.Sprintf("exceeds max length %d", *f.MaxLength))
		}
		if f.Pattern != "" {
			re, reErr := regexp.Compile(f.Pattern)
			if reErr != nil {
				return MetadataValue{}, false, f.fail(ErrSchema, "invalid pattern")
			}
			if !re.MatchString(s) {
				msg := f.PatternMessage
				if msg == "" {
					msg = "does not match pattern"
				}
				return MetadataValue{}, false, f.fail(ErrValidation, msg)
			}
		}
		value.StringVal = &s

	case DataTypeNumber:
		n, ok := toNumber(raw)
		if !ok {
			return MetadataValue{}, false, f.fail(ErrValidation, "expected a number")
		}
		if f.MinValue != nil && n < *f.MinValue {
			return MetadataValue{}, false, f.fail(ErrValidation, fmt.Sprintf("must be >= %s", formatNumber(*f.MinValue)))
		}
		if f.MaxValue != nil && n > *f.MaxValue {
			return MetadataValue{}, false, f.fail(ErrValidation, fmt.Sprintf("must be <= %s", formatNumber(*f.MaxValue)))
		}
		value.NumberVal = &n

	case DataTypeDate:
		d, ok := toDate(raw)
		if !ok {
			return MetadataValue{}, false, f.fail(ErrValidation, "expected a date (YYYY-MM-DD)")
		}
		value.DateVal = &d

	case DataTypeBoolean:
		b, ok := toBool(raw)
		if !ok {
			return MetadataValue{}, false, f.fail(ErrValidation, "expected true or false")
		}
		value.BoolVal = &b

	case DataTypeSelect:
		s, ok := raw.(string)
		if !ok {
			return MetadataValue{}, false, f.fail(ErrValidation, "expected one option")
		}
		options, optErr := f.OptionList()
		if optErr != nil {
			return MetadataValue{}, false, f.fail(ErrSchema, "invalid option list")
		}
		if !slices.Contains(options, s) {
			return MetadataValue{}, false, f.fail(ErrValidation, fmt.Sprintf("%q is not an allowed option", s))
		}
		value.StringVal = &s

	case DataTypeMultiSelect:
		picked, ok := toStrings(raw)
		if !ok {
			return MetadataValue{}, false, f.fail(ErrValidation, "expected a list of options")
		}
		options, optErr := f.OptionList()
		if optErr != nil {
			return MetadataValue{}, false, f.fail(ErrSchema, "invalid option list")
		}
		unique := make([]string, 0, len(picked))
		for _, p := range picked {
			if !slices.Contains(options, p) {
				return MetadataValue{}, false, f.fail(ErrValidation, fmt.Sprintf("%q is not an allowed option", p))
			}
			if !slices.Contains(unique, p) {
				unique = append(unique, p)
			}
		}
		if len(unique) == 0 {
			if f.Required {
				return MetadataValue{}, true, f.fail(ErrRequiredField, "value is required")
			}
			return value, true, nil
		}
		encoded, encErr := json.Marshal(unique)
		if encErr != nil {
			return MetadataValue{}, false, f.fail(ErrValidation, "encode options")
		}
		s := string(encoded)
		value.JSONVal = &s

	default:
		return MetadataValue{}, false, f.fail(ErrSchema, fmt.Sprintf("unsupported data type %q", f.DataType))
	}
	return value, false, nil
}

func (f MetadataField) fail(kind error, message string) error {
	return &FieldError{Kind: kind, Entity: "metadata_field", ID: f.ID, Field: f.Name, Message: message}
}

func isEmptyRaw(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(v) == ""
	case []string:
		return len(v) == 0
	case []any:
		return len(v) == 0
	default:
		return false
	}
}

func toNumber(raw any) (float64, bool) {
	var n float64
	switch v := raw.(type) {
	case float64:
		n = v
	case float32:
		n = float64(v)
	case int:
		n = float64(v)
	case int64:
		n = float64(v)
	case int32:
		n = float64(v)
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		n = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, false
	}
	return n, true
}

func toDate(raw any) (time.Time, bool) {
	switch v := raw.(type) {
	case time.Time:
		return truncateDate(v), true
	case string:
		s := strings.TrimSpace(v)
		if d, err := time.Parse(DateLayout, s); err == nil {
			return d, true
		}
		if d, err := time.Parse(time.RFC3339, s); err == nil {
			return truncateDate(d), true
		}
	}
	return time.Time{}, false
}

func truncateDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

func toBool(raw any) (bool, bool) {
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return false, false
		}
		return b, true
	default:
		return false, false
	}
}

func toStrings(raw any) ([]string, bool) {
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	case string:
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

func formatNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}
