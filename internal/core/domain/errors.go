package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicateCode     = errors.New("duplicate code")
	ErrValidation        = errors.New("validation failed")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotEmpty          = errors.New("not empty")
	ErrFieldInUse        = errors.New("field in use")
	ErrUnknownField      = errors.New("unknown field")
	ErrPersistence       = errors.New("persistence failure")
	ErrTemporary         = errors.New("temporary failure")

	// Sub-kinds of ErrValidation.
	ErrRequiredField = fmt.Errorf("required field: %w", ErrValidation)
	ErrSchema        = fmt.Errorf("schema error: %w", ErrValidation)
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// FieldError carries enough detail for a caller to render a field-level form error.
type FieldError struct {
	Kind    error
	Entity  string
	ID      string
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	var b strings.Builder
	b.WriteString(e.Entity)
	if e.ID != "" {
		b.WriteString(" ")
		b.WriteString(e.ID)
	}
	if e.Field != "" {
		b.WriteString(" field ")
		b.WriteString(e.Field)
	}
	b.WriteString(": ")
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *FieldError) Unwrap() error {
	return e.Kind
}

func NewFieldError(kind error, entity, field, message string) error {
	return &FieldError{Kind: kind, Entity: entity, Field: field, Message: message}
}

func NotFound(entity, id string) error {
	return &FieldError{Kind: ErrNotFound, Entity: entity, ID: id}
}

func InvalidTransition(entity, id, from, event string) error {
	return &FieldError{
		Kind:    ErrInvalidTransition,
		Entity:  entity,
		ID:      id,
		Field:   "status",
		Message: fmt.Sprintf("event %q not allowed from %q", event, from),
	}
}

// AsFieldError extracts the structured detail from err, if any.
func AsFieldError(err error) (*FieldError, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// KindName returns a stable, transport-friendly name for the error kind of err.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDuplicateCode):
		return "duplicate_code"
	case errors.Is(err, ErrRequiredField):
		return "required_field"
	case errors.Is(err, ErrSchema):
		return "schema"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrNotEmpty):
		return "not_empty"
	case errors.Is(err, ErrFieldInUse):
		return "field_in_use"
	case errors.Is(err, ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, ErrPersistence):
		return "persistence"
	case errors.Is(err, ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}
