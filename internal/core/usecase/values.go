package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/ports"
)

type ValueUseCase struct {
	values    ports.ValueRepository
	fields    ports.FieldRepository
	documents ports.DocumentRepository
	history   *HistoryRecorder
	now       func() time.Time
}

func NewValueUseCase(
	values ports.ValueRepository,
	fields ports.FieldRepository,
	documents ports.DocumentRepository,
	history *HistoryRecorder,
) *ValueUseCase {
	return &ValueUseCase{
		values:    values,
		fields:    fields,
		documents: documents,
		history:   history,
		now:       utcNow,
	}
}

// SetValues validates every input before writing any of them, then upserts the batch atomically.
func (uc *ValueUseCase) SetValues(ctx context.Context, actorID, documentID string, inputs []domain.FieldValueInput) ([]domain.FieldValue, error) {
	if len(inputs) == 0 {
		return nil, domain.NewFieldError(domain.ErrValidation, "metadata_value", "values", "at least one value is required")
	}
	doc, err := uc.documents.GetDocument(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}

	fields, err := applicableFields(ctx, uc.fields, doc.ProfileID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]domain.MetadataField, len(fields))
	byName := make(map[string]domain.MetadataField, len(fields))
	for _, f := range fields {
		byID[f.ID] = f
		// Profile-owned fields come last and shadow a global field of the same name.
		byName[strings.ToLower(f.Name)] = f
	}

	previous, err := uc.values.ListValues(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("load current values: %w", err)
	}
	prevByField := make(map[string]domain.MetadataValue, len(previous))
	for _, fv := range previous {
		prevByField[fv.Field.ID] = fv.Value
	}

	now := uc.now()
	upserts := make([]domain.MetadataValue, 0, len(inputs))
	clears := make([]string, 0)
	touched := make([]domain.MetadataField, 0, len(inputs))
	seen := make(map[string]struct{}, len(inputs))

	for _, in := range inputs {
		field, ok := resolveField(in, byID, byName)
		if !ok {
			ref := in.FieldID
			if ref == "" {
				ref = in.FieldName
			}
			return nil, &domain.FieldError{
				Kind:    domain.ErrUnknownField,
				Entity:  "metadata_value",
				ID:      documentID,
				Field:   ref,
				Message: "field is not enabled for this document's profile",
			}
		}
		if _, dup := seen[field.ID]; dup {
			return nil, domain.NewFieldError(domain.ErrValidation, "metadata_value", field.Name, "field given more than once")
		}
		seen[field.ID] = struct{}{}

		value, empty, err := field.Coerce(in.Value)
		if err != nil {
			return nil, err
		}
		touched = append(touched, field)
		if empty {
			clears = append(clears, field.ID)
			continue
		}
		value.ID = uuid.NewString()
		value.DocumentID = documentID
		value.CreatedBy = actorID
		value.UpdatedBy = actorID
		value.CreatedAt = now
		value.UpdatedAt = now
		upserts = append(upserts, value)
	}

	if err := uc.values.UpsertValues(ctx, documentID, upserts, clears, actorID, now); err != nil {
		return nil, fmt.Errorf("upsert values: %w", err)
	}

	written := make(map[string]domain.MetadataValue, len(upserts))
	for _, v := range upserts {
		written[v.FieldID] = v
	}
	for _, field := range touched {
		change := domain.ChangeValueSet
		newValue := ""
		if v, ok := written[field.ID]; ok {
			newValue = v.String()
		} else {
			change = domain.ChangeValueClear
		}
		entry := historyEntry("document", documentID, actorID, change, now)
		entry.FieldName = field.Name
		if prev, ok := prevByField[field.ID]; ok {
			entry.OldValue = prev.String()
		}
		entry.NewValue = newValue
		uc.history.Record(ctx, entry)
	}

	return uc.values.ListValues(ctx, documentID)
}

func (uc *ValueUseCase) GetValues(ctx context.Context, documentID string) ([]domain.FieldValue, error) {
	if _, err := uc.documents.GetDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return uc.values.ListValues(ctx, documentID)
}

// DeleteValue is the explicit clear; it is allowed on required fields.
func (uc *ValueUseCase) DeleteValue(ctx context.Context, actorID, documentID, fieldID string) error {
	if _, err := uc.documents.GetDocument(ctx, documentID); err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	current, err := uc.values.GetValue(ctx, documentID, fieldID)
	if err != nil {
		return fmt.Errorf("load value: %w", err)
	}
	now := uc.now()
	if err := uc.values.UpsertValues(ctx, documentID, nil, []string{fieldID}, actorID, now); err != nil {
		return fmt.Errorf("clear value: %w", err)
	}

	entry := historyEntry("document", documentID, actorID, domain.ChangeValueClear, now)
	entry.FieldName = fieldID
	if field, err := uc.fields.GetField(ctx, fieldID); err == nil {
		entry.FieldName = field.Name
	}
	entry.OldValue = current.String()
	uc.history.Record(ctx, entry)
	return nil
}

func resolveField(in domain.FieldValueInput, byID, byName map[string]domain.MetadataField) (domain.MetadataField, bool) {
	if id := strings.TrimSpace(in.FieldID); id != "" {
		f, ok := byID[id]
		return f, ok
	}
	f, ok := byName[strings.ToLower(strings.TrimSpace(in.FieldName))]
	return f, ok
}
