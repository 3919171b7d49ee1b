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

type SchemaUseCase struct {
	fields   ports.FieldRepository
	profiles ports.ProfileRepository
	history  *HistoryRecorder
	now      func() time.Time
}

func NewSchemaUseCase(
	fields ports.FieldRepository,
	profiles ports.ProfileRepository,
	history *HistoryRecorder,
) *SchemaUseCase {
	return &SchemaUseCase{
		fields:   fields,
		profiles: profiles,
		history:  history,
		now:      utcNow,
	}
}

func (uc *SchemaUseCase) CreateField(ctx context.Context, actorID string, in domain.FieldInput) (*domain.MetadataField, error) {
	profileID := normalizeProfileRef(in.ProfileID)
	if profileID != nil {
		if _, err := uc.profiles.GetProfile(ctx, *profileID); err != nil {
			return nil, fmt.Errorf("load owning profile: %w", err)
		}
	}

	field, err := fieldFromInput(in)
	if err != nil {
		return nil, err
	}
	now := uc.now()
	field.ID = uuid.NewString()
	field.ProfileID = profileID
	field.CreatedBy = actorID
	field.CreatedAt = now
	field.UpdatedAt = now

	if err := validateFieldDefinition(field); err != nil {
		return nil, err
	}

	existing, err := uc.fields.ListFields(ctx, profileID, true)
	if err != nil {
		return nil, fmt.Errorf("list sibling fields: %w", err)
	}
	if err := ensureUniqueName(existing, field.Name, ""); err != nil {
		return nil, err
	}
	if in.DisplayOrder == nil {
		field.DisplayOrder = nextFieldOrder(existing)
	}

	if err := uc.fields.CreateField(ctx, &field); err != nil {
		return nil, fmt.Errorf("create field: %w", err)
	}

	entry := historyEntry("metadata_field", field.ID, actorID, domain.ChangeCreated, now)
	entry.FieldName = field.Name
	entry.NewValue = string(field.DataType)
	uc.history.Record(ctx, entry)
	return &field, nil
}

func (uc *SchemaUseCase) GetField(ctx context.Context, id string) (*domain.MetadataField, error) {
	return uc.fields.GetField(ctx, id)
}

func (uc *SchemaUseCase) UpdateField(ctx context.Context, actorID, id string, in domain.FieldInput) (*domain.MetadataField, error) {
	current, err := uc.fields.GetField(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load field: %w", err)
	}

	updated, err := fieldFromInput(in)
	if err != nil {
		return nil, err
	}
	updated.ID = current.ID
	updated.ProfileID = current.ProfileID
	updated.CreatedBy = current.CreatedBy
	updated.CreatedAt = current.CreatedAt
	updated.UpdatedAt = uc.now()
	if in.DisplayOrder == nil {
		updated.DisplayOrder = current.DisplayOrder
	}

	if err := validateFieldDefinition(updated); err != nil {
		return nil, err
	}

	if !strings.EqualFold(updated.Name, current.Name) {
		siblings, err := uc.fields.ListFields(ctx, current.ProfileID, true)
		if err != nil {
			return nil, fmt.Errorf("list sibling fields: %w", err)
		}
		if err := ensureUniqueName(siblings, updated.Name, current.ID); err != nil {
			return nil, err
		}
	}

	if updated.DataType != current.DataType {
		inUse, err := uc.fields.FieldHasValues(ctx, current.ID)
		if err != nil {
			return nil, fmt.Errorf("check field usage: %w", err)
		}
		if inUse {
			return nil, &domain.FieldError{
				Kind:    domain.ErrFieldInUse,
				Entity:  "metadata_field",
				ID:      current.ID,
				Field:   "data_type",
				Message: "data type cannot change once values exist",
			}
		}
	}

	if err := uc.fields.UpdateField(ctx, &updated); err != nil {
		return nil, fmt.Errorf("update field: %w", err)
	}

	entry := historyEntry("metadata_field", updated.ID, actorID, domain.ChangeUpdated, updated.UpdatedAt)
	entry.FieldName = updated.Name
	if current.DataType != updated.DataType {
		entry.OldValue = string(current.DataType)
		entry.NewValue = string(updated.DataType)
	}
	uc.history.Record(ctx, entry)
	return &updated, nil
}

func (uc *SchemaUseCase) DeleteField(ctx context.Context, actorID, id string) error {
	field, err := uc.fields.GetField(ctx, id)
	if err != nil {
		return fmt.Errorf("load field: %w", err)
	}
	now := uc.now()
	if err := uc.fields.SoftDeleteField(ctx, id, now); err != nil {
		return fmt.Errorf("delete field: %w", err)
	}
	entry := historyEntry("metadata_field", id, actorID, domain.ChangeDeleted, now)
	entry.FieldName = field.Name
	uc.history.Record(ctx, entry)
	return nil
}

func (uc *SchemaUseCase) ListFields(ctx context.Context, profileID *string, includeDisabled bool) ([]domain.MetadataField, error) {
	return uc.fields.ListFields(ctx, normalizeProfileRef(profileID), includeDisabled)
}

func (uc *SchemaUseCase) ReorderFields(ctx context.Context, actorID string, profileID *string, orders []domain.DisplayOrder) error {
	if err := validateOrders("metadata_field", orders); err != nil {
		return err
	}
	now := uc.now()
	profileID = normalizeProfileRef(profileID)
	if err := uc.fields.ReorderFields(ctx, profileID, orders, now); err != nil {
		return fmt.Errorf("reorder fields: %w", err)
	}
	scope := "global"
	if profileID != nil {
		scope = *profileID
	}
	entry := historyEntry("profile", scope, actorID, domain.ChangeReordered, now)
	entry.Details = fmt.Sprintf("%d fields reordered", len(orders))
	uc.history.Record(ctx, entry)
	return nil
}

// CopyFields duplicates the source profile's definitions into the target. Values are not copied.
func (uc *SchemaUseCase) CopyFields(ctx context.Context, actorID, fromProfileID, toProfileID string) ([]domain.MetadataField, error) {
	if fromProfileID == toProfileID {
		return nil, domain.NewFieldError(domain.ErrValidation, "profile", "to_profile_id", "source and target profile are the same")
	}
	if _, err := uc.profiles.GetProfile(ctx, fromProfileID); err != nil {
		return nil, fmt.Errorf("load source profile: %w", err)
	}
	if _, err := uc.profiles.GetProfile(ctx, toProfileID); err != nil {
		return nil, fmt.Errorf("load target profile: %w", err)
	}

	source, err := uc.fields.ListFields(ctx, &fromProfileID, true)
	if err != nil {
		return nil, fmt.Errorf("list source fields: %w", err)
	}
	target, err := uc.fields.ListFields(ctx, &toProfileID, true)
	if err != nil {
		return nil, fmt.Errorf("list target fields: %w", err)
	}
	if len(source) == 0 {
		return []domain.MetadataField{}, nil
	}

	now := uc.now()
	base := nextFieldOrder(target) - 1
	copies := make([]domain.MetadataField, 0, len(source))
	for i, src := range source {
		if err := ensureUniqueName(target, src.Name, ""); err != nil {
			return nil, err
		}
		dup := src
		dup.ID = uuid.NewString()
		owner := toProfileID
		dup.ProfileID = &owner
		dup.DisplayOrder = base + i + 1
		dup.MinValue = cloneFloat(src.MinValue)
		dup.MaxValue = cloneFloat(src.MaxValue)
		dup.MaxLength = cloneInt(src.MaxLength)
		dup.CreatedBy = actorID
		dup.CreatedAt = now
		dup.UpdatedAt = now
		dup.DeletedAt = nil
		copies = append(copies, dup)
	}

	if err := uc.fields.InsertFields(ctx, copies); err != nil {
		return nil, fmt.Errorf("insert copied fields: %w", err)
	}

	entry := historyEntry("profile", toProfileID, actorID, domain.ChangeCopied, now)
	entry.Details = fmt.Sprintf("copied %d fields from profile %s", len(copies), fromProfileID)
	uc.history.Record(ctx, entry)
	return copies, nil
}

// applicableFields returns the enabled global fields followed by the profile's own.
func applicableFields(ctx context.Context, fields ports.FieldRepository, profileID string) ([]domain.MetadataField, error) {
	global, err := fields.ListFields(ctx, nil, false)
	if err != nil {
		return nil, fmt.Errorf("list global fields: %w", err)
	}
	owned, err := fields.ListFields(ctx, &profileID, false)
	if err != nil {
		return nil, fmt.Errorf("list profile fields: %w", err)
	}
	return append(global, owned...), nil
}

func fieldFromInput(in domain.FieldInput) (domain.MetadataField, error) {
	options, err := encodeOptions(in.Options)
	if err != nil {
		return domain.MetadataField{}, schemaError("options", err.Error())
	}
	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	name := strings.TrimSpace(in.Name)
	label := strings.TrimSpace(in.Label)
	if label == "" {
		label = name
	}
	f := domain.MetadataField{
		Name:           name,
		Label:          label,
		DataType:       domain.DataType(strings.ToLower(strings.TrimSpace(string(in.DataType)))),
		Required:       in.Required,
		DefaultValue:   strings.TrimSpace(in.DefaultValue),
		Pattern:        in.Pattern,
		PatternMessage: strings.TrimSpace(in.PatternMessage),
		MinValue:       cloneFloat(in.MinValue),
		MaxValue:       cloneFloat(in.MaxValue),
		MaxLength:      cloneInt(in.MaxLength),
		Options:        options,
		VisibleInList:  in.VisibleInList,
		Searchable:     in.Searchable,
		Enabled:        enabled,
	}
	if in.DisplayOrder != nil {
		f.DisplayOrder = *in.DisplayOrder
	}
	return f, nil
}

func ensureUniqueName(fields []domain.MetadataField, name, exceptID string) error {
	for _, f := range fields {
		if f.ID != exceptID && strings.EqualFold(f.Name, name) {
			return &domain.FieldError{
				Kind:    domain.ErrDuplicateCode,
				Entity:  "metadata_field",
				Field:   "name",
				Message: fmt.Sprintf("field %q already exists", name),
			}
		}
	}
	return nil
}

// nextFieldOrder is derived from the stored rows on every call.
func nextFieldOrder(fields []domain.MetadataField) int {
	maxOrder := 0
	for _, f := range fields {
		if f.DisplayOrder > maxOrder {
			maxOrder = f.DisplayOrder
		}
	}
	return maxOrder + 1
}

func validateOrders(entity string, orders []domain.DisplayOrder) error {
	if len(orders) == 0 {
		return domain.NewFieldError(domain.ErrValidation, entity, "orders", "at least one entry is required")
	}
	seen := make(map[string]struct{}, len(orders))
	for _, o := range orders {
		if o.ID == "" {
			return domain.NewFieldError(domain.ErrValidation, entity, "orders", "id is required")
		}
		if o.Order < 0 {
			return domain.NewFieldError(domain.ErrValidation, entity, "orders", "order must not be negative")
		}
		if _, dup := seen[o.ID]; dup {
			return domain.NewFieldError(domain.ErrValidation, entity, "orders", fmt.Sprintf("id %s listed twice", o.ID))
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

func normalizeProfileRef(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
