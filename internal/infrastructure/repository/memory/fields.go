package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (s *Store) CreateField(_ context.Context, field *domain.MetadataField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkFieldName(*field); err != nil {
		return err
	}
	s.fields[field.ID] = copyField(*field)
	return nil
}

func (s *Store) GetField(_ context.Context, id string) (*domain.MetadataField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.liveField(id)
	if !ok {
		return nil, domain.NotFound("metadata_field", id)
	}
	return &f, nil
}

func (s *Store) UpdateField(_ context.Context, field *domain.MetadataField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveField(field.ID); !ok {
		return domain.NotFound("metadata_field", field.ID)
	}
	if err := s.checkFieldName(*field); err != nil {
		return err
	}
	s.fields[field.ID] = copyField(*field)
	return nil
}

func (s *Store) SoftDeleteField(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.liveField(id)
	if !ok {
		return domain.NotFound("metadata_field", id)
	}
	deletedAt := at
	f.DeletedAt = &deletedAt
	f.UpdatedAt = at
	s.fields[id] = f
	return nil
}

func (s *Store) ListFields(_ context.Context, profileID *string, includeDisabled bool) ([]domain.MetadataField, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.MetadataField, 0)
	for _, f := range s.fields {
		if f.DeletedAt != nil || !sameScope(f.ProfileID, profileID) {
			continue
		}
		if !includeDisabled && !f.Enabled {
			continue
		}
		out = append(out, copyField(f))
	}
	sortFields(out)
	return out, nil
}

func (s *Store) InsertFields(_ context.Context, fields []domain.MetadataField) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if err := s.checkFieldName(f); err != nil {
			return err
		}
		key := scopeKey(f.ProfileID) + "/" + strings.ToLower(f.Name)
		if _, dup := batch[key]; dup {
			return duplicateFieldName(f.Name)
		}
		batch[key] = struct{}{}
	}
	for _, f := range fields {
		s.fields[f.ID] = copyField(f)
	}
	return nil
}

func (s *Store) ReorderFields(_ context.Context, profileID *string, orders []domain.DisplayOrder, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		f, ok := s.liveField(o.ID)
		if !ok || !sameScope(f.ProfileID, profileID) {
			return domain.NotFound("metadata_field", o.ID)
		}
	}
	for _, o := range orders {
		f := s.fields[o.ID]
		f.DisplayOrder = o.Order
		f.UpdatedAt = at
		s.fields[o.ID] = f
	}
	return nil
}

// FieldHasValues counts cleared rows too; they keep the slot of the old type.
func (s *Store) FieldHasValues(_ context.Context, fieldID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.values {
		if v.FieldID == fieldID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) liveField(id string) (domain.MetadataField, bool) {
	f, ok := s.fields[id]
	if !ok || f.DeletedAt != nil {
		return domain.MetadataField{}, false
	}
	return copyField(f), true
}

func (s *Store) checkFieldName(field domain.MetadataField) error {
	for _, f := range s.fields {
		if f.DeletedAt != nil || f.ID == field.ID || !sameScope(f.ProfileID, field.ProfileID) {
			continue
		}
		if strings.EqualFold(f.Name, field.Name) {
			return duplicateFieldName(field.Name)
		}
	}
	return nil
}

func duplicateFieldName(name string) error {
	return &domain.FieldError{
		Kind:    domain.ErrDuplicateCode,
		Entity:  "metadata_field",
		Field:   "name",
		Message: fmt.Sprintf("field %q already exists", name),
	}
}

func scopeKey(profileID *string) string {
	if profileID == nil {
		return ""
	}
	return *profileID
}

func copyField(f domain.MetadataField) domain.MetadataField {
	out := f
	out.ProfileID = cloneString(f.ProfileID)
	if f.MinValue != nil {
		v := *f.MinValue
		out.MinValue = &v
	}
	if f.MaxValue != nil {
		v := *f.MaxValue
		out.MaxValue = &v
	}
	if f.MaxLength != nil {
		v := *f.MaxLength
		out.MaxLength = &v
	}
	out.DeletedAt = cloneTime(f.DeletedAt)
	return out
}

// sortFields orders global fields first, then by display order and name.
func sortFields(fields []domain.MetadataField) {
	sort.SliceStable(fields, func(i, j int) bool {
		a, b := fields[i], fields[j]
		if (a.ProfileID == nil) != (b.ProfileID == nil) {
			return a.ProfileID == nil
		}
		if a.DisplayOrder != b.DisplayOrder {
			return a.DisplayOrder < b.DisplayOrder
		}
		return a.Name < b.Name
	})
}
