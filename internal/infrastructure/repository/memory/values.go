package memory

import (
	"context"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

// UpsertValues keeps at most one live row per (document, field); an existing
// row keeps its id and creation stamp.
func (s *Store) UpsertValues(_ context.Context, documentID string, values []domain.MetadataValue, clearFieldIDs []string, actorID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveDocument(documentID); !ok {
		return domain.NotFound("document", documentID)
	}
	for _, v := range values {
		if _, ok := s.liveField(v.FieldID); !ok {
			return domain.NotFound("metadata_field", v.FieldID)
		}
	}

	for _, v := range values {
		stored := copyValue(v)
		stored.DocumentID = documentID
		stored.UpdatedBy = actorID
		stored.UpdatedAt = at
		if current, ok := s.liveValue(documentID, v.FieldID); ok {
			stored.ID = current.ID
			stored.CreatedBy = current.CreatedBy
			stored.CreatedAt = current.CreatedAt
		}
		s.values[stored.ID] = stored
	}
	for _, fieldID := range clearFieldIDs {
		current, ok := s.liveValue(documentID, fieldID)
		if !ok {
			continue
		}
		deletedAt := at
		current.DeletedAt = &deletedAt
		current.UpdatedBy = actorID
		current.UpdatedAt = at
		s.values[current.ID] = current
	}
	return nil
}

func (s *Store) GetValue(_ context.Context, documentID, fieldID string) (*domain.MetadataValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.liveValue(documentID, fieldID)
	if !ok {
		return nil, domain.NotFound("metadata_value", fieldID)
	}
	out := copyValue(v)
	return &out, nil
}

func (s *Store) ListValues(_ context.Context, documentID string) ([]domain.FieldValue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	fields := make([]domain.MetadataField, 0)
	byField := make(map[string]domain.MetadataValue)
	for _, v := range s.values {
		if v.DeletedAt != nil || v.DocumentID != documentID {
			continue
		}
		f, ok := s.liveField(v.FieldID)
		if !ok {
			continue
		}
		fields = append(fields, f)
		byField[f.ID] = copyValue(v)
	}
	sortFields(fields)

	out := make([]domain.FieldValue, 0, len(fields))
	for _, f := range fields {
		out = append(out, domain.FieldValue{Field: f, Value: byField[f.ID]})
	}
	return out, nil
}

func (s *Store) liveValue(documentID, fieldID string) (domain.MetadataValue, bool) {
	for _, v := range s.values {
		if v.DeletedAt == nil && v.DocumentID == documentID && v.FieldID == fieldID {
			return v, true
		}
	}
	return domain.MetadataValue{}, false
}

func copyValue(v domain.MetadataValue) domain.MetadataValue {
	out := v
	out.StringVal = cloneString(v.StringVal)
	out.JSONVal = cloneString(v.JSONVal)
	out.DateVal = cloneTime(v.DateVal)
	out.DeletedAt = cloneTime(v.DeletedAt)
	if v.NumberVal != nil {
		n := *v.NumberVal
		out.NumberVal = &n
	}
	if v.BoolVal != nil {
		b := *v.BoolVal
		out.BoolVal = &b
	}
	return out
}
