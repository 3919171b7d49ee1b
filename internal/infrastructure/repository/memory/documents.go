package memory

import (
	"context"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (s *Store) CreateDocument(_ context.Context, doc *domain.ProfileDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveProfile(doc.ProfileID); !ok {
		return domain.NotFound("profile", doc.ProfileID)
	}
	doc.DisplayOrder = s.nextDocumentOrder(doc.ProfileID)
	s.documents[doc.ID] = *doc
	return nil
}

func (s *Store) CopyDocument(_ context.Context, doc *domain.ProfileDocument, values []domain.MetadataValue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.liveProfile(doc.ProfileID); !ok {
		return domain.NotFound("profile", doc.ProfileID)
	}
	doc.DisplayOrder = s.nextDocumentOrder(doc.ProfileID)
	s.documents[doc.ID] = *doc
	for _, v := range values {
		v.DocumentID = doc.ID
		s.values[v.ID] = copyValue(v)
	}
	return nil
}

func (s *Store) GetDocument(_ context.Context, id string) (*domain.ProfileDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.liveDocument(id)
	if !ok {
		return nil, domain.NotFound("document", id)
	}
	return &doc, nil
}

func (s *Store) UpdateDocument(_ context.Context, doc *domain.ProfileDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.liveDocument(doc.ID)
	if !ok {
		return domain.NotFound("document", doc.ID)
	}
	updated := *doc
	updated.ProfileID = current.ProfileID
	updated.FileObjectID = current.FileObjectID
	updated.DisplayOrder = current.DisplayOrder
	updated.CreatedBy = current.CreatedBy
	updated.CreatedAt = current.CreatedAt
	s.documents[doc.ID] = updated
	return nil
}

func (s *Store) MoveDocument(_ context.Context, id, profileID string, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.liveDocument(id)
	if !ok {
		return 0, domain.NotFound("document", id)
	}
	if _, ok := s.liveProfile(profileID); !ok {
		return 0, domain.NotFound("profile", profileID)
	}
	doc.DisplayOrder = s.nextDocumentOrder(profileID)
	doc.ProfileID = profileID
	doc.UpdatedAt = at
	s.documents[id] = doc
	return doc.DisplayOrder, nil
}

func (s *Store) ReorderDocuments(_ context.Context, profileID string, orders []domain.DisplayOrder, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range orders {
		doc, ok := s.liveDocument(o.ID)
		if !ok || doc.ProfileID != profileID {
			return domain.NotFound("document", o.ID)
		}
	}
	for _, o := range orders {
		doc := s.documents[o.ID]
		doc.DisplayOrder = o.Order
		doc.UpdatedAt = at
		s.documents[o.ID] = doc
	}
	return nil
}

func (s *Store) SoftDeleteDocument(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.liveDocument(id)
	if !ok {
		return domain.NotFound("document", id)
	}
	deletedAt := at
	doc.DeletedAt = &deletedAt
	doc.UpdatedAt = at
	s.documents[id] = doc
	return nil
}

func (s *Store) ListDocuments(_ context.Context, profileID string, page domain.PageRequest) (domain.Page[domain.ProfileDocument], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.ProfileDocument, 0)
	for _, doc := range s.documents {
		if doc.DeletedAt != nil || doc.ProfileID != profileID {
			continue
		}
		if page.Query != "" && !containsFold(doc.Title, page.Query) && !containsFold(doc.DocumentNumber, page.Query) {
			continue
		}
		matched = append(matched, doc)
	}
	return paginate(matched, page, documentLess(page.Sort)), nil
}

func (s *Store) liveDocument(id string) (domain.ProfileDocument, bool) {
	doc, ok := s.documents[id]
	if !ok || doc.DeletedAt != nil {
		return domain.ProfileDocument{}, false
	}
	return doc, true
}

// nextDocumentOrder is derived from the stored rows, never from a cached counter.
func (s *Store) nextDocumentOrder(profileID string) int {
	maxOrder := 0
	for _, doc := range s.documents {
		if doc.DeletedAt == nil && doc.ProfileID == profileID && doc.DisplayOrder > maxOrder {
			maxOrder = doc.DisplayOrder
		}
	}
	return maxOrder + 1
}

func documentLess(key string) func(a, b domain.ProfileDocument) bool {
	switch key {
	case "title":
		return func(a, b domain.ProfileDocument) bool { return a.Title < b.Title }
	case "created_at":
		return func(a, b domain.ProfileDocument) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "document_number":
		return func(a, b domain.ProfileDocument) bool { return a.DocumentNumber < b.DocumentNumber }
	case "expiry_date":
		return func(a, b domain.ProfileDocument) bool { return timeLess(a.ExpiryDate, b.ExpiryDate) }
	default:
		return func(a, b domain.ProfileDocument) bool { return a.DisplayOrder < b.DisplayOrder }
	}
}
