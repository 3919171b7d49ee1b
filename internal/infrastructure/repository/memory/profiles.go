package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (s *Store) CreateProfile(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.DeletedAt == nil && p.EnterpriseID == profile.EnterpriseID && p.Code == profile.Code {
			return &domain.FieldError{
				Kind:    domain.ErrDuplicateCode,
				Entity:  "profile",
				Field:   "code",
				Message: fmt.Sprintf("code %q already in use", profile.Code),
			}
		}
	}
	stored := *profile
	stored.ParentID = cloneString(profile.ParentID)
	s.profiles[profile.ID] = stored
	return nil
}

func (s *Store) GetProfile(_ context.Context, id string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.liveProfile(id)
	if !ok {
		return nil, domain.NotFound("profile", id)
	}
	return &p, nil
}

func (s *Store) UpdateProfile(_ context.Context, profile *domain.Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.liveProfile(profile.ID)
	if !ok {
		return domain.NotFound("profile", profile.ID)
	}
	p.Name = profile.Name
	p.Description = profile.Description
	p.ProfileType = profile.ProfileType
	p.IsTemplate = profile.IsTemplate
	p.RetentionMonths = profile.RetentionMonths
	p.UpdatedAt = profile.UpdatedAt
	s.profiles[p.ID] = p
	return nil
}

func (s *Store) TransitionProfile(_ context.Context, id string, tr domain.ProfileTransition, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.liveProfile(id)
	if !ok {
		return domain.NotFound("profile", id)
	}
	if p.Status != tr.From {
		return domain.InvalidTransition("profile", id, string(p.Status), string(tr.To))
	}
	p.Status = tr.To
	p.OpenedAt = cloneTime(tr.OpenedAt)
	p.ClosedAt = cloneTime(tr.ClosedAt)
	p.UpdatedAt = at
	s.profiles[id] = p
	return nil
}

func (s *Store) MoveProfile(_ context.Context, id string, parentID *string, oldPath, newPath string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.liveProfile(id)
	if !ok {
		return domain.NotFound("profile", id)
	}
	if p.Path != oldPath {
		return domain.WrapError(domain.ErrPersistence, "move profile", fmt.Errorf("path of %s changed concurrently", id))
	}
	p.ParentID = cloneString(parentID)
	s.profiles[id] = p

	for key, other := range s.profiles {
		if other.DeletedAt != nil || other.EnterpriseID != p.EnterpriseID {
			continue
		}
		rebased := domain.RebasePath(other.Path, oldPath, newPath)
		if rebased == other.Path {
			continue
		}
		other.Path = rebased
		other.UpdatedAt = at
		s.profiles[key] = other
	}
	return nil
}

func (s *Store) SoftDeleteProfile(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.liveProfile(id)
	if !ok {
		return domain.NotFound("profile", id)
	}
	for _, child := range s.profiles {
		if child.DeletedAt == nil && child.ParentID != nil && *child.ParentID == id {
			return &domain.FieldError{Kind: domain.ErrNotEmpty, Entity: "profile", ID: id, Message: "profile has child profiles"}
		}
	}
	for _, doc := range s.documents {
		if doc.DeletedAt == nil && doc.ProfileID == id {
			return &domain.FieldError{Kind: domain.ErrNotEmpty, Entity: "profile", ID: id, Message: "profile still holds documents"}
		}
	}
	deletedAt := at
	p.DeletedAt = &deletedAt
	p.UpdatedAt = at
	s.profiles[id] = p
	return nil
}

func (s *Store) ListProfiles(_ context.Context, filter domain.ProfileFilter, page domain.PageRequest) (domain.Page[domain.Profile], error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]domain.Profile, 0)
	for _, p := range s.profiles {
		if p.DeletedAt != nil || !profileMatches(p, filter, page.Query) {
			continue
		}
		matched = append(matched, p)
	}
	return paginate(matched, page, profileLess(page.Sort)), nil
}

func (s *Store) ListChildren(_ context.Context, parentID string) ([]domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	children := make([]domain.Profile, 0)
	for _, p := range s.profiles {
		if p.DeletedAt == nil && p.ParentID != nil && *p.ParentID == parentID {
			children = append(children, p)
		}
	}
	page := paginate(children, domain.PageRequest{Page: 1, Size: len(children) + 1}, profileLess("code"))
	return page.Items, nil
}

func (s *Store) liveProfile(id string) (domain.Profile, bool) {
	p, ok := s.profiles[id]
	if !ok || p.DeletedAt != nil {
		return domain.Profile{}, false
	}
	return p, true
}

func profileMatches(p domain.Profile, filter domain.ProfileFilter, query string) bool {
	if filter.EnterpriseID != "" && p.EnterpriseID != filter.EnterpriseID {
		return false
	}
	if filter.RootsOnly && p.ParentID != nil {
		return false
	}
	if filter.ParentID != nil && (p.ParentID == nil || *p.ParentID != *filter.ParentID) {
		return false
	}
	if filter.Status != "" && p.Status != filter.Status {
		return false
	}
	if filter.ProfileType != "" && !strings.EqualFold(p.ProfileType, filter.ProfileType) {
		return false
	}
	if filter.TemplateOnly && !p.IsTemplate {
		return false
	}
	if query != "" && !containsFold(p.Code, query) && !containsFold(p.Name, query) && !containsFold(p.Path, query) {
		return false
	}
	return true
}

func profileLess(key string) func(a, b domain.Profile) bool {
	switch key {
	case "code":
		return func(a, b domain.Profile) bool { return a.Code < b.Code }
	case "name":
		return func(a, b domain.Profile) bool { return a.Name < b.Name }
	case "created_at":
		return func(a, b domain.Profile) bool { return a.CreatedAt.Before(b.CreatedAt) }
	case "updated_at":
		return func(a, b domain.Profile) bool { return a.UpdatedAt.Before(b.UpdatedAt) }
	default:
		return func(a, b domain.Profile) bool { return a.Path < b.Path }
	}
}
