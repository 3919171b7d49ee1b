package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/ports"
)

var profileCodePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

var profileSorts = []string{"path", "code", "name", "created_at", "updated_at"}

type fieldCopier interface {
	CopyFields(ctx context.Context, actorID, fromProfileID, toProfileID string) ([]domain.MetadataField, error)
}

type ProfileUseCase struct {
	profiles ports.ProfileRepository
	schema   fieldCopier
	history  *HistoryRecorder
	logger   *slog.Logger
	now      func() time.Time
}

func NewProfileUseCase(
	profiles ports.ProfileRepository,
	schema fieldCopier,
	history *HistoryRecorder,
	logger *slog.Logger,
) *ProfileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileUseCase{
		profiles: profiles,
		schema:   schema,
		history:  history,
		logger:   logger,
		now:      utcNow,
	}
}

func (uc *ProfileUseCase) Create(ctx context.Context, actorID string, in domain.ProfileInput) (*domain.Profile, error) {
	in.EnterpriseID = strings.TrimSpace(in.EnterpriseID)
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if err := validateProfileInput(in); err != nil {
		return nil, err
	}

	path := in.Code
	parentID := normalizeProfileRef(in.ParentID)
	if parentID != nil {
		parent, err := uc.profiles.GetProfile(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("load parent profile: %w", err)
		}
		if err := checkParent(*parent, in.EnterpriseID); err != nil {
			return nil, err
		}
		path = domain.ChildPath(parent.Path, in.Code)
	}

	now := uc.now()
	profile := &domain.Profile{
		ID:              uuid.NewString(),
		EnterpriseID:    in.EnterpriseID,
		Code:            in.Code,
		Name:            in.Name,
		Description:     strings.TrimSpace(in.Description),
		ProfileType:     strings.TrimSpace(in.ProfileType),
		ParentID:        parentID,
		Path:            path,
		IsTemplate:      in.IsTemplate,
		RetentionMonths: in.RetentionMonths,
		Status:          domain.ProfileDraft,
		CreatedBy:       actorID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := uc.profiles.CreateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}

	entry := historyEntry("profile", profile.ID, actorID, domain.ChangeCreated, now)
	entry.NewValue = profile.Path
	uc.history.Record(ctx, entry)
	return profile, nil
}

func (uc *ProfileUseCase) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return uc.profiles.GetProfile(ctx, id)
}

// Update changes descriptive attributes only; code, parent and status are untouched.
func (uc *ProfileUseCase) Update(ctx context.Context, actorID, id string, in domain.ProfileUpdate) (*domain.Profile, error) {
	profile, err := uc.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.IsArchived() {
		return nil, domain.InvalidTransition("profile", id, string(profile.Status), "update")
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.NewFieldError(domain.ErrValidation, "profile", "name", "name is required")
		}
		profile.Name = name
	}
	if in.Description != nil {
		profile.Description = strings.TrimSpace(*in.Description)
	}
	if in.ProfileType != nil {
		profile.ProfileType = strings.TrimSpace(*in.ProfileType)
	}
	if in.IsTemplate != nil {
		profile.IsTemplate = *in.IsTemplate
	}
	if in.RetentionMonths != nil {
		if *in.RetentionMonths < 0 {
			return nil, domain.NewFieldError(domain.ErrValidation, "profile", "retention_months", "must not be negative")
		}
		profile.RetentionMonths = *in.RetentionMonths
	}
	profile.UpdatedAt = uc.now()

	if err := uc.profiles.UpdateProfile(ctx, profile); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	uc.history.Record(ctx, historyEntry("profile", id, actorID, domain.ChangeUpdated, profile.UpdatedAt))
	return profile, nil
}

func (uc *ProfileUseCase) Open(ctx context.Context, actorID, id string) (*domain.Profile, error) {
	return uc.transition(ctx, actorID, id, domain.ProfileEventOpen)
}

func (uc *ProfileUseCase) Close(ctx context.Context, actorID, id string) (*domain.Profile, error) {
	return uc.transition(ctx, actorID, id, domain.ProfileEventClose)
}

func (uc *ProfileUseCase) Archive(ctx context.Context, actorID, id string) (*domain.Profile, error) {
	return uc.transition(ctx, actorID, id, domain.ProfileEventArchive)
}

func (uc *ProfileUseCase) transition(ctx context.Context, actorID, id string, event domain.ProfileEvent) (*domain.Profile, error) {
	profile, err := uc.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	now := uc.now()
	tr, err := profile.Transition(event, now)
	if err != nil {
		return nil, err
	}
	if err := uc.profiles.TransitionProfile(ctx, id, tr, now); err != nil {
		return nil, fmt.Errorf("%s profile: %w", event, err)
	}

	profile.Status = tr.To
	profile.OpenedAt = tr.OpenedAt
	profile.ClosedAt = tr.ClosedAt
	profile.UpdatedAt = now

	entry := historyEntry("profile", id, actorID, domain.ChangeStatus, now)
	entry.FieldName = "status"
	entry.OldValue = string(tr.From)
	entry.NewValue = string(tr.To)
	uc.history.Record(ctx, entry)
	return profile, nil
}

// Move re-parents a profile; a nil or empty parentID makes it a root.
func (uc *ProfileUseCase) Move(ctx context.Context, actorID, id string, parentID *string) (*domain.Profile, error) {
	profile, err := uc.profiles.GetProfile(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.IsArchived() {
		return nil, domain.InvalidTransition("profile", id, string(profile.Status), "move")
	}

	parentID = normalizeProfileRef(parentID)
	newPath := profile.Code
	if parentID != nil {
		if *parentID == id {
			return nil, domain.NewFieldError(domain.ErrValidation, "profile", "parent_id", "a profile cannot be its own parent")
		}
		parent, err := uc.profiles.GetProfile(ctx, *parentID)
		if err != nil {
			return nil, fmt.Errorf("load new parent: %w", err)
		}
		if err := checkParent(*parent, profile.EnterpriseID); err != nil {
			return nil, err
		}
		if err := uc.ensureNotDescendant(ctx, id, parent); err != nil {
			return nil, err
		}
		newPath = domain.ChildPath(parent.Path, profile.Code)
	}

	if sameRef(profile.ParentID, parentID) {
		return profile, nil
	}

	now := uc.now()
	oldPath := profile.Path
	if err := uc.profiles.MoveProfile(ctx, id, parentID, oldPath, newPath, now); err != nil {
		return nil, fmt.Errorf("move profile: %w", err)
	}
	profile.ParentID = parentID
	profile.Path = newPath
	profile.UpdatedAt = now

	entry := historyEntry("profile", id, actorID, domain.ChangeMoved, now)
	entry.FieldName = "path"
	entry.OldValue = oldPath
	entry.NewValue = newPath
	uc.history.Record(ctx, entry)
	return profile, nil
}

// ensureNotDescendant walks up from candidate; reaching id means the move would close a cycle.
func (uc *ProfileUseCase) ensureNotDescendant(ctx context.Context, id string, candidate *domain.Profile) error {
	visited := map[string]struct{}{}
	current := candidate
	for current != nil {
		if current.ID == id {
			return domain.NewFieldError(domain.ErrValidation, "profile", "parent_id", "new parent is a descendant of the profile")
		}
		if _, seen := visited[current.ID]; seen {
			uc.logger.Error("profile_tree_cycle_detected", "profile_id", current.ID)
			return domain.NewFieldError(domain.ErrValidation, "profile", "parent_id", "ancestor chain contains a cycle")
		}
		visited[current.ID] = struct{}{}
		if current.ParentID == nil {
			return nil
		}
		next, err := uc.profiles.GetProfile(ctx, *current.ParentID)
		if err != nil {
			return fmt.Errorf("load ancestor: %w", err)
		}
		current = next
	}
	return nil
}

func (uc *ProfileUseCase) Delete(ctx context.Context, actorID, id string) error {
	if _, err := uc.profiles.GetProfile(ctx, id); err != nil {
		return fmt.Errorf("load profile: %w", err)
	}
	now := uc.now()
	if err := uc.profiles.SoftDeleteProfile(ctx, id, now); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	uc.history.Record(ctx, historyEntry("profile", id, actorID, domain.ChangeDeleted, now))
	return nil
}

func (uc *ProfileUseCase) List(ctx context.Context, filter domain.ProfileFilter, page domain.PageRequest) (domain.Page[domain.Profile], error) {
	return uc.profiles.ListProfiles(ctx, filter, page.Normalize(profileSorts...))
}

func (uc *ProfileUseCase) Children(ctx context.Context, id string) ([]domain.Profile, error) {
	if _, err := uc.profiles.GetProfile(ctx, id); err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	return uc.profiles.ListChildren(ctx, id)
}

// InstantiateTemplate creates a profile from a template's attributes and schema. Documents are not copied.
func (uc *ProfileUseCase) InstantiateTemplate(ctx context.Context, actorID, templateID string, in domain.TemplateInstance) (*domain.Profile, error) {
	template, err := uc.profiles.GetProfile(ctx, templateID)
	if err != nil {
		return nil, fmt.Errorf("load template: %w", err)
	}
	if !template.IsTemplate {
		return nil, domain.NewFieldError(domain.ErrValidation, "profile", "template_id", "profile is not a template")
	}

	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = template.Name
	}
	created, err := uc.Create(ctx, actorID, domain.ProfileInput{
		EnterpriseID:    in.EnterpriseID,
		Code:            in.Code,
		Name:            name,
		Description:     template.Description,
		ProfileType:     template.ProfileType,
		ParentID:        in.ParentID,
		RetentionMonths: template.RetentionMonths,
	})
	if err != nil {
		return nil, err
	}

	if _, err := uc.schema.CopyFields(ctx, actorID, templateID, created.ID); err != nil {
		// Best-effort compensation; the profile is still empty.
		if delErr := uc.profiles.SoftDeleteProfile(ctx, created.ID, uc.now()); delErr != nil {
			uc.logger.Error("template_rollback_failed", "profile_id", created.ID, "error", delErr)
		}
		return nil, fmt.Errorf("copy template schema: %w", err)
	}
	return created, nil
}

func validateProfileInput(in domain.ProfileInput) error {
	if in.EnterpriseID == "" {
		return domain.NewFieldError(domain.ErrValidation, "profile", "enterprise_id", "enterprise is required")
	}
	if !profileCodePattern.MatchString(in.Code) {
		return domain.NewFieldError(domain.ErrValidation, "profile", "code", "code must be 1-64 letters, digits, '.', '_' or '-'")
	}
	if in.Name == "" {
		return domain.NewFieldError(domain.ErrValidation, "profile", "name", "name is required")
	}
	if in.RetentionMonths < 0 {
		return domain.NewFieldError(domain.ErrValidation, "profile", "retention_months", "must not be negative")
	}
	return nil
}

func checkParent(parent domain.Profile, enterpriseID string) error {
	if parent.EnterpriseID != enterpriseID {
		return domain.NewFieldError(domain.ErrValidation, "profile", "parent_id", "parent belongs to another enterprise")
	}
	if parent.IsArchived() {
		return domain.NewFieldError(domain.ErrValidation, "profile", "parent_id", "parent profile is archived")
	}
	return nil
}

func sameRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
