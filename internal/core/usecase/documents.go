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

var documentSorts = []string{"display_order", "title", "created_at", "document_number", "expiry_date"}

type DocumentUseCase struct {
	documents ports.DocumentRepository
	profiles  ports.ProfileRepository
	fields    ports.FieldRepository
	values    ports.ValueRepository
	exporter  ports.RegisterExporter
	history   *HistoryRecorder
	now       func() time.Time
}

func NewDocumentUseCase(
	documents ports.DocumentRepository,
	profiles ports.ProfileRepository,
	fields ports.FieldRepository,
	values ports.ValueRepository,
	exporter ports.RegisterExporter,
	history *HistoryRecorder,
) *DocumentUseCase {
	return &DocumentUseCase{
		documents: documents,
		profiles:  profiles,
		fields:    fields,
		values:    values,
		exporter:  exporter,
		history:   history,
		now:       utcNow,
	}
}

func (uc *DocumentUseCase) Add(ctx context.Context, actorID, profileID string, in domain.DocumentInput) (*domain.ProfileDocument, error) {
	if _, err := uc.writableProfile(ctx, profileID, "add_document"); err != nil {
		return nil, err
	}
	if err := validateDocumentInput(in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.FileObjectID) == "" {
		return nil, domain.NewFieldError(domain.ErrValidation, "document", "file_object_id", "file object is required")
	}

	now := uc.now()
	doc := &domain.ProfileDocument{
		ID:           uuid.NewString(),
		ProfileID:    profileID,
		FileObjectID: strings.TrimSpace(in.FileObjectID),
		CreatedBy:    actorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	applyDocumentInput(doc, in)

	if err := uc.documents.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}

	entry := historyEntry("document", doc.ID, actorID, domain.ChangeCreated, now)
	entry.Details = "profile " + profileID
	uc.history.Record(ctx, entry)
	return doc, nil
}

func (uc *DocumentUseCase) Get(ctx context.Context, id string) (*domain.ProfileDocument, error) {
	return uc.documents.GetDocument(ctx, id)
}

func (uc *DocumentUseCase) Update(ctx context.Context, actorID, id string, in domain.DocumentInput) (*domain.ProfileDocument, error) {
	doc, err := uc.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if _, err := uc.writableProfile(ctx, doc.ProfileID, "update_document"); err != nil {
		return nil, err
	}
	if err := validateDocumentInput(in); err != nil {
		return nil, err
	}
	oldStatus := doc.Status
	applyDocumentInput(doc, in)
	doc.UpdatedAt = uc.now()

	if err := uc.documents.UpdateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("update document: %w", err)
	}

	entry := historyEntry("document", id, actorID, domain.ChangeUpdated, doc.UpdatedAt)
	if oldStatus != doc.Status {
		entry.FieldName = "status"
		entry.OldValue = oldStatus
		entry.NewValue = doc.Status
	}
	uc.history.Record(ctx, entry)
	return doc, nil
}

// Move changes the owning profile; metadata values stay as they are.
func (uc *DocumentUseCase) Move(ctx context.Context, actorID, id, profileID string) (*domain.ProfileDocument, error) {
	doc, err := uc.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if doc.ProfileID == profileID {
		return doc, nil
	}
	if _, err := uc.writableProfile(ctx, doc.ProfileID, "move_document"); err != nil {
		return nil, err
	}
	if _, err := uc.writableProfile(ctx, profileID, "move_document"); err != nil {
		return nil, err
	}

	now := uc.now()
	order, err := uc.documents.MoveDocument(ctx, id, profileID, now)
	if err != nil {
		return nil, fmt.Errorf("move document: %w", err)
	}

	entry := historyEntry("document", id, actorID, domain.ChangeMoved, now)
	entry.FieldName = "profile_id"
	entry.OldValue = doc.ProfileID
	entry.NewValue = profileID
	uc.history.Record(ctx, entry)

	doc.ProfileID = profileID
	doc.DisplayOrder = order
	doc.UpdatedAt = now
	return doc, nil
}

// Copy creates a new placement of the same file object with copies of its metadata values.
// An empty profileID copies within the document's own profile.
func (uc *DocumentUseCase) Copy(ctx context.Context, actorID, id, profileID string) (*domain.ProfileDocument, error) {
	src, err := uc.documents.GetDocument(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	if profileID == "" {
		profileID = src.ProfileID
	}
	if _, err := uc.writableProfile(ctx, profileID, "copy_document"); err != nil {
		return nil, err
	}

	stored, err := uc.values.ListValues(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load values: %w", err)
	}

	now := uc.now()
	dup := *src
	dup.ID = uuid.NewString()
	dup.ProfileID = profileID
	dup.CreatedBy = actorID
	dup.CreatedAt = now
	dup.UpdatedAt = now
	dup.DeletedAt = nil

	values := make([]domain.MetadataValue, 0, len(stored))
	for _, fv := range stored {
		v := fv.Value
		v.ID = uuid.NewString()
		v.DocumentID = dup.ID
		v.CreatedBy = actorID
		v.UpdatedBy = actorID
		v.CreatedAt = now
		v.UpdatedAt = now
		values = append(values, v)
	}

	if err := uc.documents.CopyDocument(ctx, &dup, values); err != nil {
		return nil, fmt.Errorf("copy document: %w", err)
	}

	entry := historyEntry("document", dup.ID, actorID, domain.ChangeCopied, now)
	entry.Details = fmt.Sprintf("copied from document %s with %d values", id, len(values))
	uc.history.Record(ctx, entry)
	return &dup, nil
}

func (uc *DocumentUseCase) Reorder(ctx context.Context, actorID, profileID string, orders []domain.DisplayOrder) error {
	if _, err := uc.writableProfile(ctx, profileID, "reorder_documents"); err != nil {
		return err
	}
	if err := validateOrders("document", orders); err != nil {
		return err
	}
	now := uc.now()
	if err := uc.documents.ReorderDocuments(ctx, profileID, orders, now); err != nil {
		return fmt.Errorf("reorder documents: %w", err)
	}
	entry := historyEntry("profile", profileID, actorID, domain.ChangeReordered, now)
	entry.Details = fmt.Sprintf("%d documents reordered", len(orders))
	uc.history.Record(ctx, entry)
	return nil
}

// Remove soft-deletes the placement. The file object belongs to the storage collaborator.
func (uc *DocumentUseCase) Remove(ctx context.Context, actorID, id string) error {
	doc, err := uc.documents.GetDocument(ctx, id)
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}
	if _, err := uc.writableProfile(ctx, doc.ProfileID, "remove_document"); err != nil {
		return err
	}
	now := uc.now()
	if err := uc.documents.SoftDeleteDocument(ctx, id, now); err != nil {
		return fmt.Errorf("remove document: %w", err)
	}
	uc.history.Record(ctx, historyEntry("document", id, actorID, domain.ChangeDeleted, now))
	return nil
}

func (uc *DocumentUseCase) List(ctx context.Context, profileID string, page domain.PageRequest) (domain.Page[domain.ProfileDocument], error) {
	if _, err := uc.profiles.GetProfile(ctx, profileID); err != nil {
		return domain.Page[domain.ProfileDocument]{}, fmt.Errorf("load profile: %w", err)
	}
	return uc.documents.ListDocuments(ctx, profileID, page.Normalize(documentSorts...))
}

// ExportRegister renders every document of the profile with its list-visible metadata.
func (uc *DocumentUseCase) ExportRegister(ctx context.Context, profileID string) ([]byte, error) {
	profile, err := uc.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	fields, err := applicableFields(ctx, uc.fields, profileID)
	if err != nil {
		return nil, err
	}
	visible := make([]domain.MetadataField, 0, len(fields))
	for _, f := range fields {
		if f.VisibleInList {
			visible = append(visible, f)
		}
	}

	register := domain.DocumentRegister{Profile: *profile, Fields: visible}
	page := domain.PageRequest{Page: 1, Size: domain.MaxPageSize}.Normalize(documentSorts...)
	for {
		batch, err := uc.documents.ListDocuments(ctx, profileID, page)
		if err != nil {
			return nil, fmt.Errorf("list documents: %w", err)
		}
		for _, doc := range batch.Items {
			stored, err := uc.values.ListValues(ctx, doc.ID)
			if err != nil {
				return nil, fmt.Errorf("load values for %s: %w", doc.ID, err)
			}
			row := domain.RegisterRow{Document: doc, Values: make(map[string]domain.MetadataValue, len(stored))}
			for _, fv := range stored {
				row.Values[fv.Field.ID] = fv.Value
			}
			register.Rows = append(register.Rows, row)
		}
		if len(batch.Items) < page.Size || page.Offset()+len(batch.Items) >= batch.Total {
			break
		}
		page.Page++
	}

	out, err := uc.exporter.ExportRegister(ctx, register)
	if err != nil {
		return nil, fmt.Errorf("render register: %w", err)
	}
	return out, nil
}

func (uc *DocumentUseCase) writableProfile(ctx context.Context, profileID, event string) (*domain.Profile, error) {
	profile, err := uc.profiles.GetProfile(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	if profile.IsArchived() {
		return nil, domain.InvalidTransition("profile", profileID, string(profile.Status), event)
	}
	return profile, nil
}

func validateDocumentInput(in domain.DocumentInput) error {
	if strings.TrimSpace(in.Title) == "" {
		return domain.NewFieldError(domain.ErrValidation, "document", "title", "title is required")
	}
	if in.IssueDate != nil && in.ExpiryDate != nil && in.ExpiryDate.Before(*in.IssueDate) {
		return domain.NewFieldError(domain.ErrValidation, "document", "expiry_date", "expiry date precedes issue date")
	}
	return nil
}

func applyDocumentInput(doc *domain.ProfileDocument, in domain.DocumentInput) {
	doc.Title = strings.TrimSpace(in.Title)
	doc.Description = strings.TrimSpace(in.Description)
	doc.DocumentType = strings.TrimSpace(in.DocumentType)
	doc.DocumentNumber = strings.TrimSpace(in.DocumentNumber)
	doc.IssueDate = in.IssueDate
	doc.ExpiryDate = in.ExpiryDate
	doc.IssuingAuthority = strings.TrimSpace(in.IssuingAuthority)
	doc.Notes = strings.TrimSpace(in.Notes)
	doc.Status = strings.ToLower(strings.TrimSpace(in.Status))
	if doc.Status == "" {
		doc.Status = domain.DocumentStatusDraft
	}
}
