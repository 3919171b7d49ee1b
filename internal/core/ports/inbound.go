package ports

import (
	"context"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

// ProfileService is the inbound contract of the profile tree manager.
type ProfileService interface {
	Create(ctx context.Context, actorID string, in domain.ProfileInput) (*domain.Profile, error)
	Get(ctx context.Context, id string) (*domain.Profile, error)
	Update(ctx context.Context, actorID, id string, in domain.ProfileUpdate) (*domain.Profile, error)
	Open(ctx context.Context, actorID, id string) (*domain.Profile, error)
	Close(ctx context.Context, actorID, id string) (*domain.Profile, error)
	Archive(ctx context.Context, actorID, id string) (*domain.Profile, error)
	Move(ctx context.Context, actorID, id string, parentID *string) (*domain.Profile, error)
	Delete(ctx context.Context, actorID, id string) error
	List(ctx context.Context, filter domain.ProfileFilter, page domain.PageRequest) (domain.Page[domain.Profile], error)
	Children(ctx context.Context, id string) ([]domain.Profile, error)
	InstantiateTemplate(ctx context.Context, actorID, templateID string, in domain.TemplateInstance) (*domain.Profile, error)
}

// SchemaService is the inbound contract of the metadata schema store.
type SchemaService interface {
	CreateField(ctx context.Context, actorID string, in domain.FieldInput) (*domain.MetadataField, error)
	GetField(ctx context.Context, id string) (*domain.MetadataField, error)
	UpdateField(ctx context.Context, actorID, id string, in domain.FieldInput) (*domain.MetadataField, error)
	DeleteField(ctx context.Context, actorID, id string) error
	ListFields(ctx context.Context, profileID *string, includeDisabled bool) ([]domain.MetadataField, error)
	ReorderFields(ctx context.Context, actorID string, profileID *string, orders []domain.DisplayOrder) error
	CopyFields(ctx context.Context, actorID, fromProfileID, toProfileID string) ([]domain.MetadataField, error)
}

// ValueService is the inbound contract of the metadata value store.
type ValueService interface {
	SetValues(ctx context.Context, actorID, documentID string, inputs []domain.FieldValueInput) ([]domain.FieldValue, error)
	GetValues(ctx context.Context, documentID string) ([]domain.FieldValue, error)
	DeleteValue(ctx context.Context, actorID, documentID, fieldID string) error
}

// DocumentService is the inbound contract of the document placement manager.
type DocumentService interface {
	Add(ctx context.Context, actorID, profileID string, in domain.DocumentInput) (*domain.ProfileDocument, error)
	Get(ctx context.Context, id string) (*domain.ProfileDocument, error)
	Update(ctx context.Context, actorID, id string, in domain.DocumentInput) (*domain.ProfileDocument, error)
	Move(ctx context.Context, actorID, id, profileID string) (*domain.ProfileDocument, error)
	Copy(ctx context.Context, actorID, id, profileID string) (*domain.ProfileDocument, error)
	Reorder(ctx context.Context, actorID, profileID string, orders []domain.DisplayOrder) error
	Remove(ctx context.Context, actorID, id string) error
	List(ctx context.Context, profileID string, page domain.PageRequest) (domain.Page[domain.ProfileDocument], error)
	ExportRegister(ctx context.Context, profileID string) ([]byte, error)
}

// LoanService is the inbound contract of the loan workflow.
type LoanService interface {
	Request(ctx context.Context, actorID string, in domain.LoanRequest) (*domain.Loan, error)
	Get(ctx context.Context, id string) (*domain.Loan, error)
	List(ctx context.Context, filter domain.LoanFilter, page domain.PageRequest) (domain.Page[domain.Loan], error)
	Approve(ctx context.Context, actorID, id string) (*domain.Loan, error)
	Reject(ctx context.Context, actorID, id, reason string) (*domain.Loan, error)
	MarkBorrowed(ctx context.Context, actorID, id string) (*domain.Loan, error)
	Return(ctx context.Context, actorID, id string, itemIDs []string) (*domain.Loan, error)
	Overdue(ctx context.Context, enterpriseID string, now time.Time) ([]domain.Loan, error)
}

// ApprovalService is the inbound contract of the document approval workflow.
type ApprovalService interface {
	Request(ctx context.Context, actorID, documentID, notes string) (*domain.Approval, error)
	Get(ctx context.Context, id string) (*domain.Approval, error)
	ListByDocument(ctx context.Context, documentID string) ([]domain.Approval, error)
	Approve(ctx context.Context, actorID, id, notes string) (*domain.Approval, error)
	Reject(ctx context.Context, actorID, id, reason string) (*domain.Approval, error)
}
