package ports

import (
	"context"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

// ProfileRepository persists the profile tree.
type ProfileRepository interface {
	CreateProfile(ctx context.Context, profile *domain.Profile) error
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateProfile(ctx context.Context, profile *domain.Profile) error
	// TransitionProfile stores the transition only if the stored status still equals tr.From.
	TransitionProfile(ctx context.Context, id string, tr domain.ProfileTransition, at time.Time) error
	// MoveProfile re-parents id and rewrites the paths of its whole subtree atomically.
	MoveProfile(ctx context.Context, id string, parentID *string, oldPath, newPath string, at time.Time) error
	// SoftDeleteProfile fails with domain.ErrNotEmpty while live children or documents exist.
	SoftDeleteProfile(ctx context.Context, id string, at time.Time) error
	ListProfiles(ctx context.Context, filter domain.ProfileFilter, page domain.PageRequest) (domain.Page[domain.Profile], error)
	ListChildren(ctx context.Context, parentID string) ([]domain.Profile, error)
}

// FieldRepository persists metadata field definitions.
type FieldRepository interface {
	CreateField(ctx context.Context, field *domain.MetadataField) error
	GetField(ctx context.Context, id string) (*domain.MetadataField, error)
	UpdateField(ctx context.Context, field *domain.MetadataField) error
	SoftDeleteField(ctx context.Context, id string, at time.Time) error
	// ListFields returns the fields owned by profileID; a nil profileID lists global fields.
	ListFields(ctx context.Context, profileID *string, includeDisabled bool) ([]domain.MetadataField, error)
	// InsertFields stores a batch of new definitions in one transaction.
	InsertFields(ctx context.Context, fields []domain.MetadataField) error
	ReorderFields(ctx context.Context, profileID *string, orders []domain.DisplayOrder, at time.Time) error
	FieldHasValues(ctx context.Context, fieldID string) (bool, error)
}

// ValueRepository persists typed metadata values, one live row per (document, field).
type ValueRepository interface {
	// UpsertValues writes values and clears clearFieldIDs for documentID in one transaction.
	UpsertValues(ctx context.Context, documentID string, values []domain.MetadataValue, clearFieldIDs []string, actorID string, at time.Time) error
	GetValue(ctx context.Context, documentID, fieldID string) (*domain.MetadataValue, error)
	ListValues(ctx context.Context, documentID string) ([]domain.FieldValue, error)
}

// DocumentRepository persists document placement inside profiles.
type DocumentRepository interface {
	// CreateDocument appends doc at the end of its profile; DisplayOrder is set on return.
	CreateDocument(ctx context.Context, doc *domain.ProfileDocument) error
	// CopyDocument creates doc together with copies of its metadata values.
	CopyDocument(ctx context.Context, doc *domain.ProfileDocument, values []domain.MetadataValue) error
	GetDocument(ctx context.Context, id string) (*domain.ProfileDocument, error)
	UpdateDocument(ctx context.Context, doc *domain.ProfileDocument) error
	MoveDocument(ctx context.Context, id, profileID string, at time.Time) (int, error)
	ReorderDocuments(ctx context.Context, profileID string, orders []domain.DisplayOrder, at time.Time) error
	SoftDeleteDocument(ctx context.Context, id string, at time.Time) error
	ListDocuments(ctx context.Context, profileID string, page domain.PageRequest) (domain.Page[domain.ProfileDocument], error)
}

// LoanRepository persists loans and their items.
type LoanRepository interface {
	CreateLoan(ctx context.Context, loan *domain.Loan) error
	GetLoan(ctx context.Context, id string) (*domain.Loan, error)
	// UpdateLoanStatus stores loan's status fields only if the stored status equals expected.
	UpdateLoanStatus(ctx context.Context, loan *domain.Loan, expected domain.LoanStatus) error
	// ReturnLoanItems marks items returned (already returned items keep their timestamp) and
	// completes the loan once every item is back. It reports how many items this call flipped;
	// a loan that is already returned is left untouched.
	ReturnLoanItems(ctx context.Context, loanID string, itemIDs []string, at time.Time) (*domain.Loan, int, error)
	ListLoans(ctx context.Context, filter domain.LoanFilter, page domain.PageRequest) (domain.Page[domain.Loan], error)
	ListBorrowedDueBefore(ctx context.Context, enterpriseID string, before time.Time) ([]domain.Loan, error)
}

// ApprovalRepository persists document approvals.
type ApprovalRepository interface {
	CreateApproval(ctx context.Context, approval *domain.Approval) error
	GetApproval(ctx context.Context, id string) (*domain.Approval, error)
	// DecideApproval stores the decision only if the stored status is still pending.
	DecideApproval(ctx context.Context, approval *domain.Approval) error
	ListApprovals(ctx context.Context, documentID string) ([]domain.Approval, error)
}

// HistoryPublisher hands audit events to the external collaborator.
type HistoryPublisher interface {
	PublishHistory(ctx context.Context, entry domain.HistoryEntry) error
}

// HistoryStore is the sink the worker drains published events into.
type HistoryStore interface {
	AppendHistory(ctx context.Context, entry domain.HistoryEntry) error
}

// HistoryOutbox holds entries whose publish failed until a redrive delivers them.
// Parking an entry already parked bumps its attempt count.
type HistoryOutbox interface {
	ParkHistory(ctx context.Context, entry domain.HistoryEntry, cause string) error
	PendingHistory(ctx context.Context, limit int) ([]domain.PendingHistory, error)
	AckHistory(ctx context.Context, id string) error
}

// RegisterExporter renders a profile's document register.
type RegisterExporter interface {
	ExportRegister(ctx context.Context, register domain.DocumentRegister) ([]byte, error)
}
