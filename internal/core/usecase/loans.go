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

var loanSorts = []string{"requested_at", "due_date", "code"}

type LoanUseCase struct {
	loans     ports.LoanRepository
	documents ports.DocumentRepository
	history   *HistoryRecorder
	now       func() time.Time
}

func NewLoanUseCase(loans ports.LoanRepository, documents ports.DocumentRepository, history *HistoryRecorder) *LoanUseCase {
	return &LoanUseCase{
		loans:     loans,
		documents: documents,
		history:   history,
		now:       utcNow,
	}
}

func (uc *LoanUseCase) Request(ctx context.Context, actorID string, in domain.LoanRequest) (*domain.Loan, error) {
	now := uc.now()
	if err := validateLoanRequest(in, now); err != nil {
		return nil, err
	}

	loanID := uuid.NewString()
	items := make([]domain.LoanItem, 0, len(in.Items))
	for _, req := range in.Items {
		// The title is snapshotted so the loan stays readable after the placement changes.
		doc, err := uc.documents.GetDocument(ctx, strings.TrimSpace(req.DocumentID))
		if err != nil {
			return nil, fmt.Errorf("load loan document: %w", err)
		}
		items = append(items, domain.LoanItem{
			ID:           uuid.NewString(),
			LoanID:       loanID,
			DocumentID:   doc.ID,
			DocumentName: doc.Title,
			Notes:        strings.TrimSpace(req.Notes),
		})
	}

	borrowerID := strings.TrimSpace(in.BorrowerID)
	if borrowerID == "" {
		borrowerID = actorID
	}
	loan := &domain.Loan{
		ID:           loanID,
		Code:         newLoanCode(now),
		EnterpriseID: strings.TrimSpace(in.EnterpriseID),
		BorrowerID:   borrowerID,
		BorrowerName: strings.TrimSpace(in.BorrowerName),
		Department:   strings.TrimSpace(in.Department),
		RequestedAt:  now,
		DueDate:      in.DueDate.UTC(),
		Status:       domain.LoanPending,
		LoanType:     strings.TrimSpace(in.LoanType),
		Purpose:      strings.TrimSpace(in.Purpose),
		CreatedAt:    now,
		UpdatedAt:    now,
		Items:        items,
	}

	if err := uc.loans.CreateLoan(ctx, loan); err != nil {
		return nil, fmt.Errorf("create loan: %w", err)
	}

	entry := historyEntry("loan", loan.ID, actorID, domain.ChangeCreated, now)
	entry.Details = fmt.Sprintf("loan %s with %d items", loan.Code, len(items))
	uc.history.Record(ctx, entry)
	return loan, nil
}

func (uc *LoanUseCase) Get(ctx context.Context, id string) (*domain.Loan, error) {
	return uc.loans.GetLoan(ctx, id)
}

func (uc *LoanUseCase) List(ctx context.Context, filter domain.LoanFilter, page domain.PageRequest) (domain.Page[domain.Loan], error) {
	return uc.loans.ListLoans(ctx, filter, page.Normalize(loanSorts...))
}

func (uc *LoanUseCase) Approve(ctx context.Context, actorID, id string) (*domain.Loan, error) {
	return uc.transition(ctx, actorID, id, domain.LoanPending, domain.LoanApproved, "approve", func(loan *domain.Loan, now time.Time) {
		loan.ApproverID = actorID
		loan.ApprovedAt = &now
	})
}

func (uc *LoanUseCase) Reject(ctx context.Context, actorID, id, reason string) (*domain.Loan, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewFieldError(domain.ErrValidation, "loan", "rejection_reason", "a rejection reason is required")
	}
	return uc.transition(ctx, actorID, id, domain.LoanPending, domain.LoanRejected, "reject", func(loan *domain.Loan, _ time.Time) {
		loan.ApproverID = actorID
		loan.RejectionReason = reason
	})
}

func (uc *LoanUseCase) MarkBorrowed(ctx context.Context, actorID, id string) (*domain.Loan, error) {
	return uc.transition(ctx, actorID, id, domain.LoanApproved, domain.LoanBorrowed, "mark_borrowed", nil)
}

// Return marks the named items (every item when itemIDs is empty) as returned.
// Items already returned keep their original timestamp.
func (uc *LoanUseCase) Return(ctx context.Context, actorID, id string, itemIDs []string) (*domain.Loan, error) {
	loan, err := uc.loans.GetLoan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load loan: %w", err)
	}
	switch loan.Status {
	case domain.LoanBorrowed:
	case domain.LoanReturned:
		return loan, nil
	default:
		return nil, domain.InvalidTransition("loan", id, string(loan.Status), "return")
	}

	if len(itemIDs) == 0 {
		for _, item := range loan.Items {
			itemIDs = append(itemIDs, item.ID)
		}
	}
	pending := make([]string, 0, len(itemIDs))
	seen := make(map[string]struct{}, len(itemIDs))
	for _, itemID := range itemIDs {
		itemID = strings.TrimSpace(itemID)
		if _, dup := seen[itemID]; dup {
			continue
		}
		seen[itemID] = struct{}{}
		item, ok := loan.Item(itemID)
		if !ok {
			return nil, domain.NotFound("loan_item", itemID)
		}
		if !item.Returned {
			pending = append(pending, itemID)
		}
	}
	if len(pending) == 0 {
		return loan, nil
	}

	now := uc.now()
	updated, returned, err := uc.loans.ReturnLoanItems(ctx, id, pending, now)
	if err != nil {
		return nil, fmt.Errorf("return loan items: %w", err)
	}
	if returned == 0 {
		// A concurrent return got there first.
		return updated, nil
	}

	entry := historyEntry("loan", id, actorID, domain.ChangeReturned, now)
	entry.Details = fmt.Sprintf("%d items returned", returned)
	if updated.Status != loan.Status {
		entry.FieldName = "status"
		entry.OldValue = string(loan.Status)
		entry.NewValue = string(updated.Status)
	}
	uc.history.Record(ctx, entry)
	return updated, nil
}

// Overdue is computed on read from the borrowed loans whose due date has passed.
func (uc *LoanUseCase) Overdue(ctx context.Context, enterpriseID string, now time.Time) ([]domain.Loan, error) {
	if now.IsZero() {
		now = uc.now()
	}
	loans, err := uc.loans.ListBorrowedDueBefore(ctx, enterpriseID, now)
	if err != nil {
		return nil, fmt.Errorf("list borrowed loans: %w", err)
	}
	out := make([]domain.Loan, 0, len(loans))
	for _, loan := range loans {
		if loan.IsOverdue(now) {
			out = append(out, loan)
		}
	}
	return out, nil
}

func (uc *LoanUseCase) transition(
	ctx context.Context,
	actorID, id string,
	from, to domain.LoanStatus,
	event string,
	apply func(loan *domain.Loan, now time.Time),
) (*domain.Loan, error) {
	loan, err := uc.loans.GetLoan(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load loan: %w", err)
	}
	if loan.Status != from {
		return nil, domain.InvalidTransition("loan", id, string(loan.Status), event)
	}

	now := uc.now()
	loan.Status = to
	loan.UpdatedAt = now
	if apply != nil {
		apply(loan, now)
	}
	if err := uc.loans.UpdateLoanStatus(ctx, loan, from); err != nil {
		return nil, fmt.Errorf("%s loan: %w", event, err)
	}

	entry := historyEntry("loan", id, actorID, domain.ChangeStatus, now)
	entry.FieldName = "status"
	entry.OldValue = string(from)
	entry.NewValue = string(to)
	entry.Details = loan.RejectionReason
	uc.history.Record(ctx, entry)
	return loan, nil
}

func validateLoanRequest(in domain.LoanRequest, now time.Time) error {
	if strings.TrimSpace(in.EnterpriseID) == "" {
		return domain.NewFieldError(domain.ErrValidation, "loan", "enterprise_id", "enterprise is required")
	}
	if strings.TrimSpace(in.BorrowerName) == "" {
		return domain.NewFieldError(domain.ErrValidation, "loan", "borrower_name", "borrower name is required")
	}
	if in.DueDate.IsZero() || !in.DueDate.After(now) {
		return domain.NewFieldError(domain.ErrValidation, "loan", "due_date", "due date must be in the future")
	}
	if len(in.Items) == 0 {
		return domain.NewFieldError(domain.ErrValidation, "loan", "items", "at least one document is required")
	}
	seen := make(map[string]struct{}, len(in.Items))
	for _, item := range in.Items {
		docID := strings.TrimSpace(item.DocumentID)
		if docID == "" {
			return domain.NewFieldError(domain.ErrValidation, "loan", "items", "document id is required")
		}
		if _, dup := seen[docID]; dup {
			return domain.NewFieldError(domain.ErrValidation, "loan", "items", fmt.Sprintf("document %s listed twice", docID))
		}
		seen[docID] = struct{}{}
	}
	return nil
}

func newLoanCode(now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("LN-%s-%s", now.Format("20060102"), suffix)
}
