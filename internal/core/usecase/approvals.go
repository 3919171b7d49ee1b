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

type ApprovalUseCase struct {
	approvals ports.ApprovalRepository
	documents ports.DocumentRepository
	history   *HistoryRecorder
	now       func() time.Time
}

func NewApprovalUseCase(approvals ports.ApprovalRepository, documents ports.DocumentRepository, history *HistoryRecorder) *ApprovalUseCase {
	return &ApprovalUseCase{
		approvals: approvals,
		documents: documents,
		history:   history,
		now:       utcNow,
	}
}

// Request opens a new approval round. A document has at most one pending round.
func (uc *ApprovalUseCase) Request(ctx context.Context, actorID, documentID, notes string) (*domain.Approval, error) {
	if _, err := uc.documents.GetDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	existing, err := uc.approvals.ListApprovals(ctx, documentID)
	if err != nil {
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	for _, a := range existing {
		if a.Status == domain.ApprovalPending {
			return nil, domain.InvalidTransition("approval", a.ID, string(a.Status), "request")
		}
	}

	now := uc.now()
	approval := &domain.Approval{
		ID:          uuid.NewString(),
		DocumentID:  documentID,
		RequesterID: actorID,
		RequestedAt: now,
		Status:      domain.ApprovalPending,
		Notes:       strings.TrimSpace(notes),
	}
	if err := uc.approvals.CreateApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("create approval: %w", err)
	}

	entry := historyEntry("approval", approval.ID, actorID, domain.ChangeCreated, now)
	entry.Details = "document " + documentID
	uc.history.Record(ctx, entry)
	return approval, nil
}

func (uc *ApprovalUseCase) Get(ctx context.Context, id string) (*domain.Approval, error) {
	return uc.approvals.GetApproval(ctx, id)
}

func (uc *ApprovalUseCase) ListByDocument(ctx context.Context, documentID string) ([]domain.Approval, error) {
	if _, err := uc.documents.GetDocument(ctx, documentID); err != nil {
		return nil, fmt.Errorf("load document: %w", err)
	}
	return uc.approvals.ListApprovals(ctx, documentID)
}

func (uc *ApprovalUseCase) Approve(ctx context.Context, actorID, id, notes string) (*domain.Approval, error) {
	return uc.decide(ctx, actorID, id, "approve", func(a *domain.Approval, now time.Time) {
		a.Status = domain.ApprovalApproved
		a.ApprovedAt = &now
		if n := strings.TrimSpace(notes); n != "" {
			a.Notes = n
		}
	})
}

func (uc *ApprovalUseCase) Reject(ctx context.Context, actorID, id, reason string) (*domain.Approval, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, domain.NewFieldError(domain.ErrValidation, "approval", "rejection_reason", "a rejection reason is required")
	}
	return uc.decide(ctx, actorID, id, "reject", func(a *domain.Approval, _ time.Time) {
		a.Status = domain.ApprovalRejected
		a.RejectionReason = reason
	})
}

func (uc *ApprovalUseCase) decide(ctx context.Context, actorID, id, event string, apply func(a *domain.Approval, now time.Time)) (*domain.Approval, error) {
	approval, err := uc.approvals.GetApproval(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load approval: %w", err)
	}
	if approval.Status != domain.ApprovalPending {
		return nil, domain.InvalidTransition("approval", id, string(approval.Status), event)
	}

	now := uc.now()
	approval.ApproverID = actorID
	apply(approval, now)
	if err := uc.approvals.DecideApproval(ctx, approval); err != nil {
		return nil, fmt.Errorf("%s approval: %w", event, err)
	}

	entry := historyEntry("approval", id, actorID, domain.ChangeStatus, now)
	entry.FieldName = "status"
	entry.OldValue = string(domain.ApprovalPending)
	entry.NewValue = string(approval.Status)
	entry.Details = approval.RejectionReason
	uc.history.Record(ctx, entry)
	return approval, nil
}
