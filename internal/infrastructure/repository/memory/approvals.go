package memory

import (
	"context"
	"sort"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func (s *Store) CreateApproval(_ context.Context, approval *domain.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.approvals {
		if a.DocumentID == approval.DocumentID && a.Status == domain.ApprovalPending {
			return domain.InvalidTransition("approval", a.ID, string(a.Status), "request")
		}
	}
	s.approvals[approval.ID] = *approval
	return nil
}

func (s *Store) GetApproval(_ context.Context, id string) (*domain.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.approvals[id]
	if !ok {
		return nil, domain.NotFound("approval", id)
	}
	a.ApprovedAt = cloneTime(a.ApprovedAt)
	return &a, nil
}

func (s *Store) DecideApproval(_ context.Context, approval *domain.Approval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.approvals[approval.ID]
	if !ok {
		return domain.NotFound("approval", approval.ID)
	}
	if current.Status != domain.ApprovalPending {
		return domain.InvalidTransition("approval", approval.ID, string(current.Status), string(approval.Status))
	}
	current.Status = approval.Status
	current.ApproverID = approval.ApproverID
	current.ApprovedAt = cloneTime(approval.ApprovedAt)
	current.RejectionReason = approval.RejectionReason
	current.Notes = approval.Notes
	s.approvals[approval.ID] = current
	return nil
}

func (s *Store) ListApprovals(_ context.Context, documentID string) ([]domain.Approval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Approval, 0)
	for _, a := range s.approvals {
		if a.DocumentID == documentID {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}
