package domain

import "time"

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Approval is a single decision round for one document. Decided rows are
// never reopened; a new round is a new row.
type Approval struct {
	ID              string         `json:"id"`
	DocumentID      string         `json:"document_id"`
	RequesterID     string         `json:"requester_id"`
	RequestedAt     time.Time      `json:"requested_at"`
	Status          ApprovalStatus `json:"status"`
	ApproverID      string         `json:"approver_id,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	Notes           string         `json:"notes,omitempty"`
}
