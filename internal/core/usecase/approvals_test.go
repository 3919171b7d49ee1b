package usecase

import (
	"context"
	"testing"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func TestApprovalApproveRecordsApprover(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	doc := f.addDocument(t, p.ID, "deed")

	pending, err := f.approvals.Request(ctx, "author-1", doc.ID, "please review")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	approved, err := f.approvals.Approve(ctx, "manager-1", pending.ID, "looks good")
	if err != nil {
		t.Fatalf("Approve() error = %v", err)
	}
	if approved.Status != domain.ApprovalApproved || approved.ApproverID != "manager-1" || approved.ApprovedAt == nil {
		t.Fatalf("unexpected approval: %+v", approved)
	}
	if approved.Notes != "looks good" {
		t.Fatalf("notes not stored: %q", approved.Notes)
	}

	_, err = f.approvals.Reject(ctx, "manager-1", pending.ID, "changed my mind")
	requireKind(t, err, domain.ErrInvalidTransition)
}

func TestApprovalRejectionThenResubmitCreatesNewRow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createProfile(t, "A", nil)
	doc := f.addDocument(t, p.ID, "deed")

	first, err := f.approvals.Request(ctx, "author-1", doc.ID, "")
	if err != nil {
		t.Fatalf("Request() error = %v", err)
	}
	_, err = f.approvals.Request(ctx, "author-1", doc.ID, "")
	requireKind(t, err, domain.ErrInvalidTransition)

	_, err = f.approvals.Reject(ctx, "manager-1", first.ID, "")
	requireKind(t, err, domain.ErrValidation)

	rejected, err := f.approvals.Reject(ctx, "manager-1", first.ID, "missing signature")
	if err != nil {
		t.Fatalf("Reject() error = %v", err)
	}
	if rejected.RejectionReason != "missing signature" || rejected.ApprovedAt != nil {
		t.Fatalf("unexpected rejection: %+v", rejected)
	}

	second, err := f.approvals.Request(ctx, "author-1", doc.ID, "signed now")
	if err != nil {
		t.Fatalf("resubmit error = %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("resubmission reused the rejected row")
	}

	rounds, err := f.approvals.ListByDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("ListByDocument() error = %v", err)
	}
	statuses := map[domain.ApprovalStatus]int{}
	for _, r := range rounds {
		statuses[r.Status]++
	}
	if len(rounds) != 2 || statuses[domain.ApprovalRejected] != 1 || statuses[domain.ApprovalPending] != 1 {
		t.Fatalf("unexpected approval history: %+v", rounds)
	}
}
