package memory

import (
	"context"
	"testing"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/ports"
)

var (
	_ ports.ProfileRepository  = (*Store)(nil)
	_ ports.FieldRepository    = (*Store)(nil)
	_ ports.ValueRepository    = (*Store)(nil)
	_ ports.DocumentRepository = (*Store)(nil)
	_ ports.LoanRepository     = (*Store)(nil)
	_ ports.ApprovalRepository = (*Store)(nil)
	_ ports.HistoryPublisher   = (*Store)(nil)
	_ ports.HistoryStore       = (*Store)(nil)
	_ ports.HistoryOutbox      = (*Store)(nil)
)

func TestReturnLoanItemsKeepsFirstTimestamp(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	loan := &domain.Loan{
		ID: "l-1", Code: "LN-1", EnterpriseID: "ent-1", Status: domain.LoanBorrowed, DueDate: now.Add(24 * time.Hour),
		Items: []domain.LoanItem{{ID: "i-1", DocumentID: "d-1"}, {ID: "i-2", DocumentID: "d-2"}},
	}
	if err := s.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("CreateLoan() error = %v", err)
	}

	if _, n, err := s.ReturnLoanItems(ctx, "l-1", []string{"i-1"}, now); err != nil || n != 1 {
		t.Fatalf("ReturnLoanItems() = %d, %v", n, err)
	}
	later := now.Add(time.Hour)
	got, n, err := s.ReturnLoanItems(ctx, "l-1", []string{"i-1", "i-2"}, later)
	if err != nil {
		t.Fatalf("ReturnLoanItems() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("expected only i-2 to flip, got %d", n)
	}
	if got.Status != domain.LoanReturned {
		t.Fatalf("expected returned loan, got %s", got.Status)
	}

	again, n, err := s.ReturnLoanItems(ctx, "l-1", []string{"i-2"}, later.Add(time.Hour))
	if err != nil || n != 0 {
		t.Fatalf("return on completed loan = %d, %v; want no-op", n, err)
	}
	if !again.ReturnedAt.Equal(later) {
		t.Fatalf("expected completion stamp kept, got %v", again.ReturnedAt)
	}
	first, _ := got.Item("i-1")
	if first.ReturnedAt == nil || !first.ReturnedAt.Equal(now) {
		t.Fatalf("expected first return stamp kept, got %v", first.ReturnedAt)
	}
}

func TestGetLoanReturnsIndependentCopy(t *testing.T) {
	s := New()
	ctx := context.Background()
	loan := &domain.Loan{ID: "l-1", Code: "LN-1", Status: domain.LoanPending, Items: []domain.LoanItem{{ID: "i-1"}}}
	if err := s.CreateLoan(ctx, loan); err != nil {
		t.Fatalf("CreateLoan() error = %v", err)
	}

	got, err := s.GetLoan(ctx, "l-1")
	if err != nil {
		t.Fatalf("GetLoan() error = %v", err)
	}
	got.Items[0].Returned = true

	again, _ := s.GetLoan(ctx, "l-1")
	if again.Items[0].Returned {
		t.Fatalf("store was mutated through a returned loan")
	}
}

func TestAppendHistoryDropsRedeliveries(t *testing.T) {
	s := New()
	ctx := context.Background()
	entry := domain.HistoryEntry{ID: "h-1", EntityID: "p-1", ChangeType: domain.ChangeCreated}

	for i := 0; i < 3; i++ {
		if err := s.AppendHistory(ctx, entry); err != nil {
			t.Fatalf("AppendHistory() error = %v", err)
		}
	}
	if got := len(s.History("p-1")); got != 1 {
		t.Fatalf("expected 1 history entry, got %d", got)
	}
}

func TestOutboxParkCountsAttemptsAndAckRemoves(t *testing.T) {
	s := New()
	ctx := context.Background()
	entry := domain.HistoryEntry{ID: "h-1", EntityType: "loan", EntityID: "l-1", ChangeType: domain.ChangeReturned}

	if err := s.ParkHistory(ctx, entry, "no servers"); err != nil {
		t.Fatalf("ParkHistory() error = %v", err)
	}
	if err := s.ParkHistory(ctx, entry, "timeout"); err != nil {
		t.Fatalf("ParkHistory() error = %v", err)
	}
	if err := s.ParkHistory(ctx, domain.HistoryEntry{ID: "h-2", EntityID: "l-2"}, "timeout"); err != nil {
		t.Fatalf("ParkHistory() error = %v", err)
	}

	pending, err := s.PendingHistory(ctx, 1)
	if err != nil {
		t.Fatalf("PendingHistory() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Entry.ID != "h-1" || pending[0].Attempts != 2 || pending[0].LastError != "timeout" {
		t.Fatalf("unexpected pending entries: %+v", pending)
	}

	if err := s.AckHistory(ctx, "h-1"); err != nil {
		t.Fatalf("AckHistory() error = %v", err)
	}
	pending, _ = s.PendingHistory(ctx, 0)
	if len(pending) != 1 || pending[0].Entry.ID != "h-2" {
		t.Fatalf("expected only h-2 left, got %+v", pending)
	}
}
