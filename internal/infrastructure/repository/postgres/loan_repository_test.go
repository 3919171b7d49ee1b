package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

var loanRowColumns = []string{
	"id", "code", "enterprise_id", "borrower_id", "borrower_name", "department", "requested_at", "due_date", "returned_at",
	"status", "loan_type", "purpose", "approver_id", "approved_at", "rejection_reason", "created_at", "updated_at",
}

var loanItemColumns = []string{"id", "loan_id", "document_id", "document_name", "returned", "returned_at", "notes"}

func TestReturnLoanItemsCompletesLoanWhenAllBack(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewLoanRepository(db)

	now := time.Now().UTC()
	due := now.Add(48 * time.Hour)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM loans").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("borrowed"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("l-1", "i-2").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectExec("UPDATE loan_items").
		WithArgs("l-1", "i-2", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE loans").
		WithArgs("l-1", "returned", now, "borrowed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM loans WHERE id").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows(loanRowColumns).
			AddRow("l-1", "LN-1", "ent-1", "u-1", "Ann", "", now, due, now, "returned", "", "", "u-2", now, "", now, now))
	mock.ExpectQuery("FROM loan_items").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows(loanItemColumns).
			AddRow("i-1", "l-1", "d-1", "Passport", true, now, "").
			AddRow("i-2", "l-1", "d-2", "Contract", true, now, ""))
	mock.ExpectCommit()

	loan, returned, err := repo.ReturnLoanItems(context.Background(), "l-1", []string{"i-2"}, now)
	if err != nil {
		t.Fatalf("ReturnLoanItems() error = %v", err)
	}
	if returned != 1 {
		t.Fatalf("expected one item flipped, got %d", returned)
	}
	if loan.Status != domain.LoanReturned || len(loan.Items) != 2 || !loan.AllReturned() {
		t.Fatalf("unexpected loan: %+v", loan)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReturnLoanItemsRejectsUnknownItem(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewLoanRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM loans").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("borrowed"))
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("l-1", "nope").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectRollback()

	_, _, err := repo.ReturnLoanItems(context.Background(), "l-1", []string{"nope"}, time.Now())
	fe, ok := domain.AsFieldError(err)
	if !ok || !domain.IsKind(err, domain.ErrNotFound) || fe.Entity != "loan_item" {
		t.Fatalf("expected loan_item not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReturnLoanItemsOnCompletedLoanIsNoOp(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewLoanRepository(db)

	now := time.Now().UTC()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT status FROM loans").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("returned"))
	mock.ExpectQuery("FROM loans WHERE id").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows(loanRowColumns).
			AddRow("l-1", "LN-1", "ent-1", "u-1", "Ann", "", now, now, now, "returned", "", "", "u-2", now, "", now, now))
	mock.ExpectQuery("FROM loan_items").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows(loanItemColumns).
			AddRow("i-1", "l-1", "d-1", "Passport", true, now, ""))
	mock.ExpectCommit()

	loan, returned, err := repo.ReturnLoanItems(context.Background(), "l-1", []string{"i-1"}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("ReturnLoanItems() error = %v", err)
	}
	if returned != 0 || loan.Status != domain.LoanReturned {
		t.Fatalf("expected untouched returned loan, got %d %+v", returned, loan)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateLoanStatusDistinguishesMissingFromStale(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewLoanRepository(db)

	loan := &domain.Loan{ID: "l-1", Status: domain.LoanApproved, UpdatedAt: time.Now()}
	mock.ExpectExec("UPDATE loans").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM loans").
		WithArgs("l-1").
		WillReturnError(sql.ErrNoRows)

	err := repo.UpdateLoanStatus(context.Background(), loan, domain.LoanPending)
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mock.ExpectExec("UPDATE loans").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM loans").
		WithArgs("l-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("rejected"))

	err = repo.UpdateLoanStatus(context.Background(), loan, domain.LoanPending)
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestDecideApprovalRejectsAlreadyDecidedRound(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewApprovalRepository(db)

	now := time.Now()
	mock.ExpectExec("UPDATE approvals").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM approvals WHERE id").
		WithArgs("a-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "document_id", "requester_id", "requested_at", "status", "approver_id", "approved_at", "rejection_reason", "notes",
		}).AddRow("a-1", "d-1", "u-1", now, "approved", "u-2", now, "", ""))

	err := repo.DecideApproval(context.Background(), &domain.Approval{ID: "a-1", Status: domain.ApprovalRejected, RejectionReason: "late"})
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestAppendHistoryIgnoresDuplicates(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewHistoryRepository(db)

	mock.ExpectExec("ON CONFLICT \\(id\\) DO NOTHING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.AppendHistory(context.Background(), domain.HistoryEntry{ID: "h-1", EntityType: "profile", EntityID: "p-1", ChangeType: domain.ChangeCreated, OccurredAt: time.Now()})
	if err != nil {
		t.Fatalf("AppendHistory() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
