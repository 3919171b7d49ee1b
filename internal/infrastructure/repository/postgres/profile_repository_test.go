package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func TestCreateProfileMapsUniqueViolationToDuplicateCode(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewProfileRepository(db)

	mock.ExpectExec("INSERT INTO profiles").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_profiles_enterprise_code"})

	now := time.Now()
	err := repo.CreateProfile(context.Background(), &domain.Profile{
		ID: "p-1", EnterpriseID: "ent-1", Code: "HR", Name: "HR", Path: "HR",
		Status: domain.ProfileDraft, CreatedAt: now, UpdatedAt: now,
	})
	if !domain.IsKind(err, domain.ErrDuplicateCode) {
		t.Fatalf("expected ErrDuplicateCode, got %v", err)
	}
	fe, ok := domain.AsFieldError(err)
	if !ok || fe.Field != "code" {
		t.Fatalf("expected field error on code, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestTransitionProfileReportsStaleStatus(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewProfileRepository(db)

	now := time.Now()
	tr := domain.ProfileTransition{From: domain.ProfileActive, To: domain.ProfileClosed, ClosedAt: &now}
	mock.ExpectExec("UPDATE profiles").
		WithArgs("p-1", "active", "closed", nil, &now, now).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT status FROM profiles").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("archived"))

	err := repo.TransitionProfile(context.Background(), "p-1", tr, now)
	if !domain.IsKind(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMoveProfileRebasesSubtreeInTransaction(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewProfileRepository(db)

	now := time.Now()
	parent := "p-2"
	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE profiles").
		WithArgs("p-1", &parent, now, "HR").
		WillReturnRows(sqlmock.NewRows([]string{"enterprise_id"}).AddRow("ent-1"))
	mock.ExpectExec("starts_with").
		WithArgs("ent-1", "HR", "OPS/HR", now).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	if err := repo.MoveProfile(context.Background(), "p-1", &parent, "HR", "OPS/HR", now); err != nil {
		t.Fatalf("MoveProfile() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSoftDeleteProfileRefusesWhileChildrenExist(t *testing.T) {
	db, mock, done := newMockDB(t)
	defer done()
	repo := NewProfileRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("p-1"))
	mock.ExpectQuery("EXISTS").
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"children", "documents"}).AddRow(true, false))
	mock.ExpectRollback()

	err := repo.SoftDeleteProfile(context.Background(), "p-1", time.Now())
	if !domain.IsKind(err, domain.ErrNotEmpty) {
		t.Fatalf("expected ErrNotEmpty, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestMapErrorClassifiesDriverFailures(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "foreign key", err: &pgconn.PgError{Code: "23503"}, kind: domain.ErrNotFound},
		{name: "unknown unique", err: &pgconn.PgError{Code: "23505", ConstraintName: "other"}, kind: domain.ErrDuplicateCode},
		{name: "pending approval", err: &pgconn.PgError{Code: "23505", ConstraintName: "uq_approvals_pending_document"}, kind: domain.ErrInvalidTransition},
		{name: "generic", err: errors.New("connection reset"), kind: domain.ErrPersistence},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := mapError("op", tt.err); !domain.IsKind(err, tt.kind) {
				t.Fatalf("expected %v, got %v", tt.kind, err)
			}
		})
	}

	if err := mapError("op", context.Canceled); domain.IsKind(err, domain.ErrPersistence) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected plain context error, got %v", err)
	}
}
