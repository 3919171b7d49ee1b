package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

func TestClassifyOpenError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		retryable bool
	}{
		{name: "dial failure", err: errors.New("dial tcp 127.0.0.1:5432: connect: connection refused"), retryable: true},
		{name: "starting up", err: &pgconn.PgError{Code: "57P03"}, retryable: true},
		{name: "connection exception", err: &pgconn.PgError{Code: "08006"}, retryable: true},
		{name: "bad password", err: &pgconn.PgError{Code: "28P01"}, retryable: false},
		{name: "unknown database", err: &pgconn.PgError{Code: "3D000"}, retryable: false},
		{name: "cancelled", err: context.Canceled, retryable: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyOpenError(tt.err).Retryable; got != tt.retryable {
				t.Fatalf("ClassifyOpenError(%v).Retryable = %v, want %v", tt.err, got, tt.retryable)
			}
		})
	}
}

func TestMapErrorUsesConstraintNames(t *testing.T) {
	err := mapError("insert loan", &pgconn.PgError{Code: sqlStateUniqueViolation, ConstraintName: "uq_approvals_pending_document"})
	fe, ok := domain.AsFieldError(err)
	if !ok || fe.Kind != domain.ErrInvalidTransition || fe.Entity != "approval" {
		t.Fatalf("expected pending approval conflict, got %v", err)
	}

	err = mapError("insert value", &pgconn.PgError{Code: sqlStateForeignKeyViolation})
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	err = mapError("select", errors.New("connection reset"))
	if !domain.IsKind(err, domain.ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}
