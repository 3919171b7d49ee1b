package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/infrastructure/resilience"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateForeignKeyViolation = "23503"
	sqlStateCannotConnectNow    = "57P03"
)

// ClassifyOpenError retries while the server is unreachable or still starting.
// Authentication and unknown database errors are permanent.
func ClassifyOpenError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return resilience.ErrorClassification{}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		retry := strings.HasPrefix(pgErr.Code, "08") || pgErr.Code == sqlStateCannotConnectNow
		return resilience.ErrorClassification{Retryable: retry, RecordFailure: true}
	}
	return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
}

type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

func OpenDB(dsn string, pool PoolConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	if pool.MaxOpenConns <= 0 {
		pool.MaxOpenConns = 10
	}
	if pool.MaxIdleConns <= 0 {
		pool.MaxIdleConns = pool.MaxOpenConns
	}
	if pool.ConnMaxLifetime <= 0 {
		pool.ConnMaxLifetime = 30 * time.Minute
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func withTx(ctx context.Context, db *sql.DB, op string, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(op+": begin tx", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapError(op+": commit tx", err)
	}
	return nil
}

// mapError turns driver failures into domain kinds. Errors that already carry
// a domain kind pass through untouched.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := domain.AsFieldError(err); ok {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case sqlStateUniqueViolation:
			if mapped := uniqueViolation(pgErr.ConstraintName); mapped != nil {
				return mapped
			}
			return domain.WrapError(domain.ErrDuplicateCode, op, err)
		case sqlStateForeignKeyViolation:
			return domain.WrapError(domain.ErrNotFound, op, err)
		}
	}
	return domain.WrapError(domain.ErrPersistence, op, err)
}

func uniqueViolation(constraint string) error {
	switch constraint {
	case "uq_profiles_enterprise_code":
		return &domain.FieldError{Kind: domain.ErrDuplicateCode, Entity: "profile", Field: "code", Message: "code already in use"}
	case "uq_metadata_fields_scope_name":
		return &domain.FieldError{Kind: domain.ErrDuplicateCode, Entity: "metadata_field", Field: "name", Message: "field name already exists"}
	case "uq_loans_code":
		return &domain.FieldError{Kind: domain.ErrDuplicateCode, Entity: "loan", Field: "code", Message: "loan code already in use"}
	case "uq_approvals_pending_document":
		return &domain.FieldError{Kind: domain.ErrInvalidTransition, Entity: "approval", Field: "status", Message: "document already has a pending approval"}
	default:
		return nil
	}
}

func affectedOne(result sql.Result, op string) (bool, error) {
	rows, err := result.RowsAffected()
	if err != nil {
		return false, mapError(op+": rows affected", err)
	}
	return rows > 0, nil
}

// filter accumulates WHERE conditions with positional arguments.
type filter struct {
	conds []string
	args  []interface{}
}

// add appends a condition; format receives the argument's placeholder number.
func (f *filter) add(format string, arg interface{}) {
	f.args = append(f.args, arg)
	f.conds = append(f.conds, fmt.Sprintf(format, len(f.args)))
}

func (f *filter) raw(cond string) {
	f.conds = append(f.conds, cond)
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(f.conds, " AND ")
}

func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(q) + "%"
}

func orderBy(columns map[string]string, sort string, desc bool) string {
	col, ok := columns[sort]
	if !ok {
		return ""
	}
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	return fmt.Sprintf("ORDER BY %s %s, id ASC", col, dir)
}

func pageArgs(f *filter, page domain.PageRequest) (string, []interface{}) {
	args := append([]interface{}{}, f.args...)
	args = append(args, page.Size, page.Offset())
	return fmt.Sprintf("LIMIT $%d OFFSET $%d", len(args)-1, len(args)), args
}
