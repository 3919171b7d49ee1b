package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const loanColumns = `id, code, enterprise_id, borrower_id, borrower_name, department, requested_at, due_date, returned_at,
	status, loan_type, purpose, approver_id, approved_at, rejection_reason, created_at, updated_at`

var loanSortColumns = map[string]string{
	"requested_at": "requested_at",
	"due_date":     "due_date",
	"code":         "code",
}

type LoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) *LoanRepository {
	return &LoanRepository{db: db}
}

func (r *LoanRepository) CreateLoan(ctx context.Context, l *domain.Loan) error {
	return withTx(ctx, r.db, "create loan", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
INSERT INTO loans (`+loanColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`,
			l.ID, l.Code, l.EnterpriseID, l.BorrowerID, l.BorrowerName, l.Department, l.RequestedAt, l.DueDate, l.ReturnedAt,
			string(l.Status), l.LoanType, l.Purpose, l.ApproverID, l.ApprovedAt, l.RejectionReason, l.CreatedAt, l.UpdatedAt,
		)
		if err != nil {
			return mapError("create loan", err)
		}
		for i, item := range l.Items {
			_, err := tx.ExecContext(ctx, `
INSERT INTO loan_items (id, loan_id, position, document_id, document_name, returned, returned_at, notes)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
`, item.ID, l.ID, i, item.DocumentID, item.DocumentName, item.Returned, item.ReturnedAt, item.Notes)
			if err != nil {
				return mapError("create loan item", err)
			}
		}
		return nil
	})
}

func (r *LoanRepository) GetLoan(ctx context.Context, id string) (*domain.Loan, error) {
	return getLoan(ctx, r.db, id)
}

// UpdateLoanStatus is a compare-and-swap against expected.
func (r *LoanRepository) UpdateLoanStatus(ctx context.Context, l *domain.Loan, expected domain.LoanStatus) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE loans
SET status = $3, approver_id = $4, approved_at = $5, rejection_reason = $6, updated_at = $7
WHERE id = $1 AND status = $2
`, l.ID, string(expected), string(l.Status), l.ApproverID, l.ApprovedAt, l.RejectionReason, l.UpdatedAt)
	if err != nil {
		return mapError("update loan status", err)
	}
	ok, err := affectedOne(result, "update loan status")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM loans WHERE id = $1`, l.ID).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("loan", l.ID)
		}
		return mapError("update loan status: reload", err)
	}
	return domain.InvalidTransition("loan", l.ID, current, string(l.Status))
}

// ReturnLoanItems only touches items that are still out, so a repeated return
// keeps the first timestamp. The loan flips to returned once nothing is out.
// A loan another caller already completed is returned as is.
func (r *LoanRepository) ReturnLoanItems(ctx context.Context, loanID string, itemIDs []string, at time.Time) (*domain.Loan, int, error) {
	var (
		out      *domain.Loan
		returned int
	)
	err := withTx(ctx, r.db, "return loan items", func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM loans WHERE id = $1 FOR UPDATE`, loanID).Scan(&status)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NotFound("loan", loanID)
			}
			return mapError("return loan items: lock", err)
		}
		switch domain.LoanStatus(status) {
		case domain.LoanBorrowed:
		case domain.LoanReturned:
			loan, err := getLoan(ctx, tx, loanID)
			if err != nil {
				return err
			}
			out = loan
			return nil
		default:
			return domain.InvalidTransition("loan", loanID, status, "return")
		}

		for _, itemID := range itemIDs {
			var exists bool
			err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM loan_items WHERE loan_id = $1 AND id = $2)`, loanID, itemID).Scan(&exists)
			if err != nil {
				return mapError("return loan items: check item", err)
			}
			if !exists {
				return domain.NotFound("loan_item", itemID)
			}
			res, err := tx.ExecContext(ctx, `
UPDATE loan_items
SET returned = TRUE, returned_at = $3
WHERE loan_id = $1 AND id = $2 AND NOT returned
`, loanID, itemID, at)
			if err != nil {
				return mapError("return loan item", err)
			}
			flipped, err := affectedOne(res, "return loan item")
			if err != nil {
				return err
			}
			if flipped {
				returned++
			}
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE loans
SET status = $2, returned_at = $3, updated_at = $3
WHERE id = $1 AND status = $4
	AND NOT EXISTS (SELECT 1 FROM loan_items WHERE loan_id = $1 AND NOT returned)
`, loanID, string(domain.LoanReturned), at, string(domain.LoanBorrowed)); err != nil {
			return mapError("complete loan", err)
		}

		loan, err := getLoan(ctx, tx, loanID)
		if err != nil {
			return err
		}
		out = loan
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return out, returned, nil
}

func (r *LoanRepository) ListLoans(ctx context.Context, lf domain.LoanFilter, page domain.PageRequest) (domain.Page[domain.Loan], error) {
	var f filter
	if lf.EnterpriseID != "" {
		f.add("enterprise_id = $%d", lf.EnterpriseID)
	}
	if lf.BorrowerID != "" {
		f.add("borrower_id = $%d", lf.BorrowerID)
	}
	if lf.Status != "" {
		f.add("status = $%d", string(lf.Status))
	}
	if page.Query != "" {
		f.add("(code ILIKE $%[1]d OR borrower_name ILIKE $%[1]d)", likePattern(page.Query))
	}

	out := domain.Page[domain.Loan]{Items: []domain.Loan{}, Page: page.Page, Size: page.Size}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM loans `+f.where(), f.args...).Scan(&out.Total); err != nil {
		return out, mapError("count loans", err)
	}

	limit, args := pageArgs(&f, page)
	query := fmt.Sprintf("SELECT %s FROM loans %s %s %s", loanColumns, f.where(), orderBy(loanSortColumns, page.Sort, page.Desc), limit)
	loans, err := queryLoans(ctx, r.db, query, args...)
	if err != nil {
		return out, err
	}
	out.Items = loans
	return out, nil
}

func (r *LoanRepository) ListBorrowedDueBefore(ctx context.Context, enterpriseID string, before time.Time) ([]domain.Loan, error) {
	var f filter
	f.add("status = $%d", string(domain.LoanBorrowed))
	f.add("due_date < $%d", before)
	if enterpriseID != "" {
		f.add("enterprise_id = $%d", enterpriseID)
	}
	return queryLoans(ctx, r.db, `SELECT `+loanColumns+` FROM loans `+f.where()+` ORDER BY due_date ASC, id ASC`, f.args...)
}

func getLoan(ctx context.Context, q querier, id string) (*domain.Loan, error) {
	row := q.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id)
	loan, err := scanLoan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("loan", id)
		}
		return nil, mapError("get loan", err)
	}
	items, err := loadLoanItems(ctx, q, id)
	if err != nil {
		return nil, err
	}
	loan.Items = items
	return &loan, nil
}

func queryLoans(ctx context.Context, q querier, query string, args ...interface{}) ([]domain.Loan, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list loans", err)
	}
	loans := make([]domain.Loan, 0)
	for rows.Next() {
		loan, err := scanLoan(rows)
		if err != nil {
			_ = rows.Close()
			return nil, mapError("scan loan", err)
		}
		loans = append(loans, loan)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, mapError("iterate loans", err)
	}
	_ = rows.Close()

	for i := range loans {
		items, err := loadLoanItems(ctx, q, loans[i].ID)
		if err != nil {
			return nil, err
		}
		loans[i].Items = items
	}
	return loans, nil
}

func loadLoanItems(ctx context.Context, q querier, loanID string) ([]domain.LoanItem, error) {
	rows, err := q.QueryContext(ctx, `
SELECT id, loan_id, document_id, document_name, returned, returned_at, notes
FROM loan_items
WHERE loan_id = $1
ORDER BY position ASC
`, loanID)
	if err != nil {
		return nil, mapError("list loan items", err)
	}
	defer rows.Close()

	items := make([]domain.LoanItem, 0)
	for rows.Next() {
		var item domain.LoanItem
		if err := rows.Scan(&item.ID, &item.LoanID, &item.DocumentID, &item.DocumentName, &item.Returned, &item.ReturnedAt, &item.Notes); err != nil {
			return nil, mapError("scan loan item", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate loan items", err)
	}
	return items, nil
}

func scanLoan(row rowScanner) (domain.Loan, error) {
	var l domain.Loan
	var status string
	err := row.Scan(
		&l.ID, &l.Code, &l.EnterpriseID, &l.BorrowerID, &l.BorrowerName, &l.Department, &l.RequestedAt, &l.DueDate, &l.ReturnedAt,
		&status, &l.LoanType, &l.Purpose, &l.ApproverID, &l.ApprovedAt, &l.RejectionReason, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		return domain.Loan{}, err
	}
	l.Status = domain.LoanStatus(status)
	return l, nil
}
