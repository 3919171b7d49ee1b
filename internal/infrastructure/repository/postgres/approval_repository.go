package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const approvalColumns = `id, document_id, requester_id, requested_at, status, approver_id, approved_at, rejection_reason, notes`

type ApprovalRepository struct {
	db *sql.DB
}

func NewApprovalRepository(db *sql.DB) *ApprovalRepository {
	return &ApprovalRepository{db: db}
}

// CreateApproval relies on uq_approvals_pending_document to reject a second pending round.
func (r *ApprovalRepository) CreateApproval(ctx context.Context, a *domain.Approval) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO approvals (`+approvalColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, a.ID, a.DocumentID, a.RequesterID, a.RequestedAt, string(a.Status), a.ApproverID, a.ApprovedAt, a.RejectionReason, a.Notes)
	if err != nil {
		return mapError("create approval", err)
	}
	return nil
}

func (r *ApprovalRepository) GetApproval(ctx context.Context, id string) (*domain.Approval, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE id = $1`, id)
	a, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("approval", id)
		}
		return nil, mapError("get approval", err)
	}
	return &a, nil
}

func (r *ApprovalRepository) DecideApproval(ctx context.Context, a *domain.Approval) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE approvals
SET status = $2, approver_id = $3, approved_at = $4, rejection_reason = $5, notes = $6
WHERE id = $1 AND status = $7
`, a.ID, string(a.Status), a.ApproverID, a.ApprovedAt, a.RejectionReason, a.Notes, string(domain.ApprovalPending))
	if err != nil {
		return mapError("decide approval", err)
	}
	ok, err := affectedOne(result, "decide approval")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	current, err := r.GetApproval(ctx, a.ID)
	if err != nil {
		return err
	}
	return domain.InvalidTransition("approval", a.ID, string(current.Status), string(a.Status))
}

func (r *ApprovalRepository) ListApprovals(ctx context.Context, documentID string) ([]domain.Approval, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+approvalColumns+`
FROM approvals
WHERE document_id = $1
ORDER BY requested_at ASC, id ASC
`, documentID)
	if err != nil {
		return nil, mapError("list approvals", err)
	}
	defer rows.Close()

	out := make([]domain.Approval, 0)
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, mapError("scan approval", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate approvals", err)
	}
	return out, nil
}

func scanApproval(row rowScanner) (domain.Approval, error) {
	var a domain.Approval
	var status string
	err := row.Scan(&a.ID, &a.DocumentID, &a.RequesterID, &a.RequestedAt, &status, &a.ApproverID, &a.ApprovedAt, &a.RejectionReason, &a.Notes)
	if err != nil {
		return domain.Approval{}, err
	}
	a.Status = domain.ApprovalStatus(status)
	return a, nil
}
