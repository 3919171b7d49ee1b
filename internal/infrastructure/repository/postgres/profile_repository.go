package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const profileColumns = `id, enterprise_id, code, name, description, profile_type, parent_id, path, is_template,
	retention_months, status, opened_at, closed_at, created_by, created_at, updated_at, deleted_at`

var profileSortColumns = map[string]string{
	"path":       "path",
	"code":       "code",
	"name":       "name",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, p *domain.Profile) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO profiles (`+profileColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
`,
		p.ID, p.EnterpriseID, p.Code, p.Name, p.Description, p.ProfileType, p.ParentID, p.Path, p.IsTemplate,
		p.RetentionMonths, string(p.Status), p.OpenedAt, p.ClosedAt, p.CreatedBy, p.CreatedAt, p.UpdatedAt, p.DeletedAt,
	)
	if err != nil {
		return mapError("create profile", err)
	}
	return nil
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+profileColumns+`
FROM profiles
WHERE id = $1 AND deleted_at IS NULL
`, id)

	p, err := scanProfile(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("profile", id)
		}
		return nil, mapError("get profile", err)
	}
	return &p, nil
}

func (r *ProfileRepository) UpdateProfile(ctx context.Context, p *domain.Profile) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE profiles
SET name = $2, description = $3, profile_type = $4, is_template = $5, retention_months = $6, updated_at = $7
WHERE id = $1 AND deleted_at IS NULL
`, p.ID, p.Name, p.Description, p.ProfileType, p.IsTemplate, p.RetentionMonths, p.UpdatedAt)
	if err != nil {
		return mapError("update profile", err)
	}
	ok, err := affectedOne(result, "update profile")
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("profile", p.ID)
	}
	return nil
}

// TransitionProfile is a compare-and-swap on the stored status.
func (r *ProfileRepository) TransitionProfile(ctx context.Context, id string, tr domain.ProfileTransition, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE profiles
SET status = $3, opened_at = $4, closed_at = $5, updated_at = $6
WHERE id = $1 AND status = $2 AND deleted_at IS NULL
`, id, string(tr.From), string(tr.To), tr.OpenedAt, tr.ClosedAt, at)
	if err != nil {
		return mapError("transition profile", err)
	}
	ok, err := affectedOne(result, "transition profile")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	var current string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM profiles WHERE id = $1 AND deleted_at IS NULL`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.NotFound("profile", id)
		}
		return mapError("transition profile: reload status", err)
	}
	return domain.InvalidTransition("profile", id, current, string(tr.To))
}

// MoveProfile re-parents id and rebases every descendant path in one transaction.
func (r *ProfileRepository) MoveProfile(ctx context.Context, id string, parentID *string, oldPath, newPath string, at time.Time) error {
	return withTx(ctx, r.db, "move profile", func(tx *sql.Tx) error {
		var enterpriseID string
		err := tx.QueryRowContext(ctx, `
UPDATE profiles
SET parent_id = $2, updated_at = $3
WHERE id = $1 AND path = $4 AND deleted_at IS NULL
RETURNING enterprise_id
`, id, parentID, at, oldPath).Scan(&enterpriseID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NotFound("profile", id)
			}
			return mapError("move profile", err)
		}

		_, err = tx.ExecContext(ctx, `
UPDATE profiles
SET path = $3 || substr(path, length($2) + 1), updated_at = $4
WHERE enterprise_id = $1 AND deleted_at IS NULL AND (path = $2 OR starts_with(path, $2 || '/'))
`, enterpriseID, oldPath, newPath, at)
		if err != nil {
			return mapError("move profile: rebase subtree", err)
		}
		return nil
	})
}

// SoftDeleteProfile locks the row so children or documents cannot be attached
// between the emptiness check and the delete.
func (r *ProfileRepository) SoftDeleteProfile(ctx context.Context, id string, at time.Time) error {
	return withTx(ctx, r.db, "delete profile", func(tx *sql.Tx) error {
		var locked string
		err := tx.QueryRowContext(ctx, `SELECT id FROM profiles WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id).Scan(&locked)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.NotFound("profile", id)
			}
			return mapError("delete profile: lock", err)
		}

		var hasChildren, hasDocuments bool
		err = tx.QueryRowContext(ctx, `
SELECT
	EXISTS (SELECT 1 FROM profiles WHERE parent_id = $1 AND deleted_at IS NULL),
	EXISTS (SELECT 1 FROM profile_documents WHERE profile_id = $1 AND deleted_at IS NULL)
`, id).Scan(&hasChildren, &hasDocuments)
		if err != nil {
			return mapError("delete profile: check contents", err)
		}
		if hasChildren {
			return &domain.FieldError{Kind: domain.ErrNotEmpty, Entity: "profile", ID: id, Message: "profile has child profiles"}
		}
		if hasDocuments {
			return &domain.FieldError{Kind: domain.ErrNotEmpty, Entity: "profile", ID: id, Message: "profile still holds documents"}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE profiles SET deleted_at = $2, updated_at = $2 WHERE id = $1`, id, at); err != nil {
			return mapError("delete profile", err)
		}
		return nil
	})
}

func (r *ProfileRepository) ListProfiles(ctx context.Context, pf domain.ProfileFilter, page domain.PageRequest) (domain.Page[domain.Profile], error) {
	var f filter
	f.raw("deleted_at IS NULL")
	if pf.EnterpriseID != "" {
		f.add("enterprise_id = $%d", pf.EnterpriseID)
	}
	if pf.RootsOnly {
		f.raw("parent_id IS NULL")
	}
	if pf.ParentID != nil {
		f.add("parent_id = $%d", *pf.ParentID)
	}
	if pf.Status != "" {
		f.add("status = $%d", string(pf.Status))
	}
	if pf.ProfileType != "" {
		f.add("lower(profile_type) = lower($%d)", pf.ProfileType)
	}
	if pf.TemplateOnly {
		f.raw("is_template")
	}
	if page.Query != "" {
		f.add("(code ILIKE $%[1]d OR name ILIKE $%[1]d OR path ILIKE $%[1]d)", likePattern(page.Query))
	}

	out := domain.Page[domain.Profile]{Items: []domain.Profile{}, Page: page.Page, Size: page.Size}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profiles `+f.where(), f.args...).Scan(&out.Total); err != nil {
		return out, mapError("count profiles", err)
	}

	limit, args := pageArgs(&f, page)
	query := fmt.Sprintf("SELECT %s FROM profiles %s %s %s", profileColumns, f.where(), orderBy(profileSortColumns, page.Sort, page.Desc), limit)
	items, err := r.queryProfiles(ctx, query, args...)
	if err != nil {
		return out, err
	}
	out.Items = items
	return out, nil
}

func (r *ProfileRepository) ListChildren(ctx context.Context, parentID string) ([]domain.Profile, error) {
	return r.queryProfiles(ctx, `
SELECT `+profileColumns+`
FROM profiles
WHERE parent_id = $1 AND deleted_at IS NULL
ORDER BY code ASC
`, parentID)
}

func (r *ProfileRepository) queryProfiles(ctx context.Context, query string, args ...interface{}) ([]domain.Profile, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError("list profiles", err)
	}
	defer rows.Close()

	out := make([]domain.Profile, 0)
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, mapError("scan profile", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate profiles", err)
	}
	return out, nil
}

func scanProfile(row rowScanner) (domain.Profile, error) {
	var p domain.Profile
	var status string
	err := row.Scan(
		&p.ID, &p.EnterpriseID, &p.Code, &p.Name, &p.Description, &p.ProfileType, &p.ParentID, &p.Path, &p.IsTemplate,
		&p.RetentionMonths, &status, &p.OpenedAt, &p.ClosedAt, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	)
	if err != nil {
		return domain.Profile{}, err
	}
	p.Status = domain.ProfileStatus(status)
	return p, nil
}
