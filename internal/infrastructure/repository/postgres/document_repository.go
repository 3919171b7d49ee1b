package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const documentColumns = `id, profile_id, file_object_id, title, description, document_type, document_number, issue_date,
	expiry_date, issuing_authority, status, display_order, notes, created_by, created_at, updated_at, deleted_at`

var documentSortColumns = map[string]string{
	"display_order":   "display_order",
	"title":           "title",
	"created_at":      "created_at",
	"document_number": "document_number",
	"expiry_date":     "expiry_date",
}

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) CreateDocument(ctx context.Context, doc *domain.ProfileDocument) error {
	order, err := insertDocument(ctx, r.db, doc)
	if err != nil {
		return mapError("create document", err)
	}
	doc.DisplayOrder = order
	return nil
}

func (r *DocumentRepository) CopyDocument(ctx context.Context, doc *domain.ProfileDocument, values []domain.MetadataValue) error {
	return withTx(ctx, r.db, "copy document", func(tx *sql.Tx) error {
		order, err := insertDocument(ctx, tx, doc)
		if err != nil {
			return mapError("copy document", err)
		}
		doc.DisplayOrder = order
		for _, v := range values {
			v.DocumentID = doc.ID
			if err := insertValue(ctx, tx, v); err != nil {
				return mapError("copy document values", err)
			}
		}
		return nil
	})
}

func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*domain.ProfileDocument, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+documentColumns+`
FROM profile_documents
WHERE id = $1 AND deleted_at IS NULL
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("document", id)
		}
		return nil, mapError("get document", err)
	}
	return &doc, nil
}

func (r *DocumentRepository) UpdateDocument(ctx context.Context, doc *domain.ProfileDocument) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE profile_documents
SET title = $2, description = $3, document_type = $4, document_number = $5, issue_date = $6, expiry_date = $7,
	issuing_authority = $8, status = $9, notes = $10, updated_at = $11
WHERE id = $1 AND deleted_at IS NULL
`,
		doc.ID, doc.Title, doc.Description, doc.DocumentType, doc.DocumentNumber, doc.IssueDate, doc.ExpiryDate,
		doc.IssuingAuthority, doc.Status, doc.Notes, doc.UpdatedAt,
	)
	if err != nil {
		return mapError("update document", err)
	}
	ok, err := affectedOne(result, "update document")
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("document", doc.ID)
	}
	return nil
}

// MoveDocument appends the document after the last live document of the target profile.
func (r *DocumentRepository) MoveDocument(ctx context.Context, id, profileID string, at time.Time) (int, error) {
	var order int
	err := r.db.QueryRowContext(ctx, `
UPDATE profile_documents
SET profile_id = $2,
	display_order = (SELECT COALESCE(MAX(display_order), 0) + 1 FROM profile_documents WHERE profile_id = $2 AND deleted_at IS NULL),
	updated_at = $3
WHERE id = $1 AND deleted_at IS NULL
RETURNING display_order
`, id, profileID, at).Scan(&order)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.NotFound("document", id)
		}
		return 0, mapError("move document", err)
	}
	return order, nil
}

func (r *DocumentRepository) ReorderDocuments(ctx context.Context, profileID string, orders []domain.DisplayOrder, at time.Time) error {
	return withTx(ctx, r.db, "reorder documents", func(tx *sql.Tx) error {
		for _, o := range orders {
			result, err := tx.ExecContext(ctx, `
UPDATE profile_documents
SET display_order = $3, updated_at = $4
WHERE id = $1 AND profile_id = $2 AND deleted_at IS NULL
`, o.ID, profileID, o.Order, at)
			if err != nil {
				return mapError("reorder documents", err)
			}
			ok, err := affectedOne(result, "reorder documents")
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFound("document", o.ID)
			}
		}
		return nil
	})
}

func (r *DocumentRepository) SoftDeleteDocument(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE profile_documents
SET deleted_at = $2, updated_at = $2
WHERE id = $1 AND deleted_at IS NULL
`, id, at)
	if err != nil {
		return mapError("delete document", err)
	}
	ok, err := affectedOne(result, "delete document")
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("document", id)
	}
	return nil
}

func (r *DocumentRepository) ListDocuments(ctx context.Context, profileID string, page domain.PageRequest) (domain.Page[domain.ProfileDocument], error) {
	var f filter
	f.add("profile_id = $%d", profileID)
	f.raw("deleted_at IS NULL")
	if page.Query != "" {
		f.add("(title ILIKE $%[1]d OR document_number ILIKE $%[1]d)", likePattern(page.Query))
	}

	out := domain.Page[domain.ProfileDocument]{Items: []domain.ProfileDocument{}, Page: page.Page, Size: page.Size}
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM profile_documents `+f.where(), f.args...).Scan(&out.Total); err != nil {
		return out, mapError("count documents", err)
	}

	limit, args := pageArgs(&f, page)
	query := fmt.Sprintf("SELECT %s FROM profile_documents %s %s %s", documentColumns, f.where(), orderBy(documentSortColumns, page.Sort, page.Desc), limit)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return out, mapError("list documents", err)
	}
	defer rows.Close()

	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return out, mapError("scan document", err)
		}
		out.Items = append(out.Items, doc)
	}
	if err := rows.Err(); err != nil {
		return out, mapError("iterate documents", err)
	}
	return out, nil
}

func insertDocument(ctx context.Context, q querier, d *domain.ProfileDocument) (int, error) {
	var order int
	err := q.QueryRowContext(ctx, `
INSERT INTO profile_documents (`+documentColumns+`)
SELECT $1::text, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::date, $9::date, $10::text, $11::text,
	COALESCE(MAX(display_order), 0) + 1, $12::text, $13::text, $14::timestamptz, $15::timestamptz, NULL::timestamptz
FROM profile_documents
WHERE profile_id = $2 AND deleted_at IS NULL
RETURNING display_order
`,
		d.ID, d.ProfileID, d.FileObjectID, d.Title, d.Description, d.DocumentType, d.DocumentNumber, d.IssueDate,
		d.ExpiryDate, d.IssuingAuthority, d.Status, d.Notes, d.CreatedBy, d.CreatedAt, d.UpdatedAt,
	).Scan(&order)
	return order, err
}

func scanDocument(row rowScanner) (domain.ProfileDocument, error) {
	var d domain.ProfileDocument
	err := row.Scan(
		&d.ID, &d.ProfileID, &d.FileObjectID, &d.Title, &d.Description, &d.DocumentType, &d.DocumentNumber, &d.IssueDate,
		&d.ExpiryDate, &d.IssuingAuthority, &d.Status, &d.DisplayOrder, &d.Notes, &d.CreatedBy, &d.CreatedAt, &d.UpdatedAt, &d.DeletedAt,
	)
	return d, err
}
