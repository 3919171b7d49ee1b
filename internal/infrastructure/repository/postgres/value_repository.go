package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const valueColumns = `id, document_id, field_id, kind, string_value, number_value, date_value, bool_value, json_value,
	created_by, updated_by, created_at, updated_at, deleted_at`

type ValueRepository struct {
	db *sql.DB
}

func NewValueRepository(db *sql.DB) *ValueRepository {
	return &ValueRepository{db: db}
}

// UpsertValues relies on the partial unique index over live (document, field)
// rows, so concurrent writers converge on a single row.
func (r *ValueRepository) UpsertValues(ctx context.Context, documentID string, values []domain.MetadataValue, clearFieldIDs []string, actorID string, at time.Time) error {
	return withTx(ctx, r.db, "upsert values", func(tx *sql.Tx) error {
		for _, v := range values {
			_, err := tx.ExecContext(ctx, `
INSERT INTO metadata_values (`+valueColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULL)
ON CONFLICT (document_id, field_id) WHERE deleted_at IS NULL DO UPDATE
SET kind = EXCLUDED.kind,
	string_value = EXCLUDED.string_value,
	number_value = EXCLUDED.number_value,
	date_value = EXCLUDED.date_value,
	bool_value = EXCLUDED.bool_value,
	json_value = EXCLUDED.json_value,
	updated_by = EXCLUDED.updated_by,
	updated_at = EXCLUDED.updated_at
`,
				v.ID, documentID, v.FieldID, string(v.Kind), v.StringVal, v.NumberVal, v.DateVal, v.BoolVal, v.JSONVal,
				v.CreatedBy, actorID, v.CreatedAt, at,
			)
			if err != nil {
				return mapError("upsert value", err)
			}
		}
		for _, fieldID := range clearFieldIDs {
			_, err := tx.ExecContext(ctx, `
UPDATE metadata_values
SET deleted_at = $3, updated_by = $4, updated_at = $3
WHERE document_id = $1 AND field_id = $2 AND deleted_at IS NULL
`, documentID, fieldID, at, actorID)
			if err != nil {
				return mapError("clear value", err)
			}
		}
		return nil
	})
}

func (r *ValueRepository) GetValue(ctx context.Context, documentID, fieldID string) (*domain.MetadataValue, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+valueColumns+`
FROM metadata_values
WHERE document_id = $1 AND field_id = $2 AND deleted_at IS NULL
`, documentID, fieldID)

	v, err := scanValue(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("metadata_value", fieldID)
		}
		return nil, mapError("get value", err)
	}
	return &v, nil
}

func (r *ValueRepository) ListValues(ctx context.Context, documentID string) ([]domain.FieldValue, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT f.id, f.profile_id, f.name, f.label, f.data_type, f.required, f.default_value, f.pattern, f.pattern_message,
	f.min_value, f.max_value, f.max_length, f.options, f.display_order, f.visible_in_list, f.searchable, f.enabled,
	f.created_by, f.created_at, f.updated_at, f.deleted_at,
	v.id, v.document_id, v.field_id, v.kind, v.string_value, v.number_value, v.date_value, v.bool_value, v.json_value,
	v.created_by, v.updated_by, v.created_at, v.updated_at, v.deleted_at
FROM metadata_values v
JOIN metadata_fields f ON f.id = v.field_id AND f.deleted_at IS NULL
WHERE v.document_id = $1 AND v.deleted_at IS NULL
ORDER BY (f.profile_id IS NOT NULL) ASC, f.display_order ASC, f.name ASC
`, documentID)
	if err != nil {
		return nil, mapError("list values", err)
	}
	defer rows.Close()

	out := make([]domain.FieldValue, 0)
	for rows.Next() {
		var fv domain.FieldValue
		var dataType, kind string
		dest := append(fieldDest(&fv.Field, &dataType), valueDest(&fv.Value, &kind)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, mapError("scan value", err)
		}
		fv.Field.DataType = domain.DataType(dataType)
		fv.Value.Kind = domain.DataType(kind)
		out = append(out, fv)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate values", err)
	}
	return out, nil
}

func insertValue(ctx context.Context, q querier, v domain.MetadataValue) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO metadata_values (`+valueColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,NULL)
`,
		v.ID, v.DocumentID, v.FieldID, string(v.Kind), v.StringVal, v.NumberVal, v.DateVal, v.BoolVal, v.JSONVal,
		v.CreatedBy, v.UpdatedBy, v.CreatedAt, v.UpdatedAt,
	)
	return err
}

func valueDest(v *domain.MetadataValue, kind *string) []interface{} {
	return []interface{}{
		&v.ID, &v.DocumentID, &v.FieldID, kind, &v.StringVal, &v.NumberVal, &v.DateVal, &v.BoolVal, &v.JSONVal,
		&v.CreatedBy, &v.UpdatedBy, &v.CreatedAt, &v.UpdatedAt, &v.DeletedAt,
	}
}

func scanValue(row rowScanner) (domain.MetadataValue, error) {
	var v domain.MetadataValue
	var kind string
	if err := row.Scan(valueDest(&v, &kind)...); err != nil {
		return domain.MetadataValue{}, err
	}
	v.Kind = domain.DataType(kind)
	return v, nil
}
