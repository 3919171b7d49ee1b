package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const fieldColumns = `id, profile_id, name, label, data_type, required, default_value, pattern, pattern_message,
	min_value, max_value, max_length, options, display_order, visible_in_list, searchable, enabled,
	created_by, created_at, updated_at, deleted_at`

type FieldRepository struct {
	db *sql.DB
}

func NewFieldRepository(db *sql.DB) *FieldRepository {
	return &FieldRepository{db: db}
}

func (r *FieldRepository) CreateField(ctx context.Context, field *domain.MetadataField) error {
	if err := insertField(ctx, r.db, field); err != nil {
		return mapError("create field", err)
	}
	return nil
}

func (r *FieldRepository) GetField(ctx context.Context, id string) (*domain.MetadataField, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+fieldColumns+`
FROM metadata_fields
WHERE id = $1 AND deleted_at IS NULL
`, id)

	f, err := scanField(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NotFound("metadata_field", id)
		}
		return nil, mapError("get field", err)
	}
	return &f, nil
}

func (r *FieldRepository) UpdateField(ctx context.Context, f *domain.MetadataField) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE metadata_fields
SET name = $2, label = $3, data_type = $4, required = $5, default_value = $6, pattern = $7, pattern_message = $8,
	min_value = $9, max_value = $10, max_length = $11, options = $12, display_order = $13, visible_in_list = $14,
	searchable = $15, enabled = $16, updated_at = $17
WHERE id = $1 AND deleted_at IS NULL
`,
		f.ID, f.Name, f.Label, string(f.DataType), f.Required, f.DefaultValue, f.Pattern, f.PatternMessage,
		f.MinValue, f.MaxValue, f.MaxLength, f.Options, f.DisplayOrder, f.VisibleInList,
		f.Searchable, f.Enabled, f.UpdatedAt,
	)
	if err != nil {
		return mapError("update field", err)
	}
	ok, err := affectedOne(result, "update field")
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("metadata_field", f.ID)
	}
	return nil
}

func (r *FieldRepository) SoftDeleteField(ctx context.Context, id string, at time.Time) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE metadata_fields
SET deleted_at = $2, updated_at = $2
WHERE id = $1 AND deleted_at IS NULL
`, id, at)
	if err != nil {
		return mapError("delete field", err)
	}
	ok, err := affectedOne(result, "delete field")
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFound("metadata_field", id)
	}
	return nil
}

func (r *FieldRepository) ListFields(ctx context.Context, profileID *string, includeDisabled bool) ([]domain.MetadataField, error) {
	var f filter
	f.raw("deleted_at IS NULL")
	if profileID == nil {
		f.raw("profile_id IS NULL")
	} else {
		f.add("profile_id = $%d", *profileID)
	}
	if !includeDisabled {
		f.raw("enabled")
	}

	rows, err := r.db.QueryContext(ctx, `SELECT `+fieldColumns+` FROM metadata_fields `+f.where()+` ORDER BY display_order ASC, name ASC`, f.args...)
	if err != nil {
		return nil, mapError("list fields", err)
	}
	defer rows.Close()

	out := make([]domain.MetadataField, 0)
	for rows.Next() {
		field, err := scanField(rows)
		if err != nil {
			return nil, mapError("scan field", err)
		}
		out = append(out, field)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate fields", err)
	}
	return out, nil
}

func (r *FieldRepository) InsertFields(ctx context.Context, fields []domain.MetadataField) error {
	return withTx(ctx, r.db, "insert fields", func(tx *sql.Tx) error {
		for i := range fields {
			if err := insertField(ctx, tx, &fields[i]); err != nil {
				return mapError("insert fields", err)
			}
		}
		return nil
	})
}

func (r *FieldRepository) ReorderFields(ctx context.Context, profileID *string, orders []domain.DisplayOrder, at time.Time) error {
	return withTx(ctx, r.db, "reorder fields", func(tx *sql.Tx) error {
		for _, o := range orders {
			result, err := tx.ExecContext(ctx, `
UPDATE metadata_fields
SET display_order = $2, updated_at = $3
WHERE id = $1 AND profile_id IS NOT DISTINCT FROM $4 AND deleted_at IS NULL
`, o.ID, o.Order, at, profileID)
			if err != nil {
				return mapError("reorder fields", err)
			}
			ok, err := affectedOne(result, "reorder fields")
			if err != nil {
				return err
			}
			if !ok {
				return domain.NotFound("metadata_field", o.ID)
			}
		}
		return nil
	})
}

// FieldHasValues counts cleared rows too; they keep the slot of the old type.
func (r *FieldRepository) FieldHasValues(ctx context.Context, fieldID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
SELECT EXISTS (SELECT 1 FROM metadata_values WHERE field_id = $1)
`, fieldID).Scan(&exists)
	if err != nil {
		return false, mapError("check field values", err)
	}
	return exists, nil
}

func insertField(ctx context.Context, q querier, f *domain.MetadataField) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO metadata_fields (`+fieldColumns+`)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
`,
		f.ID, f.ProfileID, f.Name, f.Label, string(f.DataType), f.Required, f.DefaultValue, f.Pattern, f.PatternMessage,
		f.MinValue, f.MaxValue, f.MaxLength, f.Options, f.DisplayOrder, f.VisibleInList, f.Searchable, f.Enabled,
		f.CreatedBy, f.CreatedAt, f.UpdatedAt, f.DeletedAt,
	)
	return err
}

func fieldDest(f *domain.MetadataField, dataType *string) []interface{} {
	return []interface{}{
		&f.ID, &f.ProfileID, &f.Name, &f.Label, dataType, &f.Required, &f.DefaultValue, &f.Pattern, &f.PatternMessage,
		&f.MinValue, &f.MaxValue, &f.MaxLength, &f.Options, &f.DisplayOrder, &f.VisibleInList, &f.Searchable, &f.Enabled,
		&f.CreatedBy, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt,
	}
}

func scanField(row rowScanner) (domain.MetadataField, error) {
	var f domain.MetadataField
	var dataType string
	if err := row.Scan(fieldDest(&f, &dataType)...); err != nil {
		return domain.MetadataField{}, err
	}
	f.DataType = domain.DataType(dataType)
	return f, nil
}
