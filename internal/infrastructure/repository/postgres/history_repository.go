package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

type HistoryRepository struct {
	db *sql.DB
}

func NewHistoryRepository(db *sql.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// AppendHistory ignores redelivered entries with an id already stored.
func (r *HistoryRepository) AppendHistory(ctx context.Context, e domain.HistoryEntry) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO history_entries (id, entity_type, entity_id, actor_id, change_type, field_name, old_value, new_value, details, occurred_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
ON CONFLICT (id) DO NOTHING
`, e.ID, e.EntityType, e.EntityID, e.ActorID, string(e.ChangeType), e.FieldName, e.OldValue, e.NewValue, e.Details, e.OccurredAt)
	if err != nil {
		return mapError("append history", err)
	}
	return nil
}

// ParkHistory stores entry for a later redrive. A second park of the same id
// keeps the original payload and bumps attempts.
func (r *HistoryRepository) ParkHistory(ctx context.Context, e domain.HistoryEntry, cause string) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode parked history: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO history_outbox (id, payload, attempts, last_error, parked_at)
VALUES ($1, $2, 1, $3, $4)
ON CONFLICT (id) DO UPDATE
SET attempts = history_outbox.attempts + 1, last_error = EXCLUDED.last_error
`, e.ID, payload, cause, time.Now().UTC())
	if err != nil {
		return mapError("park history", err)
	}
	return nil
}

func (r *HistoryRepository) PendingHistory(ctx context.Context, limit int) ([]domain.PendingHistory, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT payload, attempts, last_error, parked_at
FROM history_outbox
ORDER BY parked_at ASC, id ASC
LIMIT $1
`, limit)
	if err != nil {
		return nil, mapError("list parked history", err)
	}
	defer rows.Close()

	out := make([]domain.PendingHistory, 0)
	for rows.Next() {
		var (
			payload []byte
			p       domain.PendingHistory
		)
		if err := rows.Scan(&payload, &p.Attempts, &p.LastError, &p.ParkedAt); err != nil {
			return nil, mapError("scan parked history", err)
		}
		if err := json.Unmarshal(payload, &p.Entry); err != nil {
			return nil, fmt.Errorf("decode parked history: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate parked history", err)
	}
	return out, nil
}

func (r *HistoryRepository) AckHistory(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM history_outbox WHERE id = $1`, id); err != nil {
		return mapError("ack history", err)
	}
	return nil
}
