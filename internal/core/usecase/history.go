package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/ports"
)

const historyPublishTimeout = 5 * time.Second

// HistoryRecorder forwards audit events after a mutation has committed.
// Failures are logged, parked in the outbox when one is set, and never
// surface to the caller.
type HistoryRecorder struct {
	publisher ports.HistoryPublisher
	outbox    ports.HistoryOutbox
	logger    *slog.Logger
}

func NewHistoryRecorder(publisher ports.HistoryPublisher, logger *slog.Logger) *HistoryRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryRecorder{publisher: publisher, logger: logger}
}

// WithOutbox parks entries whose publish failed so a redrive can deliver them later.
func (h *HistoryRecorder) WithOutbox(outbox ports.HistoryOutbox) *HistoryRecorder {
	h.outbox = outbox
	return h
}

func (h *HistoryRecorder) Record(ctx context.Context, entry domain.HistoryEntry) {
	if h == nil || h.publisher == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.OccurredAt.IsZero() {
		entry.OccurredAt = time.Now().UTC()
	}

	// The local write already committed; a cancelled request must not drop the event.
	publishCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyPublishTimeout)
	defer cancel()

	err := h.publisher.PublishHistory(publishCtx, entry)
	if err == nil {
		return
	}
	h.logger.Warn("history_publish_failed",
		"history_id", entry.ID,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"change_type", string(entry.ChangeType),
		"parked", h.outbox != nil,
		"error", err,
	)
	if h.outbox == nil {
		return
	}

	parkCtx, cancelPark := context.WithTimeout(context.WithoutCancel(ctx), historyPublishTimeout)
	defer cancelPark()
	if parkErr := h.outbox.ParkHistory(parkCtx, entry, err.Error()); parkErr != nil {
		h.logger.Error("history_park_failed",
			"history_id", entry.ID,
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"error", parkErr,
		)
	}
}

func historyEntry(entityType, entityID, actorID string, change domain.ChangeType, at time.Time) domain.HistoryEntry {
	return domain.HistoryEntry{
		EntityType: entityType,
		EntityID:   entityID,
		ActorID:    actorID,
		ChangeType: change,
		OccurredAt: at,
	}
}

func utcNow() time.Time {
	return time.Now().UTC()
}
