package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/ports"
)

type historyMetrics interface {
	StartHistory()
	FinishHistory(service string, duration time.Duration, err error)
	ObserveHistoryLag(service string, lag time.Duration)
}

// HistoryConsumer stores entries delivered by the broker.
type HistoryConsumer struct {
	store   ports.HistoryStore
	metrics historyMetrics
	service string
	logger  *slog.Logger
	now     func() time.Time
}

func NewHistoryConsumer(store ports.HistoryStore, metrics historyMetrics, service string, logger *slog.Logger) *HistoryConsumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &HistoryConsumer{
		store:   store,
		metrics: metrics,
		service: service,
		logger:  logger,
		now:     time.Now,
	}
}

func (c *HistoryConsumer) Handle(ctx context.Context, entry domain.HistoryEntry) error {
	start := c.now()
	if c.metrics != nil {
		c.metrics.StartHistory()
		if !entry.OccurredAt.IsZero() {
			c.metrics.ObserveHistoryLag(c.service, start.Sub(entry.OccurredAt))
		}
	}

	err := c.store.AppendHistory(ctx, entry)
	if c.metrics != nil {
		c.metrics.FinishHistory(c.service, c.now().Sub(start), err)
	}
	if err != nil {
		return err
	}

	c.logger.Debug("history_stored",
		"history_id", entry.ID,
		"entity_type", entry.EntityType,
		"entity_id", entry.EntityID,
		"change_type", string(entry.ChangeType),
	)
	return nil
}
