package bootstrap

import (
	"context"

	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/core/ports"
)

type historyFailureRecorder interface {
	RecordHistoryFailure(service, entityType string)
}

// instrumentedPublisher counts publish failures before handing them back to the recorder.
type instrumentedPublisher struct {
	next    ports.HistoryPublisher
	metrics historyFailureRecorder
	service string
}

func (p *instrumentedPublisher) PublishHistory(ctx context.Context, entry domain.HistoryEntry) error {
	err := p.next.PublishHistory(ctx, entry)
	if err != nil {
		p.metrics.RecordHistoryFailure(p.service, entry.EntityType)
	}
	return err
}

// storePublisher appends entries synchronously when no broker is configured.
type storePublisher struct {
	store ports.HistoryStore
}

func (p storePublisher) PublishHistory(ctx context.Context, entry domain.HistoryEntry) error {
	return p.store.AppendHistory(ctx, entry)
}
