package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/document-profiles/internal/core/ports"
)

const (
	defaultRedriveSchedule = "@every 1m"
	defaultRedriveBatch    = 100
	redriveTimeout         = 2 * time.Minute
)

type redriveMetrics interface {
	RecordHistoryRedrive(service string, delivered, failed int, err error)
}

type RedriveOptions struct {
	Service   string
	Schedule  string
	BatchSize int
	Logger    *slog.Logger
}

// HistoryRedriver republishes parked history entries on a schedule. An entry
// leaves the outbox only after the publisher accepted it; consumers drop
// redelivered ids, so a crash between publish and ack is harmless.
type HistoryRedriver struct {
	outbox    ports.HistoryOutbox
	publisher ports.HistoryPublisher
	metrics   redriveMetrics
	opts      RedriveOptions
	logger    *slog.Logger
	cron      *cron.Cron
}

func NewHistoryRedriver(
	outbox ports.HistoryOutbox,
	publisher ports.HistoryPublisher,
	metrics redriveMetrics,
	opts RedriveOptions,
) (*HistoryRedriver, error) {
	if opts.Schedule == "" {
		opts.Schedule = defaultRedriveSchedule
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultRedriveBatch
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := &HistoryRedriver{
		outbox:    outbox,
		publisher: publisher,
		metrics:   metrics,
		opts:      opts,
		logger:    logger,
		cron:      cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := r.cron.AddFunc(opts.Schedule, func() { _, _ = r.Drain(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse redrive schedule %q: %w", opts.Schedule, err)
	}
	return r, nil
}

func (r *HistoryRedriver) Start() {
	r.cron.Start()
}

// Stop waits for a running drain to finish.
func (r *HistoryRedriver) Stop() {
	<-r.cron.Stop().Done()
}

// Drain makes one pass over the oldest parked entries and returns how many
// were delivered. Entries that fail again are re-parked with the new cause.
func (r *HistoryRedriver) Drain(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, redriveTimeout)
	defer cancel()

	pending, err := r.outbox.PendingHistory(ctx, r.opts.BatchSize)
	if err != nil {
		r.record(0, 0, err)
		r.logger.Error("history_redrive_failed", "error", err)
		return 0, err
	}

	delivered, failed := 0, 0
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			break
		}
		if err := r.publisher.PublishHistory(ctx, p.Entry); err != nil {
			failed++
			if parkErr := r.outbox.ParkHistory(ctx, p.Entry, err.Error()); parkErr != nil {
				r.logger.Error("history_park_failed", "history_id", p.Entry.ID, "error", parkErr)
			}
			r.logger.Warn("history_redrive_entry_failed",
				"history_id", p.Entry.ID,
				"entity_type", p.Entry.EntityType,
				"attempts", p.Attempts+1,
				"error", err,
			)
			continue
		}
		if err := r.outbox.AckHistory(ctx, p.Entry.ID); err != nil {
			r.logger.Error("history_ack_failed", "history_id", p.Entry.ID, "error", err)
			continue
		}
		delivered++
	}

	r.record(delivered, failed, nil)
	if len(pending) > 0 {
		r.logger.Info("history_redrive_completed", "delivered", delivered, "failed", failed)
	}
	return delivered, nil
}

func (r *HistoryRedriver) record(delivered, failed int, err error) {
	if r.metrics != nil {
		r.metrics.RecordHistoryRedrive(r.opts.Service, delivered, failed, err)
	}
}
