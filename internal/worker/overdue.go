package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kirillkom/document-profiles/internal/core/domain"
)

const (
	defaultOverdueSchedule = "@every 15m"
	overdueScanTimeout     = time.Minute
)

type overdueLister interface {
	Overdue(ctx context.Context, enterpriseID string, now time.Time) ([]domain.Loan, error)
}

type overdueMetrics interface {
	RecordOverdueScan(service string, overdue int, err error)
}

type ScannerOptions struct {
	Service      string
	Schedule     string
	EnterpriseID string
	Logger       *slog.Logger
}

// OverdueScanner periodically reports borrowed loans past their due date.
type OverdueScanner struct {
	loans   overdueLister
	metrics overdueMetrics
	opts    ScannerOptions
	logger  *slog.Logger
	cron    *cron.Cron
}

func NewOverdueScanner(loans overdueLister, metrics overdueMetrics, opts ScannerOptions) (*OverdueScanner, error) {
	if opts.Schedule == "" {
		opts.Schedule = defaultOverdueSchedule
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &OverdueScanner{
		loans:   loans,
		metrics: metrics,
		opts:    opts,
		logger:  logger,
		cron:    cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
	}
	if _, err := s.cron.AddFunc(opts.Schedule, func() { _, _ = s.Scan(context.Background()) }); err != nil {
		return nil, fmt.Errorf("parse overdue schedule %q: %w", opts.Schedule, err)
	}
	return s, nil
}

func (s *OverdueScanner) Start() {
	s.cron.Start()
}

// Stop waits for a running scan to finish.
func (s *OverdueScanner) Stop() {
	<-s.cron.Stop().Done()
}

// Scan runs one pass and returns the overdue loans it found.
func (s *OverdueScanner) Scan(ctx context.Context) ([]domain.Loan, error) {
	ctx, cancel := context.WithTimeout(ctx, overdueScanTimeout)
	defer cancel()

	loans, err := s.loans.Overdue(ctx, s.opts.EnterpriseID, time.Time{})
	if s.metrics != nil {
		s.metrics.RecordOverdueScan(s.opts.Service, len(loans), err)
	}
	if err != nil {
		s.logger.Error("overdue_scan_failed", "enterprise_id", s.opts.EnterpriseID, "error", err)
		return nil, err
	}

	for _, loan := range loans {
		s.logger.Warn("loan_overdue",
			"loan_id", loan.ID,
			"loan_code", loan.Code,
			"borrower_id", loan.BorrowerID,
			"due_date", loan.DueDate,
		)
	}
	s.logger.Info("overdue_scan_completed", "enterprise_id", s.opts.EnterpriseID, "overdue", len(loans))
	return loans, nil
}
