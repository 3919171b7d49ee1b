package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/document-profiles/internal/bootstrap"
	"github.com/kirillkom/document-profiles/internal/config"
	"github.com/kirillkom/document-profiles/internal/core/domain"
	"github.com/kirillkom/document-profiles/internal/observability/logging"
	"github.com/kirillkom/document-profiles/internal/observability/metrics"
	"github.com/kirillkom/document-profiles/internal/worker"
)

const serviceName = "worker"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.Install(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{Service: serviceName, Logger: logger})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           workerMetrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	scanner, err := worker.NewOverdueScanner(app.Loans, workerMetrics, worker.ScannerOptions{
		Service:      serviceName,
		Schedule:     cfg.OverdueScanSchedule,
		EnterpriseID: cfg.OverdueEnterpriseID,
		Logger:       logger,
	})
	if err != nil {
		logger.Error("overdue_scanner_failed", "error", err)
		os.Exit(1)
	}
	scanner.Start()
	defer scanner.Stop()

	if app.Outbox != nil {
		redriver, err := worker.NewHistoryRedriver(app.Outbox, app.Publisher, workerMetrics, worker.RedriveOptions{
			Service:   serviceName,
			Schedule:  cfg.HistoryRedriveSchedule,
			BatchSize: cfg.HistoryRedriveBatch,
			Logger:    logger,
		})
		if err != nil {
			logger.Error("history_redriver_failed", "error", err)
			os.Exit(1)
		}
		redriver.Start()
		defer redriver.Stop()
	}

	if app.Queue == nil {
		logger.Info("worker_history_consumer_disabled", "reason", "no broker configured")
		<-ctx.Done()
		return
	}

	consumer := worker.NewHistoryConsumer(app.History, workerMetrics, serviceName, logger)
	logger.Info("worker_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeHistory(ctx, func(handlerCtx context.Context, entry domain.HistoryEntry) error {
		appendCtx, cancel := context.WithTimeout(handlerCtx, 30*time.Second)
		defer cancel()
		return consumer.Handle(appendCtx, entry)
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
	}
}
