package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/netutil"

	httpadapter "github.com/kirillkom/document-profiles/internal/adapters/http"
	"github.com/kirillkom/document-profiles/internal/bootstrap"
	"github.com/kirillkom/document-profiles/internal/config"
	"github.com/kirillkom/document-profiles/internal/observability/logging"
	"github.com/kirillkom/document-profiles/internal/observability/metrics"
	"github.com/kirillkom/document-profiles/internal/worker"
)

const serviceName = "api"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.Install(logging.NewJSONLogger(serviceName, cfg.LogLevel))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpMetrics := metrics.NewHTTPServerMetrics(serviceName)
	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{
		Service: serviceName,
		Logger:  logger,
		Metrics: httpMetrics,
	})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	// The memory outbox lives in this process, so nothing else can drain it.
	if app.Outbox != nil && cfg.StorageDriver == config.StorageDriverMemory {
		redriver, err := worker.NewHistoryRedriver(app.Outbox, app.Publisher, nil, worker.RedriveOptions{
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

	router := httpadapter.NewRouter(httpadapter.Services{
		Profiles:  app.Profiles,
		Schema:    app.Schema,
		Values:    app.Values,
		Documents: app.Documents,
		Loans:     app.Loans,
		Approvals: app.Approvals,
	}, httpadapter.Options{
		Service:           serviceName,
		RateLimitRPS:      cfg.APIRateLimitRPS,
		RateLimitBurst:    cfg.APIRateLimitBurst,
		BackpressureLimit: cfg.APIBackpressureLimit,
		BackpressureWait:  cfg.APIBackpressureWait,
		RequestTimeout:    cfg.APIRequestTimeout,
		Metrics:           httpMetrics,
		Logger:            logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", httpMetrics.Handler())
	mux.Handle("/", router.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.APIPort,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		logger.Error("api_listen_failed", "addr", server.Addr, "error", err)
		os.Exit(1)
	}
	if cfg.APIMaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.APIMaxConnections)
	}

	go func() {
		logger.Info("api_listening", "port", cfg.APIPort, "max_connections", cfg.APIMaxConnections)
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api_server_failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("api_shutdown_failed", "error", err)
	}
}
