package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kirillkom/document-profiles/internal/config"
	"github.com/kirillkom/document-profiles/internal/core/ports"
	"github.com/kirillkom/document-profiles/internal/core/usecase"
	"github.com/kirillkom/document-profiles/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/document-profiles/internal/infrastructure/queue/nats"
	"github.com/kirillkom/document-profiles/internal/infrastructure/repository/memory"
	"github.com/kirillkom/document-profiles/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/document-profiles/internal/infrastructure/resilience"
	"github.com/kirillkom/document-profiles/internal/observability/metrics"
)

type Options struct {
	Service string
	Logger  *slog.Logger
	// Metrics receives history publish failures when set.
	Metrics *metrics.HTTPServerMetrics
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	History  ports.HistoryStore
	Executor *resilience.Executor
	// Publisher and Outbox are nil when history is disabled.
	Publisher ports.HistoryPublisher
	Outbox    ports.HistoryOutbox

	Profiles  *usecase.ProfileUseCase
	Schema    *usecase.SchemaUseCase
	Values    *usecase.ValueUseCase
	Documents *usecase.DocumentUseCase
	Loans     *usecase.LoanUseCase
	Approvals *usecase.ApprovalUseCase

	closeFns []func()
}

type repositories struct {
	profiles  ports.ProfileRepository
	fields    ports.FieldRepository
	values    ports.ValueRepository
	documents ports.DocumentRepository
	loans     ports.LoanRepository
	approvals ports.ApprovalRepository
	history   ports.HistoryStore
	outbox    ports.HistoryOutbox
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Service == "" {
		opts.Service = "api"
	}

	app := &App{Config: cfg, Logger: logger}
	resilienceCfg := resilience.Config{
		RetryMaxAttempts:   cfg.ResilienceRetryAttempts,
		BreakerEnabled:     cfg.ResilienceBreakerEnabled,
		BreakerMinRequests: uint32(cfg.ResilienceBreakerMinCalls),
		Logger:             logger,
	}
	if opts.Metrics != nil {
		service := opts.Service
		resilienceCfg.OnStateChange = func(operation, state string) {
			opts.Metrics.SetBreakerState(service, operation, state)
		}
	}
	app.Executor = resilience.NewExecutor(resilienceCfg)

	repos, err := app.openRepositories(ctx, cfg)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.History = repos.history

	publisher, err := app.historyPublisher(cfg, repos.history)
	if err != nil {
		app.Close()
		return nil, err
	}
	if publisher != nil && opts.Metrics != nil {
		publisher = &instrumentedPublisher{next: publisher, metrics: opts.Metrics, service: opts.Service}
	}
	history := usecase.NewHistoryRecorder(publisher, logger)
	if publisher != nil {
		app.Publisher = publisher
		app.Outbox = repos.outbox
		history.WithOutbox(repos.outbox)
	}

	app.Schema = usecase.NewSchemaUseCase(repos.fields, repos.profiles, history)
	app.Profiles = usecase.NewProfileUseCase(repos.profiles, app.Schema, history, logger)
	app.Values = usecase.NewValueUseCase(repos.values, repos.fields, repos.documents, history)
	app.Documents = usecase.NewDocumentUseCase(
		repos.documents,
		repos.profiles,
		repos.fields,
		repos.values,
		xlsx.NewExporter(logger),
		history,
	)
	app.Loans = usecase.NewLoanUseCase(repos.loans, repos.documents, history)
	app.Approvals = usecase.NewApprovalUseCase(repos.approvals, repos.documents, history)

	logger.Info("bootstrap_ready",
		"storage_driver", cfg.StorageDriver,
		"history_enabled", cfg.HistoryEnabled,
		"history_transport", historyTransport(cfg),
	)
	return app, nil
}

func (a *App) openRepositories(ctx context.Context, cfg config.Config) (repositories, error) {
	if cfg.StorageDriver == config.StorageDriverMemory {
		store := memory.New()
		return repositories{
			profiles:  store,
			fields:    store,
			values:    store,
			documents: store,
			loans:     store,
			approvals: store,
			history:   store,
			outbox:    store,
		}, nil
	}

	var db *sql.DB
	err := a.Executor.Execute(ctx, "postgres.open", func(context.Context) error {
		opened, err := postgres.OpenDB(cfg.PostgresDSN, postgres.PoolConfig{
			MaxOpenConns:    cfg.PostgresMaxConns,
			ConnMaxLifetime: cfg.PostgresConnMaxLife,
		})
		if err != nil {
			return err
		}
		db = opened
		return nil
	}, postgres.ClassifyOpenError)
	if err != nil {
		return repositories{}, fmt.Errorf("open postgres: %w", err)
	}
	a.closeFns = append(a.closeFns, func() { _ = db.Close() })

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return repositories{}, fmt.Errorf("ensure schema: %w", err)
	}

	history := postgres.NewHistoryRepository(db)
	return repositories{
		profiles:  postgres.NewProfileRepository(db),
		fields:    postgres.NewFieldRepository(db),
		values:    postgres.NewValueRepository(db),
		documents: postgres.NewDocumentRepository(db),
		loans:     postgres.NewLoanRepository(db),
		approvals: postgres.NewApprovalRepository(db),
		history:   history,
		outbox:    history,
	}, nil
}

// historyPublisher prefers NATS; without a broker entries go straight to the local store.
func (a *App) historyPublisher(cfg config.Config, store ports.HistoryStore) (ports.HistoryPublisher, error) {
	if !cfg.HistoryEnabled {
		return nil, nil
	}
	if cfg.NATSURL == "" {
		return storePublisher{store: store}, nil
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: a.Executor,
		Logger:             a.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init history queue: %w", err)
	}
	a.Queue = queue
	a.closeFns = append(a.closeFns, queue.Close)
	return queue, nil
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}

func historyTransport(cfg config.Config) string {
	switch {
	case !cfg.HistoryEnabled:
		return "disabled"
	case cfg.NATSURL == "":
		return "direct"
	default:
		return "nats"
	}
}
