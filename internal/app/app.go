package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"SentimentScanner/internal/config"
	"SentimentScanner/internal/infrastructure/ops"
	"SentimentScanner/internal/infrastructure/scheduler"
	"SentimentScanner/internal/infrastructure/search"
	"SentimentScanner/internal/infrastructure/storage"
	"SentimentScanner/internal/logging"
	"SentimentScanner/internal/ratelimit"
	"SentimentScanner/internal/usecase"
)

// Application wires configuration into the refresh pipeline and owns the
// process lifecycle.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	store        *storage.PostgresStore
	orchestrator *usecase.Orchestrator
	driver       *scheduler.TickerScheduler
	opsServer    *http.Server
}

// New builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := storage.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}

	selector := usecase.NewSelector(store, baseLogger.With("component", "selector"))
	recorder := usecase.NewRecorder(store, baseLogger.With("component", "recorder"))

	limiter := ratelimit.PerSecond(cfg.Search.RatePerSecond)

	// Shared between the client's per-call hook and the orchestrator so the
	// run summary counts every billable phase call, retries included.
	requests := new(atomic.Int64)
	provider := search.NewClient(cfg.Search, limiter,
		baseLogger.With("component", "search"),
		search.WithRequestHook(func() { requests.Add(1) }))

	dispatcher := usecase.NewDispatcher(provider, recorder,
		cfg.Refresher.Concurrency, baseLogger.With("component", "dispatcher"))
	orchestrator := usecase.NewOrchestrator(store, selector, dispatcher, requests,
		cfg.Search.CostPerRequest, cfg.Refresher.DailyCap,
		baseLogger.With("component", "orchestrator"))

	opsHandler := ops.NewServer(orchestrator, store, cfg.Search.CostPerRequest,
		baseLogger.With("component", "ops")).Handler()

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		store:        store,
		orchestrator: orchestrator,
		driver:       scheduler.NewTickerScheduler(cfg.Scheduler.Interval(), cfg.Scheduler.Location()),
		opsServer:    &http.Server{Addr: cfg.Ops.ListenAddr, Handler: opsHandler},
	}, nil
}

// Run migrates the store, starts the scheduler and the ops surface, and
// blocks until the context is cancelled.
func (a *Application) Run(ctx context.Context) error {
	if err := a.store.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate store: %w", err)
	}

	job := func(trigger time.Time) {
		if _, err := a.orchestrator.RunNow(ctx, a.cfg.Refresher.DailyCap, false); err != nil {
			a.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	}
	if err := a.driver.Start(ctx, job); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("ops surface listening", "addr", a.cfg.Ops.ListenAddr)
		if err := a.opsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("ops server: %w", err)
	}

	return a.shutdown()
}

func (a *Application) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.driver.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	if err := a.opsServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("ops server shutdown", "error", err)
	}
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}
