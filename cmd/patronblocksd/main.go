// Command patronblocksd runs the patron blocks service: event intake,
// summary projection, block evaluation, and the synchronization runner.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.opentelemetry.io/otel"

	"github.com/libcirc/patronblocks/internal/blocks"
	"github.com/libcirc/patronblocks/internal/clients"
	"github.com/libcirc/patronblocks/internal/config"
	"github.com/libcirc/patronblocks/internal/httpapi"
	"github.com/libcirc/patronblocks/internal/observability"
	"github.com/libcirc/patronblocks/internal/shell"
	"github.com/libcirc/patronblocks/internal/storage/postgres"
	"github.com/libcirc/patronblocks/internal/summary"
	"github.com/libcirc/patronblocks/internal/synchronization"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logger := observability.NewTextLogger(slog.LevelInfo)

	if err := run(logger); err != nil {
		logger.Error("service failed", "error", err.Error())
		os.Exit(1)
	}
}

func run(logger *observability.SlogLogger) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	engine, cleanup, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	summaries := engine.Summaries()
	eventLog := engine.EventLog()

	eventHandler := summary.NewEventHandler(summaries, eventLog,
		summary.WithLogger(logger),
		summary.WithRetryOptions(shell.WithMaxAttempts(cfg.RetryMaxAttempts)))

	blockService := blocks.NewService(
		summaries,
		engine.Conditions(),
		engine.Limits(),
		clients.NewUsersClient(cfg.UsersBaseURL),
		blocks.WithLogger(logger),
	)

	orchestrator := synchronization.NewOrchestrator(
		engine.Jobs(),
		summaries,
		eventLog,
		clients.NewCirculationClient(cfg.CirculationBaseURL),
		clients.NewFeeFinesClient(cfg.FeeFinesBaseURL),
		synchronization.WithPageSize(cfg.SyncPageSize),
		synchronization.WithJobTimeout(cfg.SyncJobTimeout),
		synchronization.WithLogger(logger),
	)

	server := httpapi.NewServer(
		eventHandler,
		blockService,
		engine.Conditions(),
		engine.Limits(),
		orchestrator,
		httpapi.WithLogger(logger),
	)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.HTTPAddr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	go runSynchronizationLoop(ctx, orchestrator, cfg.SyncInterval, logger)

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}

	return nil
}

// buildEngine connects to Postgres through the configured driver and
// wraps it in the storage engine with logging and metrics attached.
func buildEngine(
	ctx context.Context,
	cfg config.Config,
	logger *observability.SlogLogger,
) (*postgres.Engine, func(), error) {

	metrics := observability.NewMetricsCollector(otel.Meter("patronblocks/storage"))
	options := []postgres.Option{
		postgres.WithLogger(logger),
		postgres.WithMetrics(metrics),
	}

	logger.Info("connecting to postgres", "adapter", cfg.DBAdapter)

	switch cfg.DBAdapter {
	case config.AdapterPGX:
		pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgres.NewFromPGXPool(pool, options...)
		if err != nil {
			pool.Close()
			return nil, nil, err
		}

		return engine, pool.Close, nil

	case config.AdapterSQLX:
		db, err := sqlx.Connect("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgres.NewFromSQLX(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return engine, func() { _ = db.Close() }, nil

	case config.AdapterSQL:
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}

		engine, err := postgres.NewFromSQLDB(db, options...)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}

		return engine, func() { _ = db.Close() }, nil

	default:
		return nil, nil, config.ErrUnknownDBAdapter
	}
}

// runSynchronizationLoop drives pending synchronization jobs on a fixed
// interval until the context is canceled.
func runSynchronizationLoop(
	ctx context.Context,
	orchestrator *synchronization.Orchestrator,
	interval time.Duration,
	logger *observability.SlogLogger,
) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := orchestrator.RunDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.ErrorContext(ctx, "synchronization run failed", "error", err.Error())
			}
		}
	}
}
