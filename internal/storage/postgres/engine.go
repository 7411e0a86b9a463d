// Package postgres implements the store contracts on PostgreSQL. All
// documents live in jsonb payload columns next to the few columns the
// queries filter on; SQL is built with goqu and executed through a thin
// driver abstraction so pgxpool, sqlx and database/sql handles are all
// usable.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	jsoniter "github.com/json-iterator/go"

	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/storage/postgres/internal/adapters"
)

var (
	// ErrBuildingQueryFailed is returned when goqu cannot render a query.
	ErrBuildingQueryFailed = errors.New("failed to build sql query")

	// ErrExecutingQueryFailed is returned when the database rejects a query.
	ErrExecutingQueryFailed = errors.New("database query execution failed")

	// ErrScanningRowFailed is returned when a result row cannot be scanned.
	ErrScanningRowFailed = errors.New("failed to scan database row")

	// ErrDocumentCodecFailed is returned when a stored jsonb document
	// cannot be encoded or decoded.
	ErrDocumentCodecFailed = errors.New("failed to encode or decode stored document")
)

const (
	tableUserSummaries = "user_summaries"
	tableEventLog      = "event_log"
	tableConditions    = "conditions"
	tableLimits        = "limits"
	tableSyncJobs      = "synchronization_jobs"

	colID            = "id"
	colUserID        = "user_id"
	colPayload       = "payload"
	colVersion       = "version"
	colEventType     = "event_type"
	colOccurredAt    = "occurred_at"
	colSeq           = "seq"
	colStatus        = "status"
	colConditionID   = "condition_id"
	colPatronGroupID = "patron_group_id"

	dialectPostgres = "postgres"

	logMsgSQLExecuted     = "executed sql"
	logMsgQueryFailed     = "database query execution failed"
	logMsgRowsCloseFailed = "failed to close database rows"
	logAttrError          = "error"
	logAttrOperation      = "operation"
	logAttrDurationMS     = "duration_ms"

	metricConflicts = "storage_version_conflicts_total"
)

var (
	dialect   = goqu.Dialect(dialectPostgres)
	jsonCodec = jsoniter.ConfigFastest
)

// Logger receives SQL execution traces and operational warnings. It is
// dependency-free so any structured logger can back it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// MetricsCollector records operation timings and conflict counts.
type MetricsCollector interface {
	RecordDuration(ctx context.Context, operation string, duration time.Duration)
	IncrementCounter(ctx context.Context, name string)
}

// Engine holds the database driver plus the optional observability hooks
// shared by all stores.
type Engine struct {
	db      adapters.Driver
	logger  Logger
	metrics MetricsCollector
}

// Option defines a functional option for configuring an Engine.
type Option func(*Engine) error

// WithLogger sets the logger for the engine. Debug level carries SQL
// with timing, Warn non-critical cleanup issues, Error query failures.
func WithLogger(logger Logger) Option {
	return func(e *Engine) error {
		e.logger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for the engine.
func WithMetrics(metrics MetricsCollector) Option {
	return func(e *Engine) error {
		e.metrics = metrics
		return nil
	}
}

// NewFromPGXPool creates an Engine on a pgx connection pool.
func NewFromPGXPool(pool *pgxpool.Pool, options ...Option) (*Engine, error) {
	if pool == nil {
		return nil, storage.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewPGXDriver(pool), options...)
}

// NewFromSQLX creates an Engine on a sqlx handle.
func NewFromSQLX(db *sqlx.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, storage.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLXDriver(db), options...)
}

// NewFromSQLDB creates an Engine on a database/sql handle.
func NewFromSQLDB(db *sql.DB, options ...Option) (*Engine, error) {
	if db == nil {
		return nil, storage.ErrNilDatabaseConnection
	}

	return newEngine(adapters.NewSQLDriver(db), options...)
}

func newEngine(driver adapters.Driver, options ...Option) (*Engine, error) {
	engine := &Engine{db: driver}

	for _, option := range options {
		if err := option(engine); err != nil {
			return nil, err
		}
	}

	return engine, nil
}

// Summaries returns the summary store backed by this engine.
func (e *Engine) Summaries() *SummaryStore {
	return &SummaryStore{engine: e}
}

// EventLog returns the event log store backed by this engine.
func (e *Engine) EventLog() *EventLogStore {
	return &EventLogStore{engine: e}
}

// Conditions returns the condition store backed by this engine.
func (e *Engine) Conditions() *ConditionStore {
	return &ConditionStore{engine: e}
}

// Limits returns the limit store backed by this engine.
func (e *Engine) Limits() *LimitStore {
	return &LimitStore{engine: e}
}

// Jobs returns the synchronization job store backed by this engine.
func (e *Engine) Jobs() *JobStore {
	return &JobStore{engine: e}
}

// query runs a select and returns its rows, with timing and logging.
func (e *Engine) query(ctx context.Context, operation string, sqlQuery string) (adapters.Rows, error) {
	start := time.Now()
	rows, err := e.db.Query(ctx, sqlQuery)
	e.observe(ctx, operation, sqlQuery, time.Since(start))

	if err != nil {
		if e.logger != nil {
			e.logger.Error(logMsgQueryFailed, logAttrOperation, operation, logAttrError, err.Error())
		}

		return nil, errors.Join(ErrExecutingQueryFailed, err)
	}

	return rows, nil
}

// exec runs a statement and returns the number of affected rows, with
// timing and logging.
func (e *Engine) exec(ctx context.Context, operation string, sqlQuery string) (int64, error) {
	start := time.Now()
	result, err := e.db.Exec(ctx, sqlQuery)
	e.observe(ctx, operation, sqlQuery, time.Since(start))

	if err != nil {
		if e.logger != nil {
			e.logger.Error(logMsgQueryFailed, logAttrOperation, operation, logAttrError, err.Error())
		}

		return 0, errors.Join(ErrExecutingQueryFailed, err)
	}

	return result.RowsAffected()
}

func (e *Engine) observe(ctx context.Context, operation string, sqlQuery string, duration time.Duration) {
	if e.logger != nil {
		e.logger.Debug(logMsgSQLExecuted+": "+sqlQuery,
			logAttrOperation, operation,
			logAttrDurationMS, float64(duration.Microseconds())/1000.0)
	}

	if e.metrics != nil {
		e.metrics.RecordDuration(ctx, operation, duration)
	}
}

func (e *Engine) countConflict(ctx context.Context) {
	if e.metrics != nil {
		e.metrics.IncrementCounter(ctx, metricConflicts)
	}
}

func (e *Engine) closeRows(rows adapters.Rows) {
	if err := rows.Close(); err != nil && e.logger != nil {
		e.logger.Warn(logMsgRowsCloseFailed, logAttrError, err.Error())
	}
}
