// Package storage defines the store contracts the service is written
// against and the error taxonomy shared by all implementations. Concrete
// engines live in the postgres and memory subpackages.
package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libcirc/patronblocks/internal/core"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrVersionConflict is returned when a versioned write affected no
	// rows because another writer got there first. It is the only error
	// the write path retries.
	ErrVersionConflict = errors.New("version conflict, no rows were affected")

	// ErrNilDatabaseConnection is returned by engine constructors when no
	// connection handle is supplied.
	ErrNilDatabaseConnection = errors.New("database connection must not be nil")

	// ErrDuplicateLimit is returned when saving a limit would leave two
	// limits for the same condition and patron group. A pair holds at most
	// one threshold.
	ErrDuplicateLimit = errors.New("a limit for this condition and patron group already exists")
)

// SummaryStore persists the per-patron summaries. Save inserts a fresh
// summary at version 1 and reports ErrVersionConflict when another writer
// created one for the same patron concurrently. Update performs a
// versioned write: the stored version must equal the version carried by
// the summary, otherwise ErrVersionConflict is returned and nothing is
// written.
type SummaryStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (core.UserSummary, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (core.UserSummary, error)

	// FindByFeeFineID resolves the summary holding an open fee/fine
	// account, for balance events that carry no patron id.
	FindByFeeFineID(ctx context.Context, feeFineID uuid.UUID) (core.UserSummary, error)

	Save(ctx context.Context, summary core.UserSummary) error
	Update(ctx context.Context, summary core.UserSummary) error
	DeleteByUserID(ctx context.Context, userID uuid.UUID) error
	DeleteAll(ctx context.Context) error
}

// EventLogStore is the append-only log of circulation events. The service
// only reads it back per patron to rebuild a summary; otherwise it is
// write-only, with bulk removal reserved for rebuilds.
type EventLogStore interface {
	Append(ctx context.Context, event core.Event) (uuid.UUID, error)

	// FindByUserID returns a patron's events ordered by occurrence time.
	FindByUserID(ctx context.Context, userID uuid.UUID) (core.Events, error)

	RemoveByUserID(ctx context.Context, userID uuid.UUID) error
	RemoveAll(ctx context.Context) error
}

// ConditionStore holds the fixed rule catalog with its tenant-edited flags
// and messages.
type ConditionStore interface {
	GetCondition(ctx context.Context, id uuid.UUID) (core.Condition, error)
	AllConditions(ctx context.Context) ([]core.Condition, error)
	UpdateCondition(ctx context.Context, condition core.Condition) error
}

// Limit is one per-patron-group threshold for a catalog condition.
// A missing limit means no restriction.
type Limit struct {
	ID            uuid.UUID       `json:"id"`
	ConditionID   uuid.UUID       `json:"conditionId"`
	PatronGroupID uuid.UUID       `json:"patronGroupId"`
	Value         decimal.Decimal `json:"value"`
}

// LimitStore persists the per-patron-group thresholds. At most one limit
// exists per (condition, patron group) pair; Save reports
// ErrDuplicateLimit when a different limit already claims the pair.
type LimitStore interface {
	GetLimit(ctx context.Context, id uuid.UUID) (Limit, error)
	FindLimitsForPatronGroup(ctx context.Context, patronGroupID uuid.UUID) ([]Limit, error)
	AllLimits(ctx context.Context) ([]Limit, error)
	SaveLimit(ctx context.Context, limit Limit) error
	DeleteLimit(ctx context.Context, id uuid.UUID) error
}
