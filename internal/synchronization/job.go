// Package synchronization rebuilds patron summaries from the circulation
// system of record. A job walks through purge, snapshot paging, event
// synthesis and per-patron rebuild, tracking its progress so operators
// can watch a long run move.
package synchronization

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// Scope selects how much of the summary data a job regenerates.
type Scope string

const (
	// ScopeFull regenerates every patron's summary.
	ScopeFull Scope = "FULL"
	// ScopeUser regenerates a single patron's summary.
	ScopeUser Scope = "USER"
)

// Status is the lifecycle state of a job. A job moves OPEN -> IN_PROGRESS
// and terminates in DONE or FAILED; there are no other transitions.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusDone       Status = "DONE"
	StatusFailed     Status = "FAILED"
)

// Job request validation errors.
var (
	ErrUnknownScope    = errors.New("synchronization scope must be FULL or USER")
	ErrUserIDRequired  = errors.New("a USER scoped job requires a user id")
	ErrUserIDForbidden = errors.New("a FULL scoped job must not carry a user id")
)

// Job is one synchronization run. The totals are learned from the first
// snapshot page of each source; the processed counters advance page by
// page while the job runs.
type Job struct {
	ID                         uuid.UUID `json:"id"`
	Scope                      Scope     `json:"scope"`
	UserID                     uuid.UUID `json:"userId"`
	Status                     Status    `json:"status"`
	TotalNumberOfLoans         int       `json:"totalNumberOfLoans"`
	TotalNumberOfFeesFines     int       `json:"totalNumberOfFeesFines"`
	NumberOfProcessedLoans     int       `json:"numberOfProcessedLoans"`
	NumberOfProcessedFeesFines int       `json:"numberOfProcessedFeesFines"`
	Errors                     []string  `json:"errors,omitempty"`
}

// NewJob creates an OPEN job for the given scope.
func NewJob(scope Scope, userID uuid.UUID) (Job, error) {
	switch scope {
	case ScopeFull:
		if userID != uuid.Nil {
			return Job{}, ErrUserIDForbidden
		}
	case ScopeUser:
		if userID == uuid.Nil {
			return Job{}, ErrUserIDRequired
		}
	default:
		return Job{}, ErrUnknownScope
	}

	return Job{
		ID:     uuid.New(),
		Scope:  scope,
		UserID: userID,
		Status: StatusOpen,
	}, nil
}

// JobStore persists synchronization jobs.
type JobStore interface {
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, id uuid.UUID) (Job, error)
	UpdateJob(ctx context.Context, job Job) error

	// OldestOpenJob returns the OPEN job that has waited longest, or
	// storage.ErrNotFound when none is pending.
	OldestOpenJob(ctx context.Context) (Job, error)

	// ClaimJob transitions a job from OPEN to IN_PROGRESS with a
	// status-guarded write. When the job is no longer OPEN another runner
	// claimed it first, reported as storage.ErrVersionConflict.
	ClaimJob(ctx context.Context, id uuid.UUID) error

	// InProgressJobExists reports whether any job is currently running.
	InProgressJobExists(ctx context.Context) (bool, error)
}
