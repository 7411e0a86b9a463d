package synchronization

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/summary"
)

const (
	// DefaultPageSize is how many snapshot records one source request asks for.
	DefaultPageSize = 500

	// DefaultJobTimeout caps one run so a stalled upstream fails the job
	// instead of pinning it IN_PROGRESS forever.
	DefaultJobTimeout = 30 * time.Minute
)

// ErrRebuildIncomplete marks a run during which one or more summaries
// could not be rebuilt. The per-patron causes are recorded on the job.
var ErrRebuildIncomplete = errors.New("not all summaries could be rebuilt")

// ContextualLogger is the context-aware logging interface job runs
// report through.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

const (
	logMsgRunSkipped   = "synchronization run skipped, a job is already in progress"
	logMsgNoPendingJob = "no synchronization job pending"
	logMsgJobStarted   = "synchronization job started"
	logMsgJobFinished  = "synchronization job finished"
	logAttrJobID       = "job_id"
	logAttrScope       = "scope"
	logAttrStatus      = "status"
	logAttrLoans       = "loans"
	logAttrFeesFines   = "fees_fines"
)

// Orchestrator drives synchronization jobs through their lifecycle.
type Orchestrator struct {
	jobs       JobStore
	summaries  storage.SummaryStore
	eventLog   storage.EventLogStore
	rebuilder  *summary.Rebuilder
	loans      LoanSource
	feesFines  FeeFineSource
	logger     ContextualLogger
	pageSize   int
	jobTimeout time.Duration
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPageSize sets how many snapshot records are requested per page.
func WithPageSize(pageSize int) Option {
	return func(o *Orchestrator) {
		o.pageSize = pageSize
	}
}

// WithJobTimeout caps the wall-clock duration of one job run.
func WithJobTimeout(timeout time.Duration) Option {
	return func(o *Orchestrator) {
		o.jobTimeout = timeout
	}
}

// WithLogger sets the logger for the orchestrator.
func WithLogger(logger ContextualLogger) Option {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithClock replaces the wall clock used to stamp synthesized events.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	jobs JobStore,
	summaries storage.SummaryStore,
	eventLog storage.EventLogStore,
	loans LoanSource,
	feesFines FeeFineSource,
	opts ...Option,
) *Orchestrator {

	orchestrator := &Orchestrator{
		jobs:       jobs,
		summaries:  summaries,
		eventLog:   eventLog,
		rebuilder:  summary.NewRebuilder(summaries, eventLog),
		loans:      loans,
		feesFines:  feesFines,
		pageSize:   DefaultPageSize,
		jobTimeout: DefaultJobTimeout,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(orchestrator)
	}

	return orchestrator
}

// Request validates and enqueues a new OPEN job, returning its id.
func (o *Orchestrator) Request(ctx context.Context, scope Scope, userID uuid.UUID) (uuid.UUID, error) {
	job, err := NewJob(scope, userID)
	if err != nil {
		return uuid.Nil, err
	}

	if err := o.jobs.CreateJob(ctx, job); err != nil {
		return uuid.Nil, err
	}

	return job.ID, nil
}

// Job returns one job by id.
func (o *Orchestrator) Job(ctx context.Context, id uuid.UUID) (Job, error) {
	return o.jobs.GetJob(ctx, id)
}

// RunDue executes the oldest OPEN job, if any. Jobs run one at a time:
// when another job is already IN_PROGRESS the call is a no-op. The run
// executes under the configured timeout; failures finalize the job as
// FAILED with the causes recorded, using a context that survives the
// expired one.
func (o *Orchestrator) RunDue(ctx context.Context) error {
	running, err := o.jobs.InProgressJobExists(ctx)
	if err != nil {
		return err
	}
	if running {
		o.logDebug(ctx, logMsgRunSkipped)
		return nil
	}

	job, err := o.jobs.OldestOpenJob(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		o.logDebug(ctx, logMsgNoPendingJob)
		return nil
	}
	if err != nil {
		return err
	}

	// The claim is a status-guarded write: when the ticker and an operator
	// trigger a run at the same moment, exactly one of them wins the job.
	if err := o.jobs.ClaimJob(ctx, job.ID); err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			o.logDebug(ctx, logMsgRunSkipped)
			return nil
		}

		return err
	}
	job.Status = StatusInProgress

	o.logInfo(ctx, logMsgJobStarted, logAttrJobID, job.ID.String(), logAttrScope, string(job.Scope))

	runCtx, cancel := context.WithTimeout(ctx, o.jobTimeout)
	defer cancel()

	runErr := o.execute(runCtx, &job)

	return o.finalize(ctx, job, runErr)
}

func (o *Orchestrator) finalize(ctx context.Context, job Job, runErr error) error {
	// The run context may be expired or canceled; the terminal status
	// must still be written.
	finalizeCtx := context.WithoutCancel(ctx)

	if runErr != nil {
		job.Status = StatusFailed
		if len(job.Errors) == 0 {
			job.Errors = append(job.Errors, runErr.Error())
		}
	} else {
		job.Status = StatusDone
	}

	if err := o.jobs.UpdateJob(finalizeCtx, job); err != nil {
		return errors.Join(runErr, err)
	}

	o.logInfo(finalizeCtx, logMsgJobFinished,
		logAttrJobID, job.ID.String(),
		logAttrStatus, string(job.Status),
		logAttrLoans, job.NumberOfProcessedLoans,
		logAttrFeesFines, job.NumberOfProcessedFeesFines)

	return runErr
}

// execute runs the body of one job: purge, refill the event log from
// snapshot pages, then rebuild every touched patron's summary.
func (o *Orchestrator) execute(ctx context.Context, job *Job) error {
	if err := o.purge(ctx, *job); err != nil {
		return err
	}

	touched := make(map[uuid.UUID]struct{})

	if err := o.processLoanPages(ctx, job, touched); err != nil {
		return err
	}

	if err := o.processFeeFinePages(ctx, job, touched); err != nil {
		return err
	}

	// A USER job rebuilds its patron even without any snapshot records,
	// so a patron with no remaining activity ends up with an empty
	// summary instead of a stale one.
	if job.Scope == ScopeUser {
		touched[job.UserID] = struct{}{}
	}

	return o.rebuildTouched(ctx, job, touched)
}

func (o *Orchestrator) purge(ctx context.Context, job Job) error {
	if job.Scope == ScopeUser {
		if err := o.summaries.DeleteByUserID(ctx, job.UserID); err != nil {
			return err
		}

		return o.eventLog.RemoveByUserID(ctx, job.UserID)
	}

	if err := o.summaries.DeleteAll(ctx); err != nil {
		return err
	}

	return o.eventLog.RemoveAll(ctx)
}

func (o *Orchestrator) processLoanPages(ctx context.Context, job *Job, touched map[uuid.UUID]struct{}) error {
	for offset := 0; ; offset += o.pageSize {
		page, err := o.loans.OpenLoans(ctx, o.scopeUserID(*job), offset, o.pageSize)
		if err != nil {
			return err
		}

		job.TotalNumberOfLoans = page.TotalRecords

		for _, loan := range page.Loans {
			if err := o.appendLoanEvents(ctx, loan); err != nil {
				return err
			}

			touched[loan.UserID] = struct{}{}
		}

		job.NumberOfProcessedLoans += len(page.Loans)
		if err := o.jobs.UpdateJob(ctx, *job); err != nil {
			return err
		}

		if len(page.Loans) == 0 || job.NumberOfProcessedLoans >= page.TotalRecords {
			return nil
		}
	}
}

func (o *Orchestrator) processFeeFinePages(ctx context.Context, job *Job, touched map[uuid.UUID]struct{}) error {
	for offset := 0; ; offset += o.pageSize {
		page, err := o.feesFines.OpenFeesFines(ctx, o.scopeUserID(*job), offset, o.pageSize)
		if err != nil {
			return err
		}

		job.TotalNumberOfFeesFines = page.TotalRecords

		for _, feeFine := range page.FeesFines {
			event := core.BuildFeeFineBalanceChanged(
				feeFine.UserID, feeFine.FeeFineID, feeFine.FeeFineTypeID,
				feeFine.LoanID, feeFine.Balance, o.now())
			if _, err := o.eventLog.Append(ctx, event); err != nil {
				return err
			}

			touched[feeFine.UserID] = struct{}{}
		}

		job.NumberOfProcessedFeesFines += len(page.FeesFines)
		if err := o.jobs.UpdateJob(ctx, *job); err != nil {
			return err
		}

		if len(page.FeesFines) == 0 || job.NumberOfProcessedFeesFines >= page.TotalRecords {
			return nil
		}
	}
}

// appendLoanEvents synthesizes the event sequence that reproduces one
// loan snapshot. The due date change precedes the item status events so
// the lost marker survives the due date rewrite; the timestamps step by
// one second to keep replay order stable.
func (o *Orchestrator) appendLoanEvents(ctx context.Context, loan LoanSnapshot) error {
	occurredAt := loan.LoanDate
	if occurredAt.IsZero() {
		occurredAt = o.now()
	}

	checkedOut := core.BuildItemCheckedOut(loan.UserID, loan.LoanID, loan.DueDate, occurredAt)
	if loan.GracePeriod != nil {
		checkedOut = checkedOut.WithGracePeriod(*loan.GracePeriod)
	}

	events := core.Events{checkedOut}

	if loan.DueDateChangedByRecall {
		occurredAt = occurredAt.Add(time.Second)
		events = append(events, core.BuildLoanDueDateChanged(
			loan.UserID, loan.LoanID, loan.DueDate, true, occurredAt))
	}

	switch loan.ItemStatus {
	case ItemStatusDeclaredLost:
		events = append(events, core.BuildItemDeclaredLost(loan.UserID, loan.LoanID, occurredAt.Add(time.Second)))
	case ItemStatusAgedToLost:
		events = append(events, core.BuildItemAgedToLost(loan.UserID, loan.LoanID, occurredAt.Add(time.Second)))
	case ItemStatusClaimedReturned:
		events = append(events, core.BuildItemClaimedReturned(loan.UserID, loan.LoanID, occurredAt.Add(time.Second)))
	}

	for _, event := range events {
		if _, err := o.eventLog.Append(ctx, event); err != nil {
			return err
		}
	}

	return nil
}

// rebuildTouched regenerates every touched patron's summary. One failed
// rebuild does not stop the others; the causes are collected on the job
// and the run fails at the end.
func (o *Orchestrator) rebuildTouched(ctx context.Context, job *Job, touched map[uuid.UUID]struct{}) error {
	for userID := range touched {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := o.rebuilder.Rebuild(ctx, userID); err != nil {
			job.Errors = append(job.Errors, fmt.Sprintf("rebuilding summary of user %s: %v", userID, err))
		}
	}

	if len(job.Errors) > 0 {
		return ErrRebuildIncomplete
	}

	return nil
}

func (o *Orchestrator) scopeUserID(job Job) uuid.UUID {
	if job.Scope == ScopeUser {
		return job.UserID
	}

	return uuid.Nil
}

func (o *Orchestrator) logDebug(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.DebugContext(ctx, msg, args...)
	}
}

func (o *Orchestrator) logInfo(ctx context.Context, msg string, args ...any) {
	if o.logger != nil {
		o.logger.InfoContext(ctx, msg, args...)
	}
}
