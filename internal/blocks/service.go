// Package blocks answers the central read question: which circulation
// actions is a patron currently blocked from, and why. It joins the
// patron's group limits with the condition catalog and the patron's
// summary, evaluates every limit, and keeps only the conditions that
// actually restrict something.
package blocks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
)

// ErrConditionMissing is returned when a stored limit references a
// condition that is gone from the catalog. This is a referential fault
// in the configuration and is surfaced, never papered over.
var ErrConditionMissing = errors.New("limit references a condition missing from the catalog")

// Block is one active restriction: the condition that fired, its
// patron-facing message, and the actions it blocks.
type Block struct {
	ConditionID uuid.UUID `json:"conditionId"`
	Message     string    `json:"message"`
	core.BlockFlags
}

// PatronDirectory resolves a patron to their patron group. Backed by the
// users HTTP client in production and by a stub in tests.
type PatronDirectory interface {
	PatronGroupOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error)
}

// ContextualLogger is the context-aware logging interface the query path
// reports through.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

const (
	logMsgBlocksEvaluated = "patron blocks evaluated"
	logAttrUserID         = "user_id"
	logAttrLimitCount     = "limit_count"
	logAttrBlockCount     = "block_count"
)

// Service evaluates patron blocks.
type Service struct {
	summaries  storage.SummaryStore
	conditions storage.ConditionStore
	limits     storage.LimitStore
	directory  PatronDirectory
	logger     ContextualLogger
	now        func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces the wall clock, pinning "now" for overdue math.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger for the service.
func WithLogger(logger ContextualLogger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a block query service.
func NewService(
	summaries storage.SummaryStore,
	conditions storage.ConditionStore,
	limits storage.LimitStore,
	directory PatronDirectory,
	opts ...Option,
) *Service {

	service := &Service{
		summaries:  summaries,
		conditions: conditions,
		limits:     limits,
		directory:  directory,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(service)
	}

	return service
}

// BlocksForUser returns the patron's active blocks. A patron without a
// summary has no recorded activity and therefore no blocks; any failed
// lookup is an error, never an empty answer.
func (s *Service) BlocksForUser(ctx context.Context, userID uuid.UUID) ([]Block, error) {
	patronGroupID, err := s.directory.PatronGroupOf(ctx, userID)
	if err != nil {
		return nil, err
	}

	groupLimits, err := s.limits.FindLimitsForPatronGroup(ctx, patronGroupID)
	if err != nil {
		return nil, err
	}

	summary, err := s.summaries.GetByUserID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return []Block{}, nil
	}
	if err != nil {
		return nil, err
	}

	blocks, err := s.evaluateLimits(ctx, summary, groupLimits)
	if err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, logMsgBlocksEvaluated,
			logAttrUserID, userID.String(),
			logAttrLimitCount, len(groupLimits),
			logAttrBlockCount, len(blocks))
	}

	return blocks, nil
}

// evaluateLimits runs every limit concurrently and keeps the result
// order aligned with the limit order, dropping all-false entries.
func (s *Service) evaluateLimits(
	ctx context.Context,
	summary core.UserSummary,
	groupLimits []storage.Limit,
) ([]Block, error) {

	now := s.now()
	results := make([]*Block, len(groupLimits))

	group, groupCtx := errgroup.WithContext(ctx)
	for i, limit := range groupLimits {
		group.Go(func() error {
			condition, err := s.conditions.GetCondition(groupCtx, limit.ConditionID)
			if errors.Is(err, storage.ErrNotFound) {
				return errors.Join(ErrConditionMissing, err)
			}
			if err != nil {
				return err
			}

			flags := core.Evaluate(summary, limit.ConditionID, limit.Value, now).And(condition.Flags())
			if !flags.Any() {
				return nil
			}

			results[i] = &Block{
				ConditionID: condition.ID,
				Message:     condition.Message,
				BlockFlags:  flags,
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	blocks := make([]Block, 0, len(results))
	for _, block := range results {
		if block != nil {
			blocks = append(blocks, *block)
		}
	}

	return blocks, nil
}
