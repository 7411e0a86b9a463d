// Package summary coordinates writes to the per-patron summaries: the
// event handler folds incoming events under optimistic concurrency with
// bounded retry, and the rebuilder regenerates a summary from the event
// log.
package summary

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/shell"
	"github.com/libcirc/patronblocks/internal/storage"
)

// ErrFeeFineOwnerNotFound is returned for a balance event that carries no
// patron id when no summary references its fee/fine account. This is a
// referential fault: it propagates immediately and is never retried.
var ErrFeeFineOwnerNotFound = errors.New("no summary references the fee/fine account")

// ContextualLogger is the context-aware logging interface the write path
// reports through. It is dependency-free so any structured logger can back it.
type ContextualLogger interface {
	DebugContext(ctx context.Context, msg string, args ...any)
	InfoContext(ctx context.Context, msg string, args ...any)
	WarnContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}

const (
	logMsgEventApplied  = "event applied to summary"
	logMsgWriteConflict = "summary write conflicted, retrying against fresh state"
	logAttrEventType    = "event_type"
	logAttrSummaryID    = "summary_id"
	logAttrAttempt      = "attempt"
	logAttrError        = "error"
)

// EventHandler is the sole mutation entry point for summaries. It appends
// the event to the log and then runs the fetch-modify-write loop.
type EventHandler struct {
	summaries    storage.SummaryStore
	eventLog     storage.EventLogStore
	logger       ContextualLogger
	retryOptions []shell.RetryOption
}

// Option configures an EventHandler.
type Option func(*EventHandler)

// WithRetryOptions sets a custom retry configuration for the handler.
func WithRetryOptions(opts ...shell.RetryOption) Option {
	return func(h *EventHandler) {
		h.retryOptions = opts
	}
}

// WithLogger sets the logger for the handler.
func WithLogger(logger ContextualLogger) Option {
	return func(h *EventHandler) {
		h.logger = logger
	}
}

// NewEventHandler creates an EventHandler with optional configuration.
func NewEventHandler(summaries storage.SummaryStore, eventLog storage.EventLogStore, opts ...Option) *EventHandler {
	handler := &EventHandler{
		summaries: summaries,
		eventLog:  eventLog,
	}

	for _, opt := range opts {
		opt(handler)
	}

	return handler
}

// Handle records the event and folds it into the owning summary, returning
// the summary id. A balance event without a patron id has its owner
// resolved first, so the logged event always carries the patron and a
// later replay sees it. The versioned write is retried against freshly
// fetched state on every conflict, up to the configured bound; any other
// failure propagates immediately.
func (h *EventHandler) Handle(ctx context.Context, event core.Event) (uuid.UUID, error) {
	event, err := h.resolveOwner(ctx, event)
	if err != nil {
		return uuid.Nil, err
	}

	if _, err := h.eventLog.Append(ctx, event); err != nil {
		return uuid.Nil, err
	}

	summaryID, err := h.applyWithRetry(ctx, event)
	if err != nil {
		return uuid.Nil, err
	}

	if h.logger != nil {
		h.logger.InfoContext(ctx, logMsgEventApplied,
			logAttrEventType, event.IsEventType(),
			logAttrSummaryID, summaryID.String())
	}

	return summaryID, nil
}

// applyWithRetry runs the fetch-modify-write loop. The event is re-applied
// to the re-fetched summary on every conflict so a retry never writes a
// projection of stale state.
func (h *EventHandler) applyWithRetry(ctx context.Context, event core.Event) (uuid.UUID, error) {
	var summaryID uuid.UUID

	retryOptions := h.retryOptions
	if h.logger != nil {
		retryOptions = append(retryOptions, shell.WithRetryListener(func(attempt int, err error) {
			h.logger.DebugContext(ctx, logMsgWriteConflict,
				logAttrEventType, event.IsEventType(),
				logAttrAttempt, attempt,
				logAttrError, err.Error())
		}))
	}

	err := shell.RetryOnVersionConflict(ctx, func(retryCtx context.Context) error {
		current, fetchErr := h.fetchOrCreate(retryCtx, event)
		if fetchErr != nil {
			return fetchErr
		}

		updated := current.Apply(event)
		summaryID = updated.ID

		if current.Version == 0 {
			return h.summaries.Save(retryCtx, updated)
		}

		return h.summaries.Update(retryCtx, updated)
	}, retryOptions...)

	if err != nil {
		return uuid.Nil, err
	}

	return summaryID, nil
}

// resolveOwner stamps the owning patron onto a balance event that only
// carries a fee/fine account id. The owner must already hold an open
// fee/fine with that id; a failed lookup is a referential fault and is
// never retried.
func (h *EventHandler) resolveOwner(ctx context.Context, event core.Event) (core.Event, error) {
	if event.AffectsUser() != uuid.Nil {
		return event, nil
	}

	balanceChanged, ok := event.(core.FeeFineBalanceChanged)
	if !ok {
		return nil, shell.ErrMissingUserID
	}

	owner, err := h.summaries.FindByFeeFineID(ctx, balanceChanged.FeeFineID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, errors.Join(ErrFeeFineOwnerNotFound, err)
	}
	if err != nil {
		return nil, err
	}

	balanceChanged.UserID = owner.UserID

	return balanceChanged, nil
}

// fetchOrCreate resolves the target summary for an event. A summary that
// does not exist yet is synthesized empty, not an error.
func (h *EventHandler) fetchOrCreate(ctx context.Context, event core.Event) (core.UserSummary, error) {
	userID := event.AffectsUser()
	if userID == uuid.Nil {
		return core.UserSummary{}, shell.ErrMissingUserID
	}

	current, err := h.summaries.GetByUserID(ctx, userID)
	if errors.Is(err, storage.ErrNotFound) {
		return core.NewUserSummary(userID), nil
	}

	return current, err
}
