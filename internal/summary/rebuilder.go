package summary

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
)

// Rebuilder regenerates one patron's summary from the event log. It is the
// repopulation half of a synchronization run: the orchestrator purges the
// summary, refills the log from the system of record, then rebuilds here.
type Rebuilder struct {
	summaries storage.SummaryStore
	eventLog  storage.EventLogStore
}

// NewRebuilder creates a Rebuilder.
func NewRebuilder(summaries storage.SummaryStore, eventLog storage.EventLogStore) *Rebuilder {
	return &Rebuilder{
		summaries: summaries,
		eventLog:  eventLog,
	}
}

// Rebuild folds the patron's full event history into a fresh summary and
// replaces whatever is stored. Replaying the same history always produces
// the same summary document: the id derivation is stable and the fold is
// deterministic.
func (r *Rebuilder) Rebuild(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	events, err := r.eventLog.FindByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}

	rebuilt := core.NewUserSummary(userID).ApplyAll(events)

	if err := r.summaries.DeleteByUserID(ctx, userID); err != nil {
		return uuid.Nil, err
	}

	if err := r.summaries.Save(ctx, rebuilt); err != nil {
		// A concurrent creator between delete and save loses the rebuild
		// race; fold the replayed history into the freshly written state.
		if errors.Is(err, storage.ErrVersionConflict) {
			return r.foldIntoCurrent(ctx, userID, events)
		}

		return uuid.Nil, err
	}

	return rebuilt.ID, nil
}

func (r *Rebuilder) foldIntoCurrent(ctx context.Context, userID uuid.UUID, events core.Events) (uuid.UUID, error) {
	current, err := r.summaries.GetByUserID(ctx, userID)
	if err != nil {
		return uuid.Nil, err
	}

	if err := r.summaries.Update(ctx, current.ApplyAll(events)); err != nil {
		return uuid.Nil, err
	}

	return current.ID, nil
}
