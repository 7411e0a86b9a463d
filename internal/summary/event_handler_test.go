package summary_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/shell"
	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/storage/memory"
	"github.com/libcirc/patronblocks/internal/summary"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func Test_Handle_FirstEventForPatron_CreatesSummaryLazily(t *testing.T) {
	// arrange
	summaries := memory.NewSummaryStore()
	eventLog := memory.NewEventLogStore()
	handler := summary.NewEventHandler(summaries, eventLog)
	userID := uuid.New()
	now := time.Now()

	// act
	summaryID, err := handler.Handle(context.Background(),
		core.BuildItemCheckedOut(userID, uuid.New(), now.Add(time.Hour), now))

	// assert
	require.NoError(t, err)
	stored, getErr := summaries.GetByID(context.Background(), summaryID)
	require.NoError(t, getErr)
	assert.Equal(t, userID, stored.UserID)
	assert.Len(t, stored.OpenLoans, 1)
	assert.Equal(t, int64(1), stored.Version)
}

func Test_Handle_AppendsEventToLog(t *testing.T) {
	// arrange
	summaries := memory.NewSummaryStore()
	eventLog := memory.NewEventLogStore()
	handler := summary.NewEventHandler(summaries, eventLog)
	userID := uuid.New()
	now := time.Now()

	// act
	_, err := handler.Handle(context.Background(),
		core.BuildItemCheckedOut(userID, uuid.New(), now.Add(time.Hour), now))

	// assert
	require.NoError(t, err)
	events, findErr := eventLog.FindByUserID(context.Background(), userID)
	require.NoError(t, findErr)
	assert.Len(t, events, 1)
}

func Test_Handle_SecondEvent_UpdatesExistingSummary(t *testing.T) {
	// arrange
	summaries := memory.NewSummaryStore()
	handler := summary.NewEventHandler(summaries, memory.NewEventLogStore())
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()

	_, err := handler.Handle(context.Background(),
		core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now))
	require.NoError(t, err)

	// act
	_, err = handler.Handle(context.Background(), core.BuildItemCheckedIn(userID, loanID, now))

	// assert
	require.NoError(t, err)
	stored, getErr := summaries.GetByUserID(context.Background(), userID)
	require.NoError(t, getErr)
	assert.Empty(t, stored.OpenLoans)
	assert.Equal(t, int64(2), stored.Version)
}

func Test_Handle_BalanceEventWithoutUser_ResolvesOwnerByFeeFineID(t *testing.T) {
	// arrange - the patron already owes on this fee/fine account
	summaries := memory.NewSummaryStore()
	handler := summary.NewEventHandler(summaries, memory.NewEventLogStore())
	userID := uuid.New()
	feeFineID := uuid.New()
	now := time.Now()

	_, err := handler.Handle(context.Background(), core.BuildFeeFineBalanceChanged(
		userID, feeFineID, uuid.New(), uuid.Nil, decimal.RequireFromString("5.00"), now))
	require.NoError(t, err)

	// act - the follow-up carries only the fee/fine id
	_, err = handler.Handle(context.Background(), core.BuildFeeFineBalanceChanged(
		uuid.Nil, feeFineID, uuid.New(), uuid.Nil, decimal.RequireFromString("9.75"), now))

	// assert
	require.NoError(t, err)
	stored, getErr := summaries.GetByUserID(context.Background(), userID)
	require.NoError(t, getErr)
	require.Len(t, stored.OpenFeesFines, 1)
	assert.True(t, stored.OpenFeesFines[0].Balance.Equal(decimal.RequireFromString("9.75")))
}

func Test_Handle_BalanceEventWithoutOwner_FailsWithoutRetry(t *testing.T) {
	// arrange
	summaries := newCountingSummaryStore(memory.NewSummaryStore())
	handler := summary.NewEventHandler(summaries, memory.NewEventLogStore(),
		summary.WithRetryOptions(shell.WithSleep(noSleep)))

	// act
	_, err := handler.Handle(context.Background(), core.BuildFeeFineBalanceChanged(
		uuid.Nil, uuid.New(), uuid.New(), uuid.Nil, decimal.RequireFromString("1.00"), time.Now()))

	// assert
	assert.ErrorIs(t, err, summary.ErrFeeFineOwnerNotFound)
	assert.Equal(t, 1, summaries.findByFeeFineCalls, "a referential fault must not be retried")
}

func Test_Handle_PermanentConflict_FailsAfterRetryBound(t *testing.T) {
	// arrange - every write conflicts, no matter how often it is retried
	summaries := newCountingSummaryStore(memory.NewSummaryStore())
	summaries.failEverySave = true
	handler := summary.NewEventHandler(summaries, memory.NewEventLogStore(),
		summary.WithRetryOptions(shell.WithSleep(noSleep)))
	userID := uuid.New()
	now := time.Now()

	// act
	_, err := handler.Handle(context.Background(),
		core.BuildItemCheckedOut(userID, uuid.New(), now.Add(time.Hour), now))

	// assert
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
	assert.Equal(t, shell.DefaultMaxAttempts, summaries.saveCalls)
}

func Test_Handle_Conflict_ReappliesEventAgainstFreshState(t *testing.T) {
	// arrange - another writer lands a checkout between fetch and write
	inner := memory.NewSummaryStore()
	summaries := newCountingSummaryStore(inner)
	handler := summary.NewEventHandler(summaries, memory.NewEventLogStore(),
		summary.WithRetryOptions(shell.WithSleep(noSleep)))
	userID := uuid.New()
	otherLoanID := uuid.New()
	now := time.Now()

	summaries.beforeFirstSave = func() {
		other := summary.NewEventHandler(inner, memory.NewEventLogStore())
		_, err := other.Handle(context.Background(),
			core.BuildItemCheckedOut(userID, otherLoanID, now.Add(time.Hour), now))
		require.NoError(t, err)
	}

	// act
	_, err := handler.Handle(context.Background(),
		core.BuildItemCheckedOut(userID, uuid.New(), now.Add(2*time.Hour), now))

	// assert - both loans survive because the retry re-applied against fresh state
	require.NoError(t, err)
	stored, getErr := inner.GetByUserID(context.Background(), userID)
	require.NoError(t, getErr)
	assert.Len(t, stored.OpenLoans, 2)
}

// countingSummaryStore wraps a real store to count calls and inject
// conflicts at precise points of the write path.
type countingSummaryStore struct {
	storage.SummaryStore
	saveCalls          int
	findByFeeFineCalls int
	failEverySave      bool
	beforeFirstSave    func()
}

func newCountingSummaryStore(inner storage.SummaryStore) *countingSummaryStore {
	return &countingSummaryStore{SummaryStore: inner}
}

func (s *countingSummaryStore) Save(ctx context.Context, summary core.UserSummary) error {
	s.saveCalls++

	if s.failEverySave {
		return storage.ErrVersionConflict
	}

	if s.beforeFirstSave != nil && s.saveCalls == 1 {
		s.beforeFirstSave()
	}

	return s.SummaryStore.Save(ctx, summary)
}

func (s *countingSummaryStore) FindByFeeFineID(ctx context.Context, feeFineID uuid.UUID) (core.UserSummary, error) {
	s.findByFeeFineCalls++
	return s.SummaryStore.FindByFeeFineID(ctx, feeFineID)
}
