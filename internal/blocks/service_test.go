package blocks_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libcirc/patronblocks/internal/blocks"
	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/storage/memory"
	"github.com/libcirc/patronblocks/internal/summary"
)

func Test_BlocksForUser_PatronWithoutSummary_HasNoBlocks(t *testing.T) {
	// arrange
	fixture := newFixture(t)
	fixture.givenLimit(core.ConditionMaxItemsChargedOut, "0")
	fixture.givenConditionEnabled(core.ConditionMaxItemsChargedOut, "Too many items charged out")

	// act
	patronBlocks, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert
	require.NoError(t, err)
	assert.Empty(t, patronBlocks)
}

func Test_BlocksForUser_ChargedOutAtLimit_BlocksBorrowingOnly(t *testing.T) {
	// arrange
	fixture := newFixture(t)
	fixture.givenOpenLoans(2)
	fixture.givenLimit(core.ConditionMaxItemsChargedOut, "2")
	fixture.givenConditionEnabled(core.ConditionMaxItemsChargedOut, "Too many items charged out")

	// act
	patronBlocks, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert
	require.NoError(t, err)
	require.Len(t, patronBlocks, 1)
	assert.Equal(t, core.ConditionMaxItemsChargedOut, patronBlocks[0].ConditionID)
	assert.Equal(t, "Too many items charged out", patronBlocks[0].Message)
	assert.True(t, patronBlocks[0].BlockBorrowing)
	assert.False(t, patronBlocks[0].BlockRenewals)
	assert.False(t, patronBlocks[0].BlockRequests)
}

func Test_BlocksForUser_DisabledCondition_ProducesNoBlock(t *testing.T) {
	// arrange - the rule fires but the tenant has not enabled any flag
	fixture := newFixture(t)
	fixture.givenOpenLoans(5)
	fixture.givenLimit(core.ConditionMaxItemsChargedOut, "2")

	// act
	patronBlocks, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert
	require.NoError(t, err)
	assert.Empty(t, patronBlocks)
}

func Test_BlocksForUser_NoLimitsConfigured_ProducesNoBlocks(t *testing.T) {
	// arrange
	fixture := newFixture(t)
	fixture.givenOpenLoans(50)

	// act
	patronBlocks, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert
	require.NoError(t, err)
	assert.Empty(t, patronBlocks)
}

func Test_BlocksForUser_MultipleFiringConditions_AllReported(t *testing.T) {
	// arrange
	fixture := newFixture(t)
	fixture.givenOpenLoans(3)
	fixture.givenLimit(core.ConditionMaxItemsChargedOut, "1")
	fixture.givenConditionEnabled(core.ConditionMaxItemsChargedOut, "Too many items charged out")
	fixture.givenLimit(core.ConditionMaxOutstandingBalance, "10.00")
	fixture.givenConditionEnabled(core.ConditionMaxOutstandingBalance, "Outstanding balance too high")
	fixture.givenOpenFeeFine("25.00")

	// act
	patronBlocks, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert
	require.NoError(t, err)
	require.Len(t, patronBlocks, 2)
	conditionIDs := []uuid.UUID{patronBlocks[0].ConditionID, patronBlocks[1].ConditionID}
	assert.Contains(t, conditionIDs, core.ConditionMaxItemsChargedOut)
	assert.Contains(t, conditionIDs, core.ConditionMaxOutstandingBalance)
}

func Test_BlocksForUser_LimitReferencingMissingCondition_Fails(t *testing.T) {
	// arrange
	fixture := newFixture(t)
	fixture.givenOpenLoans(1)
	fixture.givenLimit(core.ConditionMaxItemsChargedOut, "0")
	fixture.conditions.RemoveCondition(core.ConditionMaxItemsChargedOut)

	// act
	_, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert
	assert.ErrorIs(t, err, blocks.ErrConditionMissing)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func Test_BlocksForUser_DirectoryFailure_Propagates(t *testing.T) {
	// arrange
	fixture := newFixture(t)
	directoryErr := errors.New("users service unavailable")
	fixture.directory.err = directoryErr

	// act
	_, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert - a failed lookup is an error, never an empty "no blocks" answer
	assert.ErrorIs(t, err, directoryErr)
}

func Test_BlocksForUser_OverdueLoanScenario(t *testing.T) {
	// arrange - checked out for a week, recalled, and now ten days past due
	// with a one-day grace period
	fixture := newFixture(t)
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	fixture.clock = now
	dueDate := now.AddDate(0, 0, -10)
	loanID := uuid.New()

	fixture.handle(core.BuildItemCheckedOut(fixture.userID, loanID, dueDate, dueDate.AddDate(0, 0, -7)))
	fixture.handle(core.BuildLoanDueDateChanged(fixture.userID, loanID, dueDate, true, dueDate.AddDate(0, 0, -3)))

	fixture.givenLimit(core.ConditionMaxOverdueItems, "0")
	fixture.givenConditionEnabled(core.ConditionMaxOverdueItems, "Too many overdue items")
	fixture.givenLimit(core.ConditionRecallOverdueByMaxDays, "7")
	fixture.givenConditionEnabled(core.ConditionRecallOverdueByMaxDays, "Recalled item is long overdue")

	// act
	patronBlocks, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert - both the overdue count and the recall-days rules fire
	require.NoError(t, err)
	require.Len(t, patronBlocks, 2)
	for _, block := range patronBlocks {
		assert.True(t, block.BlockBorrowing)
		assert.True(t, block.BlockRenewals)
		assert.True(t, block.BlockRequests)
	}
}

func Test_BlocksForUser_OverdueLoanWithinGrace_NoBlock(t *testing.T) {
	// arrange - half a day past due under a one-day grace period
	fixture := newFixture(t)
	now := time.Date(2026, 3, 20, 12, 0, 0, 0, time.UTC)
	fixture.clock = now
	fixture.givenStoredSummary(core.UserSummary{
		OpenLoans: []core.OpenLoan{{
			LoanID:      uuid.New(),
			DueDate:     now.Add(-12 * time.Hour),
			GracePeriod: &core.GracePeriod{Duration: 1, Unit: core.GracePeriodDays},
		}},
	})
	fixture.givenLimit(core.ConditionMaxOverdueItems, "0")
	fixture.givenConditionEnabled(core.ConditionMaxOverdueItems, "Too many overdue items")

	// act
	patronBlocks, err := fixture.service.BlocksForUser(context.Background(), fixture.userID)

	// assert
	require.NoError(t, err)
	assert.Empty(t, patronBlocks)
}

type fakeDirectory struct {
	patronGroupID uuid.UUID
	err           error
}

func (d *fakeDirectory) PatronGroupOf(_ context.Context, _ uuid.UUID) (uuid.UUID, error) {
	if d.err != nil {
		return uuid.Nil, d.err
	}

	return d.patronGroupID, nil
}

type fixture struct {
	t             *testing.T
	userID        uuid.UUID
	patronGroupID uuid.UUID
	clock         time.Time
	summaries     *memory.SummaryStore
	conditions    *memory.ConditionStore
	limits        *memory.LimitStore
	directory     *fakeDirectory
	handler       *summary.EventHandler
	service       *blocks.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:             t,
		userID:        uuid.New(),
		patronGroupID: uuid.New(),
		clock:         time.Now(),
		summaries:     memory.NewSummaryStore(),
		conditions:    memory.NewConditionStore(),
		limits:        memory.NewLimitStore(),
	}
	f.directory = &fakeDirectory{patronGroupID: f.patronGroupID}
	f.handler = summary.NewEventHandler(f.summaries, memory.NewEventLogStore())
	f.service = blocks.NewService(f.summaries, f.conditions, f.limits, f.directory,
		blocks.WithClock(func() time.Time { return f.clock }))

	return f
}

func (f *fixture) handle(event core.Event) {
	f.t.Helper()

	_, err := f.handler.Handle(context.Background(), event)
	require.NoError(f.t, err)
}

func (f *fixture) givenOpenLoans(count int) {
	f.t.Helper()

	for range count {
		f.handle(core.BuildItemCheckedOut(f.userID, uuid.New(), f.clock.Add(time.Hour), f.clock))
	}
}

func (f *fixture) givenOpenFeeFine(balance string) {
	f.t.Helper()

	f.handle(core.BuildFeeFineBalanceChanged(f.userID, uuid.New(), uuid.New(), uuid.Nil,
		decimal.RequireFromString(balance), f.clock))
}

func (f *fixture) givenStoredSummary(template core.UserSummary) {
	f.t.Helper()

	stored := core.NewUserSummary(f.userID)
	stored.OpenLoans = template.OpenLoans
	stored.OpenFeesFines = template.OpenFeesFines
	require.NoError(f.t, f.summaries.Save(context.Background(), stored))
}

func (f *fixture) givenLimit(conditionID uuid.UUID, value string) {
	f.t.Helper()

	require.NoError(f.t, f.limits.SaveLimit(context.Background(), storage.Limit{
		ID:            uuid.New(),
		ConditionID:   conditionID,
		PatronGroupID: f.patronGroupID,
		Value:         decimal.RequireFromString(value),
	}))
}

func (f *fixture) givenConditionEnabled(conditionID uuid.UUID, message string) {
	f.t.Helper()

	condition, err := f.conditions.GetCondition(context.Background(), conditionID)
	require.NoError(f.t, err)

	condition.Message = message
	condition.BlockFlags = core.BlockFlags{BlockBorrowing: true, BlockRenewals: true, BlockRequests: true}
	require.NoError(f.t, f.conditions.UpdateCondition(context.Background(), condition))
}
