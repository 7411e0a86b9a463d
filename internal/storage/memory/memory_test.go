package memory_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/storage"
	"github.com/libcirc/patronblocks/internal/storage/memory"
	"github.com/libcirc/patronblocks/internal/synchronization"
)

func Test_LimitStore_SecondLimitForSamePair_IsRejected(t *testing.T) {
	// arrange
	store := memory.NewLimitStore()
	groupID := uuid.New()
	first := storage.Limit{
		ID:            uuid.New(),
		ConditionID:   core.ConditionMaxItemsChargedOut,
		PatronGroupID: groupID,
		Value:         decimal.NewFromInt(10),
	}
	second := storage.Limit{
		ID:            uuid.New(),
		ConditionID:   core.ConditionMaxItemsChargedOut,
		PatronGroupID: groupID,
		Value:         decimal.NewFromInt(11),
	}
	require.NoError(t, store.SaveLimit(context.Background(), first))

	// act
	err := store.SaveLimit(context.Background(), second)

	// assert - one threshold per pair, the first one stands
	assert.ErrorIs(t, err, storage.ErrDuplicateLimit)
	limits, findErr := store.FindLimitsForPatronGroup(context.Background(), groupID)
	require.NoError(t, findErr)
	require.Len(t, limits, 1)
	assert.Equal(t, first.ID, limits[0].ID)
	assert.True(t, limits[0].Value.Equal(decimal.NewFromInt(10)))
}

func Test_LimitStore_SaveSameID_ReplacesTheThreshold(t *testing.T) {
	// arrange
	store := memory.NewLimitStore()
	limit := storage.Limit{
		ID:            uuid.New(),
		ConditionID:   core.ConditionMaxOverdueItems,
		PatronGroupID: uuid.New(),
		Value:         decimal.NewFromInt(3),
	}
	require.NoError(t, store.SaveLimit(context.Background(), limit))

	// act
	limit.Value = decimal.NewFromInt(5)
	err := store.SaveLimit(context.Background(), limit)

	// assert
	require.NoError(t, err)
	stored, getErr := store.GetLimit(context.Background(), limit.ID)
	require.NoError(t, getErr)
	assert.True(t, stored.Value.Equal(decimal.NewFromInt(5)))
}

func Test_LimitStore_AllLimits_ReturnsEveryGroup(t *testing.T) {
	// arrange
	store := memory.NewLimitStore()
	for _, conditionID := range []uuid.UUID{core.ConditionMaxItemsChargedOut, core.ConditionMaxLostItems} {
		require.NoError(t, store.SaveLimit(context.Background(), storage.Limit{
			ID:            uuid.New(),
			ConditionID:   conditionID,
			PatronGroupID: uuid.New(),
			Value:         decimal.NewFromInt(1),
		}))
	}

	// act
	limits, err := store.AllLimits(context.Background())

	// assert
	require.NoError(t, err)
	assert.Len(t, limits, 2)
}

func Test_JobStore_ClaimJob_TransitionsOpenToInProgress(t *testing.T) {
	// arrange
	store := memory.NewJobStore()
	job, err := synchronization.NewJob(synchronization.ScopeFull, uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(context.Background(), job))

	// act
	err = store.ClaimJob(context.Background(), job.ID)

	// assert
	require.NoError(t, err)
	claimed, getErr := store.GetJob(context.Background(), job.ID)
	require.NoError(t, getErr)
	assert.Equal(t, synchronization.StatusInProgress, claimed.Status)
}

func Test_JobStore_ClaimJob_SecondClaim_Conflicts(t *testing.T) {
	// arrange
	store := memory.NewJobStore()
	job, err := synchronization.NewJob(synchronization.ScopeFull, uuid.Nil)
	require.NoError(t, err)
	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, store.ClaimJob(context.Background(), job.ID))

	// act
	err = store.ClaimJob(context.Background(), job.ID)

	// assert
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
}

func Test_JobStore_ClaimJob_UnknownJob_IsNotFound(t *testing.T) {
	store := memory.NewJobStore()

	err := store.ClaimJob(context.Background(), uuid.New())

	assert.ErrorIs(t, err, storage.ErrNotFound)
}
