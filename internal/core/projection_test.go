package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/libcirc/patronblocks/internal/core"
)

func Test_Apply_ItemCheckedOut_AppendsOpenLoan(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	summary := core.NewUserSummary(userID)

	// act
	result := summary.Apply(core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now))

	// assert
	assert.Len(t, result.OpenLoans, 1)
	loan, exists := result.FindOpenLoan(loanID)
	assert.True(t, exists)
	assert.Equal(t, now.Add(time.Hour), loan.DueDate)
	assert.False(t, loan.Recall)
	assert.False(t, loan.ItemLost)
	assert.False(t, loan.ItemClaimedReturned)
}

func Test_Apply_ItemCheckedOut_Twice_IsIdempotent(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	event := core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now)

	// act
	result := core.NewUserSummary(userID).Apply(event).Apply(event)

	// assert
	assert.Len(t, result.OpenLoans, 1, "a repeated checkout must not duplicate the loan")
}

func Test_Apply_ItemCheckedOut_CarriesGracePeriod(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	event := core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now).
		WithGracePeriod(core.GracePeriod{Duration: 2, Unit: core.GracePeriodDays})

	// act
	result := core.NewUserSummary(userID).Apply(event)

	// assert
	loan, _ := result.FindOpenLoan(loanID)
	assert.NotNil(t, loan.GracePeriod)
	assert.Equal(t, 2*24*60, loan.GracePeriod.Minutes())
}

func Test_Apply_ItemCheckedIn_RemovesLoan(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	summary := core.NewUserSummary(userID).
		Apply(core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now))

	// act
	result := summary.Apply(core.BuildItemCheckedIn(userID, loanID, now))

	// assert
	assert.Empty(t, result.OpenLoans)
}

func Test_Apply_ItemCheckedIn_UnknownLoan_IsNoOp(t *testing.T) {
	// arrange
	userID := uuid.New()
	now := time.Now()
	summary := core.NewUserSummary(userID)

	// act
	result := summary.Apply(core.BuildItemCheckedIn(userID, uuid.New(), now))

	// assert
	assert.Empty(t, result.OpenLoans)
}

func Test_Apply_LostEvents_MarkLoanLost(t *testing.T) {
	userID := uuid.New()
	now := time.Now()

	testCases := []struct {
		name      string
		lostEvent func(loanID uuid.UUID) core.Event
	}{
		{
			name: "declared lost",
			lostEvent: func(loanID uuid.UUID) core.Event {
				return core.BuildItemDeclaredLost(userID, loanID, now)
			},
		},
		{
			name: "aged to lost",
			lostEvent: func(loanID uuid.UUID) core.Event {
				return core.BuildItemAgedToLost(userID, loanID, now)
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// arrange
			loanID := uuid.New()
			summary := core.NewUserSummary(userID).
				Apply(core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now))

			// act
			result := summary.Apply(tc.lostEvent(loanID))

			// assert
			loan, exists := result.FindOpenLoan(loanID)
			assert.True(t, exists)
			assert.True(t, loan.ItemLost)
		})
	}
}

func Test_Apply_ItemDeclaredLost_UnknownLoan_CreatesMinimalEntry(t *testing.T) {
	// arrange - the checkout event was missed, the loss still has to stick
	userID := uuid.New()
	loanID := uuid.New()

	// act
	result := core.NewUserSummary(userID).
		Apply(core.BuildItemDeclaredLost(userID, loanID, time.Now()))

	// assert
	loan, exists := result.FindOpenLoan(loanID)
	assert.True(t, exists)
	assert.True(t, loan.ItemLost)
	assert.True(t, loan.DueDate.IsZero())
}

func Test_Apply_ItemClaimedReturned_MarksLoan(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	summary := core.NewUserSummary(userID).
		Apply(core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now))

	// act
	result := summary.Apply(core.BuildItemClaimedReturned(userID, loanID, now))

	// assert
	loan, _ := result.FindOpenLoan(loanID)
	assert.True(t, loan.ItemClaimedReturned)
}

func Test_Apply_ItemClaimedReturned_UnknownLoan_CreatesMinimalEntry(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()

	// act
	result := core.NewUserSummary(userID).
		Apply(core.BuildItemClaimedReturned(userID, loanID, time.Now()))

	// assert
	loan, exists := result.FindOpenLoan(loanID)
	assert.True(t, exists)
	assert.True(t, loan.ItemClaimedReturned)
}

func Test_Apply_LoanDueDateChanged_UpdatesLoanAndClearsLostBit(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	newDueDate := now.Add(48 * time.Hour)
	summary := core.NewUserSummary(userID).
		Apply(core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now)).
		Apply(core.BuildItemDeclaredLost(userID, loanID, now))

	// act
	result := summary.Apply(core.BuildLoanDueDateChanged(userID, loanID, newDueDate, true, now))

	// assert
	loan, _ := result.FindOpenLoan(loanID)
	assert.Equal(t, newDueDate, loan.DueDate)
	assert.True(t, loan.Recall)
	assert.False(t, loan.ItemLost, "a moved due date means the loan is active again")
}

func Test_Apply_LoanDueDateChanged_UnknownLoan_CreatesLoan(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()

	// act
	result := core.NewUserSummary(userID).
		Apply(core.BuildLoanDueDateChanged(userID, loanID, now.Add(time.Hour), true, now))

	// assert
	loan, exists := result.FindOpenLoan(loanID)
	assert.True(t, exists)
	assert.True(t, loan.Recall)
	assert.Equal(t, now.Add(time.Hour), loan.DueDate)
}

func Test_Apply_FeeFineBalanceChanged_UpsertsAndRemoves(t *testing.T) {
	// arrange
	userID := uuid.New()
	feeFineID := uuid.New()
	feeFineTypeID := uuid.New()
	now := time.Now()
	summary := core.NewUserSummary(userID)

	// act - open with 7.50, change to 3.25, settle to zero
	opened := summary.Apply(core.BuildFeeFineBalanceChanged(
		userID, feeFineID, feeFineTypeID, uuid.Nil, decimal.RequireFromString("7.50"), now))
	changed := opened.Apply(core.BuildFeeFineBalanceChanged(
		userID, feeFineID, feeFineTypeID, uuid.Nil, decimal.RequireFromString("3.25"), now))
	settled := changed.Apply(core.BuildFeeFineBalanceChanged(
		userID, feeFineID, feeFineTypeID, uuid.Nil, decimal.Zero, now))

	// assert
	assert.Len(t, opened.OpenFeesFines, 1)
	assert.Len(t, changed.OpenFeesFines, 1)
	assert.True(t, changed.OpenFeesFines[0].Balance.Equal(decimal.RequireFromString("3.25")))
	assert.Empty(t, settled.OpenFeesFines, "a settled fee/fine is removed, not retained")
}

func Test_Apply_DoesNotMutateReceiver(t *testing.T) {
	// arrange
	userID := uuid.New()
	loanID := uuid.New()
	now := time.Now()
	original := core.NewUserSummary(userID).
		Apply(core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now))

	// act
	_ = original.Apply(core.BuildItemDeclaredLost(userID, loanID, now))
	_ = original.Apply(core.BuildItemCheckedIn(userID, loanID, now))

	// assert
	loan, exists := original.FindOpenLoan(loanID)
	assert.True(t, exists)
	assert.False(t, loan.ItemLost)
}
