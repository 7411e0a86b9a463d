package core_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/libcirc/patronblocks/internal/core"
)

// Events touching different loans must commute: delivery order is not
// guaranteed by the surrounding transport, and key-independent updates are
// the part the projection promises to converge on.
func Test_Apply_EventsForIndependentLoans_Commute(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		userID := uuid.New()
		loanA := uuid.New()
		loanB := uuid.New()
		now := time.Unix(1_700_000_000, 0).UTC()

		eventA := drawLoanEvent(rt, "a", userID, loanA, now)
		eventB := drawLoanEvent(rt, "b", userID, loanB, now)

		summary := core.NewUserSummary(userID)
		forward := summary.Apply(eventA).Apply(eventB)
		backward := summary.Apply(eventB).Apply(eventA)

		assert.ElementsMatch(rt, forward.OpenLoans, backward.OpenLoans)
	})
}

func Test_Apply_ItemCheckedOut_IsIdempotent_ForAnyDueDate(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		userID := uuid.New()
		loanID := uuid.New()
		now := time.Unix(1_700_000_000, 0).UTC()
		dueDate := now.Add(time.Duration(rapid.IntRange(-10_000, 10_000).Draw(rt, "offsetMin")) * time.Minute)

		event := core.BuildItemCheckedOut(userID, loanID, dueDate, now)

		once := core.NewUserSummary(userID).Apply(event)
		twice := once.Apply(event)

		assert.Equal(rt, once.OpenLoans, twice.OpenLoans)
	})
}

func drawLoanEvent(rt *rapid.T, label string, userID, loanID uuid.UUID, now time.Time) core.Event {
	switch rapid.IntRange(0, 4).Draw(rt, "kind-"+label) {
	case 0:
		return core.BuildItemCheckedOut(userID, loanID, now.Add(time.Hour), now)
	case 1:
		return core.BuildItemDeclaredLost(userID, loanID, now)
	case 2:
		return core.BuildItemAgedToLost(userID, loanID, now)
	case 3:
		return core.BuildItemClaimedReturned(userID, loanID, now)
	default:
		return core.BuildLoanDueDateChanged(userID, loanID, now.Add(2*time.Hour), rapid.Bool().Draw(rt, "recall-"+label), now)
	}
}
