package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Evaluate computes the raw block decisions one condition produces for a
// summary against a limit value, before the condition's enablement flags
// are applied. Loans claimed returned are inert for every rule; fees/fines
// tied to a claimed-returned loan are inert for the balance rule.
//
// All rules block every action once the limit is exceeded. The charged-out
// rule is the single asymmetric one: borrowing already blocks when the
// count reaches the limit, renewals and requests only when it exceeds it.
func Evaluate(summary UserSummary, conditionID uuid.UUID, limit decimal.Decimal, now time.Time) BlockFlags {
	switch conditionID {
	case ConditionMaxItemsChargedOut:
		count := decimal.NewFromInt(int64(len(summary.chargeableLoans())))
		return BlockFlags{
			BlockBorrowing: count.GreaterThanOrEqual(limit),
			BlockRenewals:  count.GreaterThan(limit),
			BlockRequests:  count.GreaterThan(limit),
		}

	case ConditionMaxLostItems:
		return blockAllWhenCountExceeds(summary.lostLoanCount(), limit)

	case ConditionMaxOverdueItems:
		return blockAllWhenCountExceeds(summary.overdueLoanCount(now), limit)

	case ConditionMaxOverdueRecalls:
		return blockAllWhenCountExceeds(summary.overdueRecallCount(now), limit)

	case ConditionRecallOverdueByMaxDays:
		return blockAllWhen(summary.anyRecallOverdueByMoreDaysThan(limit, now))

	case ConditionMaxOutstandingBalance:
		return blockAllWhen(summary.outstandingBalance().GreaterThan(limit))

	default:
		return BlockFlags{}
	}
}

func blockAllWhenCountExceeds(count int, limit decimal.Decimal) BlockFlags {
	return blockAllWhen(decimal.NewFromInt(int64(count)).GreaterThan(limit))
}

func blockAllWhen(blocked bool) BlockFlags {
	return BlockFlags{
		BlockBorrowing: blocked,
		BlockRenewals:  blocked,
		BlockRequests:  blocked,
	}
}

// chargeableLoans returns the open loans that count against the patron,
// excluding claimed-returned ones.
func (s UserSummary) chargeableLoans() []OpenLoan {
	loans := make([]OpenLoan, 0, len(s.OpenLoans))
	for _, loan := range s.OpenLoans {
		if !loan.ItemClaimedReturned {
			loans = append(loans, loan)
		}
	}

	return loans
}

func (s UserSummary) lostLoanCount() int {
	count := 0
	for _, loan := range s.chargeableLoans() {
		if loan.ItemLost {
			count++
		}
	}

	return count
}

func (s UserSummary) overdueLoanCount(now time.Time) int {
	count := 0
	for _, loan := range s.chargeableLoans() {
		if loan.OverdueMinutes(now) > 0 {
			count++
		}
	}

	return count
}

func (s UserSummary) overdueRecallCount(now time.Time) int {
	count := 0
	for _, loan := range s.chargeableLoans() {
		if loan.Recall && loan.OverdueMinutes(now) > 0 {
			count++
		}
	}

	return count
}

// anyRecallOverdueByMoreDaysThan is existential, not count-based: a single
// recalled loan overdue past the day limit blocks the patron.
func (s UserSummary) anyRecallOverdueByMoreDaysThan(limit decimal.Decimal, now time.Time) bool {
	for _, loan := range s.chargeableLoans() {
		if !loan.Recall {
			continue
		}

		if decimal.NewFromInt(int64(loan.OverdueDays(now))).GreaterThan(limit) {
			return true
		}
	}

	return false
}

// outstandingBalance sums the open fee/fine balances, skipping fees/fines
// whose loan is claimed returned. Fees/fines without a loan always count.
func (s UserSummary) outstandingBalance() decimal.Decimal {
	sum := decimal.Zero
	for _, feeFine := range s.OpenFeesFines {
		if feeFine.LoanID != uuid.Nil {
			if loan, exists := s.FindOpenLoan(feeFine.LoanID); exists && loan.ItemClaimedReturned {
				continue
			}
		}

		sum = sum.Add(feeFine.Balance)
	}

	return sum
}
