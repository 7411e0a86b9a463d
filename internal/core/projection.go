package core

import "github.com/google/uuid"

// Apply folds one event into the summary and returns the resulting state.
// It is a total function over the sealed event set: no variant is ever
// rejected, references to unknown loans fall back to upsert-or-create
// semantics, and references to unknown fee/fines are upserted or ignored.
// The receiver is never mutated; collections are copied before changing.
func (s UserSummary) Apply(event Event) UserSummary {
	switch e := event.(type) {
	case ItemCheckedOut:
		return s.applyItemCheckedOut(e)

	case ItemCheckedIn:
		return s.applyItemCheckedIn(e)

	case ItemDeclaredLost:
		return s.applyItemLost(e.LoanID)

	case ItemAgedToLost:
		return s.applyItemLost(e.LoanID)

	case ItemClaimedReturned:
		return s.applyItemClaimedReturned(e)

	case LoanDueDateChanged:
		return s.applyLoanDueDateChanged(e)

	case FeeFineBalanceChanged:
		return s.applyFeeFineBalanceChanged(e)

	default:
		// The marker method seals the event set; this arm is unreachable
		// for events constructed through the package factories.
		return s
	}
}

// ApplyAll folds a sequence of events, oldest first.
func (s UserSummary) ApplyAll(events Events) UserSummary {
	result := s
	for _, event := range events {
		result = result.Apply(event)
	}

	return result
}

func (s UserSummary) applyItemCheckedOut(e ItemCheckedOut) UserSummary {
	if _, exists := s.FindOpenLoan(e.LoanID); exists {
		return s // a repeated checkout for the same loan is a no-op
	}

	return s.withLoanAppended(OpenLoan{
		LoanID:      e.LoanID,
		DueDate:     e.DueDate,
		GracePeriod: e.GracePeriod,
	})
}

func (s UserSummary) applyItemCheckedIn(e ItemCheckedIn) UserSummary {
	if _, exists := s.FindOpenLoan(e.LoanID); !exists {
		return s // checking in an untracked loan is a no-op
	}

	return s.withLoanRemoved(e.LoanID)
}

// applyItemLost marks the loan lost, creating a minimal entry when the
// checkout event was missed: a loss must be representable either way.
func (s UserSummary) applyItemLost(loanID uuid.UUID) UserSummary {
	if _, exists := s.FindOpenLoan(loanID); !exists {
		return s.withLoanAppended(OpenLoan{LoanID: loanID, ItemLost: true})
	}

	return s.withLoanUpdated(loanID, func(loan OpenLoan) OpenLoan {
		loan.ItemLost = true
		return loan
	})
}

func (s UserSummary) applyItemClaimedReturned(e ItemClaimedReturned) UserSummary {
	if _, exists := s.FindOpenLoan(e.LoanID); !exists {
		return s.withLoanAppended(OpenLoan{LoanID: e.LoanID, ItemClaimedReturned: true})
	}

	return s.withLoanUpdated(e.LoanID, func(loan OpenLoan) OpenLoan {
		loan.ItemClaimedReturned = true
		return loan
	})
}

func (s UserSummary) applyLoanDueDateChanged(e LoanDueDateChanged) UserSummary {
	if _, exists := s.FindOpenLoan(e.LoanID); !exists {
		return s.withLoanAppended(OpenLoan{
			LoanID:  e.LoanID,
			DueDate: e.DueDate,
			Recall:  e.DueDateChangedByRecall,
		})
	}

	return s.withLoanUpdated(e.LoanID, func(loan OpenLoan) OpenLoan {
		loan.DueDate = e.DueDate
		loan.Recall = e.DueDateChangedByRecall
		loan.ItemLost = false // a moved due date means the loan is active again
		return loan
	})
}

func (s UserSummary) applyFeeFineBalanceChanged(e FeeFineBalanceChanged) UserSummary {
	if !e.Balance.IsPositive() {
		return s.withFeeFineRemoved(e.FeeFineID)
	}

	return s.withFeeFineUpserted(OpenFeeFine{
		FeeFineID:     e.FeeFineID,
		FeeFineTypeID: e.FeeFineTypeID,
		LoanID:        e.LoanID,
		Balance:       e.Balance,
	})
}

func (s UserSummary) withLoanAppended(loan OpenLoan) UserSummary {
	loans := make([]OpenLoan, 0, len(s.OpenLoans)+1)
	loans = append(loans, s.OpenLoans...)
	loans = append(loans, loan)
	s.OpenLoans = loans

	return s
}

func (s UserSummary) withLoanRemoved(loanID uuid.UUID) UserSummary {
	loans := make([]OpenLoan, 0, len(s.OpenLoans))
	for _, loan := range s.OpenLoans {
		if loan.LoanID != loanID {
			loans = append(loans, loan)
		}
	}
	s.OpenLoans = loans

	return s
}

func (s UserSummary) withLoanUpdated(loanID uuid.UUID, change func(OpenLoan) OpenLoan) UserSummary {
	loans := make([]OpenLoan, len(s.OpenLoans))
	for i, loan := range s.OpenLoans {
		if loan.LoanID == loanID {
			loan = change(loan)
		}
		loans[i] = loan
	}
	s.OpenLoans = loans

	return s
}

func (s UserSummary) withFeeFineUpserted(feeFine OpenFeeFine) UserSummary {
	feesFines := make([]OpenFeeFine, 0, len(s.OpenFeesFines)+1)
	replaced := false

	for _, existing := range s.OpenFeesFines {
		if existing.FeeFineID == feeFine.FeeFineID {
			feesFines = append(feesFines, feeFine)
			replaced = true
			continue
		}
		feesFines = append(feesFines, existing)
	}

	if !replaced {
		feesFines = append(feesFines, feeFine)
	}
	s.OpenFeesFines = feesFines

	return s
}

func (s UserSummary) withFeeFineRemoved(feeFineID uuid.UUID) UserSummary {
	feesFines := make([]OpenFeeFine, 0, len(s.OpenFeesFines))
	for _, feeFine := range s.OpenFeesFines {
		if feeFine.FeeFineID != feeFineID {
			feesFines = append(feesFines, feeFine)
		}
	}
	s.OpenFeesFines = feesFines

	return s
}
