package core

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeFineBalanceChangedEventType is the event type identifier.
const FeeFineBalanceChangedEventType = "FeeFineBalanceChanged"

// FeeFineBalanceChanged represents the remaining balance of a fee/fine
// account moving. A balance of zero closes the fee/fine.
//
// UserID may be uuid.Nil: some upstream charge notices only carry the
// fee/fine account id. The owning summary is then resolved by a reverse
// lookup on FeeFineID, which fails when no summary references it.
type FeeFineBalanceChanged struct {
	EventType     string          `json:"eventType"`
	UserID        uuid.UUID       `json:"userId"`
	FeeFineID     uuid.UUID       `json:"feeFineId"`
	FeeFineTypeID uuid.UUID       `json:"feeFineTypeId"`
	LoanID        uuid.UUID       `json:"loanId"`
	Balance       decimal.Decimal `json:"balance"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// BuildFeeFineBalanceChanged creates a new FeeFineBalanceChanged event.
// LoanID is uuid.Nil for fees/fines not linked to a loan.
func BuildFeeFineBalanceChanged(
	userID uuid.UUID,
	feeFineID uuid.UUID,
	feeFineTypeID uuid.UUID,
	loanID uuid.UUID,
	balance decimal.Decimal,
	occurredAt time.Time,
) FeeFineBalanceChanged {

	return FeeFineBalanceChanged{
		EventType:     FeeFineBalanceChangedEventType,
		UserID:        userID,
		FeeFineID:     feeFineID,
		FeeFineTypeID: feeFineTypeID,
		LoanID:        loanID,
		Balance:       balance,
		OccurredAt:    occurredAt,
	}
}

// IsEventType returns the event type identifier.
func (e FeeFineBalanceChanged) IsEventType() string {
	return FeeFineBalanceChangedEventType
}

// AffectsUser returns the patron whose summary this event mutates,
// or uuid.Nil when the owner must be resolved by fee/fine id.
func (e FeeFineBalanceChanged) AffectsUser() uuid.UUID {
	return e.UserID
}

// HasOccurredAt returns when this event occurred.
func (e FeeFineBalanceChanged) HasOccurredAt() time.Time {
	return e.OccurredAt
}

func (e FeeFineBalanceChanged) isCirculationEvent() {}
