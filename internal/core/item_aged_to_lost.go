package core

import (
	"time"

	"github.com/google/uuid"
)

// ItemAgedToLostEventType is the event type identifier.
const ItemAgedToLostEventType = "ItemAgedToLost"

// ItemAgedToLost represents an overdue item being aged to lost by policy.
// It folds into the same lost bit as ItemDeclaredLost; the event log keeps
// the distinction through the event type.
type ItemAgedToLost struct {
	EventType  string    `json:"eventType"`
	UserID     uuid.UUID `json:"userId"`
	LoanID     uuid.UUID `json:"loanId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// BuildItemAgedToLost creates a new ItemAgedToLost event.
func BuildItemAgedToLost(userID uuid.UUID, loanID uuid.UUID, occurredAt time.Time) ItemAgedToLost {
	return ItemAgedToLost{
		EventType:  ItemAgedToLostEventType,
		UserID:     userID,
		LoanID:     loanID,
		OccurredAt: occurredAt,
	}
}

// IsEventType returns the event type identifier.
func (e ItemAgedToLost) IsEventType() string {
	return ItemAgedToLostEventType
}

// AffectsUser returns the patron whose summary this event mutates.
func (e ItemAgedToLost) AffectsUser() uuid.UUID {
	return e.UserID
}

// HasOccurredAt returns when this event occurred.
func (e ItemAgedToLost) HasOccurredAt() time.Time {
	return e.OccurredAt
}

func (e ItemAgedToLost) isCirculationEvent() {}
