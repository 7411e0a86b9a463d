package core

import (
	"time"

	"github.com/google/uuid"
)

// ItemClaimedReturnedEventType is the event type identifier.
const ItemClaimedReturnedEventType = "ItemClaimedReturned"

// ItemClaimedReturned represents a patron claiming a borrowed item was
// already returned. A claimed-returned loan is inert for block decisions.
type ItemClaimedReturned struct {
	EventType  string    `json:"eventType"`
	UserID     uuid.UUID `json:"userId"`
	LoanID     uuid.UUID `json:"loanId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// BuildItemClaimedReturned creates a new ItemClaimedReturned event.
func BuildItemClaimedReturned(userID uuid.UUID, loanID uuid.UUID, occurredAt time.Time) ItemClaimedReturned {
	return ItemClaimedReturned{
		EventType:  ItemClaimedReturnedEventType,
		UserID:     userID,
		LoanID:     loanID,
		OccurredAt: occurredAt,
	}
}

// IsEventType returns the event type identifier.
func (e ItemClaimedReturned) IsEventType() string {
	return ItemClaimedReturnedEventType
}

// AffectsUser returns the patron whose summary this event mutates.
func (e ItemClaimedReturned) AffectsUser() uuid.UUID {
	return e.UserID
}

// HasOccurredAt returns when this event occurred.
func (e ItemClaimedReturned) HasOccurredAt() time.Time {
	return e.OccurredAt
}

func (e ItemClaimedReturned) isCirculationEvent() {}
