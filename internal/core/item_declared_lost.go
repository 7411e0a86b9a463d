package core

import (
	"time"

	"github.com/google/uuid"
)

// ItemDeclaredLostEventType is the event type identifier.
const ItemDeclaredLostEventType = "ItemDeclaredLost"

// ItemDeclaredLost represents a patron declaring a borrowed item lost.
type ItemDeclaredLost struct {
	EventType  string    `json:"eventType"`
	UserID     uuid.UUID `json:"userId"`
	LoanID     uuid.UUID `json:"loanId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// BuildItemDeclaredLost creates a new ItemDeclaredLost event.
func BuildItemDeclaredLost(userID uuid.UUID, loanID uuid.UUID, occurredAt time.Time) ItemDeclaredLost {
	return ItemDeclaredLost{
		EventType:  ItemDeclaredLostEventType,
		UserID:     userID,
		LoanID:     loanID,
		OccurredAt: occurredAt,
	}
}

// IsEventType returns the event type identifier.
func (e ItemDeclaredLost) IsEventType() string {
	return ItemDeclaredLostEventType
}

// AffectsUser returns the patron whose summary this event mutates.
func (e ItemDeclaredLost) AffectsUser() uuid.UUID {
	return e.UserID
}

// HasOccurredAt returns when this event occurred.
func (e ItemDeclaredLost) HasOccurredAt() time.Time {
	return e.OccurredAt
}

func (e ItemDeclaredLost) isCirculationEvent() {}
