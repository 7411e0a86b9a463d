package core

import (
	"time"

	"github.com/google/uuid"
)

// ItemCheckedInEventType is the event type identifier.
const ItemCheckedInEventType = "ItemCheckedIn"

// ItemCheckedIn represents a loan being closed by a check-in.
type ItemCheckedIn struct {
	EventType  string    `json:"eventType"`
	UserID     uuid.UUID `json:"userId"`
	LoanID     uuid.UUID `json:"loanId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// BuildItemCheckedIn creates a new ItemCheckedIn event.
func BuildItemCheckedIn(userID uuid.UUID, loanID uuid.UUID, occurredAt time.Time) ItemCheckedIn {
	return ItemCheckedIn{
		EventType:  ItemCheckedInEventType,
		UserID:     userID,
		LoanID:     loanID,
		OccurredAt: occurredAt,
	}
}

// IsEventType returns the event type identifier.
func (e ItemCheckedIn) IsEventType() string {
	return ItemCheckedInEventType
}

// AffectsUser returns the patron whose summary this event mutates.
func (e ItemCheckedIn) AffectsUser() uuid.UUID {
	return e.UserID
}

// HasOccurredAt returns when this event occurred.
func (e ItemCheckedIn) HasOccurredAt() time.Time {
	return e.OccurredAt
}

func (e ItemCheckedIn) isCirculationEvent() {}
