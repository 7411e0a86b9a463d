package core

import (
	"time"

	"github.com/google/uuid"
)

// ItemCheckedOutEventType is the event type identifier.
const ItemCheckedOutEventType = "ItemCheckedOut"

// ItemCheckedOut represents a loan being opened for a patron. The loan
// policy's grace period travels with the event when the policy grants one.
type ItemCheckedOut struct {
	EventType   string       `json:"eventType"`
	UserID      uuid.UUID    `json:"userId"`
	LoanID      uuid.UUID    `json:"loanId"`
	DueDate     time.Time    `json:"dueDate"`
	GracePeriod *GracePeriod `json:"gracePeriod,omitempty"`
	OccurredAt  time.Time    `json:"occurredAt"`
}

// BuildItemCheckedOut creates a new ItemCheckedOut event.
func BuildItemCheckedOut(userID uuid.UUID, loanID uuid.UUID, dueDate time.Time, occurredAt time.Time) ItemCheckedOut {
	return ItemCheckedOut{
		EventType:  ItemCheckedOutEventType,
		UserID:     userID,
		LoanID:     loanID,
		DueDate:    dueDate,
		OccurredAt: occurredAt,
	}
}

// WithGracePeriod returns a copy of the event carrying the given grace
// period.
func (e ItemCheckedOut) WithGracePeriod(gracePeriod GracePeriod) ItemCheckedOut {
	e.GracePeriod = &gracePeriod
	return e
}

// IsEventType returns the event type identifier.
func (e ItemCheckedOut) IsEventType() string {
	return ItemCheckedOutEventType
}

// AffectsUser returns the patron whose summary this event mutates.
func (e ItemCheckedOut) AffectsUser() uuid.UUID {
	return e.UserID
}

// HasOccurredAt returns when this event occurred.
func (e ItemCheckedOut) HasOccurredAt() time.Time {
	return e.OccurredAt
}

func (e ItemCheckedOut) isCirculationEvent() {}
