package core

import (
	"time"

	"github.com/google/uuid"
)

// LoanDueDateChangedEventType is the event type identifier.
const LoanDueDateChangedEventType = "LoanDueDateChanged"

// LoanDueDateChanged represents a loan's due date being moved, either by a
// renewal or by a recall. A due date change implies the loan is active
// again, so the projection clears the lost bit.
type LoanDueDateChanged struct {
	EventType              string    `json:"eventType"`
	UserID                 uuid.UUID `json:"userId"`
	LoanID                 uuid.UUID `json:"loanId"`
	DueDate                time.Time `json:"dueDate"`
	DueDateChangedByRecall bool      `json:"dueDateChangedByRecall"`
	OccurredAt             time.Time `json:"occurredAt"`
}

// BuildLoanDueDateChanged creates a new LoanDueDateChanged event.
func BuildLoanDueDateChanged(
	userID uuid.UUID,
	loanID uuid.UUID,
	dueDate time.Time,
	dueDateChangedByRecall bool,
	occurredAt time.Time,
) LoanDueDateChanged {

	return LoanDueDateChanged{
		EventType:              LoanDueDateChangedEventType,
		UserID:                 userID,
		LoanID:                 loanID,
		DueDate:                dueDate,
		DueDateChangedByRecall: dueDateChangedByRecall,
		OccurredAt:             occurredAt,
	}
}

// IsEventType returns the event type identifier.
func (e LoanDueDateChanged) IsEventType() string {
	return LoanDueDateChangedEventType
}

// AffectsUser returns the patron whose summary this event mutates.
func (e LoanDueDateChanged) AffectsUser() uuid.UUID {
	return e.UserID
}

// HasOccurredAt returns when this event occurred.
func (e LoanDueDateChanged) HasOccurredAt() time.Time {
	return e.OccurredAt
}

func (e LoanDueDateChanged) isCirculationEvent() {}
