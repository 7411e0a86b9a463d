// Package core contains the pure domain logic of the patron blocks service:
// the circulation event model, the per-patron summary projection, the
// overdue calculation and the block rule evaluation.
// Nothing in this package performs I/O or suspends.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Events is an alias type for a slice of Event.
type Events = []Event

// Event is the closed set of circulation facts the summary projection folds.
// Every variant carries the affected patron and the moment it occurred.
// The set is sealed by the unexported marker method so the projection can
// switch over it exhaustively.
type Event interface {
	IsEventType() string
	AffectsUser() uuid.UUID
	HasOccurredAt() time.Time
	isCirculationEvent()
}
