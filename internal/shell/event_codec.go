package shell

import (
	"errors"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/libcirc/patronblocks/internal/core"
)

var (
	// ErrMarshalingEventFailed is returned when an event cannot be serialized.
	ErrMarshalingEventFailed = errors.New("marshaling event failed")

	// ErrUnmarshalingEventFailed is returned when an event payload cannot be parsed.
	ErrUnmarshalingEventFailed = errors.New("unmarshaling event failed")

	// ErrUnknownEventType is returned for event type identifiers outside the sealed set.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrMissingUserID is returned when an event that requires a patron id carries none.
	ErrMissingUserID = errors.New("event is missing a user id")

	// ErrMissingLoanID is returned when a loan-scoped event carries no loan id.
	ErrMissingLoanID = errors.New("event is missing a loan id")

	// ErrMissingFeeFineID is returned when a balance event carries no fee/fine id.
	ErrMissingFeeFineID = errors.New("event is missing a fee/fine id")
)

// MarshalEvent serializes an event payload for the log.
func MarshalEvent(event core.Event) ([]byte, error) {
	payload, err := jsoniter.ConfigFastest.Marshal(event)
	if err != nil {
		return nil, errors.Join(ErrMarshalingEventFailed, err)
	}

	return payload, nil
}

// UnmarshalEvent parses a payload back into its event variant, dispatching
// on the stored event type identifier.
func UnmarshalEvent(eventType string, payload []byte) (core.Event, error) {
	switch eventType {
	case core.ItemCheckedOutEventType:
		return unmarshalAs[core.ItemCheckedOut](payload)

	case core.ItemCheckedInEventType:
		return unmarshalAs[core.ItemCheckedIn](payload)

	case core.ItemDeclaredLostEventType:
		return unmarshalAs[core.ItemDeclaredLost](payload)

	case core.ItemAgedToLostEventType:
		return unmarshalAs[core.ItemAgedToLost](payload)

	case core.ItemClaimedReturnedEventType:
		return unmarshalAs[core.ItemClaimedReturned](payload)

	case core.LoanDueDateChangedEventType:
		return unmarshalAs[core.LoanDueDateChanged](payload)

	case core.FeeFineBalanceChangedEventType:
		return unmarshalAs[core.FeeFineBalanceChanged](payload)

	default:
		return nil, errors.Join(ErrUnmarshalingEventFailed, ErrUnknownEventType)
	}
}

// EventFromJSON parses an incoming event document. The document carries its
// own type discriminator in the eventType property. Events without a
// creation timestamp are stamped with the current time.
func EventFromJSON(data []byte) (core.Event, error) {
	var envelope struct {
		EventType string `json:"eventType"`
	}

	if err := jsoniter.ConfigFastest.Unmarshal(data, &envelope); err != nil {
		return nil, errors.Join(ErrUnmarshalingEventFailed, err)
	}

	event, err := UnmarshalEvent(envelope.EventType, data)
	if err != nil {
		return nil, err
	}

	if err := ValidateEvent(event); err != nil {
		return nil, err
	}

	return stampOccurredAt(event), nil
}

// ValidateEvent rejects events missing the identifiers their variant
// requires, before any mutation is attempted. A FeeFineBalanceChanged
// without a patron id is legal; its owner is resolved by fee/fine id.
func ValidateEvent(event core.Event) error {
	if e, ok := event.(core.FeeFineBalanceChanged); ok {
		if e.FeeFineID == uuid.Nil {
			return ErrMissingFeeFineID
		}

		return nil
	}

	if event.AffectsUser() == uuid.Nil {
		return ErrMissingUserID
	}

	if loanID, scoped := loanIDOf(event); scoped && loanID == uuid.Nil {
		return ErrMissingLoanID
	}

	return nil
}

func unmarshalAs[T core.Event](payload []byte) (core.Event, error) {
	var event T

	if err := jsoniter.ConfigFastest.Unmarshal(payload, &event); err != nil {
		return nil, errors.Join(ErrUnmarshalingEventFailed, err)
	}

	return event, nil
}

func loanIDOf(event core.Event) (uuid.UUID, bool) {
	switch e := event.(type) {
	case core.ItemCheckedOut:
		return e.LoanID, true
	case core.ItemCheckedIn:
		return e.LoanID, true
	case core.ItemDeclaredLost:
		return e.LoanID, true
	case core.ItemAgedToLost:
		return e.LoanID, true
	case core.ItemClaimedReturned:
		return e.LoanID, true
	case core.LoanDueDateChanged:
		return e.LoanID, true
	default:
		return uuid.Nil, false
	}
}

func stampOccurredAt(event core.Event) core.Event {
	if !event.HasOccurredAt().IsZero() {
		return event
	}

	now := time.Now().UTC()

	switch e := event.(type) {
	case core.ItemCheckedOut:
		e.OccurredAt = now
		return e
	case core.ItemCheckedIn:
		e.OccurredAt = now
		return e
	case core.ItemDeclaredLost:
		e.OccurredAt = now
		return e
	case core.ItemAgedToLost:
		e.OccurredAt = now
		return e
	case core.ItemClaimedReturned:
		e.OccurredAt = now
		return e
	case core.LoanDueDateChanged:
		e.OccurredAt = now
		return e
	case core.FeeFineBalanceChanged:
		e.OccurredAt = now
		return e
	default:
		return event
	}
}
