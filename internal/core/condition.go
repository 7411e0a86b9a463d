package core

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Condition edit validation errors. The patron-facing message and the
// block flags are only meaningful together.
var (
	ErrConditionMessageRequired  = errors.New("a condition with block flags set requires a message")
	ErrConditionMessageForbidden = errors.New("a condition without block flags must not carry a message")
)

// The condition catalog is fixed: six rule types with stable identifiers.
// Tenants edit the block flags and the display message, never the identity.
var (
	ConditionMaxItemsChargedOut     = uuid.MustParse("3d7c52dc-c732-4223-a5f9-688b9ba1558b")
	ConditionMaxLostItems           = uuid.MustParse("72b67965-5b73-4840-bc0b-be8f3f6e047e")
	ConditionMaxOverdueItems        = uuid.MustParse("584fbd4f-6a34-4730-a6ca-73a6a6a9d845")
	ConditionMaxOverdueRecalls      = uuid.MustParse("e5b45031-a202-4abb-917b-e1df9346fe2c")
	ConditionRecallOverdueByMaxDays = uuid.MustParse("08530ac4-07f2-48e6-9dda-a97bc2bf7053")
	ConditionMaxOutstandingBalance  = uuid.MustParse("cf7a0d5f-a327-4ca1-aa9e-dc55ec006b8a")
)

// BlockFlags holds the three independent block decisions a condition can
// produce. They are always computed together.
type BlockFlags struct {
	BlockBorrowing bool `json:"blockBorrowing"`
	BlockRenewals  bool `json:"blockRenewals"`
	BlockRequests  bool `json:"blockRequests"`
}

// And intersects raw evaluation results with a condition's enablement flags.
func (f BlockFlags) And(other BlockFlags) BlockFlags {
	return BlockFlags{
		BlockBorrowing: f.BlockBorrowing && other.BlockBorrowing,
		BlockRenewals:  f.BlockRenewals && other.BlockRenewals,
		BlockRequests:  f.BlockRequests && other.BlockRequests,
	}
}

// Any reports whether at least one action is blocked.
func (f BlockFlags) Any() bool {
	return f.BlockBorrowing || f.BlockRenewals || f.BlockRequests
}

// Condition is one catalog entry: a rule type plus the tenant-editable
// enablement flags and patron-facing message.
type Condition struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Message string    `json:"message"`
	BlockFlags
}

// Flags returns the tenant-configured enablement flags.
func (c Condition) Flags() BlockFlags {
	return c.BlockFlags
}

// Validate checks the message/flags coupling of an edited condition.
func (c Condition) Validate() error {
	hasMessage := strings.TrimSpace(c.Message) != ""

	if c.Flags().Any() && !hasMessage {
		return ErrConditionMessageRequired
	}

	if !c.Flags().Any() && hasMessage {
		return ErrConditionMessageForbidden
	}

	return nil
}

// DefaultConditions returns the full catalog in its initial state: every
// rule known, nothing enabled, no messages.
func DefaultConditions() []Condition {
	return []Condition{
		{ID: ConditionMaxItemsChargedOut, Name: "Maximum number of items charged out"},
		{ID: ConditionMaxLostItems, Name: "Maximum number of lost items"},
		{ID: ConditionMaxOverdueItems, Name: "Maximum number of overdue items"},
		{ID: ConditionMaxOverdueRecalls, Name: "Maximum number of overdue recalls"},
		{ID: ConditionRecallOverdueByMaxDays, Name: "Recall overdue by maximum number of days"},
		{ID: ConditionMaxOutstandingBalance, Name: "Maximum outstanding fee/fine balance"},
	}
}

// KnownConditionID reports whether the id belongs to the fixed catalog.
func KnownConditionID(id uuid.UUID) bool {
	switch id {
	case ConditionMaxItemsChargedOut,
		ConditionMaxLostItems,
		ConditionMaxOverdueItems,
		ConditionMaxOverdueRecalls,
		ConditionRecallOverdueByMaxDays,
		ConditionMaxOutstandingBalance:
		return true
	default:
		return false
	}
}
