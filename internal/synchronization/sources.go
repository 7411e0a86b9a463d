package synchronization

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libcirc/patronblocks/internal/core"
)

// Item statuses as reported by the circulation system. Anything else is
// treated as a plainly checked out item.
const (
	ItemStatusDeclaredLost    = "Declared lost"
	ItemStatusAgedToLost      = "Aged to lost"
	ItemStatusClaimedReturned = "Claimed returned"
)

// LoanSnapshot is the current state of one open loan as reported by the
// system of record. It carries everything needed to synthesize the
// event sequence that reproduces the loan in a summary.
type LoanSnapshot struct {
	UserID                 uuid.UUID
	LoanID                 uuid.UUID
	LoanDate               time.Time
	DueDate                time.Time
	DueDateChangedByRecall bool
	ItemStatus             string
	GracePeriod            *core.GracePeriod
}

// FeeFineSnapshot is the current state of one open fee/fine account.
type FeeFineSnapshot struct {
	UserID        uuid.UUID
	FeeFineID     uuid.UUID
	FeeFineTypeID uuid.UUID
	LoanID        uuid.UUID
	Balance       decimal.Decimal
}

// LoanPage is one page of loan snapshots plus the total match count, so
// the caller can size the run up front.
type LoanPage struct {
	Loans        []LoanSnapshot
	TotalRecords int
}

// FeeFinePage is one page of fee/fine snapshots plus the total match count.
type FeeFinePage struct {
	FeesFines    []FeeFineSnapshot
	TotalRecords int
}

// LoanSource pages through the open loans of the system of record.
// A uuid.Nil userID asks for every patron's loans.
type LoanSource interface {
	OpenLoans(ctx context.Context, userID uuid.UUID, offset int, limit int) (LoanPage, error)
}

// FeeFineSource pages through the open fee/fine accounts of the system
// of record. A uuid.Nil userID asks for every patron's fees/fines.
type FeeFineSource interface {
	OpenFeesFines(ctx context.Context, userID uuid.UUID, offset int, limit int) (FeeFinePage, error)
}
