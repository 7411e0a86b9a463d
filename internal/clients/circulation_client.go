package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/libcirc/patronblocks/internal/core"
	"github.com/libcirc/patronblocks/internal/synchronization"
)

// CirculationClient pages through the open loans of the circulation
// system. It implements the loan source of the synchronization run.
type CirculationClient struct {
	baseURL string
	doer    httpDoer
}

// NewCirculationClient creates a CirculationClient for the given base URL.
func NewCirculationClient(baseURL string, options ...CirculationClientOption) *CirculationClient {
	client := &CirculationClient{
		baseURL: baseURL,
		doer:    http.DefaultClient,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// CirculationClientOption configures a CirculationClient.
type CirculationClientOption func(*CirculationClient)

// WithCirculationHTTPClient replaces the HTTP client used for requests.
func WithCirculationHTTPClient(doer httpDoer) CirculationClientOption {
	return func(c *CirculationClient) {
		c.doer = doer
	}
}

type loanDocument struct {
	ID                     uuid.UUID         `json:"id"`
	UserID                 uuid.UUID         `json:"userId"`
	LoanDate               time.Time         `json:"loanDate"`
	DueDate                time.Time         `json:"dueDate"`
	DueDateChangedByRecall bool              `json:"dueDateChangedByRecall"`
	ItemStatus             string            `json:"itemStatus"`
	GracePeriod            *core.GracePeriod `json:"gracePeriod,omitempty"`
}

type loansDocument struct {
	Loans        []loanDocument `json:"loans"`
	TotalRecords int            `json:"totalRecords"`
}

// OpenLoans returns one page of open loan snapshots. A uuid.Nil userID
// asks for every patron's loans.
func (c *CirculationClient) OpenLoans(
	ctx context.Context, userID uuid.UUID, offset int, limit int,
) (synchronization.LoanPage, error) {

	query := url.Values{}
	query.Set("status", "Open")
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	if userID != uuid.Nil {
		query.Set("userId", userID.String())
	}

	var document loansDocument
	if err := getJSON(ctx, c.doer, c.baseURL, "/loans", query, &document); err != nil {
		return synchronization.LoanPage{}, err
	}

	loans := make([]synchronization.LoanSnapshot, len(document.Loans))
	for i, loan := range document.Loans {
		loans[i] = synchronization.LoanSnapshot{
			UserID:                 loan.UserID,
			LoanID:                 loan.ID,
			LoanDate:               loan.LoanDate,
			DueDate:                loan.DueDate,
			DueDateChangedByRecall: loan.DueDateChangedByRecall,
			ItemStatus:             loan.ItemStatus,
			GracePeriod:            loan.GracePeriod,
		}
	}

	return synchronization.LoanPage{
		Loans:        loans,
		TotalRecords: document.TotalRecords,
	}, nil
}
