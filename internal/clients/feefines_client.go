package clients

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/libcirc/patronblocks/internal/synchronization"
)

// FeeFinesClient pages through the open fee/fine accounts of the
// fee/fine service. It implements the fee/fine source of the
// synchronization run.
type FeeFinesClient struct {
	baseURL string
	doer    httpDoer
}

// NewFeeFinesClient creates a FeeFinesClient for the given base URL.
func NewFeeFinesClient(baseURL string, options ...FeeFinesClientOption) *FeeFinesClient {
	client := &FeeFinesClient{
		baseURL: baseURL,
		doer:    http.DefaultClient,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// FeeFinesClientOption configures a FeeFinesClient.
type FeeFinesClientOption func(*FeeFinesClient)

// WithFeeFinesHTTPClient replaces the HTTP client used for requests.
func WithFeeFinesHTTPClient(doer httpDoer) FeeFinesClientOption {
	return func(c *FeeFinesClient) {
		c.doer = doer
	}
}

type accountDocument struct {
	ID            uuid.UUID       `json:"id"`
	UserID        uuid.UUID       `json:"userId"`
	FeeFineTypeID uuid.UUID       `json:"feeFineId"`
	LoanID        uuid.UUID       `json:"loanId"`
	Remaining     decimal.Decimal `json:"remaining"`
}

type accountsDocument struct {
	Accounts     []accountDocument `json:"accounts"`
	TotalRecords int               `json:"totalRecords"`
}

// OpenFeesFines returns one page of open fee/fine snapshots. A uuid.Nil
// userID asks for every patron's accounts.
func (c *FeeFinesClient) OpenFeesFines(
	ctx context.Context, userID uuid.UUID, offset int, limit int,
) (synchronization.FeeFinePage, error) {

	query := url.Values{}
	query.Set("status", "Open")
	query.Set("offset", strconv.Itoa(offset))
	query.Set("limit", strconv.Itoa(limit))
	if userID != uuid.Nil {
		query.Set("userId", userID.String())
	}

	var document accountsDocument
	if err := getJSON(ctx, c.doer, c.baseURL, "/accounts", query, &document); err != nil {
		return synchronization.FeeFinePage{}, err
	}

	feesFines := make([]synchronization.FeeFineSnapshot, len(document.Accounts))
	for i, account := range document.Accounts {
		feesFines[i] = synchronization.FeeFineSnapshot{
			UserID:        account.UserID,
			FeeFineID:     account.ID,
			FeeFineTypeID: account.FeeFineTypeID,
			LoanID:        account.LoanID,
			Balance:       account.Remaining,
		}
	}

	return synchronization.FeeFinePage{
		FeesFines:    feesFines,
		TotalRecords: document.TotalRecords,
	}, nil
}
