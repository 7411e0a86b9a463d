package clients

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// UsersClient resolves patrons against the user directory service.
// It implements the patron directory needed by the blocks service.
type UsersClient struct {
	baseURL string
	doer    httpDoer
}

// NewUsersClient creates a UsersClient for the given base URL.
func NewUsersClient(baseURL string, options ...UsersClientOption) *UsersClient {
	client := &UsersClient{
		baseURL: baseURL,
		doer:    http.DefaultClient,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// UsersClientOption configures a UsersClient.
type UsersClientOption func(*UsersClient)

// WithUsersHTTPClient replaces the HTTP client used for requests.
func WithUsersHTTPClient(doer httpDoer) UsersClientOption {
	return func(c *UsersClient) {
		c.doer = doer
	}
}

type userDocument struct {
	ID          uuid.UUID `json:"id"`
	PatronGroup uuid.UUID `json:"patronGroup"`
}

// PatronGroupOf returns the patron group the user belongs to.
func (c *UsersClient) PatronGroupOf(ctx context.Context, userID uuid.UUID) (uuid.UUID, error) {
	var user userDocument
	if err := getJSON(ctx, c.doer, c.baseURL, "/users/"+userID.String(), nil, &user); err != nil {
		return uuid.Nil, err
	}

	return user.PatronGroup, nil
}
