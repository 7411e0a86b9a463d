// Package clients holds the HTTP clients for the surrounding services:
// the circulation system (loan snapshots), the fee/fine service (account
// snapshots) and the user directory (patron groups).
package clients

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"
)

// ErrUnexpectedStatus is returned when an upstream service answers with
// anything but 200.
var ErrUnexpectedStatus = errors.New("unexpected response status")

var jsonCodec = jsoniter.ConfigFastest

// httpDoer is the slice of http.Client the clients need.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// getJSON performs a GET against baseURL+path with the given query and
// decodes the body into out.
func getJSON(ctx context.Context, doer httpDoer, baseURL string, path string, query url.Values, out any) error {
	target := baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %d from %s", ErrUnexpectedStatus, resp.StatusCode, path)
	}

	return jsonCodec.NewDecoder(resp.Body).Decode(out)
}
