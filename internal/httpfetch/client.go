// Package httpfetch is the shared HTTP client wrapper every outbound
// fetch (DID document resolution, labeler enumeration, endpoint
// probing, central-service ingest) goes through: a bounded-timeout
// client plus a small decode-JSON-or-fail helper, so none of those
// call sites hand-roll their own client construction or timeouts.
package httpfetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client wraps net/http with a fixed per-request timeout, matching the
// short-timeout discipline the original implementation applies to every
// external network call individually (DID doc fetch, probe, hydrate).
type Client struct {
	http *http.Client
}

// New builds a Client whose requests are bounded by timeout.
func New(timeout time.Duration) *Client {
	return &Client{http: &http.Client{Timeout: timeout}}
}

// GetJSON issues a GET to url with an Accept: application/json header
// and decodes the response body into out. Non-2xx responses are
// returned as *StatusError so callers can branch on the status code
// (e.g. probing distinguishes 401/403 "auth_required" from other
// failures).
func (c *Client) GetJSON(ctx context.Context, url string, out interface{}) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp, fmt.Errorf("decode response from %s: %w", url, err)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp, nil
}

// Get issues a GET and returns the raw response, for callers that only
// care about status/latency rather than a decoded payload. The caller
// owns closing the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	return c.http.Do(req)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}
