// Package remote wraps the shared HTTP client used for manifest and artifact
// retrieval. Retry policy deliberately does not live here: the download
// orchestrator owns per-task attempt accounting, so the client performs
// exactly one request per call.
package remote

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"
)

// StatusError reports a non-2xx response for a fetch.
type StatusError struct {
	URL        string
	StatusCode int
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.StatusCode)
}

// Client is a thin wrapper over resty configured for launcher traffic.
type Client struct {
	rc *resty.Client
}

// NewClient builds a Client with the given per-request timeout.
func NewClient(timeout time.Duration) *Client {
	rc := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", "launchcraft")
	return &Client{rc: rc}
}

// GetBytes fetches url and returns the response body. The context bounds the
// whole request, including the body read.
func (c *Client) GetBytes(ctx context.Context, url string) ([]byte, error) {
	res, err := c.rc.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	if res.IsError() {
		return nil, &StatusError{URL: url, StatusCode: res.StatusCode()}
	}
	return res.Bytes(), nil
}

// Close releases idle connections held by the underlying client.
func (c *Client) Close() error {
	return c.rc.Close()
}
