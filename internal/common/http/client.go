// internal/common/http/client.go
package http

import (
	"net/http"
	"time"
)

// Client is a thin wrapper around net/http with a per-provider timeout.
// Requests are expected to carry their own context (NewRequestWithContext),
// so the client-level timeout only caps the transport.
type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.httpClient.Do(req)
}
