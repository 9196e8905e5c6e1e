package network

import (
	"net/http"
	"time"
)

// ClientOption configures a Client built by NewClient.
type ClientOption func(Client) Client

// WithTimeout bounds each peer request.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c Client) Client {
		c.timeout = timeout
		return c
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c Client) Client {
		c.http = client
		return c
	}
}
