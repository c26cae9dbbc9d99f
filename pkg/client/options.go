package client

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/boardproject/boardadmin/pkg/credential"
)

// DefaultRefreshTimeout bounds a single refresh call
const DefaultRefreshTimeout = 10 * time.Second

// SessionExpiredHandler is invoked once per failed refresh. It is expected to
// log the user out; the client ignores anything it does beyond that.
type SessionExpiredHandler interface {
	SessionExpired(ctx context.Context, cause error)
}

// SessionExpiredFunc adapts a function to SessionExpiredHandler
type SessionExpiredFunc func(ctx context.Context, cause error)

func (f SessionExpiredFunc) SessionExpired(ctx context.Context, cause error) {
	f(ctx, cause)
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets the HTTP client. Its cookie jar must hold the refresh cookie.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithStore sets the credential store the access token is read from
func WithStore(store credential.Store) Option {
	return func(c *Client) {
		c.store = store
	}
}

// WithRefresher replaces the default POST /auth/refresh call
func WithRefresher(r Refresher) Option {
	return func(c *Client) {
		c.refresher = r
	}
}

// WithSessionExpiredHandler sets the logout procedure run after a failed refresh
func WithSessionExpiredHandler(h SessionExpiredHandler) Option {
	return func(c *Client) {
		c.onExpired = h
	}
}

// WithTokenRefreshedHook is called after a refreshed token has been persisted
func WithTokenRefreshedHook(fn func(ctx context.Context, token string)) Option {
	return func(c *Client) {
		c.onRefreshed = fn
	}
}

// WithRefreshTimeout bounds each refresh call. Zero or negative keeps the default.
func WithRefreshTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.refreshTimeout = d
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}
