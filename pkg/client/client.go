// Package client is the auth-aware HTTP client for the board admin API.
//
// Every request carries the stored bearer token. A 401 puts the client into a
// refreshing state: the first request to see it calls the refresh endpoint
// while the rest wait in a FIFO queue, and each is replayed exactly once with
// the new token. If the refresh fails every waiting request fails with
// ErrSessionExpired and the session expiry handler is run.
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/boardproject/boardadmin/pkg/credential"
	"github.com/boardproject/boardadmin/pkg/utils"
)

// Client represents the board admin API client
type Client struct {
	baseURL        string
	httpClient     *http.Client
	store          credential.Store
	refresher      Refresher
	onExpired      SessionExpiredHandler
	onRefreshed    func(ctx context.Context, token string)
	refreshTimeout time.Duration
	logger         *slog.Logger

	coord coordinator
}

// NewClient creates a new client for baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(baseURL, "/"),
		refreshTimeout: DefaultRefreshTimeout,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = utils.NewDefaultHTTPClient()
	}
	if c.store == nil {
		c.store = credential.NewMemoryStore()
	}
	if c.refresher == nil {
		c.refresher = NewHTTPRefresher(c.baseURL+RefreshPath, c.httpClient)
	}
	return c
}

// BaseURL returns the API base URL without a trailing slash
func (c *Client) BaseURL() string {
	return c.baseURL
}

// HTTPClient returns the underlying HTTP client, shared with login and logout
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Refreshes reports how many refresh calls have been started
func (c *Client) Refreshes() uint64 {
	return c.coord.refreshCount()
}

// Get sends a GET request
func (c *Client) Get(ctx context.Context, path string) (*Response, error) {
	return c.Send(ctx, NewRequest(http.MethodGet, path, nil))
}

// Post sends a POST request with v encoded as JSON (nil for no body)
func (c *Client) Post(ctx context.Context, path string, v any) (*Response, error) {
	req, err := NewJSONRequest(http.MethodPost, path, v)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, req)
}

// Put sends a PUT request with v encoded as JSON (nil for no body)
func (c *Client) Put(ctx context.Context, path string, v any) (*Response, error) {
	req, err := NewJSONRequest(http.MethodPut, path, v)
	if err != nil {
		return nil, err
	}
	return c.Send(ctx, req)
}

// Send performs req with the current access token. Responses other than 401
// are returned as-is with a nil error; transport errors are returned wrapped.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	token, _, err := credential.Lookup(ctx, c.store, credential.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}

	resp, err := c.do(ctx, req, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}
	return c.handleUnauthorized(ctx, req, resp)
}

func (c *Client) handleUnauthorized(ctx context.Context, req *Request, resp *Response) (*Response, error) {
	unauthorized := newStatusError(resp)
	if req.Retried() {
		c.logger.Debug("[AUTH] replay rejected, giving up", "method", req.Method, "path", req.Path)
		return resp, unauthorized
	}

	replay := req.replay()
	leader, wait := c.coord.acquireOrQueue()
	if !leader {
		c.logger.Debug("[AUTH] refresh in flight, queueing request", "method", req.Method, "path", req.Path)
		select {
		case res := <-wait:
			if res.err != nil {
				return nil, res.err
			}
			c.logger.Debug("[AUTH] replaying queued request", "method", req.Method, "path", req.Path, "position", res.position)
			return c.sendReplay(ctx, replay, res.token)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	token, err := c.refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", err, unauthorized)
	}
	return c.sendReplay(ctx, replay, token)
}

func (c *Client) sendReplay(ctx context.Context, replay *Request, token string) (*Response, error) {
	resp, err := c.do(ctx, replay, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return c.handleUnauthorized(ctx, replay, resp)
	}
	return resp, nil
}

// refresh runs the single in-flight refresh and settles every waiter. The
// coordinator is back to idle when it returns, including on panic.
func (c *Client) refresh(ctx context.Context) (token string, err error) {
	settled := false
	defer func() {
		if !settled {
			c.coord.settle(refreshResult{err: &RefreshError{Cause: errRefreshAborted}})
		}
	}()

	// one caller giving up must not fail everyone queued behind it
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()

	started := time.Now()
	c.logger.Info("[AUTH] access token rejected, refreshing")

	token, err = c.refresher.Refresh(rctx)
	if err == nil && token == "" {
		err = ErrEmptyToken
	}
	if err != nil {
		failure := &RefreshError{Cause: err}
		n := c.coord.settle(refreshResult{err: failure})
		settled = true
		c.logger.Warn("[AUTH] token refresh failed", "error", err, "rejected", n, "elapsed", time.Since(started))
		c.expireSession(ctx, failure)
		return "", failure
	}

	if err := c.store.Set(rctx, credential.KeyAccessToken, token); err != nil {
		c.logger.Error("[AUTH] failed to persist refreshed token", "error", err)
	}
	n := c.coord.settle(refreshResult{token: token})
	settled = true
	c.logger.Info("[AUTH] access token refreshed", "released", n, "elapsed", time.Since(started))

	if c.onRefreshed != nil {
		c.onRefreshed(rctx, token)
	}
	return token, nil
}

func (c *Client) expireSession(ctx context.Context, cause error) {
	if c.onExpired == nil {
		if err := c.store.Delete(context.WithoutCancel(ctx), credential.KeyAccessToken); err != nil {
			c.logger.Warn("[AUTH] failed to clear access token", "error", err)
		}
		return
	}
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("[AUTH] session expiry handler panicked", "panic", r)
		}
	}()
	lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.refreshTimeout)
	defer cancel()
	c.onExpired.SessionExpired(lctx, cause)
}

func (c *Client) do(ctx context.Context, req *Request, token string) (*Response, error) {
	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("Accept") == "" {
		httpReq.Header.Set("Accept", "application/json")
	}
	if httpReq.Header.Get("X-Request-ID") == "" {
		httpReq.Header.Set("X-Request-ID", uuid.NewString())
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	data, err := utils.ReadAndClose(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Request:    req,
	}, nil
}
