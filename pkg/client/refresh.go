package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/boardproject/boardadmin/pkg/utils"
)

// RefreshPath is the token renewal endpoint relative to the base URL
const RefreshPath = "/auth/refresh"

// Refresher obtains a new access token. An empty token with a nil error is
// treated as a failed refresh by the client.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to Refresher
type RefresherFunc func(ctx context.Context) (string, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// HTTPRefresher calls the refresh endpoint with the session cookie only
type HTTPRefresher struct {
	url        string
	httpClient *http.Client
}

// NewHTTPRefresher creates a refresher posting to url
func NewHTTPRefresher(url string, httpClient *http.Client) *HTTPRefresher {
	return &HTTPRefresher{url: url, httpClient: httpClient}
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Refresh performs POST /auth/refresh without a body or Authorization header
func (r *HTTPRefresher) Refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("failed to create refresh request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send refresh request: %w", err)
	}

	body, err := utils.ReadAndClose(resp)
	if err != nil {
		return "", fmt.Errorf("failed to read refresh response: %w", err)
	}
	if err := utils.CheckStatus(resp.StatusCode, body, http.MethodPost, r.url); err != nil {
		return "", err
	}

	var result refreshResponse
	if len(body) > 0 {
		if err := (&Response{Body: body}).Decode(&result); err != nil {
			return "", err
		}
	}
	return result.AccessToken, nil
}
