package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPClientConfig holds configuration for HTTP client creation
type HTTPClientConfig struct {
	Timeout time.Duration
	// Jar carries the refresh session cookie between requests
	Jar http.CookieJar
}

// DefaultHTTPClientConfig returns default HTTP client configuration
func DefaultHTTPClientConfig() HTTPClientConfig {
	return HTTPClientConfig{
		Timeout: 30 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client with the given configuration
func NewHTTPClient(config HTTPClientConfig) *http.Client {
	return &http.Client{
		Timeout: config.Timeout,
		Jar:     config.Jar,
	}
}

// NewDefaultHTTPClient creates a new HTTP client with default configuration
func NewDefaultHTTPClient() *http.Client {
	return NewHTTPClient(DefaultHTTPClientConfig())
}

// HTTPError represents a non-2xx answer from the admin API
type HTTPError struct {
	StatusCode int
	Message    string
	Method     string
	URL        string
}

func (e HTTPError) Error() string {
	if e.Method == "" {
		return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
	}
	return fmt.Sprintf("HTTP %d: %s (%s %s)", e.StatusCode, e.Message, e.Method, e.URL)
}

// CheckStatus returns an HTTPError when statusCode is outside the 2xx range.
// The message is taken from the response body when the server sent one.
func CheckStatus(statusCode int, body []byte, method, url string) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := ErrorMessage(body)
	if msg == "" {
		msg = http.StatusText(statusCode)
	}
	return HTTPError{
		StatusCode: statusCode,
		Message:    msg,
		Method:     method,
		URL:        url,
	}
}

// ErrorMessage extracts a human readable message from an error body.
// The API answers either with plain text or with {"message": "..."}.
func ErrorMessage(body []byte) string {
	text := strings.TrimSpace(string(body))
	if text == "" {
		return ""
	}
	if strings.HasPrefix(text, "{") {
		var payload struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		if err := json.Unmarshal(body, &payload); err == nil {
			if payload.Message != "" {
				return payload.Message
			}
			if payload.Error != "" {
				return payload.Error
			}
		}
	}
	return text
}

// ReadAndClose drains and closes the response body
func ReadAndClose(resp *http.Response) ([]byte, error) {
	defer CloseResponse(resp)
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, nil
}

// CloseResponse closes the HTTP response body, logging close failures
func CloseResponse(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("[HTTP] failed to close response body", "error", err)
		}
	}
}
