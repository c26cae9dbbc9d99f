package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/boardproject/boardadmin/pkg/utils"
)

var (
	// ErrUnauthorized matches a 401 that survived its single replay
	ErrUnauthorized = errors.New("unauthorized")

	// ErrSessionExpired matches every request failed by an unsuccessful refresh
	ErrSessionExpired = errors.New("session expired")

	// ErrEmptyToken means the refresh endpoint answered without an access token
	ErrEmptyToken = errors.New("refresh returned no access token")

	errRefreshAborted = errors.New("refresh aborted")
)

// StatusError carries an authorization failure surfaced to the caller
type StatusError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func newStatusError(resp *Response) *StatusError {
	e := &StatusError{
		StatusCode: resp.StatusCode,
		Message:    utils.ErrorMessage(resp.Body),
	}
	if resp.Request != nil {
		e.Method = resp.Request.Method
		e.Path = resp.Request.Path
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 status errors
func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// RefreshError is delivered to every request that depended on a failed refresh
type RefreshError struct {
	Cause error
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("session expired: token refresh failed: %v", e.Cause)
}

func (e *RefreshError) Unwrap() error {
	return e.Cause
}

// Is lets errors.Is(err, ErrSessionExpired) match refresh failures
func (e *RefreshError) Is(target error) bool {
	return target == ErrSessionExpired
}
