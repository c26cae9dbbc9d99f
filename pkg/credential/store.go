// Package credential persists the admin session outside process memory:
// the bearer access token, the cached member profile and the refresh
// session cookie. It plays the role localStorage plays for a browser
// dashboard.
package credential

import (
	"context"
	"errors"
)

// Well-known keys
const (
	// KeyAccessToken holds the current bearer access token
	KeyAccessToken = "accessToken"
	// KeyUserData holds the logged in member as JSON
	KeyUserData = "userData"
	// KeySessionCookies holds the cookies that identify the refresh session
	KeySessionCookies = "sessionCookies"
)

// ErrNotFound is returned by Get when the key has no value
var ErrNotFound = errors.New("credential not found")

// Store is a small persistent key-value surface
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set stores value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Delete removes keys; missing keys are not an error
	Delete(ctx context.Context, keys ...string) error

	// Close cleans up any resources
	Close() error
}

// Lookup returns the value for key, reporting absence as ok=false
// instead of an error.
func Lookup(ctx context.Context, s Store, key string) (value string, ok bool, err error) {
	value, err = s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, value != "", nil
}
