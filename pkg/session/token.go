package session

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/boardproject/boardadmin/pkg/credential"
)

// TokenInfo describes the stored access token. The signature is not checked;
// the API is the only party that can do that.
type TokenInfo struct {
	Subject   string
	IssuedAt  time.Time
	ExpiresAt time.Time
	Expired   bool
}

// Remaining returns how long the token stays valid, zero once expired
func (t *TokenInfo) Remaining(now time.Time) time.Duration {
	if t.ExpiresAt.IsZero() || !now.Before(t.ExpiresAt) {
		return 0
	}
	return t.ExpiresAt.Sub(now)
}

// ParseToken reads the registered claims of an access token
func ParseToken(raw string, now time.Time) (*TokenInfo, error) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, fmt.Errorf("failed to parse access token: %w", err)
	}

	info := &TokenInfo{Subject: claims.Subject}
	if claims.IssuedAt != nil {
		info.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		info.ExpiresAt = claims.ExpiresAt.Time
		info.Expired = !now.Before(info.ExpiresAt)
	}
	return info, nil
}

// TokenInfo inspects the stored access token
func (m *Manager) TokenInfo(ctx context.Context) (*TokenInfo, error) {
	token, ok, err := credential.Lookup(ctx, m.store, credential.KeyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to read access token: %w", err)
	}
	if !ok {
		return nil, ErrNotLoggedIn
	}
	return ParseToken(token, time.Now())
}
