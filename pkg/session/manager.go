// Package session manages the admin login lifecycle: signing in, keeping
// the member profile, and logging out when the session can no longer be
// refreshed.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/boardproject/boardadmin/pkg/credential"
	"github.com/boardproject/boardadmin/pkg/logger"
	"github.com/boardproject/boardadmin/pkg/utils"
)

const (
	LoginPath  = "/auth/login"
	LogoutPath = "/auth/logout"
)

// Logout reasons recorded in the session journal
const (
	ReasonUser    = "user"
	ReasonExpired = "session expired"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrNotLoggedIn        = errors.New("not logged in")
)

// Member is the signed-in member profile returned by login
type Member struct {
	MemberNo       int64  `json:"memberNo"`
	MemberEmail    string `json:"memberEmail"`
	MemberNickname string `json:"memberNickname"`
	MemberTel      string `json:"memberTel,omitempty"`
	EnrollDate     string `json:"enrollDate,omitempty"`
	Authority      int    `json:"authority,omitempty"`
}

type loginRequest struct {
	MemberEmail string `json:"memberEmail"`
	MemberPw    string `json:"memberPw"`
}

type loginResponse struct {
	AccessToken string  `json:"accessToken"`
	Member      *Member `json:"member"`
}

// Manager owns login, logout and the current user.
// Login and logout use the plain HTTP client so they never trigger a token refresh.
type Manager struct {
	baseURL    string
	httpClient *http.Client
	store      credential.Store
	jar        *PersistentJar
	journal    *logger.Journal
	logger     *slog.Logger

	mu   sync.RWMutex
	user *Member
}

// Option configures a Manager
type Option func(*Manager)

// WithJar lets logout clear the persisted refresh cookie
func WithJar(jar *PersistentJar) Option {
	return func(m *Manager) {
		m.jar = jar
	}
}

// WithJournal records logins, refreshes and logouts
func WithJournal(journal *logger.Journal) Option {
	return func(m *Manager) {
		m.journal = journal
	}
}

// WithLogger sets the structured logger
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a session manager for baseURL
func NewManager(baseURL string, httpClient *http.Client, store credential.Store, opts ...Option) *Manager {
	m := &Manager{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		store:      store,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.httpClient == nil {
		m.httpClient = utils.NewDefaultHTTPClient()
	}
	return m
}

// Login signs in and persists the access token and member profile
func (m *Manager) Login(ctx context.Context, email, password string) (*Member, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidCredentials)
	}

	body, err := json.Marshal(loginRequest{MemberEmail: email, MemberPw: password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal login request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+LoginPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send login request: %w", err)
	}
	data, err := utils.ReadAndClose(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, ErrInvalidCredentials
	}
	if err := utils.CheckStatus(resp.StatusCode, data, http.MethodPost, LoginPath); err != nil {
		return nil, err
	}

	var result loginResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	if result.AccessToken == "" || result.Member == nil {
		return nil, fmt.Errorf("login response is missing the access token or member")
	}

	profile, err := json.Marshal(result.Member)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal member: %w", err)
	}
	if err := m.store.Set(ctx, credential.KeyAccessToken, result.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to store access token: %w", err)
	}
	if err := m.store.Set(ctx, credential.KeyUserData, string(profile)); err != nil {
		return nil, fmt.Errorf("failed to store member: %w", err)
	}

	m.mu.Lock()
	m.user = result.Member
	m.mu.Unlock()

	if m.journal != nil {
		if err := m.journal.LogLogin(email); err != nil {
			m.logger.Warn("[AUTH] failed to journal login", "error", err)
		}
	}
	m.logger.Info("[AUTH] logged in", "member", result.Member.MemberEmail)
	return result.Member, nil
}

// Logout ends the session on the server (best effort) and always clears
// local state. Only local cleanup failures are returned.
func (m *Manager) Logout(ctx context.Context) error {
	return m.logout(ctx, ReasonUser)
}

// SessionExpired logs out after a failed token refresh
func (m *Manager) SessionExpired(ctx context.Context, cause error) {
	m.logger.Warn("[AUTH] session expired, logging out", "cause", cause)
	if err := m.logout(ctx, ReasonExpired); err != nil {
		m.logger.Warn("[AUTH] logout after expiry failed", "error", err)
	}
}

// TokenRefreshed records a successful access token refresh
func (m *Manager) TokenRefreshed(_ context.Context, _ string) {
	if m.journal == nil {
		return
	}
	if err := m.journal.LogRefresh(); err != nil {
		m.logger.Warn("[AUTH] failed to journal refresh", "error", err)
	}
}

func (m *Manager) logout(ctx context.Context, reason string) error {
	if err := m.remoteLogout(ctx); err != nil {
		m.logger.Warn("[AUTH] server logout failed", "error", err)
	}

	var errs []error
	if err := m.store.Delete(ctx, credential.KeyAccessToken, credential.KeyUserData, credential.KeySessionCookies); err != nil {
		errs = append(errs, fmt.Errorf("failed to clear credentials: %w", err))
	}
	if m.jar != nil {
		if err := m.jar.Clear(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	m.mu.Lock()
	m.user = nil
	m.mu.Unlock()

	if m.journal != nil {
		if err := m.journal.LogLogout(reason); err != nil {
			m.logger.Warn("[AUTH] failed to journal logout", "error", err)
		}
	}
	m.logger.Info("[AUTH] logged out", "reason", reason)
	return errors.Join(errs...)
}

func (m *Manager) remoteLogout(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+LogoutPath, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create logout request: %w", err)
	}
	if token, ok, _ := credential.Lookup(ctx, m.store, credential.KeyAccessToken); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send logout request: %w", err)
	}
	data, err := utils.ReadAndClose(resp)
	if err != nil {
		return err
	}
	return utils.CheckStatus(resp.StatusCode, data, http.MethodPost, LogoutPath)
}

// CurrentUser returns the signed-in member, restoring it from the store
// after a restart.
func (m *Manager) CurrentUser(ctx context.Context) (*Member, error) {
	m.mu.RLock()
	user := m.user
	m.mu.RUnlock()
	if user != nil {
		return user, nil
	}

	data, ok, err := credential.Lookup(ctx, m.store, credential.KeyUserData)
	if err != nil {
		return nil, fmt.Errorf("failed to read member: %w", err)
	}
	if !ok {
		return nil, ErrNotLoggedIn
	}

	var member Member
	if err := json.Unmarshal([]byte(data), &member); err != nil {
		return nil, fmt.Errorf("failed to decode member: %w", err)
	}

	m.mu.Lock()
	m.user = &member
	m.mu.Unlock()
	return &member, nil
}
