package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"

	"github.com/boardproject/boardadmin/pkg/credential"
)

// PersistentJar is an http.CookieJar that mirrors the cookies of the API
// origin into the credential store, so the refresh cookie outlives the process.
type PersistentJar struct {
	mu     sync.Mutex
	jar    *cookiejar.Jar
	origin *url.URL
	store  credential.Store
}

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NewPersistentJar creates a jar for baseURL and restores saved cookies
func NewPersistentJar(ctx context.Context, baseURL string, store credential.Store) (*PersistentJar, error) {
	origin, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	jar, err := newCookieJar()
	if err != nil {
		return nil, err
	}
	j := &PersistentJar{jar: jar, origin: origin, store: store}
	if err := j.load(ctx); err != nil {
		return nil, err
	}
	return j, nil
}

func newCookieJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// SetCookies implements http.CookieJar
func (j *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.jar.SetCookies(u, cookies)
	if u.Host != j.origin.Host {
		return
	}
	if err := j.saveLocked(context.Background()); err != nil {
		slog.Warn("[STORE] failed to persist session cookies", "error", err)
	}
}

// Cookies implements http.CookieJar
func (j *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.jar.Cookies(u)
}

// Clear drops every cookie and removes the persisted copy
func (j *PersistentJar) Clear(ctx context.Context) error {
	jar, err := newCookieJar()
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	j.jar = jar
	if err := j.store.Delete(ctx, credential.KeySessionCookies); err != nil {
		return fmt.Errorf("failed to delete session cookies: %w", err)
	}
	return nil
}

func (j *PersistentJar) saveLocked(ctx context.Context) error {
	cookies := j.jar.Cookies(j.origin)
	if len(cookies) == 0 {
		return j.store.Delete(ctx, credential.KeySessionCookies)
	}

	stored := make([]storedCookie, 0, len(cookies))
	for _, c := range cookies {
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	return j.store.Set(ctx, credential.KeySessionCookies, string(data))
}

func (j *PersistentJar) load(ctx context.Context) error {
	data, err := j.store.Get(ctx, credential.KeySessionCookies)
	if errors.Is(err, credential.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read session cookies: %w", err)
	}

	var stored []storedCookie
	if err := json.Unmarshal([]byte(data), &stored); err != nil {
		slog.Warn("[STORE] discarding unreadable session cookies", "error", err)
		return nil
	}
	cookies := make([]*http.Cookie, 0, len(stored))
	for _, c := range stored {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	j.jar.SetCookies(j.origin, cookies)
	return nil
}
