package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newJarClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func login(t *testing.T, c *http.Client, m *AdminMockServer) string {
	t.Helper()
	resp, err := c.Post(m.URL()+"/auth/login", "application/json",
		strings.NewReader(`{"memberEmail":"admin@example.com","memberPw":"pw"}`))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		AccessToken string `json:"accessToken"`
		Member      Member `json:"member"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "admin@example.com", body.Member.MemberEmail)
	return body.AccessToken
}

func get(t *testing.T, c *http.Client, url, token string) int {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, url, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := c.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp.StatusCode
}

func TestAdminMockTokenLifecycle(t *testing.T) {
	m := NewAdminMockServer()
	defer m.Close()
	m.SetupDashboard("admin@example.com", "pw")
	c := newJarClient(t)

	assert.Equal(t, http.StatusUnauthorized, get(t, c, m.URL()+"/admin/newMember", ""))

	token := login(t, c, m)
	assert.Equal(t, http.StatusOK, get(t, c, m.URL()+"/admin/newMember", token))

	m.ExpireAccessTokens()
	assert.Equal(t, http.StatusUnauthorized, get(t, c, m.URL()+"/admin/newMember", token))

	resp, err := c.Post(m.URL()+"/auth/refresh", "", nil)
	require.NoError(t, err)
	var refreshed struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&refreshed))
	_ = resp.Body.Close()
	require.NotEmpty(t, refreshed.AccessToken)
	assert.Equal(t, 1, m.RefreshCount())
	assert.Equal(t, http.StatusOK, get(t, c, m.URL()+"/admin/newMember", refreshed.AccessToken))

	m.RevokeRefreshTokens()
	resp, err = c.Post(m.URL()+"/auth/refresh", "", nil)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAdminMockErrorInjection(t *testing.T) {
	m := NewAdminMockServer()
	defer m.Close()
	m.SetupDashboard("admin@example.com", "pw")
	c := newJarClient(t)
	token := login(t, c, m)

	m.SetError("/admin/maxReadCount", http.StatusBadGateway)
	assert.Equal(t, http.StatusBadGateway, get(t, c, m.URL()+"/admin/maxReadCount", token))
	assert.Equal(t, http.StatusOK, get(t, c, m.URL()+"/admin/maxLikeCount", token))

	log := m.RequestsTo("/admin/maxReadCount")
	require.Len(t, log, 1)
	assert.Equal(t, "Bearer "+token, log[0].Headers.Get("Authorization"))
}

func TestAdminMockRejectsBadLogin(t *testing.T) {
	m := NewAdminMockServer()
	defer m.Close()
	m.SetupDashboard("admin@example.com", "pw")

	resp, err := http.Post(m.URL()+"/auth/login", "application/json",
		strings.NewReader(`{"memberEmail":"admin@example.com","memberPw":"wrong"}`))
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, m.ActiveRefreshTokens())
}
