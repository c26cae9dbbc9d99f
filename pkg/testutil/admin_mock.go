// Package testutil provides an in-process board admin API for tests.
package testutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// RefreshCookie is the name of the HttpOnly refresh token cookie
const RefreshCookie = "refreshToken"

// Member mirrors the API's member payload
type Member struct {
	MemberNo       int64  `json:"memberNo"`
	MemberEmail    string `json:"memberEmail"`
	MemberNickname string `json:"memberNickname"`
	MemberTel      string `json:"memberTel,omitempty"`
	EnrollDate     string `json:"enrollDate,omitempty"`
	Authority      int    `json:"authority,omitempty"`
}

// Board mirrors the API's board payload
type Board struct {
	BoardNo        int64  `json:"boardNo"`
	BoardTitle     string `json:"boardTitle"`
	BoardName      string `json:"boardName,omitempty"`
	ReadCount      int    `json:"readCount"`
	LikeCount      int    `json:"likeCount"`
	CommentCount   int    `json:"commentCount"`
	MemberNickname string `json:"memberNickname,omitempty"`
}

// RequestInfo tracks request details
type RequestInfo struct {
	Method  string
	Path    string
	Headers http.Header
	Body    []byte
	Time    time.Time
}

type account struct {
	member   Member
	password string
}

// AdminMockServer provides a configurable mock of the board admin API
type AdminMockServer struct {
	server *httptest.Server
	echo   *echo.Echo
	mu     sync.RWMutex

	secret     []byte
	generation int

	// AccessTTL is the lifetime of issued access tokens
	AccessTTL time.Duration

	accounts      map[string]*account
	refreshTokens map[string]string

	NewMembers       []Member
	Boards           []Board
	WithdrawnMembers []Member
	DeletedBoards    []Board
	AdminAccounts    []Member
	nextMemberNo     int64

	// Error simulation
	ErrorCodes    map[string]int
	ResponseDelay time.Duration

	// refreshBarrier holds refresh calls until that many 401s were served
	refreshBarrier int
	unauthorized   int
	unauthCond     *sync.Cond
	refreshDelay   time.Duration

	refreshCount int

	// Request tracking
	RequestLog []RequestInfo
}

// NewAdminMockServer creates and starts a mock admin API server
func NewAdminMockServer() *AdminMockServer {
	m := &AdminMockServer{
		secret:        []byte(uuid.NewString()),
		AccessTTL:     15 * time.Minute,
		accounts:      make(map[string]*account),
		refreshTokens: make(map[string]string),
		ErrorCodes:    make(map[string]int),
		RequestLog:    make([]RequestInfo, 0),
		nextMemberNo:  100,
	}
	m.unauthCond = sync.NewCond(&m.mu)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(m.logRequest, m.simulate)
	m.routes(e)
	m.echo = e

	m.server = httptest.NewServer(e)
	return m
}

// URL returns the mock server URL
func (m *AdminMockServer) URL() string {
	return m.server.URL
}

// Close shuts down the mock server
func (m *AdminMockServer) Close() {
	m.mu.Lock()
	m.refreshBarrier = 0
	m.unauthCond.Broadcast()
	m.mu.Unlock()
	m.server.Close()
}

func (m *AdminMockServer) routes(e *echo.Echo) {
	e.POST("/auth/login", m.handleLogin)
	e.POST("/auth/refresh", m.handleRefresh)
	e.POST("/auth/logout", m.handleLogout)

	admin := e.Group("/admin", m.requireToken)
	admin.GET("/newMember", m.handleNewMembers)
	admin.GET("/maxReadCount", m.handleMaxBoard(func(b Board) int { return b.ReadCount }))
	admin.GET("/maxLikeCount", m.handleMaxBoard(func(b Board) int { return b.LikeCount }))
	admin.GET("/maxCommentCount", m.handleMaxBoard(func(b Board) int { return b.CommentCount }))
	admin.POST("/createAdminAccount", m.handleCreateAdminAccount)
	admin.GET("/adminAccountList", m.handleAdminAccountList)
	admin.GET("/withdrawnMemberList", m.handleWithdrawnMembers)
	admin.PUT("/restoreMember", m.handleRestoreMember)
	admin.GET("/deleteBoardList", m.handleDeletedBoards)
	admin.PUT("/restoreBoard", m.handleRestoreBoard)
}

// AddAccount registers a member that can log in
func (m *AdminMockServer) AddAccount(member Member, password string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[member.MemberEmail] = &account{member: member, password: password}
}

// SetError configures an error response for a specific path
func (m *AdminMockServer) SetError(path string, statusCode int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ErrorCodes[path] = statusCode
}

// SetBoards replaces the boards statistics are computed from
func (m *AdminMockServer) SetBoards(boards []Board) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Boards = boards
}

// SetResponseDelay configures a delay for all responses
func (m *AdminMockServer) SetResponseDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ResponseDelay = delay
}

// SetRefreshBarrier makes refresh calls wait until n 401 responses have
// been served since the last ExpireAccessTokens.
func (m *AdminMockServer) SetRefreshBarrier(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshBarrier = n
}

// SetRefreshDelay delays refresh responses after the barrier is passed,
// giving clients time to act on the 401s that were already served.
func (m *AdminMockServer) SetRefreshDelay(delay time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshDelay = delay
}

// ExpireAccessTokens invalidates every access token issued so far
func (m *AdminMockServer) ExpireAccessTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generation++
	m.unauthorized = 0
}

// RevokeRefreshTokens invalidates every refresh cookie, so the next refresh fails
func (m *AdminMockServer) RevokeRefreshTokens() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshTokens = make(map[string]string)
}

// IssueAccessToken returns a valid access token for email
func (m *AdminMockServer) IssueAccessToken(email string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.issueLocked(email)
}

// RefreshCount returns how many refresh calls were served
func (m *AdminMockServer) RefreshCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refreshCount
}

// ActiveRefreshTokens returns how many refresh cookies are still valid
func (m *AdminMockServer) ActiveRefreshTokens() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.refreshTokens)
}

// GetRequestLog returns all logged requests
func (m *AdminMockServer) GetRequestLog() []RequestInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]RequestInfo{}, m.RequestLog...)
}

// RequestsTo returns the logged requests for path
func (m *AdminMockServer) RequestsTo(path string) []RequestInfo {
	var out []RequestInfo
	for _, r := range m.GetRequestLog() {
		if r.Path == path {
			out = append(out, r)
		}
	}
	return out
}

// ClearRequestLog clears the request log
func (m *AdminMockServer) ClearRequestLog() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RequestLog = make([]RequestInfo, 0)
}

func (m *AdminMockServer) logRequest(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		info := RequestInfo{
			Method:  req.Method,
			Path:    req.URL.Path,
			Headers: req.Header.Clone(),
			Time:    time.Now(),
		}
		if req.Body != nil {
			body, _ := io.ReadAll(req.Body)
			info.Body = body
			req.Body = io.NopCloser(bytes.NewReader(body))
		}

		m.mu.Lock()
		m.RequestLog = append(m.RequestLog, info)
		m.mu.Unlock()
		return next(c)
	}
}

func (m *AdminMockServer) simulate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.mu.RLock()
		delay := m.ResponseDelay
		statusCode, exists := m.ErrorCodes[c.Request().URL.Path]
		m.mu.RUnlock()

		if delay > 0 {
			time.Sleep(delay)
		}
		if exists {
			return c.JSON(statusCode, map[string]string{
				"message": http.StatusText(statusCode),
			})
		}
		return next(c)
	}
}

type accessClaims struct {
	Generation int `json:"gen"`
	jwt.RegisteredClaims
}

func (m *AdminMockServer) issueLocked(email string) (string, error) {
	now := time.Now()
	claims := accessClaims{
		Generation: m.generation,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   email,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *AdminMockServer) validate(header string) (string, error) {
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return "", errors.New("missing bearer token")
	}
	claims := &accessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	m.mu.RLock()
	generation := m.generation
	m.mu.RUnlock()
	if claims.Generation != generation {
		return "", errors.New("token revoked")
	}
	return claims.Subject, nil
}

func (m *AdminMockServer) requireToken(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		email, err := m.validate(c.Request().Header.Get(echo.HeaderAuthorization))
		if err != nil {
			m.mu.Lock()
			m.unauthorized++
			m.unauthCond.Broadcast()
			m.mu.Unlock()
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"message": "access token expired",
			})
		}
		c.Set("memberEmail", email)
		return next(c)
	}
}

type loginRequest struct {
	MemberEmail string `json:"memberEmail"`
	MemberPw    string `json:"memberPw"`
}

func (m *AdminMockServer) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	acct, ok := m.accounts[req.MemberEmail]
	if !ok || acct.password != req.MemberPw {
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"message": "invalid email or password",
		})
	}

	token, err := m.issueLocked(req.MemberEmail)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	refresh := uuid.NewString()
	m.refreshTokens[refresh] = req.MemberEmail
	c.SetCookie(&http.Cookie{
		Name:     RefreshCookie,
		Value:    refresh,
		Path:     "/",
		HttpOnly: true,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})

	return c.JSON(http.StatusOK, map[string]any{
		"accessToken": token,
		"member":      acct.member,
	})
}

func (m *AdminMockServer) handleRefresh(c echo.Context) error {
	if err := m.waitForBarrier(c.Request().Context()); err != nil {
		return err
	}
	m.mu.RLock()
	delay := m.refreshDelay
	m.mu.RUnlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshCount++

	cookie, err := c.Cookie(RefreshCookie)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "refresh token missing"})
	}
	email, ok := m.refreshTokens[cookie.Value]
	if !ok {
		return c.JSON(http.StatusUnauthorized, map[string]string{"message": "refresh token invalid"})
	}

	token, err := m.issueLocked(email)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]string{"accessToken": token})
}

func (m *AdminMockServer) waitForBarrier(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		m.mu.Lock()
		m.unauthCond.Broadcast()
		m.mu.Unlock()
	})
	defer stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	for m.refreshBarrier > 0 && m.unauthorized < m.refreshBarrier {
		if ctx.Err() != nil {
			return echo.NewHTTPError(http.StatusServiceUnavailable, "refresh abandoned")
		}
		m.unauthCond.Wait()
	}
	return nil
}

func (m *AdminMockServer) handleLogout(c echo.Context) error {
	if cookie, err := c.Cookie(RefreshCookie); err == nil {
		m.mu.Lock()
		delete(m.refreshTokens, cookie.Value)
		m.mu.Unlock()
	}
	c.SetCookie(&http.Cookie{Name: RefreshCookie, Value: "", Path: "/", MaxAge: -1})
	return c.NoContent(http.StatusOK)
}

func (m *AdminMockServer) handleNewMembers(c echo.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return c.JSON(http.StatusOK, copyOf(m.NewMembers))
}

func (m *AdminMockServer) handleMaxBoard(metric func(Board) int) echo.HandlerFunc {
	return func(c echo.Context) error {
		m.mu.RLock()
		defer m.mu.RUnlock()

		if len(m.Boards) == 0 {
			return c.NoContent(http.StatusNoContent)
		}
		best := m.Boards[0]
		for _, b := range m.Boards[1:] {
			if metric(b) > metric(best) {
				best = b
			}
		}
		return c.JSON(http.StatusOK, best)
	}
}

type createAccountRequest struct {
	MemberEmail    string `json:"memberEmail"`
	MemberNickname string `json:"memberNickname"`
	MemberTel      string `json:"memberTel"`
}

func (m *AdminMockServer) handleCreateAdminAccount(c echo.Context) error {
	var req createAccountRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[req.MemberEmail]; exists {
		return c.NoContent(http.StatusNoContent)
	}
	m.nextMemberNo++
	member := Member{
		MemberNo:       m.nextMemberNo,
		MemberEmail:    req.MemberEmail,
		MemberNickname: req.MemberNickname,
		MemberTel:      req.MemberTel,
		EnrollDate:     time.Now().Format("2006-01-02"),
		Authority:      2,
	}
	password := strings.ReplaceAll(uuid.NewString(), "-", "")[:10]
	m.accounts[req.MemberEmail] = &account{member: member, password: password}
	m.AdminAccounts = append(m.AdminAccounts, member)
	return c.String(http.StatusCreated, password)
}

func (m *AdminMockServer) handleAdminAccountList(c echo.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return c.JSON(http.StatusOK, copyOf(m.AdminAccounts))
}

func (m *AdminMockServer) handleWithdrawnMembers(c echo.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return c.JSON(http.StatusOK, copyOf(m.WithdrawnMembers))
}

func (m *AdminMockServer) handleRestoreMember(c echo.Context) error {
	var req struct {
		MemberNo int64 `json:"memberNo"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, member := range m.WithdrawnMembers {
		if member.MemberNo == req.MemberNo {
			m.WithdrawnMembers = append(m.WithdrawnMembers[:i], m.WithdrawnMembers[i+1:]...)
			return c.String(http.StatusOK, fmt.Sprintf("member %d restored", req.MemberNo))
		}
	}
	return c.String(http.StatusBadRequest, fmt.Sprintf("member %d is not withdrawn", req.MemberNo))
}

func (m *AdminMockServer) handleDeletedBoards(c echo.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	boards := copyOf(m.DeletedBoards)
	sort.Slice(boards, func(i, j int) bool { return boards[i].BoardNo < boards[j].BoardNo })
	return c.JSON(http.StatusOK, boards)
}

func (m *AdminMockServer) handleRestoreBoard(c echo.Context) error {
	var req struct {
		BoardNo int64 `json:"boardNo"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, board := range m.DeletedBoards {
		if board.BoardNo == req.BoardNo {
			m.DeletedBoards = append(m.DeletedBoards[:i], m.DeletedBoards[i+1:]...)
			m.Boards = append(m.Boards, board)
			return c.String(http.StatusOK, fmt.Sprintf("board %d restored", req.BoardNo))
		}
	}
	return c.String(http.StatusBadRequest, fmt.Sprintf("board %d is not deleted", req.BoardNo))
}

func copyOf[T any](items []T) []T {
	out := make([]T, len(items))
	copy(out, items)
	return out
}

// SetupDashboard seeds an admin account and some statistics data
func (m *AdminMockServer) SetupDashboard(email, password string) {
	m.AddAccount(Member{
		MemberNo:       1,
		MemberEmail:    email,
		MemberNickname: "admin",
		Authority:      2,
	}, password)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.NewMembers = []Member{
		{MemberNo: 11, MemberEmail: "new1@example.com", MemberNickname: "new1", EnrollDate: "2024-05-01"},
		{MemberNo: 12, MemberEmail: "new2@example.com", MemberNickname: "new2", EnrollDate: "2024-05-02"},
	}
	m.Boards = []Board{
		{BoardNo: 1, BoardTitle: "most read", BoardName: "free", ReadCount: 900, LikeCount: 3, CommentCount: 1, MemberNickname: "alice"},
		{BoardNo: 2, BoardTitle: "most liked", BoardName: "free", ReadCount: 10, LikeCount: 80, CommentCount: 2, MemberNickname: "bob"},
		{BoardNo: 3, BoardTitle: "most discussed", BoardName: "qna", ReadCount: 20, LikeCount: 5, CommentCount: 45, MemberNickname: "carol"},
	}
	m.WithdrawnMembers = []Member{
		{MemberNo: 21, MemberEmail: "gone@example.com", MemberNickname: "gone"},
	}
	m.DeletedBoards = []Board{
		{BoardNo: 31, BoardTitle: "deleted post", BoardName: "free", MemberNickname: "dave"},
	}
}
