package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardproject/boardadmin/pkg/credential"
)

type recordedRequest struct {
	Method        string
	Path          string
	Authorization string
	Body          string
}

// tokenServer accepts one valid access token and rotates it on refresh
type tokenServer struct {
	*httptest.Server

	mu        sync.Mutex
	valid     string
	next      string
	requests  []recordedRequest
	refreshes int32
	// release gates the refresh handler when non-nil
	release chan struct{}
	// refreshStatus forces the refresh endpoint to fail when non-zero
	refreshStatus int
	// alwaysReject makes every resource request return 401
	alwaysReject bool
}

func newTokenServer(t *testing.T, valid, next string) *tokenServer {
	t.Helper()
	ts := &tokenServer{valid: valid, next: next}
	ts.Server = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.Close)
	return ts
}

func (s *tokenServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == RefreshPath {
		atomic.AddInt32(&s.refreshes, 1)
		s.mu.Lock()
		release := s.release
		s.mu.Unlock()
		if release != nil {
			<-release
		}
		s.mu.Lock()
		status := s.refreshStatus
		next := s.next
		s.mu.Unlock()

		if r.Header.Get("Authorization") != "" {
			http.Error(w, "refresh must not carry a bearer token", http.StatusBadRequest)
			return
		}
		if status != 0 {
			http.Error(w, "refresh token expired", status)
			return
		}
		s.mu.Lock()
		s.valid = next
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"accessToken": next})
		return
	}

	body, _ := io.ReadAll(r.Body)

	s.mu.Lock()
	s.requests = append(s.requests, recordedRequest{
		Method:        r.Method,
		Path:          r.URL.Path,
		Authorization: r.Header.Get("Authorization"),
		Body:          string(body),
	})
	valid := s.valid
	reject := s.alwaysReject
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/missing":
		http.Error(w, "not found", http.StatusNotFound)
	case r.URL.Path == "/broken":
		http.Error(w, "boom", http.StatusInternalServerError)
	case reject || r.Header.Get("Authorization") != "Bearer "+valid:
		http.Error(w, `{"message":"token expired"}`, http.StatusUnauthorized)
	default:
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"path": r.URL.Path})
	}
}

// update changes the server's behaviour under its lock
func (s *tokenServer) update(fn func(s *tokenServer)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
}

func (s *tokenServer) recorded() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

func (s *tokenServer) refreshCount() int {
	return int(atomic.LoadInt32(&s.refreshes))
}

func newStoreWithToken(t *testing.T, token string) credential.Store {
	t.Helper()
	store := credential.NewMemoryStore()
	if token != "" {
		require.NoError(t, store.Set(context.Background(), credential.KeyAccessToken, token))
	}
	return store
}

func storedToken(t *testing.T, store credential.Store) string {
	t.Helper()
	token, _, err := credential.Lookup(context.Background(), store, credential.KeyAccessToken)
	require.NoError(t, err)
	return token
}

func TestSendAttachesBearerToken(t *testing.T) {
	ts := newTokenServer(t, "T1", "T2")
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")))

	resp, err := c.Get(context.Background(), "/admin/newMember")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	reqs := ts.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Bearer T1", reqs[0].Authorization)
	assert.Equal(t, 0, ts.refreshCount())
}

func TestSendWithoutCredential(t *testing.T) {
	ts := newTokenServer(t, "T1", "T2")
	ts.update(func(s *tokenServer) { s.refreshStatus = http.StatusUnauthorized })
	c := NewClient(ts.URL)

	_, err := c.Get(context.Background(), "/admin/newMember")
	require.Error(t, err)

	reqs := ts.recorded()
	require.NotEmpty(t, reqs)
	assert.Empty(t, reqs[0].Authorization)
}

func TestSendPassesThroughNon401(t *testing.T) {
	ts := newTokenServer(t, "T1", "T2")
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")))

	tests := []struct {
		path   string
		status int
	}{
		{"/missing", http.StatusNotFound},
		{"/broken", http.StatusInternalServerError},
		{"/ok", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := c.Get(context.Background(), tt.path)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
	assert.Equal(t, 0, ts.refreshCount())
}

func TestSendTransportError(t *testing.T) {
	ts := newTokenServer(t, "T1", "T2")
	url := ts.URL
	ts.Close()

	c := NewClient(url, WithStore(newStoreWithToken(t, "T1")))
	_, err := c.Get(context.Background(), "/admin/newMember")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send request")
	assert.False(t, errors.Is(err, ErrSessionExpired))
}

func TestRefreshAndReplay(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	store := newStoreWithToken(t, "T1")

	var refreshed []string
	c := NewClient(ts.URL, WithStore(store), WithTokenRefreshedHook(func(_ context.Context, token string) {
		refreshed = append(refreshed, token)
	}))

	resp, err := c.Post(context.Background(), "/admin/restoreMember", map[string]int{"memberNo": 7})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, resp.Request.Attempt())

	reqs := ts.recorded()
	require.Len(t, reqs, 2)
	assert.Equal(t, "Bearer T1", reqs[0].Authorization)
	assert.Equal(t, "Bearer T2", reqs[1].Authorization)
	assert.Equal(t, reqs[0].Method, reqs[1].Method)
	assert.Equal(t, reqs[0].Path, reqs[1].Path)
	assert.JSONEq(t, `{"memberNo":7}`, reqs[1].Body)

	assert.Equal(t, "T2", storedToken(t, store))
	assert.Equal(t, []string{"T2"}, refreshed)
	assert.False(t, c.coord.refreshing())
}

func TestReplayIsAttemptedOnce(t *testing.T) {
	ts := newTokenServer(t, "T1", "T2")
	ts.update(func(s *tokenServer) { s.alwaysReject = true })
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")))

	resp, err := c.Get(context.Background(), "/admin/maxReadCount")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthorized))
	assert.False(t, errors.Is(err, ErrSessionExpired))

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	assert.Equal(t, "token expired", statusErr.Message)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	assert.Equal(t, 1, ts.refreshCount())
	assert.Len(t, ts.recorded(), 2)
	assert.False(t, c.coord.refreshing())
}

func TestConcurrentUnauthorizedSingleFlight(t *testing.T) {
	const n = 8

	ts := newTokenServer(t, "T1", "T2")
	release := make(chan struct{})
	ts.update(func(s *tokenServer) {
		s.valid = "T2"
		s.release = release
	})
	store := newStoreWithToken(t, "T1")
	c := NewClient(ts.URL, WithStore(store))

	var wg sync.WaitGroup
	results := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := c.Get(context.Background(), "/admin/newMember")
			if err == nil && resp.StatusCode != http.StatusOK {
				err = errors.New(http.StatusText(resp.StatusCode))
			}
			results <- err
		}()
	}

	require.Eventually(t, func() bool {
		return c.coord.queued() == n-1
	}, 5*time.Second, 5*time.Millisecond)
	assert.True(t, c.coord.refreshing())
	close(release)

	wg.Wait()
	close(results)
	for err := range results {
		assert.NoError(t, err)
	}

	assert.Equal(t, 1, ts.refreshCount())
	assert.Equal(t, uint64(1), c.Refreshes())
	assert.False(t, c.coord.refreshing())
	assert.Zero(t, c.coord.queued())

	replays := 0
	for _, r := range ts.recorded() {
		if r.Authorization == "Bearer T2" {
			replays++
		}
	}
	assert.Equal(t, n, replays)
}

func TestStatisticsEndpointsShareOneRefresh(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	release := make(chan struct{})
	ts.update(func(s *tokenServer) { s.release = release })
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")))

	paths := []string{"/admin/maxReadCount", "/admin/maxLikeCount", "/admin/maxCommentCount"}

	var wg sync.WaitGroup
	statuses := make([]int, len(paths))
	errs := make([]error, len(paths))
	for i, path := range paths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			resp, err := c.Get(context.Background(), path)
			errs[i] = err
			if resp != nil {
				statuses[i] = resp.StatusCode
			}
		}(i, path)
	}

	require.Eventually(t, func() bool {
		return c.coord.queued() == len(paths)-1
	}, 5*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()

	for i := range paths {
		require.NoError(t, errs[i])
		assert.Equal(t, http.StatusOK, statuses[i])
	}
	assert.Equal(t, 1, ts.refreshCount())

	replayed := map[string]string{}
	for _, r := range ts.recorded() {
		if r.Authorization == "Bearer T2" {
			replayed[r.Path] = r.Method
		}
	}
	for _, path := range paths {
		assert.Equal(t, http.MethodGet, replayed[path], path)
	}
}

func TestRefreshFailureRejectsEveryone(t *testing.T) {
	const n = 5

	ts := newTokenServer(t, "T2", "T2")
	release := make(chan struct{})
	ts.update(func(s *tokenServer) { s.release = release })
	ts.update(func(s *tokenServer) { s.refreshStatus = http.StatusUnauthorized })

	store := newStoreWithToken(t, "T1")
	require.NoError(t, store.Set(context.Background(), credential.KeyUserData, `{"memberNo":1}`))

	var expired int32
	var cause error
	c := NewClient(ts.URL, WithStore(store), WithSessionExpiredHandler(SessionExpiredFunc(func(ctx context.Context, err error) {
		atomic.AddInt32(&expired, 1)
		cause = err
		_ = store.Delete(ctx, credential.KeyAccessToken, credential.KeyUserData)
	})))

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Get(context.Background(), "/admin/adminAccountList")
			errs <- err
		}()
	}

	require.Eventually(t, func() bool {
		return c.coord.queued() == n-1
	}, 5*time.Second, 5*time.Millisecond)
	close(release)
	wg.Wait()
	close(errs)

	triggers := 0
	for err := range errs {
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSessionExpired))
		if errors.Is(err, ErrUnauthorized) {
			triggers++
		}
	}
	// only the request that ran the refresh also carries its own 401
	assert.Equal(t, 1, triggers)

	assert.Equal(t, 1, ts.refreshCount())
	assert.Equal(t, int32(1), atomic.LoadInt32(&expired))
	assert.True(t, errors.Is(cause, ErrSessionExpired))
	assert.False(t, c.coord.refreshing())
	assert.Len(t, ts.recorded(), n, "nothing is replayed after a failed refresh")

	_, err := store.Get(context.Background(), credential.KeyAccessToken)
	assert.ErrorIs(t, err, credential.ErrNotFound)
	_, err = store.Get(context.Background(), credential.KeyUserData)
	assert.ErrorIs(t, err, credential.ErrNotFound)
}

func TestRefreshFailureWithoutHandlerClearsToken(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	ts.update(func(s *tokenServer) { s.refreshStatus = http.StatusInternalServerError })
	store := newStoreWithToken(t, "T1")
	c := NewClient(ts.URL, WithStore(store))

	_, err := c.Get(context.Background(), "/admin/newMember")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))

	var refreshErr *RefreshError
	require.True(t, errors.As(err, &refreshErr))
	assert.Contains(t, refreshErr.Cause.Error(), "HTTP 500")
	assert.Empty(t, storedToken(t, store))
}

func TestEmptyRefreshToken(t *testing.T) {
	ts := newTokenServer(t, "T2", "")
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")))

	_, err := c.Get(context.Background(), "/admin/newMember")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEmptyToken))
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.False(t, c.coord.refreshing())
}

func TestRefreshTimeout(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	refresher := RefresherFunc(func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})
	c := NewClient(ts.URL,
		WithStore(newStoreWithToken(t, "T1")),
		WithRefresher(refresher),
		WithRefreshTimeout(50*time.Millisecond),
	)

	start := time.Now()
	_, err := c.Get(context.Background(), "/admin/newMember")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Less(t, time.Since(start), 5*time.Second)
	assert.False(t, c.coord.refreshing())
}

func TestLeaderCancellationDoesNotFailWaiters(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	release := make(chan struct{})
	var refreshCtxErr error
	refresher := RefresherFunc(func(ctx context.Context) (string, error) {
		<-release
		refreshCtxErr = ctx.Err()
		return "T2", nil
	})
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")), WithRefresher(refresher))

	leaderCtx, cancel := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Get(leaderCtx, "/admin/maxReadCount")
		leaderErr <- err
	}()
	require.Eventually(t, c.coord.refreshing, 5*time.Second, 5*time.Millisecond)

	waiterResp := make(chan *Response, 1)
	go func() {
		resp, err := c.Get(context.Background(), "/admin/maxLikeCount")
		if err != nil {
			resp = nil
		}
		waiterResp <- resp
	}()
	require.Eventually(t, func() bool { return c.coord.queued() == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	close(release)

	assert.ErrorIs(t, <-leaderErr, context.Canceled)
	resp := <-waiterResp
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NoError(t, refreshCtxErr)
}

func TestCancelledWaiterLeavesQueue(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	release := make(chan struct{})
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")), WithRefresher(RefresherFunc(func(context.Context) (string, error) {
		<-release
		return "T2", nil
	})))

	leaderDone := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), "/a")
		leaderDone <- err
	}()
	require.Eventually(t, c.coord.refreshing, 5*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "/b")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	assert.NoError(t, <-leaderDone)
	assert.False(t, c.coord.refreshing())
}

func TestRefresherPanicResetsState(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")), WithRefresher(RefresherFunc(func(context.Context) (string, error) {
		panic("refresher exploded")
	})))

	assert.Panics(t, func() {
		_, _ = c.Get(context.Background(), "/admin/newMember")
	})
	assert.False(t, c.coord.refreshing())
}

func TestSessionExpiredHandlerPanicIsContained(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	ts.update(func(s *tokenServer) { s.refreshStatus = http.StatusUnauthorized })
	c := NewClient(ts.URL, WithStore(newStoreWithToken(t, "T1")), WithSessionExpiredHandler(SessionExpiredFunc(func(context.Context, error) {
		panic("logout exploded")
	})))

	_, err := c.Get(context.Background(), "/admin/newMember")
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.False(t, c.coord.refreshing())
}

func TestRefreshNextCallStartsNewCycle(t *testing.T) {
	ts := newTokenServer(t, "T2", "T2")
	store := newStoreWithToken(t, "T1")
	c := NewClient(ts.URL, WithStore(store))

	_, err := c.Get(context.Background(), "/a")
	require.NoError(t, err)

	// server rotates again; the stored T2 now fails and a new refresh runs
	ts.update(func(s *tokenServer) {
		s.valid = "T3"
		s.next = "T3"
	})

	_, err = c.Get(context.Background(), "/b")
	require.NoError(t, err)
	assert.Equal(t, 2, ts.refreshCount())
	assert.Equal(t, "T3", storedToken(t, store))
}
