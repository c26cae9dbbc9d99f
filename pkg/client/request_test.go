package client

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boardproject/boardadmin/pkg/utils"
)

func TestReplayDoesNotMutateOriginal(t *testing.T) {
	req, err := NewJSONRequest(http.MethodPut, "/admin/restoreBoard", map[string]int{"boardNo": 3})
	require.NoError(t, err)
	req = req.WithHeader("X-Trace", "abc")

	replay := req.replay()
	replay.Header.Set("X-Trace", "changed")
	replay.Body[0] = '['

	assert.Equal(t, 0, req.Attempt())
	assert.False(t, req.Retried())
	assert.True(t, replay.Retried())
	assert.Equal(t, "abc", req.Header.Get("X-Trace"))
	assert.JSONEq(t, `{"boardNo":3}`, string(req.Body))
	assert.Equal(t, req.Method, replay.Method)
	assert.Equal(t, req.Path, replay.Path)
}

func TestNewJSONRequest(t *testing.T) {
	req, err := NewJSONRequest(http.MethodPost, "/auth/login", nil)
	require.NoError(t, err)
	assert.Nil(t, req.Body)
	assert.Empty(t, req.Header.Get("Content-Type"))

	req, err = NewJSONRequest(http.MethodPost, "/auth/login", map[string]string{"memberEmail": "a@b.c"})
	require.NoError(t, err)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))

	_, err = NewJSONRequest(http.MethodPost, "/x", make(chan int))
	assert.ErrorContains(t, err, "failed to marshal request")
}

func TestResponseErr(t *testing.T) {
	resp := &Response{StatusCode: http.StatusOK, Request: NewRequest(http.MethodGet, "/ok", nil)}
	assert.NoError(t, resp.Err())

	resp = &Response{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"message":"no such member"}`),
		Request:    NewRequest(http.MethodPut, "/admin/restoreMember", nil),
	}
	err := resp.Err()
	var httpErr utils.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusBadRequest, httpErr.StatusCode)
	assert.Equal(t, "no such member", httpErr.Message)
	assert.Equal(t, http.MethodPut, httpErr.Method)
}

func TestResponseDecode(t *testing.T) {
	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, (&Response{Body: []byte(`{"count":4}`)}).Decode(&out))
	assert.Equal(t, 4, out.Count)
	assert.Error(t, (&Response{Body: []byte(`nope`)}).Decode(&out))
}
