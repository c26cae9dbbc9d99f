package client

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/boardproject/boardadmin/pkg/utils"
)

// Request describes one API call. A Request is never mutated after it is
// built: With* methods and replays return copies.
type Request struct {
	Method string
	Path   string
	Body   []byte
	Header http.Header

	// attempt is 0 for the original send and 1 for the single replay
	attempt int
}

// NewRequest creates a request for path relative to the client's base URL
func NewRequest(method, path string, body []byte) *Request {
	return &Request{
		Method: method,
		Path:   path,
		Body:   body,
		Header: make(http.Header),
	}
}

// NewJSONRequest marshals v as the request body
func NewJSONRequest(method, path string, v any) (*Request, error) {
	if v == nil {
		return NewRequest(method, path, nil), nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req := NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// WithHeader returns a copy of r with the header set
func (r *Request) WithHeader(key, value string) *Request {
	c := r.clone()
	c.Header.Set(key, value)
	return c
}

// Attempt reports 0 for an original request and 1 for its replay
func (r *Request) Attempt() int {
	return r.attempt
}

// Retried reports whether this request is already a replay
func (r *Request) Retried() bool {
	return r.attempt > 0
}

func (r *Request) replay() *Request {
	c := r.clone()
	c.attempt = 1
	return c
}

func (r *Request) clone() *Request {
	c := *r
	c.Header = r.Header.Clone()
	if c.Header == nil {
		c.Header = make(http.Header)
	}
	if r.Body != nil {
		c.Body = append([]byte(nil), r.Body...)
	}
	return &c
}

// Response is a fully read API response
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// Request is the request that produced this response (the replay, if any)
	Request *Request
}

// Decode unmarshals the JSON body into v
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Err returns a utils.HTTPError for non-2xx responses
func (r *Response) Err() error {
	method, path := "", ""
	if r.Request != nil {
		method, path = r.Request.Method, r.Request.Path
	}
	return utils.CheckStatus(r.StatusCode, r.Body, method, path)
}
