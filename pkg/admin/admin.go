// Package admin wraps the board admin endpoints on top of the auth-aware client.
package admin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/boardproject/boardadmin/pkg/client"
	"github.com/boardproject/boardadmin/pkg/utils"
)

var (
	ErrMissingField      = errors.New("missing required field")
	ErrAccountNotCreated = errors.New("admin account was not created")
	ErrInvalidTarget     = errors.New("invalid restore target")
)

// Member represents a member row in admin listings
type Member struct {
	MemberNo       int64  `json:"memberNo"`
	MemberEmail    string `json:"memberEmail"`
	MemberNickname string `json:"memberNickname"`
	MemberTel      string `json:"memberTel,omitempty"`
	EnrollDate     string `json:"enrollDate,omitempty"`
	Authority      int    `json:"authority,omitempty"`
}

// Board represents a board post in statistics and restore listings
type Board struct {
	BoardNo        int64  `json:"boardNo"`
	BoardTitle     string `json:"boardTitle"`
	BoardName      string `json:"boardName,omitempty"`
	ReadCount      int    `json:"readCount"`
	LikeCount      int    `json:"likeCount"`
	CommentCount   int    `json:"commentCount"`
	MemberNickname string `json:"memberNickname,omitempty"`
}

// API is the typed admin API
type API struct {
	client *client.Client
	logger *slog.Logger
}

func New(c *client.Client, logger *slog.Logger) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{client: c, logger: logger}
}

// getJSON decodes a 2xx body into out. It reports false for 204 or an empty body.
func (a *API) getJSON(ctx context.Context, path string, out any) (bool, error) {
	resp, err := a.client.Get(ctx, path)
	if err != nil {
		return false, err
	}
	if err := resp.Err(); err != nil {
		return false, err
	}
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		return false, nil
	}
	if err := resp.Decode(out); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

func (a *API) list(ctx context.Context, path string, out any) error {
	_, err := a.getJSON(ctx, path, out)
	return err
}

// restore sends PUT path with body and maps 400 to ErrInvalidTarget
func (a *API) restore(ctx context.Context, path string, body any) error {
	resp, err := a.client.Put(ctx, path, body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ErrInvalidTarget, utils.ErrorMessage(resp.Body))
	}
	return resp.Err()
}
