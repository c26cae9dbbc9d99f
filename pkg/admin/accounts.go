package admin

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const (
	CreateAdminAccountPath = "/admin/createAdminAccount"
	AdminAccountListPath   = "/admin/adminAccountList"
)

// AccountRequest is the payload for creating an admin account
type AccountRequest struct {
	MemberEmail    string `json:"memberEmail"`
	MemberNickname string `json:"memberNickname"`
	MemberTel      string `json:"memberTel"`
}

func (r AccountRequest) validate() error {
	switch {
	case strings.TrimSpace(r.MemberEmail) == "":
		return fmt.Errorf("%w: memberEmail", ErrMissingField)
	case strings.TrimSpace(r.MemberNickname) == "":
		return fmt.Errorf("%w: memberNickname", ErrMissingField)
	case strings.TrimSpace(r.MemberTel) == "":
		return fmt.Errorf("%w: memberTel", ErrMissingField)
	}
	return nil
}

// CreateAdminAccount creates an admin account and returns its generated password
func (a *API) CreateAdminAccount(ctx context.Context, req AccountRequest) (string, error) {
	if err := req.validate(); err != nil {
		return "", err
	}

	resp, err := a.client.Post(ctx, CreateAdminAccountPath, req)
	if err != nil {
		return "", err
	}
	switch resp.StatusCode {
	case http.StatusCreated:
		password := strings.TrimSpace(string(resp.Body))
		a.logger.Info("[API] admin account created", "email", req.MemberEmail)
		return password, nil
	case http.StatusNoContent:
		return "", fmt.Errorf("%w: %s", ErrAccountNotCreated, req.MemberEmail)
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return "", fmt.Errorf("unexpected status %d creating admin account", resp.StatusCode)
}

// AdminAccountList returns every admin account
func (a *API) AdminAccountList(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := a.list(ctx, AdminAccountListPath, &members); err != nil {
		return nil, err
	}
	return members, nil
}
