package admin

import (
	"context"
)

const (
	WithdrawnMemberListPath = "/admin/withdrawnMemberList"
	RestoreMemberPath       = "/admin/restoreMember"
	DeleteBoardListPath     = "/admin/deleteBoardList"
	RestoreBoardPath        = "/admin/restoreBoard"
)

// WithdrawnMembers returns members that left and can be restored
func (a *API) WithdrawnMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := a.list(ctx, WithdrawnMemberListPath, &members); err != nil {
		return nil, err
	}
	return members, nil
}

// RestoreMember reactivates a withdrawn member
func (a *API) RestoreMember(ctx context.Context, memberNo int64) error {
	return a.restore(ctx, RestoreMemberPath, map[string]int64{"memberNo": memberNo})
}

// DeletedBoards returns deleted posts that can be restored
func (a *API) DeletedBoards(ctx context.Context) ([]Board, error) {
	var boards []Board
	if err := a.list(ctx, DeleteBoardListPath, &boards); err != nil {
		return nil, err
	}
	return boards, nil
}

// RestoreBoard undeletes a post
func (a *API) RestoreBoard(ctx context.Context, boardNo int64) error {
	return a.restore(ctx, RestoreBoardPath, map[string]int64{"boardNo": boardNo})
}
