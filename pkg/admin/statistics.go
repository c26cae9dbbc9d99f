package admin

import (
	"context"

	"golang.org/x/sync/errgroup"
)

const (
	NewMembersPath      = "/admin/newMember"
	MaxReadCountPath    = "/admin/maxReadCount"
	MaxLikeCountPath    = "/admin/maxLikeCount"
	MaxCommentCountPath = "/admin/maxCommentCount"
)

// Statistics holds the dashboard's most popular posts. A nil board means
// the API had none to report.
type Statistics struct {
	MostRead      *Board `json:"mostRead"`
	MostLiked     *Board `json:"mostLiked"`
	MostCommented *Board `json:"mostCommented"`
}

// NewMembers returns recently enrolled members
func (a *API) NewMembers(ctx context.Context) ([]Member, error) {
	var members []Member
	if err := a.list(ctx, NewMembersPath, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (a *API) MaxReadCount(ctx context.Context) (*Board, error) {
	return a.maxBoard(ctx, MaxReadCountPath)
}

func (a *API) MaxLikeCount(ctx context.Context) (*Board, error) {
	return a.maxBoard(ctx, MaxLikeCountPath)
}

func (a *API) MaxCommentCount(ctx context.Context) (*Board, error) {
	return a.maxBoard(ctx, MaxCommentCountPath)
}

func (a *API) maxBoard(ctx context.Context, path string) (*Board, error) {
	var board Board
	found, err := a.getJSON(ctx, path, &board)
	if err != nil || !found {
		return nil, err
	}
	return &board, nil
}

// LoadStatistics fetches the three board maxima concurrently. When the
// access token has expired they share a single refresh.
func (a *API) LoadStatistics(ctx context.Context) (*Statistics, error) {
	stats := &Statistics{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		board, err := a.MaxReadCount(gctx)
		stats.MostRead = board
		return err
	})
	g.Go(func() error {
		board, err := a.MaxLikeCount(gctx)
		stats.MostLiked = board
		return err
	})
	g.Go(func() error {
		board, err := a.MaxCommentCount(gctx)
		stats.MostCommented = board
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	a.logger.Debug("[API] statistics loaded")
	return stats, nil
}
