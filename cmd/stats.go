package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/boardproject/boardadmin/pkg/admin"
)

var StatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show dashboard statistics",
	Long:  "Show new members and the most read, liked and commented posts",
	RunE:  runStats,
}

func init() {
	StatsCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
}

type statsReport struct {
	NewMembers []admin.Member `json:"newMembers"`
	*admin.Statistics
}

func runStats(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		members, err := rt.api.NewMembers(ctx)
		if err != nil {
			return err
		}
		stats, err := rt.api.LoadStatistics(ctx)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput {
			return writeJSON(out, statsReport{NewMembers: members, Statistics: stats})
		}

		fmt.Fprintf(out, "New members (%d)\n", len(members))
		if err := printMembers(out, members); err != nil {
			return err
		}
		fmt.Fprintln(out)

		tw := newTable(out)
		printTopBoard(tw, "Most read", stats.MostRead, func(b *admin.Board) string { return fmt.Sprintf("%d reads", b.ReadCount) })
		printTopBoard(tw, "Most liked", stats.MostLiked, func(b *admin.Board) string { return fmt.Sprintf("%d likes", b.LikeCount) })
		printTopBoard(tw, "Most commented", stats.MostCommented, func(b *admin.Board) string { return fmt.Sprintf("%d comments", b.CommentCount) })
		return tw.Flush()
	})
}

func printTopBoard(w io.Writer, label string, b *admin.Board, metric func(*admin.Board) string) {
	if b == nil {
		fmt.Fprintf(w, "%s:\t-\n", label)
		return
	}
	fmt.Fprintf(w, "%s:\t#%d %q by %s\t%s\n", label, b.BoardNo, b.BoardTitle, b.MemberNickname, metric(b))
}
