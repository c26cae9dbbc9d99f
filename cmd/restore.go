package cmd

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var MembersCmd = &cobra.Command{
	Use:   "members",
	Short: "Review and restore withdrawn members",
}

var membersWithdrawnCmd = &cobra.Command{
	Use:   "withdrawn",
	Short: "List withdrawn members",
	RunE:  runMembersWithdrawn,
}

var membersRestoreCmd = &cobra.Command{
	Use:   "restore <memberNo>",
	Short: "Restore a withdrawn member",
	Args:  cobra.ExactArgs(1),
	RunE:  runMembersRestore,
}

var BoardsCmd = &cobra.Command{
	Use:   "boards",
	Short: "Review and restore deleted posts",
}

var boardsDeletedCmd = &cobra.Command{
	Use:   "deleted",
	Short: "List deleted posts",
	RunE:  runBoardsDeleted,
}

var boardsRestoreCmd = &cobra.Command{
	Use:   "restore <boardNo>",
	Short: "Restore a deleted post",
	Args:  cobra.ExactArgs(1),
	RunE:  runBoardsRestore,
}

func init() {
	membersWithdrawnCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")
	boardsDeletedCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")

	MembersCmd.AddCommand(membersWithdrawnCmd)
	MembersCmd.AddCommand(membersRestoreCmd)
	BoardsCmd.AddCommand(boardsDeletedCmd)
	BoardsCmd.AddCommand(boardsRestoreCmd)
}

func parseNumber(arg, what string) (int64, error) {
	n, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", what, arg)
	}
	return n, nil
}

func runMembersWithdrawn(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		members, err := rt.api.WithdrawnMembers(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), members)
		}
		return printMembers(cmd.OutOrStdout(), members)
	})
}

func runMembersRestore(cmd *cobra.Command, args []string) error {
	memberNo, err := parseNumber(args[0], "member number")
	if err != nil {
		return err
	}
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		if err := rt.api.RestoreMember(ctx, memberNo); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Member %d restored\n", memberNo)
		return nil
	})
}

func runBoardsDeleted(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		boards, err := rt.api.DeletedBoards(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), boards)
		}
		return printBoards(cmd.OutOrStdout(), boards)
	})
}

func runBoardsRestore(cmd *cobra.Command, args []string) error {
	boardNo, err := parseNumber(args[0], "board number")
	if err != nil {
		return err
	}
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		if err := rt.api.RestoreBoard(ctx, boardNo); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Board %d restored\n", boardNo)
		return nil
	})
}
