package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/boardproject/boardadmin/pkg/session"
)

// PasswordEnv supplies the login password non-interactively
const PasswordEnv = "BOARDADMIN_PASSWORD"

var (
	loginEmail    string
	loginPassword string
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to the board admin API",
	Long: `Log in with an admin account and store the access token.

The password is read from --password, the BOARDADMIN_PASSWORD environment
variable, or prompted for when neither is set.`,
	RunE: runLogin,
}

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and clear stored credentials",
	RunE:  runLogout,
}

var WhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the logged in admin and token state",
	RunE:  runWhoami,
}

func init() {
	LoginCmd.Flags().StringVarP(&loginEmail, "email", "u", "", "Admin email address (required)")
	LoginCmd.Flags().StringVarP(&loginPassword, "password", "p", "", "Admin password")
	if err := LoginCmd.MarkFlagRequired("email"); err != nil {
		panic(err)
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	password, err := resolvePassword(cmd)
	if err != nil {
		return err
	}

	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		member, err := rt.session.Login(ctx, loginEmail, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", member.MemberNickname, member.MemberEmail)
		return nil
	})
}

func resolvePassword(cmd *cobra.Command) (string, error) {
	if loginPassword != "" {
		return loginPassword, nil
	}
	if env := os.Getenv(PasswordEnv); env != "" {
		return env, nil
	}

	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	in := cmd.InOrStdin()
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		data, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return string(data), nil
	}
	return readLine(in)
}

func readLine(in io.Reader) (string, error) {
	scanner := bufio.NewScanner(in)
	if scanner.Scan() {
		return strings.TrimSpace(scanner.Text()), nil
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading input: %w", err)
	}
	return "", errors.New("no password given")
}

func runLogout(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		if err := rt.session.Logout(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	})
}

func runWhoami(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		out := cmd.OutOrStdout()

		member, err := rt.session.CurrentUser(ctx)
		if errors.Is(err, session.ErrNotLoggedIn) {
			fmt.Fprintln(out, "Not logged in")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Member:   %s (%s) #%d\n", member.MemberNickname, member.MemberEmail, member.MemberNo)
		fmt.Fprintf(out, "Endpoint: %s\n", rt.cfg.Endpoint)

		info, err := rt.session.TokenInfo(ctx)
		switch {
		case errors.Is(err, session.ErrNotLoggedIn):
			fmt.Fprintln(out, "Token:    none")
		case err != nil:
			fmt.Fprintf(out, "Token:    unreadable (%v)\n", err)
		case info.Expired:
			fmt.Fprintf(out, "Token:    expired at %s, refreshed on next request\n", info.ExpiresAt.Format(time.RFC3339))
		default:
			fmt.Fprintf(out, "Token:    valid until %s (%s left)\n",
				info.ExpiresAt.Format(time.RFC3339), info.Remaining(time.Now()).Round(time.Second))
		}

		if current, err := rt.journal.Current(); err == nil && current != nil {
			fmt.Fprintf(out, "Session:  since %s, %d refreshes\n", current.LoggedInAt.Format(time.RFC3339), current.RefreshCount)
		}
		return nil
	})
}
