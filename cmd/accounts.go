package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/boardproject/boardadmin/pkg/admin"
)

var newAccount admin.AccountRequest

var AccountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage admin accounts",
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List admin accounts",
	RunE:  runAccountsList,
}

var accountsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an admin account",
	Long:  "Create an admin account. The generated password is printed once.",
	RunE:  runAccountsCreate,
}

func init() {
	accountsListCmd.Flags().BoolVar(&jsonOutput, "json", false, "Print JSON instead of a table")

	accountsCreateCmd.Flags().StringVar(&newAccount.MemberEmail, "email", "", "Email of the new admin")
	accountsCreateCmd.Flags().StringVar(&newAccount.MemberNickname, "nickname", "", "Nickname of the new admin")
	accountsCreateCmd.Flags().StringVar(&newAccount.MemberTel, "tel", "", "Phone number of the new admin")

	AccountsCmd.AddCommand(accountsListCmd)
	AccountsCmd.AddCommand(accountsCreateCmd)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		accounts, err := rt.api.AdminAccountList(ctx)
		if err != nil {
			return err
		}
		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), accounts)
		}
		return printMembers(cmd.OutOrStdout(), accounts)
	})
}

func runAccountsCreate(cmd *cobra.Command, args []string) error {
	return withRuntime(cmd, func(ctx context.Context, rt *runtime) error {
		password, err := rt.api.CreateAdminAccount(ctx, newAccount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Created admin account %s\nPassword: %s\n", newAccount.MemberEmail, password)
		return nil
	})
}
