package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Mubson1/Deploy-Lottery/internal/account"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "Manage keystore accounts",
	Long: `Accounts are encrypted JSON keystore files under project.keystore_dir.
Select one with --id on any command that signs.

The password is read from ` + account.PasswordEnv + ` or prompted for.

Examples:
  lotteryctl accounts list
  lotteryctl accounts new alice
  lotteryctl accounts import deployer 0x4c0883a6...`,
}

var accountsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List keystore accounts",
	Args:  cobra.NoArgs,
	RunE:  runAccountsList,
}

var accountsNewCmd = &cobra.Command{
	Use:   "new <id>",
	Short: "Generate a new account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountsNew,
}

var accountsImportCmd = &cobra.Command{
	Use:   "import <id> <private-key>",
	Short: "Import a hex private key",
	Args:  cobra.ExactArgs(2),
	RunE:  runAccountsImport,
}

func init() {
	accountsCmd.AddCommand(accountsListCmd)
	accountsCmd.AddCommand(accountsNewCmd)
	accountsCmd.AddCommand(accountsImportCmd)
}

func runAccountsList(cmd *cobra.Command, args []string) error {
	entries, err := keystore().List()
	if err != nil {
		return err
	}

	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"accounts": entries,
			"count":    len(entries),
		})
	}

	if len(entries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts found")
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	printTableHeader(w, "ID", "ADDRESS")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\n", e.ID, e.Address.Hex())
	}
	return w.Flush()
}

func runAccountsNew(cmd *cobra.Command, args []string) error {
	password, err := newPassword(args[0])
	if err != nil {
		return err
	}
	acct, err := keystore().New(args[0], password)
	if err != nil {
		return err
	}
	return printAccount(cmd, args[0], acct)
}

func runAccountsImport(cmd *cobra.Command, args []string) error {
	password, err := newPassword(args[0])
	if err != nil {
		return err
	}
	acct, err := keystore().Import(args[0], args[1], password)
	if err != nil {
		return err
	}
	return printAccount(cmd, args[0], acct)
}

func newPassword(id string) (string, error) {
	password, err := account.PromptPassword(id)
	if err != nil {
		return "", err
	}
	if password == "" {
		return "", errors.New("empty password")
	}
	return password, nil
}

func printAccount(cmd *cobra.Command, id string, acct *account.Account) error {
	if jsonOut {
		return printJSON(cmd.OutOrStdout(), map[string]interface{}{
			"id":      id,
			"address": acct.Address(),
		})
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Saved account %s (%s)\n", id, acct.Address().Hex())
	return nil
}
