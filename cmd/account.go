package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"currency-ledger/app"
	"currency-ledger/shared"
)

var (
	accountID       string
	accountCurrency string
)

// accountCmd represents the account command group
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage currency accounts",
	Long:  `Provides commands to open, list, activate and deactivate accounts.`,
}

var openAccountCmd = &cobra.Command{
	Use:   "open",
	Short: "Open an account in a currency",
	Long: `Opens a new account with zero balance for the owner given by --owner.
An owner can hold at most one account per currency.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ownerID == "" {
			return fmt.Errorf("owner (--owner) is required")
		}
		account, err := accountService.OpenAccount(cmd.Context(), app.OpenAccountCommand{
			OwnerID:  ownerID,
			Currency: shared.NormalizeCurrency(accountCurrency),
		})
		if err != nil {
			return fmt.Errorf("failed to open account: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, account)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account '%s' opened in %s.\n", account.ID, account.Currency)
		return nil
	},
}

var listAccountsCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	Long:  `Lists the accounts of --owner, or every account when no owner is given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		accounts, err := accountService.ListAccounts(cmd.Context(), ownerID)
		if err != nil {
			return fmt.Errorf("failed to list accounts: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, accounts)
		}
		if len(accounts) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(No accounts)")
			return nil
		}
		printAccounts(cmd.OutOrStdout(), accounts)
		return nil
	},
}

func setActiveCmd(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			account, err := accountService.SetActive(cmd.Context(), app.SetAccountActiveCommand{
				OwnerID:   ownerID,
				AccountID: accountID,
				Active:    active,
			})
			if err != nil {
				return fmt.Errorf("failed to %s account: %w", use, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account '%s' active: %t.\n", account.ID, account.Active)
			return nil
		},
	}
}

var (
	deactivateAccountCmd = setActiveCmd("deactivate", "Exclude an account from new transactions", false)
	activateAccountCmd   = setActiveCmd("activate", "Allow an account to take part in transactions again", true)
)

// masterCmd groups commands that maintain the system-side accounts.
var masterCmd = &cobra.Command{
	Use:   "master",
	Short: "Maintain master accounts",
}

var masterSetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Open one master account per catalog currency",
	Long: `Opens (or reuses) one account per configured currency for the master
owner and prints the mapping to put under master_accounts in the config.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner := ownerID
		if owner == "" {
			owner = "master"
		}
		ids, err := accountService.SetupMasterAccounts(cmd.Context(), owner)
		if err != nil {
			return fmt.Errorf("failed to set up master accounts: %w", err)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "master_accounts:")
		for _, info := range accountService.Currencies() {
			fmt.Fprintf(out, "  %s: %s\n", info.Code, ids[info.Code])
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "print results as JSON")

	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(openAccountCmd, listAccountsCmd, deactivateAccountCmd, activateAccountCmd)

	openAccountCmd.Flags().StringVar(&accountCurrency, "currency", "", "Currency code, e.g. USD (required)")
	_ = openAccountCmd.MarkFlagRequired("currency")

	for _, c := range []*cobra.Command{deactivateAccountCmd, activateAccountCmd} {
		c.Flags().StringVar(&accountID, "id", "", "Account ID (required)")
		_ = c.MarkFlagRequired("id")
	}

	rootCmd.AddCommand(masterCmd)
	masterCmd.AddCommand(masterSetupCmd)
}
