package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"currency-ledger/app"
	"currency-ledger/domain"
)

// Variables to hold flag values for transaction commands
var (
	txType     string
	txValueStr string
	txFromID   string
	txToID     string
	txID       string
	txAccount  string
)

// transactionCmd represents the transaction command group
var transactionCmd = &cobra.Command{
	Use:   "transaction",
	Short: "Move value between accounts",
	Long:  `Provides commands for making, revoking and issuing transactions.`,
}

var makeCmd = &cobra.Command{
	Use:   "make",
	Short: "Make a common transfer or an exchange",
	Long: `Makes a transaction of --type common (same currency, commission is charged
to the source) or --type exchange (same owner, different currencies,
converted at the configured rate).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := domain.ParseTransactionType(txType)
		if err != nil {
			return err
		}
		value, err := parseValue(txValueStr)
		if err != nil {
			return err
		}

		tr, err := transactionService.MakeTransaction(cmd.Context(), app.MakeTransactionCommand{
			OwnerID:              ownerID,
			Type:                 typ,
			Value:                value,
			SourceAccountID:      txFromID,
			DestinationAccountID: txToID,
		})
		if err != nil {
			return fmt.Errorf("failed to make transaction: %w", err)
		}
		return printResult(cmd, tr)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke a common transaction",
	Long: `Cancels a common transaction and moves its value back from the destination
to the source. The commission is not returned.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tr, err := transactionService.RevokeTransaction(cmd.Context(), app.RevokeTransactionCommand{
			OwnerID:       ownerID,
			TransactionID: txID,
		})
		if err != nil {
			return fmt.Errorf("failed to revoke transaction: %w", err)
		}
		return printResult(cmd, tr)
	},
}

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Credit an account without a source",
	Long:  `Creates value on an account, e.g. to fund master accounts. Issued value can't be revoked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := parseValue(txValueStr)
		if err != nil {
			return err
		}
		tr, err := transactionService.Issue(cmd.Context(), app.IssueCommand{AccountID: txAccount, Value: value})
		if err != nil {
			return fmt.Errorf("failed to issue value: %w", err)
		}
		return printResult(cmd, tr)
	},
}

func parseValue(raw string) (decimal.Decimal, error) {
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", domain.ErrInvalidValue, raw)
	}
	return value, nil
}

func printResult(cmd *cobra.Command, tr *domain.Transaction) error {
	if outputJSON {
		return printJSON(cmd, tr)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Transaction %s\n", tr.String())
	return nil
}

func init() {
	rootCmd.AddCommand(transactionCmd)
	transactionCmd.AddCommand(makeCmd, revokeCmd, issueCmd)

	makeCmd.Flags().StringVar(&txType, "type", "common", "Transaction type: common or exchange")
	makeCmd.Flags().StringVar(&txValueStr, "value", "", "Value in source currency (required)")
	makeCmd.Flags().StringVar(&txFromID, "from", "", "Source account ID (required)")
	makeCmd.Flags().StringVar(&txToID, "to", "", "Destination account ID (required)")
	_ = makeCmd.MarkFlagRequired("value")

	revokeCmd.Flags().StringVar(&txID, "id", "", "Transaction ID to revoke (required)")
	_ = revokeCmd.MarkFlagRequired("id")

	issueCmd.Flags().StringVar(&txAccount, "account", "", "Account ID to credit (required)")
	issueCmd.Flags().StringVar(&txValueStr, "value", "", "Value to issue (required)")
	_ = issueCmd.MarkFlagRequired("account")
	_ = issueCmd.MarkFlagRequired("value")
}
