package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"currency-ledger/app"
	"currency-ledger/domain"
)

// Variables for query flags
var (
	queryAccountID     string
	queryTransactionID string
	querySkip          int
	queryLimit         int
)

// queryCmd represents the query command group
var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query transactions and the currency catalog",
}

var transactionsQueryCmd = &cobra.Command{
	Use:   "transactions",
	Short: "List transactions of the owner",
	Long: `Lists transactions where one of the --owner's accounts is the source or
destination, oldest first. --account narrows the list to one account.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if ownerID == "" {
			return fmt.Errorf("owner (--owner) is required")
		}
		history, err := transactionService.ListTransactions(cmd.Context(), app.ListTransactionsQuery{
			OwnerID:   ownerID,
			AccountID: queryAccountID,
			Skip:      querySkip,
			Limit:     queryLimit,
		})
		if err != nil {
			return fmt.Errorf("failed to list transactions: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, history)
		}
		if len(history) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "(No transactions found)")
			return nil
		}
		printTransactions(cmd.OutOrStdout(), history)
		return nil
	},
}

var transactionQueryCmd = &cobra.Command{
	Use:   "transaction",
	Short: "Show one transaction and the transactions linked to it",
	RunE: func(cmd *cobra.Command, args []string) error {
		query := app.GetTransactionQuery{OwnerID: ownerID, TransactionID: queryTransactionID}
		tr, err := transactionService.GetTransaction(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to get transaction: %w", err)
		}
		related, err := transactionService.RelatedTransactions(cmd.Context(), query)
		if err != nil {
			return fmt.Errorf("failed to get related transactions: %w", err)
		}
		if outputJSON {
			return printJSON(cmd, map[string]any{"transaction": tr, "related": related})
		}
		printTransactions(cmd.OutOrStdout(), []*domain.Transaction{tr})
		if len(related) > 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "\nRelated:")
			printTransactions(cmd.OutOrStdout(), related)
		}
		return nil
	},
}

var currenciesQueryCmd = &cobra.Command{
	Use:   "currencies",
	Short: "List the currency catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		currencies := accountService.Currencies()
		if outputJSON {
			return printJSON(cmd, currencies)
		}
		for _, c := range currencies {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", c.Code, c.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(transactionsQueryCmd, transactionQueryCmd, currenciesQueryCmd)

	transactionsQueryCmd.Flags().StringVar(&queryAccountID, "account", "", "Only transactions of this account")
	transactionsQueryCmd.Flags().IntVar(&querySkip, "skip", 0, "Number of transactions to skip")
	transactionsQueryCmd.Flags().IntVar(&queryLimit, "limit", 0, "Maximum number of transactions to show (0 = all)")

	transactionQueryCmd.Flags().StringVar(&queryTransactionID, "id", "", "Transaction ID (required)")
	_ = transactionQueryCmd.MarkFlagRequired("id")
}
