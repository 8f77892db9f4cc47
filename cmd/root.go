package cmd

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"currency-ledger/app"
	"currency-ledger/config"
	"currency-ledger/store"
)

var (
	configPath string
	ownerID    string

	cfg                config.Config
	logger             = zap.NewNop()
	ledgerStore        store.Store
	accountService     *app.AccountService
	transactionService *app.TransactionService
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ledger",
	Short: "A CLI for the multi-currency balance ledger",
	Long: `ledger manages currency accounts and moves value between them.

Common transfers carry a commission to the currency's master account,
exchanges convert between two accounts of the same owner, and common
transfers can be revoked.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	defer shutdown()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to yaml config")
	rootCmd.PersistentFlags().StringVar(&ownerID, "owner", "", "act on behalf of this owner")
	rootCmd.AddCommand(replCmd)
}

// setup wires the services once; the REPL reuses them across commands.
func setup(ctx context.Context) error {
	if transactionService != nil {
		return nil
	}

	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return errors.Wrap(err, "load config")
	}
	if logger, err = cfg.Log.NewLogger(); err != nil {
		return err
	}

	ledgerStore, err = openStore(ctx, cfg)
	if err != nil {
		return err
	}

	accountService = app.NewAccountService(ledgerStore, cfg.Currencies, logger)
	transactionService = app.NewTransactionService(
		ledgerStore,
		app.NewMasterAccounts(ledgerStore, cfg.MasterAccounts),
		app.NewStaticRates(cfg.Rates, logger),
		app.Settings{Commission: cfg.Commission, MinValue: cfg.MinValue},
		logger,
	)
	return nil
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		return store.ConnectPostgres(ctx, cfg.Storage.DatabaseURL, logger)
	default:
		journal, err := store.NewWALJournal(cfg.Storage.WALDir, logger)
		if err != nil {
			return nil, err
		}
		snapshots, err := store.NewFileSnapshotStore(cfg.Storage.SnapshotPath)
		if err != nil {
			_ = journal.Close()
			return nil, err
		}
		st, err := store.NewMemoryStore(
			store.WithJournal(journal),
			store.WithSnapshots(snapshots, store.SnapshotFrequency),
			store.WithLogger(logger),
		)
		if err != nil {
			_ = journal.Close()
			return nil, err
		}
		return st, nil
	}
}

func shutdown() {
	defer func() { _ = logger.Sync() }()
	if ledgerStore == nil {
		return
	}
	if err := ledgerStore.Close(); err != nil {
		logger.Error("failed to close ledger store", zap.Error(err))
	}
	ledgerStore = nil
	transactionService = nil
	accountService = nil
}

// resetFlags restores every flag to its default so REPL commands don't
// inherit values from the previous line.
func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if f.Changed {
			_ = f.Value.Set(f.DefValue)
			f.Changed = false
		}
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, child := range cmd.Commands() {
		resetFlags(child)
	}
}

// replCmd represents the repl command
var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive REPL session",
	Long:  `Starts an interactive Read-Eval-Print Loop session to interact with the ledger.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Starting ledger REPL. Type 'exit' or 'quit' to exit.")

		owner, path := ownerID, configPath
		scanner := bufio.NewScanner(cmd.InOrStdin())
		for {
			fmt.Fprint(out, "> ")
			if !scanner.Scan() {
				break
			}
			input := strings.TrimSpace(scanner.Text())
			if input == "exit" || input == "quit" {
				break
			}
			if input == "" {
				continue
			}

			resetFlags(rootCmd)
			ownerID, configPath = owner, path
			rootCmd.SetArgs(strings.Fields(input))
			if err := rootCmd.ExecuteContext(cmd.Context()); err != nil {
				// cobra already printed the error
				continue
			}
		}

		fmt.Fprintln(out, "Exiting REPL.")
		return scanner.Err()
	},
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := newEncoder(cmd.OutOrStdout())
	return enc.Encode(v)
}
