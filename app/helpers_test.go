package app_test

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"currency-ledger/app"
	"currency-ledger/domain"
	"currency-ledger/shared"
	"currency-ledger/store"
)

// Helper to create decimals in tests
func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var catalog = []shared.CurrencyInfo{
	{Code: shared.USD, Name: "US dollar"},
	{Code: shared.EUR, Name: "Euro"},
	{Code: shared.RUB, Name: "Russian ruble"},
}

type ledger struct {
	store        store.Store
	accounts     *app.AccountService
	transactions *app.TransactionService
	masters      map[shared.Currency]string
}

// setup initializes an in-memory ledger with one master account per currency.
func setup(t *testing.T) *ledger {
	t.Helper()
	st, err := store.NewMemoryStore()
	require.NoError(t, err)
	return setupWithStore(t, st, nil)
}

func setupWithStore(t *testing.T, st store.Store, rates app.RateProvider) *ledger {
	t.Helper()
	accounts := app.NewAccountService(st, catalog, nil)
	masters, err := accounts.SetupMasterAccounts(context.Background(), "master")
	require.NoError(t, err)

	if rates == nil {
		rates = app.NewStaticRates(nil, nil)
	}
	return &ledger{
		store:        st,
		accounts:     accounts,
		transactions: app.NewTransactionService(st, app.NewMasterAccounts(st, masters), rates, app.DefaultSettings(), nil),
		masters:      masters,
	}
}

// open opens an account and funds it by issuance.
func (l *ledger) open(t *testing.T, owner string, currency shared.Currency, balance string) *domain.Account {
	t.Helper()
	ctx := context.Background()
	acc, err := l.accounts.OpenAccount(ctx, app.OpenAccountCommand{OwnerID: owner, Currency: currency})
	require.NoError(t, err)
	l.fund(t, acc.ID, balance)
	return acc
}

func (l *ledger) fund(t *testing.T, id, value string) {
	t.Helper()
	if dec(value).IsZero() {
		return
	}
	_, err := l.transactions.Issue(context.Background(), app.IssueCommand{AccountID: id, Value: dec(value)})
	require.NoError(t, err)
}

func (l *ledger) balance(t *testing.T, id string) decimal.Decimal {
	t.Helper()
	acc, err := l.store.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}

func (l *ledger) requireBalance(t *testing.T, id, want string) {
	t.Helper()
	got := l.balance(t, id)
	require.True(t, got.Equal(dec(want)), "account %s: balance %s, want %s", id, got, want)
}

func (l *ledger) history(t *testing.T, owner string) []*domain.Transaction {
	t.Helper()
	history, err := l.transactions.ListTransactions(context.Background(), app.ListTransactionsQuery{OwnerID: owner})
	require.NoError(t, err)
	return history
}

// aliasStore serves extra account ids as copies of existing accounts.
type aliasStore struct {
	store.Store
	aliases map[string]string
}

func (s *aliasStore) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	target, ok := s.aliases[id]
	if !ok {
		return s.Store.GetAccount(ctx, id)
	}
	acc, err := s.Store.GetAccount(ctx, target)
	if err != nil {
		return nil, err
	}
	acc.ID = id
	return acc, nil
}
