package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/app"
	"currency-ledger/domain"
	"currency-ledger/shared"
)

func TestAccountService_OpenAccount(t *testing.T) {
	ctx := context.Background()
	l := setup(t)

	acc, err := l.accounts.OpenAccount(ctx, app.OpenAccountCommand{OwnerID: "alice", Currency: " usd"})
	require.NoError(t, err)
	assert.Equal(t, shared.USD, acc.Currency)
	assert.True(t, acc.Active)
	assert.True(t, acc.Balance.IsZero())

	t.Run("Duplicate", func(t *testing.T) {
		_, err := l.accounts.OpenAccount(ctx, app.OpenAccountCommand{OwnerID: "alice", Currency: shared.USD})
		assert.ErrorIs(t, err, domain.ErrAccountExists)
	})

	t.Run("UnknownCurrency", func(t *testing.T) {
		_, err := l.accounts.OpenAccount(ctx, app.OpenAccountCommand{OwnerID: "alice", Currency: "GBP"})
		assert.ErrorIs(t, err, domain.ErrUnknownCurrency)
	})

	t.Run("OwnerRequired", func(t *testing.T) {
		_, err := l.accounts.OpenAccount(ctx, app.OpenAccountCommand{Currency: shared.EUR})
		assert.Error(t, err)
	})
}

func TestAccountService_GetAndList(t *testing.T) {
	ctx := context.Background()
	l := setup(t)
	usd := l.open(t, "alice", shared.USD, "1")
	l.open(t, "alice", shared.EUR, "0")
	l.open(t, "bob", shared.EUR, "0")

	own, err := l.accounts.ListAccounts(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, own, 2)

	got, err := l.accounts.GetAccount(ctx, "alice", usd.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(dec("1")))

	_, err = l.accounts.GetAccount(ctx, "bob", usd.ID)
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

func TestAccountService_SetActive(t *testing.T) {
	ctx := context.Background()
	l := setup(t)
	acc := l.open(t, "alice", shared.USD, "5")
	other := l.open(t, "bob", shared.USD, "0")

	_, err := l.accounts.SetActive(ctx, app.SetAccountActiveCommand{OwnerID: "bob", AccountID: acc.ID, Active: false})
	require.ErrorIs(t, err, domain.ErrAccountNotFound)

	updated, err := l.accounts.SetActive(ctx, app.SetAccountActiveCommand{OwnerID: "alice", AccountID: acc.ID, Active: false})
	require.NoError(t, err)
	assert.False(t, updated.Active)

	_, err = l.transactions.MakeTransaction(ctx, app.MakeTransactionCommand{
		Type: domain.TypeCommon, Value: dec("1"), SourceAccountID: acc.ID, DestinationAccountID: other.ID,
	})
	require.ErrorIs(t, err, domain.ErrAccountInactive)

	_, err = l.accounts.SetActive(ctx, app.SetAccountActiveCommand{OwnerID: "alice", AccountID: acc.ID, Active: true})
	require.NoError(t, err)
	_, err = l.transactions.MakeTransaction(ctx, app.MakeTransactionCommand{
		Type: domain.TypeCommon, Value: dec("1"), SourceAccountID: acc.ID, DestinationAccountID: other.ID,
	})
	require.NoError(t, err)
}

func TestAccountService_Currencies(t *testing.T) {
	l := setup(t)
	currencies := l.accounts.Currencies()
	require.Len(t, currencies, 3)
	assert.Equal(t, shared.EUR, currencies[0].Code)
	assert.Equal(t, shared.RUB, currencies[1].Code)
	assert.Equal(t, shared.USD, currencies[2].Code)
}

func TestAccountService_SetupMasterAccounts(t *testing.T) {
	ctx := context.Background()
	l := setup(t)
	require.Len(t, l.masters, 3)

	again, err := l.accounts.SetupMasterAccounts(ctx, "master")
	require.NoError(t, err)
	assert.Equal(t, l.masters, again)

	for currency, id := range l.masters {
		acc, err := l.accounts.GetAccount(ctx, "master", id)
		require.NoError(t, err)
		assert.Equal(t, currency, acc.Currency)
	}
}
