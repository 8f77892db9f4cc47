package store_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"currency-ledger/domain"
	"currency-ledger/shared"
	"currency-ledger/store"
)

// connectTestPostgres connects to LEDGER_TEST_DATABASE_URL or skips the test.
func connectTestPostgres(t *testing.T) *store.PostgresStore {
	t.Helper()
	url := os.Getenv("LEDGER_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("LEDGER_TEST_DATABASE_URL is not set")
	}
	st, err := store.ConnectPostgres(context.Background(), url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestPostgresStore_Transfer(t *testing.T) {
	st := connectTestPostgres(t)
	ctx := context.Background()

	// unique owners keep reruns against the same database independent
	run := uuid.NewString()
	a := openAccount(t, st, "", "pg-a-"+run, shared.USD, "10")
	b := openAccount(t, st, "", "pg-b-"+run, shared.USD, "0")

	require.NoError(t, transfer(ctx, st, a.ID, b.ID, dec("2.5")))
	assert.True(t, balanceOf(t, st, a.ID).Equal(dec("7.5")))
	assert.True(t, balanceOf(t, st, b.ID).Equal(dec("2.5")))

	err := transfer(ctx, st, a.ID, b.ID, dec("100"))
	require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	assert.True(t, balanceOf(t, st, a.ID).Equal(dec("7.5")))

	t.Run("NegativeIncrementHitsCheck", func(t *testing.T) {
		err := st.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.IncrementBalance(ctx, b.ID, dec("-100"))
		})
		require.ErrorIs(t, err, domain.ErrInsufficientFunds)
	})

	t.Run("DuplicateOwnerCurrency", func(t *testing.T) {
		err := st.CreateAccount(ctx, domain.NewAccount("pg-a-"+run, shared.USD))
		assert.ErrorIs(t, err, domain.ErrAccountExists)
	})

	t.Run("History", func(t *testing.T) {
		history, err := st.ListTransactions(ctx, a.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, b.ID, domain.Deref(history[0].DestinationID))

		err = st.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
			tr, err := tx.LockTransaction(ctx, history[0].ID)
			if err != nil {
				return err
			}
			tr.Type = domain.TypeCanceled
			return tx.UpdateTransaction(ctx, tr)
		})
		require.NoError(t, err)

		got, err := st.GetTransaction(ctx, history[0].ID)
		require.NoError(t, err)
		assert.Equal(t, domain.TypeCanceled, got.Type)
	})
}

func TestPostgresStore_ConcurrentTransfers(t *testing.T) {
	st := connectTestPostgres(t)
	ctx := context.Background()

	run := uuid.NewString()
	a := openAccount(t, st, "", "pg-ca-"+run, shared.EUR, "20")
	b := openAccount(t, st, "", "pg-cb-"+run, shared.EUR, "20")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 40; i++ {
		from, to := a.ID, b.ID
		if i%2 == 1 {
			from, to = to, from
		}
		g.Go(func() error {
			err := transfer(gctx, st, from, to, dec("1.5"))
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return nil
			}
			return err
		})
	}
	require.NoError(t, g.Wait())

	total := balanceOf(t, st, a.ID).Add(balanceOf(t, st, b.ID))
	assert.True(t, total.Equal(decimal.NewFromInt(40)), "total changed: %s", total)
}
