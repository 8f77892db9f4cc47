package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/domain"
	"currency-ledger/shared"
)

func executedCommon(t *testing.T) *domain.Transaction {
	t.Helper()
	source := domain.NewAccount("owner-1", shared.USD)
	source.ID = "acc-source"
	dest := domain.NewAccount("owner-2", shared.USD)
	dest.ID = "acc-dest"

	tr := domain.NewTransaction(domain.TypeCommon, dec("5"), source, dest)
	tr.ID = "tr-1"
	return tr
}

func TestParseTransactionType(t *testing.T) {
	for in, want := range map[string]domain.TransactionType{
		"common":   domain.TypeCommon,
		"CMN":      domain.TypeCommon,
		"Exchange": domain.TypeExchange,
		"exc":      domain.TypeExchange,
		" revoke ": domain.TypeRevoke,
	} {
		got, err := domain.ParseTransactionType(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := domain.ParseTransactionType("refund")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestTransaction_CheckRevocable(t *testing.T) {
	t.Run("Common", func(t *testing.T) {
		assert.NoError(t, executedCommon(t).CheckRevocable())
	})

	t.Run("OtherTypes", func(t *testing.T) {
		for _, typ := range []domain.TransactionType{domain.TypeExchange, domain.TypeCommission, domain.TypeCanceled, domain.TypeRevoke} {
			tr := executedCommon(t)
			tr.Type = typ
			assert.ErrorIs(t, tr.CheckRevocable(), domain.ErrNotRevocable, typ.Name())
		}
	})

	t.Run("MissingSide", func(t *testing.T) {
		tr := executedCommon(t)
		tr.SourceID = nil
		assert.ErrorIs(t, tr.CheckRevocable(), domain.ErrNotRevocable)
	})

	t.Run("NotExecuted", func(t *testing.T) {
		tr := executedCommon(t)
		tr.ID = ""
		assert.ErrorIs(t, tr.CheckRevocable(), domain.ErrNotRevocable)
	})
}

func TestTransaction_CancelAndReverse(t *testing.T) {
	tr := executedCommon(t)

	require.NoError(t, tr.Cancel())
	assert.Equal(t, domain.TypeCanceled, tr.Type)
	assert.ErrorIs(t, tr.Cancel(), domain.ErrNotRevocable)

	rev := tr.Reverse()
	assert.False(t, rev.IsExecuted())
	assert.Equal(t, domain.TypeRevoke, rev.Type)
	assert.Equal(t, "acc-dest", domain.Deref(rev.SourceID))
	assert.Equal(t, "acc-source", domain.Deref(rev.DestinationID))
	assert.Equal(t, "tr-1", domain.Deref(rev.RelatedID))
	assert.True(t, rev.Value.Equal(tr.Value))

	// the reverse owns its pointers
	*rev.SourceID = "changed"
	assert.Equal(t, "acc-dest", domain.Deref(tr.DestinationID))
}

func TestTransaction_Involves(t *testing.T) {
	tr := executedCommon(t)
	assert.True(t, tr.Involves("acc-source"))
	assert.True(t, tr.Involves("acc-dest"))
	assert.False(t, tr.Involves("acc-other"))

	issued := domain.NewTransaction(domain.TypeCommon, dec("1"), nil, &domain.Account{ID: "acc-dest"})
	assert.False(t, issued.Involves(""))
	assert.True(t, issued.Involves("acc-dest"))
}

func TestSnapshot_RoundTrip(t *testing.T) {
	acc := domain.NewAccount("owner-1", shared.USD)
	acc.ID = "acc-1"
	acc.Balance = dec("12.34567")
	tr := executedCommon(t)

	snap, err := domain.CreateSnapshot(7, map[string]*domain.Account{acc.ID: acc}, map[string]*domain.Transaction{tr.ID: tr})
	require.NoError(t, err)
	assert.Equal(t, uint64(7), snap.Index)

	state, err := domain.ApplySnapshot(snap)
	require.NoError(t, err)
	require.Len(t, state.Accounts, 1)
	require.Len(t, state.Transactions, 1)
	assert.True(t, state.Accounts[0].Balance.Equal(acc.Balance))
	assert.Equal(t, "acc-dest", domain.Deref(state.Transactions[0].DestinationID))

	acc.Balance = dec("-1")
	corrupt, err := domain.CreateSnapshot(8, map[string]*domain.Account{acc.ID: acc}, nil)
	require.NoError(t, err)
	_, err = domain.ApplySnapshot(corrupt)
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}
