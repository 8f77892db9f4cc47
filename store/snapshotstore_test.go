package store_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/domain"
	"currency-ledger/shared"
	"currency-ledger/store"
)

func newSnapshot(t *testing.T, index uint64, balance string) *domain.Snapshot {
	t.Helper()
	acc := domain.NewAccount("owner-1", shared.USD)
	acc.ID = "acc-1"
	acc.Balance = dec(balance)
	snap, err := domain.CreateSnapshot(index, map[string]*domain.Account{acc.ID: acc}, nil)
	require.NoError(t, err)
	return snap
}

func testSnapshotStore(t *testing.T, ss store.SnapshotStore) {
	_, found, err := ss.GetLatestSnapshot()
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, ss.SaveSnapshot(newSnapshot(t, 10, "1")))
	require.NoError(t, ss.SaveSnapshot(newSnapshot(t, 20, "2")))

	snap, found, err := ss.GetLatestSnapshot()
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, uint64(20), snap.Index)

	state, err := domain.ApplySnapshot(snap)
	require.NoError(t, err)
	require.Len(t, state.Accounts, 1)
	assert.True(t, state.Accounts[0].Balance.Equal(dec("2")))

	assert.Error(t, ss.SaveSnapshot(nil))
}

func TestInMemorySnapshotStore(t *testing.T) {
	ss := store.NewInMemorySnapshotStore()
	testSnapshotStore(t, ss)

	t.Run("ReturnsCopy", func(t *testing.T) {
		snap, _, err := ss.GetLatestSnapshot()
		require.NoError(t, err)
		snap.State[0] = 'X'

		again, _, err := ss.GetLatestSnapshot()
		require.NoError(t, err)
		_, err = domain.ApplySnapshot(again)
		assert.NoError(t, err)
	})
}

func TestFileSnapshotStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.snapshot")
	ss, err := store.NewFileSnapshotStore(path)
	require.NoError(t, err)
	testSnapshotStore(t, ss)

	t.Run("SurvivesReopen", func(t *testing.T) {
		reopened, err := store.NewFileSnapshotStore(path)
		require.NoError(t, err)
		snap, found, err := reopened.GetLatestSnapshot()
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, uint64(20), snap.Index)

		_, err = os.Stat(path + ".tmp")
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("Corrupt", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))
		_, _, err := ss.GetLatestSnapshot()
		assert.Error(t, err)
	})

	t.Run("PathRequired", func(t *testing.T) {
		_, err := store.NewFileSnapshotStore("")
		assert.Error(t, err)
	})
}
