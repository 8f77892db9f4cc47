package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/domain"
)

// run executes one CLI invocation; the store is closed afterwards, so every
// call recovers the ledger from disk.
func run(t *testing.T, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	resetFlags(rootCmd)
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := Execute(context.Background())
	require.NoError(t, err, "ledger %s: %s", strings.Join(args, " "), errOut.String())
	return out.String()
}

func decodeJSON[T any](t *testing.T, raw string) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal([]byte(raw), &v), raw)
	return v
}

func TestCLI_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	configFile := filepath.Join(dir, "ledger.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte(`
storage:
  driver: memory
  wal_dir: `+filepath.Join(dir, "wal")+`
  snapshot_path: `+filepath.Join(dir, "ledger.snapshot")+`
log:
  level: error
`), 0o644))

	out := run(t, "master", "setup", "--config", configFile)
	var pairs []string
	for _, line := range strings.Split(out, "\n") {
		code, id, found := strings.Cut(strings.TrimSpace(line), ": ")
		if found {
			pairs = append(pairs, code+"="+id)
		}
	}
	require.Len(t, pairs, 3, out)
	t.Setenv("LEDGER_MASTER_ACCOUNTS", strings.Join(pairs, ","))

	alice := decodeJSON[domain.Account](t, run(t, "account", "open", "--config", configFile, "--owner", "alice", "--currency", "usd", "--json"))
	bob := decodeJSON[domain.Account](t, run(t, "account", "open", "--config", configFile, "--owner", "bob", "--currency", "USD", "--json"))

	run(t, "transaction", "issue", "--config", configFile, "--account", alice.ID, "--value", "10")
	tr := decodeJSON[domain.Transaction](t, run(t, "transaction", "make", "--config", configFile,
		"--owner", "alice", "--from", alice.ID, "--to", bob.ID, "--value", "1", "--json"))
	assert.Equal(t, domain.TypeCommon, tr.Type)

	accounts := decodeJSON[[]domain.Account](t, run(t, "account", "list", "--config", configFile, "--owner", "alice", "--json"))
	require.Len(t, accounts, 1)
	assert.Equal(t, "8.95", accounts[0].Balance.String())

	revoke := decodeJSON[domain.Transaction](t, run(t, "transaction", "revoke", "--config", configFile, "--owner", "bob", "--id", tr.ID, "--json"))
	assert.Equal(t, domain.TypeRevoke, revoke.Type)

	history := decodeJSON[[]domain.Transaction](t, run(t, "query", "transactions", "--config", configFile, "--owner", "bob", "--json"))
	require.Len(t, history, 2)
	assert.Equal(t, domain.TypeCanceled, history[0].Type)
	assert.Equal(t, domain.TypeRevoke, history[1].Type)

	t.Run("REPL", func(t *testing.T) {
		rootCmd.SetIn(strings.NewReader("query currencies\naccount list --owner alice\nexit\n"))
		defer rootCmd.SetIn(nil)

		out := run(t, "repl", "--config", configFile)
		assert.Contains(t, out, "USD")
		assert.Contains(t, out, "9.95000")
		assert.Contains(t, out, "Exiting REPL.")
	})
}
