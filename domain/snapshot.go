package domain

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Snapshot is a serialized copy of the whole ledger state taken after the
// journal entry with the given index.
type Snapshot struct {
	Index     uint64    `json:"index"`
	State     []byte    `json:"state"`
	Timestamp time.Time `json:"timestamp"`
}

// LedgerState is the decoded content of a snapshot.
type LedgerState struct {
	Accounts     []*Account     `json:"accounts"`
	Transactions []*Transaction `json:"transactions"`
}

func CreateSnapshot(index uint64, accounts map[string]*Account, transactions map[string]*Transaction) (*Snapshot, error) {
	state := LedgerState{
		Accounts:     make([]*Account, 0, len(accounts)),
		Transactions: make([]*Transaction, 0, len(transactions)),
	}
	for _, acc := range accounts {
		state.Accounts = append(state.Accounts, acc)
	}
	for _, tr := range transactions {
		state.Transactions = append(state.Transactions, tr)
	}
	sort.Slice(state.Accounts, func(i, j int) bool { return state.Accounts[i].ID < state.Accounts[j].ID })
	sort.Slice(state.Transactions, func(i, j int) bool { return state.Transactions[i].ID < state.Transactions[j].ID })

	stateJSON, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal ledger state for snapshot at index %d: %w", index, err)
	}

	return &Snapshot{
		Index:     index,
		State:     stateJSON,
		Timestamp: time.Now().UTC(),
	}, nil
}

func ApplySnapshot(snap *Snapshot) (*LedgerState, error) {
	var state LedgerState
	if err := json.Unmarshal(snap.State, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot state at index %d: %w", snap.Index, err)
	}
	for _, acc := range state.Accounts {
		if err := acc.CheckInvariant(); err != nil {
			return nil, fmt.Errorf("snapshot at index %d is corrupt: %w", snap.Index, err)
		}
	}
	return &state, nil
}
