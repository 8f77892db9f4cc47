package store

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"currency-ledger/domain"
)

// Store holds accounts and the transaction log. All balance mutations happen
// inside Atomic; the remaining methods are committed-state reads and account
// management used by the account collaborator.
type Store interface {
	// Atomic runs fn inside one atomic unit. If fn returns an error, panics, or
	// ctx is done before commit, every mutation made through tx is discarded.
	Atomic(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	CreateAccount(ctx context.Context, account *domain.Account) error
	GetAccount(ctx context.Context, id string) (*domain.Account, error)
	ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error)
	SetAccountActive(ctx context.Context, id string, active bool) (*domain.Account, error)

	GetTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// ListTransactions returns transactions having any of accountIDs as source
	// or destination, oldest first.
	ListTransactions(ctx context.Context, accountIDs ...string) ([]*domain.Transaction, error)
	// RelatedTransactions returns transactions whose related reference points at id.
	RelatedTransactions(ctx context.Context, id string) ([]*domain.Transaction, error)

	Close() error
}

// Tx is the view of the store inside one atomic unit. Row locks are held
// until the unit commits or rolls back. Transaction rows must be locked before
// any account row, and account rows in ascending id order.
type Tx interface {
	// LockAccounts acquires exclusive access to every given account in id order.
	LockAccounts(ctx context.Context, ids ...string) error
	// LockAccount acquires exclusive access to one account and re-reads it,
	// including changes made earlier in this unit.
	LockAccount(ctx context.Context, id string) (*domain.Account, error)
	// UpdateBalance writes back the balance of a locked account.
	UpdateBalance(ctx context.Context, account *domain.Account) error
	// IncrementBalance atomically adds delta to the account balance.
	IncrementBalance(ctx context.Context, id string, delta decimal.Decimal) error

	LockTransaction(ctx context.Context, id string) (*domain.Transaction, error)
	// InsertTransaction assigns identity and timestamps to tr and appends it.
	InsertTransaction(ctx context.Context, tr *domain.Transaction) error
	// UpdateTransaction persists the type and related reference of tr.
	UpdateTransaction(ctx context.Context, tr *domain.Transaction) error
}

// lockOrder tracks account locks held by one unit and enforces the global
// acquisition order.
type lockOrder struct {
	accounts     map[string]bool
	transactions map[string]bool
	maxAccount   string
}

func newLockOrder() *lockOrder {
	return &lockOrder{
		accounts:     make(map[string]bool),
		transactions: make(map[string]bool),
	}
}

// pendingAccounts returns the sorted, de-duplicated ids not yet held, or
// ErrLockOrder if acquiring them would break the global order.
func (o *lockOrder) pendingAccounts(ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	pending := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || o.accounts[id] || seen[id] {
			continue
		}
		seen[id] = true
		pending = append(pending, id)
	}
	sort.Strings(pending)
	if len(pending) > 0 && o.maxAccount != "" && pending[0] < o.maxAccount {
		return nil, domain.ErrLockOrder
	}
	return pending, nil
}

func (o *lockOrder) holdAccount(id string) {
	o.accounts[id] = true
	if id > o.maxAccount {
		o.maxAccount = id
	}
}

func (o *lockOrder) canLockTransaction(id string) error {
	if o.transactions[id] {
		return nil
	}
	if len(o.accounts) > 0 {
		return domain.ErrLockOrder
	}
	return nil
}
