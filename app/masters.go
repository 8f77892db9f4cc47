package app

import (
	"context"
	"errors"
	"fmt"

	"currency-ledger/domain"
	"currency-ledger/shared"
	"currency-ledger/store"
)

// MasterAccounts maps each currency to its pooling account, the system-side
// counterparty of commissions and conversions.
type MasterAccounts struct {
	store store.Store
	ids   map[shared.Currency]string
}

func NewMasterAccounts(st store.Store, ids map[shared.Currency]string) *MasterAccounts {
	cp := make(map[shared.Currency]string, len(ids))
	for cur, id := range ids {
		cp[cur] = id
	}
	return &MasterAccounts{store: st, ids: cp}
}

// Resolve returns the master account for currency. A missing mapping, a missing
// account or a currency mismatch is a deployment error (domain.ErrMasterAccount).
func (m *MasterAccounts) Resolve(ctx context.Context, currency shared.Currency) (*domain.Account, error) {
	id, ok := m.ids[currency]
	if !ok || id == "" {
		return nil, fmt.Errorf("%w: didn't find master account for currency %s", domain.ErrMasterAccount, currency)
	}

	account, err := m.store.GetAccount(ctx, id)
	if errors.Is(err, domain.ErrAccountNotFound) {
		return nil, fmt.Errorf("%w: master account %s for currency %s does not exist", domain.ErrMasterAccount, id, currency)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load master account %s: %w", id, err)
	}
	if account.Currency != currency {
		return nil, fmt.Errorf("%w: master account for %s has another currency - %s", domain.ErrMasterAccount, currency, account.Currency)
	}
	return account, nil
}

// IDs returns a copy of the configured mapping.
func (m *MasterAccounts) IDs() map[shared.Currency]string {
	cp := make(map[shared.Currency]string, len(m.ids))
	for cur, id := range m.ids {
		cp[cur] = id
	}
	return cp
}
