package app

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"currency-ledger/domain"
	"currency-ledger/shared"
	"currency-ledger/store"
)

// AccountService manages accounts and the currency catalog. Balances are
// never touched here.
type AccountService struct {
	store      store.Store
	currencies map[shared.Currency]string
	logger     *zap.Logger
}

func NewAccountService(st store.Store, currencies []shared.CurrencyInfo, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := make(map[shared.Currency]string, len(currencies))
	for _, c := range currencies {
		catalog[c.Code] = c.Name
	}
	return &AccountService{store: st, currencies: catalog, logger: logger}
}

func (s *AccountService) OpenAccount(ctx context.Context, cmd OpenAccountCommand) (*domain.Account, error) {
	if cmd.OwnerID == "" {
		return nil, domain.NewDomainError("owner is required")
	}
	currency := shared.NormalizeCurrency(string(cmd.Currency))
	if _, ok := s.currencies[currency]; !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownCurrency, cmd.Currency)
	}

	account := domain.NewAccount(cmd.OwnerID, currency)
	if err := s.store.CreateAccount(ctx, account); err != nil {
		return nil, err
	}

	s.logger.Info("account opened",
		zap.String("id", account.ID),
		zap.String("owner", account.OwnerID),
		zap.String("currency", string(account.Currency)))
	return account, nil
}

func (s *AccountService) ListAccounts(ctx context.Context, ownerID string) ([]*domain.Account, error) {
	return s.store.ListAccounts(ctx, ownerID)
}

// GetAccount hides accounts of other owners behind ErrAccountNotFound.
func (s *AccountService) GetAccount(ctx context.Context, ownerID, id string) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if ownerID != "" && account.OwnerID != ownerID {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	return account, nil
}

func (s *AccountService) SetActive(ctx context.Context, cmd SetAccountActiveCommand) (*domain.Account, error) {
	if _, err := s.GetAccount(ctx, cmd.OwnerID, cmd.AccountID); err != nil {
		return nil, err
	}
	account, err := s.store.SetAccountActive(ctx, cmd.AccountID, cmd.Active)
	if err != nil {
		return nil, err
	}
	s.logger.Info("account state changed", zap.String("id", account.ID), zap.Bool("active", account.Active))
	return account, nil
}

// Currencies lists the catalog sorted by code.
func (s *AccountService) Currencies() []shared.CurrencyInfo {
	out := make([]shared.CurrencyInfo, 0, len(s.currencies))
	for code, name := range s.currencies {
		out = append(out, shared.CurrencyInfo{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// SetupMasterAccounts opens one account per catalog currency for ownerID,
// reusing accounts that already exist. The result is suitable for the
// master_accounts configuration key.
func (s *AccountService) SetupMasterAccounts(ctx context.Context, ownerID string) (map[shared.Currency]string, error) {
	existing, err := s.store.ListAccounts(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	ids := make(map[shared.Currency]string, len(s.currencies))
	for _, acc := range existing {
		ids[acc.Currency] = acc.ID
	}

	for _, info := range s.Currencies() {
		if _, ok := ids[info.Code]; ok {
			continue
		}
		account, err := s.OpenAccount(ctx, OpenAccountCommand{OwnerID: ownerID, Currency: info.Code})
		if err != nil {
			return nil, err
		}
		ids[info.Code] = account.ID
	}
	return ids, nil
}
