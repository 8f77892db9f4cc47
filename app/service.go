package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"currency-ledger/domain"
	"currency-ledger/store"
)

var (
	DefaultCommission = decimal.RequireFromString("0.05")
	DefaultMinValue   = decimal.RequireFromString("0.00001")
)

// Settings are the tunable business parameters of the ledger.
type Settings struct {
	Commission decimal.Decimal
	MinValue   decimal.Decimal
}

func DefaultSettings() Settings {
	return Settings{Commission: DefaultCommission, MinValue: DefaultMinValue}
}

// TransactionService composes user transfers out of executor steps and runs
// each one as a single atomic unit against the store.
type TransactionService struct {
	store    store.Store
	executor *Executor
	masters  *MasterAccounts
	rates    RateProvider
	settings Settings
	logger   *zap.Logger
}

func NewTransactionService(st store.Store, masters *MasterAccounts, rates RateProvider, settings Settings, logger *zap.Logger) *TransactionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.Commission.IsNegative() {
		settings.Commission = DefaultCommission
	}
	if !settings.MinValue.IsPositive() {
		settings.MinValue = DefaultMinValue
	}
	return &TransactionService{
		store:    st,
		executor: NewExecutor(logger),
		masters:  masters,
		rates:    rates,
		settings: settings,
		logger:   logger,
	}
}

// --- Command Handlers ---

// MakeTransaction validates a user request and dispatches it on its type. It
// returns the primary transaction; the commission or second exchange leg is
// reachable through RelatedID.
func (s *TransactionService) MakeTransaction(ctx context.Context, cmd MakeTransactionCommand) (*domain.Transaction, error) {
	if cmd.SourceAccountID == "" || cmd.DestinationAccountID == "" {
		return nil, domain.ErrMissingStocks
	}
	if cmd.SourceAccountID == cmd.DestinationAccountID {
		return nil, domain.ErrSameStock
	}
	if err := domain.ValidateValue(cmd.Value, s.settings.MinValue); err != nil {
		return nil, err
	}

	source, err := s.participant(ctx, cmd.SourceAccountID)
	if err != nil {
		return nil, err
	}
	if cmd.OwnerID != "" && source.OwnerID != cmd.OwnerID {
		// foreign accounts are indistinguishable from missing ones
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, source.ID)
	}
	destination, err := s.participant(ctx, cmd.DestinationAccountID)
	if err != nil {
		return nil, err
	}

	var tr *domain.Transaction
	switch cmd.Type {
	case domain.TypeCommon:
		tr, err = s.makeCommon(ctx, cmd.Value, source, destination)
	case domain.TypeExchange:
		tr, err = s.makeExchange(ctx, cmd.Value, source, destination)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, cmd.Type.Name())
	}
	if err != nil {
		s.logFailure("transaction rejected", err,
			zap.String("type", cmd.Type.Name()),
			zap.String("from", source.ID),
			zap.String("to", destination.ID),
			zap.String("value", cmd.Value.String()))
		return nil, err
	}

	s.logger.Info("transaction made",
		zap.String("id", tr.ID),
		zap.String("type", tr.Type.Name()),
		zap.String("from", source.ID),
		zap.String("to", destination.ID),
		zap.String("value", tr.Value.String()))
	return tr, nil
}

func (s *TransactionService) makeCommon(ctx context.Context, value decimal.Decimal, source, destination *domain.Account) (*domain.Transaction, error) {
	if source.Currency != destination.Currency {
		return nil, domain.ErrCurrencyMismatch
	}
	master, err := s.masters.Resolve(ctx, source.Currency)
	if err != nil {
		return nil, err
	}
	commissionValue := domain.ComputeAmount(value, s.settings.Commission)

	var result *domain.Transaction
	err = s.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockAccounts(ctx, source.ID, destination.ID, master.ID); err != nil {
			return err
		}

		transfer := domain.NewTransaction(domain.TypeCommon, value, source, destination)
		if err := s.executor.Apply(ctx, tx, transfer); err != nil {
			return err
		}

		commission := domain.NewTransaction(domain.TypeCommission, commissionValue, source, master)
		commission.RelatedID = domain.StringPtr(transfer.ID)
		if err := s.executor.Apply(ctx, tx, commission); err != nil {
			return err
		}

		result = transfer
		return nil
	})
	if errors.Is(err, domain.ErrInsufficientFunds) {
		return nil, fmt.Errorf("don't have enough money on stock_from: %w", err)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *TransactionService) makeExchange(ctx context.Context, value decimal.Decimal, source, destination *domain.Account) (*domain.Transaction, error) {
	if source.OwnerID != destination.OwnerID {
		return nil, domain.ErrOwnerMismatch
	}
	if source.Currency == destination.Currency {
		return nil, domain.ErrSameCurrencyExchange
	}
	masterFrom, err := s.masters.Resolve(ctx, source.Currency)
	if err != nil {
		return nil, err
	}
	masterTo, err := s.masters.Resolve(ctx, destination.Currency)
	if err != nil {
		return nil, err
	}

	var result *domain.Transaction
	err = s.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockAccounts(ctx, source.ID, destination.ID, masterFrom.ID, masterTo.ID); err != nil {
			return err
		}

		outgoing := domain.NewTransaction(domain.TypeExchange, value, source, masterFrom)
		if err := s.executor.Apply(ctx, tx, outgoing); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return fmt.Errorf("don't have enough money on stock_from: %w", err)
			}
			return err
		}

		rate, err := s.rates.Rate(ctx, source.Currency, destination.Currency)
		if err != nil {
			return err
		}
		if !rate.IsPositive() {
			return fmt.Errorf("%w: non-positive rate %s for %s -> %s", domain.ErrExchangeRate, rate.String(), source.Currency, destination.Currency)
		}

		incoming := domain.NewTransaction(domain.TypeExchange, domain.ComputeAmount(value, rate), masterTo, destination)
		incoming.RelatedID = domain.StringPtr(outgoing.ID)
		if err := s.executor.Apply(ctx, tx, incoming); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return fmt.Errorf("don't have enough money on master stock: %w: %w", domain.ErrMasterInsufficientFunds, err)
			}
			return err
		}

		outgoing.RelatedID = domain.StringPtr(incoming.ID)
		if err := tx.UpdateTransaction(ctx, outgoing); err != nil {
			return err
		}

		result = outgoing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// RevokeTransaction cancels a common transaction and moves its value back.
// The flip and the compensating transfer commit together or not at all.
// The commission taken by the original transfer is not returned.
func (s *TransactionService) RevokeTransaction(ctx context.Context, cmd RevokeTransactionCommand) (*domain.Transaction, error) {
	if cmd.TransactionID == "" {
		return nil, fmt.Errorf("%w: transaction was never executed", domain.ErrNotRevocable)
	}
	if cmd.OwnerID != "" {
		if _, err := s.GetTransaction(ctx, GetTransactionQuery{OwnerID: cmd.OwnerID, TransactionID: cmd.TransactionID}); err != nil {
			return nil, err
		}
	}

	var revoke *domain.Transaction
	err := s.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		original, err := tx.LockTransaction(ctx, cmd.TransactionID)
		if err != nil {
			return err
		}
		if err := original.Cancel(); err != nil {
			return err
		}
		if err := tx.LockAccounts(ctx, *original.SourceID, *original.DestinationID); err != nil {
			return err
		}
		if err := tx.UpdateTransaction(ctx, original); err != nil {
			return err
		}

		reverse := original.Reverse()
		if err := s.executor.Apply(ctx, tx, reverse); err != nil {
			if errors.Is(err, domain.ErrInsufficientFunds) {
				return fmt.Errorf("%w: not enough money on foreign stock %s", domain.ErrNotRevocable, *original.DestinationID)
			}
			return err
		}

		revoke = reverse
		return nil
	})
	if err != nil {
		s.logFailure("revocation rejected", err, zap.String("transaction", cmd.TransactionID))
		return nil, err
	}

	s.logger.Info("transaction revoked",
		zap.String("transaction", cmd.TransactionID),
		zap.String("revoke", revoke.ID),
		zap.String("value", revoke.Value.String()))
	return revoke, nil
}

// Issue credits an account with value that has no source account.
func (s *TransactionService) Issue(ctx context.Context, cmd IssueCommand) (*domain.Transaction, error) {
	if err := domain.ValidateValue(cmd.Value, s.settings.MinValue); err != nil {
		return nil, err
	}
	account, err := s.participant(ctx, cmd.AccountID)
	if err != nil {
		return nil, err
	}

	issued := domain.NewTransaction(domain.TypeCommon, cmd.Value, nil, account)
	err = s.store.Atomic(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.LockAccounts(ctx, account.ID); err != nil {
			return err
		}
		return s.executor.Apply(ctx, tx, issued)
	})
	if err != nil {
		s.logFailure("issue rejected", err, zap.String("account", account.ID))
		return nil, err
	}

	s.logger.Info("value issued",
		zap.String("id", issued.ID),
		zap.String("account", account.ID),
		zap.String("currency", string(account.Currency)),
		zap.String("value", issued.Value.String()))
	return issued, nil
}

// --- Query Handlers ---

// GetTransaction returns a transaction if the requesting owner holds its
// source or destination. An empty OwnerID skips the check.
func (s *TransactionService) GetTransaction(ctx context.Context, query GetTransactionQuery) (*domain.Transaction, error) {
	tr, err := s.store.GetTransaction(ctx, query.TransactionID)
	if err != nil {
		return nil, err
	}
	if query.OwnerID == "" {
		return tr, nil
	}

	accounts, err := s.store.ListAccounts(ctx, query.OwnerID)
	if err != nil {
		return nil, err
	}
	for _, acc := range accounts {
		if tr.Involves(acc.ID) {
			return tr, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrTransactionNotFound, query.TransactionID)
}

// ListTransactions returns the owner's transactions, oldest first, optionally
// narrowed to one of the owner's accounts and paginated.
func (s *TransactionService) ListTransactions(ctx context.Context, query ListTransactionsQuery) ([]*domain.Transaction, error) {
	accounts, err := s.store.ListAccounts(ctx, query.OwnerID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(accounts))
	for _, acc := range accounts {
		if query.AccountID == "" || acc.ID == query.AccountID {
			ids = append(ids, acc.ID)
		}
	}
	if query.AccountID != "" && len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, query.AccountID)
	}
	if len(ids) == 0 {
		return []*domain.Transaction{}, nil
	}

	history, err := s.store.ListTransactions(ctx, ids...)
	if err != nil {
		return nil, err
	}

	start := query.Skip
	if start < 0 {
		start = 0
	}
	if start >= len(history) {
		return []*domain.Transaction{}, nil
	}
	end := start + query.Limit
	if query.Limit <= 0 || end > len(history) {
		end = len(history)
	}
	return history[start:end], nil
}

// RelatedTransactions returns the transactions linked to id, e.g. the
// commission of a common transfer or the revoke of a canceled one.
func (s *TransactionService) RelatedTransactions(ctx context.Context, query GetTransactionQuery) ([]*domain.Transaction, error) {
	if _, err := s.GetTransaction(ctx, query); err != nil {
		return nil, err
	}
	return s.store.RelatedTransactions(ctx, query.TransactionID)
}

func (s *TransactionService) participant(ctx context.Context, id string) (*domain.Account, error) {
	account, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if !account.Active {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountInactive, id)
	}
	return account, nil
}

func (s *TransactionService) logFailure(msg string, err error, fields ...zap.Field) {
	fields = append(fields, zap.Error(err))
	if domain.IsUserFacing(err) {
		s.logger.Info(msg, fields...)
		return
	}
	s.logger.Error(msg, fields...)
}
