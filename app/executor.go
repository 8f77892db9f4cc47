package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"currency-ledger/domain"
	"currency-ledger/store"
)

// Executor applies single value movements inside a caller-supplied atomic unit.
type Executor struct {
	logger *zap.Logger
}

func NewExecutor(logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{logger: logger}
}

// Apply debits the source, credits the destination and appends tr to the log.
// The source is locked and re-read first so the balance check sees every
// committed writer. Any error leaves the enclosing unit to be rolled back.
func (e *Executor) Apply(ctx context.Context, tx store.Tx, tr *domain.Transaction) error {
	if tr.IsExecuted() {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExecuted, tr.ID)
	}
	if tr.Value.IsNegative() {
		return domain.NewInternalError("transaction value must not be negative: %s", tr.Value.String())
	}

	if tr.SourceID != nil {
		source, err := tx.LockAccount(ctx, *tr.SourceID)
		if err != nil {
			return err
		}
		if err := source.Debit(tr.Value); err != nil {
			return err
		}
		if err := tx.UpdateBalance(ctx, source); err != nil {
			return err
		}
	}

	if tr.DestinationID != nil {
		if err := tx.IncrementBalance(ctx, *tr.DestinationID, tr.Value); err != nil {
			return err
		}
	}

	if err := tx.InsertTransaction(ctx, tr); err != nil {
		return err
	}

	e.logger.Debug("transaction applied",
		zap.String("id", tr.ID),
		zap.String("type", tr.Type.Name()),
		zap.String("value", tr.Value.String()),
		zap.String("from", domain.Deref(tr.SourceID)),
		zap.String("to", domain.Deref(tr.DestinationID)))
	return nil
}
