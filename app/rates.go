package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"currency-ledger/domain"
	"currency-ledger/shared"
)

const rateDivisionPrecision = 16

// RateProvider returns how many units of `to` one unit of `from` buys.
type RateProvider interface {
	Rate(ctx context.Context, from, to shared.Currency) (decimal.Decimal, error)
}

// DefaultBaseValues is the value of one unit of each currency in a common base.
func DefaultBaseValues() map[shared.Currency]decimal.Decimal {
	return map[shared.Currency]decimal.Decimal{
		shared.USD: decimal.NewFromInt(65),
		shared.EUR: decimal.NewFromInt(75),
		shared.RUB: decimal.NewFromInt(1),
	}
}

// StaticRates derives cross rates from a fixed table of base values:
// rate(from, to) = base(from) / base(to).
type StaticRates struct {
	base   map[shared.Currency]decimal.Decimal
	logger *zap.Logger
}

func NewStaticRates(base map[shared.Currency]decimal.Decimal, logger *zap.Logger) *StaticRates {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(base) == 0 {
		base = DefaultBaseValues()
	}
	cp := make(map[shared.Currency]decimal.Decimal, len(base))
	for cur, v := range base {
		cp[cur] = v
	}
	return &StaticRates{base: cp, logger: logger}
}

func (r *StaticRates) Rate(ctx context.Context, from, to shared.Currency) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	fromBase, ok := r.base[from]
	if !ok || !fromBase.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no base value for %s", domain.ErrExchangeRate, from)
	}
	toBase, ok := r.base[to]
	if !ok || !toBase.IsPositive() {
		return decimal.Zero, fmt.Errorf("%w: no base value for %s", domain.ErrExchangeRate, to)
	}

	rate := fromBase.DivRound(toBase, rateDivisionPrecision)
	r.logger.Debug("exchange rate", zap.String("from", string(from)), zap.String("to", string(to)), zap.String("rate", rate.String()))
	return rate, nil
}
