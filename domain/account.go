package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"currency-ledger/shared"
)

// Account holds one owner's balance in one currency. Accounts are mutated only
// by the transaction executor; the balance must never drop below zero.
type Account struct {
	ID       string          `json:"id"`
	OwnerID  string          `json:"ownerId"`
	Currency shared.Currency `json:"currency"`
	Balance  decimal.Decimal `json:"balance"`
	Active   bool            `json:"active"`
	Created  time.Time       `json:"created"`
	Updated  time.Time       `json:"updated"`
}

func NewAccount(ownerID string, currency shared.Currency) *Account {
	return &Account{
		OwnerID:  ownerID,
		Currency: currency,
		Balance:  decimal.Zero,
		Active:   true,
	}
}

// Debit subtracts amount and re-validates the non-negative invariant. On
// violation the balance is left untouched.
func (a *Account) Debit(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return NewInternalError("debit amount must not be negative: %s", amount.String())
	}
	newBalance := a.Balance.Sub(amount)
	if newBalance.IsNegative() {
		return fmt.Errorf("%w: account %s has %s %s, requested %s",
			ErrInsufficientFunds, a.ID, a.Balance.String(), a.Currency, amount.String())
	}
	a.Balance = newBalance
	return nil
}

// Credit adds amount. Credits can not violate the invariant.
func (a *Account) Credit(amount decimal.Decimal) {
	a.Balance = a.Balance.Add(amount)
}

// CheckInvariant reports a negative balance as ErrInsufficientFunds.
func (a *Account) CheckInvariant() error {
	if a.Balance.IsNegative() {
		return fmt.Errorf("%w: account %s balance is %s", ErrInsufficientFunds, a.ID, a.Balance.String())
	}
	return nil
}

func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	cp := *a
	return &cp
}
