package domain

import (
	"errors"
	"fmt"
)

// DomainError is a ledger rule violation. Internal errors describe deployment
// or caller defects and must not be shown to end users as validation failures.
type DomainError struct {
	message  string
	internal bool
}

func NewDomainError(format string, args ...interface{}) *DomainError {
	return &DomainError{message: fmt.Sprintf(format, args...)}
}

func NewInternalError(format string, args ...interface{}) *DomainError {
	return &DomainError{message: fmt.Sprintf(format, args...), internal: true}
}

func (e *DomainError) Error() string {
	return e.message
}

// Internal reports whether the error is a contract or configuration defect.
func (e *DomainError) Internal() bool {
	return e.internal
}

var (
	ErrInsufficientFunds       = NewDomainError("insufficient funds")
	ErrMasterInsufficientFunds = NewDomainError("not enough money on master account")
	ErrNotRevocable            = NewDomainError("transaction can not be revoked")
	ErrMissingStocks           = NewDomainError("need to provide both source and destination accounts")
	ErrSameStock               = NewDomainError("need different accounts")
	ErrCurrencyMismatch        = NewDomainError("accounts must have same currency")
	ErrOwnerMismatch           = NewDomainError("accounts must belong to same owner")
	ErrSameCurrencyExchange    = NewDomainError("accounts must have different currency")
	ErrInvalidValue            = NewDomainError("invalid transaction value")
	ErrUnsupportedType         = NewDomainError("unsupported transaction type")
	ErrAccountInactive         = NewDomainError("account is not active")
	ErrAccountExists           = NewDomainError("owner already has an account in this currency")
	ErrAccountNotFound         = NewDomainError("account not found")
	ErrTransactionNotFound     = NewDomainError("transaction not found")
	ErrUnknownCurrency         = NewDomainError("currency with such code does not exist")

	ErrAlreadyExecuted = NewInternalError("transaction already executed")
	ErrMasterAccount   = NewInternalError("master account misconfigured")
	ErrLockOrder       = NewInternalError("row locks acquired out of order")
	ErrExchangeRate    = NewInternalError("exchange rate unavailable")
)

// IsUserFacing reports whether err carries a user-facing ledger error.
// Errors that are not ledger errors at all are treated as internal.
func IsUserFacing(err error) bool {
	var de *DomainError
	if !errors.As(err, &de) {
		return false
	}
	return !de.internal
}
