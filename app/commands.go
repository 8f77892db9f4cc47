package app

import (
	"github.com/shopspring/decimal"

	"currency-ledger/domain"
	"currency-ledger/shared"
)

// --- Command Struct Definitions ---
// Commands arrive already authenticated; OwnerID, when set, is the requesting
// owner and restricts which accounts and transactions are visible.

type OpenAccountCommand struct {
	OwnerID  string
	Currency shared.Currency
}

type SetAccountActiveCommand struct {
	OwnerID   string
	AccountID string
	Active    bool
}

type MakeTransactionCommand struct {
	OwnerID              string
	Type                 domain.TransactionType
	Value                decimal.Decimal
	SourceAccountID      string
	DestinationAccountID string
}

type RevokeTransactionCommand struct {
	OwnerID       string
	TransactionID string
}

// IssueCommand creates value on an account out of nothing, e.g. to fund a
// master account.
type IssueCommand struct {
	AccountID string
	Value     decimal.Decimal
}

// --- Query Structures ---

type GetTransactionQuery struct {
	OwnerID       string
	TransactionID string
}

type ListTransactionsQuery struct {
	OwnerID   string
	AccountID string
	Limit     int
	Skip      int
}
