package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType tags a transaction. The set is closed.
type TransactionType string

const (
	TypeCommon     TransactionType = "CMN"
	TypeExchange   TransactionType = "EXC"
	TypeCommission TransactionType = "CMS"
	TypeCanceled   TransactionType = "CNL"
	TypeRevoke     TransactionType = "RVK"
)

var typeNames = map[TransactionType]string{
	TypeCommon:     "common",
	TypeExchange:   "exchange",
	TypeCommission: "commission",
	TypeCanceled:   "canceled",
	TypeRevoke:     "revoke",
}

func (t TransactionType) Name() string {
	if name, ok := typeNames[t]; ok {
		return name
	}
	return string(t)
}

func (t TransactionType) Valid() bool {
	_, ok := typeNames[t]
	return ok
}

// ParseTransactionType accepts either the code ("CMN") or the name ("common").
func ParseTransactionType(s string) (TransactionType, error) {
	s = strings.TrimSpace(s)
	for code, name := range typeNames {
		if strings.EqualFold(s, string(code)) || strings.EqualFold(s, name) {
			return code, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedType, s)
}

// Transaction is a single value movement from one account to another. Either
// side may be absent: no source means value creation, no destination means
// value destruction. Once executed a transaction is never changed, except for
// a common transaction being canceled by revocation.
type Transaction struct {
	ID            string          `json:"id"`
	Created       time.Time       `json:"created"`
	Updated       time.Time       `json:"updated"`
	SourceID      *string         `json:"sourceId"`
	DestinationID *string         `json:"destinationId"`
	Value         decimal.Decimal `json:"value"`
	Type          TransactionType `json:"type"`
	RelatedID     *string         `json:"relatedId"`
}

func NewTransaction(typ TransactionType, value decimal.Decimal, source, destination *Account) *Transaction {
	tr := &Transaction{Type: typ, Value: value}
	if source != nil {
		tr.SourceID = StringPtr(source.ID)
	}
	if destination != nil {
		tr.DestinationID = StringPtr(destination.ID)
	}
	return tr
}

// IsExecuted reports whether the transaction has been assigned an identity.
func (t *Transaction) IsExecuted() bool {
	return t.ID != ""
}

// CheckRevocable enforces that only executed common transactions with both
// sides present may be revoked.
func (t *Transaction) CheckRevocable() error {
	if t.Type != TypeCommon {
		return fmt.Errorf("%w: only common transactions can be revoked, %s is %s", ErrNotRevocable, t.ID, t.Type.Name())
	}
	if t.SourceID == nil || t.DestinationID == nil {
		return fmt.Errorf("%w: transaction %s has no source or destination", ErrNotRevocable, t.ID)
	}
	if !t.IsExecuted() {
		return fmt.Errorf("%w: transaction was never executed", ErrNotRevocable)
	}
	return nil
}

// Cancel flips a revocable transaction to canceled.
func (t *Transaction) Cancel() error {
	if err := t.CheckRevocable(); err != nil {
		return err
	}
	t.Type = TypeCanceled
	return nil
}

// Reverse builds the compensating revoke transaction for t.
func (t *Transaction) Reverse() *Transaction {
	return &Transaction{
		Type:          TypeRevoke,
		Value:         t.Value,
		SourceID:      copyPtr(t.DestinationID),
		DestinationID: copyPtr(t.SourceID),
		RelatedID:     StringPtr(t.ID),
	}
}

// Involves reports whether accountID is the source or destination of t.
func (t *Transaction) Involves(accountID string) bool {
	return (t.SourceID != nil && *t.SourceID == accountID) ||
		(t.DestinationID != nil && *t.DestinationID == accountID)
}

func (t *Transaction) Clone() *Transaction {
	if t == nil {
		return nil
	}
	cp := *t
	cp.SourceID = copyPtr(t.SourceID)
	cp.DestinationID = copyPtr(t.DestinationID)
	cp.RelatedID = copyPtr(t.RelatedID)
	return &cp
}

func (t *Transaction) String() string {
	return fmt.Sprintf("%s %s %s %s -> %s", t.ID, t.Type.Name(), t.Value.StringFixed(Scale), Deref(t.SourceID), Deref(t.DestinationID))
}

func StringPtr(s string) *string {
	return &s
}

// Deref returns the pointed-to string or "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func copyPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
