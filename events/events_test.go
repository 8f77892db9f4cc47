package events_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"currency-ledger/domain"
	"currency-ledger/events"
	"currency-ledger/shared"
)

func TestNewBaseEvent(t *testing.T) {
	base := events.NewBaseEvent(events.UnitCommittedType)

	assert.Equal(t, events.UnitCommittedType, base.Type)
	assert.NotEqual(t, uuid.Nil, base.EventID)
	assert.Equal(t, "UTC", base.Timestamp.Location().String())
}

func TestDecodeUnitCommitted(t *testing.T) {
	acc := domain.NewAccount("alice", shared.USD)
	acc.ID = "acc-1"
	acc.Balance = decimal.RequireFromString("8.95")

	tr := domain.NewTransaction(domain.TypeCommon, decimal.NewFromInt(1), acc, nil)
	tr.ID = "tr-1"

	event := events.UnitCommittedEvent{
		BaseEvent:    events.NewBaseEvent(events.UnitCommittedType),
		Accounts:     []*domain.Account{acc},
		Transactions: []*domain.Transaction{tr},
	}
	payload, err := events.Encode(event)
	require.NoError(t, err)

	decoded, err := events.Decode(events.UnitCommittedType, payload)
	require.NoError(t, err)

	unit, ok := decoded.(events.UnitCommittedEvent)
	require.True(t, ok)
	assert.Equal(t, event.EventID, unit.GetBase().EventID)
	require.Len(t, unit.Accounts, 1)
	assert.True(t, unit.Accounts[0].Balance.Equal(acc.Balance))
	require.Len(t, unit.Transactions, 1)
	assert.Equal(t, "acc-1", domain.Deref(unit.Transactions[0].SourceID))
	assert.Nil(t, unit.Transactions[0].DestinationID)
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := events.Decode(events.EventType("Deposited"), []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Deposited")
}

func TestDecodeMalformedPayload(t *testing.T) {
	_, err := events.Decode(events.AccountOpenedType, []byte(`{"account":`))
	require.Error(t, err)
}
