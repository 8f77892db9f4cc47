package events

import (
	"encoding/json"
	"fmt"

	"currency-ledger/domain"
)

// AccountOpenedEvent records a newly opened account.
type AccountOpenedEvent struct {
	BaseEvent
	Account *domain.Account `json:"account"`
}

// AccountUpdatedEvent records a change outside the transaction flow, such as
// activation or deactivation.
type AccountUpdatedEvent struct {
	BaseEvent
	Account *domain.Account `json:"account"`
}

// UnitCommittedEvent carries the full post-commit state of every account and
// transaction touched by one atomic unit.
type UnitCommittedEvent struct {
	BaseEvent
	Accounts     []*domain.Account     `json:"accounts"`
	Transactions []*domain.Transaction `json:"transactions"`
}

// Encode serializes an event for the journal.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}

// Decode restores an event of the given type from its journal payload.
func Decode(eventType EventType, payload []byte) (Event, error) {
	switch eventType {
	case AccountOpenedType:
		var e AccountOpenedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case AccountUpdatedType:
		var e AccountUpdatedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	case UnitCommittedType:
		var e UnitCommittedEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", eventType)
	}
}
