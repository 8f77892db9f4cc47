package events

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

// BaseEvent is embedded in every journal event.
type BaseEvent struct {
	EventID   uuid.UUID `json:"eventId"`
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
}

type Event interface {
	GetBase() BaseEvent
}

func (e BaseEvent) GetBase() BaseEvent {
	return e
}

const (
	AccountOpenedType  EventType = "AccountOpened"
	AccountUpdatedType EventType = "AccountUpdated"
	UnitCommittedType  EventType = "UnitCommitted"
)

func NewBaseEvent(eventType EventType) BaseEvent {
	return BaseEvent{
		EventID:   uuid.New(),
		Timestamp: time.Now().UTC(),
		Type:      eventType,
	}
}
