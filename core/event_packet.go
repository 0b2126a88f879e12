package core

import (
	"time"

	"github.com/google/uuid"
)

type EventPacket struct {
	Event     IEvent
	SessionID string    // Session the event belongs to.
	Uid       string    // Unique identifier for tracking the event packet.
	Relayer   string    // Identifier of the handler that emitted the event.
	Timestamp time.Time // Emission time.
}

func NewEventPacket(event IEvent, sessionID string, relayer string) *EventPacket {
	uid := uuid.New().String() // Generate a unique identifier for the event packet.
	return &EventPacket{
		Event:     event,
		SessionID: sessionID,
		Uid:       uid,
		Relayer:   relayer,
		Timestamp: time.Now().UTC(),
	}
}
