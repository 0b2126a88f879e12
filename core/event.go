package core

import "context"

type IEvent interface {
	GetId() string // Returns the unique identifier of the event.
}

// EventSink receives stage events emitted by the pipelines. Implementations must not block.
type EventSink interface {
	Publish(packet *EventPacket)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(packet *EventPacket)

func (f EventSinkFunc) Publish(packet *EventPacket) {
	f(packet)
}

// Emit publishes event for sessionID when sink is non-nil.
func Emit(ctx context.Context, sink EventSink, sessionID string, event IEvent, relayer string) {
	if sink == nil {
		return
	}
	select {
	case <-ctx.Done():
		return
	default:
	}
	sink.Publish(NewEventPacket(event, sessionID, relayer))
}
