package events

import "github.com/metron-labs/metron/pkg/metron/v1/events"

// NoOpEventBus is a default implementation of the public events.Bus interface.
// It performs no actions when its Emit method is called. This implementation
// is used as a fallback when no event handling mechanism is configured for the
// runtime, so components emitting events never need to nil-check the bus.
type NoOpEventBus struct{}

// NewNoOpEventBus creates a new instance of the NoOpEventBus.
func NewNoOpEventBus() events.Bus {
	return &NoOpEventBus{}
}

// Emit implements the events.Bus interface method. It discards the event.
func (n *NoOpEventBus) Emit(event events.Event) {
	// Intentionally does nothing.
}

var _ events.Bus = (*NoOpEventBus)(nil)
