package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager wraps a Bus with structured logging of every emitted event,
// ported from the trading engine's event manager and renamed to the
// sprinkler vocabulary above.
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager builds a Manager over bus.
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Emit publishes an event to the bus and logs it at info level.
func (m *Manager) Emit(eventType EventType, module string, data map[string]interface{}) {
	m.bus.Emit(eventType, module, data)

	eventJSON, _ := json.Marshal(Event{Type: eventType, Module: module, Data: data})
	m.log.Info().
		Str("event_type", string(eventType)).
		Str("module", module).
		RawJSON("event", eventJSON).
		Msg("event emitted")
}

// EmitError emits an ErrorOccurred event carrying err's message and any
// extra context.
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	data := map[string]interface{}{
		"error":   err.Error(),
		"context": context,
	}
	m.Emit(ErrorOccurred, module, data)
}

// Subscribe registers handler for eventType; see Bus.Subscribe.
func (m *Manager) Subscribe(eventType EventType, handler EventHandler) Subscription {
	return m.bus.Subscribe(eventType, handler)
}

// Unsubscribe removes a previously registered handler; see Bus.Unsubscribe.
func (m *Manager) Unsubscribe(sub Subscription) {
	m.bus.Unsubscribe(sub)
}
