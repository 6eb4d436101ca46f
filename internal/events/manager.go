package events

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

// Manager publishes typed events to the bus and logs them
type Manager struct {
	bus *Bus
	log zerolog.Logger
}

// NewManager creates a new event manager
func NewManager(bus *Bus, log zerolog.Logger) *Manager {
	return &Manager{
		bus: bus,
		log: log.With().Str("service", "events").Logger(),
	}
}

// Bus returns the underlying bus
func (m *Manager) Bus() *Bus {
	return m.bus
}

// EmitTyped emits an event with typed data to the bus and logs it.
// Progress events are logged at debug level.
func (m *Manager) EmitTyped(module string, data EventData) {
	eventType := data.EventType()
	dataMap := convertEventDataToMap(data)

	m.bus.Emit(eventType, module, dataMap)

	logEvent := m.log.Info()
	if eventType == SearchProgress {
		logEvent = m.log.Debug()
	}
	logEvent.
		Str("event_type", string(eventType)).
		Str("module", module).
		Interface("data", dataMap).
		Msg("Event emitted")
}

// EmitError emits an error event
func (m *Manager) EmitError(module string, err error, context map[string]interface{}) {
	m.EmitTyped(module, &ErrorEventData{
		Error:   err.Error(),
		Context: context,
	})
}

// convertEventDataToMap converts typed EventData to the map carried on the bus
func convertEventDataToMap(data EventData) map[string]interface{} {
	if data == nil {
		return nil
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var result map[string]interface{}
	if err := json.Unmarshal(jsonBytes, &result); err != nil {
		return nil
	}
	return result
}
