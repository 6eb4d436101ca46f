package events

import (
	"sync"
	"time"
)

// Handler receives published events. Handlers run synchronously on the
// publishing goroutine and must not block.
type Handler func(*Event)

// Bus fans events out to subscribers by type.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[EventType]map[int]Handler
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType]map[int]Handler)}
}

// Subscribe registers h for eventType and returns a function that removes it.
func (b *Bus) Subscribe(eventType EventType, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[int]Handler)
	}
	b.subs[eventType][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[eventType], id)
		})
	}
}

// Emit publishes an event to every subscriber of its type.
func (b *Bus) Emit(eventType EventType, module string, data map[string]interface{}) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
		Module:    module,
	}

	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[eventType]))
	for _, h := range b.subs[eventType] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

// Subscribers returns the number of handlers registered for eventType.
func (b *Bus) Subscribers(eventType EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
