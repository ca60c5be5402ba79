// Package events carries store and cache notifications to interested
// subscribers. Publication is synchronous on the caller's goroutine.
package events

import (
	"sync"
	"time"
)

// EventType represents the type of memory-bank event.
type EventType string

const (
	EventMemoryPut        EventType = "memory.put"
	EventMemoryDeleted    EventType = "memory.deleted"
	EventRetrievalSkipped EventType = "retrieval.skipped"
	EventCacheHit         EventType = "cache.hit"
	EventCacheMiss        EventType = "cache.miss"
	EventCacheStored      EventType = "cache.stored"
	EventPruneExpired     EventType = "prune.expired"
)

// Event represents a notification with associated data.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Category  string
	Key       string
	Data      map[string]interface{}
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus manages event publication and subscription.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers. A nil bus drops the
// event, so components can publish unconditionally.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}

	eb.mu.RLock()
	specific := append([]EventHandler(nil), eb.handlers[event.Type]...)
	all := append([]EventHandler(nil), eb.allHandlers...)
	eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, handler := range specific {
		handler(event)
	}
	for _, handler := range all {
		handler(event)
	}
}

// PublishKey publishes an event for one (category, key) pair.
func (eb *EventBus) PublishKey(eventType EventType, category, key string) {
	eb.Publish(Event{
		Type:     eventType,
		Category: category,
		Key:      key,
	})
}

// PublishWithData publishes an event with associated data.
func (eb *EventBus) PublishWithData(eventType EventType, category, key string, data map[string]interface{}) {
	eb.Publish(Event{
		Type:     eventType,
		Category: category,
		Key:      key,
		Data:     data,
	})
}
