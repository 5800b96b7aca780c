package handlers

import (
	"sync"
)

// AllEvents subscribes a handler to every event type. Such handlers receive an
// Event rather than the bare payload.
const AllEvents = "*"

// EventBus delivers notifications synchronously, in subscription order, on the
// goroutine that publishes them.
type EventBus struct {
	subscribers map[string][]EventHandler
	mutex       sync.RWMutex
}

type EventHandler func(data interface{})

type Event struct {
	Type string
	Data interface{}
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
	}
}

func (bus *EventBus) Subscribe(eventType string, handler EventHandler) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	bus.subscribers[eventType] = append(bus.subscribers[eventType], handler)
}

func (bus *EventBus) Publish(eventType string, data interface{}) {
	bus.mutex.RLock()
	handlers := append([]EventHandler(nil), bus.subscribers[eventType]...)
	all := append([]EventHandler(nil), bus.subscribers[AllEvents]...)
	bus.mutex.RUnlock()

	for _, handler := range handlers {
		handler(data)
	}
	for _, handler := range all {
		handler(Event{Type: eventType, Data: data})
	}
}

func (bus *EventBus) Unsubscribe(eventType string) {
	bus.mutex.Lock()
	defer bus.mutex.Unlock()
	delete(bus.subscribers, eventType)
}
