// Package bus provides the synchronous publish/subscribe channel between the
// tracking engine and its decoupled observers. Handlers run in registration
// order on the publishing goroutine; a failing handler is isolated from its
// siblings and from the publisher.
package bus

import (
	"log"
	"sync"
)

// Event is one published occurrence delivered to subscribers.
type Event struct {
	Name    string
	Payload any
}

// Handler reacts to a published event.
type Handler func(Event)

// Subscription identifies one handler registration. Handlers are not
// comparable in Go, so removal is by subscription rather than by handler
// value; registering the same handler twice yields two subscriptions.
type Subscription struct {
	name string
	id   int
}

type registration struct {
	id      int
	handler Handler
}

// Bus is an ordered, per-event-name subscriber list. The zero value is not
// usable; construct with New.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]registration
	nextID   int

	// deliverMu serializes deliveries so handler runs from two concurrent
	// publishes never interleave. Handlers must not publish reentrantly.
	deliverMu sync.Mutex
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]registration)}
}

// Subscribe appends the handler to the named event's list and returns its
// subscription. There is no deduplication and no priority ordering.
func (b *Bus) Subscribe(name string, handler Handler) *Subscription {
	if handler == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.handlers[name] = append(b.handlers[name], registration{id: b.nextID, handler: handler})
	return &Subscription{name: name, id: b.nextID}
}

// Unsubscribe removes the registration identified by sub. It is a no-op for
// nil, unknown, or already-removed subscriptions.
func (b *Bus) Unsubscribe(sub *Subscription) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	list := b.handlers[sub.name]
	for i, reg := range list {
		if reg.id == sub.id {
			b.handlers[sub.name] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish invokes every handler registered for the named event,
// synchronously and in registration order. A handler panic is recovered and
// logged without stopping later handlers or reaching the publisher. With no
// subscribers the call is a no-op; there is no replay, so a subscriber
// registered after a publish never sees it.
func (b *Bus) Publish(name string, payload any) {
	b.mu.RLock()
	list := b.handlers[name]
	snapshot := make([]registration, len(list))
	copy(snapshot, list)
	b.mu.RUnlock()

	if len(snapshot) == 0 {
		return
	}

	b.deliverMu.Lock()
	defer b.deliverMu.Unlock()

	evt := Event{Name: name, Payload: payload}
	for _, reg := range snapshot {
		deliver(evt, reg.handler)
	}
}

// Clear drops every subscription for every event.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]registration)
}

func deliver(evt Event, handler Handler) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event handler panic: event=%s err=%v", evt.Name, r)
		}
	}()
	handler(evt)
}
