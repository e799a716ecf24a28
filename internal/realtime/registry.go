package realtime

import (
	"sync"
)

// EventKind names the four notifications a Manager emits.
type EventKind string

const (
	EventOpen    EventKind = "open"
	EventMessage EventKind = "message"
	EventError   EventKind = "error"
	EventClose   EventKind = "close"
)

// Event is delivered to listeners. Message is set for EventMessage, Err for
// EventError and for EventClose when the close had a cause.
type Event struct {
	Kind    EventKind
	Message *Message
	Err     error
}

// Listener receives events of the kind it was registered for.
type Listener func(Event)

// Subscription identifies one registration. Registering the same function
// twice yields two subscriptions and two invocations per event.
type Subscription struct {
	kind EventKind
	id   uint64
}

// Kind returns the event kind the subscription listens to.
func (s Subscription) Kind() EventKind { return s.kind }

type registration struct {
	id uint64
	fn Listener
}

// Registry fans events out to listeners keyed by kind, in registration order.
type Registry struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventKind][]registration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{listeners: make(map[EventKind][]registration)}
}

// Subscribe appends fn to the listeners of kind.
func (r *Registry) Subscribe(kind EventKind, fn Listener) Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	r.listeners[kind] = append(r.listeners[kind], registration{id: r.nextID, fn: fn})
	return Subscription{kind: kind, id: r.nextID}
}

// Unsubscribe removes the registration behind sub. It reports whether the
// subscription was still registered.
func (r *Registry) Unsubscribe(sub Subscription) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.listeners[sub.kind]
	for i, reg := range current {
		if reg.id != sub.id {
			continue
		}
		next := make([]registration, 0, len(current)-1)
		next = append(next, current[:i]...)
		next = append(next, current[i+1:]...)
		r.listeners[sub.kind] = next
		return true
	}
	return false
}

// Len returns the number of listeners registered for kind.
func (r *Registry) Len(kind EventKind) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.listeners[kind])
}

// Dispatch invokes the listeners of ev.Kind synchronously. The listener list
// is copied first: subscribing or unsubscribing from inside a listener only
// affects later events.
func (r *Registry) Dispatch(ev Event) {
	r.mu.RLock()
	handlers := append([]registration{}, r.listeners[ev.Kind]...)
	r.mu.RUnlock()

	for _, h := range handlers {
		h.fn(ev)
	}
}
