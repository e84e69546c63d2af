// Package extension implements the event brokers scripts and internal
// components use to observe and influence the server.
package extension

import (
	"sync"
)

// listener pairs a registration name with its callback.
type listener[F any] struct {
	name string
	fn   F
}

// removeNamed deletes the named listener from ls if present.
func removeNamed[F any](ls []listener[F], name string) []listener[F] {
	for i, l := range ls {
		if l.name == name {
			return append(ls[:i], ls[i+1:]...)
		}
	}
	return ls
}

// EventBroker relays events of type E to registered listeners, each of which
// may answer with a response of type R. Listeners run synchronously, in
// registration order.
type EventBroker[E any, R any] struct {
	mu        sync.RWMutex
	listeners []listener[func(E) *R]
}

// Emit sends the provided event to each registered listener in order, until
// one returns a non-nil response. That response is returned to the caller.
func (eb *EventBroker[E, R]) Emit(event *E) *R {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		// Events are copied to minimize the risk of mutation.
		if result := l.fn(*event); result != nil {
			return result
		}
	}

	return nil
}

// AddListener registers the named listener, replacing one with a duplicate
// name if present. Listeners should be added in order of priority, most
// significant first.
func (eb *EventBroker[E, R]) AddListener(name string, fn func(E) *R) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = append(removeNamed(eb.listeners, name),
		listener[func(E) *R]{name: name, fn: fn})
}

// RemoveListener unregisters the named listener.
func (eb *EventBroker[E, R]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = removeNamed(eb.listeners, name)
}
