package extension

import (
	"errors"
	"sync"
	"time"
)

// AsyncEventBroker relays events of type E to registered listeners. Each
// event is sent to all listeners in parallel and no result is collected.
type AsyncEventBroker[E any] struct {
	mu        sync.RWMutex
	listeners []listener[func(E)]
}

// Emit sends the provided event to each registered listener in parallel.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		// Events are copied to minimize the risk of mutation.
		go l.fn(*event)
	}
}

// AddListener registers the named listener, replacing one with a duplicate
// name if present. Listeners should be added in order of priority, most
// significant first.
func (eb *AsyncEventBroker[E]) AddListener(name string, fn func(E)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = append(removeNamed(eb.listeners, name),
		listener[func(E)]{name: name, fn: fn})
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.listeners = removeNamed(eb.listeners, name)
}

// AsyncTestListener registers a listener and returns a func that waits for
// an event and returns it, or times out with an error. The listener removes
// itself after capacity calls.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name,
		func(msg E) {
			events <- msg
		})

	count := 0

	return func() (*E, error) {
		count++

		defer func() {
			if count >= capacity {
				eb.RemoveListener(name)
				close(events)
			}
		}()

		select {
		case event := <-events:
			return &event, nil

		case <-time.After(time.Second * 2):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
