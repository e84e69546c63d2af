// Package msghub relays message events to subscribed listeners, replaying a
// bounded history to new arrivals. The REST long-poll and websocket monitors
// are its consumers.
package msghub

import (
	"container/ring"
	"context"

	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/extension/event"
)

// Length of the hub operation queue.
const opChanLen = 100

// Listener receives the contents of the history buffer, followed by new
// messages.
type Listener interface {
	Receive(msg event.MessageMetadata) error
}

// Hub relays message events on to its listeners.
type Hub struct {
	// History buffer; points at the next entry to write, so the first
	// non-nil entry after it is the oldest event.
	history   *ring.Ring
	listeners map[Listener]struct{}
	opChan    chan func(h *Hub) // Operations queued for this actor.
}

// New constructs a Hub which caches historyLen messages for playback to
// future listeners, fed by the extension host's message events. Call Start
// to begin processing.
func New(historyLen int, extHost *extension.Host) *Hub {
	hub := &Hub{
		history:   ring.New(historyLen),
		listeners: make(map[Listener]struct{}),
		opChan:    make(chan func(h *Hub), opChanLen),
	}

	extHost.Events.AfterMessageStored.AddListener("msghub",
		func(msg event.MessageMetadata) {
			hub.Dispatch(msg)
		})
	extHost.Events.AfterMessageDeleted.AddListener("msghub",
		func(msg event.MessageMetadata) {
			hub.Delete(msg.Mailbox, msg.ID)
		})

	return hub
}

// Start the Hub processing loop; it runs until ctx is canceled.
func (hub *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(hub.opChan)
			return
		case op := <-hub.opChan:
			op(hub)
		}
	}
}

// Dispatch queues a message event for broadcast by the hub. The event is
// placed into the history buffer and then relayed to all registered
// listeners.
func (hub *Hub) Dispatch(msg event.MessageMetadata) {
	hub.opChan <- func(h *Hub) {
		if h.history != nil {
			h.history.Value = msg
			h.history = h.history.Next()
		}

		// Deliver to all listeners, dropping any that return an error.
		for l := range h.listeners {
			if err := l.Receive(msg); err != nil {
				delete(h.listeners, l)
			}
		}
	}
}

// Delete erases a message from the history buffer, preventing its replay to
// future listeners. Listeners that already received it are not notified.
func (hub *Hub) Delete(mailbox string, id string) {
	hub.opChan <- func(h *Hub) {
		r := h.history
		for i := 0; i < r.Len(); i++ {
			if m, ok := r.Value.(event.MessageMetadata); ok &&
				m.Mailbox == mailbox && m.ID == id {
				r.Value = nil
			}
			r = r.Next()
		}
	}
}

// AddListener registers a listener to receive broadcasted message events,
// beginning with a replay of the history buffer.
func (hub *Hub) AddListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		h.history.Do(func(v interface{}) {
			if v != nil {
				_ = l.Receive(v.(event.MessageMetadata))
			}
		})

		h.listeners[l] = struct{}{}
	}
}

// AddLiveListener registers a listener without replaying the history
// buffer; it receives only events dispatched after registration.
func (hub *Hub) AddLiveListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		h.listeners[l] = struct{}{}
	}
}

// RemoveListener deletes a listener registration; it will cease to receive
// messages.
func (hub *Hub) RemoveListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		delete(h.listeners, l)
	}
}

// Sync blocks until the hub has processed its queue up to this point, useful
// for unit tests.
func (hub *Hub) Sync() {
	done := make(chan struct{})
	hub.opChan <- func(h *Hub) {
		close(done)
	}
	<-done
}
