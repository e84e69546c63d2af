package extension

import (
	"github.com/driftmail/driftmail/pkg/extension/event"
)

// Host defines the extension points for DriftMail.
type Host struct {
	Events *Events
}

// Events defines all the event types supported by the extension host.
//
// Before-events give listeners a chance to alter how the server responds to
// the event. They run synchronously; the first listener to answer with a
// non-nil value determines the response and the remaining listeners are not
// called.
//
// After-events notify listeners once an event has completed. They run
// asynchronously with respect to the rest of the server.
type Events struct {
	AfterMessageDeleted    AsyncEventBroker[event.MessageMetadata]
	AfterMessageStored     AsyncEventBroker[event.MessageMetadata]
	BeforeMailFromAccepted EventBroker[event.SMTPSession, event.SMTPResponse]
	BeforeRcptToAccepted   EventBroker[event.SMTPSession, event.SMTPResponse]
}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{Events: &Events{}}
}
