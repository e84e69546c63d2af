package mem

import (
	"bytes"
	"io"
	"time"

	"github.com/driftmail/driftmail/pkg/storage"
)

// Message is an immutable memory store message.
type Message struct {
	mailbox     string
	id          string
	from        string
	to          []string
	date        time.Time
	receivedAt  time.Time
	subject     string
	text        string
	html        string
	parseErrors []string
	source      []byte
}

var _ storage.Message = &Message{}

// Mailbox returns the normalized mailbox name.
func (m *Message) Mailbox() string { return m.mailbox }

// ID returns the message identifier.
func (m *Message) ID() string { return m.id }

// From returns the sender display string.
func (m *Message) From() string { return m.from }

// To returns the recipient display strings.
func (m *Message) To() []string { return m.to }

// Date returns the header date, or the receipt time when it was absent.
func (m *Message) Date() time.Time { return m.date }

// ReceivedAt returns the time the message was accepted.
func (m *Message) ReceivedAt() time.Time { return m.receivedAt }

// Subject returns the subject line.
func (m *Message) Subject() string { return m.subject }

// Text returns the plain text body.
func (m *Message) Text() string { return m.text }

// HTML returns the HTML body.
func (m *Message) HTML() string { return m.html }

// ParseErrors returns soft diagnostics from content parsing.
func (m *Message) ParseErrors() []string { return m.parseErrors }

// Size returns the raw message size in bytes.
func (m *Message) Size() int64 { return int64(len(m.source)) }

// Source returns a reader over the raw message source.
func (m *Message) Source() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(m.source)), nil
}
