// Package storage declares the mail store contract shared by the SMTP intake
// path, the HTTP query path, and the retention sweeper.
package storage

import (
	"errors"
	"io"
	"time"
)

// ErrNotExist indicates the requested message does not exist, whether it was
// never stored, has been deleted, or has expired.
var ErrNotExist = errors.New("message does not exist")

// Message is a single stored message. Implementations are immutable
// snapshots; nothing returned by a Store can mutate its contents.
type Message interface {
	// Mailbox returns the normalized mailbox name.
	Mailbox() string
	// ID returns the opaque message identifier, unique for the process life.
	ID() string
	// From returns the sender display string as received.
	From() string
	// To returns the recipient display strings as received.
	To() []string
	// Date returns the header date, or the receipt time when absent.
	Date() time.Time
	// ReceivedAt returns the time the message was accepted.
	ReceivedAt() time.Time
	// Subject returns the subject line.
	Subject() string
	// Text returns the plain text body, possibly empty.
	Text() string
	// HTML returns the HTML body, possibly empty.
	HTML() string
	// ParseErrors returns soft diagnostics from content parsing.
	ParseErrors() []string
	// Size returns the raw DATA size in bytes.
	Size() int64
	// Source returns a reader over the raw message source.
	Source() (io.ReadCloser, error)
}

// Store is a concurrency safe mailbox store. All mutation and all reads go
// through this interface; callers never reach into a mailbox directly.
type Store interface {
	// AddMessage stores the message newest-first in its mailbox, evicting the
	// oldest entry when the insert would exceed the mailbox capacity. Any ID
	// carried by m is ignored; the generated ID is returned.
	AddMessage(m Message) (id string, err error)
	// GetMessage returns a message, or ErrNotExist both for unknown ids and
	// for messages that have expired but not yet been swept.
	GetMessage(mailbox, id string) (Message, error)
	// GetMessages returns mailbox contents newest-first, excluding expired
	// entries the sweeper has not visited yet.
	GetMessages(mailbox string) ([]Message, error)
	// RemoveMessage deletes a single message. Removing an unknown id is not
	// an error.
	RemoveMessage(mailbox, id string) error
	// PurgeMessages deletes the contents of a mailbox.
	PurgeMessages(mailbox string) error
	// VisitMailboxes calls f with each mailbox's unexpired contents until f
	// returns false.
	VisitMailboxes(f func(mailbox string, messages []Message) (cont bool)) error
	// Sweep removes every message older than the retention period relative
	// to now, drops mailboxes left empty, and returns removal counts.
	Sweep(now time.Time) (messages int, mailboxes int)
}
