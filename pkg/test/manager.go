package test

import (
	"bytes"
	"errors"
	"io"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/policy"
	"github.com/driftmail/driftmail/pkg/storage"
)

// ManagerStub is a test stub for message.Manager
type ManagerStub struct {
	message.Manager
	mailboxes map[string][]*message.Message
	sources   map[string][]byte
	purged    []string
}

// NewManager creates a new ManagerStub.
func NewManager() *ManagerStub {
	return &ManagerStub{
		mailboxes: make(map[string][]*message.Message),
		sources:   make(map[string][]byte),
	}
}

// AddMessage adds a message to the specified mailbox.
func (m *ManagerStub) AddMessage(mailbox string, msg *message.Message) {
	messages := m.mailboxes[mailbox]
	m.mailboxes[mailbox] = append(messages, msg)
}

// SetSource associates raw source content with a stored message.
func (m *ManagerStub) SetSource(mailbox, id string, source []byte) {
	m.sources[mailbox+"/"+id] = source
}

// GetMessage gets a message by ID from the specified mailbox.
func (m *ManagerStub) GetMessage(mailbox, id string) (*message.Message, error) {
	if mailbox == "messageerr" {
		return nil, errors.New("internal error")
	}
	for _, msg := range m.mailboxes[mailbox] {
		if msg.ID == id {
			return msg, nil
		}
	}
	return nil, storage.ErrNotExist
}

// GetMessages gets all the messages for the specified mailbox, newest
// message first.
func (m *ManagerStub) GetMessages(mailbox string) ([]*message.Message, error) {
	if mailbox == "messageserr" {
		return nil, errors.New("internal error")
	}
	stored := m.mailboxes[mailbox]
	messages := make([]*message.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		messages = append(messages, stored[i])
	}
	return messages, nil
}

// RemoveMessage deletes a message by ID from the specified mailbox.
func (m *ManagerStub) RemoveMessage(mailbox, id string) error {
	if mailbox == "messageerr" {
		return errors.New("internal error")
	}
	messages := m.mailboxes[mailbox]
	for i, msg := range messages {
		if msg.ID == id {
			m.mailboxes[mailbox] = append(messages[:i], messages[i+1:]...)
			return nil
		}
	}
	return storage.ErrNotExist
}

// PurgeMessages deletes the contents of the specified mailbox.
func (m *ManagerStub) PurgeMessages(mailbox string) error {
	if mailbox == "messageerr" {
		return errors.New("internal error")
	}
	delete(m.mailboxes, mailbox)
	m.purged = append(m.purged, mailbox)
	return nil
}

// Purged returns the names of mailboxes PurgeMessages was called on.
func (m *ManagerStub) Purged() []string {
	return m.purged
}

// SourceReader returns a reader for raw content set with SetSource.
func (m *ManagerStub) SourceReader(mailbox, id string) (io.ReadCloser, error) {
	if mailbox == "messageerr" {
		return nil, errors.New("internal error")
	}
	if source, ok := m.sources[mailbox+"/"+id]; ok {
		return io.NopCloser(bytes.NewReader(source)), nil
	}
	return nil, storage.ErrNotExist
}

// MailboxForAddress invokes policy mailbox extraction.
func (m *ManagerStub) MailboxForAddress(address string) (string, error) {
	addrPolicy := &policy.Addressing{Config: &config.Root{}}
	return addrPolicy.ExtractMailbox(address)
}
