// Package test provides shared stubs and helpers for DriftMail tests.
package test

import (
	"errors"
	"fmt"
	"time"

	"github.com/driftmail/driftmail/pkg/storage"
)

// StoreStub stubs storage.Store for testing. Mailboxes named "messageerr"
// or "messageserr" force internal errors from the corresponding getters.
type StoreStub struct {
	storage.Store
	mailboxes map[string][]storage.Message
	deleted   map[storage.Message]struct{}
	idSource  int
}

// NewStore creates a new StoreStub.
func NewStore() *StoreStub {
	return &StoreStub{
		mailboxes: make(map[string][]storage.Message),
		deleted:   make(map[storage.Message]struct{}),
	}
}

// stubMessage assigns an ID to a message that arrived without one.
type stubMessage struct {
	storage.Message
	id string
}

func (m stubMessage) ID() string { return m.id }

// AddMessage adds a message to the specified mailbox, assigning an ID if the
// message does not carry one.
func (s *StoreStub) AddMessage(m storage.Message) (id string, err error) {
	if m.ID() == "" {
		s.idSource++
		m = stubMessage{Message: m, id: fmt.Sprintf("stub-%v", s.idSource)}
	}
	mb := m.Mailbox()
	s.mailboxes[mb] = append(s.mailboxes[mb], m)
	return m.ID(), nil
}

// GetMessage gets a message by ID from the specified mailbox.
func (s *StoreStub) GetMessage(mailbox, id string) (storage.Message, error) {
	if mailbox == "messageerr" {
		return nil, errors.New("internal error")
	}
	for _, m := range s.mailboxes[mailbox] {
		if m.ID() == id {
			return m, nil
		}
	}
	return nil, storage.ErrNotExist
}

// GetMessages gets all the messages for the specified mailbox, newest
// message first.
func (s *StoreStub) GetMessages(mailbox string) ([]storage.Message, error) {
	if mailbox == "messageserr" {
		return nil, errors.New("internal error")
	}
	stored := s.mailboxes[mailbox]
	msgs := make([]storage.Message, 0, len(stored))
	for i := len(stored) - 1; i >= 0; i-- {
		msgs = append(msgs, stored[i])
	}
	return msgs, nil
}

// RemoveMessage deletes a message by ID from the specified mailbox. Unknown
// ids are not an error, matching the Store contract.
func (s *StoreStub) RemoveMessage(mailbox, id string) error {
	if mailbox == "messageerr" {
		return errors.New("internal error")
	}
	mb := s.mailboxes[mailbox]
	for i, m := range mb {
		if m.ID() == id {
			s.mailboxes[mailbox] = append(mb[:i], mb[i+1:]...)
			s.deleted[m] = struct{}{}
			break
		}
	}
	return nil
}

// PurgeMessages deletes all messages from the specified mailbox.
func (s *StoreStub) PurgeMessages(mailbox string) error {
	if mailbox == "messageserr" {
		return errors.New("internal error")
	}
	for _, m := range s.mailboxes[mailbox] {
		s.deleted[m] = struct{}{}
	}
	delete(s.mailboxes, mailbox)
	return nil
}

// VisitMailboxes accepts a function that will be called with each mailbox's
// contents while it continues to return true.
func (s *StoreStub) VisitMailboxes(f func(mailbox string, messages []storage.Message) (cont bool)) error {
	for name, v := range s.mailboxes {
		if !f(name, v) {
			return nil
		}
	}
	return nil
}

// Sweep is a no-op for the stub.
func (s *StoreStub) Sweep(now time.Time) (messages int, mailboxes int) {
	return 0, 0
}

// MessageDeleted returns true if the specified message was deleted.
func (s *StoreStub) MessageDeleted(m storage.Message) bool {
	_, ok := s.deleted[m]
	return ok
}
