package storage

import (
	"time"

	"github.com/stretchr/testify/mock"
)

// MockStore is a shared mock for unit testing.
type MockStore struct {
	mock.Mock
}

var _ Store = &MockStore{}

// AddMessage mock function.
func (m *MockStore) AddMessage(message Message) (id string, err error) {
	args := m.Called(message)
	return args.String(0), args.Error(1)
}

// GetMessage mock function.
func (m *MockStore) GetMessage(mailbox, id string) (Message, error) {
	args := m.Called(mailbox, id)
	msg, _ := args.Get(0).(Message)
	return msg, args.Error(1)
}

// GetMessages mock function.
func (m *MockStore) GetMessages(mailbox string) ([]Message, error) {
	args := m.Called(mailbox)
	msgs, _ := args.Get(0).([]Message)
	return msgs, args.Error(1)
}

// RemoveMessage mock function.
func (m *MockStore) RemoveMessage(mailbox, id string) error {
	args := m.Called(mailbox, id)
	return args.Error(0)
}

// PurgeMessages mock function.
func (m *MockStore) PurgeMessages(mailbox string) error {
	args := m.Called(mailbox)
	return args.Error(0)
}

// VisitMailboxes mock function.
func (m *MockStore) VisitMailboxes(f func(mailbox string, messages []Message) (cont bool)) error {
	args := m.Called(f)
	return args.Error(0)
}

// Sweep mock function.
func (m *MockStore) Sweep(now time.Time) (messages int, mailboxes int) {
	args := m.Called(now)
	return args.Int(0), args.Int(1)
}
