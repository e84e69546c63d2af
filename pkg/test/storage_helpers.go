package test

import (
	"fmt"
	"testing"
	"time"

	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/storage"
)

// DeliverToStore creates and delivers a message to the specified mailbox,
// returning the generated ID and the size of the message. The date is used
// for both the header date and the receipt time, letting retention tests
// backdate messages.
func DeliverToStore(
	t *testing.T,
	store storage.Store,
	mailbox string,
	subject string,
	date time.Time,
) (string, int64) {
	t.Helper()
	from := "somebodyelse@host"
	to := "somebody@host"
	testMsg := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\nTest Body\r\n",
		to, from, subject)
	delivery := &message.Delivery{
		Meta: event.MessageMetadata{
			Mailbox:    mailbox,
			From:       from,
			To:         []string{to},
			Subject:    subject,
			Date:       date,
			ReceivedAt: date,
		},
		Content: message.Content{Text: "Test Body\r\n"},
		Raw:     []byte(testMsg),
	}

	id, err := store.AddMessage(delivery)
	if err != nil {
		t.Fatal(err)
	}

	return id, int64(len(testMsg))
}

// GetAndCountMessages expects GetMessages to return count messages or fails
// the test; it also checks the returned error.
func GetAndCountMessages(t *testing.T, s storage.Store, mailbox string, count int) []storage.Message {
	t.Helper()
	msgs, err := s.GetMessages(mailbox)
	if err != nil {
		t.Fatalf("Failed to GetMessages for %q: %v", mailbox, err)
	}
	if len(msgs) != count {
		t.Errorf("Got %v messages for %q, want: %v", len(msgs), mailbox, count)
	}

	return msgs
}
