package test

import (
	"io"
	"testing"
	"time"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory returns a Store built from the given config, plus a func to
// destroy it once the test completes.
type StoreFactory func(conf config.Storage) (store storage.Store, destroy func(), err error)

// StoreSuite runs a set of conformance tests against a Store implementation.
func StoreSuite(t *testing.T, factory StoreFactory) {
	t.Helper()
	testCases := []struct {
		name string
		test func(*testing.T, StoreFactory)
	}{
		{"metadata", testMetadata},
		{"content", testContent},
		{"delivery order", testDeliveryOrder},
		{"size", testSize},
		{"delete", testDelete},
		{"purge", testPurge},
		{"visit mailboxes", testVisitMailboxes},
		{"capacity eviction", testCapacityEviction},
		{"retention filters reads", testRetentionFiltersReads},
		{"sweep", testSweep},
		{"id uniqueness", testIDUniqueness},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.test(t, factory)
		})
	}
}

// makeStore builds a store from the factory, registering destruction for
// test cleanup.
func makeStore(t *testing.T, factory StoreFactory, conf config.Storage) storage.Store {
	t.Helper()
	store, destroy, err := factory(conf)
	require.NoError(t, err, "store factory failed")
	t.Cleanup(destroy)
	return store
}

// testMetadata verifies roundtripping of message metadata.
func testMetadata(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{})
	mailbox := "testmailbox"
	from := "from@example.com"
	to := []string{"to1@example.com", "to2@example.com"}
	date := time.Now().Add(-5 * time.Minute).Round(time.Millisecond)
	subject := "fantastic test subject line"
	content := "doesn't matter"
	delivery := &message.Delivery{
		Meta: event.MessageMetadata{
			Mailbox:    mailbox,
			From:       from,
			To:         to,
			Date:       date,
			ReceivedAt: date.Add(time.Second),
			Subject:    subject,
		},
		Content: message.Content{Text: content},
		Raw:     []byte(content),
	}
	id, err := s.AddMessage(delivery)
	require.NoError(t, err)
	assert.NotEmpty(t, id, "Store must assign an ID")

	sm, err := s.GetMessage(mailbox, id)
	require.NoError(t, err, "GetMessage failed")
	assert.Equal(t, mailbox, sm.Mailbox(), "Mailbox() mismatch")
	assert.Equal(t, id, sm.ID(), "ID() mismatch")
	assert.Equal(t, from, sm.From(), "From() mismatch")
	assert.Equal(t, to, sm.To(), "To() mismatch")
	assert.True(t, date.Equal(sm.Date()), "Date() want %v, got %v", date, sm.Date())
	assert.True(t, date.Add(time.Second).Equal(sm.ReceivedAt()),
		"ReceivedAt() want %v, got %v", date.Add(time.Second), sm.ReceivedAt())
	assert.Equal(t, subject, sm.Subject(), "Subject() mismatch")
	assert.Equal(t, content, sm.Text(), "Text() mismatch")
	assert.Empty(t, sm.ParseErrors(), "ParseErrors() should be empty")
}

// testContent verifies roundtripping of message source content.
func testContent(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{})
	content := make([]byte, 5000)
	for i := range content {
		content[i] = byte(i % 256)
	}
	delivery := &message.Delivery{
		Meta: event.MessageMetadata{
			Mailbox: "testmailbox",
			From:    "from@example.com",
			To:      []string{"to@example.com"},
			Subject: "generated content",
		},
		Content: message.Content{Text: "generated content"},
		Raw:     content,
	}
	id, err := s.AddMessage(delivery)
	require.NoError(t, err)

	sm, err := s.GetMessage("testmailbox", id)
	require.NoError(t, err)
	reader, err := sm.Source()
	require.NoError(t, err, "Source() failed")
	got, err := io.ReadAll(reader)
	require.NoError(t, err, "failed to read source")
	require.NoError(t, reader.Close(), "failed to close source reader")
	assert.Equal(t, content, got, "source content mismatch")
	assert.Equal(t, int64(len(content)), sm.Size(), "Size() mismatch")
}

// testDeliveryOrder verifies messages are listed newest first.
func testDeliveryOrder(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{})
	mailbox := "fred"
	subjects := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for i, subj := range subjects {
		GetAndCountMessages(t, s, mailbox, i)
		DeliverToStore(t, s, mailbox, subj, time.Now())
	}
	msgs := GetAndCountMessages(t, s, mailbox, len(subjects))
	for i, want := range []string{"echo", "delta", "charlie", "bravo", "alpha"} {
		assert.Equal(t, want, msgs[i].Subject(),
			"message %v subject, list must be newest first", i)
	}
}

// testSize verifies message size reporting.
func testSize(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{})
	mailbox := "fred"
	subjects := []string{"a", "br", "much longer than the others"}
	sentIDs := make([]string, len(subjects))
	sentSizes := make([]int64, len(subjects))
	for i, subj := range subjects {
		id, size := DeliverToStore(t, s, mailbox, subj, time.Now())
		sentIDs[i] = id
		sentSizes[i] = size
	}
	for i, id := range sentIDs {
		sm, err := s.GetMessage(mailbox, id)
		require.NoError(t, err)
		assert.Equal(t, sentSizes[i], sm.Size(), "message %q size mismatch", subjects[i])
	}
}

// testDelete verifies messages can be deleted, and that unknown IDs are not
// an error.
func testDelete(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{})
	mailbox := "fred"
	subjects := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	for _, subj := range subjects {
		DeliverToStore(t, s, mailbox, subj, time.Now())
	}
	msgs := GetAndCountMessages(t, s, mailbox, len(subjects))

	// Delete the second and fourth of the newest-first listing.
	err := s.RemoveMessage(mailbox, msgs[1].ID())
	require.NoError(t, err)
	err = s.RemoveMessage(mailbox, msgs[3].ID())
	require.NoError(t, err)
	msgs = GetAndCountMessages(t, s, mailbox, 3)
	subjectsLeft := make([]string, 0, 3)
	for _, sm := range msgs {
		subjectsLeft = append(subjectsLeft, sm.Subject())
	}
	assert.Equal(t, []string{"echo", "charlie", "alpha"}, subjectsLeft)

	// Removing an unknown ID must be a no-op.
	err = s.RemoveMessage(mailbox, "no-such-id")
	assert.NoError(t, err, "removing an unknown ID should not error")
	GetAndCountMessages(t, s, mailbox, 3)

	// New deliveries must continue to list ahead of the survivors.
	DeliverToStore(t, s, mailbox, "foxtrot", time.Now())
	msgs = GetAndCountMessages(t, s, mailbox, 4)
	assert.Equal(t, "foxtrot", msgs[0].Subject())
}

// testPurge verifies all messages can be removed from a mailbox at once.
func testPurge(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{})
	mailbox := "fred"
	for _, subj := range []string{"alpha", "bravo", "charlie"} {
		DeliverToStore(t, s, mailbox, subj, time.Now())
	}
	GetAndCountMessages(t, s, mailbox, 3)

	err := s.PurgeMessages(mailbox)
	require.NoError(t, err)
	GetAndCountMessages(t, s, mailbox, 0)

	// Purging empty or unknown mailboxes must be a no-op.
	err = s.PurgeMessages(mailbox)
	assert.NoError(t, err)
	err = s.PurgeMessages("neverexisted")
	assert.NoError(t, err)
}

// testVisitMailboxes verifies the store exposes each mailbox and its
// contents, and that visiting stops when the visitor returns false.
func testVisitMailboxes(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{})
	boxes := []string{"abby", "bill", "christa", "donald", "evelyn"}
	for _, mailbox := range boxes {
		DeliverToStore(t, s, mailbox, "first", time.Now())
		DeliverToStore(t, s, mailbox, "second", time.Now())
	}

	seen := make(map[string]int)
	err := s.VisitMailboxes(func(mailbox string, messages []storage.Message) bool {
		seen[mailbox] = len(messages)
		return true
	})
	require.NoError(t, err)
	require.Len(t, seen, len(boxes), "expected to visit every mailbox")
	for _, mailbox := range boxes {
		assert.Equal(t, 2, seen[mailbox], "mailbox %q message count", mailbox)
	}

	// Early termination.
	visited := 0
	err = s.VisitMailboxes(func(mailbox string, messages []storage.Message) bool {
		visited++
		return visited < 2
	})
	require.NoError(t, err)
	assert.Equal(t, 2, visited, "visit must stop after the visitor returns false")
}

// testCapacityEviction verifies the oldest message is evicted when a mailbox
// exceeds its cap.
func testCapacityEviction(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{MailboxCap: 3})
	mailbox := "fred"
	subjects := []string{"alpha", "bravo", "charlie", "delta", "echo"}
	ids := make([]string, len(subjects))
	for i, subj := range subjects {
		ids[i], _ = DeliverToStore(t, s, mailbox, subj, time.Now())
	}

	msgs := GetAndCountMessages(t, s, mailbox, 3)
	for i, want := range []string{"echo", "delta", "charlie"} {
		assert.Equal(t, want, msgs[i].Subject(), "message %v subject after eviction", i)
	}

	// Evicted messages must not be retrievable by ID.
	for i := 0; i < 2; i++ {
		_, err := s.GetMessage(mailbox, ids[i])
		assert.ErrorIs(t, err, storage.ErrNotExist,
			"message %q should have been evicted", subjects[i])
	}
	for i := 2; i < len(ids); i++ {
		_, err := s.GetMessage(mailbox, ids[i])
		assert.NoError(t, err, "message %q should have been retained", subjects[i])
	}
}

// testRetentionFiltersReads verifies expired messages are hidden from reads
// even before a sweep runs.
func testRetentionFiltersReads(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{RetentionPeriod: time.Hour})
	mailbox := "fred"
	oldID, _ := DeliverToStore(t, s, mailbox, "old", time.Now().Add(-2*time.Hour))
	freshID, _ := DeliverToStore(t, s, mailbox, "fresh", time.Now())

	msgs := GetAndCountMessages(t, s, mailbox, 1)
	assert.Equal(t, "fresh", msgs[0].Subject())
	assert.Equal(t, freshID, msgs[0].ID())

	_, err := s.GetMessage(mailbox, oldID)
	assert.ErrorIs(t, err, storage.ErrNotExist, "expired message must not be readable")
	_, err = s.GetMessage(mailbox, freshID)
	assert.NoError(t, err)
}

// testSweep verifies expired messages are removed by Sweep, and that the
// returned counts are exact.
func testSweep(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{RetentionPeriod: time.Hour})
	now := time.Now()
	oldID1, _ := DeliverToStore(t, s, "mixed", "old1", now.Add(-3*time.Hour))
	oldID2, _ := DeliverToStore(t, s, "mixed", "old2", now.Add(-2*time.Hour))
	freshID, _ := DeliverToStore(t, s, "mixed", "fresh", now)
	staleID, _ := DeliverToStore(t, s, "stale", "old3", now.Add(-2*time.Hour))

	messages, mailboxes := s.Sweep(now)
	assert.Equal(t, 3, messages, "swept message count")
	assert.Equal(t, 1, mailboxes, "emptied mailbox count")

	for _, id := range []string{oldID1, oldID2} {
		_, err := s.GetMessage("mixed", id)
		assert.ErrorIs(t, err, storage.ErrNotExist, "swept message must be gone")
	}
	_, err := s.GetMessage("stale", staleID)
	assert.ErrorIs(t, err, storage.ErrNotExist, "swept message must be gone")
	_, err = s.GetMessage("mixed", freshID)
	assert.NoError(t, err, "fresh message must survive the sweep")

	// A second sweep has nothing left to do.
	messages, mailboxes = s.Sweep(now)
	assert.Equal(t, 0, messages, "second sweep message count")
	assert.Equal(t, 0, mailboxes, "second sweep mailbox count")
}

// testIDUniqueness verifies IDs are never reused, even across evictions.
func testIDUniqueness(t *testing.T, factory StoreFactory) {
	s := makeStore(t, factory, config.Storage{MailboxCap: 2})
	mailbox := "fred"
	seen := make(map[string]struct{})
	for i := 0; i < 5; i++ {
		id, _ := DeliverToStore(t, s, mailbox, "subject", time.Now())
		_, dup := seen[id]
		require.False(t, dup, "store returned duplicate ID %q", id)
		seen[id] = struct{}{}
	}
	GetAndCountMessages(t, s, mailbox, 2)
}
