package mem

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/storage"
	"github.com/driftmail/driftmail/pkg/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSuite runs the storage conformance suite on the memory store.
func TestSuite(t *testing.T) {
	test.StoreSuite(t, func(conf config.Storage) (storage.Store, func(), error) {
		s := New(conf, extension.NewHost())
		destroy := func() {}
		return s, destroy, nil
	})
}

// TestConcurrentAccess delivers and purges across several mailboxes in
// parallel, testing for deadlocks.
func TestConcurrentAccess(t *testing.T) {
	s := New(config.Storage{}, extension.NewHost())
	boxes := []string{"alpha", "beta", "whiskey", "tango", "foxtrot"}
	n := 10

	// Populate mailboxes concurrently.
	wg := &sync.WaitGroup{}
	wg.Add(len(boxes))
	for _, mailbox := range boxes {
		go func(mailbox string) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				test.DeliverToStore(t, s, mailbox, "subject", time.Now())
			}
		}(mailbox)
	}
	wg.Wait()
	count := 0
	err := s.VisitMailboxes(func(mailbox string, messages []storage.Message) bool {
		count += len(messages)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, len(boxes)*n, count, "unexpected total message count")

	// Purge all messages concurrently.
	wg.Add(len(boxes))
	for _, mailbox := range boxes {
		go func(mailbox string) {
			defer wg.Done()
			if err := s.PurgeMessages(mailbox); err != nil {
				t.Error(err)
			}
		}(mailbox)
	}
	wg.Wait()
	count = 0
	err = s.VisitMailboxes(func(mailbox string, messages []storage.Message) bool {
		count += len(messages)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 0, count, "expected every mailbox to be purged")
}

// TestCapacityBoundary delivers one message more than the cap and verifies
// only the oldest is displaced.
func TestCapacityBoundary(t *testing.T) {
	limit := 200
	s := New(config.Storage{MailboxCap: limit}, extension.NewHost())
	mailbox := "fred"
	firstID, _ := test.DeliverToStore(t, s, mailbox, "m1", time.Now())
	for i := 2; i <= limit+1; i++ {
		test.DeliverToStore(t, s, mailbox, fmt.Sprintf("m%v", i), time.Now())
	}

	msgs := test.GetAndCountMessages(t, s, mailbox, limit)
	assert.Equal(t, fmt.Sprintf("m%v", limit+1), msgs[0].Subject(), "newest message")
	assert.Equal(t, "m2", msgs[limit-1].Subject(), "oldest retained message")

	_, err := s.GetMessage(mailbox, firstID)
	assert.ErrorIs(t, err, storage.ErrNotExist, "first message should have been evicted")
}

// TestRemoveEmitsDeletedEvent verifies explicit deletion notifies extensions.
func TestRemoveEmitsDeletedEvent(t *testing.T) {
	extHost := extension.NewHost()
	s := New(config.Storage{}, extHost)
	id, _ := test.DeliverToStore(t, s, "box1", "dropme", time.Now())
	listener := extHost.Events.AfterMessageDeleted.AsyncTestListener("memtest", 1)

	require.NoError(t, s.RemoveMessage("box1", id))

	got, err := listener()
	require.NoError(t, err, "deleted event was not emitted")
	assert.Equal(t, "box1", got.Mailbox)
	assert.Equal(t, id, got.ID)
	assert.Equal(t, "dropme", got.Subject)
}

// TestPurgeEmitsDeletedEvents verifies purging notifies extensions once per
// message.
func TestPurgeEmitsDeletedEvents(t *testing.T) {
	extHost := extension.NewHost()
	s := New(config.Storage{}, extHost)
	id1, _ := test.DeliverToStore(t, s, "box1", "first", time.Now())
	id2, _ := test.DeliverToStore(t, s, "box1", "second", time.Now())
	listener := extHost.Events.AfterMessageDeleted.AsyncTestListener("memtest", 2)

	require.NoError(t, s.PurgeMessages("box1"))

	gotIDs := make(map[string]struct{})
	for i := 0; i < 2; i++ {
		got, err := listener()
		require.NoError(t, err, "deleted event %v was not emitted", i)
		gotIDs[got.ID] = struct{}{}
	}
	assert.Contains(t, gotIDs, id1)
	assert.Contains(t, gotIDs, id2)
}

// TestSweepEmitsDeletedEvents verifies expiry by sweep notifies extensions.
func TestSweepEmitsDeletedEvents(t *testing.T) {
	extHost := extension.NewHost()
	s := New(config.Storage{RetentionPeriod: time.Hour}, extHost)
	now := time.Now()
	oldID, _ := test.DeliverToStore(t, s, "box1", "old", now.Add(-2*time.Hour))
	test.DeliverToStore(t, s, "box1", "fresh", now)
	listener := extHost.Events.AfterMessageDeleted.AsyncTestListener("memtest", 1)

	messages, mailboxes := s.Sweep(now)
	assert.Equal(t, 1, messages)
	assert.Equal(t, 0, mailboxes)

	got, err := listener()
	require.NoError(t, err, "deleted event was not emitted")
	assert.Equal(t, oldID, got.ID)
}

// TestEvictionEmitsNoDeletedEvent verifies capacity displacement is silent.
// The only event observed after an eviction plus an explicit delete must be
// for the deleted message.
func TestEvictionEmitsNoDeletedEvent(t *testing.T) {
	extHost := extension.NewHost()
	s := New(config.Storage{MailboxCap: 1}, extHost)
	listener := extHost.Events.AfterMessageDeleted.AsyncTestListener("memtest", 1)

	test.DeliverToStore(t, s, "box1", "evicted", time.Now())
	keptID, _ := test.DeliverToStore(t, s, "box1", "kept", time.Now())
	require.NoError(t, s.RemoveMessage("box1", keptID))

	got, err := listener()
	require.NoError(t, err)
	assert.Equal(t, keptID, got.ID, "eviction must not emit a deleted event")
}

// TestSweepDropsEmptyMailboxes verifies swept-empty mailboxes disappear from
// the visit listing.
func TestSweepDropsEmptyMailboxes(t *testing.T) {
	s := New(config.Storage{RetentionPeriod: time.Hour}, extension.NewHost())
	now := time.Now()
	test.DeliverToStore(t, s, "stale", "old", now.Add(-2*time.Hour))
	test.DeliverToStore(t, s, "busy", "fresh", now)

	messages, mailboxes := s.Sweep(now)
	assert.Equal(t, 1, messages)
	assert.Equal(t, 1, mailboxes)

	seen := make([]string, 0, 1)
	err := s.VisitMailboxes(func(mailbox string, messages []storage.Message) bool {
		seen = append(seen, mailbox)
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"busy"}, seen, "swept-empty mailbox should be dropped")
}
