// Package mem implements the in-memory mailbox store. A store level mutex
// guards the mailbox map; each mailbox carries its own RWMutex so work on one
// mailbox never blocks another.
package mem

import (
	"io"
	"slices"
	"sync"
	"time"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/storage"
	"github.com/oklog/ulid/v2"
)

// Store implements an in-memory message store with TTL expiry and per-mailbox
// capacity eviction.
type Store struct {
	sync.Mutex
	boxes   map[string]*mbox
	cap     int           // Per-mailbox message cap, 0 disables.
	ttl     time.Duration // Message retention period, 0 disables.
	extHost *extension.Host
}

type mbox struct {
	sync.RWMutex
	name     string
	dropped  bool       // Set when removed from Store.boxes.
	messages []*Message // Ordered oldest first.
}

var _ storage.Store = &Store{}

// New returns an empty memory store.
func New(cfg config.Storage, extHost *extension.Host) *Store {
	return &Store{
		boxes:   make(map[string]*mbox),
		cap:     cfg.MailboxCap,
		ttl:     cfg.RetentionPeriod,
		extHost: extHost,
	}
}

// AddMessage stores an immutable copy of the message, ignoring any ID it
// carries, and returns the generated ULID.
func (s *Store) AddMessage(m storage.Message) (id string, err error) {
	r, err := m.Source()
	if err != nil {
		return "", err
	}
	source, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	_ = r.Close()
	msg := &Message{
		mailbox:     m.Mailbox(),
		id:          ulid.Make().String(),
		from:        m.From(),
		to:          slices.Clone(m.To()),
		date:        m.Date(),
		receivedAt:  m.ReceivedAt(),
		subject:     m.Subject(),
		text:        m.Text(),
		html:        m.HTML(),
		parseErrors: slices.Clone(m.ParseErrors()),
		source:      source,
	}
	if msg.receivedAt.IsZero() {
		msg.receivedAt = time.Now()
	}
	if msg.date.IsZero() {
		msg.date = msg.receivedAt
	}
	s.withMailbox(msg.mailbox, func(mb *mbox) {
		mb.messages = append(mb.messages, msg)
		if over := len(mb.messages) - s.cap; s.cap > 0 && over > 0 {
			// Evict oldest first; copy so evicted entries are collectable.
			mb.messages = append([]*Message(nil), mb.messages[over:]...)
		}
	})
	return msg.id, nil
}

// GetMessage returns a message, or storage.ErrNotExist for ids that are
// unknown or already past the retention period.
func (s *Store) GetMessage(mailbox, id string) (storage.Message, error) {
	now := time.Now()
	var found *Message
	s.readMailbox(mailbox, func(mb *mbox) {
		for _, m := range mb.messages {
			if m.id == id {
				found = m
				break
			}
		}
	})
	if found == nil || s.expired(found, now) {
		return nil, storage.ErrNotExist
	}
	return found, nil
}

// GetMessages returns the mailbox contents newest-first, excluding expired
// entries the sweeper has not removed yet.
func (s *Store) GetMessages(mailbox string) ([]storage.Message, error) {
	now := time.Now()
	ms := make([]storage.Message, 0)
	s.readMailbox(mailbox, func(mb *mbox) {
		for i := len(mb.messages) - 1; i >= 0; i-- {
			if m := mb.messages[i]; !s.expired(m, now) {
				ms = append(ms, m)
			}
		}
	})
	return ms, nil
}

// RemoveMessage deletes a single message. Unknown ids are not an error.
func (s *Store) RemoveMessage(mailbox, id string) error {
	var removed *Message
	s.writeMailbox(mailbox, func(mb *mbox) {
		for i, m := range mb.messages {
			if m.id == id {
				removed = m
				mb.messages = append(mb.messages[:i], mb.messages[i+1:]...)
				break
			}
		}
	})
	if removed != nil {
		s.dropIfEmpty(mailbox)
		s.emitDeleted(removed)
	}
	return nil
}

// PurgeMessages deletes the contents of a mailbox.
func (s *Store) PurgeMessages(mailbox string) error {
	var removed []*Message
	s.writeMailbox(mailbox, func(mb *mbox) {
		removed = mb.messages
		mb.messages = nil
	})
	s.dropIfEmpty(mailbox)
	for _, m := range removed {
		s.emitDeleted(m)
	}
	return nil
}

// VisitMailboxes calls f with each mailbox's unexpired contents until f
// returns false.
func (s *Store) VisitMailboxes(f func(mailbox string, messages []storage.Message) (cont bool)) error {
	for _, name := range s.mailboxNames() {
		ms, err := s.GetMessages(name)
		if err != nil {
			return err
		}
		if !f(name, ms) {
			break
		}
	}
	return nil
}

// Sweep removes every message received before now less the retention period,
// dropping mailboxes left empty. Expiry is disabled when the period is zero.
func (s *Store) Sweep(now time.Time) (messages int, mailboxes int) {
	if s.ttl <= 0 {
		return 0, 0
	}
	cutoff := now.Add(-s.ttl)
	var expired []*Message
	for _, name := range s.mailboxNames() {
		var dropped []*Message
		s.writeMailbox(name, func(mb *mbox) {
			keep := make([]*Message, 0, len(mb.messages))
			for _, m := range mb.messages {
				if m.receivedAt.Before(cutoff) {
					dropped = append(dropped, m)
				} else {
					keep = append(keep, m)
				}
			}
			if len(dropped) > 0 {
				mb.messages = keep
			}
		})
		if len(dropped) > 0 {
			messages += len(dropped)
			if s.dropIfEmpty(name) {
				mailboxes++
			}
			expired = append(expired, dropped...)
		}
	}
	for _, m := range expired {
		s.emitDeleted(m)
	}
	return messages, mailboxes
}

func (s *Store) expired(m *Message, now time.Time) bool {
	return s.ttl > 0 && m.receivedAt.Before(now.Add(-s.ttl))
}

// mailboxNames snapshots the mailbox names under the store lock.
func (s *Store) mailboxNames() []string {
	s.Lock()
	defer s.Unlock()
	names := make([]string, 0, len(s.boxes))
	for name := range s.boxes {
		names = append(names, name)
	}
	return names
}

// withMailbox gets or creates a mailbox, write locks it, then calls f. The
// lookup retries when it loses a race with dropIfEmpty.
func (s *Store) withMailbox(mailbox string, f func(mb *mbox)) {
	for {
		s.Lock()
		mb, ok := s.boxes[mailbox]
		if !ok {
			mb = &mbox{name: mailbox}
			s.boxes[mailbox] = mb
		}
		s.Unlock()
		mb.Lock()
		if mb.dropped {
			mb.Unlock()
			continue
		}
		f(mb)
		mb.Unlock()
		return
	}
}

// readMailbox read locks an existing mailbox and calls f; missing mailboxes
// are a no-op.
func (s *Store) readMailbox(mailbox string, f func(mb *mbox)) {
	s.Lock()
	mb, ok := s.boxes[mailbox]
	s.Unlock()
	if !ok {
		return
	}
	mb.RLock()
	if !mb.dropped {
		f(mb)
	}
	mb.RUnlock()
}

// writeMailbox write locks an existing mailbox and calls f; missing
// mailboxes are a no-op.
func (s *Store) writeMailbox(mailbox string, f func(mb *mbox)) {
	s.Lock()
	mb, ok := s.boxes[mailbox]
	s.Unlock()
	if !ok {
		return
	}
	mb.Lock()
	if !mb.dropped {
		f(mb)
	}
	mb.Unlock()
}

// dropIfEmpty removes a mailbox from the map once its last message is gone,
// reporting whether it did. The store lock is taken before the box lock; box
// holders never wait on the store lock, so the ordering cannot deadlock.
func (s *Store) dropIfEmpty(mailbox string) bool {
	s.Lock()
	defer s.Unlock()
	mb, ok := s.boxes[mailbox]
	if !ok {
		return false
	}
	mb.Lock()
	defer mb.Unlock()
	if len(mb.messages) > 0 {
		return false
	}
	mb.dropped = true
	delete(s.boxes, mailbox)
	return true
}

func (s *Store) emitDeleted(m *Message) {
	if s.extHost == nil {
		return
	}
	s.extHost.Events.AfterMessageDeleted.Emit(&event.MessageMetadata{
		Mailbox:    m.mailbox,
		ID:         m.id,
		From:       m.from,
		To:         m.to,
		Subject:    m.subject,
		Date:       m.date,
		ReceivedAt: m.receivedAt,
		Size:       m.Size(),
	})
}
