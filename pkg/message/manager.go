package message

import (
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/policy"
	"github.com/driftmail/driftmail/pkg/storage"
	"github.com/rs/zerolog/log"
)

// Manager is the interface the SMTP and HTTP controllers use to interact
// with messages.
type Manager interface {
	Deliver(origin *policy.Origin, recipients []*policy.Recipient, source []byte) (ids []string, err error)
	GetMessage(mailbox, id string) (*Message, error)
	GetMessages(mailbox string) ([]*Message, error)
	PurgeMessages(mailbox string) error
	RemoveMessage(mailbox, id string) error
	SourceReader(mailbox, id string) (io.ReadCloser, error)
	MailboxForAddress(address string) (string, error)
}

// StoreManager is a message Manager backed by the storage.Store.
type StoreManager struct {
	AddrPolicy *policy.Addressing
	Store      storage.Store
	ExtHost    *extension.Host
}

// Deliver parses the transmission once and stores an independent copy per
// accepted recipient, each with its own ID and receipt time. The generated
// IDs are returned in recipient order. A storage failure rolls back copies
// already stored for this transmission.
func (s *StoreManager) Deliver(
	origin *policy.Origin,
	recipients []*policy.Recipient,
	source []byte,
) ([]string, error) {
	now := time.Now()
	envTo := make([]string, len(recipients))
	for i, r := range recipients {
		envTo[i] = r.Address.String()
	}
	p := parseSource(source, originString(origin), envTo)
	if p.date.IsZero() {
		p.date = now
	}
	ids := make([]string, 0, len(recipients))
	metas := make([]event.MessageMetadata, 0, len(recipients))
	for _, r := range recipients {
		delivery := &Delivery{
			Meta: event.MessageMetadata{
				Mailbox:    r.Mailbox,
				From:       p.from,
				To:         p.to,
				Date:       p.date,
				ReceivedAt: now,
				Subject:    p.subject,
				Size:       int64(len(source)),
			},
			Content: p.content,
			Raw:     source,
		}
		log.Debug().Str("module", "message").Str("mailbox", r.Mailbox).
			Int64("size", delivery.Size()).Msg("Delivering message")
		id, err := s.Store.AddMessage(delivery)
		if err != nil {
			for j, stored := range ids {
				_ = s.Store.RemoveMessage(recipients[j].Mailbox, stored)
			}
			return nil, fmt.Errorf("delivering to %q: %w", r.Mailbox, err)
		}
		ids = append(ids, id)
		meta := delivery.Meta
		meta.ID = id
		metas = append(metas, meta)
	}
	// Notify listeners only once the whole transmission has stored.
	if s.ExtHost != nil {
		for i := range metas {
			s.ExtHost.Events.AfterMessageStored.Emit(&metas[i])
		}
	}
	return ids, nil
}

// GetMessage returns the specified message.
func (s *StoreManager) GetMessage(mailbox, id string) (*Message, error) {
	sm, err := s.Store.GetMessage(mailbox, id)
	if err != nil {
		return nil, err
	}
	return makeMessage(sm), nil
}

// GetMessages returns the parsed contents of the specified mailbox, newest
// message first.
func (s *StoreManager) GetMessages(mailbox string) ([]*Message, error) {
	sms, err := s.Store.GetMessages(mailbox)
	if err != nil {
		return nil, err
	}
	messages := make([]*Message, len(sms))
	for i, sm := range sms {
		messages[i] = makeMessage(sm)
	}
	return messages, nil
}

// PurgeMessages removes all messages from the specified mailbox.
func (s *StoreManager) PurgeMessages(mailbox string) error {
	return s.Store.PurgeMessages(mailbox)
}

// RemoveMessage deletes the specified message.
func (s *StoreManager) RemoveMessage(mailbox, id string) error {
	return s.Store.RemoveMessage(mailbox, id)
}

// SourceReader allows the stored message source to be read.
func (s *StoreManager) SourceReader(mailbox, id string) (io.ReadCloser, error) {
	sm, err := s.Store.GetMessage(mailbox, id)
	if err != nil {
		return nil, err
	}
	return sm.Source()
}

// MailboxForAddress parses an email address to return the canonical mailbox
// name.
func (s *StoreManager) MailboxForAddress(address string) (string, error) {
	return s.AddrPolicy.ExtractMailbox(address)
}

// makeMessage populates Message from a storage.Message.
func makeMessage(m storage.Message) *Message {
	return &Message{
		MessageMetadata: *makeMetadata(m),
		Content: Content{
			Text:        m.Text(),
			HTML:        m.HTML(),
			ParseErrors: slices.Clone(m.ParseErrors()),
		},
	}
}

// makeMetadata populates MessageMetadata from a storage.Message.
func makeMetadata(m storage.Message) *event.MessageMetadata {
	return &event.MessageMetadata{
		Mailbox:    m.Mailbox(),
		ID:         m.ID(),
		From:       m.From(),
		To:         slices.Clone(m.To()),
		Date:       m.Date(),
		ReceivedAt: m.ReceivedAt(),
		Subject:    m.Subject(),
		Size:       m.Size(),
	}
}

// originString renders the SMTP envelope sender for header fallback use; the
// null reverse-path renders empty.
func originString(origin *policy.Origin) string {
	if origin == nil || origin.Null {
		return ""
	}
	return origin.Address.String()
}
