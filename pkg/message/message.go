// Package message defines the stored message model and the delivery path
// from SMTP intake into storage.
package message

import (
	"bytes"
	"io"
	"time"

	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/storage"
)

// Content holds the parsed bodies of a message plus any soft diagnostics
// collected while parsing.
type Content struct {
	Text        string
	HTML        string
	ParseErrors []string
}

// Message holds both the metadata and content of a message.
type Message struct {
	event.MessageMetadata
	Content
}

// Delivery wraps a parsed message and its raw source for submission to
// storage.
type Delivery struct {
	Meta    event.MessageMetadata
	Content Content
	Raw     []byte
}

var _ storage.Message = &Delivery{}

// Mailbox getter.
func (d *Delivery) Mailbox() string {
	return d.Meta.Mailbox
}

// ID getter.
func (d *Delivery) ID() string {
	return d.Meta.ID
}

// From getter.
func (d *Delivery) From() string {
	return d.Meta.From
}

// To getter.
func (d *Delivery) To() []string {
	return d.Meta.To
}

// Date getter.
func (d *Delivery) Date() time.Time {
	return d.Meta.Date
}

// ReceivedAt getter.
func (d *Delivery) ReceivedAt() time.Time {
	return d.Meta.ReceivedAt
}

// Subject getter.
func (d *Delivery) Subject() string {
	return d.Meta.Subject
}

// Text getter.
func (d *Delivery) Text() string {
	return d.Content.Text
}

// HTML getter.
func (d *Delivery) HTML() string {
	return d.Content.HTML
}

// ParseErrors getter.
func (d *Delivery) ParseErrors() []string {
	return d.Content.ParseErrors
}

// Size returns the raw source size in bytes.
func (d *Delivery) Size() int64 {
	return int64(len(d.Raw))
}

// Source contains the raw content of the message.
func (d *Delivery) Source() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(d.Raw)), nil
}
