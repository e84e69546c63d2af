// Package event defines the payload types sent to extension listeners.
package event

import (
	"net/mail"
	"time"
)

// SMTP verdict actions returned by before-event listeners.
const (
	ActionAllow = iota
	ActionDefer
	ActionDeny
)

// MessageMetadata contains the basic header data for a message event.
type MessageMetadata struct {
	Mailbox    string
	ID         string
	From       string
	To         []string
	Date       time.Time
	ReceivedAt time.Time
	Subject    string
	Size       int64
}

// SMTPSession describes an in-progress SMTP transaction awaiting a policy
// verdict. To holds the recipients accepted so far; for a RCPT event the
// candidate recipient is the final entry.
type SMTPSession struct {
	From       *mail.Address
	To         []*mail.Address
	RemoteAddr string
}

// SMTPResponse overrides the server's verdict on an SMTP command. ErrorCode
// and ErrorMsg apply to deny actions only.
type SMTPResponse struct {
	Action    int
	ErrorCode int
	ErrorMsg  string
}
