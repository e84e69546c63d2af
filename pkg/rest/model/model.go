// Package model defines the JSON documents served by the REST API.
package model

import "time"

// Summary describes one stored message in mailbox listings and long-poll
// responses.
type Summary struct {
	ID         string    `json:"id"`
	Mailbox    string    `json:"mailbox"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Date       time.Time `json:"date"`
	ReceivedAt time.Time `json:"received_at"`
	Size       int64     `json:"size"`
	HasHTML    bool      `json:"has_html"`
	Preview    string    `json:"preview"`
}

// Message is the full parsed form of a stored message.
type Message struct {
	Summary
	To          []string `json:"to"`
	Text        string   `json:"text"`
	HTML        string   `json:"html"`
	ParseErrors []string `json:"parse_errors"`
}

// MailboxList wraps a mailbox listing with its resolved identity.
type MailboxList struct {
	Mailbox  string     `json:"mailbox"`
	Email    string     `json:"email"`
	Count    int        `json:"count"`
	Messages []*Summary `json:"messages"`
}

// MessageDetail wraps a fetched message with its resolved identity.
type MessageDetail struct {
	Mailbox string   `json:"mailbox"`
	Email   string   `json:"email"`
	Message *Message `json:"message"`
}

// Header identifies a stored message to monitor clients.
type Header struct {
	Mailbox    string    `json:"mailbox"`
	ID         string    `json:"id"`
	From       string    `json:"from"`
	To         []string  `json:"to"`
	Subject    string    `json:"subject"`
	Date       time.Time `json:"date"`
	ReceivedAt time.Time `json:"received_at"`
	Size       int64     `json:"size"`
}

// MonitorEvent is streamed to websocket monitors as mailbox activity occurs.
type MonitorEvent struct {
	Variant string  `json:"variant"`
	Header  *Header `json:"header"`
}

// Health reports service liveness.
type Health struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
