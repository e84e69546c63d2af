// Package client provides a REST client for DriftMail.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/driftmail/driftmail/pkg/rest/model"
)

// Client accesses the DriftMail REST API.
type Client struct {
	restClient
}

// New creates a REST API client given the base URL of a DriftMail server, ex:
// "http://localhost:3000"
func New(baseURL string, opts ...Option) (*Client, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	options := defaultOptions()
	for _, opt := range opts {
		opt(options)
	}
	c := &Client{
		restClient{
			client: &http.Client{
				Timeout:   options.timeout,
				Transport: options.transport,
			},
			baseURL: parsedURL,
		},
	}
	return c, nil
}

// Health checks the service is up, returning its version.
func (c *Client) Health(ctx context.Context) (health *model.Health, err error) {
	err = c.doJSON(ctx, "GET", "/api/health", &health)
	if err != nil {
		return nil, err
	}
	return
}

// ListMailbox returns summaries of the messages in the named mailbox, newest
// message first. A full email address may be given in place of the name.
func (c *Client) ListMailbox(ctx context.Context, name string) ([]*MessageSummary, error) {
	uri := "/api/mailboxes/" + url.PathEscape(name) + "/messages"
	var list model.MailboxList
	if err := c.doJSON(ctx, "GET", uri, &list); err != nil {
		return nil, err
	}
	summaries := make([]*MessageSummary, len(list.Messages))
	for i, s := range list.Messages {
		summaries[i] = &MessageSummary{Summary: s, client: c}
	}
	return summaries, nil
}

// ListAddress returns summaries of the messages held for an email address,
// newest message first.
func (c *Client) ListAddress(ctx context.Context, email string) ([]*MessageSummary, error) {
	uri := "/api/messages?email=" + url.QueryEscape(email)
	var list model.MailboxList
	if err := c.doJSON(ctx, "GET", uri, &list); err != nil {
		return nil, err
	}
	summaries := make([]*MessageSummary, len(list.Messages))
	for i, s := range list.Messages {
		summaries[i] = &MessageSummary{Summary: s, client: c}
	}
	return summaries, nil
}

// GetMessage returns the message details given a mailbox name and message ID.
func (c *Client) GetMessage(ctx context.Context, name, id string) (*Message, error) {
	uri := "/api/mailboxes/" + url.PathEscape(name) + "/messages/" + url.PathEscape(id)
	var detail model.MessageDetail
	if err := c.doJSON(ctx, "GET", uri, &detail); err != nil {
		return nil, err
	}
	return &Message{Message: detail.Message, client: c}, nil
}

// GetMessageSource returns the message source given a mailbox name and
// message ID.
func (c *Client) GetMessageSource(ctx context.Context, name, id string) (*bytes.Buffer, error) {
	uri := "/api/mailboxes/" + url.PathEscape(name) + "/messages/" + url.PathEscape(id) + "/source"
	resp, err := c.do(ctx, "GET", uri, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return nil,
			fmt.Errorf("unexpected HTTP response status %v: %s", resp.StatusCode, apiError(resp))
	}
	buf := new(bytes.Buffer)
	_, err = buf.ReadFrom(resp.Body)
	return buf, err
}

// DeleteMessage deletes a single message given the mailbox name and message
// ID. Deleting an unknown ID is not an error.
func (c *Client) DeleteMessage(ctx context.Context, name, id string) error {
	uri := "/api/mailboxes/" + url.PathEscape(name) + "/messages/" + url.PathEscape(id)
	return c.delete(ctx, uri)
}

// PurgeMailbox deletes all messages in the given mailbox.
func (c *Client) PurgeMailbox(ctx context.Context, name string) error {
	uri := "/api/mailboxes/" + url.PathEscape(name) + "/messages"
	return c.delete(ctx, uri)
}

// NextMessage blocks until a new message arrives in the named mailbox,
// returning its summary. It returns nil without error when the server closes
// the long-poll window empty; callers wanting to wait longer should retry.
func (c *Client) NextMessage(ctx context.Context, name string) (*MessageSummary, error) {
	uri := "/api/mailboxes/" + url.PathEscape(name) + "/events/next"
	resp, err := c.do(ctx, "GET", uri, nil)
	if err != nil {
		return nil, err
	}

	defer func() {
		_ = resp.Body.Close()
	}()
	switch resp.StatusCode {
	case http.StatusOK:
		var s model.Summary
		if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
			return nil, err
		}
		return &MessageSummary{Summary: &s, client: c}, nil
	case http.StatusNoContent:
		return nil, nil
	}
	return nil, fmt.Errorf("unexpected HTTP response status %v: %s", resp.StatusCode, apiError(resp))
}

// delete issues a DELETE for uri, accepting an empty success response.
func (c *Client) delete(ctx context.Context, uri string) error {
	resp, err := c.do(ctx, "DELETE", uri, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("unexpected HTTP response status %v: %s", resp.StatusCode, apiError(resp))
	}
	return nil
}

// MessageSummary represents a DriftMail message sans content.
type MessageSummary struct {
	*model.Summary
	client *Client
}

// GetMessage returns this message with content.
func (s *MessageSummary) GetMessage(ctx context.Context) (*Message, error) {
	return s.client.GetMessage(ctx, s.Mailbox, s.ID)
}

// GetSource returns the source for this message.
func (s *MessageSummary) GetSource(ctx context.Context) (*bytes.Buffer, error) {
	return s.client.GetMessageSource(ctx, s.Mailbox, s.ID)
}

// Delete deletes this message from the mailbox.
func (s *MessageSummary) Delete(ctx context.Context) error {
	return s.client.DeleteMessage(ctx, s.Mailbox, s.ID)
}

// Message represents a DriftMail message including content.
type Message struct {
	*model.Message
	client *Client
}

// GetSource returns the source for this message.
func (m *Message) GetSource(ctx context.Context) (*bytes.Buffer, error) {
	return m.client.GetMessageSource(ctx, m.Mailbox, m.ID)
}

// Delete deletes this message from the mailbox.
func (m *Message) Delete(ctx context.Context) error {
	return m.client.DeleteMessage(ctx, m.Mailbox, m.ID)
}
