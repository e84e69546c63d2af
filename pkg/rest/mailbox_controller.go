package rest

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/message"
	"github.com/driftmail/driftmail/pkg/rest/model"
	"github.com/driftmail/driftmail/pkg/sanitize"
	"github.com/driftmail/driftmail/pkg/server/web"
	"github.com/driftmail/driftmail/pkg/storage"
	"github.com/driftmail/driftmail/pkg/stringutil"
)

// previewLength caps the summary preview text.
const previewLength = 120

// GetHealth reports service liveness.
func GetHealth(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	return web.RenderJSON(w, &model.Health{
		Status:  "ok",
		Version: config.Version,
	})
}

// ListMessagesByEmail renders the mailbox resolved from the address in the
// email query parameter.
func ListMessagesByEmail(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	addr := strings.TrimSpace(req.URL.Query().Get("email"))
	if addr == "" {
		return web.RenderError(w, http.StatusBadRequest, "missing email query parameter")
	}
	return renderMailboxList(w, ctx, addr)
}

// ListMailboxMessages renders the mailbox named in the URI path.
func ListMailboxMessages(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	return renderMailboxList(w, ctx, ctx.Vars["name"])
}

// GetMessageByEmail renders one message from the mailbox resolved from the
// address in the email query parameter.
func GetMessageByEmail(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	addr := strings.TrimSpace(req.URL.Query().Get("email"))
	if addr == "" {
		return web.RenderError(w, http.StatusBadRequest, "missing email query parameter")
	}
	return renderMessageDetail(w, ctx, addr, ctx.Vars["id"])
}

// GetMailboxMessage renders one message from the mailbox named in the URI
// path.
func GetMailboxMessage(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	return renderMessageDetail(w, ctx, ctx.Vars["name"], ctx.Vars["id"])
}

// PurgeMailboxMessages deletes the entire contents of a mailbox.
func PurgeMailboxMessages(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	mailbox, _, err := ctx.AddrPolicy.NormalizeMailbox(ctx.Vars["name"])
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	if err := ctx.Manager.PurgeMessages(mailbox); err != nil {
		return fmt.Errorf("purging mailbox %q: %w", mailbox, err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// DeleteMailboxMessage removes a single message. Unknown IDs are a no-op,
// keeping deletes idempotent.
func DeleteMailboxMessage(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	mailbox, _, err := ctx.AddrPolicy.NormalizeMailbox(ctx.Vars["name"])
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	id := strings.TrimSpace(ctx.Vars["id"])
	if id == "" {
		return web.RenderError(w, http.StatusBadRequest, "missing message id")
	}
	err = ctx.Manager.RemoveMessage(mailbox, id)
	if err != nil && !errors.Is(err, storage.ErrNotExist) {
		return fmt.Errorf("deleting message %q from %q: %w", id, mailbox, err)
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// GetMessageSource renders the raw source of a message, including headers.
func GetMessageSource(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	mailbox, _, err := ctx.AddrPolicy.NormalizeMailbox(ctx.Vars["name"])
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	r, err := ctx.Manager.SourceReader(mailbox, ctx.Vars["id"])
	if errors.Is(err, storage.ErrNotExist) {
		return web.RenderError(w, http.StatusNotFound, "message not found")
	}
	if err != nil {
		// Does not indicate missing, likely an IO error.
		return fmt.Errorf("getting source of %q from %q: %w", ctx.Vars["id"], mailbox, err)
	}
	defer func() { _ = r.Close() }()
	w.Header().Set("Content-Type", "text/plain")
	_, err = io.Copy(w, r)
	return err
}

// GetMessageHTML renders the sanitized HTML body of a message.
func GetMessageHTML(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	mailbox, _, err := ctx.AddrPolicy.NormalizeMailbox(ctx.Vars["name"])
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	msg, err := ctx.Manager.GetMessage(mailbox, ctx.Vars["id"])
	if errors.Is(err, storage.ErrNotExist) {
		return web.RenderError(w, http.StatusNotFound, "message not found")
	}
	if err != nil {
		return fmt.Errorf("getting message %q from %q: %w", ctx.Vars["id"], mailbox, err)
	}
	if strings.TrimSpace(msg.HTML) == "" {
		return web.RenderError(w, http.StatusNotFound, "message has no HTML body")
	}
	safe, err := sanitize.HTML(msg.HTML)
	if err != nil {
		return fmt.Errorf("sanitizing HTML of %q: %w", ctx.Vars["id"], err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, err = io.WriteString(w, safe)
	return err
}

// renderMailboxList resolves addr and writes the mailbox listing, newest
// message first.
func renderMailboxList(w http.ResponseWriter, ctx *web.Context, addr string) error {
	mailbox, email, err := ctx.AddrPolicy.NormalizeMailbox(addr)
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	messages, err := ctx.Manager.GetMessages(mailbox)
	if err != nil {
		// Does not indicate empty, likely an IO error.
		return fmt.Errorf("getting messages for %q: %w", mailbox, err)
	}
	summaries := make([]*model.Summary, len(messages))
	for i, msg := range messages {
		summaries[i] = makeSummary(msg)
	}
	return web.RenderJSON(w, &model.MailboxList{
		Mailbox:  mailbox,
		Email:    email,
		Count:    len(summaries),
		Messages: summaries,
	})
}

// renderMessageDetail resolves addr and writes the full message document.
func renderMessageDetail(w http.ResponseWriter, ctx *web.Context, addr, id string) error {
	mailbox, email, err := ctx.AddrPolicy.NormalizeMailbox(addr)
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return web.RenderError(w, http.StatusBadRequest, "missing message id")
	}
	msg, err := ctx.Manager.GetMessage(mailbox, id)
	if errors.Is(err, storage.ErrNotExist) {
		return web.RenderError(w, http.StatusNotFound, "message not found")
	}
	if err != nil {
		return fmt.Errorf("getting message %q from %q: %w", id, mailbox, err)
	}
	return web.RenderJSON(w, &model.MessageDetail{
		Mailbox: mailbox,
		Email:   email,
		Message: makeMessage(msg),
	})
}

// makeSummary builds the API summary of a message. The preview is taken from
// the text body or, when that is empty, the visible text of the HTML body.
func makeSummary(msg *message.Message) *model.Summary {
	preview := stringutil.Preview(msg.Text, previewLength)
	if preview == "" {
		preview = stringutil.Preview(sanitize.Text(msg.HTML), previewLength)
	}
	return &model.Summary{
		ID:         msg.ID,
		Mailbox:    msg.Mailbox,
		From:       msg.From,
		Subject:    msg.Subject,
		Date:       msg.Date,
		ReceivedAt: msg.ReceivedAt,
		Size:       msg.Size,
		HasHTML:    strings.TrimSpace(msg.HTML) != "",
		Preview:    preview,
	}
}

// makeMessage builds the full API form of a message.
func makeMessage(msg *message.Message) *model.Message {
	to := msg.To
	if to == nil {
		to = []string{}
	}
	parseErrors := msg.ParseErrors
	if parseErrors == nil {
		parseErrors = []string{}
	}
	return &model.Message{
		Summary:     *makeSummary(msg),
		To:          to,
		Text:        msg.Text,
		HTML:        msg.HTML,
		ParseErrors: parseErrors,
	}
}
