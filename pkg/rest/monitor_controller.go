package rest

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/msghub"
	"github.com/driftmail/driftmail/pkg/rest/model"
	"github.com/driftmail/driftmail/pkg/server/web"
	"github.com/driftmail/driftmail/pkg/storage"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512

	// How long the events/next long-poll waits before replying 204.
	longPollWindow = 25 * time.Second
)

// options for gorilla connection upgrader
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// msgListener queues monitor events from the msghub for one websocket.
type msgListener struct {
	hub     *msghub.Hub              // Global message hub.
	c       chan *model.MonitorEvent // Queue of outgoing events.
	mailbox string                   // Mailbox to monitor, "" means all.

	done      chan struct{} // Closed when the listener shuts down.
	closeOnce sync.Once
}

// newMsgListener creates a listener and registers it with the hub, which
// replays recent history. A non-empty mailbox restricts the stream to that
// mailbox.
func newMsgListener(hub *msghub.Hub, mailbox string) *msgListener {
	ml := &msgListener{
		hub:     hub,
		c:       make(chan *model.MonitorEvent, 100),
		mailbox: mailbox,
		done:    make(chan struct{}),
	}
	hub.AddListener(ml)
	return ml
}

// Receive queues an incoming message event for the websocket.
func (ml *msgListener) Receive(msg event.MessageMetadata) error {
	if ml.mailbox != "" && ml.mailbox != msg.Mailbox {
		// Did not match the watched mailbox name.
		return nil
	}
	ev := &model.MonitorEvent{
		Variant: "message-stored",
		Header:  makeHeader(&msg),
	}
	select {
	case ml.c <- ev:
		return nil
	case <-ml.done:
		return errors.New("monitor listener closed")
	}
}

// WSReader makes sure the websocket client is still connected, discarding any
// messages it sends.
func (ml *msgListener) WSReader(conn *websocket.Conn) {
	slog := log.With().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Logger()
	defer ml.Close()

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn().Err(err).Msg("Failed to set read deadline")
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			slog.Warn().Err(err).Msg("Failed to set read deadline in pong")
		}
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(
				err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived,
			) {
				slog.Warn().Err(err).Msg("Socket error")
			} else {
				slog.Debug().Msg("Closing socket")
			}
			break
		}
	}
}

// WSWriter relays queued events to the websocket client, pinging it to
// verify it is still connected.
func (ml *msgListener) WSWriter(conn *websocket.Conn) {
	slog := log.With().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Logger()

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ml.Close()
	}()

	for {
		select {
		case ev := <-ml.c:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				slog.Warn().Err(err).Msg("Failed to set write deadline for msg")
			}
			if conn.WriteJSON(ev) != nil {
				// Write failed.
				return
			}
		case <-ml.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				slog.Warn().Err(err).Msg("Failed to set write deadline for ping")
			}
			if conn.WriteMessage(websocket.PingMessage, []byte{}) != nil {
				// Write error.
				return
			}
		}
	}
}

// Close removes the listener registration and releases its consumers.
func (ml *msgListener) Close() {
	ml.closeOnce.Do(func() {
		ml.hub.RemoveListener(ml)
		close(ml.done)
	})
}

// MonitorAllMessages is a web handler which upgrades the connection to a
// websocket and streams every stored message event.
func MonitorAllMessages(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	return monitorMessages(w, req, ctx, "")
}

// MonitorMailboxMessages is a web handler which upgrades the connection to a
// websocket and streams stored message events for a single mailbox.
func MonitorMailboxMessages(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	mailbox, _, err := ctx.AddrPolicy.NormalizeMailbox(ctx.Vars["name"])
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	return monitorMessages(w, req, ctx, mailbox)
}

// monitorMessages upgrades to a websocket, then registers a hub listener to
// feed it until either side closes.
func monitorMessages(w http.ResponseWriter, req *http.Request, ctx *web.Context, mailbox string) error {
	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return err
	}
	web.ExpWebSocketConnectsCurrent.Add(1)
	defer func() {
		_ = conn.Close()
		web.ExpWebSocketConnectsCurrent.Add(-1)
	}()
	log.Debug().Str("module", "rest").Str("proto", "WebSocket").
		Str("remote", conn.RemoteAddr().String()).Msg("Upgraded to WebSocket")

	ml := newMsgListener(ctx.MsgHub, mailbox)
	go ml.WSWriter(conn)
	ml.WSReader(conn)
	return nil
}

// NextMailboxMessage is a web handler which blocks until a message arrives
// in the mailbox, rendering its summary; an empty long-poll window renders
// 204 instead.
func NextMailboxMessage(w http.ResponseWriter, req *http.Request, ctx *web.Context) error {
	mailbox, _, err := ctx.AddrPolicy.NormalizeMailbox(ctx.Vars["name"])
	if err != nil {
		return web.RenderError(w, http.StatusBadRequest, err.Error())
	}
	pl := &pollListener{mailbox: mailbox, c: make(chan event.MessageMetadata, 1)}
	ctx.MsgHub.AddLiveListener(pl)
	defer ctx.MsgHub.RemoveListener(pl)

	timer := time.NewTimer(longPollWindow)
	defer timer.Stop()
	select {
	case meta := <-pl.c:
		msg, err := ctx.Manager.GetMessage(meta.Mailbox, meta.ID)
		if errors.Is(err, storage.ErrNotExist) {
			// Deleted before it could be rendered.
			w.WriteHeader(http.StatusNoContent)
			return nil
		}
		if err != nil {
			return fmt.Errorf("getting message %q from %q: %w", meta.ID, meta.Mailbox, err)
		}
		return web.RenderJSON(w, makeSummary(msg))
	case <-timer.C:
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
}

// pollListener captures the first hub event for a mailbox.
type pollListener struct {
	mailbox string
	c       chan event.MessageMetadata
}

// Receive forwards the first matching event; later ones are dropped.
func (pl *pollListener) Receive(msg event.MessageMetadata) error {
	if msg.Mailbox != pl.mailbox {
		return nil
	}
	select {
	case pl.c <- msg:
	default:
	}
	return nil
}

// makeHeader builds the monitor view of stored message metadata.
func makeHeader(msg *event.MessageMetadata) *model.Header {
	return &model.Header{
		Mailbox:    msg.Mailbox,
		ID:         msg.ID,
		From:       msg.From,
		To:         msg.To,
		Subject:    msg.Subject,
		Date:       msg.Date,
		ReceivedAt: msg.ReceivedAt,
		Size:       msg.Size,
	}
}
