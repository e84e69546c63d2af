// Package luahost runs the configured Lua extension script, routing extension
// host events to the functions the script registers on the driftmail global.
package luahost

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const listenerName = "lua"

// Host of Lua extensions.
type Host struct {
	Functions []string // Event functions detected in the lua script.
	extHost   *extension.Host
	pool      *statePool
	logger    zerolog.Logger
}

// New constructs a new Lua Host, pre-compiling the configured script. Returns
// nil without error when no script is configured or the file is absent.
func New(conf config.Ext, extHost *extension.Host) (*Host, error) {
	scriptPath := conf.LuaScript
	if scriptPath == "" {
		return nil, nil
	}

	logger := log.With().Str("module", "lua").Str("path", scriptPath).Logger()

	if fi, err := os.Stat(scriptPath); err != nil {
		logger.Info().Msg("Script file not found")
		return nil, nil
	} else if fi.IsDir() {
		return nil, fmt.Errorf("Lua script %v is a directory", scriptPath)
	}

	logger.Info().Msg("Loading script")
	file, err := os.Open(scriptPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return NewFromReader(logger, extHost, bufio.NewReader(file), scriptPath)
}

// NewFromReader constructs a new Lua Host, loading Lua source from the provided
// reader. The provided path is used in logging and error messages.
func NewFromReader(
	logger zerolog.Logger,
	extHost *extension.Host,
	r io.Reader,
	path string,
) (*Host, error) {
	// Pre-parse, and compile script.
	chunk, err := parse.Parse(r, path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	pool := newStatePool(logger, proto)
	h := &Host{extHost: extHost, pool: pool, logger: logger}

	// Build the first LState, confirming the script runs, then detect which
	// event functions it registered.
	ls, err := pool.getState()
	if err != nil {
		return nil, err
	}
	dm, err := getDriftMail(ls)
	if err != nil {
		return nil, err
	}
	h.wireListeners(dm)
	pool.putState(ls)

	return h, nil
}

// CreateChannel creates a channel and places it into the named global variable
// in newly created LStates.
func (h *Host) CreateChannel(name string) chan lua.LValue {
	return h.pool.createChannel(name)
}

// wireListeners subscribes to the extension host for each event function the
// script defined. Handlers look the function up again in whichever LState
// serves the event; function values are per-state.
func (h *Host) wireListeners(dm *DriftMail) {
	events := h.extHost.Events

	if dm.After.MessageDeleted != nil {
		h.Functions = append(h.Functions, "driftmail.after.message_deleted")
		events.AfterMessageDeleted.AddListener(listenerName, func(msg event.MessageMetadata) {
			h.handleMetadataEvent("message_deleted", afterMessageDeletedSlot, msg)
		})
	}
	if dm.After.MessageStored != nil {
		h.Functions = append(h.Functions, "driftmail.after.message_stored")
		events.AfterMessageStored.AddListener(listenerName, func(msg event.MessageMetadata) {
			h.handleMetadataEvent("message_stored", afterMessageStoredSlot, msg)
		})
	}
	if dm.Before.MailFromAccepted != nil {
		h.Functions = append(h.Functions, "driftmail.before.mail_from_accepted")
		events.BeforeMailFromAccepted.AddListener(listenerName,
			func(session event.SMTPSession) *event.SMTPResponse {
				return h.handleSessionEvent("mail_from_accepted", beforeMailFromSlot, session)
			})
	}
	if dm.Before.RcptToAccepted != nil {
		h.Functions = append(h.Functions, "driftmail.before.rcpt_to_accepted")
		events.BeforeRcptToAccepted.AddListener(listenerName,
			func(session event.SMTPSession) *event.SMTPResponse {
				return h.handleSessionEvent("rcpt_to_accepted", beforeRcptToSlot, session)
			})
	}
}

func afterMessageDeletedSlot(dm *DriftMail) *lua.LFunction { return dm.After.MessageDeleted }
func afterMessageStoredSlot(dm *DriftMail) *lua.LFunction  { return dm.After.MessageStored }
func beforeMailFromSlot(dm *DriftMail) *lua.LFunction      { return dm.Before.MailFromAccepted }
func beforeRcptToSlot(dm *DriftMail) *lua.LFunction        { return dm.Before.RcptToAccepted }

// handleMetadataEvent calls the script function registered for a message
// event. Script errors are logged, never propagated.
func (h *Host) handleMetadataEvent(
	name string,
	slot func(*DriftMail) *lua.LFunction,
	msg event.MessageMetadata,
) {
	logger := h.logger.With().Str("event", name).Logger()
	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state")
		return
	}
	defer h.pool.putState(ls)

	dm, err := getDriftMail(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get driftmail global")
		return
	}
	fn := slot(dm)
	if fn == nil {
		return
	}

	err = ls.CallByParam(
		lua.P{Fn: fn, NRet: 0, Protect: true},
		wrapMessageMetadata(ls, &msg))
	if err != nil {
		logger.Error().Err(err).Msg("Error in Lua event handler")
	}
}

// handleSessionEvent calls the script function registered for an SMTP policy
// event and returns its verdict. Script errors yield a nil verdict.
func (h *Host) handleSessionEvent(
	name string,
	slot func(*DriftMail) *lua.LFunction,
	session event.SMTPSession,
) *event.SMTPResponse {
	logger := h.logger.With().Str("event", name).Logger()
	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state")
		return nil
	}
	defer h.pool.putState(ls)

	dm, err := getDriftMail(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get driftmail global")
		return nil
	}
	fn := slot(dm)
	if fn == nil {
		return nil
	}

	err = ls.CallByParam(
		lua.P{Fn: fn, NRet: 1, Protect: true},
		wrapSMTPSession(ls, &session))
	if err != nil {
		logger.Error().Err(err).Msg("Error in Lua event handler")
		return nil
	}

	ret := ls.Get(-1)
	ls.Pop(1)
	if ret == lua.LNil {
		return nil
	}
	response, err := unwrapSMTPResponse(ret)
	if err != nil {
		logger.Error().Err(err).Msg("Lua event handler returned unexpected value")
		return nil
	}

	return response
}
