package luahost_test

import (
	"net/mail"
	"strings"
	"testing"
	"time"

	"github.com/driftmail/driftmail/pkg/config"
	"github.com/driftmail/driftmail/pkg/extension"
	"github.com/driftmail/driftmail/pkg/extension/event"
	"github.com/driftmail/driftmail/pkg/extension/luahost"
	"github.com/driftmail/driftmail/pkg/test"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var consoleLogger = zerolog.New(zerolog.NewConsoleWriter())

func TestEmptyScript(t *testing.T) {
	script := ""
	extHost := extension.NewHost()

	luaHost, err := luahost.NewFromReader(
		consoleLogger, extHost, strings.NewReader(script), "test.lua")
	require.NoError(t, err)
	assert.Empty(t, luaHost.Functions, "no event functions should be detected")
}

func TestNoScriptConfigured(t *testing.T) {
	luaHost, err := luahost.New(config.Ext{}, extension.NewHost())
	require.NoError(t, err)
	assert.Nil(t, luaHost, "host must be nil when no script is configured")
}

func TestMissingScriptFile(t *testing.T) {
	conf := config.Ext{LuaScript: "/does/not/exist/driftmail.lua"}
	luaHost, err := luahost.New(conf, extension.NewHost())
	require.NoError(t, err)
	assert.Nil(t, luaHost, "host must be nil when the script file is absent")
}

func TestSyntaxError(t *testing.T) {
	script := "function driftmail.after.message_stored(msg"
	extHost := extension.NewHost()

	_, err := luahost.NewFromReader(
		consoleLogger, extHost, strings.NewReader(script), "test.lua")
	require.Error(t, err)
}

func TestLogger(t *testing.T) {
	script := `
		local logger = require("logger")
		logger.info("_test log entry_", {})
	`

	extHost := extension.NewHost()
	output := &strings.Builder{}
	logger := zerolog.New(output)

	_, err := luahost.NewFromReader(logger, extHost, strings.NewReader(script), "test.lua")
	require.NoError(t, err)

	assert.Contains(t, output.String(), "_test log entry_")
}

func TestDetectedFunctions(t *testing.T) {
	script := `
		function driftmail.after.message_stored(msg) end
		function driftmail.before.rcpt_to_accepted(session) end
	`
	extHost := extension.NewHost()

	luaHost, err := luahost.NewFromReader(
		consoleLogger, extHost, strings.NewReader(script), "test.lua")
	require.NoError(t, err)
	assert.Equal(t,
		[]string{"driftmail.after.message_stored", "driftmail.before.rcpt_to_accepted"},
		luaHost.Functions)
}

func TestAfterMessageDeleted(t *testing.T) {
	// Register lua event listener, setup notify channel.
	script := `
		async = true

		function driftmail.after.message_deleted(msg)
			-- Full message bindings tested elsewhere.
			assert_eq(msg.mailbox, "mb1")
			assert_eq(msg.id, "id1")
			notify:send(test_ok)
		end
	`
	extHost := extension.NewHost()
	luaHost, err := luahost.NewFromReader(consoleLogger, extHost,
		strings.NewReader(test.LuaInit+script), "test.lua")
	require.NoError(t, err)
	notify := luaHost.CreateChannel("notify")

	// Send event, check channel response is true.
	msg := &event.MessageMetadata{
		Mailbox: "mb1",
		ID:      "id1",
		From:    "<from1@example.com>",
		To:      []string{"<to1@example.com>"},
		Date:    time.Date(2001, time.February, 3, 4, 5, 6, 0, time.UTC),
		Subject: "subj1",
		Size:    42,
	}
	extHost.Events.AfterMessageDeleted.Emit(msg)
	test.AssertNotified(t, notify)
}

func TestAfterMessageStored(t *testing.T) {
	// Register lua event listener, setup notify channel.
	script := `
		async = true

		function driftmail.after.message_stored(msg)
			-- Full message bindings tested elsewhere.
			assert_eq(msg.mailbox, "mb1")
			assert_eq(msg.id, "id1")
			notify:send(test_ok)
		end
	`
	extHost := extension.NewHost()
	luaHost, err := luahost.NewFromReader(consoleLogger, extHost,
		strings.NewReader(test.LuaInit+script), "test.lua")
	require.NoError(t, err)
	notify := luaHost.CreateChannel("notify")

	// Send event, check channel response is true.
	msg := &event.MessageMetadata{
		Mailbox: "mb1",
		ID:      "id1",
		From:    "<from1@example.com>",
		To:      []string{"<to1@example.com>"},
		Date:    time.Date(2001, time.February, 3, 4, 5, 6, 0, time.UTC),
		Subject: "subj1",
		Size:    42,
	}
	extHost.Events.AfterMessageStored.Emit(msg)
	test.AssertNotified(t, notify)
}

func TestBeforeMailFromAccepted(t *testing.T) {
	// Register lua event listener.
	script := `
		function driftmail.before.mail_from_accepted(session)
			if session.from.address == "from@example.com" then
				return smtp.allow()
			end
			return smtp.deny(521, "Go away")
		end
	`
	extHost := extension.NewHost()
	_, err := luahost.NewFromReader(
		consoleLogger, extHost, strings.NewReader(test.LuaInit+script), "test.lua")
	require.NoError(t, err)

	{
		// Send event to be accepted.
		session := event.SMTPSession{
			From: &mail.Address{Name: "", Address: "from@example.com"},
		}
		got := extHost.Events.BeforeMailFromAccepted.Emit(&session)
		require.NotNil(t, got, "Expected result from Emit()")
		assert.Equal(t, event.ActionAllow, got.Action)
	}

	{
		// Send event to be denied.
		session := event.SMTPSession{
			From: &mail.Address{Name: "", Address: "from@reject.com"},
		}
		got := extHost.Events.BeforeMailFromAccepted.Emit(&session)
		require.NotNil(t, got, "Expected result from Emit()")
		assert.Equal(t, event.ActionDeny, got.Action)
		assert.Equal(t, 521, got.ErrorCode)
		assert.Equal(t, "Go away", got.ErrorMsg)
	}
}

func TestBeforeRcptToAccepted(t *testing.T) {
	// Event to send.
	session := event.SMTPSession{
		From: &mail.Address{Name: "", Address: "from@example.com"},
		To: []*mail.Address{
			{Name: "", Address: "to1@example.com"},
			{Name: "", Address: "to2@example.com"},
		},
		RemoteAddr: "1.2.3.4",
	}

	// Register lua event listener.
	script := `
		async = true

		function driftmail.before.rcpt_to_accepted(session)
			-- Verify incoming values.
			assert_eq(session.from.address, "from@example.com")
			assert_eq(2, #session.to)
			assert_eq(session.to[1].address, "to1@example.com")
			assert_eq(session.to[2].address, "to2@example.com")
			assert_eq(session.remote_addr, "1.2.3.4")
			notify:send(test_ok)

			return smtp.defer()
		end
	`
	extHost := extension.NewHost()
	luaHost, err := luahost.NewFromReader(consoleLogger, extHost,
		strings.NewReader(test.LuaInit+script), "test.lua")
	require.NoError(t, err)
	notify := luaHost.CreateChannel("notify")

	// Send event to be deferred.
	got := extHost.Events.BeforeRcptToAccepted.Emit(&session)
	require.NotNil(t, got, "Expected result from Emit()")

	// Verify Lua assertions passed.
	test.AssertNotified(t, notify)

	// Verify response values.
	want := event.SMTPResponse{Action: event.ActionDefer}
	assert.Equal(t, want, *got)
}

func TestBeforeHookNilReturn(t *testing.T) {
	// Register lua event listener returning no verdict.
	script := `
		function driftmail.before.mail_from_accepted(session)
			return nil
		end
	`
	extHost := extension.NewHost()
	_, err := luahost.NewFromReader(
		consoleLogger, extHost, strings.NewReader(test.LuaInit+script), "test.lua")
	require.NoError(t, err)

	session := event.SMTPSession{
		From: &mail.Address{Name: "", Address: "from@example.com"},
	}
	got := extHost.Events.BeforeMailFromAccepted.Emit(&session)
	assert.Nil(t, got, "nil verdict must leave the server policy in charge")
}

func TestBeforeHookScriptError(t *testing.T) {
	// Register lua event listener that always fails.
	script := `
		function driftmail.before.mail_from_accepted(session)
			error("session handler exploded")
		end
	`
	extHost := extension.NewHost()
	output := &strings.Builder{}
	logger := zerolog.New(output)
	_, err := luahost.NewFromReader(
		logger, extHost, strings.NewReader(test.LuaInit+script), "test.lua")
	require.NoError(t, err)

	session := event.SMTPSession{
		From: &mail.Address{Name: "", Address: "from@example.com"},
	}
	got := extHost.Events.BeforeMailFromAccepted.Emit(&session)
	assert.Nil(t, got, "a failing script must not produce a verdict")
	assert.Contains(t, output.String(), "session handler exploded")
}
