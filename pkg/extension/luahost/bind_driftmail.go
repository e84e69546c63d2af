package luahost

import (
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

const (
	driftmailName       = "driftmail"
	driftmailAfterName  = "driftmail_after"
	driftmailBeforeName = "driftmail_before"
)

// DriftMail holds the event handler functions a script has registered on the
// `driftmail` global.
type DriftMail struct {
	After  DriftMailAfterFuncs
	Before DriftMailBeforeFuncs
}

// DriftMailAfterFuncs holds handlers for after-events.
type DriftMailAfterFuncs struct {
	MessageDeleted *lua.LFunction
	MessageStored  *lua.LFunction
}

// DriftMailBeforeFuncs holds handlers for before-events.
type DriftMailBeforeFuncs struct {
	MailFromAccepted *lua.LFunction
	RcptToAccepted   *lua.LFunction
}

func registerDriftMailTypes(ls *lua.LState) {
	// driftmail type.
	mt := ls.NewTypeMetatable(driftmailName)
	ls.SetField(mt, "__index", ls.NewFunction(driftmailIndex))

	// driftmail.after type.
	mt = ls.NewTypeMetatable(driftmailAfterName)
	ls.SetField(mt, "__index", ls.NewFunction(driftmailAfterIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(driftmailAfterNewIndex))

	// driftmail.before type.
	mt = ls.NewTypeMetatable(driftmailBeforeName)
	ls.SetField(mt, "__index", ls.NewFunction(driftmailBeforeIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(driftmailBeforeNewIndex))

	// driftmail global.
	ls.SetGlobal(driftmailName, wrapDriftMail(ls, &DriftMail{}))
}

func wrapDriftMail(ls *lua.LState, val *DriftMail) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(driftmailName))

	return ud
}

func wrapDriftMailAfter(ls *lua.LState, val *DriftMailAfterFuncs) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(driftmailAfterName))

	return ud
}

func wrapDriftMailBefore(ls *lua.LState, val *DriftMailBeforeFuncs) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(driftmailBeforeName))

	return ud
}

// getDriftMail fetches the DriftMail global from the given state, holding the
// event handlers its script registered.
func getDriftMail(ls *lua.LState) (*DriftMail, error) {
	lv := ls.GetGlobal(driftmailName)
	if lv == nil {
		return nil, errors.New("driftmail object was nil")
	}

	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("driftmail object was type %s instead of UserData", lv.Type())
	}

	val, ok := ud.Value.(*DriftMail)
	if !ok {
		return nil, fmt.Errorf("driftmail object (%v) could not be cast", ud.Value)
	}

	return val, nil
}

func checkDriftMail(ls *lua.LState, pos int) *DriftMail {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*DriftMail); ok {
		return val
	}
	ls.ArgError(pos, driftmailName+" expected")
	return nil
}

func checkDriftMailAfter(ls *lua.LState, pos int) *DriftMailAfterFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*DriftMailAfterFuncs); ok {
		return val
	}
	ls.ArgError(pos, driftmailAfterName+" expected")
	return nil
}

func checkDriftMailBefore(ls *lua.LState, pos int) *DriftMailBeforeFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*DriftMailBeforeFuncs); ok {
		return val
	}
	ls.ArgError(pos, driftmailBeforeName+" expected")
	return nil
}

// driftmail getter.
func driftmailIndex(ls *lua.LState) int {
	dm := checkDriftMail(ls, 1)
	field := ls.CheckString(2)

	// Push the requested field's value onto the stack.
	switch field {
	case "after":
		ls.Push(wrapDriftMailAfter(ls, &dm.After))
	case "before":
		ls.Push(wrapDriftMailBefore(ls, &dm.Before))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// driftmail.after getter.
func driftmailAfterIndex(ls *lua.LState) int {
	after := checkDriftMailAfter(ls, 1)
	field := ls.CheckString(2)

	// Push the requested field's value onto the stack.
	switch field {
	case "message_deleted":
		ls.Push(funcOrNil(after.MessageDeleted))
	case "message_stored":
		ls.Push(funcOrNil(after.MessageStored))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// driftmail.after setter.
func driftmailAfterNewIndex(ls *lua.LState) int {
	after := checkDriftMailAfter(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "message_deleted":
		after.MessageDeleted = ls.CheckFunction(3)
	case "message_stored":
		after.MessageStored = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid driftmail.after index %q", index)
	}

	return 0
}

// driftmail.before getter.
func driftmailBeforeIndex(ls *lua.LState) int {
	before := checkDriftMailBefore(ls, 1)
	field := ls.CheckString(2)

	// Push the requested field's value onto the stack.
	switch field {
	case "mail_from_accepted":
		ls.Push(funcOrNil(before.MailFromAccepted))
	case "rcpt_to_accepted":
		ls.Push(funcOrNil(before.RcptToAccepted))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// driftmail.before setter.
func driftmailBeforeNewIndex(ls *lua.LState) int {
	before := checkDriftMailBefore(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "mail_from_accepted":
		before.MailFromAccepted = ls.CheckFunction(3)
	case "rcpt_to_accepted":
		before.RcptToAccepted = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid driftmail.before index %q", index)
	}

	return 0
}

func funcOrNil(f *lua.LFunction) lua.LValue {
	if f == nil {
		return lua.LNil
	}

	return f
}
