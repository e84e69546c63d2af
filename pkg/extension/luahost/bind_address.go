package luahost

import (
	"net/mail"

	lua "github.com/yuin/gopher-lua"
)

const mailAddressName = "address"

func registerMailAddressType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(mailAddressName)
	ls.SetGlobal(mailAddressName, mt)

	// Static attributes.
	ls.SetField(mt, "new", ls.NewFunction(newMailAddress))

	// Methods.
	ls.SetField(mt, "__index", ls.NewFunction(mailAddressIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(mailAddressNewIndex))
}

func newMailAddress(ls *lua.LState) int {
	val := &mail.Address{
		Name:    ls.CheckString(1),
		Address: ls.CheckString(2),
	}
	ls.Push(wrapMailAddress(ls, val))

	return 1
}

func wrapMailAddress(ls *lua.LState, val *mail.Address) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(mailAddressName))

	return ud
}

func unwrapMailAddress(ud *lua.LUserData) (*mail.Address, bool) {
	val, ok := ud.Value.(*mail.Address)
	return val, ok
}

// Checks there is a mail address at stack position `pos`, else throws Lua error.
func checkMailAddress(ls *lua.LState, pos int) *mail.Address {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*mail.Address); ok {
		return val
	}
	ls.ArgError(pos, mailAddressName+" expected")
	return nil
}

// Gets a field value from a mail address user object. This emulates a Lua
// table, allowing `addr.name` instead of a Lua object syntax of `addr:name()`.
func mailAddressIndex(ls *lua.LState) int {
	addr := checkMailAddress(ls, 1)
	field := ls.CheckString(2)

	// Push the requested field's value onto the stack.
	switch field {
	case "name":
		ls.Push(lua.LString(addr.Name))
	case "address":
		ls.Push(lua.LString(addr.Address))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// Sets a field value on a mail address user object.
func mailAddressNewIndex(ls *lua.LState) int {
	addr := checkMailAddress(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case "name":
		addr.Name = ls.CheckString(3)
	case "address":
		addr.Address = ls.CheckString(3)
	default:
		ls.RaiseError("invalid address index %q", index)
	}

	return 0
}
