package luahost

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lua "github.com/yuin/gopher-lua"
)

func TestMailAddressGetters(t *testing.T) {
	want := &mail.Address{
		Name:    "Dora Datum",
		Address: "dora@example.com",
	}
	script := `
		assert(addr, "addr should not be nil")

		want = "Dora Datum"
		got = addr.name
		assert(got == want, string.format("got name %q, want %q", got, want))

		want = "dora@example.com"
		got = addr.address
		assert(got == want, string.format("got address %q, want %q", got, want))

		assert(addr.bogus == nil, "unknown field should be nil")
	`

	ls := lua.NewState()
	registerMailAddressType(ls)
	ls.SetGlobal("addr", wrapMailAddress(ls, want))
	require.NoError(t, ls.DoString(script))
}

func TestMailAddressSetters(t *testing.T) {
	want := &mail.Address{
		Name:    "Dora Datum",
		Address: "dora@example.com",
	}
	script := `
		assert(addr, "addr should not be nil")

		addr.name = "Dora Datum"
		addr.address = "dora@example.com"
	`

	got := &mail.Address{}
	ls := lua.NewState()
	registerMailAddressType(ls)
	ls.SetGlobal("addr", wrapMailAddress(ls, got))
	require.NoError(t, ls.DoString(script))

	assert.Equal(t, want, got)
}

func TestMailAddressNew(t *testing.T) {
	script := `addr = address.new("Dora Datum", "dora@example.com")`

	ls := lua.NewState()
	registerMailAddressType(ls)
	require.NoError(t, ls.DoString(script))

	ud, ok := ls.GetGlobal("addr").(*lua.LUserData)
	require.True(t, ok, "Wanted addr global to be userdata")
	got, ok := unwrapMailAddress(ud)
	require.True(t, ok)
	assert.Equal(t, &mail.Address{Name: "Dora Datum", Address: "dora@example.com"}, got)
}

func TestMailAddressInvalidIndex(t *testing.T) {
	ls := lua.NewState()
	registerMailAddressType(ls)
	ls.SetGlobal("addr", wrapMailAddress(ls, &mail.Address{}))

	err := ls.DoString(`addr.bogus = "nope"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid address index")
}
