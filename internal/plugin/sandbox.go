package plugin

import (
	lua "github.com/yuin/gopher-lua"
)

// newSandboxedState creates a Lua state with only safe libraries opened.
func newSandboxedState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:        true,
		IncludeGoStackTrace: false,
	})

	// io, os, debug and package stay closed.
	for _, lib := range []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("livemark", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"token": luaToken,
	}))
	return L
}

// luaToken validates a span table and returns it. Scripts may also return
// plain tables; token exists to fail early with a useful message.
func luaToken(L *lua.LState) int {
	tbl := L.CheckTable(1)
	from, ok := tbl.RawGetString("from").(lua.LNumber)
	if !ok {
		L.ArgError(1, "token needs a numeric 'from'")
		return 0
	}
	to, ok := tbl.RawGetString("to").(lua.LNumber)
	if !ok {
		L.ArgError(1, "token needs a numeric 'to'")
		return 0
	}
	if to < from {
		L.ArgError(1, "token 'to' is before 'from'")
		return 0
	}
	L.Push(tbl)
	return 1
}
