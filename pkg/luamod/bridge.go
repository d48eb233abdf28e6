package luamod

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// bridge converts values between Lua and the platform's JSON domain
// (nil, bool, int64/float64, string, []any, map[string]any). Everything a
// plugin hands the platform, and everything the platform hands a plugin,
// passes through here.
type bridge struct {
	L *lua.LState
}

// toGo converts a Lua value to a Go value. Functions and userdata have no
// JSON representation and map to nil; circular tables are broken at the
// repeated node.
func (b *bridge) toGo(lv lua.LValue) any {
	return b.toGoVisited(lv, make(map[*lua.LTable]bool))
}

func (b *bridge) toGoVisited(lv lua.LValue, visited map[*lua.LTable]bool) any {
	switch v := lv.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		f := float64(v)
		if f == float64(int64(f)) {
			return int64(f)
		}
		return f
	case lua.LString:
		return string(v)
	case *lua.LTable:
		if visited[v] {
			return nil
		}
		visited[v] = true
		return b.tableToGo(v, visited)
	}
	return nil
}

// tableToGo converts a Lua table to a slice when it is a contiguous
// 1-based array, otherwise to a string-keyed map.
func (b *bridge) tableToGo(t *lua.LTable, visited map[*lua.LTable]bool) any {
	isArray := true
	maxN := 0
	count := 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})
	if count != maxN {
		isArray = false
	}

	if isArray && maxN > 0 {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			arr[i-1] = b.toGoVisited(t.RawGetInt(i), visited)
		}
		return arr
	}

	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = fmt.Sprintf("%v", float64(kv))
		default:
			key = k.String()
		}
		m[key] = b.toGoVisited(v, visited)
	})
	return m
}

// toLua converts a JSON-domain Go value to a Lua value.
func (b *bridge) toLua(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	case string:
		return lua.LString(val)
	case []any:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, b.toLua(item))
		}
		return t
	case []string:
		t := b.L.NewTable()
		for i, item := range val {
			t.RawSetInt(i+1, lua.LString(item))
		}
		return t
	case map[string]any:
		t := b.L.NewTable()
		for key, item := range val {
			t.RawSetString(key, b.toLua(item))
		}
		return t
	}
	return lua.LNil
}

// tableString reads a string field from a table, empty when absent or not
// a string.
func tableString(t *lua.LTable, key string) string {
	if s, ok := t.RawGetString(key).(lua.LString); ok {
		return string(s)
	}
	return ""
}

// tableFunc reads a function field from a table.
func tableFunc(t *lua.LTable, key string) *lua.LFunction {
	if fn, ok := t.RawGetString(key).(*lua.LFunction); ok {
		return fn
	}
	return nil
}

// tableTable reads a table field from a table.
func tableTable(t *lua.LTable, key string) *lua.LTable {
	if sub, ok := t.RawGetString(key).(*lua.LTable); ok {
		return sub
	}
	return nil
}
