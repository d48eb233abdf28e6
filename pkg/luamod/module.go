// Package luamod loads plugin entry modules into sandboxed Lua states and
// exposes their tools and hooks as Go callables.
//
// A module's contract is classified once at load time: it either exports an
// activate function, a default function, static tools/hooks declarations,
// or nothing usable. The state stays alive for the lifetime of the reload
// generation so tool executors and hook handlers registered by the module
// keep working; all calls into one state are serialized by the module
// mutex (gopher-lua states are not goroutine-safe).
package luamod

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// Kind is the module contract resolved at load time.
type Kind int

const (
	// KindInvalid modules export neither an activation function nor
	// static declarations.
	KindInvalid Kind = iota
	// KindActivate modules export an activate(ctx) function.
	KindActivate
	// KindDefault modules export a default(ctx) function, or the chunk
	// itself returns a bare function.
	KindDefault
	// KindStatic modules only declare tools/hooks tables.
	KindStatic
)

func (k Kind) String() string {
	switch k {
	case KindActivate:
		return "activate"
	case KindDefault:
		return "default"
	case KindStatic:
		return "static"
	}
	return "invalid"
}

// ErrModuleClosed is returned when a tool or hook of a replaced generation
// is invoked after its state was torn down.
var ErrModuleClosed = errors.New("luamod: module is closed")

// Module is one loaded plugin entry module.
type Module struct {
	logger zerolog.Logger
	path   string

	mu     sync.Mutex
	state  *lua.LState
	br     *bridge
	kind   Kind
	root   *lua.LTable
	entry  *lua.LFunction
	closed bool
}

// Load executes the entry file in a fresh sandboxed state and classifies
// the module contract from the chunk's return value.
func Load(path string, logger zerolog.Logger) (*Module, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	openSafeLibraries(L)

	m := &Module{
		logger: logger.With().Str("component", "luamod").Str("module", path).Logger(),
		path:   path,
		state:  L,
		br:     &bridge{L: L},
	}

	ret, err := m.runFile(path)
	if err != nil {
		L.Close()
		return nil, err
	}
	m.classify(ret)
	return m, nil
}

// openSafeLibraries opens base, table, string and math. io, os, debug and
// package stay closed; plugin modules get no ambient system access beyond
// the host context. Each open call leaves its module table on the stack,
// so the stack is cleared before the entry chunk runs.
func openSafeLibraries(L *lua.LState) {
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	L.SetTop(0)
}

func (m *Module) runFile(path string) (ret lua.LValue, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	fn, err := m.state.LoadFile(path)
	if err != nil {
		return lua.LNil, err
	}

	base := m.state.GetTop()
	m.state.Push(fn)
	if err := m.state.PCall(0, lua.MultRet, nil); err != nil {
		m.state.SetTop(base)
		return lua.LNil, err
	}

	if m.state.GetTop() == base {
		return lua.LNil, nil
	}
	ret = m.state.Get(base + 1)
	m.state.SetTop(base)
	return ret, nil
}

func (m *Module) classify(ret lua.LValue) {
	switch v := ret.(type) {
	case *lua.LFunction:
		m.kind = KindDefault
		m.entry = v
	case *lua.LTable:
		m.root = v
		if fn := tableFunc(v, "activate"); fn != nil {
			m.kind = KindActivate
			m.entry = fn
			return
		}
		if fn := tableFunc(v, "default"); fn != nil {
			m.kind = KindDefault
			m.entry = fn
			return
		}
		if tableTable(v, "tools") != nil || tableTable(v, "hooks") != nil {
			m.kind = KindStatic
			return
		}
		m.kind = KindInvalid
	default:
		m.kind = KindInvalid
	}
}

// Kind returns the module contract.
func (m *Module) Kind() Kind {
	return m.kind
}

// Path returns the entry file path.
func (m *Module) Path() string {
	return m.path
}

// Close tears down the Lua state. Executors and handlers fail with
// ErrModuleClosed afterwards.
func (m *Module) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.state.Close()
	m.closed = true
}

// ToolDef is a tool declaration extracted from the module.
type ToolDef struct {
	Name        string
	Description string
	Category    string
	InputSchema map[string]any

	fn  *lua.LFunction
	mod *Module
}

// HasExecute reports whether the declaration carries an execute function.
func (d ToolDef) HasExecute() bool {
	return d.fn != nil
}

// Executor binds the merged runtime config into a Go closure. Callers
// supply only the arguments and an optional chat id; the Lua function
// receives (args, context) with the config inside the context table.
func (d ToolDef) Executor(mergedConfig map[string]any) func(ctx context.Context, args map[string]any, chatID string) (any, error) {
	mod := d.mod
	fn := d.fn
	return func(ctx context.Context, args map[string]any, chatID string) (any, error) {
		callCtx := map[string]any{"config": mergedConfig}
		if chatID != "" {
			callCtx["chat_id"] = chatID
		}
		return mod.call(fn, args, callCtx)
	}
}

// HookDef is a hook declaration extracted from the module.
type HookDef struct {
	Event       string
	Mode        string
	PriorityRaw any

	fn  *lua.LFunction
	mod *Module
}

// HasHandler reports whether the declaration carries a handler function.
func (d HookDef) HasHandler() bool {
	return d.fn != nil
}

// Handler wraps the Lua handler as a Go callback. A Lua nil return maps to
// a nil result, which modify dispatch treats as "payload unchanged".
func (d HookDef) Handler() func(ctx context.Context, payload any, hctx map[string]any) (any, error) {
	mod := d.mod
	fn := d.fn
	return func(ctx context.Context, payload any, hctx map[string]any) (any, error) {
		return mod.call(fn, payload, hctx)
	}
}

// call invokes a Lua function with two bridged arguments and returns the
// first bridged result.
func (m *Module) call(fn *lua.LFunction, arg any, callCtx map[string]any) (result any, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrModuleClosed
	}

	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	top := m.state.GetTop()
	m.state.Push(fn)
	m.state.Push(m.br.toLua(arg))
	m.state.Push(m.br.toLua(anyMap(callCtx)))
	if err := m.state.PCall(2, lua.MultRet, nil); err != nil {
		m.state.SetTop(top)
		return nil, err
	}

	nret := m.state.GetTop() - top
	if nret <= 0 {
		return nil, nil
	}
	result = m.br.toGo(m.state.Get(top + 1))
	m.state.Pop(nret)
	return result, nil
}

func anyMap(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// StaticDefs extracts the module's statically declared tools and hooks.
// Entries that are not tables yield empty defs, which fail validation at
// registration time.
func (m *Module) StaticDefs() ([]ToolDef, []HookDef) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root == nil || m.closed {
		return nil, nil
	}
	return m.toolDefs(tableTable(m.root, "tools")), m.hookDefs(tableTable(m.root, "hooks"))
}

func (m *Module) toolDefs(t *lua.LTable) []ToolDef {
	if t == nil {
		return nil
	}
	var defs []ToolDef
	for i := 1; i <= t.Len(); i++ {
		entry, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			defs = append(defs, ToolDef{mod: m})
			continue
		}
		defs = append(defs, m.toolDefFromTable(entry))
	}
	return defs
}

func (m *Module) toolDefFromTable(t *lua.LTable) ToolDef {
	def := ToolDef{
		Name:        tableString(t, "name"),
		Description: tableString(t, "description"),
		Category:    tableString(t, "category"),
		fn:          tableFunc(t, "execute"),
		mod:         m,
	}
	if schemaTable := tableTable(t, "input_schema"); schemaTable != nil {
		if obj, ok := m.br.toGo(schemaTable).(map[string]any); ok {
			def.InputSchema = obj
		}
	}
	return def
}

func (m *Module) hookDefs(t *lua.LTable) []HookDef {
	if t == nil {
		return nil
	}
	var defs []HookDef
	for i := 1; i <= t.Len(); i++ {
		entry, ok := t.RawGetInt(i).(*lua.LTable)
		if !ok {
			defs = append(defs, HookDef{mod: m})
			continue
		}
		defs = append(defs, m.hookDefFromTable(entry))
	}
	return defs
}

func (m *Module) hookDefFromTable(t *lua.LTable) HookDef {
	return HookDef{
		Event:       tableString(t, "event"),
		Mode:        tableString(t, "mode"),
		PriorityRaw: m.br.toGo(t.RawGetString("priority")),
		fn:          tableFunc(t, "handler"),
		mod:         m,
	}
}

// HostContext is what the platform exposes to a module's activation
// function: registration callbacks, a logger, the merged config and the
// manifest.
type HostContext struct {
	RegisterTool func(ToolDef)
	RegisterHook func(HookDef)
	Log          func(message string)
	Config       map[string]any
	Manifest     map[string]any
}

// RunActivate calls the module's activate (or default) function with the
// host context. Registrations may happen through the context callbacks
// during the call and through a returned {tools=..., hooks=...} table,
// which is parsed into the returned defs. An error means the activation
// failed as a whole.
func (m *Module) RunActivate(host HostContext) (tools []ToolDef, hooks []HookDef, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, nil, ErrModuleClosed
	}
	if m.entry == nil {
		return nil, nil, fmt.Errorf("module has no activation function")
	}

	defer func() {
		if r := recover(); r != nil {
			tools, hooks = nil, nil
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()

	ctx := m.buildHostTable(host)

	top := m.state.GetTop()
	m.state.Push(m.entry)
	m.state.Push(ctx)
	if err := m.state.PCall(1, lua.MultRet, nil); err != nil {
		m.state.SetTop(top)
		return nil, nil, err
	}

	nret := m.state.GetTop() - top
	if nret > 0 {
		if ret, ok := m.state.Get(top + 1).(*lua.LTable); ok {
			tools = m.toolDefs(tableTable(ret, "tools"))
			hooks = m.hookDefs(tableTable(ret, "hooks"))
		}
		m.state.Pop(nret)
	}
	return tools, hooks, nil
}

func (m *Module) buildHostTable(host HostContext) *lua.LTable {
	ctx := m.state.NewTable()

	ctx.RawSetString("register_tool", m.state.NewFunction(func(L *lua.LState) int {
		if host.RegisterTool == nil {
			return 0
		}
		if entry, ok := L.Get(1).(*lua.LTable); ok {
			host.RegisterTool(m.toolDefFromTable(entry))
		} else {
			host.RegisterTool(ToolDef{mod: m})
		}
		return 0
	}))

	ctx.RawSetString("register_hook", m.state.NewFunction(func(L *lua.LState) int {
		if host.RegisterHook == nil {
			return 0
		}
		if entry, ok := L.Get(1).(*lua.LTable); ok {
			host.RegisterHook(m.hookDefFromTable(entry))
		} else {
			host.RegisterHook(HookDef{mod: m})
		}
		return 0
	}))

	ctx.RawSetString("log", m.state.NewFunction(func(L *lua.LState) int {
		if host.Log != nil {
			host.Log(L.ToString(1))
		}
		return 0
	}))

	ctx.RawSetString("config", m.br.toLua(anyMap(host.Config)))
	ctx.RawSetString("manifest", m.br.toLua(anyMap(host.Manifest)))
	return ctx
}
