package luamod

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModule(t *testing.T, source string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "main.lua")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	return path
}

func loadModule(t *testing.T, source string) *Module {
	t.Helper()
	m, err := Load(writeModule(t, source), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(m.Close)
	return m
}

func TestLoadClassifiesActivateModule(t *testing.T) {
	m := loadModule(t, `return { activate = function(ctx) end }`)
	assert.Equal(t, KindActivate, m.Kind())
}

func TestLoadClassifiesDefaultModule(t *testing.T) {
	table := loadModule(t, `return { default = function(ctx) end }`)
	assert.Equal(t, KindDefault, table.Kind())

	bare := loadModule(t, `return function(ctx) end`)
	assert.Equal(t, KindDefault, bare.Kind())
}

func TestLoadClassifiesStaticModule(t *testing.T) {
	m := loadModule(t, `return { tools = { { name = "echo", description = "echo", execute = function(a) return a end } } }`)
	assert.Equal(t, KindStatic, m.Kind())
}

func TestLoadClassifiesInvalidModule(t *testing.T) {
	empty := loadModule(t, `return {}`)
	assert.Equal(t, KindInvalid, empty.Kind())

	scalar := loadModule(t, `return 42`)
	assert.Equal(t, KindInvalid, scalar.Kind())

	nothing := loadModule(t, `local x = 1`)
	assert.Equal(t, KindInvalid, nothing.Kind())
}

func TestLoadReadsChunkReturnNotLibraryResidue(t *testing.T) {
	// Opening the sandbox libraries leaves their module tables on the
	// stack; the loader must still read the chunk's own return value.
	m := loadModule(t, `return {
		tools = {
			{ name = string.upper("shout"), description = "uses the string library",
			  execute = function(args, ctx) return math.floor(2.9) end },
		},
	}`)
	require.Equal(t, KindStatic, m.Kind())

	tools, _ := m.StaticDefs()
	require.Len(t, tools, 1)
	assert.Equal(t, "SHOUT", tools[0].Name)

	result, err := tools[0].Executor(nil)(context.Background(), nil, "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), result)
}

func TestLoadReportsSyntaxError(t *testing.T) {
	_, err := Load(writeModule(t, `return {{{`), zerolog.Nop())
	require.Error(t, err)
}

func TestLoadReportsRuntimeError(t *testing.T) {
	_, err := Load(writeModule(t, `error("broken module")`), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken module")
}

func TestStaticDefsExtractToolsAndHooks(t *testing.T) {
	m := loadModule(t, `return {
		tools = {
			{ name = "echo", description = "echoes args", category = "debug",
			  input_schema = { type = "object" },
			  execute = function(args, ctx) return args end },
		},
		hooks = {
			{ event = "llm_input", mode = "modify", priority = 250,
			  handler = function(payload, ctx) return payload end },
		},
	}`)

	tools, hooks := m.StaticDefs()
	require.Len(t, tools, 1)
	assert.Equal(t, "echo", tools[0].Name)
	assert.Equal(t, "echoes args", tools[0].Description)
	assert.Equal(t, "debug", tools[0].Category)
	assert.Equal(t, map[string]any{"type": "object"}, tools[0].InputSchema)
	assert.True(t, tools[0].HasExecute())

	require.Len(t, hooks, 1)
	assert.Equal(t, "llm_input", hooks[0].Event)
	assert.Equal(t, "modify", hooks[0].Mode)
	assert.Equal(t, int64(250), hooks[0].PriorityRaw)
	assert.True(t, hooks[0].HasHandler())
}

func TestExecutorBindsConfigAndChatID(t *testing.T) {
	m := loadModule(t, `return {
		tools = {
			{ name = "greet", description = "greets",
			  execute = function(args, ctx)
				return { greeting = ctx.config.prefix .. args.name, chat = ctx.chat_id }
			  end },
		},
	}`)

	tools, _ := m.StaticDefs()
	require.Len(t, tools, 1)

	execute := tools[0].Executor(map[string]any{"prefix": "hello "})
	result, err := execute(context.Background(), map[string]any{"name": "world"}, "chat-7")
	require.NoError(t, err)

	obj, ok := result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hello world", obj["greeting"])
	assert.Equal(t, "chat-7", obj["chat"])
}

func TestHandlerNilReturnMapsToNil(t *testing.T) {
	m := loadModule(t, `return {
		hooks = {
			{ event = "llm_input", mode = "modify", handler = function(payload, ctx) end },
		},
	}`)

	_, hooks := m.StaticDefs()
	require.Len(t, hooks, 1)

	result, err := hooks[0].Handler()(context.Background(), map[string]any{"x": int64(1)}, nil)
	require.NoError(t, err)
	assert.Nil(t, result)
}

func TestHandlerErrorsSurfaceAsGoErrors(t *testing.T) {
	m := loadModule(t, `return {
		hooks = {
			{ event = "llm_input", mode = "observe", handler = function(payload, ctx) error("observer down") end },
		},
	}`)

	_, hooks := m.StaticDefs()
	_, err := hooks[0].Handler()(context.Background(), nil, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "observer down")
}

func TestRunActivateRegistersThroughContext(t *testing.T) {
	m := loadModule(t, `return {
		activate = function(ctx)
			ctx.log("activating with retries=" .. tostring(ctx.config.retries))
			ctx.register_tool({ name = "query", description = "runs a query",
				execute = function(args, c) return { ok = true } end })
			ctx.register_hook({ event = "session_start", mode = "observe",
				handler = function(payload, c) end })
		end,
	}`)

	var (
		tools  []ToolDef
		hooks  []HookDef
		logged []string
	)
	_, _, err := m.RunActivate(HostContext{
		RegisterTool: func(d ToolDef) { tools = append(tools, d) },
		RegisterHook: func(d HookDef) { hooks = append(hooks, d) },
		Log:          func(msg string) { logged = append(logged, msg) },
		Config:       map[string]any{"retries": int64(3)},
		Manifest:     map[string]any{"id": "query-tools"},
	})
	require.NoError(t, err)

	require.Len(t, tools, 1)
	assert.Equal(t, "query", tools[0].Name)
	require.Len(t, hooks, 1)
	assert.Equal(t, "session_start", hooks[0].Event)
	require.Len(t, logged, 1)
	assert.Equal(t, "activating with retries=3", logged[0])
}

func TestRunActivateParsesReturnedRegistrations(t *testing.T) {
	m := loadModule(t, `return {
		activate = function(ctx)
			return {
				tools = { { name = "late", description = "late tool", execute = function() end } },
				hooks = { { event = "agent_end", mode = "observe", handler = function() end } },
			}
		end,
	}`)

	tools, hooks, err := m.RunActivate(HostContext{})
	require.NoError(t, err)
	require.Len(t, tools, 1)
	assert.Equal(t, "late", tools[0].Name)
	require.Len(t, hooks, 1)
	assert.Equal(t, "agent_end", hooks[0].Event)
}

func TestRunActivateErrorFailsWholeActivation(t *testing.T) {
	m := loadModule(t, `return {
		activate = function(ctx)
			ctx.register_tool({ name = "early", description = "registered before failure",
				execute = function() end })
			error("activation exploded")
		end,
	}`)

	registered := 0
	_, _, err := m.RunActivate(HostContext{
		RegisterTool: func(ToolDef) { registered++ },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "activation exploded")
	// The callback fired before the failure; discarding it is the
	// orchestrator's job.
	assert.Equal(t, 1, registered)
}

func TestClosedModuleRejectsCalls(t *testing.T) {
	m := loadModule(t, `return {
		tools = { { name = "echo", description = "echo", execute = function(a) return a end } },
	}`)

	tools, _ := m.StaticDefs()
	require.Len(t, tools, 1)
	execute := tools[0].Executor(nil)

	m.Close()

	_, err := execute(context.Background(), nil, "")
	assert.ErrorIs(t, err, ErrModuleClosed)
}

func TestSandboxExcludesSystemLibraries(t *testing.T) {
	m := loadModule(t, `return {
		tools = { { name = "probe", description = "probes sandbox",
			execute = function(args, ctx) return { has_io = io ~= nil, has_os = os ~= nil } end } },
	}`)

	tools, _ := m.StaticDefs()
	result, err := tools[0].Executor(nil)(context.Background(), nil, "")
	require.NoError(t, err)

	obj := result.(map[string]any)
	assert.Equal(t, false, obj["has_io"])
	assert.Equal(t, false, obj["has_os"])
}
