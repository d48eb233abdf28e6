package platform

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/arion-app/arion-plugins/internal/config"
	"github.com/arion-app/arion-plugins/pkg/diagnostics"
	"github.com/arion-app/arion-plugins/pkg/hookbus"
	"github.com/arion-app/arion-plugins/pkg/luamod"
	"github.com/arion-app/arion-plugins/pkg/manifest"
	"github.com/arion-app/arion-plugins/pkg/schema"
)

// toolNamePattern validates tool names: alphanumeric start, then
// alphanumeric, dot, underscore, colon or hyphen.
var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// staging buffers one plugin's registrations. Nothing reaches the
// generation until the activation as a whole succeeds, so a late failure
// leaves no partial registrations behind.
type staging struct {
	pluginID string
	gen      *generation
	rec      *diagnostics.Recorder

	tools []ResolvedTool
	hooks []hookbus.Registration
	names map[string]bool
}

func (p *Platform) newStaging(pluginID string, gen *generation, rec *diagnostics.Recorder) *staging {
	return &staging{
		pluginID: pluginID,
		gen:      gen,
		rec:      rec,
		names:    make(map[string]bool),
	}
}

// addTool validates and stages a tool registration. Rejections are
// diagnostics, not activation failures; the plugin stays active.
func (st *staging) addTool(def luamod.ToolDef, merged map[string]any) {
	if !toolNamePattern.MatchString(def.Name) {
		st.rec.Add(diagnostics.Warning(diagnostics.CodePluginToolNameInvalid,
			fmt.Sprintf("tool name %q is invalid", def.Name)).WithPlugin(st.pluginID))
		return
	}
	if def.Description == "" || !def.HasExecute() {
		st.rec.Add(diagnostics.Warning(diagnostics.CodePluginToolInvalid,
			fmt.Sprintf("tool %q must declare a description and an execute function", def.Name)).
			WithPlugin(st.pluginID))
		return
	}
	if def.InputSchema != nil {
		if violations := schema.ValidateShape(def.InputSchema, "inputSchema"); len(violations) > 0 {
			st.rec.Add(diagnostics.Warning(diagnostics.CodePluginToolInvalid,
				fmt.Sprintf("tool %q has an invalid input schema: %s", def.Name, strings.Join(violations, "; "))).
				WithPlugin(st.pluginID))
			return
		}
	}
	if _, taken := st.gen.tools[def.Name]; taken || st.names[def.Name] {
		st.rec.Add(diagnostics.Warning(diagnostics.CodePluginToolDuplicate,
			fmt.Sprintf("tool %q is already registered; keeping the first registration", def.Name)).
			WithPlugin(st.pluginID))
		return
	}
	st.names[def.Name] = true

	execute := def.Executor(merged)
	st.tools = append(st.tools, ResolvedTool{
		PluginID:    st.pluginID,
		Name:        def.Name,
		Description: def.Description,
		Category:    def.Category,
		InputSchema: def.InputSchema,
		Execute: func(ctx context.Context, req ToolRequest) (any, error) {
			return execute(ctx, req.Args, req.ChatID)
		},
	})
}

// addHook validates and stages a hook registration.
func (st *staging) addHook(def luamod.HookDef) {
	mode := hookbus.Mode(def.Mode)
	if !hookbus.ValidEvent(hookbus.Event(def.Event)) ||
		(mode != hookbus.ModeModify && mode != hookbus.ModeObserve) ||
		!def.HasHandler() {
		st.rec.Add(diagnostics.Warning(diagnostics.CodePluginHookInvalid,
			fmt.Sprintf("hook registration is invalid (event %q, mode %q)", def.Event, def.Mode)).
			WithPlugin(st.pluginID))
		return
	}

	st.hooks = append(st.hooks, hookbus.Registration{
		PluginID: st.pluginID,
		Event:    hookbus.Event(def.Event),
		Mode:     mode,
		Priority: hookbus.NormalizePriority(def.PriorityRaw),
		Handler:  def.Handler(),
	})
}

// commit moves the staged registrations into the generation.
func (st *staging) commit() {
	for _, tool := range st.tools {
		st.gen.tools[tool.Name] = tool
		st.gen.toolOrder = append(st.gen.toolOrder, tool.Name)
	}
	for _, reg := range st.hooks {
		st.gen.bus.Register(reg)
	}
}

// activatePlugin loads and activates one policy-approved plugin into the
// generation and returns its inventory entry.
func (p *Platform) activatePlugin(gen *generation, m *manifest.Resolved, cfg *config.PlatformConfig, rec *diagnostics.Recorder) InventoryEntry {
	entry := inventoryBase(m)

	merged := mergeRuntimeConfig(m, cfg)
	if ds := manifest.ValidateRuntimeConfig(m, merged); len(ds) > 0 {
		rec.AddAll(ds)
		entry.Status = StatusError
		entry.Reason = "Plugin config is invalid"
		return entry
	}

	mod, err := luamod.Load(m.ResolvedMainPath, p.logger)
	if err != nil {
		rec.Add(diagnostics.Error(diagnostics.CodePluginImportFailed,
			fmt.Sprintf("failed to import entry module: %v", err)).
			WithPlugin(m.ID).WithSource(m.ResolvedMainPath))
		entry.Status = StatusError
		entry.Reason = "Entry module failed to import"
		return entry
	}

	st := p.newStaging(m.ID, gen, rec)

	switch mod.Kind() {
	case luamod.KindInvalid:
		mod.Close()
		rec.Add(diagnostics.Error(diagnostics.CodePluginActivationMissing,
			"module exports neither an activation function nor static tools/hooks").
			WithPlugin(m.ID).WithSource(m.ResolvedMainPath))
		entry.Status = StatusError
		entry.Reason = "Module has no activation entry point"
		return entry

	case luamod.KindStatic:
		tools, hooks := mod.StaticDefs()
		for _, def := range tools {
			st.addTool(def, merged)
		}
		for _, def := range hooks {
			st.addHook(def)
		}

	default:
		// Static declarations register before the activation function runs.
		staticTools, staticHooks := mod.StaticDefs()
		for _, def := range staticTools {
			st.addTool(def, merged)
		}
		for _, def := range staticHooks {
			st.addHook(def)
		}

		host := luamod.HostContext{
			RegisterTool: func(def luamod.ToolDef) { st.addTool(def, merged) },
			RegisterHook: st.addHook,
			Log: func(message string) {
				p.logger.Info().Str("plugin", m.ID).Msg(message)
			},
			Config:   merged,
			Manifest: manifestView(m),
		}
		tools, hooks, err := mod.RunActivate(host)
		if err != nil {
			mod.Close()
			rec.Add(diagnostics.Error(diagnostics.CodePluginActivationFailed,
				fmt.Sprintf("activation failed: %v", err)).
				WithPlugin(m.ID).WithSource(m.ResolvedMainPath))
			entry.Status = StatusError
			entry.Reason = "Activation failed"
			return entry
		}
		for _, def := range tools {
			st.addTool(def, merged)
		}
		for _, def := range hooks {
			st.addHook(def)
		}
	}

	st.commit()
	gen.modules = append(gen.modules, mod)

	rec.Add(diagnostics.Info(diagnostics.CodePluginActivated,
		fmt.Sprintf("plugin %s %s activated with %d tools and %d hooks",
			m.ID, m.Version, len(st.tools), len(st.hooks))).
		WithPlugin(m.ID).WithSource(m.SourcePath))

	entry.Status = StatusActive
	return entry
}

// mergeRuntimeConfig overlays the configured per-plugin object onto the
// manifest's default config, key by key at the top level.
func mergeRuntimeConfig(m *manifest.Resolved, cfg *config.PlatformConfig) map[string]any {
	merged := copyObject(m.DefaultConfig)
	if merged == nil {
		merged = make(map[string]any)
	}
	for key, value := range cfg.PluginConfig(m.ID) {
		merged[key] = copyValue(value)
	}
	return merged
}

// manifestView is the read-only manifest table exposed to activation
// functions.
func manifestView(m *manifest.Resolved) map[string]any {
	view := map[string]any{
		"id":      m.ID,
		"name":    m.Name,
		"version": m.Version,
		"main":    m.Main,
		"source":  string(m.Source),
	}
	if m.Description != "" {
		view["description"] = m.Description
	}
	if m.Category != "" {
		view["category"] = m.Category
	}
	if len(m.Slots) > 0 {
		view["slots"] = m.Slots
	}
	return view
}

func inventoryBase(m *manifest.Resolved) InventoryEntry {
	return InventoryEntry{
		ID:              m.ID,
		Name:            m.Name,
		Version:         m.Version,
		Source:          m.Source,
		SourcePath:      m.SourcePath,
		MainPath:        m.ResolvedMainPath,
		Category:        m.Category,
		Slots:           m.Slots,
		HasConfigSchema: m.HasConfigSchema(),
	}
}

func copyObject(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		out[key] = copyValue(value)
	}
	return out
}

func copyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return copyObject(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = copyValue(item)
		}
		return out
	default:
		return v
	}
}
