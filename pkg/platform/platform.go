// Package platform orchestrates the plugin lifecycle: discovery across
// precedence tiers, manifest resolution, policy evaluation, activation,
// tool registration and hook dispatch.
//
// Each reload builds a complete new generation off to the side and swaps
// it in atomically; readers always see either the previous complete
// generation or the new one, never a half-built state.
package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/arion-app/arion-plugins/internal/config"
	"github.com/arion-app/arion-plugins/internal/locator"
	"github.com/arion-app/arion-plugins/internal/metrics"
	"github.com/arion-app/arion-plugins/pkg/diagnostics"
	"github.com/arion-app/arion-plugins/pkg/hookbus"
	"github.com/arion-app/arion-plugins/pkg/manifest"
	"github.com/arion-app/arion-plugins/pkg/policy"
)

// SettingsProvider loads the platform configuration. *config.Loader is the
// production implementation; tests inject fixed configs.
type SettingsProvider interface {
	Load() (*config.PlatformConfig, error)
}

// Options configures a Platform. Zero-value fields get production defaults.
type Options struct {
	Settings SettingsProvider
	Locator  locator.Locator
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics

	// WorkspaceRoot is the fallback workspace directory when the
	// configuration does not name one. Defaults to the process working
	// directory.
	WorkspaceRoot string
}

// generation is one complete reload result: the live Lua modules plus the
// tool and hook registries built from them.
type generation struct {
	id        string
	bus       *hookbus.Bus
	tools     map[string]ResolvedTool
	toolOrder []string
	modules   []closer
}

type closer interface{ Close() }

// Platform is the plugin platform runtime.
type Platform struct {
	logger   zerolog.Logger
	settings SettingsProvider
	loc      locator.Locator
	metrics  *metrics.Metrics
	policy   *policy.Engine
	resolver *manifest.Resolver

	workspaceRoot string

	// reloadMu serializes reloads; mu guards the published generation.
	reloadMu sync.Mutex
	mu       sync.RWMutex
	gen      *generation
	snap     *Snapshot
}

// New creates a platform. No plugins are loaded until the first Reload.
func New(opts Options) *Platform {
	if opts.Settings == nil {
		opts.Settings = config.NewLoader("")
	}
	if opts.Locator == nil {
		opts.Locator = locator.NewDefault()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewMetrics()
	}
	logger := opts.Logger.With().Str("component", "platform").Logger()

	return &Platform{
		logger:        logger,
		settings:      opts.Settings,
		loc:           opts.Locator,
		metrics:       opts.Metrics,
		policy:        policy.NewEngine(opts.Logger),
		resolver:      manifest.NewResolver(opts.Logger),
		workspaceRoot: opts.WorkspaceRoot,
	}
}

// Reload rebuilds the platform state from scratch: configuration,
// discovery, resolution, policy, activation. It never fails; every problem
// degrades to diagnostics in the returned snapshot. Concurrent calls are
// serialized.
func (p *Platform) Reload(ctx context.Context) *Snapshot {
	p.reloadMu.Lock()
	defer p.reloadMu.Unlock()

	start := time.Now()
	p.metrics.ReloadsTotal.Inc()
	rec := diagnostics.NewRecorder(p.logger)

	cfg, err := p.settings.Load()
	if err != nil {
		rec.Add(diagnostics.Warning(diagnostics.CodeConfigReadFailed,
			fmt.Sprintf("failed to load configuration, using defaults: %v", err)))
		cfg = config.DefaultPlatformConfig()
	}

	gen := &generation{
		id:    uuid.NewString(),
		bus:   hookbus.New(p.logger),
		tools: make(map[string]ResolvedTool),
	}

	roots := buildRoots(cfg, p.loc, p.resolveWorkspaceRoot(cfg))
	candidates := discoverCandidates(roots)

	var (
		inventory []InventoryEntry
		resolved  []*manifest.Resolved
		winners   = make(map[string]*manifest.Resolved)
	)
	for _, cand := range candidates {
		m, diags := p.resolver.Read(cand.manifestPath, cand.origin)
		rec.AddAll(diags)
		if m == nil {
			continue
		}
		if winner, taken := winners[m.ID]; taken {
			rec.Add(diagnostics.Warning(diagnostics.CodePluginDuplicateIgnored,
				fmt.Sprintf("plugin %s at %s is shadowed by the copy at %s",
					m.ID, m.SourcePath, winner.SourcePath)).
				WithPlugin(m.ID).WithSource(m.SourcePath))
			entry := inventoryBase(m)
			entry.Status = StatusIgnored
			entry.Reason = fmt.Sprintf("Shadowed by the copy at %s", winner.SourcePath)
			inventory = append(inventory, entry)
			continue
		}
		winners[m.ID] = m
		resolved = append(resolved, m)
	}

	for _, m := range resolved {
		if ctx.Err() != nil {
			break
		}
		decision := p.policy.Evaluate(m, cfg)
		if !decision.Active {
			entry := inventoryBase(m)
			entry.Status = StatusDisabled
			entry.Reason = decision.Reason
			inventory = append(inventory, entry)
			continue
		}
		inventory = append(inventory, p.activatePlugin(gen, m, cfg, rec))
	}

	// Published ordering is deterministic: inventory by id, tools by
	// name. Ties (an ignored duplicate shares its winner's id) keep
	// accumulation order.
	sort.SliceStable(inventory, func(i, j int) bool {
		return inventory[i].ID < inventory[j].ID
	})

	snap := &Snapshot{
		GenerationID:   gen.id,
		LoadedAt:       time.Now().UTC(),
		RuntimeEnabled: cfg.Enabled,
		Config:         cfg.Clone(),
		Inventory:      inventory,
		Tools:          toolSummaries(gen),
		Hooks:          gen.bus.List(),
		Diagnostics:    rec.Items(),
	}

	p.mu.Lock()
	old := p.gen
	p.gen = gen
	p.snap = snap
	p.mu.Unlock()

	if old != nil {
		for _, mod := range old.modules {
			mod.Close()
		}
	}

	p.metrics.PluginsActive.Set(float64(snap.Count(StatusActive)))
	p.metrics.PluginsErrored.Set(float64(snap.Count(StatusError)))
	p.metrics.PluginsIgnored.Set(float64(snap.Count(StatusIgnored)))
	p.metrics.ToolsRegistered.Set(float64(len(snap.Tools)))
	p.metrics.ReloadDuration.Observe(time.Since(start).Seconds())

	p.logger.Info().
		Str("generation", gen.id).
		Int("plugins", len(inventory)).
		Int("active", snap.Count(StatusActive)).
		Int("tools", len(snap.Tools)).
		Dur("took", time.Since(start)).
		Msg("Reload complete")

	return snap
}

func (p *Platform) resolveWorkspaceRoot(cfg *config.PlatformConfig) string {
	if cfg.WorkspaceRoot != "" {
		return cfg.WorkspaceRoot
	}
	if p.workspaceRoot != "" {
		return p.workspaceRoot
	}
	return p.loc.Cwd()
}

func toolSummaries(gen *generation) []ToolSummary {
	summaries := make([]ToolSummary, 0, len(gen.toolOrder))
	for _, name := range gen.toolOrder {
		tool := gen.tools[name]
		summaries = append(summaries, ToolSummary{
			PluginID:    tool.PluginID,
			Name:        tool.Name,
			Description: tool.Description,
			Category:    tool.Category,
			InputSchema: tool.InputSchema,
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})
	return summaries
}

// Snapshot returns the last published snapshot, nil before the first
// reload.
func (p *Platform) Snapshot() *Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.snap
}

// Tool looks up a registered tool by name in the current generation.
func (p *Platform) Tool(name string) (ResolvedTool, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.gen == nil {
		return ResolvedTool{}, false
	}
	tool, ok := p.gen.tools[name]
	return tool, ok
}

// Tools returns the current generation's tools in registration order.
func (p *Platform) Tools() []ResolvedTool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.gen == nil {
		return nil
	}
	tools := make([]ResolvedTool, 0, len(p.gen.toolOrder))
	for _, name := range p.gen.toolOrder {
		tools = append(tools, p.gen.tools[name])
	}
	return tools
}

// EmitHook dispatches a lifecycle event through the current generation's
// hook bus and returns the final payload plus any handler diagnostics.
func (p *Platform) EmitHook(ctx context.Context, event hookbus.Event, payload any, hctx map[string]any) (any, []diagnostics.Diagnostic) {
	p.mu.RLock()
	gen := p.gen
	p.mu.RUnlock()
	if gen == nil {
		return payload, nil
	}

	p.metrics.HookEmitsTotal.WithLabelValues(string(event)).Inc()
	result, diags := gen.bus.Emit(ctx, event, payload, hctx)
	for _, d := range diags {
		mode := string(hookbus.ModeModify)
		if d.Code == diagnostics.CodePluginHookObserverError {
			mode = string(hookbus.ModeObserve)
		}
		p.metrics.HookErrorsTotal.WithLabelValues(string(event), mode).Inc()
	}
	return result, diags
}

// DiscoveryRoots returns the directories the last reload scanned, for
// filesystem watching. Empty before the first reload.
func (p *Platform) DiscoveryRoots() []string {
	p.mu.RLock()
	snap := p.snap
	p.mu.RUnlock()
	if snap == nil {
		return nil
	}

	roots := buildRoots(snap.Config, p.loc, p.resolveWorkspaceRoot(snap.Config))
	paths := make([]string, 0, len(roots))
	for _, root := range roots {
		paths = append(paths, root.path)
	}
	return paths
}

// Metrics exposes the platform's metrics registry for serving.
func (p *Platform) Metrics() *metrics.Metrics {
	return p.metrics
}

// Close tears down the current generation's modules.
func (p *Platform) Close() {
	p.mu.Lock()
	gen := p.gen
	p.gen = nil
	p.mu.Unlock()
	if gen != nil {
		for _, mod := range gen.modules {
			mod.Close()
		}
	}
}
