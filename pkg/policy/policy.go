// Package policy decides whether a resolved plugin is active under the
// current platform configuration.
package policy

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/arion-app/arion-plugins/internal/config"
	"github.com/arion-app/arion-plugins/pkg/manifest"
)

// Decision is the outcome of a policy evaluation. Reason is set only when
// the plugin is inactive.
type Decision struct {
	Active bool
	Reason string
}

// Engine evaluates enable/disable policy. Pure: no state survives between
// evaluations, so it must be re-run against every reload's configuration.
type Engine struct {
	logger zerolog.Logger
}

// NewEngine creates a policy engine.
func NewEngine(logger zerolog.Logger) *Engine {
	return &Engine{
		logger: logger.With().Str("component", "policy").Logger(),
	}
}

// Evaluate runs the ordered, first-match-wins policy checks. Slots are
// sorted at manifest resolution, so the first failing slot is the
// lexicographically smallest conflicting one.
func (e *Engine) Evaluate(m *manifest.Resolved, cfg *config.PlatformConfig) Decision {
	decision := e.evaluate(m, cfg)
	if !decision.Active {
		e.logger.Debug().
			Str("plugin", m.ID).
			Str("reason", decision.Reason).
			Msg("Plugin inactive by policy")
	}
	return decision
}

func (e *Engine) evaluate(m *manifest.Resolved, cfg *config.PlatformConfig) Decision {
	if !cfg.Enabled {
		return Decision{Reason: "Plugin platform is disabled"}
	}

	if contains(cfg.Denylist, m.ID) {
		return Decision{Reason: "Plugin is denylisted"}
	}

	if len(cfg.Allowlist) > 0 && !contains(cfg.Allowlist, m.ID) {
		return Decision{Reason: "Plugin is not in the allowlist"}
	}

	if contains(cfg.DisabledPluginIDs, m.ID) {
		return Decision{Reason: "Plugin is explicitly disabled"}
	}

	explicitlyEnabled := contains(cfg.EnabledPluginIDs, m.ID)

	if m.Source == manifest.SourceBundled && !cfg.EnableBundledPlugins && !explicitlyEnabled {
		return Decision{Reason: "Bundled plugins are disabled by policy"}
	}

	for _, slot := range m.Slots {
		if assigned, ok := cfg.ExclusiveSlotAssignments[slot]; ok && assigned != m.ID {
			return Decision{Reason: fmt.Sprintf("Slot %q is assigned to %s", slot, assigned)}
		}
	}

	if explicitlyEnabled {
		return Decision{Active: true}
	}

	if !m.DefaultEnabled() {
		return Decision{Reason: "Plugin requires explicit enablement"}
	}

	return Decision{Active: true}
}

func contains(list []string, id string) bool {
	for _, entry := range list {
		if entry == id {
			return true
		}
	}
	return false
}
