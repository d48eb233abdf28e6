// Package manifest reads and validates arion.plugin.json files and produces
// fully resolved manifest records for the platform to act on.
package manifest

import (
	"regexp"
	"sort"
	"strings"
)

// FileName is the manifest file the platform looks for in discovery roots.
const FileName = "arion.plugin.json"

// Source is the precedence tier a plugin was discovered from.
type Source string

const (
	SourceConfigured Source = "configured"
	SourceWorkspace  Source = "workspace"
	SourceGlobal     Source = "global"
	SourceBundled    Source = "bundled"
)

// Precedence returns the tier's numeric precedence. Higher wins when two
// manifests declare the same plugin id.
func (s Source) Precedence() int {
	switch s {
	case SourceConfigured:
		return 400
	case SourceWorkspace:
		return 300
	case SourceGlobal:
		return 200
	case SourceBundled:
		return 100
	}
	return 0
}

// idPattern validates plugin IDs: alphanumeric start, then alphanumeric,
// dot, underscore or hyphen.
var idPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidID reports whether a plugin id is well-formed.
func ValidID(id string) bool {
	return idPattern.MatchString(id)
}

// Raw is the declared content of a manifest file.
type Raw struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Version          string         `json:"version"`
	Description      string         `json:"description,omitempty"`
	Main             string         `json:"main"`
	Category         string         `json:"category,omitempty"`
	Slots            []string       `json:"slots,omitempty"`
	EnabledByDefault *bool          `json:"enabledByDefault,omitempty"`
	ConfigSchema     map[string]any `json:"configSchema,omitempty"`
	DefaultConfig    map[string]any `json:"defaultConfig,omitempty"`
}

// Origin identifies where a manifest candidate came from.
type Origin struct {
	Source     Source
	Precedence int
	RootOrder  int
}

// Resolved is a manifest that passed every resolution check. Created once
// per reload and immutable thereafter.
type Resolved struct {
	Raw

	Source           Source
	SourcePath       string
	DirectoryPath    string
	ResolvedMainPath string
	Precedence       int
	RootOrder        int
}

// DefaultEnabled reports whether the plugin is enabled absent any explicit
// policy. Only an explicit `"enabledByDefault": false` opts out.
func (r *Resolved) DefaultEnabled() bool {
	return r.EnabledByDefault == nil || *r.EnabledByDefault
}

// HasConfigSchema reports whether the manifest declares a config schema.
func (r *Resolved) HasConfigSchema() bool {
	return r.ConfigSchema != nil
}

// normalizeSlots trims, drops empties, deduplicates and sorts slot names so
// slot-exclusivity evaluation order is deterministic.
func normalizeSlots(slots []string) []string {
	seen := make(map[string]bool, len(slots))
	out := make([]string, 0, len(slots))
	for _, slot := range slots {
		slot = strings.TrimSpace(slot)
		if slot == "" || seen[slot] {
			continue
		}
		seen[slot] = true
		out = append(out, slot)
	}
	sort.Strings(out)
	return out
}
