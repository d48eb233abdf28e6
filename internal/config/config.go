// Package config supplies the plugin platform's configuration: the enable
// switch, discovery paths, allow/deny policy lists, slot assignments and
// per-plugin config objects.
package config

// PlatformConfig is the full configuration contract the platform consumes.
// It is loaded once per reload; the platform never mutates it.
type PlatformConfig struct {
	Enabled                  bool                      `json:"enabled" mapstructure:"enabled"`
	WorkspaceRoot            string                    `json:"workspaceRoot" mapstructure:"workspaceRoot"`
	ConfiguredPluginPaths    []string                  `json:"configuredPluginPaths" mapstructure:"configuredPluginPaths"`
	EnableBundledPlugins     bool                      `json:"enableBundledPlugins" mapstructure:"enableBundledPlugins"`
	Allowlist                []string                  `json:"allowlist" mapstructure:"allowlist"`
	Denylist                 []string                  `json:"denylist" mapstructure:"denylist"`
	EnabledPluginIDs         []string                  `json:"enabledPluginIds" mapstructure:"enabledPluginIds"`
	DisabledPluginIDs        []string                  `json:"disabledPluginIds" mapstructure:"disabledPluginIds"`
	ExclusiveSlotAssignments map[string]string         `json:"exclusiveSlotAssignments" mapstructure:"exclusiveSlotAssignments"`
	PluginConfigByID         map[string]map[string]any `json:"pluginConfigById" mapstructure:"pluginConfigById"`
}

// DefaultPlatformConfig returns the safe fallback the platform degrades to
// when configuration cannot be read: platform enabled, everything else empty.
func DefaultPlatformConfig() *PlatformConfig {
	return &PlatformConfig{
		Enabled:                  true,
		ConfiguredPluginPaths:    []string{},
		Allowlist:                []string{},
		Denylist:                 []string{},
		EnabledPluginIDs:         []string{},
		DisabledPluginIDs:        []string{},
		ExclusiveSlotAssignments: map[string]string{},
		PluginConfigByID:         map[string]map[string]any{},
	}
}

// Clone returns a deep copy. Snapshots embed a copy so later edits to the
// live configuration never leak into an already published snapshot.
func (c *PlatformConfig) Clone() *PlatformConfig {
	clone := &PlatformConfig{
		Enabled:              c.Enabled,
		WorkspaceRoot:        c.WorkspaceRoot,
		EnableBundledPlugins: c.EnableBundledPlugins,
	}
	clone.ConfiguredPluginPaths = append([]string{}, c.ConfiguredPluginPaths...)
	clone.Allowlist = append([]string{}, c.Allowlist...)
	clone.Denylist = append([]string{}, c.Denylist...)
	clone.EnabledPluginIDs = append([]string{}, c.EnabledPluginIDs...)
	clone.DisabledPluginIDs = append([]string{}, c.DisabledPluginIDs...)

	clone.ExclusiveSlotAssignments = make(map[string]string, len(c.ExclusiveSlotAssignments))
	for slot, id := range c.ExclusiveSlotAssignments {
		clone.ExclusiveSlotAssignments[slot] = id
	}

	clone.PluginConfigByID = make(map[string]map[string]any, len(c.PluginConfigByID))
	for id, cfg := range c.PluginConfigByID {
		clone.PluginConfigByID[id] = deepCopyObject(cfg)
	}
	return clone
}

// PluginConfig returns the configured object for a plugin id, or nil.
func (c *PlatformConfig) PluginConfig(pluginID string) map[string]any {
	return c.PluginConfigByID[pluginID]
}

func deepCopyObject(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out := make(map[string]any, len(obj))
	for key, value := range obj {
		out[key] = deepCopyValue(value)
	}
	return out
}

func deepCopyValue(value any) any {
	switch v := value.(type) {
	case map[string]any:
		return deepCopyObject(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = deepCopyValue(item)
		}
		return out
	default:
		return v
	}
}
