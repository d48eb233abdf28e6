package platform

import (
	"context"
	"time"

	"github.com/arion-app/arion-plugins/internal/config"
	"github.com/arion-app/arion-plugins/pkg/diagnostics"
	"github.com/arion-app/arion-plugins/pkg/hookbus"
	"github.com/arion-app/arion-plugins/pkg/manifest"
)

// Status is a plugin's outcome in one reload generation.
type Status string

const (
	// StatusActive plugins loaded and activated successfully.
	StatusActive Status = "active"
	// StatusDisabled plugins were excluded by policy before loading.
	StatusDisabled Status = "disabled"
	// StatusError plugins failed config validation, import or activation.
	StatusError Status = "error"
	// StatusIgnored plugins were shadowed by a higher-precedence copy of
	// the same id.
	StatusIgnored Status = "ignored"
)

// InventoryEntry is one discovered plugin's state after a reload.
type InventoryEntry struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Version         string          `json:"version"`
	Source          manifest.Source `json:"source"`
	SourcePath      string          `json:"sourcePath"`
	MainPath        string          `json:"mainPath"`
	Category        string          `json:"category,omitempty"`
	Slots           []string        `json:"slots,omitempty"`
	Status          Status          `json:"status"`
	HasConfigSchema bool            `json:"hasConfigSchema"`
	Reason          string          `json:"reason,omitempty"`
}

// ToolRequest carries one tool invocation's inputs.
type ToolRequest struct {
	Args   map[string]any
	ChatID string
}

// ResolvedTool is a registered, invokable tool bound to its plugin's merged
// runtime config.
type ResolvedTool struct {
	PluginID    string
	Name        string
	Description string
	Category    string
	InputSchema map[string]any

	Execute func(ctx context.Context, req ToolRequest) (any, error)
}

// ToolSummary is the introspection view of a registered tool.
type ToolSummary struct {
	PluginID    string         `json:"pluginId"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Category    string         `json:"category,omitempty"`
	InputSchema map[string]any `json:"inputSchema,omitempty"`
}

// Snapshot is the immutable published state of one reload generation.
// Everything in it is a copy; later reloads never mutate an already
// published snapshot.
type Snapshot struct {
	GenerationID   string                   `json:"generationId"`
	LoadedAt       time.Time                `json:"loadedAt"`
	RuntimeEnabled bool                     `json:"runtimeEnabled"`
	Config         *config.PlatformConfig   `json:"config"`
	Inventory      []InventoryEntry         `json:"inventory"`
	Tools          []ToolSummary            `json:"tools"`
	Hooks          []hookbus.Info           `json:"hooks"`
	Diagnostics    []diagnostics.Diagnostic `json:"diagnostics"`
}

// Count returns the number of inventory entries with the given status.
func (s *Snapshot) Count(status Status) int {
	n := 0
	for _, entry := range s.Inventory {
		if entry.Status == status {
			n++
		}
	}
	return n
}
