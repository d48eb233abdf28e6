// Package diagnostics defines the structured records the plugin platform
// emits for everything that goes wrong (or right) during a reload, and a
// reload-scoped recorder that accumulates them.
package diagnostics

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Level is the severity of a diagnostic.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Diagnostic codes. The set is closed; collaborators key behavior off the
// exact strings.
const (
	CodeManifestMissing              = "manifest_missing"
	CodeManifestReadError            = "manifest_read_error"
	CodeManifestInvalidJSON          = "manifest_invalid_json"
	CodeManifestInvalidShape         = "manifest_invalid_shape"
	CodeManifestMainMissing          = "manifest_main_missing"
	CodeManifestConfigSchemaInvalid  = "manifest_config_schema_invalid"
	CodeManifestDefaultConfigInvalid = "manifest_default_config_invalid"
	CodePluginConfigInvalid          = "plugin_config_invalid"
	CodePluginDuplicateIgnored       = "plugin_duplicate_ignored"
	CodePluginImportFailed           = "plugin_import_failed"
	CodePluginActivationMissing      = "plugin_activation_missing"
	CodePluginActivationFailed       = "plugin_activation_failed"
	CodePluginActivated              = "plugin_activated"
	CodePluginToolNameInvalid        = "plugin_tool_name_invalid"
	CodePluginToolInvalid            = "plugin_tool_invalid"
	CodePluginToolDuplicate          = "plugin_tool_duplicate"
	CodePluginHookInvalid            = "plugin_hook_invalid"
	CodePluginHookModifyError        = "plugin_hook_modify_error"
	CodePluginHookObserverError      = "plugin_hook_observer_error"
	CodeConfigReadFailed             = "config_read_failed"
)

// Diagnostic is a single timestamped platform event. Records are immutable
// once created.
type Diagnostic struct {
	Level      Level     `json:"level"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	PluginID   string    `json:"pluginId,omitempty"`
	SourcePath string    `json:"sourcePath,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// New creates a diagnostic stamped with the current time.
func New(level Level, code, message string) Diagnostic {
	return Diagnostic{
		Level:     level,
		Code:      code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// Info creates an info-level diagnostic.
func Info(code, message string) Diagnostic {
	return New(LevelInfo, code, message)
}

// Warning creates a warning-level diagnostic.
func Warning(code, message string) Diagnostic {
	return New(LevelWarning, code, message)
}

// Error creates an error-level diagnostic.
func Error(code, message string) Diagnostic {
	return New(LevelError, code, message)
}

// WithPlugin returns a copy attributed to a plugin.
func (d Diagnostic) WithPlugin(pluginID string) Diagnostic {
	d.PluginID = pluginID
	return d
}

// WithSource returns a copy attributed to a source path.
func (d Diagnostic) WithSource(path string) Diagnostic {
	d.SourcePath = path
	return d
}

// Recorder accumulates diagnostics for one reload. Append-only; records are
// never mutated or dropped within a run. Safe for concurrent use (observe
// hooks report failures from multiple goroutines).
type Recorder struct {
	logger zerolog.Logger

	mu    sync.Mutex
	items []Diagnostic
}

// NewRecorder creates a recorder that mirrors every record to the logger.
func NewRecorder(logger zerolog.Logger) *Recorder {
	return &Recorder{
		logger: logger.With().Str("component", "diagnostics").Logger(),
	}
}

// Add appends a diagnostic and logs it at the matching level.
func (r *Recorder) Add(d Diagnostic) {
	r.mu.Lock()
	r.items = append(r.items, d)
	r.mu.Unlock()

	event := r.logger.Info()
	switch d.Level {
	case LevelWarning:
		event = r.logger.Warn()
	case LevelError:
		event = r.logger.Error()
	}
	event.
		Str("code", d.Code).
		Str("plugin", d.PluginID).
		Msg(d.Message)
}

// AddAll appends a batch of diagnostics.
func (r *Recorder) AddAll(ds []Diagnostic) {
	for _, d := range ds {
		r.Add(d)
	}
}

// Items returns a copy of everything recorded so far, in accumulation order.
func (r *Recorder) Items() []Diagnostic {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Diagnostic(nil), r.items...)
}
