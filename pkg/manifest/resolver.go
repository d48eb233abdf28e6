package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xeipuuv/gojsonschema"

	"github.com/arion-app/arion-plugins/pkg/diagnostics"
	"github.com/arion-app/arion-plugins/pkg/schema"
)

// Resolver loads and validates plugin manifests. Every failure is local to
// one manifest: the resolver reports diagnostics and returns a nil manifest,
// it never aborts the caller's candidate loop.
type Resolver struct {
	logger       zerolog.Logger
	schemaLoader gojsonschema.JSONLoader
}

// NewResolver creates a manifest resolver.
func NewResolver(logger zerolog.Logger) *Resolver {
	return &Resolver{
		logger:       logger.With().Str("component", "manifest-resolver").Logger(),
		schemaLoader: gojsonschema.NewStringLoader(manifestSchema),
	}
}

// Read loads one manifest file. On failure the returned manifest is nil and
// the diagnostics contain exactly the failing step's records.
func (r *Resolver) Read(path string, origin Origin) (*Resolved, []diagnostics.Diagnostic) {
	fail := func(d diagnostics.Diagnostic) (*Resolved, []diagnostics.Diagnostic) {
		return nil, []diagnostics.Diagnostic{d.WithSource(path)}
	}

	if _, err := os.Stat(path); err != nil {
		return fail(diagnostics.Error(diagnostics.CodeManifestMissing,
			fmt.Sprintf("manifest file not found: %s", path)))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(diagnostics.Error(diagnostics.CodeManifestReadError,
			fmt.Sprintf("failed to read manifest: %v", err)))
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail(diagnostics.Error(diagnostics.CodeManifestInvalidJSON,
			fmt.Sprintf("manifest is not valid JSON: %v", err)))
	}

	if msg := r.validateShape(data); msg != "" {
		return fail(diagnostics.Error(diagnostics.CodeManifestInvalidShape,
			"manifest shape is invalid: "+msg))
	}

	var raw Raw
	if err := json.Unmarshal(data, &raw); err != nil {
		return fail(diagnostics.Error(diagnostics.CodeManifestInvalidShape,
			fmt.Sprintf("manifest shape is invalid: %v", err)))
	}

	dir := filepath.Dir(path)
	mainPath := filepath.Join(dir, raw.Main)
	if _, err := os.Stat(mainPath); err != nil {
		return nil, []diagnostics.Diagnostic{
			diagnostics.Error(diagnostics.CodeManifestMainMissing,
				fmt.Sprintf("entry module not found: %s", mainPath)).
				WithPlugin(raw.ID).WithSource(path),
		}
	}

	if raw.ConfigSchema != nil {
		if violations := schema.ValidateShape(raw.ConfigSchema, "configSchema"); len(violations) > 0 {
			return nil, []diagnostics.Diagnostic{
				diagnostics.Error(diagnostics.CodeManifestConfigSchemaInvalid,
					"config schema is invalid: "+strings.Join(violations, "; ")).
					WithPlugin(raw.ID).WithSource(path),
			}
		}
		if raw.DefaultConfig != nil {
			if violations := schema.ValidateValue(raw.DefaultConfig, raw.ConfigSchema, "defaultConfig"); len(violations) > 0 {
				return nil, []diagnostics.Diagnostic{
					diagnostics.Error(diagnostics.CodeManifestDefaultConfigInvalid,
						"default config does not satisfy the config schema: "+strings.Join(violations, "; ")).
						WithPlugin(raw.ID).WithSource(path),
				}
			}
		}
	}

	raw.Slots = normalizeSlots(raw.Slots)

	resolved := &Resolved{
		Raw:              raw,
		Source:           origin.Source,
		SourcePath:       path,
		DirectoryPath:    dir,
		ResolvedMainPath: mainPath,
		Precedence:       origin.Precedence,
		RootOrder:        origin.RootOrder,
	}

	r.logger.Debug().
		Str("id", raw.ID).
		Str("version", raw.Version).
		Str("source", string(origin.Source)).
		Msg("Resolved manifest")

	return resolved, nil
}

// validateShape validates the raw document against the manifest schema and
// aggregates all field errors into one message.
func (r *Resolver) validateShape(data []byte) string {
	documentLoader := gojsonschema.NewBytesLoader(data)
	result, err := gojsonschema.Validate(r.schemaLoader, documentLoader)
	if err != nil {
		return err.Error()
	}
	if result.Valid() {
		return ""
	}

	parts := make([]string, 0, len(result.Errors()))
	for _, resultErr := range result.Errors() {
		parts = append(parts, resultErr.String())
	}
	return strings.Join(parts, "; ")
}

// ValidateRuntimeConfig checks a merged runtime config against the
// manifest's config schema. Manifests without a schema accept anything;
// non-object input is coerced to an empty object before validation.
func ValidateRuntimeConfig(m *Resolved, runtimeConfig any) []diagnostics.Diagnostic {
	if m.ConfigSchema == nil {
		return nil
	}

	obj, ok := runtimeConfig.(map[string]any)
	if !ok {
		obj = map[string]any{}
	}

	violations := schema.ValidateValue(obj, m.ConfigSchema, "config")
	if len(violations) == 0 {
		return nil
	}
	return []diagnostics.Diagnostic{
		diagnostics.Error(diagnostics.CodePluginConfigInvalid,
			"plugin config is invalid: "+strings.Join(violations, "; ")).
			WithPlugin(m.ID).WithSource(m.SourcePath),
	}
}
