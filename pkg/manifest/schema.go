package manifest

// manifestSchema is the JSON Schema the raw manifest document is validated
// against before any field is trusted.
const manifestSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["id", "name", "version", "main"],
  "properties": {
    "id": {
      "type": "string",
      "pattern": "^[A-Za-z0-9][A-Za-z0-9._-]*$",
      "description": "Unique plugin identifier"
    },
    "name": {
      "type": "string",
      "minLength": 1,
      "description": "Human-readable plugin name"
    },
    "version": {
      "type": "string",
      "minLength": 1,
      "description": "Plugin version"
    },
    "description": {
      "type": "string",
      "description": "Plugin description"
    },
    "main": {
      "type": "string",
      "minLength": 1,
      "description": "Entry module path, relative to the manifest directory"
    },
    "category": {
      "type": "string",
      "description": "Display category for the plugin and its tools"
    },
    "slots": {
      "type": "array",
      "items": { "type": "string" },
      "description": "Exclusivity slots the plugin occupies"
    },
    "enabledByDefault": {
      "type": "boolean",
      "description": "Whether the plugin is active without explicit enablement"
    },
    "configSchema": {
      "type": "object",
      "description": "Schema for the plugin's runtime configuration"
    },
    "defaultConfig": {
      "type": "object",
      "description": "Default runtime configuration"
    }
  }
}`
