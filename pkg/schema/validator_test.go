package schema

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSchema(t *testing.T, raw string) map[string]any {
	t.Helper()
	var schema map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &schema))
	return schema
}

func TestValidateShapeAcceptsSupportedSubset(t *testing.T) {
	schema := parseSchema(t, `{
		"type": "object",
		"properties": {
			"retries": {"type": "integer", "minimum": 1},
			"mode": {"type": ["string", "null"], "enum": ["fast", "safe", null]},
			"tags": {"type": "array", "items": {"type": "string"}}
		},
		"required": ["retries"],
		"additionalProperties": false
	}`)

	assert.Empty(t, ValidateShape(schema, "$"))
}

func TestValidateShapeRejectsNonObjectSchema(t *testing.T) {
	violations := ValidateShape("not a schema", "$")
	require.Len(t, violations, 1)
	assert.Equal(t, "$: schema must be an object", violations[0])
}

func TestValidateShapeReportsUnsupportedType(t *testing.T) {
	schema := parseSchema(t, `{"type": "decimal"}`)
	violations := ValidateShape(schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], `unsupported type "decimal"`)
}

func TestValidateShapeRecursesIntoProperties(t *testing.T) {
	schema := parseSchema(t, `{
		"type": "object",
		"properties": {"inner": {"type": "object", "properties": {"bad": {"type": 42}}}}
	}`)

	violations := ValidateShape(schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "$.properties.inner.properties.bad.type")
}

func TestValidateShapeRejectsEmptyOneOf(t *testing.T) {
	schema := parseSchema(t, `{"oneOf": []}`)
	violations := ValidateShape(schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "$.oneOf: must be a non-empty array of schemas")
}

func TestValidateShapeChecksTupleItems(t *testing.T) {
	schema := parseSchema(t, `{"type": "array", "items": [{"type": "string"}, {"type": "bogus"}]}`)
	violations := ValidateShape(schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "$.items[1].type")
}

func TestValidateValueTypeMismatchShortCircuits(t *testing.T) {
	schema := parseSchema(t, `{"type": "string", "minLength": 3}`)

	// A number fails the type check and the minLength check is skipped.
	violations := ValidateValue(float64(7), schema, "$")
	require.Len(t, violations, 1)
	assert.Equal(t, "$: expected type string, got integer", violations[0])
}

func TestValidateValueIntegerVersusNumber(t *testing.T) {
	intSchema := parseSchema(t, `{"type": "integer"}`)
	numSchema := parseSchema(t, `{"type": "number"}`)

	assert.Empty(t, ValidateValue(float64(4), intSchema, "$"))
	assert.NotEmpty(t, ValidateValue(4.5, intSchema, "$"))
	assert.Empty(t, ValidateValue(4.5, numSchema, "$"))
	assert.Empty(t, ValidateValue(int64(4), numSchema, "$"))
}

func TestValidateValueRejectsNonFiniteNumbers(t *testing.T) {
	intSchema := parseSchema(t, `{"type": "integer"}`)
	numSchema := parseSchema(t, `{"type": "number"}`)

	for _, value := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		assert.NotEmpty(t, ValidateValue(value, numSchema, "$"))
		assert.NotEmpty(t, ValidateValue(value, intSchema, "$"))
	}
}

func TestValidateValueNumberBounds(t *testing.T) {
	schema := parseSchema(t, `{"type": "integer", "minimum": 1, "maximum": 5}`)

	assert.Empty(t, ValidateValue(float64(3), schema, "$"))

	violations := ValidateValue(float64(0), schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "less than minimum")

	violations = ValidateValue(float64(9), schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "greater than maximum")
}

func TestValidateValueStringConstraints(t *testing.T) {
	schema := parseSchema(t, `{"type": "string", "minLength": 2, "maxLength": 4, "pattern": "^[a-z]+$"}`)

	assert.Empty(t, ValidateValue("abc", schema, "$"))
	assert.Contains(t, ValidateValue("a", schema, "$")[0], "shorter than minLength")
	assert.Contains(t, ValidateValue("abcde", schema, "$")[0], "longer than maxLength")
	assert.Contains(t, ValidateValue("ABC", schema, "$")[0], "does not match pattern")
}

func TestValidateValueInvalidPatternIsItsOwnViolation(t *testing.T) {
	schema := parseSchema(t, `{"type": "string", "pattern": "(["}`)

	violations := ValidateValue("anything", schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "not a valid regular expression")
}

func TestValidateValueEnumAndConst(t *testing.T) {
	enumSchema := parseSchema(t, `{"enum": ["a", "b", 3]}`)
	assert.Empty(t, ValidateValue("a", enumSchema, "$"))
	assert.Empty(t, ValidateValue(float64(3), enumSchema, "$"))
	assert.Contains(t, ValidateValue("z", enumSchema, "$")[0], "enum")

	constSchema := parseSchema(t, `{"const": {"x": 1}}`)
	assert.Empty(t, ValidateValue(map[string]any{"x": float64(1)}, constSchema, "$"))
	assert.Contains(t, ValidateValue(map[string]any{"x": float64(2)}, constSchema, "$")[0], "const")
}

func TestValidateValueTupleItemsMatchPositionally(t *testing.T) {
	schema := parseSchema(t, `{"type": "array", "items": [{"type": "string"}, {"type": "integer"}]}`)

	assert.Empty(t, ValidateValue([]any{"id", float64(1)}, schema, "$"))

	violations := ValidateValue([]any{float64(1), "id"}, schema, "$")
	require.Len(t, violations, 2)
	assert.Contains(t, violations[0], "$[0]")
	assert.Contains(t, violations[1], "$[1]")
}

func TestValidateValueUniformItemsApplyToEveryElement(t *testing.T) {
	schema := parseSchema(t, `{"type": "array", "items": {"type": "string"}, "minItems": 1, "maxItems": 2}`)

	assert.Empty(t, ValidateValue([]any{"one"}, schema, "$"))
	assert.Contains(t, ValidateValue([]any{}, schema, "$")[0], "minItems")
	assert.Contains(t, ValidateValue([]any{"a", "b", "c"}, schema, "$")[0], "maxItems")

	violations := ValidateValue([]any{"ok", float64(2)}, schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "$[1]")
}

func TestValidateValueObjectRequiredAndProperties(t *testing.T) {
	schema := parseSchema(t, `{
		"type": "object",
		"properties": {"retries": {"type": "integer", "minimum": 1}},
		"required": ["retries"]
	}`)

	assert.Empty(t, ValidateValue(map[string]any{"retries": float64(2)}, schema, "$"))

	violations := ValidateValue(map[string]any{}, schema, "$")
	require.Len(t, violations, 1)
	assert.Equal(t, "$.retries: required property is missing", violations[0])

	violations = ValidateValue(map[string]any{"retries": float64(0)}, schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "$.retries")
}

func TestValidateValueAdditionalProperties(t *testing.T) {
	closed := parseSchema(t, `{
		"type": "object",
		"properties": {"known": {"type": "string"}},
		"additionalProperties": false
	}`)
	violations := ValidateValue(map[string]any{"known": "x", "extra": true}, closed, "$")
	require.Len(t, violations, 1)
	assert.Equal(t, "$.extra: additional property is not allowed", violations[0])

	typed := parseSchema(t, `{
		"type": "object",
		"properties": {"known": {"type": "string"}},
		"additionalProperties": {"type": "integer"}
	}`)
	assert.Empty(t, ValidateValue(map[string]any{"known": "x", "extra": float64(1)}, typed, "$"))
	violations = ValidateValue(map[string]any{"extra": "nope"}, typed, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "$.extra")

	open := parseSchema(t, `{"type": "object", "properties": {"known": {"type": "string"}}}`)
	assert.Empty(t, ValidateValue(map[string]any{"whatever": []any{}}, open, "$"))
}

func TestValidateValueVariantsShortCircuitOnNoMatch(t *testing.T) {
	schema := parseSchema(t, `{
		"anyOf": [{"type": "string"}, {"type": "integer"}],
		"minLength": 100
	}`)

	violations := ValidateValue(true, schema, "$")
	require.Len(t, violations, 1)
	assert.Equal(t, "$: value does not match any of the 2 allowed variants", violations[0])
}

func TestValidateValueVariantMatchContinuesWithOuterChecks(t *testing.T) {
	schema := parseSchema(t, `{
		"oneOf": [{"type": "string"}, {"type": "integer"}],
		"type": "string"
	}`)

	// Matches a variant but then fails the outer type check.
	violations := ValidateValue(float64(3), schema, "$")
	require.Len(t, violations, 1)
	assert.Contains(t, violations[0], "expected type string")
}

func TestValidateValueIsIdempotent(t *testing.T) {
	schema := parseSchema(t, `{
		"type": "object",
		"properties": {"retries": {"type": "integer", "minimum": 1}},
		"required": ["retries"]
	}`)
	value := map[string]any{"retries": float64(3)}

	assert.Empty(t, ValidateValue(value, schema, "$"))
	assert.Empty(t, ValidateValue(value, schema, "$"))
}
