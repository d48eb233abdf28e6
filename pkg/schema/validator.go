// Package schema implements the subset of JSON Schema the plugin platform
// accepts for plugin config schemas and tool input schemas.
//
// Two entry points: ValidateShape checks that a schema declaration itself is
// well-formed, ValidateValue checks a concrete value against a shape-valid
// schema. Both return one message per violation and never panic; an empty
// slice means valid.
package schema

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
)

// supportedTypes are the type names the subset recognizes.
var supportedTypes = map[string]bool{
	"string":  true,
	"number":  true,
	"integer": true,
	"boolean": true,
	"object":  true,
	"array":   true,
	"null":    true,
}

// ValidateShape recursively checks that a schema declaration is well-formed.
func ValidateShape(schema any, path string) []string {
	obj, ok := schema.(map[string]any)
	if !ok {
		return []string{fmt.Sprintf("%s: schema must be an object", path)}
	}

	var violations []string

	if raw, present := obj["type"]; present {
		violations = append(violations, validateTypeDecl(raw, path)...)
	}

	if raw, present := obj["properties"]; present {
		props, ok := raw.(map[string]any)
		if !ok {
			violations = append(violations, fmt.Sprintf("%s.properties: must be an object of schemas", path))
		} else {
			for _, key := range sortedKeys(props) {
				violations = append(violations, ValidateShape(props[key], path+".properties."+key)...)
			}
		}
	}

	if raw, present := obj["required"]; present {
		items, ok := raw.([]any)
		if !ok {
			violations = append(violations, fmt.Sprintf("%s.required: must be an array of property names", path))
		} else {
			for i, item := range items {
				name, ok := item.(string)
				if !ok || name == "" {
					violations = append(violations, fmt.Sprintf("%s.required[%d]: must be a non-empty string", path, i))
				}
			}
		}
	}

	if raw, present := obj["additionalProperties"]; present {
		if _, isBool := raw.(bool); !isBool {
			violations = append(violations, ValidateShape(raw, path+".additionalProperties")...)
		}
	}

	if raw, present := obj["items"]; present {
		if tuple, isTuple := raw.([]any); isTuple {
			for i, item := range tuple {
				violations = append(violations, ValidateShape(item, fmt.Sprintf("%s.items[%d]", path, i))...)
			}
		} else {
			violations = append(violations, ValidateShape(raw, path+".items")...)
		}
	}

	for _, keyword := range []string{"oneOf", "anyOf"} {
		raw, present := obj[keyword]
		if !present {
			continue
		}
		variants, ok := raw.([]any)
		if !ok || len(variants) == 0 {
			violations = append(violations, fmt.Sprintf("%s.%s: must be a non-empty array of schemas", path, keyword))
			continue
		}
		for i, variant := range variants {
			violations = append(violations, ValidateShape(variant, fmt.Sprintf("%s.%s[%d]", path, keyword, i))...)
		}
	}

	return violations
}

func validateTypeDecl(raw any, path string) []string {
	switch t := raw.(type) {
	case string:
		if !supportedTypes[t] {
			return []string{fmt.Sprintf("%s.type: unsupported type %q", path, t)}
		}
	case []any:
		var violations []string
		for i, entry := range t {
			name, ok := entry.(string)
			if !ok || !supportedTypes[name] {
				violations = append(violations, fmt.Sprintf("%s.type[%d]: unsupported type %v", path, i, entry))
			}
		}
		return violations
	default:
		return []string{fmt.Sprintf("%s.type: must be a string or array of strings", path)}
	}
	return nil
}

// ValidateValue checks a concrete value against an already shape-valid
// schema. Variant (oneOf/anyOf) mismatches and type mismatches short-circuit
// so deeper constraint errors are not piled on top.
func ValidateValue(value any, schema map[string]any, path string) []string {
	variants := collectVariants(schema)
	if len(variants) > 0 {
		matched := false
		for _, variant := range variants {
			if sub, ok := variant.(map[string]any); ok {
				if len(ValidateValue(value, sub, path)) == 0 {
					matched = true
					break
				}
			}
		}
		if !matched {
			return []string{fmt.Sprintf("%s: value does not match any of the %d allowed variants", path, len(variants))}
		}
	}

	if raw, present := schema["type"]; present {
		if msg, ok := checkType(value, raw, path); !ok {
			return []string{msg}
		}
	}

	var violations []string

	if constVal, present := schema["const"]; present {
		if !jsonEqual(value, constVal) {
			violations = append(violations, fmt.Sprintf("%s: value must equal the declared const", path))
		}
	}
	if raw, present := schema["enum"]; present {
		if options, ok := raw.([]any); ok {
			matched := false
			for _, option := range options {
				if jsonEqual(value, option) {
					matched = true
					break
				}
			}
			if !matched {
				violations = append(violations, fmt.Sprintf("%s: value must be one of the enum values", path))
			}
		}
	}

	switch v := value.(type) {
	case string:
		violations = append(violations, checkString(v, schema, path)...)
	case []any:
		violations = append(violations, checkArray(v, schema, path)...)
	case map[string]any:
		violations = append(violations, checkObject(v, schema, path)...)
	default:
		if n, ok := numberValue(value); ok {
			violations = append(violations, checkNumber(n, schema, path)...)
		}
	}

	return violations
}

func collectVariants(schema map[string]any) []any {
	var variants []any
	for _, keyword := range []string{"oneOf", "anyOf"} {
		if raw, present := schema[keyword]; present {
			if list, ok := raw.([]any); ok {
				variants = append(variants, list...)
			}
		}
	}
	return variants
}

// checkType reports whether the value satisfies the declared type(s).
// Numbers split into number (any finite) and integer (finite and whole).
func checkType(value, decl any, path string) (string, bool) {
	var allowed []string
	switch t := decl.(type) {
	case string:
		allowed = []string{t}
	case []any:
		for _, entry := range t {
			if name, ok := entry.(string); ok {
				allowed = append(allowed, name)
			}
		}
	}

	actual := typeName(value)
	for _, name := range allowed {
		if name == actual {
			return "", true
		}
		if name == "number" && actual == "integer" {
			return "", true
		}
	}
	return fmt.Sprintf("%s: expected type %s, got %s", path, strings.Join(allowed, "|"), actual), false
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	if n, ok := numberValue(value); ok {
		// number means finite; NaN and infinities satisfy neither
		// numeric type.
		if math.IsInf(n, 0) || math.IsNaN(n) {
			return "non-finite number"
		}
		if n == math.Trunc(n) {
			return "integer"
		}
		return "number"
	}
	return "unknown"
}

func checkString(value string, schema map[string]any, path string) []string {
	var violations []string
	length := len([]rune(value))

	if min, ok := numberField(schema, "minLength"); ok && float64(length) < min {
		violations = append(violations, fmt.Sprintf("%s: string is shorter than minLength %v", path, min))
	}
	if max, ok := numberField(schema, "maxLength"); ok && float64(length) > max {
		violations = append(violations, fmt.Sprintf("%s: string is longer than maxLength %v", path, max))
	}
	if raw, present := schema["pattern"]; present {
		if pattern, ok := raw.(string); ok {
			re, err := regexp.Compile(pattern)
			if err != nil {
				violations = append(violations, fmt.Sprintf("%s: schema pattern %q is not a valid regular expression", path, pattern))
			} else if !re.MatchString(value) {
				violations = append(violations, fmt.Sprintf("%s: value does not match pattern %q", path, pattern))
			}
		}
	}
	return violations
}

func checkNumber(value float64, schema map[string]any, path string) []string {
	var violations []string
	if min, ok := numberField(schema, "minimum"); ok && value < min {
		violations = append(violations, fmt.Sprintf("%s: value is less than minimum %v", path, min))
	}
	if max, ok := numberField(schema, "maximum"); ok && value > max {
		violations = append(violations, fmt.Sprintf("%s: value is greater than maximum %v", path, max))
	}
	return violations
}

func checkArray(value []any, schema map[string]any, path string) []string {
	var violations []string

	if min, ok := numberField(schema, "minItems"); ok && float64(len(value)) < min {
		violations = append(violations, fmt.Sprintf("%s: array has fewer than minItems %v", path, min))
	}
	if max, ok := numberField(schema, "maxItems"); ok && float64(len(value)) > max {
		violations = append(violations, fmt.Sprintf("%s: array has more than maxItems %v", path, max))
	}

	raw, present := schema["items"]
	if !present {
		return violations
	}
	if tuple, isTuple := raw.([]any); isTuple {
		// Tuple-style items match positionally.
		for i := 0; i < len(value) && i < len(tuple); i++ {
			if sub, ok := tuple[i].(map[string]any); ok {
				violations = append(violations, ValidateValue(value[i], sub, fmt.Sprintf("%s[%d]", path, i))...)
			}
		}
	} else if sub, ok := raw.(map[string]any); ok {
		for i, item := range value {
			violations = append(violations, ValidateValue(item, sub, fmt.Sprintf("%s[%d]", path, i))...)
		}
	}
	return violations
}

func checkObject(value map[string]any, schema map[string]any, path string) []string {
	var violations []string

	if raw, present := schema["required"]; present {
		if names, ok := raw.([]any); ok {
			for _, entry := range names {
				name, ok := entry.(string)
				if !ok {
					continue
				}
				if _, found := value[name]; !found {
					violations = append(violations, fmt.Sprintf("%s.%s: required property is missing", path, name))
				}
			}
		}
	}

	props, _ := schema["properties"].(map[string]any)
	for _, key := range sortedKeys(props) {
		sub, ok := props[key].(map[string]any)
		if !ok {
			continue
		}
		if propValue, present := value[key]; present {
			violations = append(violations, ValidateValue(propValue, sub, path+"."+key)...)
		}
	}

	raw, present := schema["additionalProperties"]
	if !present {
		return violations
	}
	switch ap := raw.(type) {
	case bool:
		if !ap {
			for _, key := range sortedKeys(value) {
				if _, declared := props[key]; !declared {
					violations = append(violations, fmt.Sprintf("%s.%s: additional property is not allowed", path, key))
				}
			}
		}
	case map[string]any:
		for _, key := range sortedKeys(value) {
			if _, declared := props[key]; !declared {
				violations = append(violations, ValidateValue(value[key], ap, path+"."+key)...)
			}
		}
	}
	return violations
}

func numberField(schema map[string]any, key string) (float64, bool) {
	raw, present := schema[key]
	if !present {
		return 0, false
	}
	return numberValue(raw)
}

func numberValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// jsonEqual compares two JSON-domain values, treating numeric kinds as
// interchangeable so an int64 from the Lua bridge equals a float64 from a
// parsed manifest.
func jsonEqual(a, b any) bool {
	an, aok := numberValue(a)
	bn, bok := numberValue(b)
	if aok || bok {
		return aok && bok && an == bn
	}

	switch av := a.(type) {
	case nil:
		return b == nil
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case []any:
		bv, ok := b.([]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !jsonEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case map[string]any:
		bv, ok := b.(map[string]any)
		if !ok || len(av) != len(bv) {
			return false
		}
		for key, value := range av {
			other, present := bv[key]
			if !present || !jsonEqual(value, other) {
				return false
			}
		}
		return true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
