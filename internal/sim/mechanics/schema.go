package mechanics

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

// ErrSchema indicates a value failed schema validation. Every validation
// failure wraps this sentinel with path context.
var ErrSchema = errors.New("schema violation")

// ValidateSchema checks a value against a restricted JSON-Schema-like
// definition supporting object (required/properties/additionalProperties),
// array (minItems/maxItems/items), integer and number (minimum or legacy
// min, maximum or legacy max), string (minLength/maxLength), and boolean.
//
// This is the guard that keeps generation-step-authored state mutations from
// corrupting a scene's contract; it is intentionally not a full JSON Schema
// implementation.
func ValidateSchema(value any, schema map[string]any) error {
	return validateAt(value, schema, "$")
}

func validateAt(value any, schema map[string]any, path string) error {
	if len(schema) == 0 {
		return nil
	}

	schemaType, _ := schema["type"].(string)
	switch schemaType {
	case "object":
		return validateObject(value, schema, path)
	case "array":
		return validateArray(value, schema, path)
	case "integer":
		return validateNumber(value, schema, path, true)
	case "number":
		return validateNumber(value, schema, path, false)
	case "string":
		return validateString(value, schema, path)
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("%w: %s must be a boolean", ErrSchema, path)
		}
		return nil
	case "":
		// Untyped schemas constrain nothing.
		return nil
	default:
		return fmt.Errorf("%w: %s has unsupported schema type %q", ErrSchema, path, schemaType)
	}
}

func validateObject(value any, schema map[string]any, path string) error {
	object, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %s must be an object", ErrSchema, path)
	}

	if required, ok := schema["required"].([]any); ok {
		for _, nameAny := range required {
			name, _ := nameAny.(string)
			if _, present := object[name]; !present {
				return fmt.Errorf("%w: %s is missing required property %q", ErrSchema, path, name)
			}
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for name, propAny := range properties {
		propSchema, ok := propAny.(map[string]any)
		if !ok {
			continue
		}
		propValue, present := object[name]
		if !present {
			continue
		}
		if err := validateAt(propValue, propSchema, path+"."+name); err != nil {
			return err
		}
	}

	switch additional := schema["additionalProperties"].(type) {
	case bool:
		if !additional {
			for _, name := range sortedKeys(object) {
				if _, declared := properties[name]; !declared {
					return fmt.Errorf("%w: %s has undeclared property %q", ErrSchema, path, name)
				}
			}
		}
	case map[string]any:
		for _, name := range sortedKeys(object) {
			if _, declared := properties[name]; declared {
				continue
			}
			if err := validateAt(object[name], additional, path+"."+name); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateArray(value any, schema map[string]any, path string) error {
	list, ok := value.([]any)
	if !ok {
		return fmt.Errorf("%w: %s must be an array", ErrSchema, path)
	}

	if min, ok := toNumber(schema["minItems"]); ok && float64(len(list)) < min {
		return fmt.Errorf("%w: %s must have at least %d items", ErrSchema, path, int(min))
	}
	if max, ok := toNumber(schema["maxItems"]); ok && float64(len(list)) > max {
		return fmt.Errorf("%w: %s must have at most %d items", ErrSchema, path, int(max))
	}

	if items, ok := schema["items"].(map[string]any); ok {
		for i, item := range list {
			if err := validateAt(item, items, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}

	return nil
}

func validateNumber(value any, schema map[string]any, path string, integer bool) error {
	number, ok := toNumber(value)
	if !ok {
		return fmt.Errorf("%w: %s must be a number", ErrSchema, path)
	}
	if integer && number != math.Trunc(number) {
		return fmt.Errorf("%w: %s must be an integer", ErrSchema, path)
	}

	if min, ok := bound(schema, "minimum", "min"); ok && number < min {
		return fmt.Errorf("%w: %s must be >= %v", ErrSchema, path, min)
	}
	if max, ok := bound(schema, "maximum", "max"); ok && number > max {
		return fmt.Errorf("%w: %s must be <= %v", ErrSchema, path, max)
	}
	return nil
}

func validateString(value any, schema map[string]any, path string) error {
	text, ok := value.(string)
	if !ok {
		return fmt.Errorf("%w: %s must be a string", ErrSchema, path)
	}
	if min, ok := toNumber(schema["minLength"]); ok && float64(len(text)) < min {
		return fmt.Errorf("%w: %s must be at least %d characters", ErrSchema, path, int(min))
	}
	if max, ok := toNumber(schema["maxLength"]); ok && float64(len(text)) > max {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrSchema, path, int(max))
	}
	return nil
}

// bound reads a numeric bound, accepting the legacy key as a fallback.
func bound(schema map[string]any, key, legacyKey string) (float64, bool) {
	if value, ok := toNumber(schema[key]); ok {
		return value, true
	}
	return toNumber(schema[legacyKey])
}

func sortedKeys(object map[string]any) []string {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
