package tool

import "fmt"

// ValidateArguments checks required-key presence and a basic primitive
// type match for string|integer|number|boolean|array|object, mirroring
// the original prototype's validate_arguments. It never inspects nested
// schema (no recursive validation of array items or object properties).
func ValidateArguments(schema map[string]any, arguments map[string]any) error {
	required, _ := schema["required"].([]any)
	for _, r := range required {
		name, ok := r.(string)
		if !ok {
			continue
		}
		if _, present := arguments[name]; !present {
			return fmt.Errorf("missing required parameter %q", name)
		}
	}

	properties, _ := schema["properties"].(map[string]any)
	for key, value := range arguments {
		propSchema, ok := properties[key].(map[string]any)
		if !ok {
			continue
		}
		expectedType, _ := propSchema["type"].(string)
		if expectedType == "" {
			continue
		}
		if !matchesType(expectedType, value) {
			return fmt.Errorf("parameter %q: expected type %q", key, expectedType)
		}
	}

	return nil
}

func matchesType(expected string, value any) bool {
	switch expected {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch value.(type) {
		case int, int32, int64:
			return true
		case float64:
			f := value.(float64)
			return f == float64(int64(f))
		default:
			return false
		}
	case "number":
		switch value.(type) {
		case int, int32, int64, float32, float64:
			return true
		default:
			return false
		}
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		// Unrecognized schema type: don't block on it.
		return true
	}
}
