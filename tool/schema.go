package tool

import (
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ParametersFromStruct derives a JSON-Schema parameters map from a Go
// struct using field tags, for tools whose argument shape is easier to
// express as a typed struct than a hand-built map. The returned schema
// always carries type=object.
func ParametersFromStruct(v any) map[string]any {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:            true,
		DoNotReference:            true,
		AllowAdditionalProperties: false,
	}
	schema := reflector.Reflect(v)

	raw, err := json.Marshal(schema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{}}
	}

	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{}}
	}

	// jsonschema emits extra top-level fields ($schema, $id) that
	// provider wire formats don't expect; keep only type/properties/required.
	trimmed := map[string]any{"type": "object"}
	if props, ok := out["properties"]; ok {
		trimmed["properties"] = props
	} else {
		trimmed["properties"] = map[string]any{}
	}
	if required, ok := out["required"]; ok {
		trimmed["required"] = required
	} else {
		trimmed["required"] = []any{}
	}
	return trimmed
}
