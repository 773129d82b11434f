package tools

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// CompileSchema compiles a JSON Schema document into a validator.
// The document may be any JSON-marshalable value: an InputSchema, a
// map[string]any, or raw bytes already unmarshaled.
func CompileSchema(doc any) (*jsonschema.Schema, error) {
	normalized, err := normalizeJSON(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	if err := c.AddResource("schema.json", normalized); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// ValidatePayload validates a payload against a compiled schema.
// A nil schema validates everything.
func ValidatePayload(schema *jsonschema.Schema, payload any) error {
	if schema == nil {
		return nil
	}
	normalized, err := normalizeJSON(payload)
	if err != nil {
		return fmt.Errorf("normalize payload: %w", err)
	}
	return schema.Validate(normalized)
}

// normalizeJSON round-trips a value through encoding/json so that the
// validator sees canonical JSON types (float64 numbers, map[string]any
// objects) regardless of how the value was constructed in Go.
func normalizeJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
