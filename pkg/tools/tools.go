// Package tools defines the tool descriptors exposed to chat-completion
// backends and the JSON Schema validation applied to tool-call payloads.
package tools

// Property describes a single field of a tool's input schema.
type Property struct {
	Type        string               `json:"type"`
	Description string               `json:"description,omitempty"`
	Enum        []string             `json:"enum,omitempty"`
	Items       *Property            `json:"items,omitempty"`
	Properties  map[string]*Property `json:"properties,omitempty"`
}

// InputSchema is the JSON Schema describing a tool's input payload.
type InputSchema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// ToolDefinition is the wire-level description of a tool sent to the model.
type ToolDefinition struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	InputSchema InputSchema `json:"input_schema"`
}

// JSONMap renders the schema as a generic JSON document, the form expected
// by backend SDKs and by the schema compiler.
func (s InputSchema) JSONMap() map[string]any {
	doc := map[string]any{}
	typ := s.Type
	if typ == "" {
		typ = "object"
	}
	doc["type"] = typ

	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name := range s.Properties {
			prop := s.Properties[name]
			props[name] = propertyJSONMap(&prop)
		}
		doc["properties"] = props
	}
	if len(s.Required) > 0 {
		required := make([]any, len(s.Required))
		for i, r := range s.Required {
			required[i] = r
		}
		doc["required"] = required
	}
	return doc
}

func propertyJSONMap(prop *Property) map[string]any {
	m := map[string]any{"type": prop.Type}
	if prop.Description != "" {
		m["description"] = prop.Description
	}
	if len(prop.Enum) > 0 {
		enum := make([]any, len(prop.Enum))
		for i, e := range prop.Enum {
			enum[i] = e
		}
		m["enum"] = enum
	}
	if prop.Type == "array" && prop.Items != nil {
		m["items"] = propertyJSONMap(prop.Items)
	}
	if prop.Type == "object" && len(prop.Properties) > 0 {
		props := make(map[string]any, len(prop.Properties))
		for name, child := range prop.Properties {
			if child != nil {
				props[name] = propertyJSONMap(child)
			}
		}
		m["properties"] = props
	}
	return m
}

// Clone returns a deep copy of the definition.
func (d ToolDefinition) Clone() ToolDefinition {
	out := d
	out.InputSchema = d.InputSchema.clone()
	return out
}

// Clone returns a deep copy of the schema.
func (s InputSchema) Clone() InputSchema {
	return s.clone()
}

func (s InputSchema) clone() InputSchema {
	out := s
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]Property, len(s.Properties))
		for name := range s.Properties {
			prop := s.Properties[name]
			out.Properties[name] = *cloneProperty(&prop)
		}
	}
	if len(s.Required) > 0 {
		out.Required = append([]string(nil), s.Required...)
	}
	return out
}

func cloneProperty(prop *Property) *Property {
	out := *prop
	if len(prop.Enum) > 0 {
		out.Enum = append([]string(nil), prop.Enum...)
	}
	if prop.Items != nil {
		out.Items = cloneProperty(prop.Items)
	}
	if len(prop.Properties) > 0 {
		out.Properties = make(map[string]*Property, len(prop.Properties))
		for name, child := range prop.Properties {
			if child != nil {
				out.Properties[name] = cloneProperty(child)
			}
		}
	}
	return &out
}
