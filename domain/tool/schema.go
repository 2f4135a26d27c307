package tool

import (
	"encoding/json"
	"fmt"
)

// Schema wraps a JSON Schema describing tool parameters.
type Schema struct {
	raw json.RawMessage
}

// NewSchema creates a schema from raw JSON.
func NewSchema(raw json.RawMessage) Schema {
	return Schema{raw: raw}
}

// EmptySchema returns a schema that accepts any input.
func EmptySchema() Schema {
	return Schema{raw: json.RawMessage(`{}`)}
}

// Property is a JSON Schema fragment for one object property.
func Property(typ, description string) json.RawMessage {
	raw, _ := json.Marshal(map[string]string{"type": typ, "description": description})
	return raw
}

// ObjectSchema returns a schema for an object with the given properties.
func ObjectSchema(properties map[string]json.RawMessage, required []string) Schema {
	schema := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	raw, _ := json.Marshal(schema)
	return Schema{raw: raw}
}

// Raw returns the underlying JSON schema.
func (s Schema) Raw() json.RawMessage {
	if s.raw == nil {
		return json.RawMessage(`{}`)
	}
	return s.raw
}

// IsEmpty returns true if the schema is empty or nil.
func (s Schema) IsEmpty() bool {
	return len(s.raw) == 0 || string(s.raw) == "{}" || string(s.raw) == "null"
}

// Validate checks that data is a JSON object carrying every required property.
func (s Schema) Validate(data json.RawMessage) error {
	if s.IsEmpty() {
		return nil
	}
	var schema struct {
		Required []string `json:"required"`
	}
	if err := json.Unmarshal(s.raw, &schema); err != nil {
		return fmt.Errorf("%w: malformed schema: %v", ErrInvalidInput, err)
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("%w: expected JSON object", ErrInvalidInput)
	}
	for _, name := range schema.Required {
		if v, ok := obj[name]; !ok || string(v) == "null" {
			return fmt.Errorf("%w: missing required property %q", ErrInvalidInput, name)
		}
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (s Schema) MarshalJSON() ([]byte, error) {
	return s.Raw(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Schema) UnmarshalJSON(data []byte) error {
	s.raw = append(json.RawMessage(nil), data...)
	return nil
}
