package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// Type is the semantic type of a declared parameter.
type Type string

const (
	// String accepts JSON strings only.
	String Type = "string"
	// Integer accepts integral numbers and decimal strings.
	Integer Type = "integer"
	// Number accepts any finite number and numeric strings.
	Number Type = "number"
	// Boolean accepts booleans and strconv.ParseBool strings.
	Boolean Type = "boolean"
	// Array accepts JSON arrays.
	Array Type = "array"
	// Object accepts JSON objects.
	Object Type = "object"
	// Any accepts every value unchanged.
	Any Type = "any"
)

// ParseType converts a semantic or Go type name into a Type.
//
// Accepted names:
//   - "string"
//   - "integer", "int", "int8" ... "uint64"
//   - "number", "float", "float32", "float64"
//   - "boolean", "bool"
//   - "array", "[]T"
//   - "object", "map[string]any"
//   - "any", "interface{}"
func ParseType(name string) (Type, error) {
	switch name {
	case "string":
		return String, nil
	case "integer", "int", "int8", "int16", "int32", "int64", "uint", "uint8", "uint16", "uint32", "uint64":
		return Integer, nil
	case "number", "float", "float32", "float64":
		return Number, nil
	case "boolean", "bool":
		return Boolean, nil
	case "object", "map[string]any", "map[string]interface{}":
		return Object, nil
	case "any", "interface{}":
		return Any, nil
	case "array":
		return Array, nil
	}

	if strings.HasPrefix(name, "[]") && len(name) > 2 {
		return Array, nil
	}

	return "", fmt.Errorf("unknown parameter type %q", name)
}

// Valid reports whether t is one of the declared semantic types.
func (t Type) Valid() bool {
	switch t {
	case String, Integer, Number, Boolean, Array, Object, Any:
		return true
	}

	return false
}

// Param declares one parameter of a registration.
type Param struct {
	Name        string `json:"name" yaml:"name"`
	Type        Type   `json:"type" yaml:"type"`
	Required    bool   `json:"required" yaml:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Default     any    `json:"default,omitempty" yaml:"default,omitempty"`
}

// Required declares a required parameter.
func Required(name string, t Type) Param {
	return Param{Name: name, Type: t, Required: true}
}

// Optional declares an optional parameter with a default value.
// A nil default leaves the argument absent when the caller omits it.
func Optional(name string, t Type, def any) Param {
	return Param{Name: name, Type: t, Default: def}
}

// Describe returns a copy of p with the given description.
func (p Param) Describe(description string) Param {
	p.Description = description

	return p
}

// Params is an ordered parameter list.
type Params []Param

// Simple builds a Params list from a name→type map with every parameter required.
// Parameters are ordered by name so the result is deterministic.
//
// Input format: {"a": "float64", "b": "string"}
func Simple(props map[string]string) (Params, error) {
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}

	slices.Sort(names)

	params := make(Params, 0, len(names))

	for _, name := range names {
		t, err := ParseType(props[name])
		if err != nil {
			return nil, err
		}

		params = append(params, Required(name, t))
	}

	return params, nil
}

// Names returns the parameter names in declaration order.
func (p Params) Names() []string {
	names := make([]string, len(p))
	for i, param := range p {
		names[i] = param.Name
	}

	return names
}

// Lookup returns the parameter with the given name.
func (p Params) Lookup(name string) (Param, bool) {
	for _, param := range p {
		if param.Name == name {
			return param, true
		}
	}

	return Param{}, false
}

// Validate checks that names are unique and non-empty, types are known,
// and defaults coerce to their declared type.
func (p Params) Validate() error {
	seen := make(map[string]struct{}, len(p))

	for i, param := range p {
		if param.Name == "" {
			return fmt.Errorf("parameter %d has no name", i)
		}

		if _, dup := seen[param.Name]; dup {
			return fmt.Errorf("parameter %q declared twice", param.Name)
		}

		seen[param.Name] = struct{}{}

		if !param.Type.Valid() {
			return fmt.Errorf("parameter %q has unknown type %q", param.Name, param.Type)
		}

		if param.Required && param.Default != nil {
			return fmt.Errorf("required parameter %q cannot declare a default", param.Name)
		}

		if param.Default != nil {
			if _, err := coerce(param.Type, param.Default); err != nil {
				return fmt.Errorf("default for %q: %w", param.Name, err)
			}
		}
	}

	if _, err := p.JSONSchema().Resolve(nil); err != nil {
		return fmt.Errorf("resolve JSON schema: %w", err)
	}

	return nil
}

// JSONSchema renders the parameter list as a JSON Schema object.
func (p Params) JSONSchema() *jsonschema.Schema {
	properties := make(map[string]*jsonschema.Schema, len(p))
	required := make([]string, 0, len(p))

	for _, param := range p {
		prop := typeToJSONSchema(param.Type)
		prop.Description = param.Description

		if param.Default != nil {
			if raw, err := json.Marshal(param.Default); err == nil {
				prop.Default = raw
			}
		}

		properties[param.Name] = prop

		if param.Required {
			required = append(required, param.Name)
		}
	}

	return &jsonschema.Schema{
		Type:       "object",
		Properties: properties,
		Required:   required,
	}
}

// typeToJSONSchema converts a semantic type to a JSON Schema fragment.
func typeToJSONSchema(t Type) *jsonschema.Schema {
	switch t {
	case String, Integer, Number, Boolean, Object:
		return &jsonschema.Schema{Type: string(t)}
	case Array:
		return &jsonschema.Schema{Type: "array"}
	default:
		return &jsonschema.Schema{}
	}
}
