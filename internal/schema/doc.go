// Package schema declares the typed parameter lists of tools and resources.
//
// A Params value is an ordered list of (name, semantic type, required) entries.
// It coerces inbound argument maps into canonical Go values before a handler
// runs, and renders itself as a JSON Schema object for tool listings:
//
//	params := schema.Params{
//	    schema.Required("a", schema.Number),
//	    schema.Required("b", schema.Number),
//	}
//	args, err := params.Coerce(map[string]any{"a": "2.5", "b": 4})
//	// args["a"] == 2.5, args["b"] == 4.0
package schema
