package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/wagiedev/cwmanager/internal/errors"
)

// Arguments holds coerced argument values keyed by parameter name.
//
// After Coerce, values have canonical Go types:
// string, int64, float64, bool, []any, map[string]any.
type Arguments map[string]any

// Has reports whether the argument is present.
func (a Arguments) Has(name string) bool {
	_, ok := a[name]

	return ok
}

// String returns a string argument or "" when absent.
func (a Arguments) String(name string) string {
	s, _ := a[name].(string)

	return s
}

// Int returns an integer argument or 0 when absent.
func (a Arguments) Int(name string) int64 {
	i, _ := a[name].(int64)

	return i
}

// Float returns a number argument or 0 when absent.
func (a Arguments) Float(name string) float64 {
	f, _ := a[name].(float64)

	return f
}

// Bool returns a boolean argument or false when absent.
func (a Arguments) Bool(name string) bool {
	b, _ := a[name].(bool)

	return b
}

// Coerce validates raw arguments against the parameter list and converts
// each value to its declared type.
//
// Returns an *errors.ArgumentError on an unknown parameter, a missing
// required parameter, or a value that cannot be coerced.
func (p Params) Coerce(raw map[string]any) (Arguments, error) {
	unknown := make([]string, 0)

	for name := range raw {
		if _, ok := p.Lookup(name); !ok {
			unknown = append(unknown, name)
		}
	}

	if len(unknown) > 0 {
		slices.Sort(unknown)

		return nil, &errors.ArgumentError{Param: unknown[0], Reason: "unknown parameter"}
	}

	args := make(Arguments, len(p))

	for _, param := range p {
		value, present := raw[param.Name]
		if !present || value == nil {
			if param.Required {
				return nil, &errors.ArgumentError{Param: param.Name, Reason: "missing required parameter"}
			}

			if param.Default != nil {
				def, err := coerce(param.Type, param.Default)
				if err != nil {
					return nil, &errors.ArgumentError{Param: param.Name, Reason: "invalid default", Err: err}
				}

				args[param.Name] = def
			}

			continue
		}

		coerced, err := coerce(param.Type, value)
		if err != nil {
			return nil, &errors.ArgumentError{
				Param:  param.Name,
				Reason: "expected " + string(param.Type),
				Err:    err,
			}
		}

		args[param.Name] = coerced
	}

	return args, nil
}

// coerce converts v to the canonical Go representation of t.
func coerce(t Type, v any) (any, error) {
	switch t {
	case String:
		if s, ok := v.(string); ok {
			return s, nil
		}

		return nil, fmt.Errorf("got %s", describe(v))

	case Integer:
		return toInt(v)

	case Number:
		return toFloat(v)

	case Boolean:
		switch b := v.(type) {
		case bool:
			return b, nil
		case string:
			return strconv.ParseBool(strings.TrimSpace(b))
		}

		return nil, fmt.Errorf("got %s", describe(v))

	case Array:
		if arr, ok := v.([]any); ok {
			return arr, nil
		}

		rv := reflect.ValueOf(v)
		if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
			out := make([]any, rv.Len())
			for i := range rv.Len() {
				out[i] = rv.Index(i).Interface()
			}

			return out, nil
		}

		return nil, fmt.Errorf("got %s", describe(v))

	case Object:
		if obj, ok := v.(map[string]any); ok {
			return obj, nil
		}

		return nil, fmt.Errorf("got %s", describe(v))

	case Any:
		return v, nil
	}

	return nil, fmt.Errorf("unknown type %q", t)
}

func toInt(v any) (int64, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}

		f, err := n.Float64()
		if err != nil {
			return 0, err
		}

		return floatToInt(f)
	case string:
		return strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	}

	return 0, fmt.Errorf("got %s", describe(v))
}

func uintToInt(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", u)
	}

	return int64(u), nil
}

func floatToInt(f float64) (int64, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, fmt.Errorf("value %v is not an integer", f)
	}

	if f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("value %v overflows int64", f)
	}

	return int64(f), nil
}

func toFloat(v any) (float64, error) {
	var f float64

	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, err
		}

		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, err
		}

		f = parsed
	default:
		return 0, fmt.Errorf("got %s", describe(v))
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("value %v is not finite", f)
	}

	return f, nil
}

// describe names the JSON kind of v for error messages.
func describe(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}

	return fmt.Sprintf("%T", v)
}
