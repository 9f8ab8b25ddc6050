package registry

import (
	"context"
	"fmt"
	"math"
	"reflect"

	"github.com/wagiedev/cwmanager/internal/errors"
	"github.com/wagiedev/cwmanager/internal/schema"
)

// Handler executes a registration with coerced arguments.
//
// params is the registration's declared parameter list; positional handlers
// use it to order arguments, map-based handlers may ignore it.
type Handler interface {
	Invoke(ctx context.Context, params schema.Params, args schema.Arguments) (any, error)
}

// HandlerFunc adapts a function taking the full argument map to Handler.
//
// Example:
//
//	registry.HandlerFunc(func(ctx context.Context, args schema.Arguments) (any, error) {
//	    return args.Float("a") + args.Float("b"), nil
//	})
type HandlerFunc func(ctx context.Context, args schema.Arguments) (any, error)

// Invoke implements Handler.
func (f HandlerFunc) Invoke(ctx context.Context, _ schema.Params, args schema.Arguments) (any, error) {
	return f(ctx, args)
}

// signatureChecker is implemented by handlers whose Go signature must agree
// with the declared parameter list.
type signatureChecker interface {
	checkSignature(params schema.Params) error
}

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// funcHandler calls a Go function with one positional argument per declared parameter.
type funcHandler struct {
	fn         reflect.Value
	withCtx    bool
	argTypes   []reflect.Type
	returnsErr bool
}

// Compile-time verification that funcHandler implements Handler and signatureChecker.
var (
	_ Handler          = (*funcHandler)(nil)
	_ signatureChecker = (*funcHandler)(nil)
)

// Func adapts a typed Go function to Handler.
//
// The function may take a leading context.Context followed by one argument
// per declared parameter, in declaration order, and must return either a
// single value or (value, error). Registration fails with InvalidSchemaError
// when the arity or argument types disagree with the parameter list.
//
// Example:
//
//	registry.Func(func(a, b float64) float64 { return a + b })
//	registry.Func(func(ctx context.Context, name string) (string, error) { ... })
func Func(fn any) Handler {
	return &funcHandler{fn: reflect.ValueOf(fn)}
}

func (h *funcHandler) checkSignature(params schema.Params) error {
	if !h.fn.IsValid() || h.fn.Kind() != reflect.Func {
		return fmt.Errorf("handler is %s, not a function", h.fn.Kind())
	}

	ft := h.fn.Type()
	if ft.IsVariadic() {
		return fmt.Errorf("variadic handlers are not supported")
	}

	in := make([]reflect.Type, 0, ft.NumIn())
	for i := range ft.NumIn() {
		in = append(in, ft.In(i))
	}

	withCtx := len(in) > 0 && in[0] == contextType
	if withCtx {
		in = in[1:]
	}

	if len(in) != len(params) {
		return fmt.Errorf("handler takes %d arguments, schema declares %d", len(in), len(params))
	}

	for i, param := range params {
		if !compatible(param.Type, in[i]) {
			return fmt.Errorf("parameter %q of type %s cannot bind to %s", param.Name, param.Type, in[i])
		}
	}

	var returnsErr bool

	switch ft.NumOut() {
	case 1:
		if ft.Out(0) == errorType {
			return fmt.Errorf("handler must return a value")
		}
	case 2:
		if ft.Out(1) != errorType {
			return fmt.Errorf("second return value must be error, got %s", ft.Out(1))
		}

		returnsErr = true
	default:
		return fmt.Errorf("handler must return (T) or (T, error), returns %d values", ft.NumOut())
	}

	h.withCtx = withCtx
	h.argTypes = in
	h.returnsErr = returnsErr

	return nil
}

// Invoke implements Handler.
func (h *funcHandler) Invoke(ctx context.Context, params schema.Params, args schema.Arguments) (any, error) {
	in := make([]reflect.Value, 0, len(params)+1)
	if h.withCtx {
		in = append(in, reflect.ValueOf(ctx))
	}

	for i, param := range params {
		v, err := bind(param.Name, args[param.Name], h.argTypes[i])
		if err != nil {
			return nil, err
		}

		in = append(in, v)
	}

	out := h.fn.Call(in)

	if h.returnsErr {
		if errVal := out[1]; !errVal.IsNil() {
			return nil, errVal.Interface().(error) //nolint:forcetypeassert // checked in checkSignature
		}
	}

	return out[0].Interface(), nil
}

// compatible reports whether a coerced value of semantic type t can bind to rt.
func compatible(t schema.Type, rt reflect.Type) bool {
	switch t {
	case schema.String:
		return rt.Kind() == reflect.String
	case schema.Integer:
		switch rt.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		}
	case schema.Number:
		return rt.Kind() == reflect.Float64 || rt.Kind() == reflect.Float32
	case schema.Boolean:
		return rt.Kind() == reflect.Bool
	case schema.Array:
		return rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Interface
	case schema.Object:
		return rt.Kind() == reflect.Map && rt.Key().Kind() == reflect.String && rt.Elem().Kind() == reflect.Interface
	case schema.Any:
		return rt.Kind() == reflect.Interface
	}

	return false
}

// bind converts a coerced argument to the handler's declared Go type.
// Absent optional arguments bind to the zero value. A value outside the
// range of the Go type is an *errors.ArgumentError.
func bind(name string, v any, rt reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(rt), nil
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(rt) {
		return rv, nil
	}

	if !rv.Type().ConvertibleTo(rt) {
		return reflect.Value{}, &errors.ArgumentError{
			Param:  name,
			Reason: fmt.Sprintf("cannot use %s as %s", rv.Type(), rt),
		}
	}

	if overflows(rv, rt) {
		return reflect.Value{}, &errors.ArgumentError{
			Param:  name,
			Reason: fmt.Sprintf("value %v out of range for %s", v, rt),
		}
	}

	return rv.Convert(rt), nil
}

// overflows reports whether converting the numeric value rv to rt would
// wrap, truncate the sign, or overflow.
func overflows(rv reflect.Value, rt reflect.Type) bool {
	target := reflect.Zero(rt)

	switch {
	case rv.CanInt():
		i := rv.Int()

		switch {
		case target.CanInt():
			return target.OverflowInt(i)
		case target.CanUint():
			return i < 0 || target.OverflowUint(uint64(i))
		}

	case rv.CanUint():
		u := rv.Uint()

		switch {
		case target.CanInt():
			return u > math.MaxInt64 || target.OverflowInt(int64(u))
		case target.CanUint():
			return target.OverflowUint(u)
		}

	case rv.CanFloat():
		if target.CanFloat() {
			return target.OverflowFloat(rv.Float())
		}
	}

	return false
}
