package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/wagiedev/cwmanager/internal/errors"
	"github.com/wagiedev/cwmanager/internal/registry"
	"github.com/wagiedev/cwmanager/internal/schema"
)

// Dispatcher routes requests to registrations and wraps every outcome in a Response.
//
// Dispatch never panics and never returns nil; handler failures and panics
// are converted to HandlerError responses so the caller's loop keeps running.
type Dispatcher struct {
	registry *registry.Registry
	log      *slog.Logger
	observer Observer
	now      func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithObserver installs an observer notified after every dispatch.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) {
		if o != nil {
			d.observer = o
		}
	}
}

// New creates a dispatcher over reg.
func New(reg *registry.Registry, log *slog.Logger, opts ...Option) *Dispatcher {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	d := &Dispatcher{
		registry: reg,
		log:      log.With("component", "dispatch"),
		observer: NoopObserver(),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Registry returns the registry the dispatcher resolves against.
func (d *Dispatcher) Registry() *registry.Registry {
	return d.registry
}

// Dispatch resolves, validates and invokes one request.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	started := d.now()

	id := req.ID
	if id == "" {
		id = ulid.Make().String()
	}

	obs := Observation{
		ID:         id,
		Kind:       req.Kind,
		Identifier: req.Identifier,
		Started:    started,
	}

	resp := d.dispatch(ctx, id, req, &obs)

	obs.Duration = d.now().Sub(started)
	obs.Success = resp.OK()

	if !resp.OK() {
		obs.ErrorKind = resp.Error.Kind
		d.log.Debug("Dispatch failed",
			"id", id,
			"kind", req.Kind,
			"identifier", req.Identifier,
			"error_kind", resp.Error.Kind,
			"error", resp.Error.Message,
		)
	} else {
		d.log.Debug("Dispatch succeeded",
			"id", id,
			"kind", req.Kind,
			"identifier", req.Identifier,
			"duration", obs.Duration,
		)
	}

	d.observer.ObserveDispatch(ctx, obs)

	return resp
}

func (d *Dispatcher) dispatch(ctx context.Context, id string, req *Request, obs *Observation) *Response {
	kind, err := registry.ParseKind(req.Kind)
	if err != nil {
		return failure(id, &errors.ArgumentError{Reason: "invalid request kind", Err: err})
	}

	match, err := d.registry.Resolve(kind, req.Identifier)
	if err != nil {
		return failure(id, err)
	}

	reg := match.Registration
	obs.Registration = reg.Name

	raw, err := mergePlaceholders(req.Arguments, match.Placeholders)
	if err != nil {
		return failure(id, err)
	}

	args, err := reg.Params.Coerce(raw)
	if err != nil {
		return failure(id, err)
	}

	payload, err := d.invoke(ctx, reg, args)
	if err != nil {
		return failure(id, err)
	}

	if kind == registry.KindResource {
		text, err := asText(payload)
		if err != nil {
			return failure(id, &errors.HandlerError{Identifier: reg.Name, Err: err})
		}

		return success(id, text)
	}

	return success(id, payload)
}

// invoke calls the handler, converting returned errors and panics into
// HandlerError. An *errors.ArgumentError returned directly by the handler
// (such as a value that does not fit the handler's Go type) keeps its kind.
func (d *Dispatcher) invoke(ctx context.Context, reg *registry.Registration, args schema.Arguments) (payload any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler panicked",
				"kind", reg.Kind.String(),
				"name", reg.Name,
				"panic", r,
				"stack", string(debug.Stack()),
			)

			payload = nil
			err = &errors.HandlerError{Identifier: reg.Name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	payload, err = reg.Handler.Invoke(ctx, reg.Params, args)
	if argErr, ok := err.(*errors.ArgumentError); ok { //nolint:errorlint // only unwrapped argument errors keep their kind
		return nil, argErr
	}

	if err != nil {
		return nil, &errors.HandlerError{Identifier: reg.Name, Err: err}
	}

	return payload, nil
}

// mergePlaceholders adds URI placeholder values to the request arguments.
// An explicit argument that disagrees with the URI is rejected.
func mergePlaceholders(raw map[string]any, placeholders map[string]string) (map[string]any, error) {
	if len(placeholders) == 0 {
		return raw, nil
	}

	merged := make(map[string]any, len(raw)+len(placeholders))
	maps.Copy(merged, raw)

	for name, value := range placeholders {
		if existing, ok := merged[name]; ok && existing != nil && fmt.Sprint(existing) != value {
			return nil, &errors.ArgumentError{
				Param:  name,
				Reason: fmt.Sprintf("conflicts with URI value %q", value),
			}
		}

		merged[name] = value
	}

	return merged, nil
}

// asText converts a resource payload to its text representation.
func asText(payload any) (string, error) {
	switch v := payload.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}

	return "", fmt.Errorf("resource returned %T, expected text", payload)
}
