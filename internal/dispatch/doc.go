// Package dispatch turns invocation requests into response envelopes.
//
// A Request names a tool or a concrete resource URI together with an
// argument map. Dispatch resolves the registration, coerces the arguments
// against its parameter list, calls the handler and returns exactly one
// Response: either status "ok" with the handler's payload, or status "error"
// with a {kind, message} descriptor drawn from the error taxonomy in
// internal/errors.
//
// Resource payloads are always text. Tool payloads are passed through as
// returned.
package dispatch
