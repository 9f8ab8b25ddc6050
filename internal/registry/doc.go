// Package registry stores the tool and resource registrations of a server.
//
// Tools are keyed by exact name. Resources are keyed by RFC 6570 URI
// templates such as "greeting://{name}"; a concrete URI resolves to the one
// template that matches it and yields the placeholder values. Templates that
// could match the same URI are rejected when the second one is registered,
// so resolution never has to choose between candidates.
//
// Handlers come in two shapes: HandlerFunc receives the coerced argument map,
// and Func wraps a plain Go function whose positional arguments are checked
// against the declared parameter list at registration time.
package registry
