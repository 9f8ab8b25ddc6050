package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind names a failure category as it appears in response envelopes.
type Kind string

const (
	// KindDuplicateRegistration is reported when a name or template is registered twice.
	KindDuplicateRegistration Kind = "DuplicateRegistrationError"
	// KindInvalidSchema is reported when a parameter schema disagrees with its handler.
	KindInvalidSchema Kind = "InvalidSchemaError"
	// KindNotFound is reported when no registration matches a request.
	KindNotFound Kind = "NotFoundError"
	// KindArgument is reported for missing, unknown or uncoercible arguments.
	KindArgument Kind = "ArgumentError"
	// KindHandler is reported when a handler fails or panics.
	KindHandler Kind = "HandlerError"
)

// Fatal reports whether errors of this kind abort process startup.
func (k Kind) Fatal() bool {
	return k == KindDuplicateRegistration || k == KindInvalidSchema
}

// DispatchError is the base interface for all dispatch core errors.
type DispatchError interface {
	error
	Kind() Kind
}

// Compile-time verification that all error types implement DispatchError.
var (
	_ DispatchError = (*DuplicateRegistrationError)(nil)
	_ DispatchError = (*InvalidSchemaError)(nil)
	_ DispatchError = (*NotFoundError)(nil)
	_ DispatchError = (*ArgumentError)(nil)
	_ DispatchError = (*HandlerError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrRegistryFrozen indicates a registration was attempted after startup completed.
	ErrRegistryFrozen = errors.New("registry frozen: registrations are only accepted during initialization")

	// ErrTransportNotConnected indicates the transport has no underlying streams.
	ErrTransportNotConnected = errors.New("transport not connected")

	// ErrMessageTooLarge indicates an inbound line exceeded the size limit and
	// was skipped. Reading continues with the next line.
	ErrMessageTooLarge = errors.New("message too large")

	// ErrTransportClosed indicates the transport was closed and cannot send.
	ErrTransportClosed = errors.New("transport closed")

	// ErrControllerStopped indicates the dispatch loop has stopped.
	ErrControllerStopped = errors.New("dispatch loop stopped")

	// ErrOperationCancelled indicates a request was cancelled by the client.
	ErrOperationCancelled = errors.New("operation cancelled")
)

// DuplicateRegistrationError indicates a tool name or resource template already exists.
// Overlapping resource templates are reported with the template they collide with.
type DuplicateRegistrationError struct {
	Category   string
	Identifier string
	Overlaps   string
}

func (e *DuplicateRegistrationError) Error() string {
	if e.Overlaps != "" && e.Overlaps != e.Identifier {
		return fmt.Sprintf("%s %q overlaps registered template %q", e.Category, e.Identifier, e.Overlaps)
	}

	return fmt.Sprintf("%s %q is already registered", e.Category, e.Identifier)
}

// Kind implements DispatchError.
func (e *DuplicateRegistrationError) Kind() Kind { return KindDuplicateRegistration }

// InvalidSchemaError indicates a parameter schema is inconsistent with its handler
// or with the template it is registered under.
type InvalidSchemaError struct {
	Identifier string
	Reason     string
	Err        error
}

func (e *InvalidSchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid schema for %q: %s: %v", e.Identifier, e.Reason, e.Err)
	}

	return fmt.Sprintf("invalid schema for %q: %s", e.Identifier, e.Reason)
}

func (e *InvalidSchemaError) Unwrap() error {
	return e.Err
}

// Kind implements DispatchError.
func (e *InvalidSchemaError) Kind() Kind { return KindInvalidSchema }

// NotFoundError indicates no registration matched the requested identifier.
type NotFoundError struct {
	Category   string
	Identifier string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no %s registered for %q", e.Category, e.Identifier)
}

// Kind implements DispatchError.
func (e *NotFoundError) Kind() Kind { return KindNotFound }

// ArgumentError indicates the request arguments do not satisfy the parameter schema.
type ArgumentError struct {
	Param  string
	Reason string
	Err    error
}

func (e *ArgumentError) Error() string {
	var b strings.Builder

	if e.Param != "" {
		fmt.Fprintf(&b, "parameter %q: ", e.Param)
	}

	b.WriteString(e.Reason)

	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}

	return b.String()
}

func (e *ArgumentError) Unwrap() error {
	return e.Err
}

// Kind implements DispatchError.
func (e *ArgumentError) Kind() Kind { return KindArgument }

// HandlerError wraps a failure raised inside a handler.
// The original message is preserved verbatim.
type HandlerError struct {
	Identifier string
	Err        error
}

func (e *HandlerError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("handler %q failed", e.Identifier)
	}

	return e.Err.Error()
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Kind implements DispatchError.
func (e *HandlerError) Kind() Kind { return KindHandler }

// KindOf returns the Kind of the first DispatchError in err's chain.
// Errors outside the taxonomy are classified as handler failures.
func KindOf(err error) Kind {
	if de, ok := errors.AsType[DispatchError](err); ok {
		return de.Kind()
	}

	return KindHandler
}

// CLINotFoundError indicates an external command-line tool could not be located.
type CLINotFoundError struct {
	Binary        string
	SearchedPaths []string
}

func (e *CLINotFoundError) Error() string {
	return fmt.Sprintf("%s not found in: %v", e.Binary, e.SearchedPaths)
}
