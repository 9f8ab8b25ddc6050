package cwmanager

import "github.com/wagiedev/cwmanager/internal/errors"

// Re-export error types from internal package

// ErrorKind names a failure category as it appears in error envelopes.
type ErrorKind = errors.Kind

// Error kinds reported in envelopes.
const (
	KindDuplicateRegistration = errors.KindDuplicateRegistration
	KindInvalidSchema         = errors.KindInvalidSchema
	KindNotFound              = errors.KindNotFound
	KindArgument              = errors.KindArgument
	KindHandler               = errors.KindHandler
)

// DispatchError is the base interface for all dispatch errors.
type DispatchError = errors.DispatchError

// DuplicateRegistrationError indicates a name or URI template is already registered.
type DuplicateRegistrationError = errors.DuplicateRegistrationError

// InvalidSchemaError indicates a parameter list is invalid or disagrees with its handler.
type InvalidSchemaError = errors.InvalidSchemaError

// NotFoundError indicates no registration matches a request.
type NotFoundError = errors.NotFoundError

// ArgumentError indicates a missing, unknown or uncoercible argument.
type ArgumentError = errors.ArgumentError

// HandlerError indicates a handler failed or panicked.
type HandlerError = errors.HandlerError

// CLINotFoundError indicates an external CLI (such as mmdc) was not found.
type CLINotFoundError = errors.CLINotFoundError

// Re-export sentinel errors from internal package.
var (
	// ErrRegistryFrozen indicates a registration after the server started.
	ErrRegistryFrozen = errors.ErrRegistryFrozen

	// ErrTransportNotConnected indicates the transport has no input or output.
	ErrTransportNotConnected = errors.ErrTransportNotConnected

	// ErrTransportClosed indicates a write after the transport was closed.
	ErrTransportClosed = errors.ErrTransportClosed
)

// KindOf returns the kind of the first dispatch error in err's chain.
func KindOf(err error) ErrorKind {
	return errors.KindOf(err)
}
