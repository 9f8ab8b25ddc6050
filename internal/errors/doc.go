// Package errors defines the error taxonomy of the dispatch core.
//
// Registration errors (DuplicateRegistrationError, InvalidSchemaError) are
// fatal and abort startup. Request errors (NotFoundError, ArgumentError,
// HandlerError) are converted into error envelopes at the dispatch boundary.
// All error types support unwrapping and can be checked using errors.Is,
// errors.As, and errors.AsType.
package errors
