package cwmanager

import (
	"github.com/wagiedev/cwmanager/internal/dispatch"
	"github.com/wagiedev/cwmanager/internal/registry"
	"github.com/wagiedev/cwmanager/internal/schema"
)

// Re-export types from internal packages

// ===== Registrations =====

// Registration is the metadata and handler of one tool or resource.
type Registration = registry.Registration

// RegistrationKind distinguishes tools from resources.
type RegistrationKind = registry.Kind

const (
	// KindTool registrations are addressed by exact name.
	KindTool = registry.KindTool
	// KindResource registrations are addressed by URI template.
	KindResource = registry.KindResource
)

// Handler executes a registration with coerced arguments.
type Handler = registry.Handler

// HandlerFunc adapts a function taking the full argument map to Handler.
type HandlerFunc = registry.HandlerFunc

// Func adapts a typed Go function to Handler. See registry.Func.
func Func(fn any) Handler {
	return registry.Func(fn)
}

// DefaultMIMEType is reported for resources that do not declare one.
const DefaultMIMEType = registry.DefaultMIMEType

// ===== Parameters =====

// ParamType is the semantic type of a declared parameter.
type ParamType = schema.Type

// Parameter types.
const (
	String  = schema.String
	Integer = schema.Integer
	Number  = schema.Number
	Boolean = schema.Boolean
	Array   = schema.Array
	Object  = schema.Object
	Any     = schema.Any
)

// Param declares one parameter of a registration.
type Param = schema.Param

// Params is an ordered parameter list.
type Params = schema.Params

// Arguments is a coerced argument map handed to handlers.
type Arguments = schema.Arguments

// Required declares a required parameter.
func Required(name string, t ParamType) Param {
	return schema.Required(name, t)
}

// Optional declares an optional parameter with a default value.
func Optional(name string, t ParamType, def any) Param {
	return schema.Optional(name, t, def)
}

// ===== Envelopes =====

// Request is one invocation addressed to a tool name or resource URI.
type Request = dispatch.Request

// Response is the uniform result envelope.
type Response = dispatch.Response

// ErrorInfo is the failure descriptor of an error Response.
type ErrorInfo = dispatch.ErrorInfo

// Status is the outcome field of a Response.
type Status = dispatch.Status

const (
	StatusOK    = dispatch.StatusOK
	StatusError = dispatch.StatusError
)

// Observer receives one Observation per dispatched request.
type Observer = dispatch.Observer

// Observation describes a finished dispatch.
type Observation = dispatch.Observation
