package dispatch

import (
	"github.com/wagiedev/cwmanager/internal/errors"
)

// Status is the outcome field of a Response.
type Status string

const (
	// StatusOK marks a response carrying a payload.
	StatusOK Status = "ok"
	// StatusError marks a response carrying a failure descriptor.
	StatusError Status = "error"
)

// Request is one invocation addressed to a tool name or a concrete resource URI.
type Request struct {
	// ID correlates the response. The dispatcher assigns a ULID when empty.
	ID string `json:"id,omitempty"`
	// Kind is "tool" or "resource".
	Kind       string         `json:"kind"`
	Identifier string         `json:"identifier"`
	Arguments  map[string]any `json:"arguments,omitempty"`
}

// ErrorInfo is the failure descriptor of an error response.
type ErrorInfo struct {
	Kind    errors.Kind `json:"kind"`
	Message string      `json:"message"`
}

// Response is the uniform result envelope for one Request.
type Response struct {
	ID      string     `json:"id"`
	Status  Status     `json:"status"`
	Payload any        `json:"payload,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`

	err error
}

// OK reports whether the response carries a payload.
func (r *Response) OK() bool {
	return r.Status == StatusOK
}

// Err returns the typed error behind an error response, or nil.
func (r *Response) Err() error {
	return r.err
}

func success(id string, payload any) *Response {
	return &Response{ID: id, Status: StatusOK, Payload: payload}
}

func failure(id string, err error) *Response {
	return &Response{
		ID:     id,
		Status: StatusError,
		Error: &ErrorInfo{
			Kind:    errors.KindOf(err),
			Message: err.Error(),
		},
		err: err,
	}
}
