package protocol

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
)

// Version is the only JSON-RPC version accepted and emitted.
const Version = "2.0"

// JSON-RPC 2.0 error codes used by the dispatch loop.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeRequestCancelled = -32800
)

// nullID is the id of responses to messages whose id could not be read.
var nullID = json.RawMessage("null")

// Message is any inbound JSON-RPC 2.0 message.
//
// Wire format for a request:
//
//	{"jsonrpc": "2.0", "id": 1, "method": "tools/call", "params": {...}}
//
// Notifications omit "id". Responses carry "result" or "error" instead of
// "method"; the server never issues requests, so inbound responses are ignored.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsNotification reports whether the message expects no response.
func (m *Message) IsNotification() bool {
	return m.Method != "" && len(m.ID) == 0
}

// Request is an inbound request or notification handed to a handler.
type Request struct {
	// ID is the raw request id; nil for notifications.
	ID     json.RawMessage
	Method string
	Params json.RawMessage
}

// Bind decodes the request params into v. Absent params leave v untouched.
// Decoding failures are reported as an invalid-params Error.
func (r *Request) Bind(v any) error {
	if len(r.Params) == 0 || string(r.Params) == "null" {
		return nil
	}

	if err := json.Unmarshal(r.Params, v); err != nil {
		return NewError(CodeInvalidParams, fmt.Sprintf("invalid params for %s: %v", r.Method, err), nil)
	}

	return nil
}

// Response is an outbound JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC 2.0 error object. Handlers may return it to control
// the code and data of the error response.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError creates a JSON-RPC error.
func NewError(code int, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// RequestHandler handles one JSON-RPC request.
//
// The returned value becomes the "result" member; a nil result is sent as an
// empty object. A returned *Error is sent as is, any other error becomes an
// internal error carrying its message.
type RequestHandler func(ctx context.Context, req *Request) (any, error)

// NotificationHandler handles one JSON-RPC notification. Notifications run
// on the read loop and must not block.
type NotificationHandler func(ctx context.Context, req *Request)

// idKey canonicalizes a request id so "1" and 1 stay distinct while
// whitespace and numeric spelling (1, 1.0, 1e0) do not matter.
func idKey(raw []byte) (string, bool) {
	return resultKey(gjson.ParseBytes(raw))
}

func resultKey(r gjson.Result) (string, bool) {
	switch r.Type {
	case gjson.String:
		return "s:" + r.Str, true
	case gjson.Number:
		return "n:" + numberKey(r), true
	default:
		return "", false
	}
}

// numberKey spells a numeric id canonically. Integer literals are kept
// exact; other spellings go through their float64 value, so integral values
// up to 2^53 match their integer form.
func numberKey(r gjson.Result) string {
	if i, err := strconv.ParseInt(r.Raw, 10, 64); err == nil {
		return strconv.FormatInt(i, 10)
	}

	if r.Num == 0 {
		return "0"
	}

	if r.Num == math.Trunc(r.Num) && math.Abs(r.Num) <= 1<<53 {
		return strconv.FormatFloat(r.Num, 'f', -1, 64)
	}

	return strconv.FormatFloat(r.Num, 'g', -1, 64)
}
