// Package jsonrpc implements a JSON-RPC 2.0 server over a Content-Length
// framed byte stream, the transport the object explorer client speaks.
package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Message is a JSON-RPC 2.0 request, response or notification.
type Message struct {
	JSONRPC string           `json:"jsonrpc"`
	ID      *json.RawMessage `json:"id,omitempty"`
	Method  string           `json:"method,omitempty"`
	Params  json.RawMessage  `json:"params,omitempty"`
	Result  json.RawMessage  `json:"result,omitempty"`
	Error   *Error           `json:"error,omitempty"`
}

// IsRequest reports whether m expects a response.
func (m *Message) IsRequest() bool { return m.Method != "" && m.ID != nil }

// IsNotification reports whether m is a notification.
func (m *Message) IsNotification() bool { return m.Method != "" && m.ID == nil }

// IsResponse reports whether m answers a request.
func (m *Message) IsResponse() bool { return m.Method == "" && m.ID != nil }

// IDString returns the raw id text, e.g. `7` or `"abc"`.
func (m *Message) IDString() string {
	if m.ID == nil {
		return ""
	}
	return string(*m.ID)
}

// Error is a JSON-RPC error object. It is also a Go error so handlers can
// return one to control the code sent to the client.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// InvalidParams returns a -32602 error.
func InvalidParams(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// coded is implemented by domain errors that map to a specific code.
type coded interface {
	RPCCode() int
}

// toError converts a handler error into the error object sent to the client.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	var c coded
	if errors.As(err, &c) {
		return &Error{Code: c.RPCCode(), Message: err.Error()}
	}
	return &Error{Code: CodeInternalError, Message: err.Error()}
}

// DecodeParams unmarshals params into v. Absent params leave v untouched.
func DecodeParams(params json.RawMessage, v any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	if err := json.Unmarshal(params, v); err != nil {
		return InvalidParams("invalid params: %v", err)
	}
	return nil
}

var nullResult = json.RawMessage("null")

func marshalResult(v any) (json.RawMessage, error) {
	if v == nil {
		return nullResult, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return b, nil
}
