// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package jsonrpc implements the JSON-RPC 2.0 envelope, a fixed-table method
// dispatcher, its HTTP binding and a single-attempt client.
package jsonrpc

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jllopis/a2a/pkg/errors"
)

// Version is the only protocol version accepted.
const Version = "2.0"

var nullID = json.RawMessage("null")

// Request is a decoded JSON-RPC request. Params are kept raw; their shape
// is checked by the method handler.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    int            `json:"code"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if reason, ok := e.Data["reason"].(string); ok && reason != "" {
		return fmt.Sprintf("jsonrpc %d %s: %s", e.Code, e.Message, reason)
	}
	return fmt.Sprintf("jsonrpc %d %s", e.Code, e.Message)
}

// WithData sets a data field and returns the error for chaining.
func (e *Error) WithData(key string, value any) *Error {
	if e.Data == nil {
		e.Data = map[string]any{}
	}
	e.Data[key] = value
	return e
}

// Reason returns data.reason when present.
func (e *Error) Reason() string {
	reason, _ := e.Data["reason"].(string)
	return reason
}

// Response is a JSON-RPC response. It always serialises with exactly one of
// result or error, and with an id (null when the request id was unreadable).
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// MarshalJSON enforces the result/error exclusivity.
func (r Response) MarshalJSON() ([]byte, error) {
	id := r.ID
	if len(id) == 0 {
		id = nullID
	}
	if r.Error != nil {
		return json.Marshal(struct {
			JSONRPC string          `json:"jsonrpc"`
			ID      json.RawMessage `json:"id"`
			Error   *Error          `json:"error"`
		}{Version, id, r.Error})
	}
	result := r.Result
	if len(result) == 0 {
		result = nullID
	}
	return json.Marshal(struct {
		JSONRPC string          `json:"jsonrpc"`
		ID      json.RawMessage `json:"id"`
		Result  json.RawMessage `json:"result"`
	}{Version, id, result})
}

// NewResult builds a success response. A value that cannot be encoded yields
// an internal error response instead.
func NewResult(id json.RawMessage, v any) *Response {
	raw, err := json.Marshal(v)
	if err != nil {
		return NewErrorResponse(id, InternalError(fmt.Sprintf("encode result: %v", err)))
	}
	return &Response{JSONRPC: Version, ID: id, Result: raw}
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id json.RawMessage, e *Error) *Response {
	return &Response{JSONRPC: Version, ID: id, Error: e}
}

// Decode validates raw bytes as a JSON-RPC request.
//
// On failure the returned *Request is still non-nil and carries the id when
// it could be read, so callers can echo it in the error response.
func Decode(raw []byte) (*Request, *Error) {
	req := &Request{}
	if !json.Valid(raw) {
		return req, ParseError()
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return req, InvalidRequest("request must be a JSON object")
	}

	if id, ok := fields["id"]; ok && validID(id) {
		req.ID = id
	}

	if err := json.Unmarshal(fields["jsonrpc"], &req.JSONRPC); err != nil || req.JSONRPC != Version {
		return req, InvalidRequest(`"jsonrpc" must be "2.0"`)
	}
	if err := json.Unmarshal(fields["method"], &req.Method); err != nil || req.Method == "" {
		req.Method = ""
		return req, InvalidRequest(`"method" must be a non-empty string`)
	}
	if req.ID == nil {
		return req, InvalidRequest(`"id" must be a string or a number`)
	}
	if params, ok := fields["params"]; ok {
		req.Params = params
	}
	return req, nil
}

// validID reports whether raw is a JSON string or number.
func validID(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false
	}
	switch c := raw[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		return true
	}
	return false
}

// ParseError is returned for bodies that are not valid JSON.
func ParseError() *Error {
	return &Error{Code: errors.RPCParseError, Message: "Parse error"}
}

// InvalidRequest is returned for JSON that is not a valid request object.
func InvalidRequest(reason string) *Error {
	return (&Error{Code: errors.RPCInvalidRequest, Message: "Invalid Request"}).WithData("reason", reason)
}

// MethodNotFound is returned for methods outside the dispatch table.
func MethodNotFound(method string) *Error {
	return (&Error{Code: errors.RPCMethodNotFound, Message: "Method not found"}).WithData("method", method)
}

// InvalidParams is returned by handlers when params are missing or mistyped.
func InvalidParams(format string, args ...any) *Error {
	return (&Error{Code: errors.RPCInvalidParams, Message: "Invalid params"}).WithData("reason", fmt.Sprintf(format, args...))
}

// InternalError is used for panics outside the task executor and for results
// that cannot be encoded.
func InternalError(reason string) *Error {
	return (&Error{Code: errors.RPCInternalError, Message: "Internal error"}).WithData("reason", reason)
}

// TaskFailed is returned when a task handler failed.
func TaskFailed(taskID, reason string) *Error {
	return (&Error{Code: errors.RPCTaskFailed, Message: "Task failed"}).
		WithData("reason", reason).
		WithData("taskId", taskID).
		WithData("status", "failed")
}

// TaskTimeout is returned when a task exceeded its execution bound.
func TaskTimeout(taskID, reason string) *Error {
	return (&Error{Code: errors.RPCTaskTimeout, Message: "Task timeout"}).
		WithData("reason", reason).
		WithData("taskId", taskID).
		WithData("status", "timeout")
}

// FromError converts a handler error into a JSON-RPC error object.
// *Error values pass through; typed errors map by code.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var rpcErr *Error
	if stderrors.As(err, &rpcErr) {
		return rpcErr
	}
	e := errors.As(err)
	taskID, _ := e.Context["task_id"].(string)
	switch e.Code {
	case errors.CodeInvalidInput, errors.CodeNotFound:
		return InvalidParams("%s", e.Message)
	case errors.CodeTaskFailed:
		return TaskFailed(taskID, causeOrMessage(e))
	case errors.CodeTimeout:
		return TaskTimeout(taskID, causeOrMessage(e))
	default:
		return InternalError(causeOrMessage(e))
	}
}

func causeOrMessage(e *errors.Error) string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}
