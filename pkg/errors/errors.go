// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the typed error taxonomy shared by the directory,
// the agent servers and the clients.
//
// Errors fall in three families:
//   - transport: the HTTP exchange itself failed (CodeTransport, carries the HTTP status)
//   - protocol: the envelope or its params were malformed (CodeProtocol, CodeInvalidInput)
//   - application: the peer answered but the work failed (CodeTaskFailed, CodeTimeout, CodeNotFound)
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies errors for monitoring and for the wire mapping.
type ErrorCode string

const (
	// CodeInternal indicates an internal system error.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates request params were missing or mistyped.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotFound indicates a resource (usually an agent) was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeTaskFailed indicates a task handler reported a failure.
	CodeTaskFailed ErrorCode = "TASK_FAILED"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeTransport indicates the HTTP exchange failed (dial error or non-2xx).
	CodeTransport ErrorCode = "TRANSPORT"

	// CodeProtocol indicates the peer sent something that is not a valid envelope.
	CodeProtocol ErrorCode = "PROTOCOL"
)

// JSON-RPC error codes. The table is fixed for interoperability.
const (
	RPCParseError     = -32700
	RPCInvalidRequest = -32600
	RPCMethodNotFound = -32601
	RPCInvalidParams  = -32602
	RPCInternalError  = -32603
	RPCTaskFailed     = -32001
	RPCTaskTimeout    = -32002
)

// Error is a typed error with context for observability and wire mapping.
// It implements the error interface and can be unwrapped with errors.As().
type Error struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Recoverable bool
	StatusCode  int // HTTP status for REST responses and transport failures
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same code.
// This lets sentinel values such as registry.ErrAgentNotFound match copies
// that carry extra context.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || t == nil {
		return false
	}
	return e.Code == t.Code && (t.Message == "" || e.Message == t.Message)
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *Error) MarshalJSON() ([]byte, error) {
	var cause string
	if e.Err != nil {
		cause = e.Err.Error()
	}
	return json.Marshal(&struct {
		Code        string                 `json:"code"`
		Message     string                 `json:"message"`
		Err         string                 `json:"error,omitempty"`
		Context     map[string]interface{} `json:"context,omitempty"`
		Recoverable bool                   `json:"recoverable"`
		StatusCode  int                    `json:"status_code,omitempty"`
	}{
		Code:        string(e.Code),
		Message:     e.Message,
		Err:         cause,
		Context:     e.Context,
		Recoverable: e.Recoverable,
		StatusCode:  e.StatusCode,
	})
}

// New creates a new Error with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *Error {
	return &Error{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		StatusCode: codeToStatusCode(code),
	}
}

// Transport creates a transport error carrying the HTTP status of the failed exchange.
// A zero status means the request never got a response (dial or read failure).
func Transport(status int, msg string, cause error) *Error {
	e := New(CodeTransport, msg, cause)
	if status != 0 {
		e.StatusCode = status
	}
	return e.WithContext("http_status", status)
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *Error) WithRecoverable(recoverable bool) *Error {
	e.Recoverable = recoverable
	return e
}

// RPCCode returns the JSON-RPC error code used when this error crosses the wire.
func (e *Error) RPCCode() int {
	switch e.Code {
	case CodeInvalidInput, CodeNotFound:
		return RPCInvalidParams
	case CodeTaskFailed:
		return RPCTaskFailed
	case CodeTimeout:
		return RPCTaskTimeout
	default:
		return RPCInternalError
	}
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *Error) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// As attempts to convert an error to an *Error.
// Returns the error as *Error if one is in the chain, or wraps it as internal otherwise.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		return e
	}
	return New(CodeInternal, "wrapped error", err)
}

// CodeOf returns the code of the first *Error in the chain, or CodeInternal.
func CodeOf(err error) ErrorCode {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// IsTransport reports whether err is a transport-level failure.
func IsTransport(err error) bool {
	return CodeOf(err) == CodeTransport
}

// IsNotFound reports whether err is a not-found application error.
func IsNotFound(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.Code == CodeNotFound
}

// codeToStatusCode maps error codes to HTTP status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeInvalidInput, CodeProtocol:
		return http.StatusBadRequest
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeTransport:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
