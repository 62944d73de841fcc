// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the a2a CLI.
package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/jsonrpc"
)

// CLIError wraps a typed error with a hint for the user.
type CLIError struct {
	Typed *errors.Error
	Hint  string
}

// NewCLIError creates a new CLI error.
func NewCLIError(e *errors.Error, hint string) *CLIError {
	return &CLIError{
		Typed: e,
		Hint:  hint,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.Typed == nil {
		return "unknown error"
	}
	msg := e.Typed.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// Unwrap exposes the typed error to errors.As.
func (e *CLIError) Unwrap() error {
	return e.Typed
}

// PrintError prints the error as text or as a JSON object.
func (e *CLIError) PrintError(w io.Writer, asJSON bool) {
	if e.Typed == nil {
		PrintSimpleError(w, stderrors.New(e.Error()), asJSON)
		return
	}
	t := e.Typed
	if asJSON {
		payload := map[string]any{
			"code":    t.Code,
			"message": t.Message,
		}
		if t.Err != nil {
			payload["error"] = t.Err.Error()
		}
		if e.Hint != "" {
			payload["hint"] = e.Hint
		}
		data, _ := json.Marshal(map[string]any{"error": payload})
		fmt.Fprintf(w, "%s\n", data)
		return
	}

	fmt.Fprintf(w, "Error [%s]: %s", FormatErrorCode(t.Code), t.Message)
	if t.Err != nil {
		fmt.Fprintf(w, ": %v", t.Err)
	}
	fmt.Fprintln(w)
	if e.Hint != "" {
		fmt.Fprintf(w, "  Hint: %s\n", e.Hint)
	}
}

// NewInvalidArgumentError creates an invalid argument error with CLI hints.
func NewInvalidArgumentError(arg, reason string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, fmt.Sprintf("invalid argument: %s", reason), nil).
		WithContext("argument", arg)
	return NewCLIError(e, "run 'a2a help' for usage information")
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	e := errors.New(errors.CodeInvalidInput, "configuration error", err).
		WithContext("config_path", configPath)
	hint := "check the A2A_* environment variables and --set values"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(e, hint)
}

// PrintSimpleError prints an error that has no typed form.
func PrintSimpleError(w io.Writer, err error, asJSON bool) {
	if asJSON {
		data, _ := json.Marshal(map[string]any{"error": map[string]string{"code": "UNKNOWN", "message": err.Error()}})
		fmt.Fprintf(w, "%s\n", data)
		return
	}
	fmt.Fprintf(w, "Error: %s\n", err.Error())
}

// explain turns any command error into a CLIError with a hint.
func explain(err error, directoryURL string) *CLIError {
	var cliErr *CLIError
	if stderrors.As(err, &cliErr) {
		return cliErr
	}

	var rpcErr *jsonrpc.Error
	if stderrors.As(err, &rpcErr) {
		return fromRPCError(rpcErr)
	}

	if stderrors.Is(err, context.DeadlineExceeded) {
		e := errors.New(errors.CodeTimeout, "request timed out", err)
		return NewCLIError(e, "try increasing the timeout with --timeout")
	}

	e := errors.As(err)
	switch e.Code {
	case errors.CodeTransport:
		return NewCLIError(e, fmt.Sprintf("check that the directory is running at %s", directoryURL))
	case errors.CodeNotFound:
		return NewCLIError(e, "run 'a2a list' to see registered agents")
	case errors.CodeTimeout:
		return NewCLIError(e, "try increasing the timeout with --timeout")
	case errors.CodeProtocol:
		return NewCLIError(e, "the peer did not answer with a JSON-RPC 2.0 envelope")
	default:
		return NewCLIError(e, "")
	}
}

func fromRPCError(rpcErr *jsonrpc.Error) *CLIError {
	var cause error
	if reason := rpcErr.Reason(); reason != "" {
		cause = stderrors.New(reason)
	}
	switch rpcErr.Code {
	case errors.RPCTaskFailed:
		return NewCLIError(errors.New(errors.CodeTaskFailed, rpcErr.Message, cause),
			"the agent rejected the task; check the action name and input")
	case errors.RPCTaskTimeout:
		return NewCLIError(errors.New(errors.CodeTimeout, rpcErr.Message, cause),
			"the agent did not finish in time; raise agent.task_timeout on the agent")
	case errors.RPCInvalidParams:
		return NewCLIError(errors.New(errors.CodeInvalidInput, rpcErr.Message, cause),
			"check the required fields for this command with 'a2a help'")
	case errors.RPCMethodNotFound:
		return NewCLIError(errors.New(errors.CodeProtocol, rpcErr.Message, cause),
			"the endpoint does not speak this protocol; check the URL")
	default:
		return NewCLIError(errors.New(errors.CodeInternal, rpcErr.Message, cause), "")
	}
}

// FormatErrorCode returns a user-friendly name for error codes.
func FormatErrorCode(code errors.ErrorCode) string {
	switch code {
	case errors.CodeInternal:
		return "Internal Error"
	case errors.CodeInvalidInput:
		return "Invalid Input"
	case errors.CodeNotFound:
		return "Not Found"
	case errors.CodeTimeout:
		return "Timeout"
	case errors.CodeTaskFailed:
		return "Task Failed"
	case errors.CodeTransport:
		return "Transport"
	case errors.CodeProtocol:
		return "Protocol"
	default:
		return string(code)
	}
}
