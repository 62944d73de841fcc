// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package a2atest

import (
	stderrors "errors"
	"testing"

	"github.com/jllopis/a2a/pkg/jsonrpc"
	"github.com/jllopis/a2a/pkg/protocol"
)

// RequireCompleted fails the test unless the task completed without error.
func RequireCompleted(t testing.TB, result *protocol.TaskResult, err error) protocol.Payload {
	t.Helper()
	if err != nil {
		t.Fatalf("task error: %v", err)
	}
	if result == nil {
		t.Fatal("expected a task result")
	}
	if result.Status != protocol.TaskStatusCompleted {
		t.Fatalf("expected status completed, got %s", result.Status)
	}
	return result.Output
}

// RequireRPCError fails the test unless err carries a JSON-RPC error with code.
// It returns the error for further checks.
func RequireRPCError(t testing.TB, err error, code int) *jsonrpc.Error {
	t.Helper()
	var rpcErr *jsonrpc.Error
	if !stderrors.As(err, &rpcErr) {
		t.Fatalf("expected a JSON-RPC error with code %d, got %v", code, err)
	}
	if rpcErr.Code != code {
		t.Fatalf("expected JSON-RPC code %d, got %d (%s)", code, rpcErr.Code, rpcErr.Message)
	}
	return rpcErr
}

// AssertStatus reports a mismatch between the result status and want.
func AssertStatus(t testing.TB, result *protocol.TaskResult, want protocol.TaskStatus) {
	t.Helper()
	if result == nil {
		t.Errorf("expected status %s, got no result", want)
		return
	}
	if result.Status != want {
		t.Errorf("expected status %s, got %s", want, result.Status)
	}
}
