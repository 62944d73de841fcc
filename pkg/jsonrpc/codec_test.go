// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	aerrors "github.com/jllopis/a2a/pkg/errors"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		code   int
		id     string
		method string
		params string
	}{
		{name: "malformed json", body: `{"jsonrpc":"2.0",`, code: -32700},
		{name: "empty body", body: ``, code: -32700},
		{name: "array", body: `[1,2]`, code: -32600},
		{name: "scalar", body: `"hello"`, code: -32600},
		{name: "missing version", body: `{"id":"7","method":"a2a/task"}`, code: -32600, id: `"7"`},
		{name: "wrong version", body: `{"jsonrpc":"1.0","id":7,"method":"a2a/task"}`, code: -32600, id: `7`},
		{name: "empty method", body: `{"jsonrpc":"2.0","id":1,"method":""}`, code: -32600, id: `1`},
		{name: "numeric method", body: `{"jsonrpc":"2.0","id":1,"method":5}`, code: -32600, id: `1`},
		{name: "missing id", body: `{"jsonrpc":"2.0","method":"a2a/task"}`, code: -32600},
		{name: "null id", body: `{"jsonrpc":"2.0","id":null,"method":"a2a/task"}`, code: -32600},
		{name: "object id", body: `{"jsonrpc":"2.0","id":{"a":1},"method":"a2a/task"}`, code: -32600},
		{name: "bool id", body: `{"jsonrpc":"2.0","id":true,"method":"a2a/task"}`, code: -32600},
		{name: "string id", body: `{"jsonrpc":"2.0","id":"abc","method":"a2a/discover","params":{"capabilities":["math"]}}`, id: `"abc"`, method: "a2a/discover", params: `{"capabilities":["math"]}`},
		{name: "number id", body: `{"jsonrpc":"2.0","id":-12.5e3,"method":"a2a/task"}`, id: `-12.5e3`, method: "a2a/task"},
		{name: "params kept raw", body: `{"jsonrpc":"2.0","id":1,"method":"x","params":[1,"two"]}`, id: `1`, method: "x", params: `[1,"two"]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rpcErr := Decode([]byte(tt.body))
			if req == nil {
				t.Fatalf("Decode must always return a request")
			}
			if tt.code != 0 {
				if rpcErr == nil {
					t.Fatalf("expected error %d", tt.code)
				}
				if rpcErr.Code != tt.code {
					t.Fatalf("expected code %d, got %d", tt.code, rpcErr.Code)
				}
			} else if rpcErr != nil {
				t.Fatalf("unexpected error: %v", rpcErr)
			}
			if string(req.ID) != tt.id {
				t.Errorf("expected id %q, got %q", tt.id, string(req.ID))
			}
			if tt.code == 0 {
				if req.Method != tt.method {
					t.Errorf("expected method %q, got %q", tt.method, req.Method)
				}
				if string(req.Params) != tt.params {
					t.Errorf("expected params %q, got %q", tt.params, string(req.Params))
				}
			}
		})
	}
}

func TestResponseMarshalExclusive(t *testing.T) {
	tests := []struct {
		name string
		resp *Response
		want string
	}{
		{
			name: "result",
			resp: NewResult(json.RawMessage(`"a"`), map[string]int{"result": 42}),
			want: `{"jsonrpc":"2.0","id":"a","result":{"result":42}}`,
		},
		{
			name: "error with null id",
			resp: NewErrorResponse(nil, ParseError()),
			want: `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}`,
		},
		{
			name: "error wins over result",
			resp: &Response{ID: json.RawMessage(`3`), Result: json.RawMessage(`{}`), Error: MethodNotFound("nope")},
			want: `{"jsonrpc":"2.0","id":3,"error":{"code":-32601,"message":"Method not found","data":{"method":"nope"}}}`,
		},
		{
			name: "nil result",
			resp: &Response{ID: json.RawMessage(`3`)},
			want: `{"jsonrpc":"2.0","id":3,"result":null}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := json.Marshal(tt.resp)
			if err != nil {
				t.Fatalf("marshal: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestNewResultUnencodable(t *testing.T) {
	resp := NewResult(json.RawMessage(`1`), map[string]any{"ch": make(chan int)})
	if resp.Error == nil || resp.Error.Code != aerrors.RPCInternalError {
		t.Fatalf("expected internal error, got %+v", resp)
	}
}

func TestFromError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   int
		reason string
	}{
		{"rpc error passthrough", InvalidParams("missing agentId"), -32602, "missing agentId"},
		{"wrapped rpc error", fmt.Errorf("ctx: %w", MethodNotFound("x")), -32601, ""},
		{"invalid input", aerrors.New(aerrors.CodeInvalidInput, "agentId is required", nil), -32602, "agentId is required"},
		{"not found", aerrors.New(aerrors.CodeNotFound, "agent not found", nil), -32602, "agent not found"},
		{"task failed", aerrors.New(aerrors.CodeTaskFailed, "task failed", errors.New("division by zero")).WithContext("task_id", "t1"), -32001, "division by zero"},
		{"timeout", aerrors.New(aerrors.CodeTimeout, "operation exceeded timeout", nil), -32002, "operation exceeded timeout"},
		{"generic", errors.New("boom"), -32603, "boom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rpcErr := FromError(tt.err)
			if rpcErr.Code != tt.code {
				t.Fatalf("expected code %d, got %d", tt.code, rpcErr.Code)
			}
			if rpcErr.Reason() != tt.reason {
				t.Errorf("expected reason %q, got %q", tt.reason, rpcErr.Reason())
			}
		})
	}
	if FromError(nil) != nil {
		t.Errorf("expected nil for nil error")
	}
}

func TestTaskErrorData(t *testing.T) {
	e := TaskFailed("t-9", "handler exploded")
	if e.Data["taskId"] != "t-9" || e.Data["status"] != "failed" || e.Data["reason"] != "handler exploded" {
		t.Fatalf("unexpected data %v", e.Data)
	}
	to := TaskTimeout("t-9", "deadline")
	if to.Code != -32002 || to.Data["status"] != "timeout" {
		t.Fatalf("unexpected timeout error %+v", to)
	}
	if got := e.Error(); got != "jsonrpc -32001 Task failed: handler exploded" {
		t.Errorf("unexpected message %q", got)
	}
}
