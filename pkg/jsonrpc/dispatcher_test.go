// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	aerrors "github.com/jllopis/a2a/pkg/errors"
)

type echoParams struct {
	Value int `json:"value"`
}

func newTestDispatcher(t *testing.T, logs io.Writer) *Dispatcher {
	t.Helper()
	if logs == nil {
		logs = io.Discard
	}
	d := NewDispatcher(WithLogger(slog.New(slog.NewTextHandler(logs, nil))))
	d.Handle("test/echo", func(ctx context.Context, params json.RawMessage) (any, error) {
		var p echoParams
		if err := DecodeParams(params, &p); err != nil {
			return nil, err
		}
		return map[string]int{"result": p.Value}, nil
	})
	d.Handle("test/panic", func(ctx context.Context, params json.RawMessage) (any, error) {
		panic("kaboom")
	})
	d.Handle("test/notfound", func(ctx context.Context, params json.RawMessage) (any, error) {
		return nil, aerrors.New(aerrors.CodeNotFound, "agent not found", nil)
	})
	return d
}

func dispatch(t *testing.T, d *Dispatcher, body string) *Response {
	t.Helper()
	req, rpcErr := Decode([]byte(body))
	if rpcErr != nil {
		t.Fatalf("decode: %v", rpcErr)
	}
	resp := d.Dispatch(context.Background(), req)
	if resp == nil {
		t.Fatalf("nil response")
	}
	return resp
}

func TestDispatchSuccess(t *testing.T) {
	d := newTestDispatcher(t, nil)
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":"a","method":"test/echo","params":{"value":42}}`)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %v", resp.Error)
	}
	if string(resp.Result) != `{"result":42}` {
		t.Fatalf("unexpected result %s", resp.Result)
	}
	if string(resp.ID) != `"a"` {
		t.Fatalf("expected id echoed, got %s", resp.ID)
	}
}

func TestDispatchUnknownMethod(t *testing.T) {
	d := newTestDispatcher(t, nil)
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":99,"method":"test/missing"}`)
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("expected -32601, got %+v", resp.Error)
	}
	if string(resp.ID) != `99` {
		t.Fatalf("expected id 99 echoed, got %s", resp.ID)
	}
}

func TestDispatchInvalidParams(t *testing.T) {
	d := newTestDispatcher(t, nil)
	for _, body := range []string{
		`{"jsonrpc":"2.0","id":1,"method":"test/echo"}`,
		`{"jsonrpc":"2.0","id":1,"method":"test/echo","params":null}`,
		`{"jsonrpc":"2.0","id":1,"method":"test/echo","params":{"value":"x"}}`,
	} {
		resp := dispatch(t, d, body)
		if resp.Error == nil || resp.Error.Code != -32602 {
			t.Errorf("%s: expected -32602, got %+v", body, resp.Error)
		}
	}
}

func TestDispatchTypedError(t *testing.T) {
	d := newTestDispatcher(t, nil)
	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":1,"method":"test/notfound","params":{}}`)
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
	if resp.Error.Reason() != "agent not found" {
		t.Errorf("expected reason to carry message, got %q", resp.Error.Reason())
	}
}

func TestDispatchPanicIsolated(t *testing.T) {
	var logs bytes.Buffer
	d := newTestDispatcher(t, &logs)

	resp := dispatch(t, d, `{"jsonrpc":"2.0","id":5,"method":"test/panic"}`)
	if resp.Error == nil || resp.Error.Code != -32603 {
		t.Fatalf("expected -32603, got %+v", resp.Error)
	}
	if !strings.Contains(resp.Error.Reason(), "kaboom") {
		t.Errorf("expected panic value in reason, got %q", resp.Error.Reason())
	}
	if !strings.Contains(logs.String(), "jsonrpc.handler.panic") {
		t.Errorf("expected panic to be logged")
	}

	// The dispatcher keeps serving after a panic.
	resp = dispatch(t, d, `{"jsonrpc":"2.0","id":6,"method":"test/echo","params":{"value":1}}`)
	if resp.Error != nil {
		t.Fatalf("dispatcher broken after panic: %v", resp.Error)
	}
}

func TestHandleRejectsDuplicates(t *testing.T) {
	d := NewDispatcher()
	h := func(ctx context.Context, params json.RawMessage) (any, error) { return nil, nil }
	d.Handle("a", h)
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate method")
		}
	}()
	d.Handle("a", h)
}

func TestMethods(t *testing.T) {
	d := newTestDispatcher(t, nil)
	got := strings.Join(d.Methods(), ",")
	if got != "test/echo,test/notfound,test/panic" {
		t.Fatalf("unexpected methods %s", got)
	}
}
