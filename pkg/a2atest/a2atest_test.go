// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package a2atest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/jllopis/a2a/pkg/agent"
	a2aerrors "github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/registry"
)

func TestScriptedHandlerQueue(t *testing.T) {
	h := NewScriptedHandler().
		AddResponse(protocol.Payload{"n": 1}).
		AddErrorResponse(errors.New("boom"))
	ctx := context.Background()

	out, err := h.Handle(ctx, "count", protocol.Payload{}, "tester")
	if err != nil || out["n"] != 1 {
		t.Fatalf("unexpected first response %v %v", out, err)
	}
	if _, err := h.Handle(ctx, "count", nil, "tester"); err == nil || err.Error() != "boom" {
		t.Fatalf("expected scripted error, got %v", err)
	}
	if _, err := h.Handle(ctx, "count", nil, "tester"); err == nil {
		t.Fatal("expected error once the queue is empty")
	}
	if h.CallCount() != 3 {
		t.Fatalf("expected 3 calls, got %d", h.CallCount())
	}
	if last := h.LastCall(); last == nil || last.Sender != "tester" {
		t.Fatalf("unexpected last call %+v", last)
	}

	h.Reset()
	if h.CallCount() != 0 || h.LastCall() != nil {
		t.Fatal("expected reset to clear calls")
	}
	if out, _ := h.Handle(ctx, "count", nil, ""); out["n"] != 1 {
		t.Fatalf("expected queue to rewind, got %v", out)
	}
}

func TestScriptedHandlerConditionAndDefault(t *testing.T) {
	h := NewScriptedHandler().
		AddScriptedResponse(ScriptedResponse{
			Output:    protocol.Payload{"for": "add"},
			Condition: func(call TaskCall) bool { return call.Action == "add" },
		}).
		AddResponse(protocol.Payload{"for": "any"}).
		WithDefaultError(errors.New("exhausted"))

	out, err := h.Handle(context.Background(), "multiply", nil, "")
	if err != nil || out["for"] != "any" {
		t.Fatalf("expected the unconditional response, got %v %v", out, err)
	}
	if _, err := h.Handle(context.Background(), "add", nil, ""); err == nil || err.Error() != "exhausted" {
		t.Fatalf("expected default error, got %v", err)
	}
}

func TestScriptedHandlerDelayHonoursContext(t *testing.T) {
	h := NewScriptedHandler().AddScriptedResponse(ScriptedResponse{Delay: time.Hour})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := h.Handle(ctx, "slow", nil, ""); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestScriptedHandlerTaskFunc(t *testing.T) {
	h := NewScriptedHandler().WithTaskFunc(func(call TaskCall) (protocol.Payload, error) {
		return protocol.Payload{"action": call.Action}, nil
	})
	out, err := h.Handle(context.Background(), "ping", nil, "")
	if err != nil || out["action"] != "ping" {
		t.Fatalf("unexpected output %v %v", out, err)
	}
}

func TestClusterRoundTrip(t *testing.T) {
	cluster := NewCluster(t)
	handler := NewScriptedHandler().
		AddResponse(protocol.Payload{"sum": 5}).
		AddFailure("division by zero").
		AddScriptedResponse(ScriptedResponse{Delay: time.Second})

	card := cluster.StartAgent("calc", []string{"add", "divide"}, handler.Handle,
		agent.WithTaskTimeout(100*time.Millisecond))
	if cluster.Agent("calc") == nil || card.Endpoint == "" {
		t.Fatalf("expected a started agent, got %+v", card)
	}
	if cluster.Registry.Len() != 1 {
		t.Fatalf("expected one registered agent, got %d", cluster.Registry.Len())
	}

	requester := cluster.Requester("tester")
	ctx := context.Background()

	out := RequireCompleted(t, requester.SendTask(ctx, "calc", "add", protocol.Payload{"a": 2, "b": 3}))
	if out["sum"] != json.Number("5") {
		t.Fatalf("unexpected output %v", out)
	}
	if call := handler.LastCall(); call.Action != "add" || call.Sender != "tester" || call.Input["a"] != json.Number("2") {
		t.Fatalf("unexpected captured call %+v", call)
	}

	result, err := requester.SendTask(ctx, "calc", "divide", protocol.Payload{})
	AssertStatus(t, result, protocol.TaskStatusFailed)
	rpcErr := RequireRPCError(t, err, a2aerrors.RPCTaskFailed)
	if rpcErr.Reason() != "division by zero" {
		t.Fatalf("unexpected reason %q", rpcErr.Reason())
	}

	result, err = requester.SendTask(ctx, "calc", "add", protocol.Payload{})
	AssertStatus(t, result, protocol.TaskStatusTimeout)
	RequireRPCError(t, err, a2aerrors.RPCTaskTimeout)

	if _, err := requester.SendTask(ctx, "ghost", "add", nil); !errors.Is(err, registry.ErrAgentNotFound) {
		t.Fatalf("expected agent not found, got %v", err)
	}
}
