// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package a2atest provides scripted task handlers and an in-process
// directory plus agents for tests.
package a2atest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/a2a/pkg/protocol"
)

// TaskCall is one captured handler invocation.
type TaskCall struct {
	Action string
	Input  protocol.Payload
	Sender string
}

// ScriptedResponse defines a response for the scripted handler.
type ScriptedResponse struct {
	Output protocol.Payload
	Error  error
	// Delay holds the response back, or until the task context ends.
	Delay time.Duration
	// Condition restricts the response to matching calls.
	Condition func(call TaskCall) bool
}

// ScriptedHandler is an agent.TaskHandler that replays queued responses
// and records every call.
type ScriptedHandler struct {
	mu           sync.Mutex
	responses    []ScriptedResponse
	currentIndex int
	calls        []TaskCall
	defaultError error
	onTask       func(call TaskCall) (protocol.Payload, error)
}

// NewScriptedHandler creates an empty scripted handler.
func NewScriptedHandler() *ScriptedHandler {
	return &ScriptedHandler{}
}

// AddResponse queues an output.
func (h *ScriptedHandler) AddResponse(output protocol.Payload) *ScriptedHandler {
	return h.AddScriptedResponse(ScriptedResponse{Output: output})
}

// AddFailure queues an error-shaped output, which the executor reports as a failed task.
func (h *ScriptedHandler) AddFailure(reason string) *ScriptedHandler {
	return h.AddScriptedResponse(ScriptedResponse{Output: protocol.Payload{"error": reason}})
}

// AddErrorResponse queues a handler error.
func (h *ScriptedHandler) AddErrorResponse(err error) *ScriptedHandler {
	return h.AddScriptedResponse(ScriptedResponse{Error: err})
}

// AddScriptedResponse adds a fully configured response.
func (h *ScriptedHandler) AddScriptedResponse(resp ScriptedResponse) *ScriptedHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.responses = append(h.responses, resp)
	return h
}

// WithDefaultError sets the error returned when no responses are queued.
func (h *ScriptedHandler) WithDefaultError(err error) *ScriptedHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.defaultError = err
	return h
}

// WithTaskFunc answers every call with fn instead of the queue.
func (h *ScriptedHandler) WithTaskFunc(fn func(call TaskCall) (protocol.Payload, error)) *ScriptedHandler {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onTask = fn
	return h
}

// Handle has the agent.TaskHandler signature.
func (h *ScriptedHandler) Handle(ctx context.Context, action string, input protocol.Payload, sender string) (protocol.Payload, error) {
	call := TaskCall{Action: action, Input: input, Sender: sender}
	resp, err := h.next(call)
	if err != nil {
		return nil, err
	}
	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	return resp.Output, nil
}

func (h *ScriptedHandler) next(call TaskCall) (ScriptedResponse, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls = append(h.calls, call)

	if h.onTask != nil {
		output, err := h.onTask(call)
		return ScriptedResponse{Output: output, Error: err}, nil
	}

	for h.currentIndex < len(h.responses) {
		resp := h.responses[h.currentIndex]
		h.currentIndex++
		if resp.Condition == nil || resp.Condition(call) {
			return resp, nil
		}
	}
	if h.defaultError != nil {
		return ScriptedResponse{}, h.defaultError
	}
	return ScriptedResponse{}, fmt.Errorf("no more scripted responses (call %d)", len(h.calls))
}

// Calls returns all captured calls.
func (h *ScriptedHandler) Calls() []TaskCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]TaskCall(nil), h.calls...)
}

// LastCall returns the most recent call, or nil.
func (h *ScriptedHandler) LastCall() *TaskCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.calls) == 0 {
		return nil
	}
	call := h.calls[len(h.calls)-1]
	return &call
}

// CallCount returns the number of calls made.
func (h *ScriptedHandler) CallCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

// Reset rewinds the queue and forgets captured calls.
func (h *ScriptedHandler) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.currentIndex = 0
	h.calls = h.calls[:0]
}
