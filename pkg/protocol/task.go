// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// TaskStatus describes the lifecycle state of a task.
type TaskStatus string

const (
	// TaskStatusReceived and TaskStatusExecuting are internal states; they never reach the wire.
	TaskStatusReceived  TaskStatus = "received"
	TaskStatusExecuting TaskStatus = "executing"

	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
	TaskStatusTimeout   TaskStatus = "timeout"
)

// Terminal reports whether the status ends the task lifecycle.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled, TaskStatusTimeout:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusReceived || s == TaskStatusExecuting || s.Terminal()
}

// Payload is an open string-keyed map of JSON values.
type Payload map[string]any

// UnmarshalJSON decodes an object keeping numbers as json.Number, so
// integers beyond float64 precision survive a round trip.
func (p *Payload) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return err
	}
	*p = m
	return nil
}

// Normalize returns a copy of p holding only JSON values (maps become
// map[string]any, numbers json.Number, typed slices []any). A nil payload
// normalizes to an empty one.
func Normalize(p Payload) (Payload, error) {
	if p == nil {
		return Payload{}, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("payload is not JSON-representable: %w", err)
	}
	out := Payload{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("payload is not a JSON object: %w", err)
	}
	return out, nil
}

// ErrorMessage returns the value of an "error" key holding a non-empty string.
// Handlers that cannot return an error signal failure this way.
func (p Payload) ErrorMessage() (string, bool) {
	v, ok := p["error"]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
