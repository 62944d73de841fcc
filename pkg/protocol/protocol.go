// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package protocol defines the wire data model shared by the directory,
// agent servers and clients.
package protocol

import (
	"encoding/json"
	"time"
)

// Method names carried in the JSON-RPC envelope.
const (
	MethodRegister = "a2a/register"
	MethodDiscover = "a2a/discover"
	MethodTask     = "a2a/task"
)

// WellKnownPath is where an agent server publishes its own record.
const WellKnownPath = "/.well-known/agent.json"

// StatusRegistered is the status returned by a successful registration.
const StatusRegistered = "registered"

// AgentRecord is the directory's view of one registered agent.
type AgentRecord struct {
	AgentID      string    `json:"agentId"`
	Name         string    `json:"name"`
	Capabilities []string  `json:"capabilities"`
	Endpoint     string    `json:"endpoint"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Clone returns a deep copy of the record.
func (r AgentRecord) Clone() AgentRecord {
	out := r
	out.Capabilities = append(make([]string, 0, len(r.Capabilities)), r.Capabilities...)
	return out
}

// HasAny reports whether the record declares at least one of the wanted capabilities.
// Matching is exact string equality.
func (r AgentRecord) HasAny(wanted []string) bool {
	for _, have := range r.Capabilities {
		for _, w := range wanted {
			if have == w {
				return true
			}
		}
	}
	return false
}

// TaskRequest is the params object of an a2a/task call.
type TaskRequest struct {
	TaskID string  `json:"taskId"`
	Action string  `json:"action"`
	Sender string  `json:"sender,omitempty"`
	Input  Payload `json:"input"`
}

// TaskResult is the result object of an a2a/task call.
type TaskResult struct {
	TaskID string     `json:"taskId"`
	Status TaskStatus `json:"status"`
	Output Payload    `json:"output,omitempty"`
}

// MarshalJSON always emits output for completed tasks, as {} when empty.
func (r TaskResult) MarshalJSON() ([]byte, error) {
	type plain TaskResult
	if r.Status != TaskStatusCompleted || len(r.Output) > 0 {
		return json.Marshal(plain(r))
	}
	return json.Marshal(struct {
		TaskID string     `json:"taskId"`
		Status TaskStatus `json:"status"`
		Output Payload    `json:"output"`
	}{r.TaskID, r.Status, Payload{}})
}

// RegisterParams is the params object of an a2a/register call.
type RegisterParams struct {
	AgentID      string   `json:"agentId"`
	Name         string   `json:"name"`
	Capabilities []string `json:"capabilities"`
	Endpoint     string   `json:"endpoint"`
}

// RegisterResult is the result object of an a2a/register call.
type RegisterResult struct {
	Status  string `json:"status"`
	AgentID string `json:"agentId"`
}

// DiscoverParams is the params object of an a2a/discover call.
type DiscoverParams struct {
	Capabilities []string `json:"capabilities"`
}

// DiscoverResult is the result object of an a2a/discover call and of GET /a2a/agents.
type DiscoverResult struct {
	Agents []AgentRecord `json:"agents"`
}
