// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides logging, tracing and metrics wiring for the
// directory, agent servers and clients.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Attribute names used on spans and metrics.
const (
	// Agent attributes
	AttrAgentID       = "a2a.agent.id"
	AttrAgentName     = "a2a.agent.name"
	AttrAgentEndpoint = "a2a.agent.endpoint"
	AttrCapabilities  = "a2a.capabilities"

	// Task attributes
	AttrTaskID     = "a2a.task.id"
	AttrTaskAction = "a2a.task.action"
	AttrTaskStatus = "a2a.task.status"
	AttrTaskSender = "a2a.task.sender"

	// RPC attributes
	AttrRPCMethod = "a2a.rpc.method"
	AttrRPCCode   = "a2a.rpc.code"
	AttrRPCID     = "a2a.rpc.id"

	// Registry attributes
	AttrRegistryMatches = "a2a.registry.matches"
	AttrRegistryPruned  = "a2a.registry.pruned"

	AttrComponent = "component"
	AttrErrorCode = "error.code"
)

// AgentAttributes returns attributes describing a registered agent.
func AgentAttributes(agentID, name, endpoint string, capabilities []string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
	}
	if name != "" {
		attrs = append(attrs, attribute.String(AttrAgentName, name))
	}
	if endpoint != "" {
		attrs = append(attrs, attribute.String(AttrAgentEndpoint, endpoint))
	}
	if len(capabilities) > 0 {
		attrs = append(attrs, attribute.StringSlice(AttrCapabilities, capabilities))
	}
	return attrs
}

// TaskAttributes returns attributes for task tracking.
func TaskAttributes(taskID, action, sender, status string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if taskID != "" {
		attrs = append(attrs, attribute.String(AttrTaskID, taskID))
	}
	if action != "" {
		// Truncate long actions
		if len(action) > 200 {
			action = action[:200] + "..."
		}
		attrs = append(attrs, attribute.String(AttrTaskAction, action))
	}
	if sender != "" {
		attrs = append(attrs, attribute.String(AttrTaskSender, sender))
	}
	if status != "" {
		attrs = append(attrs, attribute.String(AttrTaskStatus, status))
	}
	return attrs
}

// RPCAttributes returns attributes for a dispatched JSON-RPC call.
// A zero code means the call succeeded.
func RPCAttributes(method string, code int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrRPCMethod, method),
		attribute.Int(AttrRPCCode, code),
	}
}
