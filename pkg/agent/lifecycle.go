// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"fmt"

	"github.com/jllopis/a2a/pkg/protocol"
)

// transitions lists the legal moves of a task. Terminal states have no exits.
var transitions = map[protocol.TaskStatus][]protocol.TaskStatus{
	protocol.TaskStatusReceived: {
		protocol.TaskStatusExecuting,
		protocol.TaskStatusCancelled,
	},
	protocol.TaskStatusExecuting: {
		protocol.TaskStatusCompleted,
		protocol.TaskStatusFailed,
		protocol.TaskStatusTimeout,
		protocol.TaskStatusCancelled,
	},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to protocol.TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// lifecycle tracks one task through its states.
type lifecycle struct {
	taskID string
	status protocol.TaskStatus
}

func newLifecycle(taskID string) *lifecycle {
	return &lifecycle{taskID: taskID, status: protocol.TaskStatusReceived}
}

func (l *lifecycle) advance(to protocol.TaskStatus) error {
	if !CanTransition(l.status, to) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", l.taskID, l.status, to)
	}
	l.status = to
	return nil
}
