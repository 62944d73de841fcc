// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/jsonrpc"
	"github.com/jllopis/a2a/pkg/protocol"
)

// Requester delivers tasks to agents found through a directory.
type Requester struct {
	directory *Directory
	sender    string
	rpc       *jsonrpc.Client
	opts      options
}

// NewRequester creates a requester that resolves targets through directory
// and signs tasks with sender.
func NewRequester(directory *Directory, sender string, opts ...Option) *Requester {
	o := newOptions(opts)
	return &Requester{
		directory: directory,
		sender:    sender,
		rpc:       o.rpcClient(),
		opts:      o,
	}
}

// SendTask resolves targetID to its endpoint and delivers one task.
//
// An unknown target returns a NOT_FOUND error without contacting any agent.
// A task that failed or timed out on the agent returns a result with status
// failed or timeout together with the *jsonrpc.Error the agent sent.
func (r *Requester) SendTask(ctx context.Context, targetID, action string, input protocol.Payload) (*protocol.TaskResult, error) {
	target, err := r.directory.Get(ctx, targetID)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", targetID, err)
	}
	return r.SendTaskTo(ctx, target.Endpoint, protocol.TaskRequest{
		TaskID: uuid.NewString(),
		Action: action,
		Sender: r.sender,
		Input:  input,
	})
}

// SendTaskTo delivers req to an agent endpoint directly. The task id doubles
// as the envelope id; one is generated when empty.
func (r *Requester) SendTaskTo(ctx context.Context, endpoint string, req protocol.TaskRequest) (*protocol.TaskResult, error) {
	if req.TaskID == "" {
		req.TaskID = uuid.NewString()
	}
	if req.Sender == "" {
		req.Sender = r.sender
	}
	if req.Input == nil {
		req.Input = protocol.Payload{}
	}

	var result protocol.TaskResult
	err := r.opts.do(ctx, protocol.MethodTask, func(ctx context.Context) error {
		return r.rpc.CallWithID(ctx, endpoint, req.TaskID, protocol.MethodTask, req, &result)
	})
	if err == nil {
		return &result, nil
	}

	var rpcErr *jsonrpc.Error
	if stderrors.As(err, &rpcErr) {
		switch rpcErr.Code {
		case errors.RPCTaskFailed:
			return &protocol.TaskResult{TaskID: req.TaskID, Status: protocol.TaskStatusFailed}, err
		case errors.RPCTaskTimeout:
			return &protocol.TaskResult{TaskID: req.TaskID, Status: protocol.TaskStatusTimeout}, err
		}
	}
	return nil, err
}
