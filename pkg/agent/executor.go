// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent runs tasks delivered over JSON-RPC: the executor drives each
// task through its lifecycle and the server exposes it over HTTP.
package agent

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/a2a/pkg/audit"
	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/telemetry"
)

// ReasonNoHandler is the failure reason when no task handler is configured.
const ReasonNoHandler = "no handler registered"

// TaskHandler executes one task. A returned error, or an output holding a
// non-empty "error" string, fails the task.
type TaskHandler func(ctx context.Context, action string, input protocol.Payload, sender string) (protocol.Payload, error)

// Func adapts a handler that cannot fail.
func Func(fn func(ctx context.Context, action string, input protocol.Payload) protocol.Payload) TaskHandler {
	return func(ctx context.Context, action string, input protocol.Payload, _ string) (protocol.Payload, error) {
		return fn(ctx, action, input), nil
	}
}

// Executor runs a TaskHandler and records every outcome.
type Executor struct {
	handler TaskHandler
	journal audit.Store
	metrics *telemetry.ProtocolMetrics
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithJournal records each finished task in store.
func WithJournal(store audit.Store) ExecutorOption {
	return func(e *Executor) {
		e.journal = store
	}
}

// WithExecutorLogger sets the executor logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(e *Executor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithExecutorMetrics records task counters.
func WithExecutorMetrics(metrics *telemetry.ProtocolMetrics) ExecutorOption {
	return func(e *Executor) {
		e.metrics = metrics
	}
}

// WithExecutorClock overrides the time source used for journal timestamps.
func WithExecutorClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		if now != nil {
			e.now = now
		}
	}
}

// NewExecutor creates an executor for handler. A nil handler is allowed;
// every task then fails with ReasonNoHandler.
func NewExecutor(handler TaskHandler, opts ...ExecutorOption) *Executor {
	e := &Executor{
		handler: handler,
		logger:  slog.Default(),
		tracer:  otel.Tracer(telemetry.TracerAgent),
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// Execute runs one task to a terminal status.
//
// A completed task returns a nil error. A failed task returns the result with
// status failed and a TASK_FAILED error carrying the handler's reason. When
// ctx reaches its deadline while the handler runs, the status is timeout and
// the error is TIMEOUT.
func (e *Executor) Execute(ctx context.Context, req protocol.TaskRequest) (protocol.TaskResult, error) {
	received := e.now()
	ctx, span := e.tracer.Start(ctx, "agent.task.execute",
		trace.WithAttributes(telemetry.TaskAttributes(req.TaskID, req.Action, req.Sender, "")...),
	)
	defer span.End()

	lc := newLifecycle(req.TaskID)
	logger := e.logger.With("task_id", req.TaskID, "action", req.Action)
	logger.DebugContext(ctx, "agent.task.received", "sender", req.Sender)

	output, taskErr := e.run(ctx, lc, req)

	result := protocol.TaskResult{TaskID: req.TaskID, Status: lc.status, Output: output}
	span.SetAttributes(attribute.String(telemetry.AttrTaskStatus, string(lc.status)))
	if taskErr != nil {
		span.RecordError(taskErr)
		span.SetStatus(codes.Error, taskErr.Error())
		logger.WarnContext(ctx, "agent.task.failed", "status", lc.status, "error", taskErr)
		e.metrics.RecordError(ctx, taskErr, "agent")
	} else {
		logger.InfoContext(ctx, "agent.task.complete", "duration", e.now().Sub(received))
	}
	e.metrics.RecordTask(ctx, string(lc.status))
	e.record(ctx, req, result, taskErr, received)
	return result, taskErr
}

func (e *Executor) run(ctx context.Context, lc *lifecycle, req protocol.TaskRequest) (protocol.Payload, error) {
	if err := lc.advance(protocol.TaskStatusExecuting); err != nil {
		return nil, e.fail(lc, err.Error())
	}
	if e.handler == nil {
		return nil, e.fail(lc, ReasonNoHandler)
	}

	input := req.Input
	if input == nil {
		input = protocol.Payload{}
	}
	output, err := e.invoke(ctx, req.Action, input, req.Sender)

	if ctxErr := ctx.Err(); ctxErr != nil && stderrors.Is(ctxErr, context.DeadlineExceeded) {
		_ = lc.advance(protocol.TaskStatusTimeout)
		return nil, errors.New(errors.CodeTimeout, "task timed out", ctxErr).
			WithContext("task_id", lc.taskID).
			WithRecoverable(true)
	}
	if err != nil {
		return nil, e.fail(lc, reasonOf(err))
	}
	if msg, ok := output.ErrorMessage(); ok {
		return nil, e.fail(lc, msg)
	}
	normalized, err := protocol.Normalize(output)
	if err != nil {
		return nil, e.fail(lc, err.Error())
	}
	_ = lc.advance(protocol.TaskStatusCompleted)
	return normalized, nil
}

func (e *Executor) invoke(ctx context.Context, action string, input protocol.Payload, sender string) (output protocol.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.ErrorContext(ctx, "agent.handler.panic",
				"action", action,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			output, err = nil, fmt.Errorf("handler panic: %v", r)
		}
	}()
	return e.handler(ctx, action, input, sender)
}

func (e *Executor) fail(lc *lifecycle, reason string) error {
	_ = lc.advance(protocol.TaskStatusFailed)
	return errors.New(errors.CodeTaskFailed, "task failed", stderrors.New(reason)).
		WithContext("task_id", lc.taskID)
}

func (e *Executor) record(ctx context.Context, req protocol.TaskRequest, result protocol.TaskResult, taskErr error, received time.Time) {
	if e.journal == nil {
		return
	}
	entry := audit.Entry{
		TaskID:     req.TaskID,
		Action:     req.Action,
		Sender:     req.Sender,
		Status:     result.Status,
		Input:      req.Input,
		Output:     result.Output,
		ReceivedAt: received,
		FinishedAt: e.now(),
	}
	if taskErr != nil {
		entry.Error = reasonOf(taskErr)
	}
	if err := e.journal.Record(context.WithoutCancel(ctx), entry); err != nil {
		e.logger.WarnContext(ctx, "agent.journal.record", "task_id", req.TaskID, "error", err)
	}
}

// reasonOf returns the innermost human-readable reason of err.
func reasonOf(err error) string {
	var typed *errors.Error
	if stderrors.As(err, &typed) {
		if typed.Err != nil {
			return typed.Err.Error()
		}
		return typed.Message
	}
	return err.Error()
}
