// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/telemetry"
)

// HandlerFunc serves one method. The returned value is encoded as the result.
// Returning an *Error sends it as is; other errors are mapped with FromError.
type HandlerFunc func(ctx context.Context, params json.RawMessage) (any, error)

// Dispatcher routes decoded requests through a fixed method table.
// Register every method with Handle before the first Dispatch.
type Dispatcher struct {
	methods map[string]HandlerFunc
	logger  *slog.Logger
	metrics *telemetry.ProtocolMetrics
	tracer  trace.Tracer
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithMetrics records every dispatch in the protocol metrics.
func WithMetrics(metrics *telemetry.ProtocolMetrics) Option {
	return func(d *Dispatcher) {
		d.metrics = metrics
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		methods: make(map[string]HandlerFunc),
		logger:  slog.Default(),
		tracer:  otel.Tracer(telemetry.TracerJSONRPC),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d
}

// Handle adds a method to the table. It panics on an empty name, a nil
// handler or a duplicate registration.
func (d *Dispatcher) Handle(method string, handler HandlerFunc) {
	if method == "" {
		panic("jsonrpc: empty method name")
	}
	if handler == nil {
		panic("jsonrpc: nil handler for " + method)
	}
	if _, exists := d.methods[method]; exists {
		panic("jsonrpc: duplicate handler for " + method)
	}
	d.methods[method] = handler
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	out := make([]string, 0, len(d.methods))
	for method := range d.methods {
		out = append(out, method)
	}
	sort.Strings(out)
	return out
}

// Dispatch runs the handler for req and always returns a response.
// Handler panics are recovered and reported as internal errors.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) (resp *Response) {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "jsonrpc.dispatch",
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(telemetry.AttrRPCMethod, req.Method),
			attribute.String(telemetry.AttrRPCID, string(req.ID)),
		),
	)
	defer func() {
		code := 0
		if resp.Error != nil {
			code = resp.Error.Code
			span.SetStatus(codes.Error, resp.Error.Message)
		}
		span.SetAttributes(attribute.Int(telemetry.AttrRPCCode, code))
		span.End()
		d.metrics.RecordRPC(ctx, req.Method, code, time.Since(start))
	}()

	handler, ok := d.methods[req.Method]
	if !ok {
		d.logger.DebugContext(ctx, "jsonrpc.method_not_found", "method", req.Method)
		return NewErrorResponse(req.ID, MethodNotFound(req.Method))
	}

	result, err := d.invoke(ctx, handler, req)
	if err != nil {
		rpcErr := FromError(err)
		if rpcErr.Code == errors.RPCInternalError {
			span.RecordError(err)
			d.logger.ErrorContext(ctx, "jsonrpc.handler.error", "method", req.Method, "error", err)
		}
		return NewErrorResponse(req.ID, rpcErr)
	}
	return NewResult(req.ID, result)
}

func (d *Dispatcher) invoke(ctx context.Context, handler HandlerFunc, req *Request) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorContext(ctx, "jsonrpc.handler.panic",
				"method", req.Method,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result, err = nil, InternalError(fmt.Sprintf("handler panic: %v", r))
		}
	}()
	return handler(ctx, req.Params)
}

// DecodeParams unmarshals params into v. Missing or null params and shape
// mismatches are reported as invalid params.
func DecodeParams(params json.RawMessage, v any) *Error {
	if len(params) == 0 || string(params) == "null" {
		return InvalidParams("missing params")
	}
	if err := json.Unmarshal(params, v); err != nil {
		return InvalidParams("%v", err)
	}
	return nil
}
