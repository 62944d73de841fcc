// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/jllopis/a2a/pkg/errors"
)

// MeterName is the instrumentation scope of the protocol metrics.
const MeterName = "a2a/protocol"

// ProtocolMetrics tracks RPC traffic, task outcomes and registry size.
// A nil *ProtocolMetrics is valid and records nothing.
type ProtocolMetrics struct {
	meter metric.Meter

	// rpcCounter counts dispatched calls by method and result code
	rpcCounter metric.Int64Counter

	// rpcDuration records dispatch latency in milliseconds
	rpcDuration metric.Float64Histogram

	// taskCounter counts executed tasks by terminal status
	taskCounter metric.Int64Counter

	// errorCounter counts errors by code and component
	errorCounter metric.Int64Counter

	// prunedCounter counts registry records dropped by freshness sweeps
	prunedCounter metric.Int64Counter

	// agentsGauge reports the number of registered agents
	agentsGauge metric.Int64ObservableGauge
}

// NewProtocolMetrics creates protocol metrics on the global meter provider.
func NewProtocolMetrics(ctx context.Context) (*ProtocolMetrics, error) {
	return NewProtocolMetricsWithMeter(otel.Meter(MeterName))
}

// NewProtocolMetricsWithMeter creates protocol metrics on the given meter.
func NewProtocolMetricsWithMeter(meter metric.Meter) (*ProtocolMetrics, error) {
	rpcCounter, err := meter.Int64Counter(
		"a2a.rpc.requests",
		metric.WithDescription("JSON-RPC calls by method and result code"),
	)
	if err != nil {
		return nil, err
	}

	rpcDuration, err := meter.Float64Histogram(
		"a2a.rpc.duration_ms",
		metric.WithDescription("JSON-RPC dispatch latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	taskCounter, err := meter.Int64Counter(
		"a2a.tasks",
		metric.WithDescription("Executed tasks by terminal status"),
	)
	if err != nil {
		return nil, err
	}

	errorCounter, err := meter.Int64Counter(
		"a2a.errors.total",
		metric.WithDescription("Total errors by code and component"),
	)
	if err != nil {
		return nil, err
	}

	prunedCounter, err := meter.Int64Counter(
		"a2a.registry.pruned",
		metric.WithDescription("Registry records removed by freshness sweeps"),
	)
	if err != nil {
		return nil, err
	}

	agentsGauge, err := meter.Int64ObservableGauge(
		"a2a.registry.agents",
		metric.WithDescription("Registered agents"),
	)
	if err != nil {
		return nil, err
	}

	return &ProtocolMetrics{
		meter:         meter,
		rpcCounter:    rpcCounter,
		rpcDuration:   rpcDuration,
		taskCounter:   taskCounter,
		errorCounter:  errorCounter,
		prunedCounter: prunedCounter,
		agentsGauge:   agentsGauge,
	}, nil
}

// RecordRPC records one dispatched call. code is 0 on success.
func (pm *ProtocolMetrics) RecordRPC(ctx context.Context, method string, code int, elapsed time.Duration) {
	if pm == nil {
		return
	}
	attrs := metric.WithAttributes(RPCAttributes(method, code)...)
	pm.rpcCounter.Add(ctx, 1, attrs)
	pm.rpcDuration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
}

// RecordTask increments the task counter for a terminal status.
func (pm *ProtocolMetrics) RecordTask(ctx context.Context, status string) {
	if pm == nil {
		return
	}
	pm.taskCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(AttrTaskStatus, status)))
}

// RecordError increments the error counter for the given error and component.
func (pm *ProtocolMetrics) RecordError(ctx context.Context, err error, component string) {
	if pm == nil || err == nil {
		return
	}
	code := "UNKNOWN"
	recoverable := "unknown"
	if e := errors.As(err); e != nil && e.Code != errors.CodeInternal {
		code = string(e.Code)
		recoverable = e.RecoverableString()
	}
	pm.errorCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String(AttrErrorCode, code),
			attribute.String(AttrComponent, component),
			attribute.String("recoverable", recoverable),
		),
	)
}

// RecordPruned adds n to the pruned-records counter.
func (pm *ProtocolMetrics) RecordPruned(ctx context.Context, n int) {
	if pm == nil || n <= 0 {
		return
	}
	pm.prunedCounter.Add(ctx, int64(n))
}

// ObserveAgents reports count() as the registry size on every collection.
func (pm *ProtocolMetrics) ObserveAgents(count func() int) (metric.Registration, error) {
	if pm == nil || count == nil {
		return nil, nil
	}
	return pm.meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		o.ObserveInt64(pm.agentsGauge, int64(count()))
		return nil
	}, pm.agentsGauge)
}
