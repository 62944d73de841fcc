// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package registry

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/a2a/pkg/telemetry"
)

// Sweeper prunes expired records on a fixed interval.
type Sweeper struct {
	registry *Registry
	interval time.Duration
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *telemetry.ProtocolMetrics
	tracer   trace.Tracer
}

// SweeperOption configures a Sweeper.
type SweeperOption func(*Sweeper)

// WithSweepTimeout bounds each sweep.
func WithSweepTimeout(timeout time.Duration) SweeperOption {
	return func(s *Sweeper) {
		s.timeout = timeout
	}
}

// WithSweepLogger sets the sweeper logger.
func WithSweepLogger(logger *slog.Logger) SweeperOption {
	return func(s *Sweeper) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithSweepMetrics counts pruned records.
func WithSweepMetrics(metrics *telemetry.ProtocolMetrics) SweeperOption {
	return func(s *Sweeper) {
		s.metrics = metrics
	}
}

// NewSweeper creates a sweeper for registry. Sweeping is disabled when
// interval is zero or the registry has no TTL.
func NewSweeper(registry *Registry, interval time.Duration, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		registry: registry,
		interval: interval,
		logger:   slog.Default(),
		tracer:   otel.Tracer(telemetry.TracerRegistry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Enabled reports whether Run will sweep.
func (s *Sweeper) Enabled() bool {
	return s.interval > 0 && s.registry != nil && s.registry.TTL() > 0
}

// Run sweeps until ctx is done. It returns nil immediately when disabled.
func (s *Sweeper) Run(ctx context.Context) error {
	if !s.Enabled() {
		s.logger.Info("registry.sweeper.disabled",
			slog.Duration("interval", s.interval),
		)
		return nil
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.logger.Info("registry.sweeper.start",
		slog.Duration("interval", s.interval),
		slog.Duration("ttl", s.registry.TTL()),
	)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("registry.sweeper.stop")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single prune and returns the number of removed records.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	start := time.Now()
	sweepCtx := ctx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		sweepCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	sweepCtx, span := s.tracer.Start(sweepCtx, "registry.sweep",
		trace.WithAttributes(attribute.String("ttl", s.registry.TTL().String())),
	)
	defer span.End()

	removed := s.registry.Prune(sweepCtx)
	durationMs := float64(time.Since(start).Microseconds()) / 1000
	span.SetAttributes(
		attribute.Int(telemetry.AttrRegistryPruned, removed),
		attribute.Float64("duration_ms", durationMs),
	)
	s.metrics.RecordPruned(ctx, removed)
	s.logger.DebugContext(sweepCtx, "registry.sweep.complete",
		slog.Int("removed", removed),
		slog.Int("remaining", s.registry.Len()),
		slog.Float64("duration_ms", durationMs),
	)
	return removed
}
