// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package registry holds the directory's in-memory agent records and answers
// capability discovery. A Registry is safe for concurrent use.
package registry

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/telemetry"
)

// ErrAgentNotFound is returned by Get for unknown (or expired) agent ids.
// Match it with errors.Is; returned copies carry the agent id in their context.
var ErrAgentNotFound = errors.New(errors.CodeNotFound, "agent not found", nil)

type entry struct {
	record protocol.AgentRecord
	seq    uint64
}

// Registry maps agent ids to their latest registration.
//
// Listing and discovery return agents in first-registration order.
// Re-registering an id replaces every field but keeps its position.
type Registry struct {
	mu      sync.RWMutex
	agents  map[string]*entry
	nextSeq uint64

	clock  func() time.Time
	ttl    time.Duration
	logger *slog.Logger
	tracer trace.Tracer
}

// Option configures a Registry.
type Option func(*Registry)

// WithClock overrides the time source used for registeredAt.
func WithClock(clock func() time.Time) Option {
	return func(r *Registry) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// WithTTL hides records older than ttl from every read. Zero keeps records
// until the process exits.
func WithTTL(ttl time.Duration) Option {
	return func(r *Registry) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		agents: make(map[string]*entry),
		clock:  time.Now,
		logger: slog.Default(),
		tracer: otel.Tracer(telemetry.TracerRegistry),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// TTL returns the configured freshness window (zero when disabled).
func (r *Registry) TTL() time.Duration {
	return r.ttl
}

// Validate checks the required registration fields. Capabilities may be
// empty but not nil.
func Validate(params protocol.RegisterParams) error {
	var missing []string
	if strings.TrimSpace(params.AgentID) == "" {
		missing = append(missing, "agentId")
	}
	if strings.TrimSpace(params.Name) == "" {
		missing = append(missing, "name")
	}
	if params.Capabilities == nil {
		missing = append(missing, "capabilities")
	}
	if strings.TrimSpace(params.Endpoint) == "" {
		missing = append(missing, "endpoint")
	}
	if len(missing) > 0 {
		return errors.New(errors.CodeInvalidInput, "missing fields: "+strings.Join(missing, ", "), nil).
			WithContext("missing", missing)
	}
	return nil
}

// Register inserts or replaces the record for params.AgentID. The last
// writer wins; registeredAt is always taken from the registry clock.
func (r *Registry) Register(ctx context.Context, params protocol.RegisterParams) (protocol.AgentRecord, error) {
	ctx, span := r.tracer.Start(ctx, "registry.register",
		trace.WithAttributes(telemetry.AgentAttributes(params.AgentID, params.Name, params.Endpoint, params.Capabilities)...),
	)
	defer span.End()

	if err := Validate(params); err != nil {
		span.RecordError(err)
		return protocol.AgentRecord{}, err
	}

	record := protocol.AgentRecord{
		AgentID:      params.AgentID,
		Name:         params.Name,
		Capabilities: append(make([]string, 0, len(params.Capabilities)), params.Capabilities...),
		Endpoint:     params.Endpoint,
		RegisteredAt: r.clock().UTC(),
	}

	r.mu.Lock()
	existing, replaced := r.agents[params.AgentID]
	if replaced {
		existing.record = record
	} else {
		r.nextSeq++
		r.agents[params.AgentID] = &entry{record: record, seq: r.nextSeq}
	}
	total := len(r.agents)
	r.mu.Unlock()

	span.SetAttributes(attribute.Bool("replaced", replaced))
	r.logger.InfoContext(ctx, "registry.register",
		slog.String("agent_id", record.AgentID),
		slog.String("name", record.Name),
		slog.Any("capabilities", record.Capabilities),
		slog.String("endpoint", record.Endpoint),
		slog.Bool("replaced", replaced),
		slog.Int("total", total),
	)
	return record.Clone(), nil
}

// Discover returns every agent declaring at least one wanted capability,
// compared by exact string equality. An empty wanted list matches nothing.
// The result is never nil.
func (r *Registry) Discover(ctx context.Context, wanted []string) []protocol.AgentRecord {
	ctx, span := r.tracer.Start(ctx, "registry.discover",
		trace.WithAttributes(attribute.StringSlice(telemetry.AttrCapabilities, wanted)),
	)
	defer span.End()

	out := []protocol.AgentRecord{}
	if len(wanted) > 0 {
		out = r.snapshot(func(rec protocol.AgentRecord) bool {
			return rec.HasAny(wanted)
		})
	}

	span.SetAttributes(attribute.Int(telemetry.AttrRegistryMatches, len(out)))
	r.logger.DebugContext(ctx, "registry.discover",
		slog.Any("capabilities", wanted),
		slog.Int("matches", len(out)),
	)
	return out
}

// Get returns the record for id, or ErrAgentNotFound.
func (r *Registry) Get(ctx context.Context, id string) (protocol.AgentRecord, error) {
	now := r.clock()
	r.mu.RLock()
	e, ok := r.agents[id]
	var record protocol.AgentRecord
	if ok && r.fresh(e, now) {
		record = e.record.Clone()
	} else {
		ok = false
	}
	r.mu.RUnlock()

	if !ok {
		return protocol.AgentRecord{}, errors.New(ErrAgentNotFound.Code, ErrAgentNotFound.Message, nil).
			WithContext("agent_id", id)
	}
	return record, nil
}

// List returns every registered agent. The result is never nil.
func (r *Registry) List(ctx context.Context) []protocol.AgentRecord {
	return r.snapshot(nil)
}

// Len returns the number of stored records, including expired ones not yet pruned.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}

// Prune removes records older than the TTL and returns how many were dropped.
// It is a no-op when no TTL is configured.
func (r *Registry) Prune(ctx context.Context) int {
	if r.ttl <= 0 {
		return 0
	}
	now := r.clock()
	var removed []string
	r.mu.Lock()
	for id, e := range r.agents {
		if !r.fresh(e, now) {
			delete(r.agents, id)
			removed = append(removed, id)
		}
	}
	r.mu.Unlock()

	if len(removed) > 0 {
		sort.Strings(removed)
		r.logger.InfoContext(ctx, "registry.prune",
			slog.Int("removed", len(removed)),
			slog.Any("agent_ids", removed),
		)
	}
	return len(removed)
}

// snapshot copies the fresh records accepted by keep, in insertion order.
func (r *Registry) snapshot(keep func(protocol.AgentRecord) bool) []protocol.AgentRecord {
	now := r.clock()
	r.mu.RLock()
	entries := make([]*entry, 0, len(r.agents))
	for _, e := range r.agents {
		if !r.fresh(e, now) {
			continue
		}
		if keep != nil && !keep(e.record) {
			continue
		}
		entries = append(entries, &entry{record: e.record.Clone(), seq: e.seq})
	}
	r.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]protocol.AgentRecord, len(entries))
	for i, e := range entries {
		out[i] = e.record
	}
	return out
}

func (r *Registry) fresh(e *entry, now time.Time) bool {
	return r.ttl <= 0 || now.Sub(e.record.RegisteredAt) <= r.ttl
}
