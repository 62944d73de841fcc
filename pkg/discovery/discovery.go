// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package discovery resolves agents from several sources: peers listed in
// configuration, agents publishing a well-known record, and a directory.
package discovery

import (
	"context"
	"errors"
	"sort"
	"strings"

	a2aerrors "github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/registry"
)

// Provider lists agent records from one source.
type Provider interface {
	List(ctx context.Context) ([]protocol.AgentRecord, error)
}

// Resolver aggregates providers in priority order.
type Resolver struct {
	providers []Provider
}

// NewResolver creates a resolver with providers in order of priority.
func NewResolver(providers ...Provider) (*Resolver, error) {
	filtered := make([]Provider, 0, len(providers))
	for _, provider := range providers {
		if provider == nil {
			continue
		}
		filtered = append(filtered, provider)
	}
	if len(filtered) == 0 {
		return nil, errors.New("no discovery providers configured")
	}
	return &Resolver{providers: filtered}, nil
}

// Resolve returns every record in provider order, deduped by agent id.
// The first provider to report an id wins.
func (r *Resolver) Resolve(ctx context.Context) ([]protocol.AgentRecord, error) {
	if r == nil {
		return nil, errors.New("resolver is nil")
	}
	out := make([]protocol.AgentRecord, 0)
	seen := map[string]struct{}{}
	for _, provider := range r.providers {
		entries, err := provider.List(ctx)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			key := normalizeKey(entry.AgentID)
			if key == "" {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, entry)
		}
	}
	return out, nil
}

// Discover returns resolved records declaring at least one wanted capability.
// An empty wanted list matches nothing.
func (r *Resolver) Discover(ctx context.Context, wanted []string) ([]protocol.AgentRecord, error) {
	all, err := r.Resolve(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]protocol.AgentRecord, 0)
	for _, record := range all {
		if record.HasAny(wanted) {
			out = append(out, record)
		}
	}
	return out, nil
}

// Lookup returns the resolved record for agentID or registry.ErrAgentNotFound.
func (r *Resolver) Lookup(ctx context.Context, agentID string) (protocol.AgentRecord, error) {
	all, err := r.Resolve(ctx)
	if err != nil {
		return protocol.AgentRecord{}, err
	}
	key := normalizeKey(agentID)
	for _, record := range all {
		if normalizeKey(record.AgentID) == key {
			return record, nil
		}
	}
	return protocol.AgentRecord{}, a2aerrors.New(a2aerrors.CodeNotFound, registry.ErrAgentNotFound.Message, nil).
		WithContext("agent_id", agentID)
}

// ProviderOrder returns the configured provider order or defaults.
func ProviderOrder(order []string) []string {
	if len(order) == 0 {
		return []string{"config", "well_known", "directory"}
	}
	out := make([]string, 0, len(order))
	seen := map[string]struct{}{}
	for _, item := range order {
		item = strings.ToLower(strings.TrimSpace(item))
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	if len(out) == 0 {
		return []string{"config", "well_known", "directory"}
	}
	return out
}

// Agent ids compare exactly; only surrounding space is ignored.
func normalizeKey(agentID string) string {
	return strings.TrimSpace(agentID)
}

// SortByID sorts records by agent id and then endpoint.
func SortByID(records []protocol.AgentRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].AgentID == records[j].AgentID {
			return records[i].Endpoint < records[j].Endpoint
		}
		return records[i].AgentID < records[j].AgentID
	})
}
