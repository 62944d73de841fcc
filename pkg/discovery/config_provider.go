// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"strings"

	"github.com/jllopis/a2a/pkg/config"
	"github.com/jllopis/a2a/pkg/protocol"
)

// ConfigProvider lists peers declared in configuration.
type ConfigProvider struct {
	Entries []protocol.AgentRecord
}

// NewConfigProvider builds a provider from cfg.Peers. Peers without an id
// or endpoint are skipped.
func NewConfigProvider(cfg *config.Config) *ConfigProvider {
	provider := &ConfigProvider{}
	if cfg == nil {
		return provider
	}
	for _, peer := range cfg.Peers {
		record := protocol.AgentRecord{
			AgentID:      strings.TrimSpace(peer.ID),
			Name:         strings.TrimSpace(peer.Name),
			Capabilities: append([]string{}, peer.Capabilities...),
			Endpoint:     strings.TrimSpace(peer.Endpoint),
		}
		if record.AgentID == "" || record.Endpoint == "" {
			continue
		}
		if record.Name == "" {
			record.Name = record.AgentID
		}
		provider.Entries = append(provider.Entries, record)
	}
	return provider
}

// List returns configured peers.
func (p *ConfigProvider) List(_ context.Context) ([]protocol.AgentRecord, error) {
	if p == nil {
		return nil, nil
	}
	out := make([]protocol.AgentRecord, 0, len(p.Entries))
	for _, entry := range p.Entries {
		out = append(out, entry.Clone())
	}
	return out, nil
}
