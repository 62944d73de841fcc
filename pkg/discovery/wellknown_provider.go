// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jllopis/a2a/pkg/client"
	"github.com/jllopis/a2a/pkg/protocol"
)

// WellKnownProvider reads the record each agent publishes at
// protocol.WellKnownPath.
type WellKnownProvider struct {
	BaseURLs []string
	Options  []client.Option
	Logger   *slog.Logger
}

// NewWellKnownProvider builds a provider for base URLs.
func NewWellKnownProvider(baseURLs []string, opts ...client.Option) *WellKnownProvider {
	clean := make([]string, 0, len(baseURLs))
	seen := map[string]struct{}{}
	for _, url := range baseURLs {
		url = strings.TrimRight(strings.TrimSpace(url), "/")
		if url == "" {
			continue
		}
		key := strings.ToLower(url)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		clean = append(clean, url)
	}
	return &WellKnownProvider{BaseURLs: clean, Options: opts}
}

// List fetches each record. Unreachable agents are logged and skipped.
func (p *WellKnownProvider) List(ctx context.Context) ([]protocol.AgentRecord, error) {
	if p == nil || len(p.BaseURLs) == 0 {
		return nil, nil
	}
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	out := make([]protocol.AgentRecord, 0, len(p.BaseURLs))
	for _, baseURL := range p.BaseURLs {
		card, err := client.FetchCard(ctx, baseURL, p.Options...)
		if err != nil {
			logger.WarnContext(ctx, "discovery.well_known.failed", "url", baseURL, "error", err)
			continue
		}
		out = append(out, card)
	}
	return out, nil
}
