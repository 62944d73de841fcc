// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"log/slog"
	"strings"

	"github.com/jllopis/a2a/pkg/client"
	"github.com/jllopis/a2a/pkg/config"
)

// BuildProviders builds providers in the order of cfg.Discovery.Order.
// The directory provider is included only when directory is non-nil.
func BuildProviders(cfg *config.Config, directory *client.Directory, logger *slog.Logger, opts ...client.Option) []Provider {
	order := ProviderOrder(nil)
	var wellKnown []string
	if cfg != nil {
		order = ProviderOrder(cfg.Discovery.Order)
		wellKnown = cfg.Discovery.WellKnown
	}
	providers := make([]Provider, 0, len(order))
	for _, item := range order {
		switch strings.ToLower(item) {
		case "config":
			providers = append(providers, NewConfigProvider(cfg))
		case "well_known", "well-known":
			provider := NewWellKnownProvider(wellKnown, opts...)
			provider.Logger = logger
			providers = append(providers, provider)
		case "directory", "registry":
			if directory != nil {
				providers = append(providers, NewDirectoryProvider(directory))
			}
		}
	}
	return providers
}
