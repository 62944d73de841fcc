// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"

	"github.com/jllopis/a2a/pkg/protocol"
)

// Lister is the part of a directory client the resolver needs.
// *client.Directory implements it.
type Lister interface {
	List(ctx context.Context) ([]protocol.AgentRecord, error)
}

// DirectoryProvider lists the agents registered in a directory.
type DirectoryProvider struct {
	Directory Lister
}

// NewDirectoryProvider wraps a directory client.
func NewDirectoryProvider(directory Lister) *DirectoryProvider {
	return &DirectoryProvider{Directory: directory}
}

// List returns the directory's agents in registration order.
func (p *DirectoryProvider) List(ctx context.Context) ([]protocol.AgentRecord, error) {
	if p == nil || p.Directory == nil {
		return nil, nil
	}
	return p.Directory.List(ctx)
}
