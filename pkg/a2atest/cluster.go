// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package a2atest

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/jllopis/a2a/pkg/agent"
	"github.com/jllopis/a2a/pkg/client"
	"github.com/jllopis/a2a/pkg/directory"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/registry"
)

// Cluster is a directory and any number of agents served over httptest.
// Everything is closed when the test ends.
type Cluster struct {
	t        testing.TB
	Registry *registry.Registry
	URL      string
	agents   map[string]*agent.Server
}

// NewCluster starts a directory backed by a registry built with opts.
func NewCluster(t testing.TB, opts ...registry.Option) *Cluster {
	t.Helper()
	reg := registry.New(opts...)
	ts := httptest.NewServer(directory.NewServer(reg).Handler())
	t.Cleanup(ts.Close)
	return &Cluster{
		t:        t,
		Registry: reg,
		URL:      ts.URL,
		agents:   map[string]*agent.Server{},
	}
}

// Directory returns a client for the cluster's directory.
func (c *Cluster) Directory(opts ...client.Option) *client.Directory {
	return client.NewDirectory(c.URL, opts...)
}

// Requester returns a requester that resolves targets through the directory.
func (c *Cluster) Requester(sender string, opts ...client.Option) *client.Requester {
	return client.NewRequester(c.Directory(opts...), sender, opts...)
}

// StartAgent serves handler as agent id with the given capabilities and
// registers it. The returned record carries the live endpoint.
func (c *Cluster) StartAgent(id string, capabilities []string, handler agent.TaskHandler, opts ...agent.ServerOption) protocol.AgentRecord {
	c.t.Helper()
	ts := httptest.NewUnstartedServer(nil)
	card := protocol.AgentRecord{
		AgentID:      id,
		Name:         id,
		Capabilities: capabilities,
		Endpoint:     "http://" + ts.Listener.Addr().String() + "/a2a",
	}
	srv := agent.NewServer(card, handler, opts...)
	ts.Config.Handler = srv.Handler()
	ts.Start()
	c.t.Cleanup(ts.Close)

	if err := srv.Register(context.Background(), c.Directory()); err != nil {
		c.t.Fatalf("register %s: %v", id, err)
	}
	c.agents[id] = srv
	return srv.Card()
}

// Agent returns the server started for id, or nil.
func (c *Cluster) Agent(id string) *agent.Server {
	return c.agents[id]
}
