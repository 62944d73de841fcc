// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/jsonrpc"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/registry"
)

// ErrNoMatch is returned by DiscoverOne when no agent has the capabilities.
var ErrNoMatch = errors.New(errors.CodeNotFound, "no agent matches the requested capabilities", nil)

// Directory is a client for a directory server.
type Directory struct {
	baseURL string
	rpc     *jsonrpc.Client
	opts    options
}

// NewDirectory creates a client for the directory at baseURL.
func NewDirectory(baseURL string, opts ...Option) *Directory {
	o := newOptions(opts)
	return &Directory{
		baseURL: baseURL,
		rpc:     o.rpcClient(),
		opts:    o,
	}
}

// BaseURL returns the directory address.
func (d *Directory) BaseURL() string {
	return d.baseURL
}

// Register announces an agent. Missing fields come back as a -32602 *jsonrpc.Error.
func (d *Directory) Register(ctx context.Context, params protocol.RegisterParams) (protocol.RegisterResult, error) {
	var result protocol.RegisterResult
	err := d.opts.do(ctx, protocol.MethodRegister, func(ctx context.Context) error {
		return d.rpc.Call(ctx, joinURL(d.baseURL, "/a2a"), protocol.MethodRegister, params, &result)
	})
	return result, err
}

// Discover returns the agents declaring any of capabilities, in registration order.
// A nil or empty list matches nothing.
func (d *Directory) Discover(ctx context.Context, capabilities []string) ([]protocol.AgentRecord, error) {
	if capabilities == nil {
		capabilities = []string{}
	}
	var result protocol.DiscoverResult
	err := d.opts.do(ctx, protocol.MethodDiscover, func(ctx context.Context) error {
		return d.rpc.Call(ctx, joinURL(d.baseURL, "/a2a"), protocol.MethodDiscover,
			protocol.DiscoverParams{Capabilities: capabilities}, &result)
	})
	if err != nil {
		return nil, err
	}
	if result.Agents == nil {
		result.Agents = []protocol.AgentRecord{}
	}
	return result.Agents, nil
}

// DiscoverOne returns the first agent declaring any of capabilities.
func (d *Directory) DiscoverOne(ctx context.Context, capabilities []string) (protocol.AgentRecord, error) {
	agents, err := d.Discover(ctx, capabilities)
	if err != nil {
		return protocol.AgentRecord{}, err
	}
	if len(agents) == 0 {
		return protocol.AgentRecord{}, errors.New(errors.CodeNotFound, ErrNoMatch.Message, nil).
			WithContext("capabilities", capabilities)
	}
	return agents[0], nil
}

// List returns every registered agent.
func (d *Directory) List(ctx context.Context) ([]protocol.AgentRecord, error) {
	var result protocol.DiscoverResult
	if err := d.get(ctx, "/a2a/agents", &result); err != nil {
		return nil, err
	}
	if result.Agents == nil {
		result.Agents = []protocol.AgentRecord{}
	}
	return result.Agents, nil
}

// Get returns one agent. An unknown id yields a NOT_FOUND error matching
// registry.ErrAgentNotFound, never a transport error.
func (d *Directory) Get(ctx context.Context, agentID string) (protocol.AgentRecord, error) {
	var record protocol.AgentRecord
	err := d.get(ctx, "/a2a/agents/"+url.PathEscape(agentID), &record)
	if err != nil {
		if errors.IsTransport(err) && errors.As(err).StatusCode == http.StatusNotFound {
			return protocol.AgentRecord{}, errors.New(errors.CodeNotFound, registry.ErrAgentNotFound.Message, nil).
				WithContext("agent_id", agentID)
		}
		return protocol.AgentRecord{}, err
	}
	return record, nil
}

func (d *Directory) get(ctx context.Context, path string, out any) error {
	return getJSON(ctx, d.opts, joinURL(d.baseURL, path), "GET "+path, out)
}

// FetchCard reads the record an agent publishes at baseURL + protocol.WellKnownPath.
func FetchCard(ctx context.Context, baseURL string, opts ...Option) (protocol.AgentRecord, error) {
	var card protocol.AgentRecord
	err := getJSON(ctx, newOptions(opts), joinURL(baseURL, protocol.WellKnownPath), "GET "+protocol.WellKnownPath, &card)
	return card, err
}

func getJSON(ctx context.Context, o options, endpoint, name string, out any) error {
	return o.do(ctx, name, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return errors.New(errors.CodeInvalidInput, "build request", err).WithContext("endpoint", endpoint)
		}
		req.Header.Set("Accept", "application/json")
		for key, value := range o.headers {
			req.Header.Set(key, value)
		}
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := o.httpClient.Do(req)
		if err != nil {
			return errors.Transport(0, fmt.Sprintf("GET %s", endpoint), err).
				WithContext("endpoint", endpoint).
				WithRecoverable(true)
		}
		defer resp.Body.Close()
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return jsonrpc.StatusError(resp, endpoint)
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.New(errors.CodeProtocol, "decode response", err).WithContext("endpoint", endpoint)
		}
		return nil
	})
}
