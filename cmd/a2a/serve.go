// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jllopis/a2a/pkg/agent"
	"github.com/jllopis/a2a/pkg/audit"
	"github.com/jllopis/a2a/pkg/config"
	"github.com/jllopis/a2a/pkg/discovery"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/telemetry"
)

// builtinActions are served by the echo agent.
var builtinActions = []string{"echo", "time", "sleep"}

// echoHandler implements the built-in agent:
//
//	echo   returns the input unchanged
//	time   returns {"now": RFC 3339 timestamp}
//	sleep  waits input.duration (Go duration) or until cancelled
func echoHandler(now func() time.Time) agent.TaskHandler {
	return func(ctx context.Context, action string, input protocol.Payload, sender string) (protocol.Payload, error) {
		switch action {
		case "echo":
			return input, nil
		case "time":
			return protocol.Payload{"now": now().UTC().Format(time.RFC3339)}, nil
		case "sleep":
			raw, _ := input["duration"].(string)
			d, err := time.ParseDuration(raw)
			if err != nil {
				return protocol.Payload{"error": fmt.Sprintf("invalid duration %q", raw)}, nil
			}
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-timer.C:
				return protocol.Payload{"slept": d.String()}, nil
			}
		default:
			return protocol.Payload{"error": fmt.Sprintf("unknown action %q", action)}, nil
		}
	}
}

func (a *app) runServe(ctx context.Context, args []string) error {
	cfg := a.cfg.Agent
	fs := newFlagSet("serve")
	fs.StringVar(&cfg.ID, "id", cfg.ID, "Agent id (agent.id)")
	fs.StringVar(&cfg.Name, "name", cfg.Name, "Display name (agent.name)")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address (agent.addr)")
	fs.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "Advertised endpoint (agent.endpoint)")
	fs.DurationVar(&cfg.TaskTimeout, "task-timeout", cfg.TaskTimeout, "Per-task deadline (agent.task_timeout)")
	fs.DurationVar(&cfg.Heartbeat, "heartbeat", cfg.Heartbeat, "Re-register interval (agent.heartbeat)")
	noRegister := fs.Bool("no-register", !cfg.Register, "Do not register with the directory")
	var caps multiFlag
	fs.Var(&caps, "capability", "Capability (repeatable, comma separated)")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("serve", err.Error())
	}
	if len(caps) > 0 {
		cfg.Capabilities = caps
	}
	cfg.Register = !*noRegister

	card, err := agentCard(cfg)
	if err != nil {
		return err
	}

	stopWatch, err := a.watchLogLevel(ctx)
	if err != nil {
		return err
	}
	defer stopWatch()

	journal, closeJournal, err := audit.Open(ctx, audit.Config{
		Driver:   a.cfg.Audit.Driver,
		DSN:      a.cfg.Audit.DSN,
		Capacity: a.cfg.Audit.Capacity,
	})
	if err != nil {
		return fmt.Errorf("open task journal: %w", err)
	}
	defer func() { _ = closeJournal() }()

	metrics, err := telemetry.NewProtocolMetrics(ctx)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	srv := agent.NewServer(card, echoHandler(time.Now),
		agent.WithTaskTimeout(cfg.TaskTimeout),
		agent.WithTaskJournal(journal),
		agent.WithLogger(a.logger),
		agent.WithMetrics(metrics),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx, cfg.Addr)
	})
	if cfg.Register {
		dir := a.directory()
		params := protocol.RegisterParams{
			AgentID:      card.AgentID,
			Name:         card.Name,
			Capabilities: card.Capabilities,
			Endpoint:     card.Endpoint,
		}
		g.Go(func() error {
			// Without a heartbeat a failed first registration is fatal.
			return discovery.KeepRegistered(ctx, dir, params, cfg.Heartbeat, a.logger)
		})
	}
	return g.Wait()
}

// agentCard fills in defaults: name from id, the built-in actions as
// capabilities, and an endpoint derived from the listen address.
func agentCard(cfg config.AgentConfig) (protocol.AgentRecord, error) {
	if strings.TrimSpace(cfg.ID) == "" {
		return protocol.AgentRecord{}, NewInvalidArgumentError("--id", "agent id is required (--id or agent.id)")
	}
	card := protocol.AgentRecord{
		AgentID:      cfg.ID,
		Name:         cfg.Name,
		Capabilities: cfg.Capabilities,
		Endpoint:     cfg.Endpoint,
	}
	if card.Name == "" {
		card.Name = cfg.ID
	}
	if len(card.Capabilities) == 0 {
		card.Capabilities = append([]string{}, builtinActions...)
	}
	if card.Endpoint == "" {
		card.Endpoint = localEndpoint(cfg.Addr)
	}
	return card, nil
}

func localEndpoint(addr string) string {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	return "http://" + host + "/a2a"
}
