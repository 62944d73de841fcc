// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"

	"github.com/jllopis/a2a/pkg/client"
	"github.com/jllopis/a2a/pkg/discovery"
	"github.com/jllopis/a2a/pkg/protocol"
)

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func (a *app) runRegister(ctx context.Context, args []string) error {
	fs := newFlagSet("register")
	id := fs.String("id", "", "Agent id")
	name := fs.String("name", "", "Display name")
	endpoint := fs.String("endpoint", "", "JSON-RPC endpoint of the agent")
	var caps multiFlag
	fs.Var(&caps, "capability", "Capability (repeatable, comma separated)")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("register", err.Error())
	}
	if fs.NArg() > 0 {
		return NewInvalidArgumentError(fs.Arg(0), "register takes no positional arguments")
	}

	params := protocol.RegisterParams{
		AgentID:      *id,
		Name:         *name,
		Capabilities: append([]string{}, caps...),
		Endpoint:     *endpoint,
	}
	result, err := a.directory().Register(ctx, params)
	if err != nil {
		return err
	}
	return a.render(result, func(p *printer) {
		p.row("STATUS", "AGENT_ID")
		p.row(result.Status, result.AgentID)
	})
}

func (a *app) runDiscover(ctx context.Context, args []string) error {
	fs := newFlagSet("discover")
	one := fs.Bool("one", false, "Return only the first match")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("discover", err.Error())
	}
	var caps []string
	for _, arg := range fs.Args() {
		caps = append(caps, splitList(arg)...)
	}
	if len(caps) == 0 {
		return NewInvalidArgumentError("discover", "at least one capability is required")
	}

	dir := a.directory()
	if *one {
		agent, err := dir.DiscoverOne(ctx, caps)
		if err != nil {
			return err
		}
		return a.renderAgents([]protocol.AgentRecord{agent})
	}
	agents, err := dir.Discover(ctx, caps)
	if err != nil {
		return err
	}
	return a.renderAgents(agents)
}

func (a *app) runList(ctx context.Context) error {
	agents, err := a.directory().List(ctx)
	if err != nil {
		return err
	}
	return a.renderAgents(agents)
}

func (a *app) runGet(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return NewInvalidArgumentError("get", "usage: a2a get <agent-id>")
	}
	agent, err := a.directory().Get(ctx, args[0])
	if err != nil {
		return err
	}
	return a.render(agent, func(p *printer) {
		p.agentHeader()
		p.agent(agent)
	})
}

func (a *app) runSend(ctx context.Context, args []string) error {
	fs := newFlagSet("send")
	rawInput := fs.String("input", "{}", "Task input as a JSON object")
	sender := fs.String("sender", "", "Sender id reported to the agent")
	endpoint := fs.String("endpoint", "", "Send straight to this endpoint instead of resolving an agent id")
	taskID := fs.String("task-id", "", "Task id (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return NewInvalidArgumentError("send", err.Error())
	}

	var input protocol.Payload
	if err := json.Unmarshal([]byte(*rawInput), &input); err != nil || input == nil {
		return NewInvalidArgumentError("--input", "input must be a JSON object")
	}
	if *sender == "" {
		*sender = a.cfg.Agent.ID
	}
	if *sender == "" {
		*sender = "a2a-cli"
	}

	requester := client.NewRequester(a.directory(), *sender, a.clientOptions()...)
	var (
		result *protocol.TaskResult
		err    error
	)
	switch {
	case *endpoint != "" && fs.NArg() == 1:
		result, err = requester.SendTaskTo(ctx, *endpoint, protocol.TaskRequest{
			TaskID: *taskID,
			Action: fs.Arg(0),
			Input:  input,
		})
	case *endpoint == "" && fs.NArg() == 2:
		result, err = requester.SendTask(ctx, fs.Arg(0), fs.Arg(1), input)
	default:
		return NewInvalidArgumentError("send", "usage: a2a send [--endpoint <url>] <agent-id> <action>")
	}
	if result != nil {
		if renderErr := a.renderTask(*result); renderErr != nil {
			return renderErr
		}
	}
	return err
}

func (a *app) runResolve(ctx context.Context, args []string) error {
	var caps []string
	for _, arg := range args {
		caps = append(caps, splitList(arg)...)
	}
	var dir *client.Directory
	if a.directoryURL() != "" {
		dir = a.directory()
	}
	resolver, err := discovery.NewResolver(discovery.BuildProviders(a.cfg, dir, a.logger, a.clientOptions()...)...)
	if err != nil {
		return NewInvalidArgumentError("discovery.order", err.Error())
	}

	var agents []protocol.AgentRecord
	if len(caps) == 0 {
		agents, err = resolver.Resolve(ctx)
	} else {
		agents, err = resolver.Discover(ctx, caps)
	}
	if err != nil {
		return err
	}
	return a.renderAgents(agents)
}

func (a *app) renderAgents(agents []protocol.AgentRecord) error {
	return a.render(protocol.DiscoverResult{Agents: agents}, func(p *printer) {
		p.agentHeader()
		for _, agent := range agents {
			p.agent(agent)
		}
	})
}

func (a *app) renderTask(result protocol.TaskResult) error {
	return a.render(result, func(p *printer) {
		p.row("TASK_ID", "STATUS")
		p.row(result.TaskID, p.status(result.Status))
		if len(result.Output) > 0 {
			p.flush()
			data, err := json.MarshalIndent(result.Output, "", "  ")
			if err != nil {
				fmt.Fprintf(p.out, "output: %v\n", err)
				return
			}
			fmt.Fprintf(p.out, "%s\n", data)
		}
	})
}
