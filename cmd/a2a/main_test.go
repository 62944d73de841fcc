// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/a2a/pkg/agent"
	"github.com/jllopis/a2a/pkg/client"
	"github.com/jllopis/a2a/pkg/config"
	"github.com/jllopis/a2a/pkg/directory"
	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/registry"
)

var fixedNow = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func newTestApp(t *testing.T, directoryURL, output string) (*app, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	flags := globalFlags{
		Directory: directoryURL,
		Output:    output,
		NoColor:   true,
		Timeout:   5 * time.Second,
	}
	var out bytes.Buffer
	return newApp(flags, cfg, &out, io.Discard), &out
}

func startDirectory(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(directory.NewServer(registry.New()).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func startEchoAgent(t *testing.T, id string) string {
	t.Helper()
	ts := httptest.NewUnstartedServer(nil)
	endpoint := "http://" + ts.Listener.Addr().String() + "/a2a"
	srv := agent.NewServer(protocol.AgentRecord{
		AgentID:      id,
		Name:         id,
		Capabilities: builtinActions,
		Endpoint:     endpoint,
	}, echoHandler(fixedNow), agent.WithTaskTimeout(200*time.Millisecond))
	ts.Config.Handler = srv.Handler()
	ts.Start()
	t.Cleanup(ts.Close)
	return endpoint
}

func register(t *testing.T, a *app, id, endpoint string, caps ...string) {
	t.Helper()
	args := []string{"register", "--id", id, "--name", strings.ToUpper(id), "--endpoint", endpoint}
	for _, c := range caps {
		args = append(args, "--capability", c)
	}
	if err := a.run(context.Background(), args); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func mustRun(t *testing.T, a *app, args ...string) {
	t.Helper()
	if err := a.run(context.Background(), args); err != nil {
		t.Fatalf("%v: %v", args, err)
	}
}

func decodeOutput(t *testing.T, out *bytes.Buffer, v any) {
	t.Helper()
	if err := json.Unmarshal(out.Bytes(), v); err != nil {
		t.Fatalf("decode %s: %v", out.String(), err)
	}
}

func expectContains(t *testing.T, got string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(got, want) {
			t.Errorf("expected %q in:\n%s", want, got)
		}
	}
}

func TestParseGlobalFlags(t *testing.T) {
	flags, rest, err := parseGlobalFlags([]string{
		"--config", "a.yaml", "--set=client.retries=2", "--directory", "http://dir:8000",
		"--timeout=3s", "-o", "yaml", "--no-color", "list", "--extra",
	})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !slices.Equal(flags.ConfigArgs, []string{"--config", "a.yaml", "--set", "client.retries=2"}) {
		t.Errorf("unexpected config args %v", flags.ConfigArgs)
	}
	if flags.Directory != "http://dir:8000" || flags.Timeout != 3*time.Second || flags.Output != outputYAML || !flags.NoColor {
		t.Errorf("unexpected flags %+v", flags)
	}
	if !slices.Equal(rest, []string{"list", "--extra"}) {
		t.Errorf("unexpected rest %v", rest)
	}

	flags, rest, err = parseGlobalFlags([]string{"--json", "--", "--get"})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if flags.Output != outputJSON || !slices.Equal(rest, []string{"--get"}) {
		t.Errorf("unexpected %+v %v", flags, rest)
	}
}

func TestParseGlobalFlagsErrors(t *testing.T) {
	for _, args := range [][]string{
		{"--timeout", "soon"},
		{"--output", "xml"},
		{"--directory"},
		{"--verbose"},
	} {
		if _, _, err := parseGlobalFlags(args); err == nil {
			t.Errorf("args %v: expected error", args)
		}
	}
}

func TestRegisterListGetDiscover(t *testing.T) {
	dirURL := startDirectory(t)
	a, out := newTestApp(t, dirURL, outputTable)

	register(t, a, "calc", "http://calc:9000/a2a", "add,multiply")
	expectContains(t, out.String(), "registered", "calc")

	out.Reset()
	a.flags.Output = outputJSON
	mustRun(t, a, "list")
	var listed protocol.DiscoverResult
	decodeOutput(t, out, &listed)
	if len(listed.Agents) != 1 || !slices.Equal(listed.Agents[0].Capabilities, []string{"add", "multiply"}) {
		t.Fatalf("unexpected list %+v", listed.Agents)
	}

	out.Reset()
	a.flags.Output = outputYAML
	mustRun(t, a, "get", "calc")
	yamlOut := out.String()
	expectContains(t, yamlOut, "agentId: calc")
	if strings.Index(yamlOut, "agentId") > strings.Index(yamlOut, "endpoint") {
		t.Errorf("yaml should keep field order:\n%s", yamlOut)
	}

	out.Reset()
	a.flags.Output = outputTable
	mustRun(t, a, "discover", "multiply", "divide")
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "AGENT_ID") || !strings.Contains(lines[1], "add,multiply") {
		t.Errorf("unexpected table:\n%s", out.String())
	}

	out.Reset()
	mustRun(t, a, "discover", "divide")
	if n := strings.Count(strings.TrimSpace(out.String()), "\n") + 1; n != 1 {
		t.Errorf("expected only the header, got %d lines", n)
	}

	if err := a.run(context.Background(), []string{"discover", "--one", "divide"}); !stderrors.Is(err, client.ErrNoMatch) {
		t.Errorf("expected ErrNoMatch, got %v", err)
	}
}

func TestRegisterInvalidParams(t *testing.T) {
	a, _ := newTestApp(t, startDirectory(t), outputTable)
	err := a.run(context.Background(), []string{"register", "--id", "calc"})
	if err == nil {
		t.Fatal("expected error")
	}

	cliErr := explain(err, a.directoryURL())
	if cliErr.Typed.Code != errors.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", cliErr.Typed.Code)
	}
	expectContains(t, cliErr.Hint, "a2a help")
}

func TestGetMissingAgent(t *testing.T) {
	a, _ := newTestApp(t, startDirectory(t), outputTable)
	err := a.run(context.Background(), []string{"get", "ghost"})
	if !errors.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	expectContains(t, explain(err, a.directoryURL()).Hint, "a2a list")
}

func TestSendEcho(t *testing.T) {
	dirURL := startDirectory(t)
	endpoint := startEchoAgent(t, "echo-1")
	a, out := newTestApp(t, dirURL, outputJSON)
	register(t, a, "echo-1", endpoint, "echo")
	out.Reset()

	mustRun(t, a, "send", "--input", `{"x":1,"id":12345678901234567890}`, "echo-1", "echo")
	var result protocol.TaskResult
	decodeOutput(t, out, &result)
	if result.Status != protocol.TaskStatusCompleted || result.TaskID == "" {
		t.Errorf("unexpected result %+v", result)
	}
	if result.Output["x"] != json.Number("1") || result.Output["id"] != json.Number("12345678901234567890") {
		t.Errorf("unexpected output %#v", result.Output)
	}
}

func TestSendDirectToEndpoint(t *testing.T) {
	endpoint := startEchoAgent(t, "echo-2")
	a, out := newTestApp(t, "http://127.0.0.1:1", outputTable)

	mustRun(t, a, "send", "--endpoint", endpoint, "--task-id", "t-7", "time")
	expectContains(t, out.String(), "t-7", "completed", "2026-03-01T12:00:00Z")
}

func TestSendUnknownActionFails(t *testing.T) {
	dirURL := startDirectory(t)
	endpoint := startEchoAgent(t, "echo-3")
	a, out := newTestApp(t, dirURL, outputTable)
	register(t, a, "echo-3", endpoint, "echo")
	out.Reset()

	err := a.run(context.Background(), []string{"send", "echo-3", "fly"})
	if err == nil {
		t.Fatal("expected error")
	}
	expectContains(t, out.String(), "failed")

	cliErr := explain(err, dirURL)
	if cliErr.Typed.Code != errors.CodeTaskFailed {
		t.Errorf("expected TASK_FAILED, got %s", cliErr.Typed.Code)
	}
	expectContains(t, cliErr.Error(), `unknown action "fly"`)
}

func TestSendTimeout(t *testing.T) {
	dirURL := startDirectory(t)
	endpoint := startEchoAgent(t, "echo-4")
	a, out := newTestApp(t, dirURL, outputTable)
	register(t, a, "echo-4", endpoint, "sleep")
	out.Reset()

	err := a.run(context.Background(), []string{"send", "--input", `{"duration":"2s"}`, "echo-4", "sleep"})
	if err == nil {
		t.Fatal("expected error")
	}
	expectContains(t, out.String(), "timeout")
	if code := explain(err, dirURL).Typed.Code; code != errors.CodeTimeout {
		t.Errorf("expected TIMEOUT, got %s", code)
	}
}

func TestSendUsageErrors(t *testing.T) {
	a, _ := newTestApp(t, "http://127.0.0.1:1", outputTable)
	for _, args := range [][]string{
		{"send", "only-one"},
		{"send", "--input", "[1,2]", "a", "b"},
		{"send", "--endpoint", "http://x/a2a", "a", "b"},
	} {
		err := a.run(context.Background(), args)
		if err == nil {
			t.Errorf("args %v: expected error", args)
			continue
		}
		if code := explain(err, "").Typed.Code; code != errors.CodeInvalidInput {
			t.Errorf("args %v: expected INVALID_INPUT, got %s", args, code)
		}
	}
}

func TestTransportErrorHint(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	dead := "http://" + ln.Addr().String()
	ln.Close()

	a, _ := newTestApp(t, dead, outputTable)
	err = a.run(context.Background(), []string{"list"})
	if err == nil {
		t.Fatal("expected error")
	}

	cliErr := explain(err, dead)
	if cliErr.Typed.Code != errors.CodeTransport {
		t.Errorf("expected TRANSPORT, got %s", cliErr.Typed.Code)
	}
	expectContains(t, cliErr.Hint, dead)
}

func TestUnknownCommand(t *testing.T) {
	a, _ := newTestApp(t, "", outputTable)
	if err := a.run(context.Background(), []string{"fly"}); err == nil {
		t.Error("expected error for unknown command")
	}
	if err := a.run(context.Background(), []string{"list", "extra"}); err == nil {
		t.Error("expected error for extra argument")
	}
}

func TestServeRegistersAndAnswers(t *testing.T) {
	dirURL := startDirectory(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	a, out := newTestApp(t, dirURL, outputJSON)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.run(ctx, []string{"serve", "--id", "echo-srv", "--addr", addr, "--heartbeat", "50ms"})
	}()

	dir := client.NewDirectory(dirURL)
	var rec protocol.AgentRecord
	deadline := time.Now().Add(5 * time.Second)
	for {
		if rec, err = dir.Get(context.Background(), "echo-srv"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent never registered: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	if rec.Endpoint != "http://"+addr+"/a2a" || !slices.Equal(rec.Capabilities, builtinActions) {
		t.Errorf("unexpected record %+v", rec)
	}

	deadline = time.Now().Add(5 * time.Second)
	for {
		out.Reset()
		if err = a.run(context.Background(), []string{"send", "--input", `{"ping":true}`, "echo-srv", "echo"}); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("agent never answered: %v", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	expectContains(t, out.String(), `"ping": true`)

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("serve: %v", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop after cancel")
	}
}

func TestServeRequiresID(t *testing.T) {
	a, _ := newTestApp(t, "", outputTable)
	a.cfg.Agent.ID = ""
	err := a.run(context.Background(), []string{"serve", "--no-register"})
	if err == nil {
		t.Fatal("expected error")
	}
	if code := explain(err, "").Typed.Code; code != errors.CodeInvalidInput {
		t.Errorf("expected INVALID_INPUT, got %s", code)
	}
}

func TestEchoHandler(t *testing.T) {
	h := echoHandler(fixedNow)
	ctx := context.Background()

	out, err := h(ctx, "echo", protocol.Payload{"a": "b"}, "s")
	if err != nil || len(out) != 1 || out["a"] != "b" {
		t.Errorf("echo = %v, %v", out, err)
	}

	out, err = h(ctx, "time", nil, "s")
	if err != nil || out["now"] != "2026-03-01T12:00:00Z" {
		t.Errorf("time = %v, %v", out, err)
	}

	out, err = h(ctx, "sleep", protocol.Payload{"duration": "1ms"}, "s")
	if err != nil || out["slept"] != "1ms" {
		t.Errorf("sleep = %v, %v", out, err)
	}

	out, err = h(ctx, "sleep", protocol.Payload{"duration": "later"}, "s")
	if _, failed := out.ErrorMessage(); err != nil || !failed {
		t.Errorf("expected soft failure for bad duration, got %v, %v", out, err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := h(cancelled, "sleep", protocol.Payload{"duration": "1h"}, "s"); !stderrors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestAgentCardDefaults(t *testing.T) {
	card, err := agentCard(config.AgentConfig{ID: "calc", Addr: ":8001"})
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	if card.Name != "calc" || card.Endpoint != "http://localhost:8001/a2a" || !slices.Equal(card.Capabilities, builtinActions) {
		t.Errorf("unexpected defaults %+v", card)
	}

	card, err = agentCard(config.AgentConfig{ID: "calc", Endpoint: "https://calc.example/a2a", Capabilities: []string{"add"}})
	if err != nil {
		t.Fatalf("card: %v", err)
	}
	if card.Endpoint != "https://calc.example/a2a" || !slices.Equal(card.Capabilities, []string{"add"}) {
		t.Errorf("unexpected card %+v", card)
	}
}

func TestCLIErrorPrint(t *testing.T) {
	cliErr := NewCLIError(errors.New(errors.CodeNotFound, "agent not found", nil), "run 'a2a list' to see registered agents")

	var text bytes.Buffer
	cliErr.PrintError(&text, false)
	if want := "Error [Not Found]: agent not found\n  Hint: run 'a2a list' to see registered agents\n"; text.String() != want {
		t.Errorf("got %q, want %q", text.String(), want)
	}

	var js bytes.Buffer
	cliErr.PrintError(&js, true)
	var decoded map[string]map[string]any
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded["error"]["code"] != "NOT_FOUND" || decoded["error"]["hint"] != "run 'a2a list' to see registered agents" {
		t.Errorf("unexpected json %v", decoded)
	}
}

func TestPrinterTable(t *testing.T) {
	var buf bytes.Buffer
	p := newPrinter(&buf, true)
	p.row("A", "LONGER")
	p.row("value", "")
	p.flush()
	if want := "A      LONGER\nvalue  -\n"; buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}

func TestResolveMergesSources(t *testing.T) {
	dirURL := startDirectory(t)
	endpoint := startEchoAgent(t, "echo-5")
	a, out := newTestApp(t, dirURL, outputJSON)
	register(t, a, "calc", "http://calc:9000/a2a", "add")

	a.cfg.Peers = []config.PeerConfig{{ID: "static", Capabilities: []string{"add"}, Endpoint: "http://static/a2a"}}
	a.cfg.Discovery.WellKnown = []string{strings.TrimSuffix(endpoint, "/a2a")}
	out.Reset()

	mustRun(t, a, "resolve")
	var all protocol.DiscoverResult
	decodeOutput(t, out, &all)
	ids := make([]string, 0, len(all.Agents))
	for _, record := range all.Agents {
		ids = append(ids, record.AgentID)
	}
	if want := []string{"static", "echo-5", "calc"}; !slices.Equal(ids, want) {
		t.Errorf("resolve order = %v, want %v", ids, want)
	}

	out.Reset()
	mustRun(t, a, "resolve", "add")
	var filtered protocol.DiscoverResult
	decodeOutput(t, out, &filtered)
	if len(filtered.Agents) != 2 {
		t.Errorf("expected 2 agents for add, got %d", len(filtered.Agents))
	}
}
