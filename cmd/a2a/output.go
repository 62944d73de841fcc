// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/a2a/pkg/protocol"
)

const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

// render writes value as JSON or YAML, or calls table for the human format.
func (a *app) render(value any, table func(p *printer)) error {
	switch a.flags.Output {
	case outputJSON:
		return writeJSON(a.out, value)
	case outputYAML:
		return writeYAML(a.out, value)
	}
	p := newPrinter(a.out, a.flags.NoColor)
	table(p)
	p.flush()
	return nil
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}

// writeYAML goes through JSON so keys match the wire names and keep their order.
func writeYAML(w io.Writer, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	clearStyle(&node)
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func clearStyle(n *yaml.Node) {
	n.Style = 0
	for _, child := range n.Content {
		clearStyle(child)
	}
}

type printer struct {
	out     io.Writer
	buf     bytes.Buffer
	tw      *tabwriter.Writer
	header  *color.Color
	ok      *color.Color
	warn    *color.Color
	bad     *color.Color
	started bool
}

func newPrinter(out io.Writer, noColor bool) *printer {
	p := &printer{
		out:    out,
		header: color.New(color.FgCyan, color.Bold),
		ok:     color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		bad:    color.New(color.FgRed, color.Bold),
	}
	if noColor {
		for _, c := range []*color.Color{p.header, p.ok, p.warn, p.bad} {
			c.DisableColor()
		}
	}
	p.tw = tabwriter.NewWriter(&p.buf, 0, 4, 2, ' ', 0)
	return p
}

func (p *printer) row(cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(p.tw, strings.Join(cols, "\t"))
}

// flush writes buffered rows; the first row of the first table is the header.
func (p *printer) flush() {
	_ = p.tw.Flush()
	if p.buf.Len() == 0 {
		return
	}
	text := p.buf.String()
	p.buf.Reset()
	if !p.started {
		p.started = true
		header, rest, _ := strings.Cut(text, "\n")
		p.header.Fprintln(p.out, strings.TrimRight(header, " "))
		text = rest
	}
	_, _ = io.WriteString(p.out, text)
}

func (p *printer) agentHeader() {
	p.row("AGENT_ID", "NAME", "CAPABILITIES", "ENDPOINT", "REGISTERED")
}

func (p *printer) agent(agent protocol.AgentRecord) {
	p.row(agent.AgentID, agent.Name, strings.Join(agent.Capabilities, ","), agent.Endpoint, formatTime(agent.RegisteredAt))
}

func (p *printer) status(status protocol.TaskStatus) string {
	switch status {
	case protocol.TaskStatusCompleted:
		return p.ok.Sprint(status)
	case protocol.TaskStatusTimeout, protocol.TaskStatusCancelled:
		return p.warn.Sprint(status)
	case protocol.TaskStatusFailed:
		return p.bad.Sprint(status)
	default:
		return string(status)
	}
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.NewReplacer("\t", " ", "\n", " ").Replace(value)
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return "-"
	}
	return value.UTC().Format(time.RFC3339)
}
