// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads directory, agent and client settings.
//
// Precedence, lowest first: built-in defaults, the YAML file, an optional
// profile overlay (config.<profile>.yaml next to the file), A2A_ environment
// variables, and --set overrides.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides (A2A_DIRECTORY_ADDR -> directory.addr).
const EnvPrefix = "A2A_"

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Directory DirectoryConfig `koanf:"directory"`
	Agent     AgentConfig     `koanf:"agent"`
	Audit     AuditConfig     `koanf:"audit"`
	Client    ClientConfig    `koanf:"client"`
	Discovery DiscoveryConfig `koanf:"discovery"`
	Peers     []PeerConfig    `koanf:"peers"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type TelemetryConfig struct {
	Exporter           string `koanf:"exporter"` // none, stdout, otlp
	OTLPEndpoint       string `koanf:"otlp_endpoint"`
	OTLPInsecure       bool   `koanf:"otlp_insecure"`
	OTLPTimeoutSeconds int    `koanf:"otlp_timeout_seconds"`
}

type DirectoryConfig struct {
	Addr          string        `koanf:"addr"`
	URL           string        `koanf:"url"`
	TTL           time.Duration `koanf:"ttl"`
	SweepInterval time.Duration `koanf:"sweep_interval"`
	MaxBodyBytes  int64         `koanf:"max_body_bytes"`
}

type AgentConfig struct {
	ID           string        `koanf:"id"`
	Name         string        `koanf:"name"`
	Capabilities []string      `koanf:"capabilities"`
	Addr         string        `koanf:"addr"`
	Endpoint     string        `koanf:"endpoint"`
	DirectoryURL string        `koanf:"directory_url"`
	TaskTimeout  time.Duration `koanf:"task_timeout"`
	Register     bool          `koanf:"register"`

	// Heartbeat re-registers the agent periodically; pair it with directory.ttl.
	Heartbeat time.Duration `koanf:"heartbeat"`
}

type AuditConfig struct {
	Driver   string `koanf:"driver"` // memory, sqlite
	DSN      string `koanf:"dsn"`
	Capacity int    `koanf:"capacity"`
}

// DiscoveryConfig selects where the resolver looks for agents.
type DiscoveryConfig struct {
	Order     []string `koanf:"order"`      // config, well_known, directory
	WellKnown []string `koanf:"well_known"` // agent base URLs serving /.well-known/agent.json
}

// PeerConfig is an agent known without asking a directory.
type PeerConfig struct {
	ID           string   `koanf:"id"`
	Name         string   `koanf:"name"`
	Capabilities []string `koanf:"capabilities"`
	Endpoint     string   `koanf:"endpoint"`
}

type ClientConfig struct {
	Timeout time.Duration `koanf:"timeout"`
	Retries int           `koanf:"retries"`
}

var defaults = map[string]any{
	"log.level":                      "info",
	"log.format":                     "text",
	"telemetry.exporter":             "none",
	"telemetry.otlp_endpoint":        "localhost:4317",
	"telemetry.otlp_insecure":        true,
	"telemetry.otlp_timeout_seconds": 10,
	"directory.addr":                 ":8000",
	"directory.url":                  "http://localhost:8000",
	"directory.ttl":                  "0s",
	"directory.sweep_interval":       "30s",
	"directory.max_body_bytes":       1 << 20,
	"agent.addr":                     ":8001",
	"agent.capabilities":             []string{},
	"agent.task_timeout":             "0s",
	"agent.register":                 true,
	"agent.heartbeat":                "0s",
	"audit.driver":                   "memory",
	"audit.capacity":                 1000,
	"client.timeout":                 "0s",
	"client.retries":                 0,
	"discovery.order":                []string{"config", "well_known", "directory"},
}

// Load reads defaults, the file at path (optional) and the environment.
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile is Load plus the config.<profile>.yaml overlay.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI accepts --config, --profile and repeated --set key=value
// arguments. --set values that are JSON objects or arrays are decoded.
func LoadWithCLI(args []string) (*Config, error) {
	opts, sets, err := parseCLIOverrides(args)
	if err != nil {
		return nil, err
	}
	return load(opts.path, opts.profile, sets)
}

func load(path, profile string, sets []string) (*Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := k.Set(key, value); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if profile != "" {
			overlay := ProfilePath(path, profile)
			if _, err := os.Stat(overlay); err == nil {
				if err := k.Load(file.Provider(overlay), yaml.Parser()); err != nil {
					return nil, fmt.Errorf("load %s: %w", overlay, err)
				}
			}
		}
	}

	// A2A_AGENT_DIRECTORY_URL -> agent.directory_url
	if err := k.Load(env.ProviderWithValue(EnvPrefix, ".", envValue), nil); err != nil {
		return nil, err
	}

	for _, set := range sets {
		key, value, _ := strings.Cut(set, "=")
		if err := k.Set(strings.TrimSpace(key), overrideValue(value)); err != nil {
			return nil, fmt.Errorf("--set %s: %w", key, err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ProfilePath returns the overlay file for profile: config.yaml -> config.<profile>.yaml.
func ProfilePath(path, profile string) string {
	ext := filepath.Ext(path)
	return strings.TrimSuffix(path, ext) + "." + profile + ext
}

// envKey maps A2A_SECTION_SOME_KEY to section.some_key.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	section, rest, ok := strings.Cut(key, "_")
	if !ok {
		return key
	}
	return section + "." + rest
}

var listKeys = map[string]bool{
	"agent.capabilities":   true,
	"discovery.order":      true,
	"discovery.well_known": true,
}

// envValue splits comma separated lists for list-typed keys.
func envValue(name, value string) (string, any) {
	key := envKey(name)
	if listKeys[key] {
		return key, splitList(value)
	}
	return key, value
}

func splitList(value string) []string {
	out := []string{}
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func overrideValue(raw string) any {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		var decoded any
		if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
			return decoded
		}
	}
	return raw
}

type cliOptions struct {
	path    string
	profile string
}

func parseCLIOverrides(args []string) (cliOptions, []string, error) {
	var opts cliOptions
	var sets []string
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || arg == "--profile" || arg == "--set":
			if i+1 >= len(args) {
				return opts, nil, fmt.Errorf("missing value for %s", arg)
			}
			if err := opts.apply(arg, args[i+1], &sets); err != nil {
				return opts, nil, err
			}
			i++
		case strings.HasPrefix(arg, "--config="), strings.HasPrefix(arg, "--profile="), strings.HasPrefix(arg, "--set="):
			name, value, _ := strings.Cut(arg, "=")
			if err := opts.apply(name, value, &sets); err != nil {
				return opts, nil, err
			}
		default:
			return opts, nil, fmt.Errorf("unknown config flag %q", arg)
		}
	}
	return opts, sets, nil
}

func (o *cliOptions) apply(name, value string, sets *[]string) error {
	switch name {
	case "--config":
		o.path = value
	case "--profile":
		o.profile = value
	case "--set":
		key, _, ok := strings.Cut(value, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return fmt.Errorf("invalid --set value %q, expected key=value", value)
		}
		*sets = append(*sets, value)
	}
	return nil
}

// SourceFromCLI returns the --config path and --profile named in args, for
// callers that watch the file after loading it with LoadWithCLI.
func SourceFromCLI(args []string) (path, profile string, err error) {
	opts, _, err := parseCLIOverrides(args)
	if err != nil {
		return "", "", err
	}
	return opts.path, opts.profile, nil
}
