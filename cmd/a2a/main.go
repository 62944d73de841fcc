// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jllopis/a2a/pkg/client"
	"github.com/jllopis/a2a/pkg/config"
	"github.com/jllopis/a2a/pkg/resilience"
	"github.com/jllopis/a2a/pkg/telemetry"
)

var version = "dev"

type globalFlags struct {
	ConfigArgs []string
	Directory  string
	Timeout    time.Duration
	Output     string
	NoColor    bool
	Help       bool
}

// app carries what every subcommand needs.
type app struct {
	flags  globalFlags
	cfg    *config.Config
	out    io.Writer
	logger *slog.Logger
	level  *slog.LevelVar
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		PrintSimpleError(os.Stderr, err, false)
		os.Exit(2)
	}
	if global.Help || len(args) == 0 {
		printUsage(os.Stdout)
		return
	}

	cfg, err := config.LoadWithCLI(global.ConfigArgs)
	if err != nil {
		NewConfigError(err, configPath(global.ConfigArgs)).PrintError(os.Stderr, global.Output == outputJSON)
		os.Exit(1)
	}

	a := newApp(global, cfg, os.Stdout, os.Stderr)
	shutdown, err := telemetry.InitWithConfig("a2a", version, telemetry.Config{
		Role:               "cli",
		Exporter:           cfg.Telemetry.Exporter,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
	})
	if err != nil {
		PrintSimpleError(os.Stderr, err, global.Output == outputJSON)
		os.Exit(1)
	}

	err = a.run(ctx, args)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = shutdown(shutdownCtx)
	cancel()

	if err != nil {
		explain(err, a.directoryURL()).PrintError(os.Stderr, global.Output == outputJSON)
		os.Exit(1)
	}
}

func newApp(flags globalFlags, cfg *config.Config, out, logOut io.Writer) *app {
	level := new(slog.LevelVar)
	telemetry.SetLevel(level, cfg.Log.Level)
	return &app{
		flags:  flags,
		cfg:    cfg,
		out:    out,
		logger: telemetry.NewLevelLogger(logOut, level, cfg.Log.Format),
		level:  level,
	}
}

func (a *app) run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "register":
		return a.runRegister(ctx, rest)
	case "discover":
		return a.runDiscover(ctx, rest)
	case "list":
		if len(rest) > 0 {
			return NewInvalidArgumentError(rest[0], "list takes no arguments")
		}
		return a.runList(ctx)
	case "get":
		return a.runGet(ctx, rest)
	case "send":
		return a.runSend(ctx, rest)
	case "resolve":
		return a.runResolve(ctx, rest)
	case "serve":
		return a.runServe(ctx, rest)
	case "version":
		fmt.Fprintf(a.out, "a2a %s\n", version)
		return nil
	case "help":
		printUsage(a.out)
		return nil
	default:
		return NewInvalidArgumentError(cmd, fmt.Sprintf("unknown command %q", cmd))
	}
}

func (a *app) directoryURL() string {
	if a.flags.Directory != "" {
		return a.flags.Directory
	}
	if a.cfg.Agent.DirectoryURL != "" {
		return a.cfg.Agent.DirectoryURL
	}
	return a.cfg.Directory.URL
}

func (a *app) timeout() time.Duration {
	if a.flags.Timeout > 0 {
		return a.flags.Timeout
	}
	return a.cfg.Client.Timeout
}

func (a *app) clientOptions() []client.Option {
	opts := []client.Option{
		client.WithTimeout(a.timeout()),
		client.WithLogger(a.logger),
	}
	if a.cfg.Client.Retries > 0 {
		opts = append(opts, client.WithRetry(resilience.TransportRetryConfig(a.cfg.Client.Retries+1)))
	}
	return opts
}

func (a *app) directory() *client.Directory {
	return client.NewDirectory(a.directoryURL(), a.clientOptions()...)
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		Directory: os.Getenv("A2A_DIRECTORY"),
		Output:    outputTable,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "-h", "--help":
			flags.Help = true
			return flags, nil, nil
		case "--json":
			flags.Output = outputJSON
			continue
		case "--no-color":
			flags.NoColor = true
			continue
		case "--config", "--profile", "--set", "--directory", "--timeout", "--output", "-o":
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}

		if !hasValue {
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", name)
			}
			value = args[i+1]
			i++
		}
		switch name {
		case "--config", "--profile", "--set":
			flags.ConfigArgs = append(flags.ConfigArgs, name, value)
		case "--directory":
			flags.Directory = value
		case "--timeout":
			d, err := time.ParseDuration(value)
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = d
		case "--output", "-o":
			switch value {
			case outputTable, outputJSON, outputYAML:
				flags.Output = value
			default:
				return flags, nil, fmt.Errorf("invalid --output %q (table, json, yaml)", value)
			}
		}
	}
	return flags, nil, nil
}

// watchLogLevel follows log.level in the config file, if one was given.
func (a *app) watchLogLevel(ctx context.Context) (func(), error) {
	path, profile, err := config.SourceFromCLI(a.flags.ConfigArgs)
	if err != nil || path == "" {
		return func() {}, err
	}
	w, err := config.NewWatcher(path,
		config.WithWatchProfile(profile),
		config.WithWatchLogger(a.logger),
	)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(cfg *config.Config) {
		telemetry.SetLevel(a.level, cfg.Log.Level)
	})
	w.Start(ctx)
	return w.Stop, nil
}

func configPath(configArgs []string) string {
	path, _, _ := config.SourceFromCLI(configArgs)
	return path
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: a2a [global flags] <command> [flags] [args]

Commands:
  register --id <id> --name <name> --capability <cap> --endpoint <url>
                              Register an agent in the directory
  discover [--one] <cap>...   Find agents declaring any of the capabilities
  list                        List every registered agent
  get <agent-id>              Show one agent
  send [--input <json>] [--sender <id>] [--endpoint <url>] <agent-id> <action>
                              Deliver a task to an agent and print the result
  resolve [<cap>...]          Merge peers, well-known agents and the directory
                              (discovery.order), optionally filtered by capability
  serve [--id <id>] [--addr <host:port>] [--capability <cap>]
                              Run a built-in echo agent and register it
  version                     Print version

Global flags:
  --directory <url>   Directory base URL (A2A_DIRECTORY, directory.url)
  --timeout <dur>     Per-request timeout, none by default (client.timeout)
  -o, --output <fmt>  table, json or yaml
  --json              Same as --output json
  --no-color          Disable colored output
  --config <path>     YAML config file
  --profile <name>    Overlay config.<name>.yaml
  --set key=value     Override a config key (repeatable)
`)
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, splitList(value)...)
	return nil
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
