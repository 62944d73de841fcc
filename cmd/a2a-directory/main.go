// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Command a2a-directory runs the agent directory: a JSON-RPC registry where
// agents announce their capabilities and requesters discover them.
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

	"github.com/jllopis/a2a/pkg/config"
	"github.com/jllopis/a2a/pkg/directory"
	"github.com/jllopis/a2a/pkg/registry"
	"github.com/jllopis/a2a/pkg/telemetry"
)

var version = "dev"

type flags struct {
	ConfigArgs []string
	Help       bool
	Version    bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := parseFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	switch {
	case f.Help:
		printUsage(os.Stdout)
		return
	case f.Version:
		fmt.Printf("a2a-directory %s\n", version)
		return
	}
	if err := run(ctx, f, os.Stderr); err != nil {
		fatal(err)
	}
}

func run(ctx context.Context, f flags, logOut io.Writer) error {
	cfg, err := config.LoadWithCLI(f.ConfigArgs)
	if err != nil {
		return err
	}

	var level slog.LevelVar
	telemetry.SetLevel(&level, cfg.Log.Level)
	logger := telemetry.NewLevelLogger(logOut, &level, cfg.Log.Format)
	slog.SetDefault(logger)

	shutdown, err := telemetry.InitWithConfig("a2a-directory", version, telemetry.Config{
		Role:               "directory",
		Exporter:           cfg.Telemetry.Exporter,
		OTLPEndpoint:       cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:       cfg.Telemetry.OTLPInsecure,
		OTLPTimeoutSeconds: cfg.Telemetry.OTLPTimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(ctx); err != nil {
			logger.Warn("telemetry.shutdown", "error", err)
		}
	}()

	if stopWatch, err := watchLogLevel(ctx, f.ConfigArgs, &level, logger); err != nil {
		return err
	} else if stopWatch != nil {
		defer stopWatch()
	}

	metrics, err := telemetry.NewProtocolMetrics(ctx)
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	reg := registry.New(
		registry.WithTTL(cfg.Directory.TTL),
		registry.WithLogger(logger),
	)
	srv := directory.NewServer(reg,
		directory.WithLogger(logger),
		directory.WithMetrics(metrics),
		directory.WithMaxBodyBytes(cfg.Directory.MaxBodyBytes),
		directory.WithSweepInterval(cfg.Directory.SweepInterval),
	)

	logger.Info("directory.start",
		"version", version,
		"addr", cfg.Directory.Addr,
		"ttl", cfg.Directory.TTL,
	)
	return srv.Run(ctx, cfg.Directory.Addr)
}

// watchLogLevel follows log.level in the config file, if one was given.
func watchLogLevel(ctx context.Context, configArgs []string, level *slog.LevelVar, logger *slog.Logger) (func(), error) {
	path, profile, err := config.SourceFromCLI(configArgs)
	if err != nil || path == "" {
		return nil, err
	}
	w, err := config.NewWatcher(path,
		config.WithWatchProfile(profile),
		config.WithWatchLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	w.OnChange(func(cfg *config.Config) {
		telemetry.SetLevel(level, cfg.Log.Level)
	})
	w.Start(ctx)
	return w.Stop, nil
}

// parseFlags accepts the config flags plus --addr and --ttl shorthands,
// which become --set overrides.
func parseFlags(args []string) (flags, error) {
	var f flags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, value, hasValue := strings.Cut(arg, "=")
		switch name {
		case "-h", "--help":
			f.Help = true
			return f, nil
		case "--version":
			f.Version = true
			return f, nil
		case "--config", "--profile", "--set", "--addr", "--ttl":
			if !hasValue {
				if i+1 >= len(args) {
					return f, fmt.Errorf("missing value for %s", name)
				}
				value = args[i+1]
				i++
			}
			switch name {
			case "--addr":
				f.ConfigArgs = append(f.ConfigArgs, "--set", "directory.addr="+value)
			case "--ttl":
				if _, err := time.ParseDuration(value); err != nil {
					return f, fmt.Errorf("invalid --ttl: %w", err)
				}
				f.ConfigArgs = append(f.ConfigArgs, "--set", "directory.ttl="+value)
			default:
				f.ConfigArgs = append(f.ConfigArgs, name, value)
			}
		default:
			return f, fmt.Errorf("unknown flag %q", arg)
		}
	}
	return f, nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, `Usage: a2a-directory [flags]

Flags:
  --config <path>      YAML config file
  --profile <name>     Overlay config.<name>.yaml on top of --config
  --set key=value      Override a config key (repeatable)
  --addr <host:port>   Listen address (directory.addr)
  --ttl <duration>     Drop agents not re-registered within duration (directory.ttl)
  --version            Print version
  -h, --help           Show this help

Environment:
  A2A_<SECTION>_<KEY>  e.g. A2A_DIRECTORY_ADDR=:8000
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "a2a-directory: %v\n", err)
	os.Exit(1)
}
