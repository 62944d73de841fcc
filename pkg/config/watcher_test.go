// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// bump rewrites path with a modification time clearly after the previous one.
func bump(t *testing.T, path, content string) {
	t.Helper()
	writeFile(t, path, content)
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
}

func TestWatcherDetectsChanges(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, configPath, "log:\n  level: info\n")

	watcher, err := NewWatcher(configPath, WithWatchInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	if watcher.Config().Log.Level != "info" {
		t.Errorf("expected initial level info, got %q", watcher.Config().Log.Level)
	}

	bump(t, configPath, "log:\n  level: debug\n")

	select {
	case cfg := <-changes:
		if cfg.Log.Level != "debug" {
			t.Errorf("expected level debug, got %q", cfg.Log.Level)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for config change notification")
	}
	if watcher.Config().Log.Level != "debug" {
		t.Errorf("expected watcher config to be updated")
	}
}

func TestWatcherProfileOverlay(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	writeFile(t, configPath, "directory:\n  ttl: 1m\n")
	writeFile(t, devPath, "directory:\n  ttl: 2m\n")

	watcher, err := NewWatcher(configPath, WithWatchProfile("dev"), WithWatchInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if got := watcher.Config().Directory.TTL; got != 2*time.Minute {
		t.Fatalf("expected overlay ttl 2m, got %s", got)
	}
	if paths := watcher.Paths(); len(paths) != 2 || paths[1] != devPath {
		t.Fatalf("expected base and overlay to be watched, got %v", paths)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		select {
		case changes <- cfg:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	bump(t, devPath, "directory:\n  ttl: 3m\n")

	select {
	case cfg := <-changes:
		if cfg.Directory.TTL != 3*time.Minute {
			t.Errorf("expected ttl 3m, got %s", cfg.Directory.TTL)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for overlay change")
	}
}

func TestWatcherKeepsConfigOnInvalidReload(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, configPath, "agent:\n  id: calc\n")

	watcher, err := NewWatcher(configPath, WithWatchInterval(20*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	bump(t, configPath, "agent: [unclosed\n")
	time.Sleep(200 * time.Millisecond)

	if watcher.Config().Agent.ID != "calc" {
		t.Errorf("expected previous config to be kept, got %q", watcher.Config().Agent.ID)
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	watcher, err := NewWatcher("")
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	watcher.Start(context.Background())
	watcher.Stop()
	watcher.Stop()
}

func TestWatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	writeFile(t, configPath, "client:\n  retries: 2\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher, cfg, err := WatchConfig(ctx, configPath)
	if err != nil {
		t.Fatalf("WatchConfig failed: %v", err)
	}
	defer watcher.Stop()

	if cfg.Client.Retries != 2 {
		t.Errorf("expected retries 2, got %d", cfg.Client.Retries)
	}
}

func TestReloadableConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	r := NewReloadableConfig(cfg)
	if r.Directory().Addr != ":8000" {
		t.Errorf("unexpected directory addr %s", r.Directory().Addr)
	}

	next := *cfg
	next.Log.Level = "error"
	next.Agent.ID = "other"
	r.Update(&next)

	if r.Log().Level != "error" || r.Agent().ID != "other" || r.Get() != &next {
		t.Errorf("expected updated config")
	}
	if r.Client().Timeout != cfg.Client.Timeout {
		t.Errorf("expected client section preserved")
	}
}
