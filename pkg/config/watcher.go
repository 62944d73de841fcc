// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

// Watcher polls a config file (and its profile overlay) and reloads on change.
type Watcher struct {
	mu          sync.RWMutex
	path        string
	profile     string
	paths       []string
	interval    time.Duration
	lastModTime map[string]time.Time
	config      *Config
	listeners   []func(*Config)
	stopCh      chan struct{}
	doneCh      chan struct{}
	stopOnce    sync.Once
	logger      *slog.Logger
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets the polling interval for file changes.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithWatchLogger sets the logger for the watcher.
func WithWatchLogger(logger *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithWatchProfile also watches and applies config.<profile>.yaml.
func WithWatchProfile(profile string) WatcherOption {
	return func(w *Watcher) {
		w.profile = profile
	}
}

// NewWatcher loads path and prepares to watch it. An empty path watches nothing
// and keeps the defaults plus environment.
func NewWatcher(path string, opts ...WatcherOption) (*Watcher, error) {
	w := &Watcher{
		path:        path,
		interval:    time.Second,
		lastModTime: make(map[string]time.Time),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}

	if path != "" {
		w.paths = append(w.paths, path)
		if w.profile != "" {
			w.paths = append(w.paths, ProfilePath(path, w.profile))
		}
	}
	for _, p := range w.paths {
		if info, err := os.Stat(p); err == nil {
			w.lastModTime[p] = info.ModTime()
		}
	}

	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		return nil, err
	}
	w.config = cfg
	return w, nil
}

// Paths returns the files being watched.
func (w *Watcher) Paths() []string {
	return append([]string(nil), w.paths...)
}

// OnChange registers a callback to be called when config changes.
func (w *Watcher) OnChange(fn func(*Config)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Config returns the current configuration.
func (w *Watcher) Config() *Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.config
}

// Start begins watching for configuration changes.
func (w *Watcher) Start(ctx context.Context) {
	go w.watch(ctx)
}

// Stop stops the watcher and waits for the polling loop to exit.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForChanges() {
				w.reload()
			}
		}
	}
}

func (w *Watcher) checkForChanges() bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	changed := false
	for _, path := range w.paths {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		lastMod, exists := w.lastModTime[path]
		if !exists || info.ModTime().After(lastMod) {
			w.lastModTime[path] = info.ModTime()
			changed = true
		}
	}
	return changed
}

func (w *Watcher) reload() {
	cfg, err := LoadWithProfile(w.path, w.profile)
	if err != nil {
		w.logger.Error("config.reload.failed", "path", w.path, "error", err)
		return
	}

	w.mu.Lock()
	w.config = cfg
	listeners := make([]func(*Config), len(w.listeners))
	copy(listeners, w.listeners)
	w.mu.Unlock()

	w.logger.Info("config.reloaded", "path", w.path)
	for _, fn := range listeners {
		fn(cfg)
	}
}

// WatchConfig creates a watcher for path, starts it and returns the initial config.
func WatchConfig(ctx context.Context, path string, opts ...WatcherOption) (*Watcher, *Config, error) {
	w, err := NewWatcher(path, opts...)
	if err != nil {
		return nil, nil, err
	}
	w.Start(ctx)
	return w, w.Config(), nil
}

// ReloadableConfig is a Config that listeners can swap atomically.
type ReloadableConfig struct {
	mu     sync.RWMutex
	config *Config
}

func NewReloadableConfig(cfg *Config) *ReloadableConfig {
	return &ReloadableConfig{config: cfg}
}

func (r *ReloadableConfig) Get() *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config
}

func (r *ReloadableConfig) Update(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.config = cfg
}

func (r *ReloadableConfig) Log() LogConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Log
}

func (r *ReloadableConfig) Directory() DirectoryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Directory
}

func (r *ReloadableConfig) Agent() AgentConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Agent
}

func (r *ReloadableConfig) Client() ClientConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.config.Client
}
