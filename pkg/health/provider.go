// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Provider runs the registered checkers and caches their results for a short TTL.
type Provider struct {
	checkers map[string]Checker
	mu       sync.RWMutex
	cache    map[string]Result
	cacheTTL time.Duration
	now      func() time.Time
}

// NewProvider creates a new health check provider. A zero cacheTTL defaults to
// one second; a negative one disables caching.
func NewProvider(cacheTTL time.Duration) *Provider {
	if cacheTTL == 0 {
		cacheTTL = time.Second
	}
	return &Provider{
		checkers: make(map[string]Checker),
		cache:    make(map[string]Result),
		cacheTTL: cacheTTL,
		now:      time.Now,
	}
}

// RegisterChecker registers a health checker for a component.
func (p *Provider) RegisterChecker(name string, checker Checker) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkers[name] = checker
	delete(p.cache, name)
}

// Check checks the health of a specific component.
func (p *Provider) Check(ctx context.Context, name string) (Result, error) {
	p.mu.RLock()
	checker, exists := p.checkers[name]
	p.mu.RUnlock()

	if !exists {
		return Result{}, fmt.Errorf("checker not registered: %s", name)
	}
	return p.run(ctx, name, checker), nil
}

// CheckAll checks the health of all registered components, sorted by name.
// The overall status is Healthy only if every component is Healthy.
func (p *Provider) CheckAll(ctx context.Context) ([]Result, Status) {
	checkers := p.snapshot()
	names := make([]string, 0, len(checkers))
	for name := range checkers {
		names = append(names, name)
	}
	sort.Strings(names)

	results := make([]Result, 0, len(names))
	degraded, unhealthy := 0, 0
	for _, name := range names {
		result := p.run(ctx, name, checkers[name])
		results = append(results, result)
		switch result.Status {
		case Degraded:
			degraded++
		case Unhealthy:
			unhealthy++
		}
	}

	overall := Healthy
	if unhealthy > 0 {
		overall = Unhealthy
	} else if degraded > 0 {
		overall = Degraded
	}
	return results, overall
}

// Report runs every checker and returns the body for GET /health.
func (p *Provider) Report(ctx context.Context) Report {
	results, status := p.CheckAll(ctx)
	return Report{Status: status, Components: results}
}

func (p *Provider) run(ctx context.Context, name string, checker Checker) Result {
	if p.cacheTTL > 0 {
		p.mu.RLock()
		cached, ok := p.cache[name]
		p.mu.RUnlock()
		if ok && p.now().Sub(cached.LastCheck) < p.cacheTTL {
			return cached
		}
	}

	result := checker.Check(ctx)
	result.Component = name
	if result.LastCheck.IsZero() {
		result.LastCheck = p.now()
	}
	if result.Status == "" {
		result.Status = Unhealthy
	}
	if result.Error != nil && result.Message == "" {
		result.Message = result.Error.Error()
	}

	if p.cacheTTL > 0 {
		p.mu.Lock()
		p.cache[name] = result
		p.mu.Unlock()
	}
	return result
}

func (p *Provider) snapshot() map[string]Checker {
	p.mu.RLock()
	defer p.mu.RUnlock()

	checkers := make(map[string]Checker, len(p.checkers))
	for name, checker := range p.checkers {
		checkers[name] = checker
	}
	return checkers
}

// StaticChecker returns a constant status.
type StaticChecker struct {
	status  Status
	message string
}

// NewStaticChecker creates a checker with a fixed result.
func NewStaticChecker(status Status, message string) *StaticChecker {
	return &StaticChecker{status: status, message: message}
}

// Check returns the constant health status.
func (s *StaticChecker) Check(ctx context.Context) Result {
	return Result{
		Status:    s.status,
		Message:   s.message,
		LastCheck: time.Now(),
	}
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context) Result

// Check calls f.
func (f CheckerFunc) Check(ctx context.Context) Result {
	return f(ctx)
}
