// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"
)

func TestStatusConstants(t *testing.T) {
	tests := []struct {
		status Status
		name   string
		code   int
	}{
		{Healthy, "HEALTHY", http.StatusOK},
		{Degraded, "DEGRADED", http.StatusOK},
		{Unhealthy, "UNHEALTHY", http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.status) != tt.name {
				t.Errorf("expected %q, got %q", tt.name, string(tt.status))
			}
			if tt.status.HTTPStatus() != tt.code {
				t.Errorf("expected http %d, got %d", tt.code, tt.status.HTTPStatus())
			}
		})
	}
}

func TestStaticChecker(t *testing.T) {
	result := NewStaticChecker(Degraded, "slow").Check(context.Background())
	if result.Status != Degraded || result.Message != "slow" {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.LastCheck.IsZero() {
		t.Errorf("expected LastCheck to be set")
	}
}

func TestCheckAllOverallStatus(t *testing.T) {
	tests := []struct {
		name     string
		statuses []Status
		expected Status
	}{
		{"all healthy", []Status{Healthy, Healthy}, Healthy},
		{"one degraded", []Status{Healthy, Degraded}, Degraded},
		{"one unhealthy", []Status{Healthy, Degraded, Unhealthy}, Unhealthy},
		{"no checkers", nil, Healthy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := NewProvider(-1)
			for i, status := range tt.statuses {
				provider.RegisterChecker(string(rune('a'+i)), NewStaticChecker(status, ""))
			}
			results, overall := provider.CheckAll(context.Background())
			if len(results) != len(tt.statuses) {
				t.Errorf("expected %d results, got %d", len(tt.statuses), len(results))
			}
			if overall != tt.expected {
				t.Errorf("expected %v overall, got %v", tt.expected, overall)
			}
		})
	}
}

func TestCheckAllSortsComponents(t *testing.T) {
	provider := NewProvider(-1)
	provider.RegisterChecker("registry", NewStaticChecker(Healthy, ""))
	provider.RegisterChecker("journal", NewStaticChecker(Healthy, ""))

	results, _ := provider.CheckAll(context.Background())
	if results[0].Component != "journal" || results[1].Component != "registry" {
		t.Errorf("expected sorted components, got %s, %s", results[0].Component, results[1].Component)
	}
}

func TestCheckSpecificNotFound(t *testing.T) {
	provider := NewProvider(0)
	if _, err := provider.Check(context.Background(), "nonexistent"); err == nil {
		t.Errorf("expected error for nonexistent checker")
	}
}

func TestCheckerFuncFillsDefaults(t *testing.T) {
	provider := NewProvider(-1)
	provider.RegisterChecker("db", CheckerFunc(func(ctx context.Context) Result {
		return Result{Error: errors.New("connection refused")}
	}))

	result, err := provider.Check(context.Background(), "db")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != Unhealthy {
		t.Errorf("expected empty status to default to Unhealthy, got %v", result.Status)
	}
	if result.Message != "connection refused" {
		t.Errorf("expected message from error, got %q", result.Message)
	}
	if result.Component != "db" || result.LastCheck.IsZero() {
		t.Errorf("expected component and LastCheck to be filled: %+v", result)
	}
}

func TestResultsAreCached(t *testing.T) {
	calls := 0
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	provider := NewProvider(5 * time.Second)
	provider.now = func() time.Time { return now }
	provider.RegisterChecker("counter", CheckerFunc(func(ctx context.Context) Result {
		calls++
		return Result{Status: Healthy}
	}))

	_, _ = provider.Check(context.Background(), "counter")
	_, _ = provider.Check(context.Background(), "counter")
	if calls != 1 {
		t.Fatalf("expected cached result, checker called %d times", calls)
	}

	now = now.Add(6 * time.Second)
	_, _ = provider.Check(context.Background(), "counter")
	if calls != 2 {
		t.Fatalf("expected refresh after ttl, checker called %d times", calls)
	}
}

func TestCheckWithContext(t *testing.T) {
	provider := NewProvider(-1)
	provider.RegisterChecker("slow_service", CheckerFunc(func(ctx context.Context) Result {
		select {
		case <-ctx.Done():
			return Result{Status: Unhealthy, Message: "context timeout"}
		case <-time.After(100 * time.Millisecond):
			return Result{Status: Healthy, Message: "ok"}
		}
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	result, _ := provider.Check(ctx, "slow_service")
	if result.Status != Unhealthy {
		t.Errorf("expected Unhealthy due to timeout")
	}
}

func TestReportJSON(t *testing.T) {
	provider := NewProvider(-1)
	provider.RegisterChecker("registry", NewStaticChecker(Healthy, "3 agents"))

	data, err := json.Marshal(provider.Report(context.Background()))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var body struct {
		Status     string `json:"status"`
		Components []struct {
			Component string `json:"component"`
			Message   string `json:"message"`
		} `json:"components"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if body.Status != "HEALTHY" || len(body.Components) != 1 || body.Components[0].Message != "3 agents" {
		t.Errorf("unexpected report: %s", data)
	}
}
