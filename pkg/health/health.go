// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package health aggregates component health checks for the HTTP facades.
package health

import (
	"context"
	"net/http"
	"time"
)

// Status represents the health state of a component.
type Status string

const (
	// Healthy indicates the component is fully operational.
	Healthy Status = "HEALTHY"

	// Degraded indicates the component is operational but with reduced capacity.
	Degraded Status = "DEGRADED"

	// Unhealthy indicates the component is not operational.
	Unhealthy Status = "UNHEALTHY"
)

// HTTPStatus returns the status code a health endpoint answers with.
func (s Status) HTTPStatus() int {
	if s == Unhealthy {
		return http.StatusServiceUnavailable
	}
	return http.StatusOK
}

// Result represents the result of a health check.
type Result struct {
	Status    Status    `json:"status"`
	Component string    `json:"component"`
	Message   string    `json:"message,omitempty"`
	LastCheck time.Time `json:"lastCheck"`
	Error     error     `json:"-"`
}

// Checker checks the health of a component.
type Checker interface {
	// Check returns the current health status of the component.
	// The context can be used to implement timeouts.
	Check(ctx context.Context) Result
}

// Report is the body served by GET /health.
type Report struct {
	Status     Status   `json:"status"`
	Components []Result `json:"components"`
}
