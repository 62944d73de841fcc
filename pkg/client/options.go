// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package client talks to a directory and to agents: registration,
// discovery, lookup and task delivery.
//
// Calls are single attempt unless WithRetry is given. Only transport
// failures are ever retried.
package client

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/jsonrpc"
	"github.com/jllopis/a2a/pkg/resilience"
)

// Option configures a Directory or Requester.
type Option func(*options)

type options struct {
	httpClient *http.Client
	timeout    time.Duration
	headers    map[string]string
	retry      *resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
	logger     *slog.Logger
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *options) {
		if httpClient != nil {
			o.httpClient = httpClient
		}
	}
}

// WithTimeout bounds each call. Calls are unbounded unless this is given;
// zero disables the bound again.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		if timeout >= 0 {
			o.timeout = timeout
		}
	}
}

// WithHeaders sets headers sent on every request.
func WithHeaders(headers map[string]string) Option {
	return func(o *options) {
		o.headers = headers
	}
}

// WithRetry retries failed calls per config. The recoverability check is
// always narrowed to transport errors.
func WithRetry(config resilience.RetryConfig) Option {
	return func(o *options) {
		inner := config.IsRecoverable
		config.IsRecoverable = func(err error) bool {
			if !errors.IsTransport(err) {
				return false
			}
			return inner == nil || inner(err)
		}
		o.retry = &config
	}
}

// WithCircuitBreaker rejects calls while breaker is open.
func WithCircuitBreaker(breaker *resilience.CircuitBreaker) Option {
	return func(o *options) {
		o.breaker = breaker
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		httpClient: http.DefaultClient,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

func (o options) rpcClient() *jsonrpc.Client {
	return jsonrpc.NewClient(
		jsonrpc.WithHTTPClient(o.httpClient),
		jsonrpc.WithHeaders(o.headers),
	)
}

func (o options) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, o.timeout)
}

// do runs fn once, or under the configured retry and breaker policies.
// Each attempt gets its own timeout.
func (o options) do(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	attempt := func() error {
		callCtx, cancel := o.withTimeout(ctx)
		defer cancel()
		if o.breaker != nil {
			return o.breaker.Call(callCtx, func() error { return fn(callCtx) })
		}
		return fn(callCtx)
	}
	if o.retry == nil {
		return attempt()
	}
	config := *o.retry
	config.OnRetry = func(n int, err error) {
		o.logger.WarnContext(ctx, "client.retry", "call", name, "attempt", n+1, "error", err)
		if o.retry.OnRetry != nil {
			o.retry.OnRetry(n, err)
		}
	}
	return config.Do(ctx, attempt)
}

func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + path
}
