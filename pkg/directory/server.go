// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package directory is the HTTP facade of the agent directory: JSON-RPC
// registration and discovery plus read-only REST lookups.
package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/health"
	"github.com/jllopis/a2a/pkg/httpserver"
	"github.com/jllopis/a2a/pkg/jsonrpc"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/registry"
	"github.com/jllopis/a2a/pkg/telemetry"
)

// Server serves a Registry over HTTP.
type Server struct {
	registry *registry.Registry
	sweeper  *registry.Sweeper

	logger        *slog.Logger
	metrics       *telemetry.ProtocolMetrics
	maxBody       int64
	sweepInterval time.Duration

	health     *health.Provider
	dispatcher *jsonrpc.Dispatcher
	echo       *echo.Echo
	gauge      metric.Registration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records RPC metrics and exposes the registry size as a gauge.
func WithMetrics(metrics *telemetry.ProtocolMetrics) Option {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithMaxBodyBytes caps JSON-RPC request bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		s.maxBody = n
	}
}

// WithSweepInterval prunes expired records every interval while Run is
// active. It only has an effect when the registry has a TTL.
func WithSweepInterval(interval time.Duration) Option {
	return func(s *Server) {
		s.sweepInterval = interval
	}
}

// NewServer builds the directory facade for reg.
func NewServer(reg *registry.Registry, opts ...Option) *Server {
	s := &Server{
		registry: reg,
		logger:   slog.Default(),
		health:   health.NewProvider(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = telemetry.Component(s.logger, "directory")

	s.sweeper = registry.NewSweeper(reg, s.sweepInterval,
		registry.WithSweepLogger(s.logger),
		registry.WithSweepMetrics(s.metrics),
	)
	if s.metrics != nil {
		gauge, err := s.metrics.ObserveAgents(s.registry.Len)
		if err != nil {
			s.logger.Warn("directory.metrics.gauge", "error", err)
		}
		s.gauge = gauge
	}

	s.health.RegisterChecker("registry", health.CheckerFunc(func(ctx context.Context) health.Result {
		return health.Result{
			Status:  health.Healthy,
			Message: fmt.Sprintf("%d agents", s.registry.Len()),
		}
	}))

	s.dispatcher = jsonrpc.NewDispatcher(
		jsonrpc.WithLogger(s.logger),
		jsonrpc.WithMetrics(s.metrics),
	)
	s.dispatcher.Handle(protocol.MethodRegister, s.handleRegister)
	s.dispatcher.Handle(protocol.MethodDiscover, s.handleDiscover)

	s.echo = httpserver.New(s.logger)
	s.routes()
	return s
}

func (s *Server) routes() {
	rpc := echo.WrapHandler(jsonrpc.NewServer(s.dispatcher,
		jsonrpc.WithMaxBodyBytes(s.maxBody),
		jsonrpc.WithServerLogger(s.logger),
	))
	// The envelope method decides; the alias paths exist for older clients.
	s.echo.POST("/a2a", rpc)
	s.echo.POST("/a2a/register", rpc)
	s.echo.POST("/a2a/discover", rpc)

	s.echo.GET("/a2a/agents", s.listAgents)
	s.echo.GET("/a2a/agents/:id", s.getAgent)
	s.echo.GET("/health", s.getHealth)
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Sweeper returns the expiry sweeper started by Run.
func (s *Server) Sweeper() *registry.Sweeper {
	return s.sweeper
}

// Run serves on addr and runs the sweeper until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	defer func() {
		if s.gauge != nil {
			_ = s.gauge.Unregister()
		}
	}()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(ctx, s.echo, addr, s.logger)
	})
	g.Go(func() error {
		return s.sweeper.Run(ctx)
	})
	return g.Wait()
}

func (s *Server) handleRegister(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.RegisterParams
	if rpcErr := jsonrpc.DecodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	record, err := s.registry.Register(ctx, p)
	if err != nil {
		return nil, err
	}
	return protocol.RegisterResult{Status: protocol.StatusRegistered, AgentID: record.AgentID}, nil
}

func (s *Server) handleDiscover(ctx context.Context, params json.RawMessage) (any, error) {
	var p protocol.DiscoverParams
	if rpcErr := jsonrpc.DecodeParams(params, &p); rpcErr != nil {
		return nil, rpcErr
	}
	if p.Capabilities == nil {
		return nil, jsonrpc.InvalidParams("missing fields: capabilities")
	}
	return protocol.DiscoverResult{Agents: s.registry.Discover(ctx, p.Capabilities)}, nil
}

func (s *Server) listAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, protocol.DiscoverResult{Agents: s.registry.List(c.Request().Context())})
}

func (s *Server) getAgent(c echo.Context) error {
	record, err := s.registry.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.IsNotFound(err) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
		}
		s.logger.ErrorContext(c.Request().Context(), "directory.get", "agent_id", c.Param("id"), "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get agent"})
	}
	return c.JSON(http.StatusOK, record)
}

func (s *Server) getHealth(c echo.Context) error {
	report := s.health.Report(c.Request().Context())
	return c.JSON(report.Status.HTTPStatus(), report)
}
