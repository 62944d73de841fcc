// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/jllopis/a2a/pkg/audit"
	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/health"
	"github.com/jllopis/a2a/pkg/httpserver"
	"github.com/jllopis/a2a/pkg/jsonrpc"
	"github.com/jllopis/a2a/pkg/protocol"
	"github.com/jllopis/a2a/pkg/resilience"
	"github.com/jllopis/a2a/pkg/telemetry"
)

// WellKnownPath serves the agent card.
const WellKnownPath = protocol.WellKnownPath

// defaultJournalLimit caps GET /a2a/tasks when no limit is given.
const defaultJournalLimit = 100

// Registrar announces an agent to a directory.
type Registrar interface {
	Register(ctx context.Context, params protocol.RegisterParams) (protocol.RegisterResult, error)
}

// Server is the HTTP facade of one agent.
type Server struct {
	mu   sync.RWMutex
	card protocol.AgentRecord

	executor    *Executor
	journal     audit.Store
	taskTimeout time.Duration
	maxBody     int64

	logger  *slog.Logger
	metrics *telemetry.ProtocolMetrics
	health  *health.Provider

	dispatcher *jsonrpc.Dispatcher
	echo       *echo.Echo
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTaskTimeout bounds every task. Zero (the default) leaves tasks unbounded.
func WithTaskTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		s.taskTimeout = d
	}
}

// WithTaskJournal sets the journal store. Defaults to an in-memory journal.
func WithTaskJournal(store audit.Store) ServerOption {
	return func(s *Server) {
		if store != nil {
			s.journal = store
		}
	}
}

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records RPC and task metrics.
func WithMetrics(metrics *telemetry.ProtocolMetrics) ServerOption {
	return func(s *Server) {
		s.metrics = metrics
	}
}

// WithMaxBodyBytes caps JSON-RPC request bodies.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		s.maxBody = n
	}
}

// WithHealthChecker adds a component to GET /health.
func WithHealthChecker(name string, checker health.Checker) ServerOption {
	return func(s *Server) {
		s.health.RegisterChecker(name, checker)
	}
}

// NewServer builds the facade for the agent described by card.
// card.RegisteredAt is ignored; the card reports the server start time.
func NewServer(card protocol.AgentRecord, handler TaskHandler, opts ...ServerOption) *Server {
	card = card.Clone()
	card.RegisteredAt = time.Now().UTC().Truncate(time.Second)

	s := &Server{
		card:   card,
		logger: slog.Default(),
		health: health.NewProvider(0),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	s.logger = telemetry.Component(s.logger, "agent").With("agent_id", card.AgentID)
	if s.journal == nil {
		s.journal = audit.NewMemoryStore(audit.DefaultCapacity)
	}

	s.executor = NewExecutor(handler,
		WithJournal(s.journal),
		WithExecutorLogger(s.logger),
		WithExecutorMetrics(s.metrics),
	)

	s.health.RegisterChecker("handler", health.CheckerFunc(func(ctx context.Context) health.Result {
		if handler == nil {
			return health.Result{Status: health.Degraded, Message: ReasonNoHandler}
		}
		return health.Result{Status: health.Healthy}
	}))
	s.health.RegisterChecker("journal", health.CheckerFunc(func(ctx context.Context) health.Result {
		if _, err := s.journal.List(ctx, audit.Filter{Limit: 1}); err != nil {
			return health.Result{Status: health.Degraded, Error: err}
		}
		return health.Result{Status: health.Healthy}
	}))

	s.dispatcher = jsonrpc.NewDispatcher(
		jsonrpc.WithLogger(s.logger),
		jsonrpc.WithMetrics(s.metrics),
	)
	s.dispatcher.Handle(protocol.MethodTask, s.handleTask)
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
	s.echo.POST("/", rpc)
	s.echo.POST("/a2a", rpc)
	s.echo.GET(WellKnownPath, s.getCard)
	s.echo.GET("/a2a/tasks", s.listTasks)
	s.echo.GET("/health", s.getHealth)
}

// Card returns a copy of the agent card.
func (s *Server) Card() protocol.AgentRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.card.Clone()
}

// Executor returns the task executor behind a2a/task.
func (s *Server) Executor() *Executor {
	return s.executor
}

// Handler returns the HTTP handler serving every route.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Run serves on addr until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	return httpserver.Run(ctx, s.echo, addr, s.logger)
}

// Register announces the agent card to a directory.
func (s *Server) Register(ctx context.Context, directory Registrar) error {
	card := s.Card()
	result, err := directory.Register(ctx, protocol.RegisterParams{
		AgentID:      card.AgentID,
		Name:         card.Name,
		Capabilities: card.Capabilities,
		Endpoint:     card.Endpoint,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "agent.register.failed", "error", err)
		return fmt.Errorf("register %s: %w", card.AgentID, err)
	}
	s.logger.InfoContext(ctx, "agent.register", "status", result.Status, "endpoint", card.Endpoint)
	return nil
}

func (s *Server) handleTask(ctx context.Context, params json.RawMessage) (any, error) {
	req, rpcErr := decodeTaskRequest(params)
	if rpcErr != nil {
		return nil, rpcErr
	}

	result, err := resilience.WithTimeoutResult(ctx, resilience.TimeoutConfig{Duration: s.taskTimeout},
		func(ctx context.Context) (protocol.TaskResult, error) {
			return s.executor.Execute(ctx, req)
		})
	if err != nil {
		switch errors.CodeOf(err) {
		case errors.CodeTimeout:
			reason := reasonOf(err)
			if s.taskTimeout > 0 {
				reason = fmt.Sprintf("task exceeded %s", s.taskTimeout)
			}
			return nil, jsonrpc.TaskTimeout(req.TaskID, reason)
		case errors.CodeTaskFailed:
			return nil, jsonrpc.TaskFailed(req.TaskID, reasonOf(err))
		default:
			return nil, err
		}
	}
	return result, nil
}

func (s *Server) handleDiscover(ctx context.Context, _ json.RawMessage) (any, error) {
	return protocol.DiscoverResult{Agents: []protocol.AgentRecord{s.Card()}}, nil
}

type taskParams struct {
	TaskID *string         `json:"taskId"`
	Action *string         `json:"action"`
	Sender string          `json:"sender"`
	Input  json.RawMessage `json:"input"`
}

func decodeTaskRequest(params json.RawMessage) (protocol.TaskRequest, *jsonrpc.Error) {
	var p taskParams
	if rpcErr := jsonrpc.DecodeParams(params, &p); rpcErr != nil {
		return protocol.TaskRequest{}, rpcErr
	}
	var missing []string
	if p.TaskID == nil || strings.TrimSpace(*p.TaskID) == "" {
		missing = append(missing, "taskId")
	}
	if p.Action == nil || strings.TrimSpace(*p.Action) == "" {
		missing = append(missing, "action")
	}
	if len(missing) > 0 {
		return protocol.TaskRequest{}, jsonrpc.InvalidParams("missing fields: %s", strings.Join(missing, ", "))
	}

	req := protocol.TaskRequest{
		TaskID: *p.TaskID,
		Action: *p.Action,
		Sender: p.Sender,
		Input:  protocol.Payload{},
	}
	raw := bytes.TrimSpace(p.Input)
	if len(raw) == 0 || string(raw) == "null" {
		return req, nil
	}
	if raw[0] != '{' {
		return protocol.TaskRequest{}, jsonrpc.InvalidParams("input must be an object")
	}
	if err := json.Unmarshal(raw, &req.Input); err != nil {
		return protocol.TaskRequest{}, jsonrpc.InvalidParams("input: %v", err)
	}
	return req, nil
}

func (s *Server) getCard(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Card())
}

func (s *Server) listTasks(c echo.Context) error {
	filter := audit.Filter{
		Status: protocol.TaskStatus(c.QueryParam("status")),
		Action: c.QueryParam("action"),
		TaskID: c.QueryParam("taskId"),
		Limit:  defaultJournalLimit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "unknown status"})
	}
	if raw := c.QueryParam("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		filter.Limit = limit
	}

	entries, err := s.journal.List(c.Request().Context(), filter)
	if err != nil {
		s.logger.ErrorContext(c.Request().Context(), "agent.journal.list", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list tasks"})
	}
	return c.JSON(http.StatusOK, map[string]any{"tasks": entries})
}

func (s *Server) getHealth(c echo.Context) error {
	report := s.health.Report(c.Request().Context())
	return c.JSON(report.Status.HTTPStatus(), report)
}
