// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// DefaultMaxBodyBytes caps request bodies read by Server.
const DefaultMaxBodyBytes int64 = 1 << 20

// Server exposes a Dispatcher over HTTP POST.
type Server struct {
	dispatcher   *Dispatcher
	logger       *slog.Logger
	maxBodyBytes int64
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithMaxBodyBytes overrides the request body cap.
func WithMaxBodyBytes(n int64) ServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxBodyBytes = n
		}
	}
}

// WithServerLogger sets the server logger.
func WithServerLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewServer wraps a dispatcher in an http.Handler.
func NewServer(dispatcher *Dispatcher, opts ...ServerOption) *Server {
	s := &Server{
		dispatcher:   dispatcher,
		logger:       slog.Default(),
		maxBodyBytes: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// ServeHTTP handles JSON-RPC 2.0 requests. Every body that is read gets an
// envelope with HTTP 200, including parse errors.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, NewErrorResponse(nil, InvalidRequest("request body too large")))
			return
		}
		s.logger.WarnContext(ctx, "jsonrpc.read_body", "error", err)
		writeJSON(w, http.StatusOK, NewErrorResponse(nil, ParseError()))
		return
	}

	req, rpcErr := Decode(body)
	if rpcErr != nil {
		s.logger.DebugContext(ctx, "jsonrpc.decode", "code", rpcErr.Code, "reason", rpcErr.Reason())
		writeJSON(w, http.StatusOK, NewErrorResponse(req.ID, rpcErr))
		return
	}
	writeJSON(w, http.StatusOK, s.dispatcher.Dispatch(ctx, req))
}

func writeJSON(w http.ResponseWriter, status int, resp *Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		payload, _ = json.Marshal(NewErrorResponse(resp.ID, InternalError("encode response")))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(payload, '\n'))
}
