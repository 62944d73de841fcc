// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package jsonrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jllopis/a2a/pkg/errors"
	"github.com/jllopis/a2a/pkg/telemetry"
)

// Client performs single-attempt JSON-RPC calls over HTTP POST.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	tracer     trace.Tracer
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHeaders sets default headers for each request.
func WithHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		c.headers = cloneHeaders(headers)
	}
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient creates a JSON-RPC client.
func NewClient(opts ...ClientOption) *Client {
	client := &Client{
		httpClient: http.DefaultClient,
		tracer:     otel.Tracer(telemetry.TracerClient),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client
}

// Call invokes method at endpoint with a fresh request id and decodes the
// result into result (which may be nil).
//
// Errors come in three shapes: a TRANSPORT *errors.Error when the exchange
// failed or returned non-2xx, a PROTOCOL *errors.Error when the reply is not
// an envelope, and a *Error when the peer answered with an error object.
func (c *Client) Call(ctx context.Context, endpoint, method string, params, result any) error {
	return c.CallWithID(ctx, endpoint, uuid.NewString(), method, params, result)
}

// CallWithID is Call with a caller-chosen string id.
func (c *Client) CallWithID(ctx context.Context, endpoint, id, method string, params, result any) error {
	ctx, span := c.tracer.Start(ctx, "jsonrpc.call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String(telemetry.AttrRPCMethod, method),
			attribute.String(telemetry.AttrRPCID, id),
		),
	)
	defer span.End()

	err := c.call(ctx, endpoint, id, method, params, result)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (c *Client) call(ctx context.Context, endpoint, id, method string, params, result any) error {
	rawID, err := json.Marshal(id)
	if err != nil {
		return err
	}
	req := Request{
		JSONRPC: Version,
		ID:      rawID,
		Method:  method,
	}
	if params != nil {
		payload, err := json.Marshal(params)
		if err != nil {
			return errors.New(errors.CodeInvalidInput, "encode params", err)
		}
		req.Params = payload
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.New(errors.CodeInvalidInput, "build request", err).WithContext("endpoint", endpoint)
	}
	request.Header.Set("Content-Type", "application/json")
	c.applyHeaders(ctx, request)

	resp, err := c.httpClient.Do(request)
	if err != nil {
		return errors.Transport(0, fmt.Sprintf("POST %s", endpoint), err).
			WithContext("endpoint", endpoint).
			WithRecoverable(true)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return StatusError(resp, endpoint)
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return errors.New(errors.CodeProtocol, "decode response", err).WithContext("endpoint", endpoint)
	}
	if decoded.Error != nil {
		return decoded.Error
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(decoded.Result, result); err != nil {
		return errors.New(errors.CodeProtocol, "decode result", err).WithContext("method", method)
	}
	return nil
}

func (c *Client) applyHeaders(ctx context.Context, request *http.Request) {
	for key, value := range c.headers {
		request.Header.Set(key, value)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(request.Header))
}

// StatusError turns a non-2xx reply into a transport error. 5xx and 429
// are marked recoverable.
func StatusError(response *http.Response, endpoint string) error {
	payload, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
	detail := response.Status
	var decoded struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &decoded); err == nil && strings.TrimSpace(decoded.Error) != "" {
		detail = strings.TrimSpace(decoded.Error)
	}
	recoverable := response.StatusCode >= 500 || response.StatusCode == http.StatusTooManyRequests
	return errors.Transport(response.StatusCode, detail, nil).
		WithContext("endpoint", endpoint).
		WithRecoverable(recoverable)
}

func cloneHeaders(headers map[string]string) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	out := make(map[string]string, len(headers))
	for key, value := range headers {
		out[key] = value
	}
	return out
}
