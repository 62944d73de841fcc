// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package httpserver

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func TestNewLogsRequests(t *testing.T) {
	var logs bytes.Buffer
	e := New(slog.New(slog.NewJSONHandler(&logs, nil)))
	e.GET("/ping", func(c echo.Context) error {
		return c.String(http.StatusOK, "pong")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	for _, want := range []string{`"msg":"http.request"`, `"uri":"/ping"`} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("expected log to contain %s, got %s", want, logs.String())
		}
	}
}

func TestNewRecoversPanics(t *testing.T) {
	var logs bytes.Buffer
	e := New(slog.New(slog.NewJSONHandler(&logs, nil)))
	e.GET("/boom", func(c echo.Context) error {
		panic("kaboom")
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Fatalf("request %d: expected 500, got %d", i, rec.Code)
		}
	}
	if !strings.Contains(logs.String(), "http.panic") {
		t.Errorf("expected panic to be logged, got %s", logs.String())
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := New(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Run(ctx, e, "127.0.0.1:0", nil) }()

	deadline := time.Now().Add(2 * time.Second)
	for e.ListenerAddr() == nil {
		if time.Now().After(deadline) {
			t.Fatal("server did not start listening")
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
