// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

// Package httpserver builds the echo instances behind the directory and agent
// facades and runs them until their context ends.
package httpserver

import (
	"context"
	stderrors "errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"
)

// DefaultShutdownTimeout bounds graceful shutdown in Run.
const DefaultShutdownTimeout = 10 * time.Second

// New returns an echo instance with slog request logging and panic recovery.
func New(logger *slog.Logger) *echo.Echo {
	if logger == nil {
		logger = slog.Default()
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			if v.Error != nil {
				level = slog.LevelWarn
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			if v.Status >= http.StatusInternalServerError {
				level = slog.LevelError
			}
			logger.LogAttrs(c.Request().Context(), level, "http.request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logger.ErrorContext(c.Request().Context(), "http.panic",
				"path", c.Path(),
				"error", err,
				"stack", string(stack),
			)
			return err
		},
	}))
	return e
}

// Run serves e on addr until ctx is cancelled, then shuts it down gracefully.
func Run(ctx context.Context, e *echo.Echo, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http.listen", "addr", addr)
		if err := e.Start(addr); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		logger.Info("http.shutdown", "addr", addr)
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
