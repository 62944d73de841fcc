// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package discovery

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jllopis/a2a/pkg/protocol"
)

const registerTimeout = 5 * time.Second

// Registrar registers agents. *client.Directory implements it.
type Registrar interface {
	Register(ctx context.Context, params protocol.RegisterParams) (protocol.RegisterResult, error)
}

// KeepRegistered registers params now and then every interval until ctx is
// done, so the record survives a directory TTL.
//
// With interval <= 0 it registers once and returns that error. Otherwise
// failures are logged and retried on the next tick, and it returns nil when
// ctx is done.
func KeepRegistered(ctx context.Context, directory Registrar, params protocol.RegisterParams, interval time.Duration, logger *slog.Logger) error {
	if directory == nil {
		return errors.New("directory not configured")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("agent_id", params.AgentID)

	register := func() error {
		ctx, cancel := context.WithTimeout(ctx, registerTimeout)
		defer cancel()
		result, err := directory.Register(ctx, params)
		if err != nil {
			logger.WarnContext(ctx, "discovery.register.failed", "error", err)
			return err
		}
		logger.DebugContext(ctx, "discovery.register", "status", result.Status)
		return nil
	}

	err := register()
	if interval <= 0 {
		return err
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_ = register()
		}
	}
}
