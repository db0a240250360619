// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package supervisor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
)

// HTTPServer matches *http.Server's lifecycle methods.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// OpsService runs the ops HTTP endpoint under the supervision tree. The
// server's blocking ListenAndServe runs in a goroutine; tree shutdown
// cancels the service context, which drains in-flight requests within the
// configured timeout before letting the tree proceed.
//
// The ops endpoint is deliberately the last layer in the tree so that
// /healthz and /metrics stay reachable while the trackers wind down.
type OpsService struct {
	server HTTPServer
	addr   string
	drain  time.Duration
}

// NewOpsService wraps the ops endpoint as a supervised service. The listen
// address is taken from the server when it is an *http.Server so supervision
// logs name the socket being served.
func NewOpsService(server HTTPServer, drainTimeout time.Duration) *OpsService {
	if drainTimeout <= 0 {
		drainTimeout = 10 * time.Second
	}
	addr := "unknown"
	if hs, ok := server.(*http.Server); ok && hs.Addr != "" {
		addr = hs.Addr
	}
	return &OpsService{server: server, addr: addr, drain: drainTimeout}
}

// Serve implements suture.Service. http.ErrServerClosed is the expected
// shutdown signal and converts to nil; anything else restarts the service.
func (s *OpsService) Serve(ctx context.Context) error {
	logging.Info().Str("addr", s.addr).Msg("Ops endpoint listening")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops endpoint on %s failed: %w", s.addr, err)
		}
		return nil

	case <-ctx.Done():
		// The service context is already canceled; draining gets its own.
		logging.Info().Str("addr", s.addr).Dur("timeout", s.drain).Msg("Ops endpoint draining")
		drainCtx, cancel := context.WithTimeout(context.Background(), s.drain)
		defer cancel()

		if err := s.server.Shutdown(drainCtx); err != nil {
			return fmt.Errorf("ops endpoint drain failed: %w", err)
		}
		<-errCh
		return ctx.Err()
	}
}

// String implements fmt.Stringer for supervision logs.
func (s *OpsService) String() string {
	return "ops-endpoint"
}
