// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package main is the entry point for the Palworld server supervisor.
//
// The supervisor sits next to a Palworld dedicated server and keeps it
// healthy over long runs: it tracks who joins and leaves, watches the
// process for crashes and silent restarts, restarts the server after long
// idle stretches to reclaim leaked memory, archives the save directory on
// a tiered schedule, and fans all of it out to Discord and Prometheus.
//
// # Component Architecture
//
// Components initialize in dependency order:
//
//  1. Configuration: Koanf v2 layering defaults, YAML file, env vars
//  2. REST facade: typed client for the server's local API, optionally
//     behind a circuit breaker
//  3. Process controller: discovery, start, graceful stop with force-kill
//     fallback
//  4. Trackers: presence poller, health monitor, idle manager, backup
//     manager, all publishing to one event router
//  5. Ops endpoint: Prometheus metrics, status, backup operations
//
// Everything runs under a suture supervision tree; a crashing tracker is
// restarted with backoff without disturbing the others.
//
// # Configuration
//
// Configuration layers (highest priority wins):
//   - Environment variables with the PALWORLD_ prefix
//     (PALWORLD_SERVER__ADMIN_PASSWORD, PALWORLD_IDLE__THRESHOLD, ...)
//   - Config file (supervisor.yaml, or PALWORLD_CONFIG_PATH)
//   - Built-in defaults
//
// # Signal Handling
//
// SIGINT and SIGTERM trigger graceful shutdown: trackers finish their
// in-flight cycles, the ops server drains, and services that exceed the
// shutdown timeout are reported.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		logging.Error().Err(err).Msg("Supervisor exited with error")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logging.Init(cfg.Logging)

	orch, err := supervisor.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := orch.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
