// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package process controls the dedicated server OS process: discovery by
// name, pid and uptime reporting, starting via the configured launch
// command, and stopping gracefully through the REST facade with a
// force-kill fallback.
package process

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	gopsproc "github.com/shirou/gopsutil/v3/process"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/gameserver"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
)

// Controller is the process control surface consumed by the supervisory
// core. Satisfied by *LocalController.
type Controller interface {
	// IsRunning reports whether the server process currently exists.
	IsRunning() bool

	// Pid returns the server process id, or false if not running.
	Pid() (int32, bool)

	// UptimeSeconds returns how long the current process has been alive,
	// or 0 when not running.
	UptimeSeconds() float64

	// Start launches the server process.
	Start(ctx context.Context) error

	// Stop shuts the server down: announce, graceful REST shutdown, then
	// force kill if the process outlives the grace period.
	Stop(ctx context.Context) error
}

// LocalController manages a server process on the local machine.
type LocalController struct {
	cfg    config.ProcessConfig
	facade gameserver.API
}

// NewLocalController creates a controller for the configured process.
// The facade is used for the graceful half of Stop; it may be a breaker-
// wrapped client.
func NewLocalController(cfg config.ProcessConfig, facade gameserver.API) *LocalController {
	return &LocalController{cfg: cfg, facade: facade}
}

// findProcess locates the server process by name substring match.
func (c *LocalController) findProcess() *gopsproc.Process {
	procs, err := gopsproc.Processes()
	if err != nil {
		logging.Warn().Err(err).Msg("Process enumeration failed")
		return nil
	}

	for _, p := range procs {
		name, err := p.Name()
		if err != nil {
			continue
		}
		if strings.Contains(name, c.cfg.Name) {
			return p
		}
	}
	return nil
}

// IsRunning implements Controller.
func (c *LocalController) IsRunning() bool {
	return c.findProcess() != nil
}

// Pid implements Controller.
func (c *LocalController) Pid() (int32, bool) {
	p := c.findProcess()
	if p == nil {
		return 0, false
	}
	return p.Pid, true
}

// UptimeSeconds implements Controller.
func (c *LocalController) UptimeSeconds() float64 {
	p := c.findProcess()
	if p == nil {
		return 0
	}

	createdMs, err := p.CreateTime()
	if err != nil {
		return 0
	}
	created := time.UnixMilli(createdMs)
	return time.Since(created).Seconds()
}

// Start implements Controller. The launch command is expected to fork the
// actual server; the controller does not hold on to the child beyond
// reaping it.
func (c *LocalController) Start(_ context.Context) error {
	if c.IsRunning() {
		return fmt.Errorf("server process %q is already running", c.cfg.Name)
	}

	cmd := exec.Command(c.cfg.StartCommand, c.cfg.StartArgs...) //nolint:gosec // Command comes from operator configuration
	cmd.Dir = c.cfg.WorkDir

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start %s: %w", c.cfg.StartCommand, err)
	}

	logging.Info().
		Str("command", c.cfg.StartCommand).
		Int("pid", cmd.Process.Pid).
		Msg("Server start command launched")

	// Reap the launcher so it does not linger as a zombie.
	go func() {
		if err := cmd.Wait(); err != nil {
			logging.Warn().Err(err).Msg("Server launch command exited with error")
		}
	}()

	return nil
}

// Stop implements Controller. The sequence is announce, REST shutdown with
// the configured grace period, poll for exit, then force kill. Each step
// degrades to the next: an unreachable facade (server already hung) falls
// straight through to termination.
func (c *LocalController) Stop(ctx context.Context) error {
	proc := c.findProcess()
	if proc == nil {
		return nil
	}

	grace := time.Duration(c.cfg.StopGraceSeconds) * time.Second

	if err := c.facade.Announce(ctx, c.cfg.StopMessage); err != nil {
		logging.Warn().Err(err).Msg("Stop announcement failed")
	}
	if err := c.facade.RequestShutdown(ctx, c.cfg.StopGraceSeconds, c.cfg.StopMessage); err != nil {
		logging.Warn().Err(err).Msg("Graceful shutdown request failed, will terminate process")
	}

	if c.waitForExit(ctx, proc, grace+10*time.Second) {
		logging.Info().Msg("Server process exited gracefully")
		return nil
	}

	logging.Warn().Int32("pid", proc.Pid).Msg("Server process outlived grace period, terminating")
	if err := proc.Terminate(); err != nil {
		logging.Warn().Err(err).Msg("SIGTERM failed, killing process")
		if err := proc.Kill(); err != nil {
			return fmt.Errorf("kill pid %d: %w", proc.Pid, err)
		}
	}

	if !c.waitForExit(ctx, proc, 10*time.Second) {
		return fmt.Errorf("server process %d did not exit after kill", proc.Pid)
	}
	return nil
}

// waitForExit polls until the process disappears, the deadline passes, or
// the context is canceled. Returns true if the process exited.
func (c *LocalController) waitForExit(ctx context.Context, proc *gopsproc.Process, deadline time.Duration) bool {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	timeout := time.NewTimer(deadline)
	defer timeout.Stop()

	for {
		running, err := proc.IsRunning()
		if err != nil || !running {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-timeout.C:
			return false
		case <-ticker.C:
		}
	}
}
