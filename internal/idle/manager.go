// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package idle restarts the dedicated server after a continuous stretch
// with no players online, reclaiming the memory the server leaks over
// long sessions.
package idle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/metrics"
	"github.com/supersunho/docker-palworld-server-sub000/internal/process"
)

// PlayerCounter exposes the size of the latest presence snapshot.
// Satisfied by *presence.Poller.
type PlayerCounter interface {
	CurrentCount() int
}

// Stats is a point-in-time view of idle supervision state.
type Stats struct {
	Idle              bool          `json:"idle"`
	IdleDuration      time.Duration `json:"idle_duration"`
	LongestIdle       time.Duration `json:"longest_idle"`
	TotalRestarts     int           `json:"total_restarts"`
	LastRestartTime   time.Time     `json:"last_restart_time,omitempty"`
	RestartInProgress bool          `json:"restart_in_progress"`
}

// Manager evaluates the idle timer on a fixed cadence and runs the restart
// workflow when the threshold is breached.
//
// The timer only runs while the process is up: a stopped server is never
// "idle". Any nonzero player count clears it. After a restart workflow the
// timer is cleared unconditionally, success or not, so a failed restart is
// re-attempted only after a full fresh idle period.
type Manager struct {
	cfg     config.IdleConfig
	ctrl    process.Controller
	players PlayerCounter
	router  *events.Router

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	idleStart       time.Time
	longestIdle     time.Duration
	totalRestarts   int
	lastRestartTime time.Time
	restarting      bool

	// verifyTimeout bounds the post-start health wait. Overridden in tests.
	verifyTimeout time.Duration
}

// NewManager creates an idle supervisor.
func NewManager(cfg config.IdleConfig, ctrl process.Controller, players PlayerCounter, router *events.Router) *Manager {
	return &Manager{
		cfg:           cfg,
		ctrl:          ctrl,
		players:       players,
		router:        router,
		verifyTimeout: 30 * time.Second,
	}
}

// Serve implements suture.Service.
func (m *Manager) Serve(ctx context.Context) error {
	if err := m.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		m.Stop()
		return ctx.Err()
	case <-m.stopChan:
		return nil
	}
}

// Start launches the idle check loop.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopChan = make(chan struct{})

	m.wg.Add(1)
	go m.checkLoop(ctx)

	logging.Info().
		Bool("enabled", m.cfg.Enabled).
		Dur("threshold", m.cfg.Threshold).
		Msg("Idle supervisor started")
	return nil
}

// Stop halts the check loop, waiting out any in-flight restart workflow.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Idle supervisor stopped")
}

// IsRunning reports whether the check loop is active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Stats returns current idle supervision state.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		LongestIdle:       m.longestIdle,
		TotalRestarts:     m.totalRestarts,
		LastRestartTime:   m.lastRestartTime,
		RestartInProgress: m.restarting,
	}
	if !m.idleStart.IsZero() {
		s.Idle = true
		s.IdleDuration = time.Since(m.idleStart)
	}
	return s
}

func (m *Manager) checkLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// check evaluates the idle timer once.
func (m *Manager) check(ctx context.Context) {
	if !m.cfg.Enabled {
		return
	}

	if !m.ctrl.IsRunning() || m.players.CurrentCount() > 0 {
		m.clearIdle()
		return
	}

	m.mu.Lock()
	if m.idleStart.IsZero() {
		m.idleStart = time.Now()
		m.mu.Unlock()
		logging.Debug().Msg("Server went idle, timer started")
		metrics.IdleSeconds.Set(0)
		return
	}

	idleFor := time.Since(m.idleStart)
	if idleFor > m.longestIdle {
		m.longestIdle = idleFor
	}
	m.mu.Unlock()

	metrics.IdleSeconds.Set(idleFor.Seconds())

	if idleFor >= m.cfg.Threshold {
		m.restart(ctx, idleFor)
	}
}

func (m *Manager) clearIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.idleStart.IsZero() {
		m.idleStart = time.Time{}
		metrics.IdleSeconds.Set(0)
	}
}

// restart runs the idle restart workflow: notify, stop, settle, start,
// verify. The idle timer is cleared unconditionally on the way out so a
// failure does not re-trigger on the very next tick.
func (m *Manager) restart(ctx context.Context, idleFor time.Duration) {
	m.mu.Lock()
	if m.restarting {
		m.mu.Unlock()
		return
	}
	m.restarting = true
	m.mu.Unlock()

	defer func() {
		m.clearIdle()
		m.mu.Lock()
		m.restarting = false
		m.mu.Unlock()
	}()

	idleMinutes := idleFor.Minutes()
	logging.Info().
		Float64("idle_minutes", idleMinutes).
		Msg("Idle threshold breached, restarting server")
	m.router.Dispatch(ctx, events.NewIdleRestartTriggered(idleMinutes))

	if err := m.runWorkflow(ctx); err != nil {
		metrics.IdleRestartsTotal.WithLabelValues("failure").Inc()
		logging.Error().Err(err).Msg("Idle restart failed")
		m.router.Dispatch(ctx, events.NewIdleRestartFailed(err.Error()))
		return
	}

	m.mu.Lock()
	m.totalRestarts++
	m.lastRestartTime = time.Now()
	m.mu.Unlock()

	metrics.IdleRestartsTotal.WithLabelValues("success").Inc()
	logging.Info().Msg("Idle restart completed")
	m.router.Dispatch(ctx, events.NewIdleRestartCompleted(idleMinutes))
}

func (m *Manager) runWorkflow(ctx context.Context) error {
	if err := m.ctrl.Stop(ctx); err != nil {
		return fmt.Errorf("stop server: %w", err)
	}

	select {
	case <-time.After(m.cfg.SettleDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := m.ctrl.Start(ctx); err != nil {
		return fmt.Errorf("start server: %w", err)
	}

	if !m.verifyStarted(ctx) {
		return fmt.Errorf("server did not come back within %s", m.verifyTimeout)
	}
	return nil
}

// verifyStarted polls until the process is observable again.
func (m *Manager) verifyStarted(ctx context.Context) bool {
	deadline := time.NewTimer(m.verifyTimeout)
	defer deadline.Stop()

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if m.ctrl.IsRunning() {
			return true
		}

		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-ticker.C:
		}
	}
}
