// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package health monitors the dedicated server on two cadences: a fast
// process status check and a slower deep check against the REST facade.
package health

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
	"github.com/supersunho/docker-palworld-server-sub000/internal/gameserver"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/metrics"
	"github.com/supersunho/docker-palworld-server-sub000/internal/process"
)

// PlayerCounter exposes the size of the latest presence snapshot.
// Satisfied by *presence.Poller.
type PlayerCounter interface {
	CurrentCount() int
}

// ProcessStatus is one observation of the server process.
type ProcessStatus struct {
	Running       bool      `json:"running"`
	Pid           int32     `json:"pid,omitempty"`
	UptimeSeconds float64   `json:"uptime_seconds,omitempty"`
	PlayerCount   int       `json:"player_count"`
	LastCheck     time.Time `json:"last_check"`
}

// Monitor watches the server process and its reported health.
//
// The fast cycle compares consecutive ProcessStatus observations and emits
// a StatusChanged event on every transition. A pid change between two
// running observations is reported as an unexpected restart, distinct from
// a stop/start pair, because the supervisor never saw the process down.
//
// The deep cycle runs only while the process is up. All issues found in
// one deep check travel together in a single HealthWarning event.
type Monitor struct {
	cfg     config.HealthConfig
	ctrl    process.Controller
	facade  gameserver.API
	router  *events.Router
	players PlayerCounter

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	last   ProcessStatus
	seeded bool
}

// NewMonitor creates a health monitor.
func NewMonitor(cfg config.HealthConfig, ctrl process.Controller, facade gameserver.API, players PlayerCounter, router *events.Router) *Monitor {
	return &Monitor{
		cfg:     cfg,
		ctrl:    ctrl,
		facade:  facade,
		router:  router,
		players: players,
	}
}

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
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

// Start launches the status and deep check loops.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopChan = make(chan struct{})

	m.wg.Add(2)
	go m.statusLoop(ctx)
	go m.deepLoop(ctx)

	logging.Info().
		Dur("status_interval", m.cfg.StatusInterval).
		Dur("deep_interval", m.cfg.DeepInterval).
		Msg("Health monitor started")
	return nil
}

// Stop halts both loops and waits for in-flight checks.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	close(m.stopChan)
	m.mu.Unlock()

	m.wg.Wait()
	logging.Info().Msg("Health monitor stopped")
}

// IsRunning reports whether the monitor loops are active.
func (m *Monitor) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// Status returns the latest process observation.
func (m *Monitor) Status() ProcessStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

func (m *Monitor) statusLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.StatusInterval)
	defer ticker.Stop()

	m.checkStatus(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.checkStatus(ctx)
		}
	}
}

func (m *Monitor) deepLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.DeepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			m.deepCheck(ctx)
		}
	}
}

// checkStatus performs one fast cycle: observe the process and emit a
// StatusChanged event if its state differs from the previous observation.
func (m *Monitor) checkStatus(ctx context.Context) {
	status := m.observe()

	if status.Running {
		metrics.ServerRunning.Set(1)
	} else {
		metrics.ServerRunning.Set(0)
	}

	m.mu.Lock()
	previous := m.last
	seeded := m.seeded
	m.last = status
	m.seeded = true
	m.mu.Unlock()

	if !seeded {
		logging.Info().
			Bool("running", status.Running).
			Int32("pid", status.Pid).
			Msg("Process status baseline established")
		return
	}

	switch {
	case !previous.Running && status.Running:
		m.emitTransition(ctx, "Server process started", status)
	case previous.Running && !status.Running:
		m.emitTransition(ctx, "Server process stopped", status)
	case previous.Running && status.Running && previous.Pid != status.Pid:
		// The process was replaced between observations without the
		// supervisor ever seeing it down.
		m.emitTransition(ctx, fmt.Sprintf("Server process restarted unexpectedly (pid %d -> %d)", previous.Pid, status.Pid), status)
	}
}

func (m *Monitor) observe() ProcessStatus {
	pid, running := m.ctrl.Pid()
	status := ProcessStatus{
		Running:     running,
		Pid:         pid,
		PlayerCount: m.players.CurrentCount(),
		LastCheck:   time.Now(),
	}
	if running {
		status.UptimeSeconds = m.ctrl.UptimeSeconds()
	}
	return status
}

func (m *Monitor) emitTransition(ctx context.Context, message string, status ProcessStatus) {
	logging.Info().
		Bool("running", status.Running).
		Int32("pid", status.Pid).
		Msg(message)

	details := map[string]string{
		"running": strconv.FormatBool(status.Running),
	}
	if status.Running {
		details["pid"] = strconv.FormatInt(int64(status.Pid), 10)
		details["uptime_seconds"] = strconv.FormatFloat(status.UptimeSeconds, 'f', 0, 64)
	}

	m.router.Dispatch(ctx, events.NewStatusChanged(message, details))
}

// deepCheck performs one slow cycle against the REST facade. It is skipped
// entirely while the process is down; a stopped server is a status concern,
// not a health one.
func (m *Monitor) deepCheck(ctx context.Context) {
	if !m.ctrl.IsRunning() {
		return
	}

	timer := prometheus.NewTimer(metrics.PollDuration.WithLabelValues("health"))
	defer timer.ObserveDuration()

	var issues []string
	details := map[string]string{}

	start := time.Now()
	_, err := m.facade.GetInfo(ctx)
	latency := time.Since(start)

	switch {
	case err != nil:
		metrics.PollsTotal.WithLabelValues("health", "failure").Inc()
		issues = append(issues, fmt.Sprintf("REST API unreachable: %v", err))
	case latency > m.cfg.LatencyThreshold:
		metrics.PollsTotal.WithLabelValues("health", "success").Inc()
		issues = append(issues, fmt.Sprintf("REST API slow: %s (threshold %s)", latency.Round(time.Millisecond), m.cfg.LatencyThreshold))
		details["latency_ms"] = strconv.FormatInt(latency.Milliseconds(), 10)
	default:
		metrics.PollsTotal.WithLabelValues("health", "success").Inc()
	}

	uptime := m.ctrl.UptimeSeconds()
	if m.cfg.LongRunningUptime > 0 && uptime > m.cfg.LongRunningUptime.Seconds() && m.players.CurrentCount() == 0 {
		issues = append(issues, fmt.Sprintf("Server up %s with no players online, restart recommended", (time.Duration(uptime)*time.Second).Round(time.Hour)))
		details["uptime_seconds"] = strconv.FormatFloat(uptime, 'f', 0, 64)
	}

	if len(issues) > 0 {
		logging.Warn().
			Strs("issues", issues).
			Msg("Deep health check found issues")
		m.router.Dispatch(ctx, events.NewHealthWarning(issues, details))
	}

	m.checkPerformance(ctx)
}

// checkPerformance compares reported server FPS against the configured
// floor. Performance degradation is its own event kind so handlers can
// treat it differently from availability warnings.
func (m *Monitor) checkPerformance(ctx context.Context) {
	sm, err := m.facade.GetMetrics(ctx)
	if err != nil {
		// Unreachability is already covered by the health warning above.
		return
	}

	if m.cfg.MinServerFPS > 0 && sm.ServerFPS > 0 && sm.ServerFPS < m.cfg.MinServerFPS {
		msg := fmt.Sprintf("Server FPS degraded: %d (minimum %d)", sm.ServerFPS, m.cfg.MinServerFPS)
		logging.Warn().
			Int("server_fps", sm.ServerFPS).
			Int("min_fps", m.cfg.MinServerFPS).
			Msg("Server performance degraded")
		m.router.Dispatch(ctx, events.NewPerformanceIssue(msg))
	}
}
