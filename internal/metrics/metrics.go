// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package metrics provides Prometheus instrumentation for the supervisor:
// poll cycles, event dispatch, idle restarts, backups, and the REST facade
// circuit breaker. All collectors are registered via promauto and exposed
// through the ops HTTP endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll cycle metrics

	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_polls_total",
			Help: "Total number of poll cycles by component and result",
		},
		[]string{"component", "result"}, // result: "success", "failure", "skipped"
	)

	PollDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "supervisor_poll_duration_seconds",
			Help:    "Duration of poll cycles in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"component"},
	)

	PlayersOnline = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_players_online",
			Help: "Current number of players on the managed server",
		},
	)

	ServerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_server_running",
			Help: "Whether the managed server process is running (1) or not (0)",
		},
	)

	// Event dispatch metrics

	EventsDispatched = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_events_dispatched_total",
			Help: "Total number of events dispatched by kind",
		},
		[]string{"kind"},
	)

	HandlerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_handler_failures_total",
			Help: "Total number of event handler failures by kind",
		},
		[]string{"kind"},
	)

	// Idle restart metrics

	IdleSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_idle_seconds",
			Help: "Current continuous zero-player duration in seconds",
		},
	)

	IdleRestartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_idle_restarts_total",
			Help: "Total number of idle-triggered restart workflows by result",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Backup metrics

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_backups_total",
			Help: "Total number of backup archives created by tier and result",
		},
		[]string{"tier", "result"},
	)

	BackupDeletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_backup_deletions_total",
			Help: "Total number of backup records deleted by retention passes",
		},
		[]string{"result"},
	)

	BackupSizeBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "supervisor_backup_size_bytes",
			Help: "Total disk space used by retained backups",
		},
	)

	// REST facade circuit breaker metrics

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "supervisor_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "supervisor_circuit_breaker_requests_total",
			Help: "Total circuit breaker requests by outcome",
		},
		[]string{"name", "outcome"}, // "success", "failure", "rejected"
	)
)
