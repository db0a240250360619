// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package ops serves the operational HTTP surface: Prometheus metrics,
// liveness, aggregate status, and backup listing/triggering.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/supersunho/docker-palworld-server-sub000/internal/backup"
	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/health"
	"github.com/supersunho/docker-palworld-server-sub000/internal/idle"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
)

// HealthSource exposes the latest process observation.
type HealthSource interface {
	Status() health.ProcessStatus
}

// IdleSource exposes idle supervision state.
type IdleSource interface {
	Stats() idle.Stats
}

// PresenceSource exposes the latest player snapshot.
type PresenceSource interface {
	CurrentCount() int
	CurrentMembers() []string
}

// BackupSource lists archives and creates manual ones.
type BackupSource interface {
	List() []backup.Record
	CreateManual(ctx context.Context) (backup.Record, error)
}

// Sources aggregates the supervisor components the ops endpoint reads.
type Sources struct {
	Health   HealthSource
	Idle     IdleSource
	Presence PresenceSource
	Backups  BackupSource
}

// Status is the aggregate supervisor state: one coherent snapshot across
// process health, idle supervision, presence, and the backup inventory. It
// doubles as the /api/v1/status wire shape.
type Status struct {
	Process health.ProcessStatus `json:"process"`
	Idle    idle.Stats           `json:"idle"`
	Players struct {
		Count   int      `json:"count"`
		Members []string `json:"members"`
	} `json:"players"`
	BackupCount int       `json:"backup_count"`
	Timestamp   time.Time `json:"timestamp"`
}

// CollectStatus reads every source once and assembles the snapshot.
func CollectStatus(src Sources) Status {
	var s Status
	s.Process = src.Health.Status()
	s.Idle = src.Idle.Stats()
	s.Players.Count = src.Presence.CurrentCount()
	s.Players.Members = src.Presence.CurrentMembers()
	s.BackupCount = len(src.Backups.List())
	s.Timestamp = time.Now()
	return s
}

// NewRouter builds the ops HTTP routes.
func NewRouter(src Sources) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok")) //nolint:errcheck // Liveness write
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, CollectStatus(src))
		})

		r.Get("/backups", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, src.Backups.List())
		})

		r.Post("/backups", func(w http.ResponseWriter, req *http.Request) {
			rec, err := src.Backups.CreateManual(req.Context())
			if err != nil {
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
				return
			}
			writeJSON(w, http.StatusCreated, rec)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn().Err(err).Msg("Ops response encoding failed")
	}
}

// NewServer builds the ops http.Server from configuration.
func NewServer(cfg config.OpsConfig, src Sources) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(src),
		ReadHeaderTimeout: 10 * time.Second,
	}
}
