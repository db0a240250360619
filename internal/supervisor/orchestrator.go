// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package supervisor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/supersunho/docker-palworld-server-sub000/internal/backup"
	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
	"github.com/supersunho/docker-palworld-server-sub000/internal/gameserver"
	"github.com/supersunho/docker-palworld-server-sub000/internal/health"
	"github.com/supersunho/docker-palworld-server-sub000/internal/idle"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/notify"
	"github.com/supersunho/docker-palworld-server-sub000/internal/ops"
	"github.com/supersunho/docker-palworld-server-sub000/internal/presence"
	"github.com/supersunho/docker-palworld-server-sub000/internal/process"
)

// Orchestrator constructs every component from configuration, wires the
// event flow, and runs them under the supervision tree.
//
// Construction order is dependency order: the facade first, then the
// process controller, then trackers over both, with the router threaded
// through everything. All handler registration happens here, before any
// tracker starts, so the router needs no locking at dispatch time.
type Orchestrator struct {
	cfg  *config.Config
	tree *Tree

	facade   gameserver.API
	ctrl     process.Controller
	router   *events.Router
	poller   *presence.Poller
	monitor  *health.Monitor
	idleMgr  *idle.Manager
	backups  *backup.Manager
	notifier *notify.Notifier
}

// New builds the full component graph from configuration.
func New(cfg *config.Config) (*Orchestrator, error) {
	var facade gameserver.API = gameserver.NewClient(&cfg.Server)
	if cfg.Server.BreakerEnabled {
		facade = gameserver.NewBreakerClient(facade)
	}

	ctrl := process.NewLocalController(cfg.Process, facade)
	router := events.NewRouter()

	poller := presence.NewPoller(cfg.Presence, facade, router)
	monitor := health.NewMonitor(cfg.Health, ctrl, facade, poller, router)
	idleMgr := idle.NewManager(cfg.Idle, ctrl, poller, router)

	store, err := backup.NewStore(cfg.Backup.Dir)
	if err != nil {
		return nil, fmt.Errorf("open backup store: %w", err)
	}
	backups := backup.NewManager(cfg.Backup, store, facade, router)

	notifier := notify.NewNotifier(cfg.Discord)
	notifier.RegisterOn(router)

	o := &Orchestrator{
		cfg:      cfg,
		facade:   facade,
		ctrl:     ctrl,
		router:   router,
		poller:   poller,
		monitor:  monitor,
		idleMgr:  idleMgr,
		backups:  backups,
		notifier: notifier,
	}
	o.buildTree()
	return o, nil
}

// buildTree places each component in its supervision layer.
func (o *Orchestrator) buildTree() {
	logger := slog.New(logging.NewSlogHandler())
	o.tree = NewTree(logger, DefaultTreeConfig())

	o.tree.AddMonitoringService(named{"presence-poller", o.poller})
	o.tree.AddMonitoringService(named{"health-monitor", o.monitor})
	o.tree.AddMaintenanceService(named{"idle-manager", o.idleMgr})
	o.tree.AddMaintenanceService(named{"backup-manager", o.backups})

	if o.cfg.Ops.Enabled {
		server := ops.NewServer(o.cfg.Ops, o.sources())
		o.tree.AddOpsService(NewOpsService(server, o.cfg.Ops.ShutdownTimeout))
	}
}

// sources bundles the components the aggregate status reads from.
func (o *Orchestrator) sources() ops.Sources {
	return ops.Sources{
		Health:   o.monitor,
		Idle:     o.idleMgr,
		Presence: o.poller,
		Backups:  o.backups,
	}
}

// Status returns one coherent snapshot of supervisor state. It works whether
// or not the ops endpoint is enabled; the endpoint serves the same snapshot.
func (o *Orchestrator) Status() ops.Status {
	return ops.CollectStatus(o.sources())
}

// Router exposes the event router for additional setup-time registrations.
func (o *Orchestrator) Router() *events.Router {
	return o.router
}

// Serve runs the supervision tree until the context is canceled. Services
// that ignore their shutdown deadline are reported before returning.
func (o *Orchestrator) Serve(ctx context.Context) error {
	logging.Info().
		Str("api_url", o.cfg.Server.APIURL).
		Bool("breaker", o.cfg.Server.BreakerEnabled).
		Bool("idle_restart", o.cfg.Idle.Enabled).
		Bool("backups", o.cfg.Backup.Enabled).
		Msg("Supervisor starting")

	err := o.tree.Serve(ctx)

	if unstopped, reportErr := o.tree.UnstoppedServiceReport(); reportErr == nil {
		for _, svc := range unstopped {
			logging.Warn().
				Str("service", svc.Name).
				Msg("Service did not stop within shutdown timeout")
		}
	}

	logging.Info().Msg("Supervisor stopped")
	return err
}

// named gives a suture service a stable log name.
type named struct {
	name string
	svc  interface {
		Serve(ctx context.Context) error
	}
}

func (n named) Serve(ctx context.Context) error { return n.svc.Serve(ctx) }
func (n named) String() string                  { return n.name }
