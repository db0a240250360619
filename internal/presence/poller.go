// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package presence tracks who is connected to the dedicated server by
// polling the REST facade and diffing consecutive player snapshots.
package presence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
	"github.com/supersunho/docker-palworld-server-sub000/internal/gameserver"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/metrics"
)

// Poller polls the player list on a fixed interval and emits PlayerJoined
// and PlayerLeft events for the differences between consecutive snapshots.
//
// The first successful poll after startup establishes the baseline without
// emitting events, so players already online when the supervisor comes up
// are not announced as fresh arrivals. A poll that fails even after retries
// skips the cycle entirely: the previous snapshot is preserved and no
// phantom departures are produced.
type Poller struct {
	facade gameserver.API
	router *events.Router
	cfg    config.PresenceConfig
	retry  gameserver.RetryPolicy

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	snapshot map[string]gameserver.Player
	seeded   bool
}

// NewPoller creates a presence poller. Events flow to the router; the
// facade is typically breaker-wrapped.
func NewPoller(cfg config.PresenceConfig, facade gameserver.API, router *events.Router) *Poller {
	return &Poller{
		facade: facade,
		router: router,
		cfg:    cfg,
		retry: gameserver.RetryPolicy{
			MaxAttempts: cfg.RetryAttempts,
			BaseDelay:   cfg.RetryDelay,
		},
		snapshot: make(map[string]gameserver.Player),
	}
}

// Serve implements suture.Service. It runs the poll loop until the context
// is canceled or Stop is called.
func (p *Poller) Serve(ctx context.Context) error {
	if err := p.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		p.Stop()
		return ctx.Err()
	case <-p.stopChan:
		return nil
	}
}

// Start begins the background poll loop.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.stopChan = make(chan struct{})

	p.wg.Add(1)
	go p.pollLoop(ctx)

	logging.Info().
		Dur("interval", p.cfg.Interval).
		Msg("Presence poller started")
	return nil
}

// Stop halts the poll loop and waits for the in-flight cycle to finish.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.stopChan)
	p.mu.Unlock()

	p.wg.Wait()
	logging.Info().Msg("Presence poller stopped")
}

// IsRunning reports whether the poll loop is active.
func (p *Poller) IsRunning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Seed promptly rather than waiting a full interval.
	p.pollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopChan:
			return
		case <-ticker.C:
			p.pollOnce(ctx)
		}
	}
}

// pollOnce performs one poll cycle: fetch with retry, diff, dispatch.
func (p *Poller) pollOnce(ctx context.Context) {
	timer := prometheus.NewTimer(metrics.PollDuration.WithLabelValues("presence"))
	defer timer.ObserveDuration()

	var players []gameserver.Player
	err := p.retry.Do(ctx, func() error {
		var err error
		players, err = p.facade.GetPlayers(ctx)
		return err
	})
	if err != nil {
		// Skip the cycle. The previous snapshot stands so the next
		// successful poll diffs against real state, not an empty one.
		metrics.PollsTotal.WithLabelValues("presence", "failure").Inc()
		logging.Warn().Err(err).Msg("Presence poll failed, skipping cycle")
		return
	}
	metrics.PollsTotal.WithLabelValues("presence", "success").Inc()

	current := make(map[string]gameserver.Player, len(players))
	for _, pl := range players {
		current[identityKey(pl)] = pl
	}
	metrics.PlayersOnline.Set(float64(len(current)))

	p.mu.Lock()
	previous := p.snapshot
	seeded := p.seeded
	p.snapshot = current
	p.seeded = true
	p.mu.Unlock()

	if !seeded {
		logging.Info().
			Int("players", len(current)).
			Msg("Presence baseline established")
		return
	}

	p.dispatchDiff(ctx, previous, current)
}

// dispatchDiff emits one event per membership change, departures before
// arrivals, each group ordered by player name for deterministic output.
func (p *Poller) dispatchDiff(ctx context.Context, previous, current map[string]gameserver.Player) {
	var left, joined []gameserver.Player

	for key, pl := range previous {
		if _, ok := current[key]; !ok {
			left = append(left, pl)
		}
	}
	for key, pl := range current {
		if _, ok := previous[key]; !ok {
			joined = append(joined, pl)
		}
	}
	if len(left) == 0 && len(joined) == 0 {
		return
	}

	sort.Slice(left, func(i, j int) bool { return left[i].Name < left[j].Name })
	sort.Slice(joined, func(i, j int) bool { return joined[i].Name < joined[j].Name })

	count := len(current)
	for _, pl := range left {
		logging.Info().Str("player", pl.Name).Int("online", count).Msg("Player left")
		p.router.Dispatch(ctx, events.NewPlayerLeft(pl.Name, count))
	}
	for _, pl := range joined {
		logging.Info().Str("player", pl.Name).Int("online", count).Msg("Player joined")
		p.router.Dispatch(ctx, events.NewPlayerJoined(pl.Name, count))
	}
}

// CurrentCount returns the number of players in the latest snapshot.
func (p *Poller) CurrentCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.snapshot)
}

// CurrentMembers returns the latest snapshot's player names, sorted.
func (p *Poller) CurrentMembers() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	names := make([]string, 0, len(p.snapshot))
	for _, pl := range p.snapshot {
		names = append(names, pl.Name)
	}
	sort.Strings(names)
	return names
}

// identityKey picks the most stable identifier available for diffing.
// Names alone collide when a player reconnects under a different session.
func identityKey(pl gameserver.Player) string {
	if pl.PlayerID != "" {
		return pl.PlayerID
	}
	if pl.AccountID != "" {
		return pl.AccountID
	}
	return pl.Name
}
