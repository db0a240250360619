// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package backup

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
	"github.com/supersunho/docker-palworld-server-sub000/internal/gameserver"
	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/metrics"
)

// Manager schedules archive creation and retention cleanup. Creation and
// cleanup run on independent tickers inside one Serve loop; neither blocks
// the trackers, which only learn of outcomes through events.
type Manager struct {
	cfg    config.BackupConfig
	store  *Store
	policy RetentionPolicy
	facade gameserver.API
	router *events.Router

	mu       sync.RWMutex
	running  bool
	stopChan chan struct{}
	wg       sync.WaitGroup

	// creating serializes archive passes launched off the scheduler loop.
	creating atomic.Bool
}

// NewManager creates a backup manager over the given store. The facade is
// used to ask the server for a world save before each archive; nil disables
// that step (for tests and offline archiving).
func NewManager(cfg config.BackupConfig, store *Store, facade gameserver.API, router *events.Router) *Manager {
	return &Manager{
		cfg:    cfg,
		store:  store,
		policy: PolicyFromConfig(cfg),
		facade: facade,
		router: router,
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

// Start launches the create and cleanup schedulers.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}
	m.running = true
	m.stopChan = make(chan struct{})

	m.wg.Add(2)
	go m.createLoop(ctx)
	go m.cleanupLoop(ctx)

	logging.Info().
		Bool("enabled", m.cfg.Enabled).
		Dur("create_interval", m.cfg.CreateInterval).
		Dur("cleanup_interval", m.cfg.CleanupInterval).
		Msg("Backup manager started")
	return nil
}

// Stop halts both schedulers and waits for in-flight work.
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
	logging.Info().Msg("Backup manager stopped")
}

// IsRunning reports whether the schedulers are active.
func (m *Manager) IsRunning() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.running
}

// List returns all tracked archives, oldest first.
func (m *Manager) List() []Record {
	return m.store.List()
}

func (m *Manager) createLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CreateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			if m.cfg.Enabled {
				// Tier comes from the tick's calendar position, not from
				// whenever the archive pass gets around to running.
				m.spawnCreate(ctx, m.tierForTime(time.Now()))
			}
		}
	}
}

// spawnCreate runs one archive pass in the background so a slow save or a
// large save directory never delays subsequent scheduling ticks. Passes are
// serialized: a tick arriving while one is in flight is skipped, not queued.
func (m *Manager) spawnCreate(ctx context.Context, tier Tier) {
	if !m.creating.CompareAndSwap(false, true) {
		logging.Debug().Str("tier", string(tier)).Msg("Backup pass already in flight, skipping tick")
		return
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer m.creating.Store(false)

		if _, err := m.create(ctx, tier); err != nil {
			logging.Error().Err(err).Msg("Scheduled backup failed")
		}
	}()
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopChan:
			return
		case <-ticker.C:
			if m.cfg.Enabled {
				m.RunCleanup(ctx)
			}
		}
	}
}

// tierForTime maps a creation tick to its retention tier. Monthly wins over
// weekly when both calendar windows match.
func (m *Manager) tierForTime(now time.Time) Tier {
	if now.Day() == m.cfg.MonthlyDay && now.Hour() == m.cfg.MonthlyHour {
		return TierMonthly
	}
	if int(now.Weekday()) == m.cfg.WeeklyDay && now.Hour() == m.cfg.WeeklyHour {
		return TierWeekly
	}
	return TierDaily
}

// CreateManual creates an operator-requested archive immediately.
func (m *Manager) CreateManual(ctx context.Context) (Record, error) {
	return m.create(ctx, TierManual)
}

// create runs one archive pass: flush the world to disk, archive the save
// directory, record it, announce the outcome.
func (m *Manager) create(ctx context.Context, tier Tier) (Record, error) {
	start := time.Now()

	if m.facade != nil {
		// Best effort: a failed save still leaves a consistent-enough save
		// directory from the server's own autosave.
		if err := m.facade.Save(ctx); err != nil {
			logging.Warn().Err(err).Msg("Pre-backup world save failed, archiving current state")
		}
	}

	rec, err := m.store.Create(ctx, m.cfg.SourceDir, tier)
	if err != nil {
		metrics.BackupsTotal.WithLabelValues(string(tier), "failure").Inc()
		logging.Error().Err(err).Str("tier", string(tier)).Msg("Backup creation failed")
		m.router.Dispatch(ctx, events.NewBackupFailed(fmt.Sprintf("backup (%s) failed: %v", tier, err)))
		return Record{}, err
	}

	metrics.BackupsTotal.WithLabelValues(string(tier), "success").Inc()
	metrics.BackupSizeBytes.Set(float64(m.store.TotalSizeBytes()))
	logging.Info().
		Str("filename", rec.Filename).
		Str("tier", string(tier)).
		Int64("size_bytes", rec.SizeBytes).
		Dur("elapsed", time.Since(start)).
		Msg("Backup created")

	m.router.Dispatch(ctx, events.NewBackupCompleted(events.BackupInfo{
		Filename:  rec.Filename,
		SizeBytes: rec.SizeBytes,
		Tier:      string(rec.Tier),
	}))
	return rec, nil
}

// RunCleanup applies the retention policy once and returns how many
// archives were deleted. Individual delete failures are logged and skipped;
// the next pass retries them.
func (m *Manager) RunCleanup(ctx context.Context) int {
	victims := m.policy.Victims(m.store.List(), time.Now())
	if len(victims) == 0 {
		return 0
	}

	deleted := 0
	for _, rec := range victims {
		if ctx.Err() != nil {
			break
		}
		if err := m.store.Remove(rec.ID); err != nil {
			metrics.BackupDeletionsTotal.WithLabelValues("failure").Inc()
			logging.Warn().Err(err).Str("filename", rec.Filename).Msg("Backup deletion failed")
			continue
		}
		metrics.BackupDeletionsTotal.WithLabelValues("success").Inc()
		deleted++
	}

	metrics.BackupSizeBytes.Set(float64(m.store.TotalSizeBytes()))
	logging.Info().
		Int("deleted", deleted).
		Int("eligible", len(victims)).
		Msg("Backup retention pass completed")
	return deleted
}
