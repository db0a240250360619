// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package idle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
)

// fakeController scripts stop/start outcomes and tracks call order.
type fakeController struct {
	mu       sync.Mutex
	running  bool
	stopErr  error
	startErr error
	calls    []string

	// startFails keeps the process invisible after Start, simulating a
	// launch that never produces a live server.
	startFails bool
}

func (f *fakeController) IsRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeController) Pid() (int32, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		return 1234, true
	}
	return 0, false
}

func (f *fakeController) UptimeSeconds() float64 { return 60 }

func (f *fakeController) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return f.startErr
	}
	if !f.startFails {
		f.running = true
	}
	return nil
}

func (f *fakeController) Stop(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "stop")
	if f.stopErr != nil {
		return f.stopErr
	}
	f.running = false
	return nil
}

func (f *fakeController) callLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

type fixedCount struct {
	mu sync.Mutex
	n  int
}

func (c *fixedCount) set(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n = n
}

func (c *fixedCount) CurrentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.n
}

type capture struct {
	mu     sync.Mutex
	events []events.Event
}

func (c *capture) handler(_ context.Context, ev events.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *capture) kinds() []events.Kind {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]events.Kind, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Kind)
	}
	return out
}

func newTestManager(ctrl *fakeController, count *fixedCount, rec *capture) *Manager {
	router := events.NewRouter()
	router.Register(events.KindIdleRestartTriggered, "capture", rec.handler)
	router.Register(events.KindIdleRestartCompleted, "capture", rec.handler)
	router.Register(events.KindIdleRestartFailed, "capture", rec.handler)

	m := NewManager(config.IdleConfig{
		Enabled:       true,
		Threshold:     30 * time.Minute,
		CheckInterval: time.Hour, // ticks driven manually via check
		SettleDelay:   time.Millisecond,
	}, ctrl, count, router)
	m.verifyTimeout = 100 * time.Millisecond
	return m
}

func TestIdleTimerLifecycle(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{running: true}
	count := &fixedCount{}
	m := newTestManager(ctrl, count, &capture{})
	ctx := context.Background()

	// First zero-player tick arms the timer.
	m.check(ctx)
	if s := m.Stats(); !s.Idle {
		t.Fatal("timer should be armed after first zero-player tick")
	}

	// A player joining clears it.
	count.set(1)
	m.check(ctx)
	if s := m.Stats(); s.Idle {
		t.Fatal("nonzero player count must clear the timer")
	}

	// Process going down also prevents idleness.
	count.set(0)
	ctrl.running = false
	m.check(ctx)
	if s := m.Stats(); s.Idle {
		t.Fatal("a stopped server is never idle")
	}
}

func TestRestartAfterThreshold(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{running: true}
	count := &fixedCount{}
	rec := &capture{}
	m := newTestManager(ctrl, count, rec)
	ctx := context.Background()

	m.check(ctx) // arm timer

	// Backdate the timer past the threshold rather than sleeping.
	m.mu.Lock()
	m.idleStart = time.Now().Add(-31 * time.Minute)
	m.mu.Unlock()

	m.check(ctx)

	if calls := ctrl.callLog(); len(calls) != 2 || calls[0] != "stop" || calls[1] != "start" {
		t.Errorf("workflow calls = %v, want [stop start]", calls)
	}

	want := []events.Kind{events.KindIdleRestartTriggered, events.KindIdleRestartCompleted}
	if got := rec.kinds(); len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("events = %v, want %v", got, want)
	}

	s := m.Stats()
	if s.TotalRestarts != 1 {
		t.Errorf("TotalRestarts = %d, want 1", s.TotalRestarts)
	}
	if s.Idle {
		t.Error("timer must be cleared after a restart")
	}
	if s.LastRestartTime.IsZero() {
		t.Error("LastRestartTime should be set after a verified restart")
	}
}

func TestBelowThresholdDoesNotRestart(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{running: true}
	m := newTestManager(ctrl, &fixedCount{}, &capture{})
	ctx := context.Background()

	m.check(ctx) // arm
	m.mu.Lock()
	m.idleStart = time.Now().Add(-29 * time.Minute)
	m.mu.Unlock()
	m.check(ctx)

	if calls := ctrl.callLog(); len(calls) != 0 {
		t.Errorf("no workflow expected below threshold, got %v", calls)
	}
}

func TestFailedRestartClearsTimerWithoutCounting(t *testing.T) {
	t.Parallel()

	t.Run("stop fails", func(t *testing.T) {
		ctrl := &fakeController{running: true, stopErr: errors.New("shutdown wedged")}
		rec := &capture{}
		m := newTestManager(ctrl, &fixedCount{}, rec)
		ctx := context.Background()

		m.check(ctx)
		m.mu.Lock()
		m.idleStart = time.Now().Add(-31 * time.Minute)
		m.mu.Unlock()
		m.check(ctx)

		got := rec.kinds()
		if len(got) != 2 || got[1] != events.KindIdleRestartFailed {
			t.Errorf("events = %v, want triggered then failed", got)
		}

		s := m.Stats()
		if s.TotalRestarts != 0 {
			t.Errorf("failed restart must not increment TotalRestarts, got %d", s.TotalRestarts)
		}
		if s.Idle {
			t.Error("timer must be cleared even after a failed restart")
		}
	})

	t.Run("server never comes back", func(t *testing.T) {
		ctrl := &fakeController{running: true, startFails: true}
		rec := &capture{}
		m := newTestManager(ctrl, &fixedCount{}, rec)
		ctx := context.Background()

		m.check(ctx)
		m.mu.Lock()
		m.idleStart = time.Now().Add(-31 * time.Minute)
		m.mu.Unlock()
		m.check(ctx)

		got := rec.kinds()
		if len(got) != 2 || got[1] != events.KindIdleRestartFailed {
			t.Errorf("events = %v, want triggered then failed", got)
		}
		if s := m.Stats(); s.TotalRestarts != 0 {
			t.Errorf("unverified restart must not count, got %d", s.TotalRestarts)
		}
	})
}

func TestDisabledManagerNeverRestarts(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{running: true}
	m := newTestManager(ctrl, &fixedCount{}, &capture{})
	m.cfg.Enabled = false
	ctx := context.Background()

	m.check(ctx)
	if s := m.Stats(); s.Idle {
		t.Error("disabled manager must not arm the timer")
	}
	if calls := ctrl.callLog(); len(calls) != 0 {
		t.Errorf("disabled manager must not touch the process, got %v", calls)
	}
}

func TestLongestIdleTracked(t *testing.T) {
	t.Parallel()

	ctrl := &fakeController{running: true}
	m := newTestManager(ctrl, &fixedCount{}, &capture{})
	ctx := context.Background()

	m.check(ctx)
	m.mu.Lock()
	m.idleStart = time.Now().Add(-10 * time.Minute)
	m.mu.Unlock()
	m.check(ctx)

	if s := m.Stats(); s.LongestIdle < 10*time.Minute {
		t.Errorf("LongestIdle = %s, want at least 10m", s.LongestIdle)
	}
}
