// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package presence

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
	"github.com/supersunho/docker-palworld-server-sub000/internal/gameserver"
)

// scriptedAPI returns one player list (or error) per GetPlayers call.
type scriptedAPI struct {
	mu      sync.Mutex
	rosters [][]gameserver.Player
	errs    []error
	call    int
}

func (s *scriptedAPI) GetPlayers(context.Context) ([]gameserver.Player, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.call
	s.call++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.rosters) {
		return nil, nil
	}
	return s.rosters[i], nil
}

func (s *scriptedAPI) GetInfo(context.Context) (*gameserver.ServerInfo, error)       { return nil, nil }
func (s *scriptedAPI) GetMetrics(context.Context) (*gameserver.ServerMetrics, error) { return nil, nil }
func (s *scriptedAPI) Announce(context.Context, string) error                        { return nil }
func (s *scriptedAPI) RequestShutdown(context.Context, int, string) error            { return nil }
func (s *scriptedAPI) Save(context.Context) error                                    { return nil }

func roster(names ...string) []gameserver.Player {
	players := make([]gameserver.Player, 0, len(names))
	for _, n := range names {
		players = append(players, gameserver.Player{Name: n, PlayerID: "id-" + n})
	}
	return players
}

// capture records dispatched events in order.
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

func (c *capture) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, string(ev.Kind)+":"+ev.Player)
	}
	return out
}

func newTestPoller(api gameserver.API, rec *capture) *Poller {
	router := events.NewRouter()
	router.Register(events.KindPlayerJoined, "capture", rec.handler)
	router.Register(events.KindPlayerLeft, "capture", rec.handler)

	return NewPoller(config.PresenceConfig{
		Interval:      time.Hour, // cycles driven manually via pollOnce
		RetryAttempts: 1,
		RetryDelay:    time.Millisecond,
	}, api, router)
}

func TestColdStartSuppression(t *testing.T) {
	t.Parallel()

	api := &scriptedAPI{rosters: [][]gameserver.Player{roster("Ash", "Brock")}}
	rec := &capture{}
	p := newTestPoller(api, rec)

	p.pollOnce(context.Background())

	if got := rec.kinds(); len(got) != 0 {
		t.Errorf("first poll must not emit events, got %v", got)
	}
	if p.CurrentCount() != 2 {
		t.Errorf("baseline count = %d, want 2", p.CurrentCount())
	}
}

func TestSymmetricDiff(t *testing.T) {
	t.Parallel()

	// {A, B} -> {B, C}: A leaves, C joins.
	api := &scriptedAPI{rosters: [][]gameserver.Player{
		roster("Ash", "Brock"),
		roster("Brock", "Cynthia"),
	}}
	rec := &capture{}
	p := newTestPoller(api, rec)

	ctx := context.Background()
	p.pollOnce(ctx)
	p.pollOnce(ctx)

	want := []string{"player_left:Ash", "player_joined:Cynthia"}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("diff events = %v, want %v", got, want)
	}

	if members := p.CurrentMembers(); !reflect.DeepEqual(members, []string{"Brock", "Cynthia"}) {
		t.Errorf("members = %v", members)
	}
}

func TestDiffEmitOrder(t *testing.T) {
	t.Parallel()

	// Multiple changes in one cycle: departures first, then arrivals, each
	// sorted by name.
	api := &scriptedAPI{rosters: [][]gameserver.Player{
		roster("Zoe", "Ash"),
		roster("Mira", "Kara"),
	}}
	rec := &capture{}
	p := newTestPoller(api, rec)

	ctx := context.Background()
	p.pollOnce(ctx)
	p.pollOnce(ctx)

	want := []string{
		"player_left:Ash", "player_left:Zoe",
		"player_joined:Kara", "player_joined:Mira",
	}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("emit order = %v, want %v", got, want)
	}
}

func TestFailedPollPreservesSnapshot(t *testing.T) {
	t.Parallel()

	down := errors.New("connection refused")
	api := &scriptedAPI{
		rosters: [][]gameserver.Player{
			roster("Ash", "Brock"),
			nil, // consumed by the failing cycle
			roster("Ash"),
		},
		errs: []error{nil, down, nil},
	}
	rec := &capture{}
	p := newTestPoller(api, rec)

	ctx := context.Background()
	p.pollOnce(ctx) // baseline {Ash, Brock}
	p.pollOnce(ctx) // fails: no phantom departures
	if got := rec.kinds(); len(got) != 0 {
		t.Fatalf("failed poll must not emit events, got %v", got)
	}
	if p.CurrentCount() != 2 {
		t.Errorf("failed poll must preserve snapshot, count = %d", p.CurrentCount())
	}

	p.pollOnce(ctx) // {Ash}: only Brock's departure
	want := []string{"player_left:Brock"}
	if got := rec.kinds(); !reflect.DeepEqual(got, want) {
		t.Errorf("post-recovery events = %v, want %v", got, want)
	}
}

func TestIdentityKeyPrefersStableIDs(t *testing.T) {
	t.Parallel()

	if k := identityKey(gameserver.Player{Name: "Ash", PlayerID: "p1", AccountID: "a1"}); k != "p1" {
		t.Errorf("key = %s, want p1", k)
	}
	if k := identityKey(gameserver.Player{Name: "Ash", AccountID: "a1"}); k != "a1" {
		t.Errorf("key = %s, want a1", k)
	}
	if k := identityKey(gameserver.Player{Name: "Ash"}); k != "Ash" {
		t.Errorf("key = %s, want Ash", k)
	}
}

func TestPollerStartStop(t *testing.T) {
	t.Parallel()

	api := &scriptedAPI{rosters: [][]gameserver.Player{roster("Ash")}}
	p := newTestPoller(api, &capture{})

	ctx := context.Background()
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !p.IsRunning() {
		t.Error("poller should report running")
	}
	if err := p.Start(ctx); err != nil {
		t.Errorf("second Start should be a no-op, got %v", err)
	}

	p.Stop()
	if p.IsRunning() {
		t.Error("poller should report stopped")
	}
	p.Stop() // idempotent
}
