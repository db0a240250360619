// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package gameserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(&config.ServerConfig{
		APIURL:        srv.URL,
		AdminPassword: "secret",
		Timeout:       2 * time.Second,
	})
}

func TestGetPlayers(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/api/players" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "secret" {
			t.Error("missing or wrong basic auth")
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"players":[{"name":"Ash","playerId":"p1","ping":23.5,"level":12},{"name":"Brock","playerId":"p2"}]}`)
	})

	players, err := client.GetPlayers(context.Background())
	if err != nil {
		t.Fatalf("GetPlayers failed: %v", err)
	}
	if len(players) != 2 {
		t.Fatalf("expected 2 players, got %d", len(players))
	}
	if players[0].Name != "Ash" || players[0].Ping != 23.5 {
		t.Errorf("unexpected first player: %+v", players[0])
	}
}

func TestGetMetrics(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"serverfps":58,"currentplayernum":3,"serverframetime":17.1,"maxplayernum":32,"uptime":86400,"days":12}`)
	})

	m, err := client.GetMetrics(context.Background())
	if err != nil {
		t.Fatalf("GetMetrics failed: %v", err)
	}
	if m.ServerFPS != 58 || m.UptimeSeconds != 86400 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestRequestShutdownPayload(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/api/shutdown" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		want := `{"waittime":30,"message":"maintenance"}`
		if string(body) != want {
			t.Errorf("body = %s, want %s", body, want)
		}
	})

	if err := client.RequestShutdown(context.Background(), 30, "maintenance"); err != nil {
		t.Fatalf("RequestShutdown failed: %v", err)
	}
}

func TestClientErrors(t *testing.T) {
	t.Parallel()

	t.Run("non-200 status", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		if _, err := client.GetInfo(context.Background()); err == nil {
			t.Error("expected error for 401 response")
		}
	})

	t.Run("malformed payload", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
			io.WriteString(w, `{"players":`)
		})
		if _, err := client.GetPlayers(context.Background()); err == nil {
			t.Error("expected error for truncated JSON")
		}
	})
}

func TestRetryPolicy(t *testing.T) {
	t.Parallel()

	t.Run("succeeds after failures", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
		calls := 0

		err := policy.Do(context.Background(), func() error {
			calls++
			if calls < 3 {
				return errors.New("transient")
			}
			return nil
		})

		if err != nil {
			t.Fatalf("expected success, got %v", err)
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("exhausts budget", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}
		calls := 0

		err := policy.Do(context.Background(), func() error {
			calls++
			return errors.New("down")
		})

		if err == nil {
			t.Fatal("expected error after exhausting attempts")
		}
		if calls != 3 {
			t.Errorf("expected 3 calls, got %d", calls)
		}
	})

	t.Run("observes cancellation during backoff", func(t *testing.T) {
		policy := RetryPolicy{MaxAttempts: 5, BaseDelay: time.Hour}
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- policy.Do(ctx, func() error { return errors.New("down") })
		}()

		cancel()

		select {
		case err := <-done:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("expected context.Canceled, got %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("retry loop did not observe cancellation")
		}
	})
}
