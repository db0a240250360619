// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

// fakeHTTPServer scripts ListenAndServe/Shutdown behavior.
type fakeHTTPServer struct {
	listenErr  error
	shutdownCh chan struct{}
	shutdowns  int
}

func newFakeHTTPServer() *fakeHTTPServer {
	return &fakeHTTPServer{shutdownCh: make(chan struct{})}
}

func (f *fakeHTTPServer) ListenAndServe() error {
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.shutdownCh
	return http.ErrServerClosed
}

func (f *fakeHTTPServer) Shutdown(context.Context) error {
	f.shutdowns++
	close(f.shutdownCh)
	return nil
}

func TestOpsServiceGracefulDrain(t *testing.T) {
	t.Parallel()

	srv := newFakeHTTPServer()
	svc := NewOpsService(srv, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("service did not shut down")
	}
	if srv.shutdowns != 1 {
		t.Errorf("Shutdown called %d times, want 1", srv.shutdowns)
	}
}

func TestOpsServiceListenFailure(t *testing.T) {
	t.Parallel()

	srv := newFakeHTTPServer()
	srv.listenErr = errors.New("bind: address already in use")
	svc := NewOpsService(srv, time.Second)

	if err := svc.Serve(context.Background()); err == nil {
		t.Error("expected error when listen fails")
	}
}

func TestOpsServiceName(t *testing.T) {
	t.Parallel()

	if name := NewOpsService(newFakeHTTPServer(), 0).String(); name != "ops-endpoint" {
		t.Errorf("name = %q", name)
	}
}

func TestOpsServiceReportsListenAddr(t *testing.T) {
	t.Parallel()

	svc := NewOpsService(&http.Server{Addr: "127.0.0.1:8212"}, time.Second)
	if svc.addr != "127.0.0.1:8212" {
		t.Errorf("addr = %q, want the server's listen address", svc.addr)
	}

	// Fakes without an address still get a stable placeholder.
	if svc := NewOpsService(newFakeHTTPServer(), time.Second); svc.addr != "unknown" {
		t.Errorf("addr = %q, want unknown", svc.addr)
	}
}
