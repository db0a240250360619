// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package events

import (
	"context"

	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/metrics"
)

// HandlerFunc processes one event. A non-nil error is logged and counted
// but never propagated to the emitting tracker.
type HandlerFunc func(ctx context.Context, ev Event) error

// registration pairs a handler with the name it was registered under.
type registration struct {
	name string
	fn   HandlerFunc
}

// Router maps event kinds to ordered handler lists and fans events out to
// them. Registration happens during orchestrator setup, before any tracker
// starts; Dispatch is then safe for concurrent use by multiple tracker
// goroutines without locking.
type Router struct {
	handlers map[Kind][]registration
}

// NewRouter creates an empty router.
func NewRouter() *Router {
	return &Router{handlers: make(map[Kind][]registration)}
}

// Register appends a handler to the list for the given kind. Handlers are
// invoked in registration order. Setup-time only: must not be called after
// trackers have started dispatching.
func (r *Router) Register(kind Kind, name string, fn HandlerFunc) {
	r.handlers[kind] = append(r.handlers[kind], registration{name: name, fn: fn})
}

// RegisterAll registers a handler for every event kind. Used for observers
// like the notifier that want the full stream.
func (r *Router) RegisterAll(name string, fn HandlerFunc) {
	for _, kind := range AllKinds() {
		r.Register(kind, name, fn)
	}
}

// HandlerCount returns the number of handlers registered for a kind.
func (r *Router) HandlerCount(kind Kind) int {
	return len(r.handlers[kind])
}

// Dispatch invokes every handler registered for the event's kind in
// registration order. Each invocation is individually guarded: a panic or
// error from one handler is logged and does not prevent the remaining
// handlers, nor does it reach the emitting tracker.
func (r *Router) Dispatch(ctx context.Context, ev Event) {
	metrics.EventsDispatched.WithLabelValues(string(ev.Kind)).Inc()

	for _, reg := range r.handlers[ev.Kind] {
		r.invoke(ctx, reg, ev)
	}
}

// invoke runs a single handler with panic recovery.
func (r *Router) invoke(ctx context.Context, reg registration, ev Event) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.HandlerFailures.WithLabelValues(string(ev.Kind)).Inc()
			logging.Error().
				Str("handler", reg.name).
				Str("kind", string(ev.Kind)).
				Interface("panic", rec).
				Msg("Event handler panicked")
		}
	}()

	if err := reg.fn(ctx, ev); err != nil {
		metrics.HandlerFailures.WithLabelValues(string(ev.Kind)).Inc()
		logging.Warn().
			Err(err).
			Str("handler", reg.name).
			Str("kind", string(ev.Kind)).
			Msg("Event handler failed")
	}
}
