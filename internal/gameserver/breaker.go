// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package gameserver

import (
	"context"
	"errors"
	"fmt"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
	"github.com/supersunho/docker-palworld-server-sub000/internal/metrics"
)

// BreakerClient wraps the REST client with a circuit breaker so a crashed
// or hung server does not tie every poll cycle up in timeouts. While the
// circuit is open, calls fail fast with gobreaker.ErrOpenState; trackers
// treat that like any other transient poll failure.
//
// The breaker uses real time for its interval and timeout windows. Tests
// exercise the wrapped client directly rather than mocking the breaker.
type BreakerClient struct {
	inner API
	cb    *gobreaker.CircuitBreaker[interface{}]
	name  string
}

// NewBreakerClient wraps an API with circuit breaker protection.
// The circuit opens after a 60% failure rate over at least 10 requests and
// probes recovery after one minute.
func NewBreakerClient(inner API) *BreakerClient {
	const cbName = "palworld-rest"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // closed

	cb := gobreaker.NewCircuitBreaker[interface{}](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.6
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("from", stateToString(from)).
				Str("to", stateToString(to)).
				Msg("REST facade circuit breaker state transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
		},
	})

	return &BreakerClient{inner: inner, cb: cb, name: cbName}
}

// execute wraps one facade call with circuit breaker accounting.
func (b *BreakerClient) execute(fn func() (interface{}, error)) (interface{}, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	return result, nil
}

// castResult safely type-casts a circuit breaker result.
func castResult[T any](result interface{}, err error) (*T, error) {
	if err != nil {
		return nil, err
	}
	typed, ok := result.(*T)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return typed, nil
}

// GetInfo implements API.
func (b *BreakerClient) GetInfo(ctx context.Context) (*ServerInfo, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.GetInfo(ctx)
	})
	return castResult[ServerInfo](result, err)
}

// GetPlayers implements API.
func (b *BreakerClient) GetPlayers(ctx context.Context) ([]Player, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.GetPlayers(ctx)
	})
	if err != nil {
		return nil, err
	}
	players, ok := result.([]Player)
	if !ok {
		return nil, fmt.Errorf("circuit breaker: unexpected result type %T", result)
	}
	return players, nil
}

// GetMetrics implements API.
func (b *BreakerClient) GetMetrics(ctx context.Context) (*ServerMetrics, error) {
	result, err := b.execute(func() (interface{}, error) {
		return b.inner.GetMetrics(ctx)
	})
	return castResult[ServerMetrics](result, err)
}

// Announce implements API.
func (b *BreakerClient) Announce(ctx context.Context, message string) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.inner.Announce(ctx, message)
	})
	return err
}

// RequestShutdown implements API. Shutdown requests bypass the open-circuit
// check indirectly: if the circuit is open the server is likely already
// down, and the caller falls back to process-level termination.
func (b *BreakerClient) RequestShutdown(ctx context.Context, waitSeconds int, message string) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.inner.RequestShutdown(ctx, waitSeconds, message)
	})
	return err
}

// Save implements API.
func (b *BreakerClient) Save(ctx context.Context) error {
	_, err := b.execute(func() (interface{}, error) {
		return nil, b.inner.Save(ctx)
	})
	return err
}

// stateToFloat converts a breaker state to its metric value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts a breaker state to a log label.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
