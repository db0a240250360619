// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package gameserver

import (
	"context"
	"fmt"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
)

// RetryPolicy bounds repeated attempts of a facade call with exponential
// backoff. The delay before attempt N (zero-based) is BaseDelay * 2^N.
//
// The policy is a plain value passed to each call site; call sites that
// must never manufacture stale results (the presence poller) apply it
// themselves so that an exhausted budget skips the cycle cleanly.
type RetryPolicy struct {
	// MaxAttempts is the total attempt budget, including the first try.
	MaxAttempts int

	// BaseDelay is the backoff delay before the second attempt; it
	// doubles for each subsequent attempt.
	BaseDelay time.Duration
}

// Do executes fn until it succeeds, the attempt budget is exhausted, or the
// context is canceled. Backoff waits observe the context so shutdown is
// prompt even mid-retry.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	delay := p.BaseDelay

	for attempt := 0; attempt < attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err = fn()
		if err == nil {
			return nil
		}

		if attempt < attempts-1 {
			logging.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Int("max_attempts", attempts).
				Dur("delay", delay).
				Msg("Retrying facade call")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}
