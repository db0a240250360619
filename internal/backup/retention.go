// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package backup

import (
	"sort"
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
)

// RetentionPolicy decides which archives a cleanup pass deletes. Rules
// apply in a fixed order: per-tier age limits, then the manual keep-count,
// then the global count cap over whatever survived.
type RetentionPolicy struct {
	DailyMaxAge   time.Duration
	WeeklyMaxAge  time.Duration
	MonthlyMaxAge time.Duration

	// ManualKeepCount manual archives survive, newest first. Zero keeps
	// none.
	ManualKeepCount int

	// GlobalMaxCount caps total retained archives across all tiers,
	// trimmed oldest first. Zero means no cap.
	GlobalMaxCount int
}

// PolicyFromConfig builds a retention policy from backup configuration.
func PolicyFromConfig(cfg config.BackupConfig) RetentionPolicy {
	return RetentionPolicy{
		DailyMaxAge:     cfg.DailyMaxAge,
		WeeklyMaxAge:    cfg.WeeklyMaxAge,
		MonthlyMaxAge:   cfg.MonthlyMaxAge,
		ManualKeepCount: cfg.ManualKeepCount,
		GlobalMaxCount:  cfg.GlobalMaxCount,
	}
}

// maxAgeFor returns the age limit for a tier, or 0 for tiers without one.
func (p RetentionPolicy) maxAgeFor(tier Tier) time.Duration {
	switch tier {
	case TierDaily:
		return p.DailyMaxAge
	case TierWeekly:
		return p.WeeklyMaxAge
	case TierMonthly:
		return p.MonthlyMaxAge
	default:
		return 0
	}
}

// Victims returns the records a cleanup pass at the given time should
// delete. The input is not modified; evaluating the same state twice yields
// the same victims, so interrupted passes are safely re-run.
func (p RetentionPolicy) Victims(records []Record, now time.Time) []Record {
	victims := make(map[string]Record)

	// Per-tier age limits; a record exactly at its limit is expired.
	// Manual archives have no age limit.
	for _, r := range records {
		maxAge := p.maxAgeFor(r.Tier)
		if maxAge > 0 && now.Sub(r.CreatedAt) >= maxAge {
			victims[r.ID] = r
		}
	}

	// Manual keep-count: newest ManualKeepCount survive.
	var manual []Record
	for _, r := range records {
		if r.Tier == TierManual {
			manual = append(manual, r)
		}
	}
	sort.Slice(manual, func(i, j int) bool { return manual[i].CreatedAt.After(manual[j].CreatedAt) })
	for i := p.ManualKeepCount; i < len(manual); i++ {
		victims[manual[i].ID] = manual[i]
	}

	// Global cap over survivors, oldest first.
	if p.GlobalMaxCount > 0 {
		var survivors []Record
		for _, r := range records {
			if _, gone := victims[r.ID]; !gone {
				survivors = append(survivors, r)
			}
		}
		if excess := len(survivors) - p.GlobalMaxCount; excess > 0 {
			sort.Slice(survivors, func(i, j int) bool {
				return survivors[i].CreatedAt.Before(survivors[j].CreatedAt)
			})
			for _, r := range survivors[:excess] {
				victims[r.ID] = r
			}
		}
	}

	out := make([]Record, 0, len(victims))
	for _, r := range victims {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
