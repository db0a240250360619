// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package backup archives the server save directory on a schedule and
// enforces tiered retention over the resulting archives.
package backup

import (
	"errors"
	"time"
)

// Tier classifies an archive for retention purposes. The tier is assigned
// at creation time from the calendar and never changes afterwards, even if
// a later cleanup pass runs inside a different calendar window.
type Tier string

const (
	TierDaily   Tier = "daily"
	TierWeekly  Tier = "weekly"
	TierMonthly Tier = "monthly"

	// TierManual marks operator-requested archives. They are exempt from
	// age-based expiry and instead governed by a keep-count.
	TierManual Tier = "manual"
)

// Record describes one archive on disk plus the metadata needed for
// retention decisions. Records persist in the store's metadata file so
// tiers survive supervisor restarts.
type Record struct {
	ID        string    `json:"id"`
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	SizeBytes int64     `json:"size_bytes"`
	SHA256    string    `json:"sha256"`
	CreatedAt time.Time `json:"created_at"`
	Tier      Tier      `json:"tier"`
}

// ErrSourceMissing is returned when the configured save directory does not
// exist at archive time.
var ErrSourceMissing = errors.New("backup source directory does not exist")
