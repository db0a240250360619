// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package events defines the closed set of supervisor events and the router
// that fans them out to registered handlers.
//
// Events are immutable once constructed. A tracker owns an event only until
// it hands it to the Router; handlers receive it by value.
package events

import "time"

// Kind identifies an event variant. The set is closed: trackers construct
// events only through the New* constructors below.
type Kind string

const (
	// KindPlayerJoined is emitted when a player appears in the current
	// snapshot but not the previous one.
	KindPlayerJoined Kind = "player_joined"

	// KindPlayerLeft is emitted when a player appears in the previous
	// snapshot but not the current one.
	KindPlayerLeft Kind = "player_left"

	// KindStatusChanged is emitted on a process state transition:
	// started, stopped, or unexpected restart.
	KindStatusChanged Kind = "status_changed"

	// KindHealthWarning carries the batched issues of one deep health check.
	KindHealthWarning Kind = "health_warning"

	// KindPerformanceIssue is emitted when the server reports degraded
	// performance (low server FPS).
	KindPerformanceIssue Kind = "performance_issue"

	// KindBackupCompleted is emitted after a backup archive is created.
	KindBackupCompleted Kind = "backup_completed"

	// KindBackupFailed is emitted when archive creation fails.
	KindBackupFailed Kind = "backup_failed"

	// KindIdleRestartTriggered is emitted when the idle threshold is
	// breached, before the restart workflow begins.
	KindIdleRestartTriggered Kind = "idle_restart_triggered"

	// KindIdleRestartCompleted is emitted after a verified successful
	// idle restart.
	KindIdleRestartCompleted Kind = "idle_restart_completed"

	// KindIdleRestartFailed is emitted when the stop or start step of the
	// idle restart workflow fails.
	KindIdleRestartFailed Kind = "idle_restart_failed"
)

// AllKinds returns every event kind, for handlers that observe everything.
func AllKinds() []Kind {
	return []Kind{
		KindPlayerJoined,
		KindPlayerLeft,
		KindStatusChanged,
		KindHealthWarning,
		KindPerformanceIssue,
		KindBackupCompleted,
		KindBackupFailed,
		KindIdleRestartTriggered,
		KindIdleRestartCompleted,
		KindIdleRestartFailed,
	}
}

// BackupInfo describes a created backup archive. It mirrors the backup
// package's record without importing it, so emitting packages stay leaf-free
// of each other.
type BackupInfo struct {
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Tier      string `json:"tier"`
}

// Event is the tagged union carried through the Router. Kind determines
// which payload fields are populated; the rest are zero.
type Event struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	// Player and PlayerCount are set for join/leave events. PlayerCount is
	// the count after the change, shared by all events of one poll cycle.
	Player      string `json:"player,omitempty"`
	PlayerCount int    `json:"player_count,omitempty"`

	// Message is set for status changes, performance issues, and failures.
	Message string `json:"message,omitempty"`

	// Details carries auxiliary key/value context (pid, uptime, latency).
	Details map[string]string `json:"details,omitempty"`

	// Issues is the batched issue list of a health warning.
	Issues []string `json:"issues,omitempty"`

	// Backup is set for backup events.
	Backup *BackupInfo `json:"backup,omitempty"`

	// IdleMinutes is set for idle restart events.
	IdleMinutes float64 `json:"idle_minutes,omitempty"`
}

// NewPlayerJoined constructs a join event. countAfter is the size of the
// current snapshot.
func NewPlayerJoined(name string, countAfter int) Event {
	return Event{
		Kind:        KindPlayerJoined,
		Timestamp:   time.Now(),
		Player:      name,
		PlayerCount: countAfter,
	}
}

// NewPlayerLeft constructs a leave event. countAfter is the size of the
// current snapshot.
func NewPlayerLeft(name string, countAfter int) Event {
	return Event{
		Kind:        KindPlayerLeft,
		Timestamp:   time.Now(),
		Player:      name,
		PlayerCount: countAfter,
	}
}

// NewStatusChanged constructs a process state transition event.
func NewStatusChanged(message string, details map[string]string) Event {
	return Event{
		Kind:      KindStatusChanged,
		Timestamp: time.Now(),
		Message:   message,
		Details:   details,
	}
}

// NewHealthWarning constructs a batched health warning. All issues detected
// in one deep check travel in a single event.
func NewHealthWarning(issues []string, details map[string]string) Event {
	return Event{
		Kind:      KindHealthWarning,
		Timestamp: time.Now(),
		Issues:    issues,
		Details:   details,
	}
}

// NewPerformanceIssue constructs a performance degradation event.
func NewPerformanceIssue(message string) Event {
	return Event{
		Kind:      KindPerformanceIssue,
		Timestamp: time.Now(),
		Message:   message,
	}
}

// NewBackupCompleted constructs a backup completion event.
func NewBackupCompleted(info BackupInfo) Event {
	return Event{
		Kind:      KindBackupCompleted,
		Timestamp: time.Now(),
		Backup:    &info,
	}
}

// NewBackupFailed constructs a backup failure event.
func NewBackupFailed(message string) Event {
	return Event{
		Kind:      KindBackupFailed,
		Timestamp: time.Now(),
		Message:   message,
	}
}

// NewIdleRestartTriggered constructs the pre-restart notification event.
func NewIdleRestartTriggered(idleMinutes float64) Event {
	return Event{
		Kind:        KindIdleRestartTriggered,
		Timestamp:   time.Now(),
		IdleMinutes: idleMinutes,
	}
}

// NewIdleRestartCompleted constructs the restart success event.
func NewIdleRestartCompleted(idleMinutes float64) Event {
	return Event{
		Kind:        KindIdleRestartCompleted,
		Timestamp:   time.Now(),
		IdleMinutes: idleMinutes,
	}
}

// NewIdleRestartFailed constructs the restart failure event.
func NewIdleRestartFailed(message string) Event {
	return Event{
		Kind:      KindIdleRestartFailed,
		Timestamp: time.Now(),
		Message:   message,
	}
}
