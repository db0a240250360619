// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package config defines the supervisor configuration and loads it with
// koanf in three layers: struct defaults, optional YAML file, environment
// variables (highest priority, PALWORLD_ prefix).
package config

import (
	"time"

	"github.com/supersunho/docker-palworld-server-sub000/internal/logging"
)

// Config is the root configuration for the supervisor.
type Config struct {
	Logging  logging.Config `koanf:"logging"`
	Server   ServerConfig   `koanf:"server"`
	Process  ProcessConfig  `koanf:"process"`
	Presence PresenceConfig `koanf:"presence"`
	Health   HealthConfig   `koanf:"health"`
	Idle     IdleConfig     `koanf:"idle"`
	Backup   BackupConfig   `koanf:"backup"`
	Discord  DiscordConfig  `koanf:"discord"`
	Ops      OpsConfig      `koanf:"ops"`
}

// ServerConfig describes the managed server's REST API.
type ServerConfig struct {
	// APIURL is the base URL of the dedicated server's REST API.
	APIURL string `koanf:"api_url"`

	// AdminPassword authenticates against the REST API (basic auth,
	// username "admin").
	AdminPassword string `koanf:"admin_password"`

	// Timeout bounds each individual API request.
	Timeout time.Duration `koanf:"timeout"`

	// BreakerEnabled wraps the API client in a circuit breaker.
	BreakerEnabled bool `koanf:"breaker_enabled"`
}

// ProcessConfig describes how to find, start, and stop the server process.
type ProcessConfig struct {
	// Name is the process name to discover (substring match).
	Name string `koanf:"name"`

	// StartCommand is the executable used to start the server.
	StartCommand string `koanf:"start_command"`

	// StartArgs are passed to StartCommand.
	StartArgs []string `koanf:"start_args"`

	// WorkDir is the working directory for StartCommand.
	WorkDir string `koanf:"work_dir"`

	// StopGraceSeconds is announced to players and passed to the REST
	// shutdown endpoint before a force kill is considered.
	StopGraceSeconds int `koanf:"stop_grace_seconds"`

	// StopMessage is broadcast to players before a graceful stop.
	StopMessage string `koanf:"stop_message"`
}

// PresenceConfig tunes the player-list poller.
type PresenceConfig struct {
	// Interval is how often the player list is polled.
	Interval time.Duration `koanf:"interval"`

	// RetryAttempts is the per-cycle poll attempt budget.
	RetryAttempts int `koanf:"retry_attempts"`

	// RetryDelay is the base backoff delay; it doubles per attempt.
	RetryDelay time.Duration `koanf:"retry_delay"`
}

// HealthConfig tunes the process health monitor.
type HealthConfig struct {
	// StatusInterval is the fast cycle cadence (process status only).
	StatusInterval time.Duration `koanf:"status_interval"`

	// DeepInterval is the slow cycle cadence (deep API health check).
	DeepInterval time.Duration `koanf:"deep_interval"`

	// LatencyThreshold flags the API as degraded when an info request
	// takes longer than this.
	LatencyThreshold time.Duration `koanf:"latency_threshold"`

	// MinServerFPS flags a performance issue when the server frame rate
	// drops below this value.
	MinServerFPS int `koanf:"min_server_fps"`

	// LongRunningUptime flags a warning when the process has run longer
	// than this while no players are online.
	LongRunningUptime time.Duration `koanf:"long_running_uptime"`
}

// IdleConfig tunes the idle restart supervisor.
type IdleConfig struct {
	// Enabled turns the idle restart workflow on.
	Enabled bool `koanf:"enabled"`

	// Threshold is the continuous zero-player duration that triggers a
	// restart.
	Threshold time.Duration `koanf:"threshold"`

	// CheckInterval is how often the idle timer is evaluated.
	CheckInterval time.Duration `koanf:"check_interval"`

	// SettleDelay is the wait between the stop and start steps of the
	// restart workflow.
	SettleDelay time.Duration `koanf:"settle_delay"`
}

// BackupConfig tunes archive creation and retention.
type BackupConfig struct {
	// Enabled turns scheduled backups on.
	Enabled bool `koanf:"enabled"`

	// Dir is where archives and the metadata store live.
	Dir string `koanf:"dir"`

	// SourceDir is the server save directory to archive.
	SourceDir string `koanf:"source_dir"`

	// CreateInterval is the archive creation cadence.
	CreateInterval time.Duration `koanf:"create_interval"`

	// CleanupInterval is the retention pass cadence.
	CleanupInterval time.Duration `koanf:"cleanup_interval"`

	// WeeklyDay (0=Sunday..6=Saturday) and WeeklyHour designate the
	// weekly-tier window; a creation tick inside it produces a weekly
	// archive.
	WeeklyDay  int `koanf:"weekly_day"`
	WeeklyHour int `koanf:"weekly_hour"`

	// MonthlyDay and MonthlyHour designate the monthly-tier window.
	// Monthly takes precedence over weekly when both match.
	MonthlyDay  int `koanf:"monthly_day"`
	MonthlyHour int `koanf:"monthly_hour"`

	// DailyMaxAge, WeeklyMaxAge, MonthlyMaxAge are the per-tier
	// age limits enforced by the retention pass.
	DailyMaxAge   time.Duration `koanf:"daily_max_age"`
	WeeklyMaxAge  time.Duration `koanf:"weekly_max_age"`
	MonthlyMaxAge time.Duration `koanf:"monthly_max_age"`

	// ManualKeepCount is how many manual archives survive a retention
	// pass (newest first).
	ManualKeepCount int `koanf:"manual_keep_count"`

	// GlobalMaxCount caps the total number of retained archives across
	// all tiers, enforced oldest-first after per-tier rules.
	GlobalMaxCount int `koanf:"global_max_count"`
}

// DiscordConfig tunes the Discord webhook notifier.
type DiscordConfig struct {
	Enabled    bool          `koanf:"enabled"`
	WebhookURL string        `koanf:"webhook_url"`
	Username   string        `koanf:"username"`
	Timeout    time.Duration `koanf:"timeout"`
}

// OpsConfig tunes the operational HTTP endpoint (metrics, status, backups).
type OpsConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Addr            string        `koanf:"addr"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// defaultConfig returns a Config with all default values. Defaults are
// layered first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Logging: logging.Config{
			Level:  "info",
			Format: "json",
		},
		Server: ServerConfig{
			APIURL:         "http://127.0.0.1:8212",
			AdminPassword:  "",
			Timeout:        10 * time.Second,
			BreakerEnabled: true,
		},
		Process: ProcessConfig{
			Name:             "PalServer",
			StartCommand:     "/palworld/PalServer.sh",
			StartArgs:        nil,
			WorkDir:          "/palworld",
			StopGraceSeconds: 30,
			StopMessage:      "Server maintenance in progress",
		},
		Presence: PresenceConfig{
			Interval:      15 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    500 * time.Millisecond,
		},
		Health: HealthConfig{
			StatusInterval:    10 * time.Second,
			DeepInterval:      5 * time.Minute,
			LatencyThreshold:  2 * time.Second,
			MinServerFPS:      20,
			LongRunningUptime: 48 * time.Hour,
		},
		Idle: IdleConfig{
			Enabled:       true,
			Threshold:     30 * time.Minute,
			CheckInterval: time.Minute,
			SettleDelay:   15 * time.Second,
		},
		Backup: BackupConfig{
			Enabled:         true,
			Dir:             "/palworld/backups",
			SourceDir:       "/palworld/Pal/Saved",
			CreateInterval:  time.Hour,
			CleanupInterval: 6 * time.Hour,
			WeeklyDay:       0, // Sunday
			WeeklyHour:      3,
			MonthlyDay:      1,
			MonthlyHour:     3,
			DailyMaxAge:     7 * 24 * time.Hour,
			WeeklyMaxAge:    28 * 24 * time.Hour,
			MonthlyMaxAge:   180 * 24 * time.Hour,
			ManualKeepCount: 5,
			GlobalMaxCount:  50,
		},
		Discord: DiscordConfig{
			Enabled:    false,
			WebhookURL: "",
			Username:   "Palworld Supervisor",
			Timeout:    10 * time.Second,
		},
		Ops: OpsConfig{
			Enabled:         true,
			Addr:            ":8213",
			ShutdownTimeout: 10 * time.Second,
		},
	}
}
