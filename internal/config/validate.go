// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for values that would make the
// supervisor misbehave at runtime. Messages name the offending key so the
// operator can fix the file or env var directly.
func (c *Config) Validate() error {
	if c.Server.APIURL == "" {
		return fmt.Errorf("server.api_url is required")
	}
	if _, err := url.ParseRequestURI(c.Server.APIURL); err != nil {
		return fmt.Errorf("server.api_url is not a valid URL: %w", err)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive")
	}

	if c.Presence.Interval <= 0 {
		return fmt.Errorf("presence.interval must be positive")
	}
	if c.Presence.RetryAttempts < 1 {
		return fmt.Errorf("presence.retry_attempts must be at least 1")
	}
	if c.Presence.RetryDelay <= 0 {
		return fmt.Errorf("presence.retry_delay must be positive")
	}

	if c.Health.StatusInterval <= 0 {
		return fmt.Errorf("health.status_interval must be positive")
	}
	if c.Health.DeepInterval <= 0 {
		return fmt.Errorf("health.deep_interval must be positive")
	}

	if c.Idle.Enabled {
		if c.Idle.Threshold <= 0 {
			return fmt.Errorf("idle.threshold must be positive when idle restarts are enabled")
		}
		if c.Idle.CheckInterval <= 0 {
			return fmt.Errorf("idle.check_interval must be positive")
		}
	}

	if c.Backup.Enabled {
		if err := c.validateBackup(); err != nil {
			return err
		}
	}

	if c.Discord.Enabled && c.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url is required when discord notifications are enabled")
	}

	if c.Ops.Enabled && c.Ops.Addr == "" {
		return fmt.Errorf("ops.addr is required when the ops endpoint is enabled")
	}

	return nil
}

func (c *Config) validateBackup() error {
	b := c.Backup

	if b.Dir == "" {
		return fmt.Errorf("backup.dir is required when backups are enabled")
	}
	if b.SourceDir == "" {
		return fmt.Errorf("backup.source_dir is required when backups are enabled")
	}
	if b.CreateInterval <= 0 {
		return fmt.Errorf("backup.create_interval must be positive")
	}
	if b.CleanupInterval <= 0 {
		return fmt.Errorf("backup.cleanup_interval must be positive")
	}
	if b.WeeklyDay < 0 || b.WeeklyDay > 6 {
		return fmt.Errorf("backup.weekly_day must be between 0 (Sunday) and 6 (Saturday), got %d", b.WeeklyDay)
	}
	if b.WeeklyHour < 0 || b.WeeklyHour > 23 {
		return fmt.Errorf("backup.weekly_hour must be between 0 and 23, got %d", b.WeeklyHour)
	}
	if b.MonthlyDay < 1 || b.MonthlyDay > 28 {
		return fmt.Errorf("backup.monthly_day must be between 1 and 28, got %d", b.MonthlyDay)
	}
	if b.MonthlyHour < 0 || b.MonthlyHour > 23 {
		return fmt.Errorf("backup.monthly_hour must be between 0 and 23, got %d", b.MonthlyHour)
	}
	if b.ManualKeepCount < 0 {
		return fmt.Errorf("backup.manual_keep_count must not be negative")
	}
	if b.GlobalMaxCount < 1 {
		return fmt.Errorf("backup.global_max_count must be at least 1")
	}

	return nil
}
