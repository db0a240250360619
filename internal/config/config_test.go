// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	t.Parallel()

	cfg := defaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config must validate, got: %v", err)
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing api url", func(c *Config) { c.Server.APIURL = "" }},
		{"invalid api url", func(c *Config) { c.Server.APIURL = "not a url" }},
		{"zero server timeout", func(c *Config) { c.Server.Timeout = 0 }},
		{"zero presence interval", func(c *Config) { c.Presence.Interval = 0 }},
		{"zero retry attempts", func(c *Config) { c.Presence.RetryAttempts = 0 }},
		{"zero idle threshold", func(c *Config) { c.Idle.Enabled = true; c.Idle.Threshold = 0 }},
		{"backup without dir", func(c *Config) { c.Backup.Enabled = true; c.Backup.Dir = "" }},
		{"weekly day out of range", func(c *Config) { c.Backup.WeeklyDay = 7 }},
		{"monthly day out of range", func(c *Config) { c.Backup.MonthlyDay = 31 }},
		{"global cap below one", func(c *Config) { c.Backup.GlobalMaxCount = 0 }},
		{"discord without webhook", func(c *Config) { c.Discord.Enabled = true; c.Discord.WebhookURL = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := defaultConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"PALWORLD_SERVER__API_URL":        "server.api_url",
		"PALWORLD_BACKUP__MONTHLY_DAY":    "backup.monthly_day",
		"PALWORLD_IDLE__CHECK_INTERVAL":   "idle.check_interval",
		"PALWORLD_LOGGING__LEVEL":         "logging.level",
		"PALWORLD_PRESENCE__RETRY_DELAY":  "presence.retry_delay",
		"PALWORLD_DISCORD__WEBHOOK_URL":   "discord.webhook_url",
		"PALWORLD_HEALTH__MIN_SERVER_FPS": "health.min_server_fps",
	}

	for input, want := range cases {
		if got := envTransform(input); got != want {
			t.Errorf("envTransform(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestLoadLayering(t *testing.T) {
	// Mutates the environment and working directory lookups; not parallel.
	dir := t.TempDir()
	path := filepath.Join(dir, "supervisor.yaml")

	yaml := `
server:
  api_url: http://game-host:8212
  admin_password: filepass
idle:
  threshold: 45m
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PALWORLD_SERVER__ADMIN_PASSWORD", "envpass")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// File overrides defaults.
	if cfg.Server.APIURL != "http://game-host:8212" {
		t.Errorf("api_url = %q, want file value", cfg.Server.APIURL)
	}
	if cfg.Idle.Threshold != 45*time.Minute {
		t.Errorf("idle threshold = %v, want 45m", cfg.Idle.Threshold)
	}

	// Env overrides file.
	if cfg.Server.AdminPassword != "envpass" {
		t.Errorf("admin_password = %q, want env value", cfg.Server.AdminPassword)
	}

	// Untouched values keep defaults.
	if cfg.Presence.Interval != 15*time.Second {
		t.Errorf("presence interval = %v, want default 15s", cfg.Presence.Interval)
	}
}
