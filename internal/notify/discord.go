// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package notify forwards supervisor events to a Discord webhook.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
	"github.com/supersunho/docker-palworld-server-sub000/internal/events"
)

// Embed colors, Discord decimal RGB.
const (
	colorGreen  = 0x2ECC71
	colorRed    = 0xE74C3C
	colorYellow = 0xF1C40F
	colorBlue   = 0x3498DB
)

// webhookPayload is the Discord webhook wire shape.
type webhookPayload struct {
	Username string  `json:"username,omitempty"`
	Content  string  `json:"content,omitempty"`
	Embeds   []embed `json:"embeds,omitempty"`
}

type embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []embedField `json:"fields,omitempty"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notifier posts event notifications to a Discord webhook. It is registered
// on the router for every event kind; kinds without a rendering are dropped
// silently.
type Notifier struct {
	cfg  config.DiscordConfig
	http *http.Client
}

// NewNotifier creates a Discord notifier.
func NewNotifier(cfg config.DiscordConfig) *Notifier {
	return &Notifier{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// RegisterOn subscribes the notifier to the full event stream.
func (n *Notifier) RegisterOn(router *events.Router) {
	if !n.cfg.Enabled || n.cfg.WebhookURL == "" {
		return
	}
	router.RegisterAll("discord", n.Handle)
}

// Handle implements events.HandlerFunc.
func (n *Notifier) Handle(ctx context.Context, ev events.Event) error {
	emb, ok := render(ev)
	if !ok {
		return nil
	}
	return n.send(ctx, webhookPayload{Username: n.cfg.Username, Embeds: []embed{emb}})
}

// render maps an event to a Discord embed.
func render(ev events.Event) (embed, bool) {
	switch ev.Kind {
	case events.KindPlayerJoined:
		return embed{
			Title:       "Player joined",
			Description: fmt.Sprintf("**%s** joined the server (%d online)", ev.Player, ev.PlayerCount),
			Color:       colorGreen,
		}, true

	case events.KindPlayerLeft:
		return embed{
			Title:       "Player left",
			Description: fmt.Sprintf("**%s** left the server (%d online)", ev.Player, ev.PlayerCount),
			Color:       colorBlue,
		}, true

	case events.KindStatusChanged:
		e := embed{Title: "Server status", Description: ev.Message, Color: colorYellow}
		for _, key := range []string{"pid", "uptime_seconds"} {
			if v, ok := ev.Details[key]; ok {
				e.Fields = append(e.Fields, embedField{Name: key, Value: v, Inline: true})
			}
		}
		return e, true

	case events.KindHealthWarning:
		return embed{
			Title:       "Health warning",
			Description: "- " + strings.Join(ev.Issues, "\n- "),
			Color:       colorYellow,
		}, true

	case events.KindPerformanceIssue:
		return embed{Title: "Performance degraded", Description: ev.Message, Color: colorYellow}, true

	case events.KindBackupCompleted:
		e := embed{Title: "Backup completed", Color: colorGreen}
		if ev.Backup != nil {
			e.Description = fmt.Sprintf("`%s` (%s, %.1f MiB)",
				ev.Backup.Filename, ev.Backup.Tier, float64(ev.Backup.SizeBytes)/(1024*1024))
		}
		return e, true

	case events.KindBackupFailed:
		return embed{Title: "Backup failed", Description: ev.Message, Color: colorRed}, true

	case events.KindIdleRestartTriggered:
		return embed{
			Title:       "Idle restart",
			Description: fmt.Sprintf("Server idle for %.0f minutes, restarting", ev.IdleMinutes),
			Color:       colorYellow,
		}, true

	case events.KindIdleRestartCompleted:
		return embed{Title: "Idle restart completed", Description: "Server is back up", Color: colorGreen}, true

	case events.KindIdleRestartFailed:
		return embed{Title: "Idle restart failed", Description: ev.Message, Color: colorRed}, true

	default:
		return embed{}, false
	}
}

func (n *Notifier) send(ctx context.Context, payload webhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.http.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-side close

	// Discord returns 204 on success; 2xx generally means delivered.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
