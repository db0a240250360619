// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

// Package gameserver implements the REST facade through which the
// supervisor observes and minimally controls the dedicated server.
//
// The dedicated server exposes a small REST API (info, players, metrics,
// announce, shutdown, save) behind HTTP basic auth. This package wraps it
// in a typed client, an explicit retry policy applied at call sites, and an
// optional circuit breaker for sustained outages.
package gameserver

// Player is one entry of the player-list query.
type Player struct {
	Name      string  `json:"name"`
	AccountID string  `json:"accountName"`
	PlayerID  string  `json:"playerId"`
	UserID    string  `json:"userId"`
	IP        string  `json:"ip"`
	Ping      float64 `json:"ping"`
	LocationX float64 `json:"location_x"`
	LocationY float64 `json:"location_y"`
	Level     int     `json:"level"`
}

// playersResponse is the wire shape of the players endpoint.
type playersResponse struct {
	Players []Player `json:"players"`
}

// ServerInfo is the deep info query result.
type ServerInfo struct {
	Version     string `json:"version"`
	ServerName  string `json:"servername"`
	Description string `json:"description"`
	WorldGUID   string `json:"worldguid"`
}

// ServerMetrics is the performance metrics query result.
type ServerMetrics struct {
	ServerFPS        int     `json:"serverfps"`
	CurrentPlayerNum int     `json:"currentplayernum"`
	ServerFrameTime  float64 `json:"serverframetime"`
	MaxPlayerNum     int     `json:"maxplayernum"`
	UptimeSeconds    int64   `json:"uptime"`
	Days             int     `json:"days"`
}

// announceRequest is the wire shape of the announce endpoint.
type announceRequest struct {
	Message string `json:"message"`
}

// shutdownRequest is the wire shape of the shutdown endpoint.
type shutdownRequest struct {
	WaitTime int    `json:"waittime"`
	Message  string `json:"message"`
}
