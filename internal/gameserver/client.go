// Palworld Server Supervisor - Dedicated Server Lifecycle and Monitoring
// Copyright 2026 supersunho
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/supersunho/docker-palworld-server-sub000

package gameserver

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/supersunho/docker-palworld-server-sub000/internal/config"
)

// API is the facade surface consumed by the supervisory core. Satisfied by
// *Client and *BreakerClient.
type API interface {
	GetInfo(ctx context.Context) (*ServerInfo, error)
	GetPlayers(ctx context.Context) ([]Player, error)
	GetMetrics(ctx context.Context) (*ServerMetrics, error)
	Announce(ctx context.Context, message string) error
	RequestShutdown(ctx context.Context, waitSeconds int, message string) error
	Save(ctx context.Context) error
}

// Client talks to the dedicated server's REST API. Each method performs a
// single attempt; retry is the caller's concern via RetryPolicy.
type Client struct {
	baseURL  string
	password string
	http     *http.Client
}

// NewClient creates a REST API client from server configuration.
func NewClient(cfg *config.ServerConfig) *Client {
	return &Client{
		baseURL:  cfg.APIURL,
		password: cfg.AdminPassword,
		http:     &http.Client{Timeout: cfg.Timeout},
	}
}

// GetInfo fetches server identity and version.
func (c *Client) GetInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.get(ctx, "/v1/api/info", &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetPlayers fetches the current player list.
func (c *Client) GetPlayers(ctx context.Context) ([]Player, error) {
	var resp playersResponse
	if err := c.get(ctx, "/v1/api/players", &resp); err != nil {
		return nil, err
	}
	return resp.Players, nil
}

// GetMetrics fetches server performance metrics.
func (c *Client) GetMetrics(ctx context.Context) (*ServerMetrics, error) {
	var m ServerMetrics
	if err := c.get(ctx, "/v1/api/metrics", &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// Announce broadcasts a message to all connected players.
func (c *Client) Announce(ctx context.Context, message string) error {
	return c.post(ctx, "/v1/api/announce", announceRequest{Message: message})
}

// RequestShutdown asks the server to shut down gracefully after announcing
// the message and waiting the given number of seconds.
func (c *Client) RequestShutdown(ctx context.Context, waitSeconds int, message string) error {
	return c.post(ctx, "/v1/api/shutdown", shutdownRequest{WaitTime: waitSeconds, Message: message})
}

// Save asks the server to flush world state to disk.
func (c *Client) Save(ctx context.Context) error {
	return c.post(ctx, "/v1/api/save", nil)
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.SetBasicAuth("admin", c.password)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-side close

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response %s: %w", path, err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response %s: %w", path, err)
	}

	return nil
}

// post performs an authenticated POST with an optional JSON body. The API's
// command endpoints return no payload of interest.
func (c *Client) post(ctx context.Context, path string, payload interface{}) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request %s: %w", path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.SetBasicAuth("admin", c.password)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close() //nolint:errcheck // Read-side close

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: unexpected status %d", path, resp.StatusCode)
	}

	return nil
}
