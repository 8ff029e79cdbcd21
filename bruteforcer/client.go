package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wricardo/mcp-training/pushmo/game/service"
)

// Client talks to a running solver server
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

func (c *Client) ListLevels(ctx context.Context) ([]*service.LevelInfo, error) {
	var resp struct {
		Levels []*service.LevelInfo `json:"levels"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/levels", nil, &resp); err != nil {
		return nil, fmt.Errorf("list levels: %w", err)
	}
	return resp.Levels, nil
}

func (c *Client) Solve(ctx context.Context, req service.SolveRequest) (*service.RunInfo, error) {
	var info service.RunInfo
	if err := c.do(ctx, http.MethodPost, "/api/runs", req, &info); err != nil {
		return nil, fmt.Errorf("solve %s at depth %d: %w", req.Level, req.MaxDepth, err)
	}
	return &info, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return fmt.Errorf("%s - %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("%s - %s", resp.Status, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
