// Package scrape polls the upstream Shoutcast-style station for now-playing
// metadata and play history, reconciling the cached view on a fixed interval.
package scrape

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// fetchTimeout bounds each upstream request; a slow station skips the tick,
// it never stalls the poller.
const fetchTimeout = 4 * time.Second

// Client provides the two upstream reads: the JSON stats endpoint and the
// played-history HTML page.
type Client struct {
	BaseURL    string
	SID        int
	HTTPClient *http.Client
}

func (c *Client) http() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: fetchTimeout}
}

// statsResponse is the subset of the stats payload we consume.
type statsResponse struct {
	CurrentListeners int    `json:"currentlisteners"`
	SongTitle        string `json:"songtitle"`
}

// Stats fetches the station stats JSON.
func (c *Client) Stats(ctx context.Context) (statsResponse, error) {
	var out statsResponse
	url := fmt.Sprintf("%s/stats?sid=%d&json=1", c.BaseURL, c.SID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return out, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := c.http().Do(req)
	if err != nil {
		return out, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return out, fmt.Errorf("stats fetch: unexpected status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, fmt.Errorf("stats decode: %w", err)
	}
	return out, nil
}

// PlayedHTML fetches the raw played-history page.
func (c *Client) PlayedHTML(ctx context.Context) (string, error) {
	url := fmt.Sprintf("%s/played.html?sid=%d", c.BaseURL, c.SID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")
	resp, err := c.http().Do(req)
	if err != nil {
		return "", err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("history fetch: unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}
