// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
// For the AI announcer (which needs a Gemini API key), use ValidateAnnouncerReady.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// HTTP
	HTTPAddr    string
	FrontendURL string

	// Upstream Shoutcast-style station
	StationURL  string
	StationSID  int
	StreamMount string

	// AI announcer
	GeminiAPIKey string

	// Storage
	StateFile string
	PublicDir string

	// Polling
	ScrapeInterval time.Duration
}

// Load reads environment variables and applies defaults. It doesn't fail if the Gemini key is
// missing; use ValidateAnnouncerReady() when you require AI generation. A missing key disables
// announcements but leaves the rest of the service running.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":3000"
	}

	cfg.FrontendURL = os.Getenv("FRONTEND_URL")
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://localhost:5173"
	}

	cfg.StationURL = os.Getenv("STATION_URL")
	if cfg.StationURL == "" {
		cfg.StationURL = "http://localhost:8000"
	}

	cfg.StationSID = 1
	if v := os.Getenv("STATION_SID"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid STATION_SID: %q", v)
		}
		cfg.StationSID = n
	}

	cfg.StreamMount = os.Getenv("STREAM_MOUNT")
	if cfg.StreamMount == "" {
		cfg.StreamMount = "/stream"
	}

	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")

	cfg.StateFile = os.Getenv("STATE_FILE")
	if cfg.StateFile == "" {
		cfg.StateFile = "server_state.json"
	}

	cfg.PublicDir = os.Getenv("PUBLIC_DIR")
	if cfg.PublicDir == "" {
		cfg.PublicDir = "public/cinema"
	}

	cfg.ScrapeInterval = 5 * time.Second
	if v := os.Getenv("SCRAPE_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid SCRAPE_INTERVAL: %q", v)
		}
		cfg.ScrapeInterval = d
	}

	return cfg, nil
}

// ValidateAnnouncerReady checks required fields when AI announcements are enabled.
func (c *Config) ValidateAnnouncerReady() error {
	if len(c.GeminiAPIKey) <= 10 {
		return fmt.Errorf("missing or too-short GEMINI_API_KEY")
	}
	return nil
}
