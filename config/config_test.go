package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "FRONTEND_URL", "STATION_URL", "STATION_SID",
		"STREAM_MOUNT", "GEMINI_API_KEY", "STATE_FILE", "PUBLIC_DIR", "SCRAPE_INTERVAL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":3000" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.StationURL != "http://localhost:8000" || cfg.StationSID != 1 {
		t.Errorf("station = %q sid %d", cfg.StationURL, cfg.StationSID)
	}
	if cfg.StreamMount != "/stream" {
		t.Errorf("StreamMount = %q", cfg.StreamMount)
	}
	if cfg.StateFile != "server_state.json" || cfg.PublicDir != "public/cinema" {
		t.Errorf("storage = %q %q", cfg.StateFile, cfg.PublicDir)
	}
	if cfg.ScrapeInterval != 5*time.Second {
		t.Errorf("ScrapeInterval = %v", cfg.ScrapeInterval)
	}
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("STATION_SID", "3")
	t.Setenv("SCRAPE_INTERVAL", "10s")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPAddr != ":9090" || cfg.StationSID != 3 || cfg.ScrapeInterval != 10*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("STATION_SID", "abc")
	if _, err := Load(); err == nil {
		t.Error("bad STATION_SID accepted")
	}

	clearEnv(t)
	t.Setenv("SCRAPE_INTERVAL", "-3s")
	if _, err := Load(); err == nil {
		t.Error("negative SCRAPE_INTERVAL accepted")
	}
}

func TestValidateAnnouncerReady(t *testing.T) {
	c := &Config{}
	if err := c.ValidateAnnouncerReady(); err == nil {
		t.Error("empty key should not be announcer-ready")
	}
	c.GeminiAPIKey = "short"
	if err := c.ValidateAnnouncerReady(); err == nil {
		t.Error("short key should not be announcer-ready")
	}
	c.GeminiAPIKey = "a-plausible-length-api-key"
	if err := c.ValidateAnnouncerReady(); err != nil {
		t.Errorf("valid key rejected: %v", err)
	}
}
