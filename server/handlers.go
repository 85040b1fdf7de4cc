package server

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/onnwee/radio-tender/backend/scrape"
)

// AudioStream is one proxyable upstream audio source. Exactly one stream is
// expected to be active; the proxy picks the first active match and returns
// 503 when none is.
type AudioStream struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	URL      string `json:"url"`
	IsActive bool   `json:"isActive"`
}

// Handlers holds dependencies for all HTTP handlers.
type Handlers struct {
	cache     *scrape.Cache
	streams   []AudioStream
	publicDir string
	stateFile string

	// proxyClient has no timeout: stream playback is open-ended and is torn
	// down via the request context when the listener disconnects.
	proxyClient *http.Client
}

// NewHandlers creates a new Handlers instance with the given dependencies.
func NewHandlers(cache *scrape.Cache, streams []AudioStream, publicDir, stateFile string) *Handlers {
	return &Handlers{
		cache:       cache,
		streams:     streams,
		publicDir:   publicDir,
		stateFile:   stateFile,
		proxyClient: &http.Client{},
	}
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// HandleStream proxies the active audio stream to the caller. The upstream
// request is cancelled when the downstream client disconnects.
func (h *Handlers) HandleStream(w http.ResponseWriter, r *http.Request) {
	var active *AudioStream
	for i := range h.streams {
		if h.streams[i].IsActive {
			active = &h.streams[i]
			break
		}
	}
	if active == nil {
		http.Error(w, "no active stream", http.StatusServiceUnavailable)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, active.URL, nil)
	if err != nil {
		http.Error(w, "bad upstream url", http.StatusBadGateway)
		return
	}
	resp, err := h.proxyClient.Do(req)
	if err != nil {
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close upstream body", slog.Any("err", err))
		}
	}()

	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	// Copy until the upstream ends or the listener goes away.
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Debug("stream proxy ended", slog.Any("err", err))
	}
}

// HandleCurrent returns the current track; an active operator override fully
// supersedes scraped values.
func (h *Handlers) HandleCurrent(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.cache.CurrentTrack())
}

// HandleHistory returns the cached play history.
func (h *Handlers) HandleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.cache.History())
}

// HandleStats returns the listener count from the last successful scrape.
func (h *Handlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]int{"currentlisteners": h.cache.Listeners()})
}

// maxUploadBytes bounds multipart image uploads.
const maxUploadBytes = 32 << 20

// HandleUpload stores a multipart image upload under a unique name in the
// public asset directory and returns its public path.
func (h *Handlers) HandleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, header, err := r.FormFile("image")
	if err != nil {
		http.Error(w, "no file uploaded", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("failed to close upload", slog.Any("err", err))
		}
	}()

	if err := os.MkdirAll(h.publicDir, 0o755); err != nil {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	name := "upload-" + uuid.New().String() + filepath.Ext(header.Filename)
	dst, err := os.Create(filepath.Join(h.publicDir, name))
	if err != nil {
		http.Error(w, "storage unavailable", http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := dst.Close(); err != nil {
			slog.Warn("failed to close upload file", slog.Any("err", err))
		}
	}()
	if _, err := io.Copy(dst, file); err != nil {
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"url": "/cinema/" + name})
}

// HandleHealthz responds to liveness probe requests.
func (h *Handlers) HandleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// scrapeStaleAfter is how old the last successful scrape may be before the
// service reports not-ready. A zero LastSuccess (still booting) is fine.
const scrapeStaleAfter = 60 * time.Second

// HandleReadyz responds to readiness probe requests with detailed system checks.
func (h *Handlers) HandleReadyz(w http.ResponseWriter, r *http.Request) {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"public_dir", func() error { return os.MkdirAll(h.publicDir, 0o755) }},
		{"snapshot_dir", func() error {
			dir := filepath.Dir(h.stateFile)
			if dir == "" {
				dir = "."
			}
			_, err := os.Stat(dir)
			return err
		}},
		{"scrape", func() error {
			last := h.cache.LastSuccess()
			if !last.IsZero() && time.Since(last) > scrapeStaleAfter {
				return &staleScrapeError{age: time.Since(last)}
			}
			return nil
		}},
	}

	for _, check := range checks {
		if err := check.fn(); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"status":       "not_ready",
				"failed_check": check.name,
				"error":        err.Error(),
			})
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ready"})
}

type staleScrapeError struct{ age time.Duration }

func (e *staleScrapeError) Error() string {
	return "last successful scrape " + e.age.Round(time.Second).String() + " ago"
}
