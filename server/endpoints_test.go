package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/onnwee/radio-tender/backend/scrape"
)

func newTestMux(t *testing.T, streams []AudioStream) (http.Handler, *scrape.Cache, string) {
	t.Helper()
	cache := scrape.NewCache()
	dir := t.TempDir()
	h := NewHandlers(cache, streams, dir, filepath.Join(dir, "state.json"))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewMux(ctx, h, nil, ""), cache, dir
}

func TestCurrentReflectsOverride(t *testing.T) {
	mux, cache, _ := newTestMux(t, nil)
	cache.SetOverride(scrape.Override{Active: true, Artist: "Operator", Title: "Pick"})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/current", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var track scrape.Track
	if err := json.Unmarshal(rec.Body.Bytes(), &track); err != nil {
		t.Fatal(err)
	}
	if track.Artist != "Operator" || track.Title != "Pick" {
		t.Errorf("track = %+v, want the override", track)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content-type = %q", ct)
	}
}

func TestHistoryEmptyIsJSONArray(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Errorf("body = %q, want an empty array, never null", got)
	}
}

func TestStats(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	var body map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if _, ok := body["currentlisteners"]; !ok {
		t.Errorf("body = %v, want currentlisteners key", body)
	}
}

func TestStreamProxy(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Header().Set("Icy-Name", "Test Station")
		_, _ = w.Write([]byte("mp3-frames"))
	}))
	defer upstream.Close()

	mux, _, _ := newTestMux(t, []AudioStream{
		{ID: "off", Name: "Off Air", URL: upstream.URL + "/other", IsActive: false},
		{ID: "main", Name: "Main", URL: upstream.URL, IsActive: true},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Body.String() != "mp3-frames" {
		t.Errorf("body = %q", rec.Body.String())
	}
	if got := rec.Header().Get("Icy-Name"); got != "Test Station" {
		t.Errorf("Icy-Name = %q, want upstream headers forwarded", got)
	}
}

func TestStreamProxyNoActiveStream(t *testing.T) {
	mux, _, _ := newTestMux(t, []AudioStream{{ID: "off", URL: "http://unused", IsActive: false}})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestStreamProxyUpstreamDown(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	dead.Close()

	mux, _, _ := newTestMux(t, []AudioStream{{ID: "main", URL: dead.URL, IsActive: true}})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stream", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("image", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadStoresFile(t *testing.T) {
	mux, _, dir := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, uploadRequest(t, "cover.png", []byte("png-bytes")))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	url := body["url"]
	if !strings.HasPrefix(url, "/cinema/upload-") || !strings.HasSuffix(url, ".png") {
		t.Errorf("url = %q", url)
	}
	data, err := os.ReadFile(filepath.Join(dir, strings.TrimPrefix(url, "/cinema/")))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "png-bytes" {
		t.Errorf("stored file = %q", data)
	}
}

func TestUploadRejectsGet(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/upload", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestUploadRateLimit(t *testing.T) {
	t.Setenv("RATE_LIMIT_ENABLED", "1")
	t.Setenv("RATE_LIMIT_REQUESTS_PER_IP", "2")
	mux, _, _ := newTestMux(t, nil)

	limited := false
	for i := 0; i < 4; i++ {
		rec := httptest.NewRecorder()
		req := uploadRequest(t, "a.png", []byte("x"))
		req.RemoteAddr = "10.0.0.5:1234"
		mux.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			if ra := rec.Header().Get("Retry-After"); ra == "" {
				t.Error("429 without Retry-After")
			}
		}
	}
	if !limited {
		t.Error("rate limit never triggered")
	}
}

func TestCinemaServesAssets(t *testing.T) {
	mux, _, dir := newTestMux(t, nil)
	if err := os.WriteFile(filepath.Join(dir, "lizard_1.jpg"), []byte("jpeg"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cinema/lizard_1.jpg", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if body, _ := io.ReadAll(rec.Body); string(body) != "jpeg" {
		t.Errorf("body = %q", body)
	}
}

func TestHealthz(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok" {
		t.Errorf("healthz = %d %q", rec.Code, rec.Body.String())
	}
}

func TestReadyzBeforeFirstScrape(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, a booting service with no scrape yet is ready", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body["status"] != "ready" {
		t.Errorf("body = %v", body)
	}
}

func TestCorrelationIDEcho(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Correlation-ID", "corr-123")
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Correlation-ID"); got != "corr-123" {
		t.Errorf("echoed correlation id = %q", got)
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Header().Get("X-Correlation-ID") == "" {
		t.Error("missing generated correlation id")
	}
}

func TestCORSWildcardWhenUnconfigured(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("allow-origin = %q, want wildcard in dev mode", got)
	}
}

func TestCORSConfiguredOrigin(t *testing.T) {
	cache := scrape.NewCache()
	dir := t.TempDir()
	h := NewHandlers(cache, nil, dir, filepath.Join(dir, "state.json"))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	mux := NewMux(ctx, h, nil, "https://radio.example")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://radio.example")
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://radio.example" {
		t.Errorf("allow-origin = %q", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("allow-credentials = %q", got)
	}

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://evil.example")
	mux.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("allow-origin = %q for foreign origin, want unset", got)
	}
}

func TestPreflight(t *testing.T) {
	mux, _, _ := newTestMux(t, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/upload", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Methods") == "" {
		t.Error("missing allow-methods on preflight")
	}
}

func TestRequestIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:9999"
	if got := requestIP(req); got != "10.0.0.1" {
		t.Errorf("requestIP = %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if got := requestIP(req); got != "203.0.113.7" {
		t.Errorf("requestIP with XFF = %q", got)
	}
}
