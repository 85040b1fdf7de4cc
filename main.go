// Command backend is the main entrypoint for the radio-tender companion service.
// It:
//   - Loads configuration and initializes structured logging.
//   - Restores the station state snapshot from disk (defaults backfill gaps).
//   - Starts the upstream scrape reconciler (now-playing + play history).
//   - Exposes the HTTP API (stream proxy, track queries, uploads, /metrics)
//     and the realtime websocket channel for viewers and admins.
//
// Shutdown is graceful on SIGINT/SIGTERM.
package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // G108: pprof endpoints enabled only when ENABLE_PPROF=1
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/onnwee/radio-tender/backend/announcer"
	"github.com/onnwee/radio-tender/backend/chat"
	"github.com/onnwee/radio-tender/backend/config"
	"github.com/onnwee/radio-tender/backend/hub"
	"github.com/onnwee/radio-tender/backend/scrape"
	"github.com/onnwee/radio-tender/backend/server"
	"github.com/onnwee/radio-tender/backend/station"
	"github.com/onnwee/radio-tender/backend/telemetry"
)

func main() {
	// Load .env file if present (local dev convenience only; production relies on real env)
	_ = godotenv.Load(".env")

	// Configure logging (level + format). Defaults: level=info, format=text.
	lvl := slog.LevelInfo
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	case "info", "":
		// keep default
	default:
		tmp := slog.New(slog.NewTextHandler(os.Stdout, nil))
		tmp.Warn("unknown LOG_LEVEL, using info", slog.String("value", os.Getenv("LOG_LEVEL")))
	}
	format := strings.ToLower(os.Getenv("LOG_FORMAT")) // text | json
	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	default:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	}
	slog.SetDefault(slog.New(handler))

	// Config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	// Metrics / telemetry init
	telemetry.Init()

	// Initialize OpenTelemetry tracing (optional; requires OTEL_EXPORTER_OTLP_ENDPOINT)
	shutdown, err := telemetry.InitTracing("radio-tender", "1.0.0")
	if err != nil {
		slog.Error("tracing initialization failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer shutdown()

	// Station state: defaults merged with the on-disk snapshot.
	store := station.NewStore(cfg.StateFile)
	store.Load()

	// AI announcer. A missing key disables generation but not the service.
	var textGen announcer.TextGenerator
	if err := cfg.ValidateAnnouncerReady(); err != nil {
		slog.Warn("AI announcer disabled", slog.Any("err", err))
	} else {
		gemini, err := announcer.NewGemini(context.Background(), cfg.GeminiAPIKey)
		if err != nil {
			slog.Error("gemini client init failed", slog.Any("err", err))
			os.Exit(1)
		}
		textGen = gemini
		masked := "***" + cfg.GeminiAPIKey[len(cfg.GeminiAPIKey)-4:]
		slog.Info("AI key detected", slog.String("tail", masked))
	}
	persona := store.Snapshot().NanaPersona
	if persona == "" {
		persona = station.DefaultPersona
	}
	gen := announcer.New(textGen, persona, cfg.PublicDir)

	// Shared runtime pieces.
	chatLog := chat.NewLog()
	cache := scrape.NewCache()
	h := hub.New(store, chatLog, cache, gen, cfg.FrontendURL)

	// Root context with graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Upstream scrape reconciler: fixed interval plus one immediate run.
	reconciler := &scrape.Reconciler{
		Cache:        cache,
		Client:       &scrape.Client{BaseURL: cfg.StationURL, SID: cfg.StationSID},
		Interval:     cfg.ScrapeInterval,
		AutoAnnounce: func() bool { return store.Snapshot().NanaAutoAnnounce },
		Announce:     h.AnnounceTrack,
	}
	go reconciler.Run(ctx)

	// Enable pprof profiling endpoints in debug mode (ENABLE_PPROF=1)
	if os.Getenv("ENABLE_PPROF") == "1" {
		pprofAddr := os.Getenv("PPROF_ADDR")
		if pprofAddr == "" {
			pprofAddr = "localhost:6060"
		}
		go func() {
			slog.Info("pprof profiling enabled", slog.String("addr", pprofAddr))
			srv := &http.Server{
				Addr:              pprofAddr,
				Handler:           nil, // default mux exposes /debug/pprof
				ReadHeaderTimeout: 5 * time.Second,
				ReadTimeout:       10 * time.Second,
				WriteTimeout:      10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				slog.Error("pprof server error", slog.Any("err", err))
			}
		}()
	}

	// HTTP server: station API + websocket channel.
	streams := []server.AudioStream{
		{ID: "main", Name: "Main Stream", URL: cfg.StationURL + cfg.StreamMount, IsActive: true},
	}
	handlers := server.NewHandlers(cache, streams, cfg.PublicDir, cfg.StateFile)
	mux := server.NewMux(ctx, handlers, h, cfg.FrontendURL)
	go func() {
		slog.Info("radio server starting", slog.String("addr", cfg.HTTPAddr))
		if err := server.Start(ctx, mux, cfg.HTTPAddr); err != nil {
			slog.Error("http server exited with error", slog.Any("err", err))
		}
	}()

	// Block until shutdown signal
	<-ctx.Done()
	slog.Info("shutting down")
}
