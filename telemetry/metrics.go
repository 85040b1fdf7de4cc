// Package telemetry provides Prometheus metrics and correlation-id aware logging helpers.
package telemetry

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// Counters
	ScrapeCycles           prometheus.Counter
	ScrapeFailures         prometheus.Counter
	TrackChanges           prometheus.Counter
	ChatMessages           prometheus.Counter
	ChatRejections         prometheus.Counter
	AnnouncementsGenerated prometheus.Counter
	AnnouncementsFailed    prometheus.Counter

	// Gauges
	ConnectedSessions prometheus.Gauge
	ListenersGauge    prometheus.Gauge
)

// Init registers metrics (idempotent).
func Init() {
	once.Do(func() {
		ScrapeCycles = promauto.NewCounter(prometheus.CounterOpts{Name: "station_scrape_cycles_total", Help: "Number of upstream scrape cycles attempted"})
		ScrapeFailures = promauto.NewCounter(prometheus.CounterOpts{Name: "station_scrape_failures_total", Help: "Number of scrape cycles that failed and were skipped"})
		TrackChanges = promauto.NewCounter(prometheus.CounterOpts{Name: "station_track_changes_total", Help: "Number of genuine track changes detected"})
		ChatMessages = promauto.NewCounter(prometheus.CounterOpts{Name: "station_chat_messages_total", Help: "Number of chat messages accepted into the log"})
		ChatRejections = promauto.NewCounter(prometheus.CounterOpts{Name: "station_chat_rejections_total", Help: "Number of chat messages rejected from banned addresses"})
		AnnouncementsGenerated = promauto.NewCounter(prometheus.CounterOpts{Name: "station_announcements_generated_total", Help: "Number of AI announcements generated successfully"})
		AnnouncementsFailed = promauto.NewCounter(prometheus.CounterOpts{Name: "station_announcements_failed_total", Help: "Number of AI announcement attempts that failed"})
		ConnectedSessions = promauto.NewGauge(prometheus.GaugeOpts{Name: "station_connected_sessions", Help: "Current number of connected realtime sessions"})
		ListenersGauge = promauto.NewGauge(prometheus.GaugeOpts{Name: "station_listeners", Help: "Listener count reported by the upstream station"})
	})
}

// SetListeners records the listener count from the last successful scrape.
func SetListeners(n int) {
	if ListenersGauge != nil {
		ListenersGauge.Set(float64(n))
	}
}

// Correlation ID helpers ----------------------------------------------------
type corrKeyType struct{}

var corrKey corrKeyType

// WithCorrelation returns a new context embedding correlation id (if absent) and the id.
func WithCorrelation(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, corrKey, id)
}

// GetCorrelation returns correlation id or empty string.
func GetCorrelation(ctx context.Context) string {
	v := ctx.Value(corrKey)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// LoggerWithCorr returns a logger with corr attribute if present.
func LoggerWithCorr(ctx context.Context) *slog.Logger {
	if id := GetCorrelation(ctx); id != "" {
		return slog.Default().With(slog.String("corr", id))
	}
	return slog.Default()
}
