package telemetry

import (
	"context"
	"testing"
)

func TestInitIdempotent(t *testing.T) {
	// promauto panics on duplicate registration; a second Init must be a no-op.
	Init()
	Init()
	if ScrapeCycles == nil || ConnectedSessions == nil {
		t.Fatal("metrics not registered")
	}
	ScrapeCycles.Inc()
	SetListeners(12)
}

func TestCorrelation(t *testing.T) {
	ctx := context.Background()
	if got := GetCorrelation(ctx); got != "" {
		t.Errorf("empty context correlation = %q", got)
	}
	ctx = WithCorrelation(ctx, "corr-1")
	if got := GetCorrelation(ctx); got != "corr-1" {
		t.Errorf("correlation = %q", got)
	}
	if LoggerWithCorr(ctx) == nil {
		t.Error("nil logger")
	}
}
