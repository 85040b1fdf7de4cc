package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/onnwee/radio-tender/backend/telemetry"
)

// placeholderTitles are upstream filler rows, never real tracks.
var placeholderTitles = map[string]bool{
	"stream title": true,
	"current song": true,
}

// SplitTrack parses a raw now-playing string on the first " - " separator.
// "A - B - C" yields artist "A" and title "B - C"; with no separator the whole
// string becomes the artist and the title is empty.
func SplitTrack(raw string) Track {
	artist, title, found := strings.Cut(raw, " - ")
	if !found {
		return Track{Artist: strings.TrimSpace(raw)}
	}
	return Track{Artist: strings.TrimSpace(artist), Title: strings.TrimSpace(title)}
}

// parseHistory extracts played rows from the history page: the second table,
// header row skipped, raw time and raw title per row. Placeholder and
// empty-title rows are dropped, rows matching the current track are dropped,
// and the rest dedup on (time, artist, title) keeping first occurrence.
func parseHistory(html string, current Track) ([]HistoryEntry, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("history parse: %w", err)
	}
	currentKey := strings.ToLower(strings.TrimSpace(current.String()))
	seen := make(map[string]bool)
	entries := []HistoryEntry{}
	doc.Find("body > table").Eq(1).Find("tr").Slice(1, goquery.ToEnd).Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		rawTime := strings.TrimSpace(cells.Eq(0).Text())
		rawTitle := strings.TrimSpace(cells.Eq(1).Text())
		if rawTitle == "" || placeholderTitles[strings.ToLower(rawTitle)] {
			return
		}
		track := SplitTrack(rawTitle)
		if strings.ToLower(strings.TrimSpace(track.String())) == currentKey {
			return
		}
		key := rawTime + "\x00" + track.Artist + "\x00" + track.Title
		if seen[key] {
			return
		}
		seen[key] = true
		entries = append(entries, HistoryEntry{Artist: track.Artist, Title: track.Title, Time: rawTime})
	})
	return entries, nil
}

// applyCurrent runs change detection against the cached track and updates the
// cache when no override is active. A change only counts when the literal
// strings differ, the new one is longer than 5 characters, and it is not the
// empty " - " separator.
func (c *Cache) applyCurrent(temp Track, listeners int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = listeners
	newStr := temp.String()
	changed := newStr != c.current.String() && len(newStr) > 5 && newStr != " - "
	if !c.override.Active {
		c.current = temp
	}
	return changed
}

func (c *Cache) setHistory(entries []HistoryEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = entries
	c.lastSuccess = time.Now()
}

// Reconciler drives the polling loop. On each tick it refreshes the stats and
// history caches; any upstream or parse failure skips the tick and the stale
// cache stays authoritative until the next one.
type Reconciler struct {
	Cache    *Cache
	Client   *Client
	Interval time.Duration

	// AutoAnnounce gates the track-change announcement; Announce fires it.
	AutoAnnounce func() bool
	Announce     func(artist, title string)
}

// Run polls until the context is cancelled, with one immediate tick at start.
func (r *Reconciler) Run(ctx context.Context) {
	interval := r.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	slog.Info("scrape reconciler starting", slog.Duration("interval", interval))
	r.tick(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("scrape reconciler stopped")
			return
		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Reconciler) tick(ctx context.Context) {
	if telemetry.ScrapeCycles != nil {
		telemetry.ScrapeCycles.Inc()
	}
	if err := r.reconcile(ctx); err != nil {
		if telemetry.ScrapeFailures != nil {
			telemetry.ScrapeFailures.Inc()
		}
		slog.Warn("scrape tick failed", slog.Any("err", err), slog.String("component", "scrape"))
	}
}

func (r *Reconciler) reconcile(ctx context.Context) error {
	stats, err := r.Client.Stats(ctx)
	if err != nil {
		return err
	}

	var temp Track
	c := r.Cache
	c.mu.Lock()
	override := c.override
	c.mu.Unlock()
	if override.Active {
		temp = Track{Artist: override.Artist, Title: override.Title}
	} else {
		raw := stats.SongTitle
		if raw == "" {
			raw = "Live Stream"
		}
		temp = SplitTrack(raw)
	}

	changed := c.applyCurrent(temp, stats.CurrentListeners)
	telemetry.SetListeners(stats.CurrentListeners)
	if changed {
		slog.Info("track changed", slog.String("track", temp.String()), slog.String("component", "scrape"))
		if telemetry.TrackChanges != nil {
			telemetry.TrackChanges.Inc()
		}
		if r.AutoAnnounce != nil && r.AutoAnnounce() && r.Announce != nil {
			r.Announce(temp.Artist, temp.Title)
		}
	}

	html, err := r.Client.PlayedHTML(ctx)
	if err != nil {
		return err
	}
	entries, err := parseHistory(html, temp)
	if err != nil {
		return err
	}
	c.setHistory(entries)
	return nil
}
