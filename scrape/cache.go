package scrape

import (
	"sync"
	"time"
)

// Track is a parsed now-playing value.
type Track struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// String renders the literal "artist - title" form used for change detection.
func (t Track) String() string {
	return t.Artist + " - " + t.Title
}

// HistoryEntry is one played-history row. Time is the raw time column from
// the upstream page, not parsed.
type HistoryEntry struct {
	Artist string `json:"artist"`
	Title  string `json:"title"`
	Time   string `json:"time"`
}

// Override is an operator-forced now-playing value. While active it fully
// supersedes scraped metadata until cleared.
type Override struct {
	Active bool   `json:"active"`
	Artist string `json:"artist"`
	Title  string `json:"title"`
}

// Cache holds the reconciled upstream view. Readers (HTTP handlers, the
// announcer trigger) and the poller share it behind one mutex.
type Cache struct {
	mu          sync.Mutex
	current     Track
	history     []HistoryEntry
	listeners   int
	override    Override
	lastSuccess time.Time
}

// NewCache returns a cache with the boot placeholder track.
func NewCache() *Cache {
	return &Cache{current: Track{Artist: "Radio", Title: "Connecting..."}}
}

// CurrentTrack returns the override while active, otherwise the cached scraped track.
func (c *Cache) CurrentTrack() Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.override.Active {
		return Track{Artist: c.override.Artist, Title: c.override.Title}
	}
	return c.current
}

// History returns a copy of the cached history list.
func (c *Cache) History() []HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]HistoryEntry, len(c.history))
	copy(out, c.history)
	return out
}

// Listeners returns the last reported listener count.
func (c *Cache) Listeners() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.listeners
}

// SetOverride replaces the operator override wholesale.
func (c *Cache) SetOverride(o Override) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.override = o
}

// OverrideActive reports whether an override is in effect.
func (c *Cache) OverrideActive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.override.Active
}

// LastSuccess reports when the poller last completed a full tick.
func (c *Cache) LastSuccess() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastSuccess
}
