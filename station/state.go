// Package station holds the single shared station state: marquees, theme, news,
// visualizer, ban list and announcer persona. The state is created once at boot
// from defaults merged with the on-disk snapshot, mutated only by admin-origin
// events, and rewritten to disk after every mutation.
package station

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
)

// Marquee is one scrolling banner line.
type Marquee struct {
	Text   string `json:"text"`
	Speed  int    `json:"speed"`
	Active bool   `json:"active"`
}

type ThemeGlobal struct {
	HeaderColor string `json:"headerColor"`
	HeaderFont  string `json:"headerFont"`
}

type ThemeMarquee struct {
	TopTextColor    string `json:"topTextColor"`
	TopBgColor      string `json:"topBgColor"`
	TopFont         string `json:"topFont"`
	BottomTextColor string `json:"bottomTextColor"`
	BottomBgColor   string `json:"bottomBgColor"`
	BottomFont      string `json:"bottomFont"`
}

type ThemeChat struct {
	UserColor string `json:"userColor"`
	MsgColor  string `json:"msgColor"`
	Font      string `json:"font"`
}

type ThemeWeather struct {
	TempColor string `json:"tempColor"`
	Font      string `json:"font"`
}

type Theme struct {
	Global  ThemeGlobal  `json:"global"`
	Marquee ThemeMarquee `json:"marquee"`
	Chat    ThemeChat    `json:"chat"`
	Weather ThemeWeather `json:"weather"`
}

type Visualizer struct {
	Mode  string `json:"mode"`
	Scene string `json:"scene"`
}

// State is the full station configuration pushed to every viewer as sys_config
// and persisted wholesale as the snapshot document.
type State struct {
	MarqueeTop       Marquee             `json:"marqueeTop"`
	MarqueeBottom    Marquee             `json:"marqueeBottom"`
	NanaAutoAnnounce bool                `json:"nanaAutoAnnounce"`
	Theme            Theme               `json:"theme"`
	News             map[string][]string `json:"news"`
	Visualizer       Visualizer          `json:"visualizer"`
	BannedUsers      []string            `json:"bannedUsers"`
	NanaPersona      string              `json:"nanaPersona,omitempty"`
}

// DefaultPersona is the announcer persona used until an operator changes it.
const DefaultPersona = "You are Mrs. Lizard, a radio hostess who knows film and music of every genre and era. You announce the news in the style of an 80s radio DJ."

// Defaults returns the compiled-in station configuration.
func Defaults() State {
	return State{
		MarqueeTop: Marquee{
			Text:   ">>> ON AIR >>> WELCOME TO THE FUTURE OF RADIO >>>",
			Speed:  30,
			Active: true,
		},
		MarqueeBottom: Marquee{
			Text:   "HISTORY: WAITING FOR DATA...",
			Speed:  45,
			Active: true,
		},
		NanaAutoAnnounce: false,
		Theme: Theme{
			Global: ThemeGlobal{HeaderColor: "#ffff00", HeaderFont: "VT323"},
			Marquee: ThemeMarquee{
				TopTextColor: "#00ffff", TopBgColor: "#000000", TopFont: "VT323",
				BottomTextColor: "#ffff00", BottomBgColor: "#000000", BottomFont: "VT323",
			},
			Chat:    ThemeChat{UserColor: "#ffff00", MsgColor: "#ffffff", Font: "VT323"},
			Weather: ThemeWeather{TempColor: "#ffff00", Font: "VT323"},
		},
		News: map[string][]string{
			"MUSIC": {}, "LOCAL": {}, "TECH": {}, "HOROSCOPE": {},
		},
		Visualizer:  Visualizer{Mode: "NEON", Scene: "NEURAL"},
		BannedUsers: []string{},
		NanaPersona: DefaultPersona,
	}
}

// merge overlays raw JSON onto a default-populated state. Unmarshalling into a
// pre-filled struct gives field-level precedence: keys present in the snapshot
// win, absent keys keep their defaults, so a snapshot missing e.g. theme.chat
// backfills exactly that subsection. News categories merge per key.
func merge(base State, raw []byte) (State, error) {
	st := base
	if err := json.Unmarshal(raw, &st); err != nil {
		return base, err
	}
	// JSON null wipes maps and slices; restore defaults in that case.
	if st.News == nil {
		st.News = base.News
	}
	if st.BannedUsers == nil {
		st.BannedUsers = []string{}
	}
	if st.NanaPersona == "" {
		st.NanaPersona = base.NanaPersona
	}
	return st, nil
}

// Store owns the station state behind one coarse lock. Every mutation goes
// through Update, which persists the snapshot before returning.
type Store struct {
	mu    sync.Mutex
	path  string
	state State
}

// NewStore creates a store backed by the snapshot file at path, initialized to defaults.
func NewStore(path string) *Store {
	return &Store{path: path, state: Defaults()}
}

// Load reads the snapshot file if present and merges it over defaults.
// Any read or parse error falls back entirely to defaults and is logged; it is never fatal.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Error("state load error, using defaults", slog.Any("err", err), slog.String("path", s.path))
		}
		return
	}
	st, err := merge(Defaults(), raw)
	if err != nil {
		slog.Error("state parse error, using defaults", slog.Any("err", err), slog.String("path", s.path))
		return
	}
	s.state = st
	slog.Info("state loaded from disk", slog.String("path", s.path))
}

// save writes the snapshot file. Caller must hold the lock. Errors are logged,
// never returned: in-memory state stays authoritative even when the disk write fails.
func (s *Store) save() {
	data, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		slog.Error("state save error", slog.Any("err", err))
		return
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Error("state save error", slog.Any("err", err), slog.String("path", s.path))
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		slog.Error("state save error", slog.Any("err", err), slog.String("path", s.path))
	}
}

// Update runs fn against the state under the lock, then persists the snapshot.
func (s *Store) Update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.save()
}

// Merge overlays a partial JSON payload onto the current state with the same
// per-field precedence as Load, then persists. Used by full-config updates
// arriving over the admin channel.
func (s *Store) Merge(raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := merge(s.state, raw)
	if err != nil {
		return fmt.Errorf("merge config payload: %w", err)
	}
	s.state = st
	s.save()
	return nil
}

// Snapshot returns a deep copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (st State) clone() State {
	out := st
	out.News = make(map[string][]string, len(st.News))
	for k, v := range st.News {
		items := make([]string, len(v))
		copy(items, v)
		out.News[k] = items
	}
	out.BannedUsers = make([]string, len(st.BannedUsers))
	copy(out.BannedUsers, st.BannedUsers)
	return out
}

// IsBanned reports whether ip is on the ban list.
func (s *Store) IsBanned(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.state.BannedUsers {
		if b == ip {
			return true
		}
	}
	return false
}

// Ban adds ip to the ban list and persists. Returns false if already banned.
func (s *Store) Ban(ip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.state.BannedUsers {
		if b == ip {
			return false
		}
	}
	s.state.BannedUsers = append(s.state.BannedUsers, ip)
	s.save()
	return true
}

// Unban removes ip from the ban list and persists.
func (s *Store) Unban(ip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.state.BannedUsers[:0]
	for _, b := range s.state.BannedUsers {
		if b != ip {
			kept = append(kept, b)
		}
	}
	s.state.BannedUsers = kept
	s.save()
}

// BannedUsers returns a copy of the ban list.
func (s *Store) BannedUsers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.state.BannedUsers))
	copy(out, s.state.BannedUsers)
	return out
}
