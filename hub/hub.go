// Package hub manages the realtime websocket sessions: it delivers the full
// station snapshot and chat history on join, routes admin mutation events into
// the station store, and rebroadcasts state and chat to every viewer.
//
// Admin events are unauthenticated at this layer; the trust boundary is
// whoever can reach the admin UI.
package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/onnwee/radio-tender/backend/announcer"
	"github.com/onnwee/radio-tender/backend/chat"
	"github.com/onnwee/radio-tender/backend/scrape"
	"github.com/onnwee/radio-tender/backend/station"
	"github.com/onnwee/radio-tender/backend/telemetry"
)

// NanaSender tags chat messages written by the automated announcer.
const NanaSender = "MRS. LIZARD 🦎"

// Envelope is the wire format in both directions: {"event": ..., "data": ...}.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// session is one connected viewer or admin. Outbound traffic goes through a
// buffered channel drained by a single writer goroutine; a full buffer drops
// the event rather than blocking the hub.
type session struct {
	conn *websocket.Conn
	send chan outbound
	ip   string

	mu     sync.Mutex
	closed bool
}

// enqueue queues an event for the session. Safe after disconnect: async
// replies (AI generation) may land on a session that already went away.
func (s *session) enqueue(event string, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.send <- outbound{Event: event, Data: data}:
	default:
		slog.Warn("session send buffer full, dropping event", slog.String("event", event), slog.String("ip", s.ip))
	}
}

func (s *session) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// Hub routes events between sessions and the shared state.
type Hub struct {
	store *station.Store
	chat  *chat.Log
	cache *scrape.Cache
	gen   *announcer.Generator

	mu       sync.Mutex
	sessions map[*session]struct{}

	upgrader websocket.Upgrader
}

// New builds a hub. allowedOrigin restricts websocket upgrades; an empty value
// allows any origin (dev mode).
func New(store *station.Store, log *chat.Log, cache *scrape.Cache, gen *announcer.Generator, allowedOrigin string) *Hub {
	h := &Hub{
		store:    store,
		chat:     log,
		cache:    cache,
		gen:      gen,
		sessions: make(map[*session]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowedOrigin == "" {
				return true
			}
			return origin == allowedOrigin
		},
	}
	return h
}

// ServeHTTP upgrades the connection and runs the session until it disconnects.
// A reconnecting client is brand new: it re-receives the full snapshots.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", slog.Any("err", err))
		return
	}
	sess := &session{conn: conn, send: make(chan outbound, 64), ip: clientIP(r)}

	h.mu.Lock()
	h.sessions[sess] = struct{}{}
	n := len(h.sessions)
	h.mu.Unlock()
	if telemetry.ConnectedSessions != nil {
		telemetry.ConnectedSessions.Set(float64(n))
	}
	slog.Debug("session connected", slog.String("ip", sess.ip), slog.Int("sessions", n))

	go func() {
		for msg := range sess.send {
			if err := conn.WriteJSON(msg); err != nil {
				// Let the read loop observe the closed conn and unregister.
				_ = conn.Close()
			}
		}
	}()

	// Initial snapshot: full state, then full (public) chat history.
	sess.enqueue("sys_config", h.store.Snapshot())
	sess.enqueue("chat history", h.chat.PublicMessages())

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			break
		}
		h.dispatch(sess, env)
	}

	h.mu.Lock()
	delete(h.sessions, sess)
	n = len(h.sessions)
	h.mu.Unlock()
	if telemetry.ConnectedSessions != nil {
		telemetry.ConnectedSessions.Set(float64(n))
	}
	sess.shutdown()
	_ = conn.Close()
	slog.Debug("session disconnected", slog.String("ip", sess.ip), slog.Int("sessions", n))
}

// Broadcast sends an event to every connected session.
func (h *Hub) Broadcast(event string, data any) {
	h.mu.Lock()
	targets := make([]*session, 0, len(h.sessions))
	for s := range h.sessions {
		targets = append(targets, s)
	}
	h.mu.Unlock()
	for _, s := range targets {
		s.enqueue(event, data)
	}
}

// AnnounceTrack runs the unattended track-change announcement: one short line
// from the persona, appended to chat and broadcast. Failures are logged only,
// never surfaced to clients.
func (h *Hub) AnnounceTrack(artist, title string) {
	go func() {
		line, err := h.gen.TrackIntro(context.Background(), artist, title)
		if err != nil {
			slog.Error("auto announcement failed", slog.Any("err", err), slog.String("component", "announcer"))
			return
		}
		msg := h.chat.Nana(NanaSender, line)
		h.Broadcast("chat message", msg.Public())
	}()
}

// clientIP extracts the submitting network address, honoring X-Forwarded-For.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.Index(fwd, ","); idx >= 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
