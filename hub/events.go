package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/onnwee/radio-tender/backend/chat"
	"github.com/onnwee/radio-tender/backend/scrape"
	"github.com/onnwee/radio-tender/backend/station"
	"github.com/onnwee/radio-tender/backend/telemetry"
)

func decode[T any](raw json.RawMessage) (T, bool) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		slog.Warn("malformed event payload", slog.Any("err", err))
		return v, false
	}
	return v, true
}

// securityData is the admin moderation view: full audited chat plus ban list.
type securityData struct {
	History []chat.Message `json:"history"`
	Banned  []string       `json:"banned"`
}

func (h *Hub) security() securityData {
	return securityData{History: h.chat.Messages(), Banned: h.store.BannedUsers()}
}

// broadcastState pushes the full current snapshot to every session.
func (h *Hub) broadcastState() {
	h.Broadcast("sys_config", h.store.Snapshot())
}

func (h *Hub) dispatch(sess *session, env Envelope) {
	switch env.Event {
	case "chat message":
		h.handleChat(sess, env.Data)

	case "update_sys_config":
		// Merges into and persists the store, then rebroadcasts the merged
		// snapshot (not the raw payload), so a reload reflects the update.
		if err := h.store.Merge(env.Data); err != nil {
			slog.Warn("config update rejected", slog.Any("err", err))
			return
		}
		snap := h.store.Snapshot()
		if snap.NanaPersona != "" {
			h.gen.SetPersona(snap.NanaPersona)
		}
		h.Broadcast("sys_config", snap)

	case "admin_get_security_data":
		sess.enqueue("admin_security_data", h.security())

	case "admin_ban_ip":
		ip, ok := decode[string](env.Data)
		if !ok || ip == "" {
			return
		}
		h.store.Ban(ip)
		h.Broadcast("admin_security_data", h.security())

	case "admin_unban_ip":
		ip, ok := decode[string](env.Data)
		if !ok {
			return
		}
		h.store.Unban(ip)
		h.Broadcast("admin_security_data", h.security())

	case "admin_broadcast_msg":
		text, ok := decode[string](env.Data)
		if !ok {
			return
		}
		msg := h.chat.System(strings.ToUpper(text))
		h.Broadcast("chat message", msg)

	case "admin_send_alert":
		// Transient: broadcast only, never stored in chat history.
		text, ok := decode[string](env.Data)
		if !ok {
			return
		}
		h.Broadcast("show_alert", text)

	case "admin_toggle_announce":
		enabled, ok := decode[bool](env.Data)
		if !ok {
			return
		}
		h.store.Update(func(st *station.State) { st.NanaAutoAnnounce = enabled })
		h.broadcastState()

	case "admin_update_news":
		news, ok := decode[map[string][]string](env.Data)
		if !ok {
			return
		}
		h.store.Update(func(st *station.State) { st.News = news })
		h.broadcastState()

	case "admin_update_marquee":
		pair, ok := decode[struct {
			Top    station.Marquee `json:"top"`
			Bottom station.Marquee `json:"bottom"`
		}](env.Data)
		if !ok {
			return
		}
		h.store.Update(func(st *station.State) {
			st.MarqueeTop = pair.Top
			st.MarqueeBottom = pair.Bottom
		})
		h.broadcastState()

	case "admin_update_theme":
		theme, ok := decode[station.Theme](env.Data)
		if !ok {
			return
		}
		h.store.Update(func(st *station.State) { st.Theme = theme })
		h.broadcastState()

	case "admin_update_scene":
		scene, ok := decode[string](env.Data)
		if !ok {
			return
		}
		h.store.Update(func(st *station.State) { st.Visualizer.Scene = scene })
		h.broadcastState()

	case "admin_clear_chat":
		h.chat.Clear("CHAT CLEARED BY ADMIN")
		h.Broadcast("chat history", h.chat.PublicMessages())

	case "admin_delete_msg":
		id, ok := decode[int64](env.Data)
		if !ok {
			return
		}
		h.chat.Delete(id)
		h.Broadcast("chat history", h.chat.PublicMessages())
		h.Broadcast("admin_audit_update", h.chat.Messages())

	case "admin_ask_nana":
		h.handleAskNana(sess, env.Data)

	case "admin_override_track":
		req, ok := decode[scrape.Override](env.Data)
		if !ok {
			return
		}
		if !req.Active {
			req = scrape.Override{}
		}
		h.cache.SetOverride(req)
		// Clients re-query the current-track endpoint rather than receive the
		// value inline.
		h.Broadcast("force_refresh_metadata", nil)

	default:
		slog.Debug("unknown event", slog.String("event", env.Event))
	}
}

func (h *Hub) handleChat(sess *session, raw json.RawMessage) {
	payload, ok := decode[struct {
		Sender string `json:"sender"`
		Text   string `json:"text"`
	}](raw)
	if !ok {
		return
	}
	if h.store.IsBanned(sess.ip) {
		if telemetry.ChatRejections != nil {
			telemetry.ChatRejections.Inc()
		}
		sess.enqueue("chat message", h.chat.Banned())
		return
	}
	msg, stored := h.chat.Append(payload.Sender, payload.Text, sess.ip)
	if !stored {
		return
	}
	h.Broadcast("chat message", msg.Public())
	h.Broadcast("admin_audit_update", h.chat.Messages())
}

func (h *Hub) handleAskNana(sess *session, raw json.RawMessage) {
	var req struct {
		Topic      string `json:"topic"`
		Persona    string `json:"persona"`
		ImageStyle string `json:"imageStyle"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		// Legacy clients send the topic as a bare string.
		topic, ok := decode[string](raw)
		if !ok {
			return
		}
		req.Topic = topic
	}
	// Generation runs unbounded by the session lifetime; the reply goes to the
	// requester only.
	go func() {
		ann, err := h.gen.Announce(context.Background(), req.Topic, req.Persona, req.ImageStyle)
		if err != nil {
			slog.Error("announcement generation failed", slog.Any("err", err), slog.String("component", "announcer"))
			sess.enqueue("nana_error", "System overload.")
			return
		}
		sess.enqueue("nana_response", ann)
	}()
}
