package chat

import (
	"strings"
	"sync"
	"time"

	"github.com/onnwee/radio-tender/backend/telemetry"
)

// Capacity bounds the chat log; the oldest message is evicted first.
const Capacity = 100

// Message is one chat entry. IP is only present in admin-facing views and is
// stripped from public broadcasts via Public.
type Message struct {
	ID        int64     `json:"id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp,omitzero"`
	IsSystem  bool      `json:"isSystem"`
	IsNana    bool      `json:"isNana,omitempty"`
	IP        string    `json:"ip,omitempty"`
}

// Public returns the message with the sender address stripped.
func (m Message) Public() Message {
	m.IP = ""
	return m
}

// Log is the bounded chat ring. Safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	msgs   []Message
	lastID int64
}

// NewLog returns a log seeded with a boot system message, so a restart never
// replays a stale announcer.
func NewLog() *Log {
	l := &Log{}
	l.push(Message{ID: l.nextID(), Sender: "SYSTEM", Text: "SYSTEM REBOOTED. CHAT CLEARED.", IsSystem: true})
	return l
}

// nextID derives an id from the creation timestamp, bumped when two messages
// land in the same millisecond. Caller must hold the lock.
func (l *Log) nextID() int64 {
	id := time.Now().UnixMilli()
	if id <= l.lastID {
		id = l.lastID + 1
	}
	l.lastID = id
	return id
}

// push appends and evicts from the front past Capacity. Caller must hold the lock.
func (l *Log) push(m Message) {
	l.msgs = append(l.msgs, m)
	if len(l.msgs) > Capacity {
		l.msgs = l.msgs[1:]
	}
}

// Append stores a viewer message. Empty or whitespace-only text is a no-op
// and the second return is false.
func (l *Log) Append(sender, text, ip string) (Message, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Message{}, false
	}
	if sender == "" {
		sender = "ANONYMOUS"
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	m := Message{
		ID:        l.nextID(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
		IP:        ip,
	}
	l.push(m)
	if telemetry.ChatMessages != nil {
		telemetry.ChatMessages.Inc()
	}
	return m, true
}

// System appends a system message (not subject to the empty-text check; admin
// broadcasts arrive pre-validated).
func (l *Log) System(text string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := Message{ID: l.nextID(), Sender: "SYSTEM", Text: text, IsSystem: true}
	l.push(m)
	return m
}

// Nana appends a message from the automated announcer persona.
func (l *Log) Nana(sender, text string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := Message{
		ID:        l.nextID(),
		Sender:    sender,
		Text:      text,
		Timestamp: time.Now().UTC(),
		IsNana:    true,
	}
	l.push(m)
	return m
}

// Banned builds the private reply sent to a banned submitter. It is not stored.
func (l *Log) Banned() Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Message{ID: l.nextID(), Sender: "SYSTEM", Text: "YOU ARE BANNED", IsSystem: true}
}

// Clear resets the log to a single synthetic system message and returns it.
func (l *Log) Clear(text string) Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	m := Message{ID: l.nextID(), Sender: "SYSTEM", Text: text, IsSystem: true}
	l.msgs = []Message{m}
	return m
}

// Delete removes every message with the given id.
func (l *Log) Delete(id int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kept := l.msgs[:0]
	for _, m := range l.msgs {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	l.msgs = kept
}

// Messages returns a copy of the full log including sender addresses (admin audit view).
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.msgs))
	copy(out, l.msgs)
	return out
}

// PublicMessages returns a copy of the log with sender addresses stripped.
func (l *Log) PublicMessages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Message, len(l.msgs))
	for i, m := range l.msgs {
		out[i] = m.Public()
	}
	return out
}

// Len reports the current number of messages.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.msgs)
}
