package chat

import (
	"fmt"
	"testing"
)

func TestAppendEvictsOldestPastCapacity(t *testing.T) {
	l := NewLog()
	// The log boots with one system message; fill well past capacity.
	for i := 0; i < Capacity+20; i++ {
		if _, ok := l.Append("user", fmt.Sprintf("message %d", i), "10.0.0.1"); !ok {
			t.Fatalf("append %d rejected", i)
		}
	}
	if got := l.Len(); got != Capacity {
		t.Fatalf("len = %d, want %d", got, Capacity)
	}
	msgs := l.Messages()
	if msgs[0].Text != "message 20" {
		t.Errorf("oldest = %q, want eviction from the front (message 20)", msgs[0].Text)
	}
	if msgs[len(msgs)-1].Text != fmt.Sprintf("message %d", Capacity+19) {
		t.Errorf("newest = %q, want last appended", msgs[len(msgs)-1].Text)
	}
}

func TestAppendExactly101EvictsOne(t *testing.T) {
	l := NewLog()
	// 1 boot message + 100 appends = 101; exactly the boot message must go.
	for i := 0; i < Capacity; i++ {
		l.Append("user", fmt.Sprintf("m%d", i), "")
	}
	if got := l.Len(); got != Capacity {
		t.Fatalf("len = %d, want %d", got, Capacity)
	}
	if l.Messages()[0].Text != "m0" {
		t.Errorf("oldest = %q, want boot message evicted", l.Messages()[0].Text)
	}
}

func TestAppendIgnoresEmptyText(t *testing.T) {
	l := NewLog()
	before := l.Len()
	if _, ok := l.Append("user", "   \t  ", "10.0.0.1"); ok {
		t.Error("whitespace-only text should be a no-op")
	}
	if _, ok := l.Append("user", "", "10.0.0.1"); ok {
		t.Error("empty text should be a no-op")
	}
	if l.Len() != before {
		t.Errorf("len changed from %d to %d", before, l.Len())
	}
}

func TestAppendDefaultsSender(t *testing.T) {
	l := NewLog()
	m, _ := l.Append("", "hello", "")
	if m.Sender != "ANONYMOUS" {
		t.Errorf("sender = %q, want ANONYMOUS", m.Sender)
	}
}

func TestIDsMonotonic(t *testing.T) {
	l := NewLog()
	var last int64
	for i := 0; i < 50; i++ {
		m, _ := l.Append("user", "x", "")
		if m.ID <= last {
			t.Fatalf("id %d not greater than previous %d", m.ID, last)
		}
		last = m.ID
	}
}

func TestPublicStripsIP(t *testing.T) {
	l := NewLog()
	m, _ := l.Append("user", "hi", "192.168.1.5")
	if m.IP != "192.168.1.5" {
		t.Fatalf("audit view ip = %q", m.IP)
	}
	if m.Public().IP != "" {
		t.Error("public view should strip ip")
	}
	for _, pm := range l.PublicMessages() {
		if pm.IP != "" {
			t.Errorf("PublicMessages leaked ip %q", pm.IP)
		}
	}
	found := false
	for _, am := range l.Messages() {
		if am.IP == "192.168.1.5" {
			found = true
		}
	}
	if !found {
		t.Error("audit view should keep ip")
	}
}

func TestClearResetsToSingleSystemMessage(t *testing.T) {
	l := NewLog()
	l.Append("user", "one", "")
	l.Append("user", "two", "")
	m := l.Clear("CHAT CLEARED BY ADMIN")
	if l.Len() != 1 {
		t.Fatalf("len = %d after clear, want 1", l.Len())
	}
	got := l.Messages()[0]
	if !got.IsSystem || got.Text != "CHAT CLEARED BY ADMIN" || got.ID != m.ID {
		t.Errorf("cleared log = %+v", got)
	}
}

func TestDeleteRemovesByID(t *testing.T) {
	l := NewLog()
	m1, _ := l.Append("user", "keep", "")
	m2, _ := l.Append("user", "drop", "")
	l.Delete(m2.ID)
	for _, m := range l.Messages() {
		if m.ID == m2.ID {
			t.Error("deleted message still present")
		}
	}
	found := false
	for _, m := range l.Messages() {
		if m.ID == m1.ID {
			found = true
		}
	}
	if !found {
		t.Error("unrelated message was deleted")
	}
}

func TestBannedReplyNotStored(t *testing.T) {
	l := NewLog()
	before := l.Len()
	m := l.Banned()
	if m.Text != "YOU ARE BANNED" || !m.IsSystem {
		t.Errorf("banned reply = %+v", m)
	}
	if l.Len() != before {
		t.Error("banned reply must not enter the log")
	}
}
