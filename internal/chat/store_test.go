package chat

import (
	"testing"

	"github.com/peerwave/peerwave/internal/proto"
	"github.com/peerwave/peerwave/internal/storage"
)

func newTestStore(t *testing.T, selfID string) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	db, err := storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	s, err := NewStore(db, selfID)
	if err != nil {
		t.Fatal(err)
	}
	return s, dir
}

func inbound(dialog, sender, receiver, text string, ts int64) *proto.ChatMessage {
	return &proto.ChatMessage{
		Type:        proto.KindPrivateChat,
		DialogID:    proto.ID(dialog),
		SenderID:    proto.ID(sender),
		ReceiverID:  proto.ID(receiver),
		TextContent: text,
		Timestamp:   ts,
	}
}

func TestStatusAssignmentAtInsertion(t *testing.T) {
	s, _ := newTestStore(t, "7")

	// Authored locally: READ regardless of what the frame claimed.
	own := inbound("42", "7", "8", "hi", 1000)
	own.Status = proto.StatusSent
	stored, err := s.Add(own)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != proto.StatusRead {
		t.Fatalf("own message status = %s, want READ", stored.Status)
	}

	// Authored by the counterpart: CREATED.
	stored, err = s.Add(inbound("42", "8", "7", "yo", 1001))
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != proto.StatusCreated {
		t.Fatalf("peer message status = %s, want CREATED", stored.Status)
	}
}

func TestAddAcceptsSerializedFrame(t *testing.T) {
	s, _ := newTestStore(t, "7")

	// dialogId as a JSON number must land under the string key "42".
	raw := `{"type":"PRIVATE_CHAT","dialogId":42,"senderId":"7","receiverId":"8","textContent":"hi","timestamp":1000}`
	if _, err := s.Add(raw); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Add([]byte(raw)); err != nil {
		t.Fatal(err)
	}

	msgs := s.Messages("42")
	if len(msgs) != 2 {
		t.Fatalf("expected 2 entries (duplicates kept), got %d", len(msgs))
	}
}

func TestAddRejectsNonChatInput(t *testing.T) {
	s, _ := newTestStore(t, "7")

	if _, err := s.Add(`{"type":"HANGUP","callId":"c1"}`); err == nil {
		t.Fatal("expected error for signaling frame")
	}
	if _, err := s.Add(42); err == nil {
		t.Fatal("expected error for unsupported input type")
	}
}

func TestAddRollsBackWhenPersistFails(t *testing.T) {
	db, err := storage.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(db, "7")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := s.Add(inbound("d1", "8", "7", "kept", 1)); err != nil {
		t.Fatal(err)
	}

	// With the database gone every write-through fails; the sequence must
	// not grow past what storage holds.
	db.Close()

	if _, err := s.Add(inbound("d1", "8", "7", "lost", 2)); err == nil {
		t.Fatal("expected persist error after database close")
	}
	msgs := s.Messages("d1")
	if len(msgs) != 1 || msgs[0].TextContent != "kept" {
		t.Fatalf("in-memory sequence diverged from storage: %+v", msgs)
	}

	// A dialog whose first message fails must not linger as an entry.
	if _, err := s.Add(inbound("d2", "8", "7", "never", 3)); err == nil {
		t.Fatal("expected persist error after database close")
	}
	if got := s.Messages("d2"); len(got) != 0 {
		t.Fatalf("failed first insert left %d messages behind", len(got))
	}
	if ds := s.Dialogs(); len(ds) != 1 {
		t.Fatalf("expected only d1 in summaries, got %+v", ds)
	}
}

func TestMarkReadIdempotent(t *testing.T) {
	s, _ := newTestStore(t, "7")

	s.Add(inbound("d1", "8", "7", "one", 1))
	s.Add(inbound("d1", "8", "7", "two", 2))
	s.Add(inbound("d1", "7", "8", "mine", 3))

	if err := s.MarkRead("d1", "8"); err != nil {
		t.Fatal(err)
	}
	first := s.Messages("d1")

	if err := s.MarkRead("d1", "8"); err != nil {
		t.Fatal(err)
	}
	second := s.Messages("d1")

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("second MarkRead changed entry %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	for _, m := range second {
		if m.Status != proto.StatusRead {
			t.Fatalf("message %q still %s", m.TextContent, m.Status)
		}
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	db, err := storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	s, err := NewStore(db, "7")
	if err != nil {
		t.Fatal(err)
	}
	s.Add(inbound("42", "8", "7", "hello", 100))
	s.Add(inbound("42", "7", "8", "hey", 200))
	s.Add(inbound("g1", "9", "", "group msg", 300))
	db.Close()

	db, err = storage.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	reloaded, err := NewStore(db, "7")
	if err != nil {
		t.Fatal(err)
	}

	for _, dialog := range []string{"42", "g1"} {
		before := s.Messages(dialog)
		after := reloaded.Messages(dialog)
		if len(before) != len(after) {
			t.Fatalf("dialog %s: %d vs %d messages", dialog, len(before), len(after))
		}
		for i := range before {
			if before[i] != after[i] {
				t.Fatalf("dialog %s entry %d differs: %+v vs %+v", dialog, i, before[i], after[i])
			}
		}
	}
}

func TestClear(t *testing.T) {
	s, _ := newTestStore(t, "7")

	s.Add(inbound("d1", "8", "7", "x", 1))
	if err := s.Clear("d1"); err != nil {
		t.Fatal(err)
	}
	if n := len(s.Messages("d1")); n != 0 {
		t.Fatalf("expected empty dialog, got %d", n)
	}
	// Appending after clear works.
	s.Add(inbound("d1", "8", "7", "y", 2))
	if n := len(s.Messages("d1")); n != 1 {
		t.Fatalf("expected 1 message, got %d", n)
	}
}

func TestDialogSummaries(t *testing.T) {
	s, _ := newTestStore(t, "7")

	s.Add(inbound("a", "8", "7", "old", 100))
	s.Add(inbound("a", "8", "7", "newest in a", 300))
	// Late arrival: inserted last but timestamped earliest.
	s.Add(inbound("a", "8", "7", "late", 200))

	s.Add(inbound("b", "7", "9", "my own", 400))

	dialogs := s.Dialogs()
	if len(dialogs) != 2 {
		t.Fatalf("expected 2 dialogs, got %d", len(dialogs))
	}

	// b has the newest activity and sorts first.
	if dialogs[0].DialogID != "b" || dialogs[1].DialogID != "a" {
		t.Fatalf("order = %s, %s", dialogs[0].DialogID, dialogs[1].DialogID)
	}

	a := dialogs[1]
	if a.LastText != "newest in a" {
		t.Fatalf("latest in a = %q", a.LastText)
	}
	if a.Unread != 3 {
		t.Fatalf("unread in a = %d, want 3", a.Unread)
	}

	// Own messages never count as unread.
	if dialogs[0].Unread != 0 {
		t.Fatalf("unread in b = %d, want 0", dialogs[0].Unread)
	}

	s.MarkRead("a", "8")
	for _, d := range s.Dialogs() {
		if d.DialogID == "a" && d.Unread != 0 {
			t.Fatalf("unread after MarkRead = %d", d.Unread)
		}
	}
}

func TestCompose(t *testing.T) {
	s, _ := newTestStore(t, "7")

	msg := s.Compose("42", "8", "hi", false)
	if msg.Type != proto.KindPrivateChat || msg.SenderID != "7" || msg.ReceiverID != "8" {
		t.Fatalf("private compose = %+v", msg)
	}
	if msg.ID == "" || msg.Timestamp == 0 {
		t.Fatal("compose must assign id and timestamp")
	}

	grp := s.Compose("g1", "", "all", true)
	if grp.Type != proto.KindGroupChat || grp.ReceiverID != "" {
		t.Fatalf("group compose = %+v", grp)
	}
}
