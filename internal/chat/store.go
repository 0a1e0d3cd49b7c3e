// Package chat keeps the per-dialog message log. The log is append-only:
// messages are never removed except by clearing a whole dialog, and every
// mutation is written through to durable storage so the history survives
// restarts.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/peerwave/peerwave/internal/proto"
	"github.com/peerwave/peerwave/internal/storage"
)

// FrameSource is the slice of the realtime layer the store consumes.
type FrameSource interface {
	Subscribe() (ch chan proto.Frame, cancel func())
}

// Store holds every dialog's ordered message sequence.
type Store struct {
	db *storage.DB

	mu      sync.RWMutex
	selfID  string
	dialogs map[string][]*proto.ChatMessage
}

// NewStore loads the persisted dialogs and returns a ready store.
// selfID is the locally authenticated user; messages it authored are
// considered read at insertion.
func NewStore(db *storage.DB, selfID string) (*Store, error) {
	s := &Store{
		selfID:  selfID,
		db:      db,
		dialogs: make(map[string][]*proto.ChatMessage),
	}

	persisted, err := db.LoadDialogs()
	if err != nil {
		return nil, fmt.Errorf("load message store: %w", err)
	}
	for id, payload := range persisted {
		var msgs []*proto.ChatMessage
		if err := json.Unmarshal(payload, &msgs); err != nil {
			log.Printf("CHAT: dialog %s unreadable, skipping: %v", id, err)
			continue
		}
		s.dialogs[id] = msgs
	}

	return s, nil
}

// SetSelf switches the local identity. Only future insertions are affected;
// stored statuses are never rewritten.
func (s *Store) SetSelf(userID string) {
	s.mu.Lock()
	s.selfID = userID
	s.mu.Unlock()
}

// Add appends a message to its dialog. It accepts a parsed *proto.ChatMessage
// or a raw serialized frame ([]byte or string). The stored status is assigned
// here: READ when the local user authored it, CREATED otherwise. Duplicate
// deliveries produce duplicate entries.
func (s *Store) Add(raw any) (*proto.ChatMessage, error) {
	msg, err := coerce(raw)
	if err != nil {
		return nil, err
	}
	if msg.DialogID == "" {
		return nil, fmt.Errorf("chat: message has no dialog id")
	}

	stored := *msg
	if stored.Timestamp == 0 {
		stored.Timestamp = proto.NowMillis()
	}

	dialogID := string(stored.DialogID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if stored.SenderID == proto.ID(s.selfID) && s.selfID != "" {
		stored.Status = proto.StatusRead
	} else {
		stored.Status = proto.StatusCreated
	}
	s.dialogs[dialogID] = append(s.dialogs[dialogID], &stored)

	// The in-memory sequence must never hold messages durable storage does
	// not: roll the append back when the write-through fails.
	if err := s.persist(dialogID); err != nil {
		seq := s.dialogs[dialogID]
		if len(seq) <= 1 {
			delete(s.dialogs, dialogID)
		} else {
			s.dialogs[dialogID] = seq[:len(seq)-1]
		}
		return nil, err
	}
	return &stored, nil
}

// Clear resets a dialog's message sequence to empty.
func (s *Store) Clear(dialogID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.dialogs, dialogID)
	if err := s.db.DeleteDialog(dialogID); err != nil {
		return err
	}
	log.Printf("CHAT: cleared dialog %s", dialogID)
	return nil
}

// MarkRead transitions every message in the dialog authored by peerID to
// READ. Statuses only move forward, so applying this twice is a no-op the
// second time.
func (s *Store) MarkRead(dialogID, peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for _, m := range s.dialogs[dialogID] {
		if m.SenderID == proto.ID(peerID) && m.Status.Before(proto.StatusRead) {
			m.Status = proto.StatusRead
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.persist(dialogID)
}

// Messages returns a copy of the dialog's sequence in insertion order.
func (s *Store) Messages(dialogID string) []proto.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.dialogs[dialogID]
	out := make([]proto.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = *m
	}
	return out
}

// DialogSummary is one row of the chat list view.
type DialogSummary struct {
	DialogID      string     `json:"dialogId"`
	Kind          proto.Kind `json:"type"`
	LastText      string     `json:"lastText"`
	LastSender    string     `json:"lastSender"`
	LastTimestamp int64      `json:"lastTimestamp"`
	LastTime      string     `json:"lastTime"`
	Unread        int        `json:"unread"`
}

// Dialogs returns one summary per dialog, newest activity first. The latest
// message is picked by timestamp, which can differ from insertion order when
// frames arrived late.
func (s *Store) Dialogs() []DialogSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]DialogSummary, 0, len(s.dialogs))
	for id, msgs := range s.dialogs {
		if len(msgs) == 0 {
			continue
		}
		latest := msgs[0]
		unread := 0
		for _, m := range msgs {
			if m.Timestamp > latest.Timestamp {
				latest = m
			}
			if m.SenderID != proto.ID(s.selfID) && m.Status != proto.StatusRead {
				unread++
			}
		}
		out = append(out, DialogSummary{
			DialogID:      id,
			Kind:          latest.Type,
			LastText:      latest.TextContent,
			LastSender:    string(latest.SenderID),
			LastTimestamp: latest.Timestamp,
			LastTime:      displayTime(latest.Timestamp),
			Unread:        unread,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastTimestamp > out[j].LastTimestamp
	})
	return out
}

// Compose builds an outbound message authored by the local user. receiverID
// is empty for group dialogs.
func (s *Store) Compose(dialogID, receiverID, text string, group bool) *proto.ChatMessage {
	s.mu.RLock()
	self := s.selfID
	s.mu.RUnlock()
	if group {
		return proto.NewGroupMessage(dialogID, self, text)
	}
	return proto.NewPrivateMessage(dialogID, self, receiverID, text)
}

// Run consumes chat frames from the shared channel until ctx is cancelled.
// Signaling frames arrive on the same subscription and are ignored here.
func (s *Store) Run(ctx context.Context, src FrameSource) {
	ch, cancel := src.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-ch:
			if !ok {
				return
			}
			msg, isChat := f.(*proto.ChatMessage)
			if !isChat {
				continue
			}
			if _, err := s.Add(msg); err != nil {
				log.Printf("CHAT: dropping inbound message: %v", err)
			}
		}
	}
}

// persist writes one dialog through to storage. Caller holds s.mu.
func (s *Store) persist(dialogID string) error {
	msgs := s.dialogs[dialogID]
	if msgs == nil {
		msgs = []*proto.ChatMessage{}
	}
	payload, err := json.Marshal(msgs)
	if err != nil {
		return fmt.Errorf("marshal dialog %s: %w", dialogID, err)
	}
	if err := s.db.SaveDialog(dialogID, payload); err != nil {
		return err
	}
	return nil
}

// coerce turns Add's flexible input into a chat message.
func coerce(raw any) (*proto.ChatMessage, error) {
	switch v := raw.(type) {
	case *proto.ChatMessage:
		return v, nil
	case []byte:
		return decodeChat(v)
	case string:
		return decodeChat([]byte(v))
	default:
		return nil, fmt.Errorf("chat: unsupported message input %T", raw)
	}
}

func decodeChat(data []byte) (*proto.ChatMessage, error) {
	f, err := proto.Decode(data)
	if err != nil {
		return nil, err
	}
	msg, ok := f.(*proto.ChatMessage)
	if !ok {
		return nil, fmt.Errorf("chat: frame %s is not a chat message", f.Kind())
	}
	return msg, nil
}

// displayTime formats a millisecond timestamp for the chat list: clock time
// for today, date otherwise.
func displayTime(ms int64) string {
	ts := time.UnixMilli(ms)
	now := time.Now()
	if ts.Year() == now.Year() && ts.YearDay() == now.YearDay() {
		return ts.Format("15:04")
	}
	return ts.Format("Jan 2")
}
