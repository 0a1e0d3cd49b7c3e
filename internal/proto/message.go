package proto

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Status is the delivery status of a chat message. Transitions only move
// forward (Created → Sent → Delivered → Read), never backward.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusSent      Status = "SENT"
	StatusDelivered Status = "DELIVERED"
	StatusRead      Status = "READ"
)

var statusRank = map[Status]int{
	StatusCreated:   0,
	StatusSent:      1,
	StatusDelivered: 2,
	StatusRead:      3,
}

// Before reports whether s precedes other in the status progression.
// Unknown statuses rank lowest so they can always be advanced.
func (s Status) Before(other Status) bool {
	return statusRank[s] < statusRank[other]
}

// ID is an identifier field that peers serialize inconsistently — some send
// "42", others send 42. Both decode to the same canonical string so map keys
// never split by JSON type.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// ChatMessage is a private or group chat frame. It shares the signaling
// channel; only the "type" value distinguishes it from call frames.
type ChatMessage struct {
	Type        Kind   `json:"type"` // PRIVATE_CHAT or GROUP_CHAT
	ID          string `json:"id,omitempty"`
	DialogID    ID     `json:"dialogId"`
	SenderID    ID     `json:"senderId"`
	ReceiverID  ID     `json:"receiverId,omitempty"` // empty for group chat
	TextContent string `json:"textContent"`
	Status      Status `json:"status,omitempty"`
	Timestamp   int64  `json:"timestamp"` // unix millis, compared as int64
}

func (m *ChatMessage) Kind() Kind { return m.Type }

// NewPrivateMessage builds an outbound 1-to-1 chat frame.
func NewPrivateMessage(dialogID, senderID, receiverID, text string) *ChatMessage {
	return &ChatMessage{
		Type:        KindPrivateChat,
		ID:          uuid.NewString(),
		DialogID:    ID(dialogID),
		SenderID:    ID(senderID),
		ReceiverID:  ID(receiverID),
		TextContent: text,
		Timestamp:   NowMillis(),
	}
}

// NewGroupMessage builds an outbound group chat frame.
func NewGroupMessage(dialogID, senderID, text string) *ChatMessage {
	return &ChatMessage{
		Type:        KindGroupChat,
		ID:          uuid.NewString(),
		DialogID:    ID(dialogID),
		SenderID:    ID(senderID),
		TextContent: text,
		Timestamp:   NowMillis(),
	}
}
