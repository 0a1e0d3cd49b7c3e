package proto

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestDecodeSignalingFrames(t *testing.T) {
	t.Run("offer", func(t *testing.T) {
		raw := `{"type":"OFFER","callId":"c1","offer":{"type":"offer","sdp":"v=0\r\n"}}`
		f, err := Decode([]byte(raw))
		if err != nil {
			t.Fatal(err)
		}
		offer, ok := f.(*Offer)
		if !ok {
			t.Fatalf("expected *Offer, got %T", f)
		}
		if offer.CallID != "c1" {
			t.Fatalf("callId = %q", offer.CallID)
		}
		if offer.Offer.SDP != "v=0\r\n" {
			t.Fatalf("sdp = %q", offer.Offer.SDP)
		}
	})

	t.Run("ice candidate", func(t *testing.T) {
		raw := `{"type":"ICE_CANDIDATE","callId":"c1","candidate":{"candidate":"candidate:1 1 udp 1 1.2.3.4 5000 typ host","sdpMid":"0"}}`
		f, err := Decode([]byte(raw))
		if err != nil {
			t.Fatal(err)
		}
		c, ok := f.(*Candidate)
		if !ok {
			t.Fatalf("expected *Candidate, got %T", f)
		}
		if c.Candidate.Candidate == "" || c.Candidate.SDPMid == nil {
			t.Fatalf("candidate fields not decoded: %+v", c.Candidate)
		}
	})

	t.Run("hangup", func(t *testing.T) {
		f, err := Decode([]byte(`{"type":"HANGUP","callId":"c9"}`))
		if err != nil {
			t.Fatal(err)
		}
		if f.Kind() != KindHangup {
			t.Fatalf("kind = %s", f.Kind())
		}
	})
}

func TestDecodeChatFrame(t *testing.T) {
	// dialogId arrives as a number here; it must normalize to the string "42".
	raw := `{"type":"PRIVATE_CHAT","dialogId":42,"senderId":"7","receiverId":"8","textContent":"hi","timestamp":1000}`
	f, err := Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	msg, ok := f.(*ChatMessage)
	if !ok {
		t.Fatalf("expected *ChatMessage, got %T", f)
	}
	if msg.DialogID != "42" {
		t.Fatalf("dialogId = %q, want \"42\"", msg.DialogID)
	}
	if msg.SenderID != "7" || msg.ReceiverID != "8" {
		t.Fatalf("sender/receiver = %q/%q", msg.SenderID, msg.ReceiverID)
	}
	if msg.TextContent != "hi" || msg.Timestamp != 1000 {
		t.Fatalf("content/timestamp = %q/%d", msg.TextContent, msg.Timestamp)
	}
}

func TestTimestampPrecision(t *testing.T) {
	// Timestamps beyond 2^53 millis lose precision through float64; int64
	// decoding must keep them exact.
	raw := `{"type":"GROUP_CHAT","dialogId":"g1","senderId":"1","textContent":"x","timestamp":9007199254740993}`
	f, err := Decode([]byte(raw))
	if err != nil {
		t.Fatal(err)
	}
	msg := f.(*ChatMessage)
	if msg.Timestamp != 9007199254740993 {
		t.Fatalf("timestamp = %d", msg.Timestamp)
	}
}

func TestDecodeUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"PRESENCE","peerId":"x"}`))
	if !errors.Is(err, ErrUnknownFrame) {
		t.Fatalf("expected ErrUnknownFrame, got %v", err)
	}
}

func TestDecodeMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	out := NewHangup("c3")
	b, err := Encode(out)
	if err != nil {
		t.Fatal(err)
	}
	f, err := Decode(b)
	if err != nil {
		t.Fatal(err)
	}
	in, ok := f.(*Hangup)
	if !ok || in.CallID != "c3" {
		t.Fatalf("round trip gave %#v", f)
	}
}

func TestEncodeChatCarriesType(t *testing.T) {
	msg := NewPrivateMessage("d1", "a", "b", "yo")
	b, err := Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	var env map[string]any
	if err := json.Unmarshal(b, &env); err != nil {
		t.Fatal(err)
	}
	if env["type"] != "PRIVATE_CHAT" {
		t.Fatalf("type = %v", env["type"])
	}
	if msg.ID == "" {
		t.Fatal("message id not assigned")
	}
}

func TestStatusOrdering(t *testing.T) {
	if !StatusCreated.Before(StatusRead) {
		t.Fatal("CREATED should precede READ")
	}
	if StatusRead.Before(StatusSent) {
		t.Fatal("READ must not precede SENT")
	}
	if StatusRead.Before(StatusRead) {
		t.Fatal("status is not before itself")
	}
}
