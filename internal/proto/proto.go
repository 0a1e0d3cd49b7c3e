// Package proto defines the wire format shared by the signaling and chat
// layers. Every frame is a JSON object with a "type" discriminator; Decode
// parses the envelope once and returns a concrete frame type so the rest of
// the code never touches raw maps.
package proto

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/pion/webrtc/v4"
)

// Kind is the wire value of a frame's "type" field.
type Kind string

const (
	KindOffer        Kind = "OFFER"
	KindAnswer       Kind = "ANSWER"
	KindICECandidate Kind = "ICE_CANDIDATE"
	KindHangup       Kind = "HANGUP"
	KindPrivateChat  Kind = "PRIVATE_CHAT"
	KindGroupChat    Kind = "GROUP_CHAT"
)

// ErrUnknownFrame is returned by Decode for frames whose "type" value is not
// one of the kinds above. Callers log and drop such frames.
var ErrUnknownFrame = errors.New("proto: unknown frame type")

// Frame is the tagged union over all wire frame variants.
type Frame interface {
	Kind() Kind
}

// Offer carries the host's SDP offer for a call.
type Offer struct {
	Type   Kind                      `json:"type"`
	CallID string                    `json:"callId"`
	Offer  webrtc.SessionDescription `json:"offer"`
}

// Answer carries the callee's SDP answer.
type Answer struct {
	Type   Kind                      `json:"type"`
	CallID string                    `json:"callId"`
	Answer webrtc.SessionDescription `json:"answer"`
}

// Candidate carries one ICE candidate discovered by either side.
type Candidate struct {
	Type      Kind                    `json:"type"`
	CallID    string                  `json:"callId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

// Hangup ends a call from either side.
type Hangup struct {
	Type   Kind   `json:"type"`
	CallID string `json:"callId"`
}

func (f *Offer) Kind() Kind     { return KindOffer }
func (f *Answer) Kind() Kind    { return KindAnswer }
func (f *Candidate) Kind() Kind { return KindICECandidate }
func (f *Hangup) Kind() Kind    { return KindHangup }

// NewOffer builds an outbound OFFER frame.
func NewOffer(callID string, sdp webrtc.SessionDescription) *Offer {
	return &Offer{Type: KindOffer, CallID: callID, Offer: sdp}
}

// NewAnswer builds an outbound ANSWER frame.
func NewAnswer(callID string, sdp webrtc.SessionDescription) *Answer {
	return &Answer{Type: KindAnswer, CallID: callID, Answer: sdp}
}

// NewCandidate builds an outbound ICE_CANDIDATE frame.
func NewCandidate(callID string, c webrtc.ICECandidateInit) *Candidate {
	return &Candidate{Type: KindICECandidate, CallID: callID, Candidate: c}
}

// NewHangup builds an outbound HANGUP frame.
func NewHangup(callID string) *Hangup {
	return &Hangup{Type: KindHangup, CallID: callID}
}

// Decode parses one raw frame. The envelope is inspected first; the payload
// is then unmarshalled into the concrete type for the discriminator value.
func Decode(data []byte) (Frame, error) {
	var env struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var f Frame
	switch env.Type {
	case KindOffer:
		f = &Offer{}
	case KindAnswer:
		f = &Answer{}
	case KindICECandidate:
		f = &Candidate{}
	case KindHangup:
		f = &Hangup{}
	case KindPrivateChat, KindGroupChat:
		f = &ChatMessage{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFrame, env.Type)
	}

	if err := json.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return f, nil
}

// Encode serializes a frame for transmission.
func Encode(f Frame) ([]byte, error) {
	return json.Marshal(f)
}

// NowMillis returns the current time as a millisecond unix timestamp, the
// unit all frame timestamps use.
func NowMillis() int64 { return time.Now().UnixMilli() }
