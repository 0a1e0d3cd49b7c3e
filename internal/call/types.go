package call

import "github.com/peerwave/peerwave/internal/proto"

// Signaler is the only surface the call package needs from the realtime
// layer. realtime.Manager satisfies it; tests use an in-memory pipe.
type Signaler interface {
	Send(f proto.Frame) error
	Subscribe() (ch chan proto.Frame, cancel func())
}

// Mode selects which media a call carries.
type Mode string

const (
	ModeVideo Mode = "video"
	ModeVoice Mode = "voice"
)

// MediaOptions configures peer connection and capture behaviour.
type MediaOptions struct {
	// ICEServers are STUN/TURN URLs handed to the peer connection.
	ICEServers []string

	// CameraFacing is the preferred camera ("front"/"back") on platforms
	// with more than one.
	CameraFacing string

	// VideoDisabled suppresses local video capture even in video mode.
	VideoDisabled bool
}

// TrackStats counts inbound RTP traffic for one remote track.
type TrackStats struct {
	Kind    string `json:"kind"`
	Packets uint64 `json:"packets"`
	Bytes   uint64 `json:"bytes"`
}

// SessionStatus is a point-in-time snapshot for the debug endpoint.
type SessionStatus struct {
	CallID      string       `json:"call_id"`
	Mode        Mode         `json:"mode"`
	Host        bool         `json:"host"`
	State       string       `json:"state"`
	Tip         string       `json:"tip,omitempty"`
	AudioMuted  bool         `json:"audio_muted"`
	VideoOff    bool         `json:"video_off"`
	DurationSec int64        `json:"duration_sec"`
	Tracks      []TrackStats `json:"tracks,omitempty"`
}
