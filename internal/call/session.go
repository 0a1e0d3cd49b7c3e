package call

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"

	"github.com/peerwave/peerwave/internal/proto"
)

// ErrNoCameraSwitch is returned by SwitchCamera when the platform capture
// layer has no second camera to switch to.
var ErrNoCameraSwitch = errors.New("call: camera switching not available")

// keyframeInterval is how often a PLI is sent for each remote video track so
// the far side refreshes after packet loss.
const keyframeInterval = 3 * time.Second

// localMedia holds the capture side of a session. Populated by the
// platform-specific initMediaPC; all fields may be nil on platforms without
// hardware capture (the session is then receive-only).
type localMedia struct {
	audioTrack  webrtc.TrackLocal
	videoTrack  webrtc.TrackLocal
	audioSender *webrtc.RTPSender
	videoSender *webrtc.RTPSender

	// close releases all capture devices. May be nil.
	close func()

	// switchCamera re-captures video from the next camera device and swaps
	// it into videoSender. Nil when the platform cannot switch.
	switchCamera func() error
}

// Session is one call attempt, from media acquisition to teardown.
type Session struct {
	callID string
	mode   Mode
	host   bool
	sig    Signaler
	opts   MediaOptions

	mu          sync.Mutex
	state       State
	tip         string
	pc          *webrtc.PeerConnection
	media       *localMedia
	pending     []webrtc.ICECandidateInit // candidates queued until the remote description is set
	remoteSet   bool
	released    bool
	audioMuted  bool
	videoOff    bool
	connectedAt time.Time

	done     chan struct{}
	onClosed func(*Session)

	statsMu sync.Mutex
	stats   []*trackCounter
}

func newSession(callID string, mode Mode, host bool, sig Signaler, opts MediaOptions, onClosed func(*Session)) *Session {
	return &Session{
		callID:   callID,
		mode:     mode,
		host:     host,
		sig:      sig,
		opts:     opts,
		state:    StateInit,
		done:     make(chan struct{}),
		onClosed: onClosed,
	}
}

// CallID returns the call identifier all signaling frames are tagged with.
func (s *Session) CallID() string { return s.callID }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// start acquires media, builds the peer connection and, when hosting, sends
// the offer. The callee ends up in waiting, ready for an inbound offer.
func (s *Session) start() error {
	pc, media, err := initMediaPC(s.callID, s.mode, s.opts)
	if err != nil {
		s.fail("failed to connect")
		return err
	}

	s.mu.Lock()
	s.pc = pc
	s.media = media
	s.mu.Unlock()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		s.consumeTrack(track)
	})

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		if err := s.sig.Send(proto.NewCandidate(s.callID, c.ToJSON())); err != nil {
			log.Printf("CALL [%s]: send candidate: %v", s.callID, err)
		}
	})

	pc.OnConnectionStateChange(func(cs webrtc.PeerConnectionState) {
		log.Printf("CALL [%s]: connection state %s", s.callID, cs)
		switch cs {
		case webrtc.PeerConnectionStateConnecting:
			s.apply(evPeerConnecting, "connecting...")
		case webrtc.PeerConnectionStateConnected:
			s.apply(evPeerConnected, "")
		case webrtc.PeerConnectionStateDisconnected:
			s.fail("disconnected")
		case webrtc.PeerConnectionStateFailed:
			s.fail("failed to connect")
		}
	})

	s.apply(evMediaReady, "")

	if s.host {
		offer, err := pc.CreateOffer(nil)
		if err != nil {
			s.fail("failed to connect")
			return err
		}
		if err := pc.SetLocalDescription(offer); err != nil {
			s.fail("failed to connect")
			return err
		}
		if err := s.sig.Send(proto.NewOffer(s.callID, offer)); err != nil {
			s.fail("failed to connect")
			return err
		}
		s.apply(evOfferSent, "connecting...")
	}

	return nil
}

// apply runs one state machine transition. Illegal transitions are logged
// and ignored, never forced.
func (s *Session) apply(ev event, tip string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(ev, tip)
}

func (s *Session) applyLocked(ev event, tip string) bool {
	to, ok := next(s.state, ev)
	if !ok {
		log.Printf("CALL [%s]: ignoring %s in state %s", s.callID, ev, s.state)
		return false
	}
	if to == StateChatting && s.connectedAt.IsZero() {
		s.connectedAt = time.Now()
	}
	s.state = to
	s.tip = tip
	return true
}

// handleOffer answers an inbound offer. A session that has no peer
// connection yet (or is already torn down) drops the offer silently.
func (s *Session) handleOffer(sdp webrtc.SessionDescription) {
	s.mu.Lock()
	pc := s.pc
	if pc == nil || s.released {
		s.mu.Unlock()
		log.Printf("CALL [%s]: no peer connection ready, dropping offer", s.callID)
		return
	}
	if _, ok := next(s.state, evOfferReceived); !ok {
		s.mu.Unlock()
		log.Printf("CALL [%s]: offer in state %s, dropping", s.callID, s.state)
		return
	}
	s.mu.Unlock()

	if err := pc.SetRemoteDescription(sdp); err != nil {
		log.Printf("CALL [%s]: set remote offer: %v", s.callID, err)
		s.fail("failed to connect")
		return
	}
	s.flushCandidates(pc)

	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		log.Printf("CALL [%s]: create answer: %v", s.callID, err)
		s.fail("failed to connect")
		return
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		log.Printf("CALL [%s]: set local answer: %v", s.callID, err)
		s.fail("failed to connect")
		return
	}
	if err := s.sig.Send(proto.NewAnswer(s.callID, answer)); err != nil {
		log.Printf("CALL [%s]: send answer: %v", s.callID, err)
	}
	s.apply(evOfferReceived, "connecting...")
}

// handleAnswer completes the host side of negotiation.
func (s *Session) handleAnswer(sdp webrtc.SessionDescription) {
	s.mu.Lock()
	pc := s.pc
	if pc == nil || s.released {
		s.mu.Unlock()
		return
	}
	if _, ok := next(s.state, evAnswerReceived); !ok {
		s.mu.Unlock()
		log.Printf("CALL [%s]: answer in state %s, dropping", s.callID, s.state)
		return
	}
	s.mu.Unlock()

	if err := pc.SetRemoteDescription(sdp); err != nil {
		log.Printf("CALL [%s]: set remote answer: %v", s.callID, err)
		s.fail("failed to connect")
		return
	}
	s.flushCandidates(pc)
	s.apply(evAnswerReceived, "connecting...")
}

// handleCandidate applies a remote candidate, or queues it when the remote
// description has not been set yet.
func (s *Session) handleCandidate(c webrtc.ICECandidateInit) {
	s.mu.Lock()
	if s.pc == nil || s.released {
		s.mu.Unlock()
		return
	}
	if !s.remoteSet {
		s.pending = append(s.pending, c)
		s.mu.Unlock()
		return
	}
	pc := s.pc
	s.mu.Unlock()

	if err := pc.AddICECandidate(c); err != nil {
		log.Printf("CALL [%s]: add candidate: %v", s.callID, err)
		s.fail("failed to connect")
	}
}

// flushCandidates marks the remote description as set and applies every
// candidate that arrived early.
func (s *Session) flushCandidates(pc *webrtc.PeerConnection) {
	s.mu.Lock()
	s.remoteSet = true
	queued := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, c := range queued {
		if err := pc.AddICECandidate(c); err != nil {
			log.Printf("CALL [%s]: add queued candidate: %v", s.callID, err)
		}
	}
}

// Hangup ends the call from the local side, notifies the remote peer and
// releases all resources. Idempotent — safe to call from any state, any
// number of times.
func (s *Session) Hangup() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.applyLocked(evHangup, "")
	s.mu.Unlock()

	_ = s.sig.Send(proto.NewHangup(s.callID))
	s.teardown()
	log.Printf("CALL [%s]: hangup sent", s.callID)
}

// remoteHangup tears the session down after the peer hung up. No frame is
// echoed back.
func (s *Session) remoteHangup() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.applyLocked(evHangup, "")
	s.mu.Unlock()

	s.teardown()
	log.Printf("CALL [%s]: remote hangup", s.callID)
}

// abort releases the session without signaling the peer. Used when start
// fails before the call ever went anywhere.
func (s *Session) abort() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()
	s.teardown()
}

// fail drives the session to the error state with a user-facing tip.
// Resources stay allocated until Hangup — there is no automatic retry, the
// user exits and re-initiates.
func (s *Session) fail(tip string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return
	}
	s.applyLocked(evPeerFailed, tip)
}

// teardown releases media and the peer connection exactly once. Callers must
// have claimed s.released under the lock first.
func (s *Session) teardown() {
	close(s.done)

	s.mu.Lock()
	media := s.media
	pc := s.pc
	s.mu.Unlock()

	if media != nil && media.close != nil {
		media.close()
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			log.Printf("CALL [%s]: close peer connection: %v", s.callID, err)
		}
	}
	if s.onClosed != nil {
		s.onClosed(s)
	}
}

// ToggleAudio mutes or unmutes the local microphone without renegotiation.
// Returns the new muted state.
func (s *Session) ToggleAudio() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.audioMuted = !s.audioMuted
	if s.media != nil && s.media.audioSender != nil {
		if s.audioMuted {
			_ = s.media.audioSender.ReplaceTrack(nil)
		} else {
			_ = s.media.audioSender.ReplaceTrack(s.media.audioTrack)
		}
	}
	log.Printf("CALL [%s]: audio muted=%v", s.callID, s.audioMuted)
	return s.audioMuted
}

// ToggleVideo stops or resumes the local camera feed. Returns the new
// disabled state.
func (s *Session) ToggleVideo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.videoOff = !s.videoOff
	if s.media != nil && s.media.videoSender != nil {
		if s.videoOff {
			_ = s.media.videoSender.ReplaceTrack(nil)
		} else {
			_ = s.media.videoSender.ReplaceTrack(s.media.videoTrack)
		}
	}
	log.Printf("CALL [%s]: video disabled=%v", s.callID, s.videoOff)
	return s.videoOff
}

// SwitchCamera swaps the active video track to the next camera device.
func (s *Session) SwitchCamera() error {
	s.mu.Lock()
	media := s.media
	s.mu.Unlock()

	if media == nil || media.switchCamera == nil {
		return ErrNoCameraSwitch
	}
	return media.switchCamera()
}

// Status returns a snapshot for the debug endpoint.
func (s *Session) Status() SessionStatus {
	s.mu.Lock()
	st := SessionStatus{
		CallID:     s.callID,
		Mode:       s.mode,
		Host:       s.host,
		State:      s.state.String(),
		Tip:        s.tip,
		AudioMuted: s.audioMuted,
		VideoOff:   s.videoOff,
	}
	if !s.connectedAt.IsZero() {
		st.DurationSec = int64(time.Since(s.connectedAt).Seconds())
	}
	s.mu.Unlock()

	s.statsMu.Lock()
	for _, c := range s.stats {
		st.Tracks = append(st.Tracks, c.snapshot())
	}
	s.statsMu.Unlock()
	return st
}

// consumeTrack reads a remote track for its lifetime, counting traffic.
// Video tracks additionally get a PLI loop for keyframe recovery.
func (s *Session) consumeTrack(track *webrtc.TrackRemote) {
	kind := track.Kind().String()
	log.Printf("CALL [%s]: remote %s track arrived", s.callID, kind)

	ctr := &trackCounter{kind: kind}
	s.statsMu.Lock()
	s.stats = append(s.stats, ctr)
	s.statsMu.Unlock()

	if track.Kind() == webrtc.RTPCodecTypeVideo {
		go s.keyframeLoop(uint32(track.SSRC()))
	}

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		ctr.count(pkt)
	}
}

// keyframeLoop periodically requests a keyframe for a remote video track.
func (s *Session) keyframeLoop(ssrc uint32) {
	ticker := time.NewTicker(keyframeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			pc := s.pc
			released := s.released
			s.mu.Unlock()
			if released || pc == nil {
				return
			}
			if err := pc.WriteRTCP([]rtcp.Packet{&rtcp.PictureLossIndication{MediaSSRC: ssrc}}); err != nil {
				return
			}
		}
	}
}

// trackCounter accumulates RTP stats for one remote track.
type trackCounter struct {
	kind string

	mu      sync.Mutex
	packets uint64
	bytes   uint64
}

func (c *trackCounter) count(p *rtp.Packet) {
	c.mu.Lock()
	c.packets++
	c.bytes += uint64(p.MarshalSize())
	c.mu.Unlock()
}

func (c *trackCounter) snapshot() TrackStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return TrackStats{Kind: c.kind, Packets: c.packets, Bytes: c.bytes}
}
