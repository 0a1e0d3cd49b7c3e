// Package call runs WebRTC call sessions on top of the shared signaling
// channel. It imports only Pion libraries and the wire protocol; coupling to
// the realtime layer is via the Signaler interface only.
package call

import (
	"errors"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/peerwave/peerwave/internal/proto"
)

// ErrCallActive is returned when a call is started or accepted while another
// session has not been released yet. One call at a time per device.
var ErrCallActive = errors.New("call: another call is in progress")

// Manager owns the active call session and routes signaling frames to it.
type Manager struct {
	sig  Signaler
	opts MediaOptions

	mu     sync.RWMutex
	active *Session

	done chan struct{}
}

// New creates a call manager attached to sig and starts consuming signaling
// frames immediately.
func New(sig Signaler, opts MediaOptions) *Manager {
	m := &Manager{
		sig:  sig,
		opts: opts,
		done: make(chan struct{}),
	}
	go m.dispatchLoop()
	return m
}

// Start initiates an outbound call as host. An empty callID gets a generated
// one. The returned session has already sent its offer.
func (m *Manager) Start(callID string, mode Mode) (*Session, error) {
	return m.place(callID, mode, true)
}

// Accept creates the callee-side session for an incoming call. The session
// waits for the host's offer; without it no negotiation happens.
func (m *Manager) Accept(callID string, mode Mode) (*Session, error) {
	return m.place(callID, mode, false)
}

func (m *Manager) place(callID string, mode Mode, host bool) (*Session, error) {
	if callID == "" {
		callID = uuid.NewString()
	}
	if mode != ModeVideo && mode != ModeVoice {
		mode = ModeVideo
	}

	m.mu.Lock()
	if m.active != nil {
		m.mu.Unlock()
		return nil, ErrCallActive
	}
	sess := newSession(callID, mode, host, m.sig, m.opts, m.remove)
	m.active = sess
	m.mu.Unlock()

	if err := sess.start(); err != nil {
		sess.abort()
		return nil, err
	}

	log.Printf("CALL: %s call %s started (host=%v)", mode, callID, host)
	return sess, nil
}

// Active returns the current session, if any.
func (m *Manager) Active() (*Session, bool) {
	m.mu.RLock()
	s := m.active
	m.mu.RUnlock()
	return s, s != nil
}

// Get returns the session for callID, if it is the active one.
func (m *Manager) Get(callID string) (*Session, bool) {
	m.mu.RLock()
	s := m.active
	m.mu.RUnlock()
	if s == nil || s.CallID() != callID {
		return nil, false
	}
	return s, true
}

// remove clears the active slot once a session has been torn down.
func (m *Manager) remove(s *Session) {
	m.mu.Lock()
	if m.active == s {
		m.active = nil
	}
	m.mu.Unlock()
}

// Close hangs up the active session and stops the dispatch loop.
func (m *Manager) Close() {
	select {
	case <-m.done:
		return
	default:
		close(m.done)
	}

	if s, ok := m.Active(); ok {
		s.Hangup()
	}
}

// dispatchLoop routes inbound signaling frames to the active session.
// Frames for unknown calls are dropped without any state change; chat frames
// on the shared channel are ignored here.
func (m *Manager) dispatchLoop() {
	ch, cancel := m.sig.Subscribe()
	defer cancel()

	for {
		select {
		case <-m.done:
			return
		case f, ok := <-ch:
			if !ok {
				return
			}
			m.dispatch(f)
		}
	}
}

func (m *Manager) dispatch(f proto.Frame) {
	switch fr := f.(type) {
	case *proto.Offer:
		if s, ok := m.Get(fr.CallID); ok {
			s.handleOffer(fr.Offer)
		} else {
			log.Printf("CALL: no session for call %s, dropping offer", fr.CallID)
		}
	case *proto.Answer:
		if s, ok := m.Get(fr.CallID); ok {
			s.handleAnswer(fr.Answer)
		}
	case *proto.Candidate:
		if s, ok := m.Get(fr.CallID); ok {
			s.handleCandidate(fr.Candidate)
		}
	case *proto.Hangup:
		if s, ok := m.Get(fr.CallID); ok {
			s.remoteHangup()
		}
	}
}
