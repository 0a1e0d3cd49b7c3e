// Package realtime owns the single shared channel to the messaging server.
// One websocket per authenticated identity carries both chat and call
// signaling frames; every subscriber receives every decoded frame and
// filters for itself.
package realtime

import (
	"fmt"
	"net/url"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/gorilla/websocket"

	"github.com/peerwave/peerwave/internal/proto"
	"github.com/peerwave/peerwave/internal/util"
)

var log = logging.Logger("realtime")

const (
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// recentFrames is how many raw inbound frames are kept for /api/debug.
	recentFrames = 64
)

// Manager maintains at most one live connection to the server and fans out
// every inbound frame to all subscribers.
type Manager struct {
	base  string
	retry time.Duration

	dialer *websocket.Dialer

	mu      sync.Mutex
	userID  string // target identity; empty means no reconnection
	gen     int    // bumped on Connect/Disconnect to invalidate stale loops
	conn    *websocket.Conn
	running bool
	stop    chan struct{} // closed when the current generation goes stale

	writeMu sync.Mutex

	listenerMu sync.RWMutex
	listeners  map[chan proto.Frame]struct{}

	recent *util.RingBuffer[[]byte]
}

// New creates a manager for the given base address, e.g. "wss://host".
// retry is the fixed delay between reconnection attempts.
func New(baseURL string, retry time.Duration) *Manager {
	return &Manager{
		base:  baseURL,
		retry: retry,
		dialer: &websocket.Dialer{
			HandshakeTimeout: util.DefaultConnectTimeout,
		},
		listeners: make(map[chan proto.Frame]struct{}),
		recent:    util.NewRingBuffer[[]byte](recentFrames),
	}
}

// endpoint builds the channel target for an identity.
func (m *Manager) endpoint(userID string) string {
	return m.base + "/ws/message?userId=" + url.QueryEscape(userID)
}

// Connect sets the target identity and starts the connection loop.
// Connecting to the identity that is already active is a no-op; connecting
// as a different identity closes the old channel first.
func (m *Manager) Connect(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.userID == userID && m.running {
		return
	}

	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	if m.stop != nil {
		close(m.stop)
	}
	m.stop = make(chan struct{})

	m.userID = userID
	m.gen++
	m.running = true
	go m.run(m.gen, userID, m.stop)
}

// Disconnect closes the channel and clears the target identity so the
// connection loop stops redialing.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.userID = ""
	m.gen++
	m.running = false
	if m.stop != nil {
		close(m.stop)
		m.stop = nil
	}
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}

// Connected reports whether the channel is currently open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// UserID returns the current target identity, or "" when disconnected.
func (m *Manager) UserID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.userID
}

// Send transmits one frame if the channel is open. While the channel is
// closed the frame is dropped — nothing is queued for later delivery, so
// callers must not rely on Send during an outage.
func (m *Manager) Send(f proto.Frame) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		log.Debugf("send dropped (%s): channel not open", f.Kind())
		return nil
	}

	b, err := proto.Encode(f)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.Kind(), err)
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(util.DefaultWriteTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("write %s: %w", f.Kind(), err)
	}
	return nil
}

// Subscribe returns a channel that receives every inbound frame.
func (m *Manager) Subscribe() (ch chan proto.Frame, cancel func()) {
	ch = make(chan proto.Frame, 64)

	m.listenerMu.Lock()
	m.listeners[ch] = struct{}{}
	m.listenerMu.Unlock()

	cancel = func() {
		m.listenerMu.Lock()
		if _, ok := m.listeners[ch]; ok {
			delete(m.listeners, ch)
			close(ch)
		}
		m.listenerMu.Unlock()
	}
	return ch, cancel
}

// RecentFrames returns the last raw inbound frames, oldest first.
func (m *Manager) RecentFrames() []string {
	raw := m.recent.Snapshot()
	out := make([]string, len(raw))
	for i, b := range raw {
		out[i] = string(b)
	}
	return out
}

// Close tears down the connection and every subscriber channel.
func (m *Manager) Close() {
	m.Disconnect()

	m.listenerMu.Lock()
	for ch := range m.listeners {
		close(ch)
	}
	m.listeners = make(map[chan proto.Frame]struct{})
	m.listenerMu.Unlock()
}

// run dials and reads until the identity changes or Disconnect is called.
// Reconnection is a fixed interval with no backoff.
func (m *Manager) run(gen int, userID string, stop <-chan struct{}) {
	for {
		if !m.current(gen) {
			return
		}

		conn, _, err := m.dialer.Dial(m.endpoint(userID), nil)
		if err != nil {
			log.Warnf("dial %s failed: %v (retry in %s)", m.base, err, m.retry)
			if !m.sleepRetry(gen, stop) {
				return
			}
			continue
		}

		m.mu.Lock()
		if m.gen != gen {
			m.mu.Unlock()
			conn.Close()
			return
		}
		m.conn = conn
		m.mu.Unlock()

		log.Infof("connected as %s", userID)

		stopPing := m.startPing(conn)
		m.readLoop(conn)
		stopPing()

		m.mu.Lock()
		if m.conn == conn {
			m.conn = nil
		}
		stale := m.gen != gen
		m.mu.Unlock()
		if stale {
			return
		}

		log.Warnf("connection lost, reconnecting in %s", m.retry)
		if !m.sleepRetry(gen, stop) {
			return
		}
	}
}

// current reports whether gen is still the live connection generation.
func (m *Manager) current(gen int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	ok := m.gen == gen && m.userID != ""
	if !ok && m.gen == gen {
		m.running = false
	}
	return ok
}

// sleepRetry waits one retry interval; returns false if the loop went stale.
// Disconnect closes stop, so the wait ends immediately instead of burning a
// full interval before noticing.
func (m *Manager) sleepRetry(gen int, stop <-chan struct{}) bool {
	t := time.NewTimer(m.retry)
	defer t.Stop()
	select {
	case <-stop:
		return false
	case <-t.C:
		return m.current(gen)
	}
}

// startPing keeps the connection alive with periodic pings.
func (m *Manager) startPing(conn *websocket.Conn) (stop func()) {
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				m.writeMu.Lock()
				conn.SetWriteDeadline(time.Now().Add(util.DefaultWriteTimeout))
				err := conn.WriteMessage(websocket.PingMessage, nil)
				m.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()
	return func() { close(done) }
}

// readLoop consumes frames until the connection drops. Frames that fail to
// parse are logged and discarded; subscribers never see raw bytes.
func (m *Manager) readLoop(conn *websocket.Conn) {
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warnf("read error: %v", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(pongWait))

		m.recent.Push(data)

		f, err := proto.Decode(data)
		if err != nil {
			log.Warnf("dropping frame: %v", err)
			continue
		}
		m.dispatch(f)
	}
}

// dispatch fans a frame out to all subscribers without blocking.
func (m *Manager) dispatch(f proto.Frame) {
	m.listenerMu.RLock()
	for ch := range m.listeners {
		select {
		case ch <- f:
		default:
			log.Debugf("subscriber full, dropping %s", f.Kind())
		}
	}
	m.listenerMu.RUnlock()
}
