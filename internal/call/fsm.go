package call

// State is a call session's lifecycle position.
type State int

const (
	StateInit       State = iota // session created, nothing acquired yet
	StateWaiting                 // media ready; offer sent or awaiting inbound offer
	StateConnecting              // ICE negotiation in progress
	StateChatting                // peer connection reports connected
	StateClosed                  // terminal: hung up
	StateError                   // terminal: negotiation or transport failure
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateWaiting:
		return "waiting"
	case StateConnecting:
		return "connecting"
	case StateChatting:
		return "chatting"
	case StateClosed:
		return "closed"
	case StateError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateClosed || s == StateError
}

// event is an input to the session state machine.
type event int

const (
	evMediaReady     event = iota // peer connection built, local media acquired
	evOfferSent                   // host's offer on the wire
	evOfferReceived               // callee processed an inbound offer
	evAnswerReceived              // host processed the answer
	evPeerConnecting              // transport reports it is negotiating
	evPeerConnected               // transport reports connected
	evPeerFailed                  // transport or negotiation failure
	evHangup                      // local or remote hangup
)

func (e event) String() string {
	switch e {
	case evMediaReady:
		return "media-ready"
	case evOfferSent:
		return "offer-sent"
	case evOfferReceived:
		return "offer-received"
	case evAnswerReceived:
		return "answer-received"
	case evPeerConnecting:
		return "peer-connecting"
	case evPeerConnected:
		return "peer-connected"
	case evPeerFailed:
		return "peer-failed"
	case evHangup:
		return "hangup"
	default:
		return "unknown"
	}
}

// transitions is the full state machine. Absent entries are illegal: in
// particular nothing connects straight out of init — a peer connection must
// exist (waiting) before the transport can ever report connected.
var transitions = map[State]map[event]State{
	StateInit: {
		evMediaReady: StateWaiting,
		evPeerFailed: StateError,
		evHangup:     StateClosed,
	},
	StateWaiting: {
		evOfferSent:      StateWaiting,
		evOfferReceived:  StateWaiting,
		evAnswerReceived: StateWaiting,
		evPeerConnecting: StateConnecting,
		evPeerConnected:  StateChatting,
		evPeerFailed:     StateError,
		evHangup:         StateClosed,
	},
	StateConnecting: {
		evPeerConnected: StateChatting,
		evPeerFailed:    StateError,
		evHangup:        StateClosed,
	},
	StateChatting: {
		evPeerFailed: StateError,
		evHangup:     StateClosed,
	},
}

// next returns the state reached by applying ev in s, and whether the
// transition is legal. Terminal states accept nothing.
func next(s State, ev event) (State, bool) {
	to, ok := transitions[s][ev]
	return to, ok
}
