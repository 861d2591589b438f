package session

// State is the negotiation lifecycle of one participant. Created Idle,
// terminal Closed.
type State int

const (
	// Idle: connected, nothing acquired, no room outcome yet.
	Idle State = iota
	// WaitingForMedia: local capture is in flight.
	WaitingForMedia
	// WaitingForPeer: local media ready, the room pair is not complete.
	WaitingForPeer
	// ChannelReady: both members present, role known; negotiation has
	// not started because the start gate is not fully satisfied yet.
	ChannelReady
	// Negotiating: peer connection exists, descriptions in flight.
	Negotiating
	// Connected: remote description applied on the initiator side.
	Connected
	// Closed: hung up, peer hung up, or the channel dropped. Terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case WaitingForMedia:
		return "waiting-for-media"
	case WaitingForPeer:
		return "waiting-for-peer"
	case ChannelReady:
		return "channel-ready"
	case Negotiating:
		return "negotiating"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	}
	return "unknown"
}

// Role is the negotiation role derived from room join order.
type Role int

const (
	Unassigned Role = iota
	Initiator
	Responder
)

func (r Role) String() string {
	switch r {
	case Initiator:
		return "initiator"
	case Responder:
		return "responder"
	}
	return "unassigned"
}
