package session

import (
	"context"
	"log/slog"

	"github.com/pion/webrtc/v4"

	"parley/internal/protocol"
	"parley/internal/rtc"
)

// eventKind enumerates everything that can drive the machine: local
// triggers, room registry outcomes, relayed peer messages, and engine
// callbacks.
type eventKind int

const (
	evMediaPending eventKind = iota // capture started
	evMediaReady                    // capture finished, stream attached to the event
	evCreated                       // room registry: we are the first member
	evJoined                        // room registry: we are the second member
	evReady                         // room registry: both members present
	evPeerMediaReady                // relayed "got user media"
	evOffer                         // relayed offer
	evAnswer                        // relayed answer
	evCandidate                     // relayed ICE candidate
	evRemoteBye                     // relayed "bye"
	evHangup                        // local hangup request
	evTransportClosed               // signaling channel dropped
	evLocalCandidate                // engine produced a local candidate
)

// event is the tagged union the machine consumes, one at a time, in
// arrival order.
type event struct {
	kind      eventKind
	stream    rtc.Stream                // evMediaReady
	sdp       webrtc.SessionDescription // evOffer, evAnswer
	candidate webrtc.ICECandidateInit   // evCandidate
	local     *webrtc.ICECandidate      // evLocalCandidate
}

// Machine is the per-participant negotiation state machine. All
// transitions run on the single Run goroutine; the public methods only
// enqueue events, so no two transitions ever execute concurrently and
// engine results are always applied before the next event is looked at.
type Machine struct {
	engine rtc.Engine
	ice    []webrtc.ICEServer

	// send transmits a signaling message to the room peer via the relay.
	send func(protocol.Message) error

	// notify observes state changes. Optional.
	notify func(State)

	events chan event
	done   chan struct{}

	state          State
	role           Role
	mediaReady     bool
	channelReady   bool
	peerMediaReady bool
	stream         rtc.Stream
	pc             rtc.PeerConnection

	// pendingOffer holds an offer that arrived before local media was
	// ready; re-examined whenever the start gate is re-evaluated.
	pendingOffer *webrtc.SessionDescription

	// pendingCandidates buffers remote candidates that arrived before
	// the peer connection existed.
	pendingCandidates []webrtc.ICECandidateInit
}

// Config wires a Machine to its collaborators.
type Config struct {
	Engine     rtc.Engine
	ICEServers []webrtc.ICEServer
	Send       func(protocol.Message) error
	Notify     func(State)
}

func NewMachine(cfg Config) *Machine {
	m := &Machine{
		engine: cfg.Engine,
		ice:    cfg.ICEServers,
		send:   cfg.Send,
		notify: cfg.Notify,
		events: make(chan event, 64),
		done:   make(chan struct{}),
		state:  Idle,
	}
	if m.notify == nil {
		m.notify = func(State) {}
	}
	return m
}

// State returns the state as of the last processed event. Safe only for
// observation from the Run goroutine's callbacks; tests use it between
// synchronous dispatches.
func (m *Machine) State() State { return m.state }

// Role returns the currently assigned role.
func (m *Machine) Role() Role { return m.role }

// Run processes events until the machine closes or the context ends.
func (m *Machine) Run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case ev := <-m.events:
			m.step(ev)
			if m.state == Closed {
				return
			}
		case <-ctx.Done():
			m.step(event{kind: evHangup})
			return
		}
	}
}

// dispatch enqueues an event, dropping it once the machine is done.
// Arrival order is preserved by the single channel.
func (m *Machine) dispatch(ev event) {
	select {
	case m.events <- ev:
	case <-m.done:
	}
}

// Public triggers. Each maps one external happening onto the event
// stream.

func (m *Machine) MediaPending()           { m.dispatch(event{kind: evMediaPending}) }
func (m *Machine) MediaReady(s rtc.Stream) { m.dispatch(event{kind: evMediaReady, stream: s}) }
func (m *Machine) RoomCreated()            { m.dispatch(event{kind: evCreated}) }
func (m *Machine) RoomJoined()             { m.dispatch(event{kind: evJoined}) }
func (m *Machine) ChannelReadySignal()     { m.dispatch(event{kind: evReady}) }
func (m *Machine) PeerMediaReady()         { m.dispatch(event{kind: evPeerMediaReady}) }
func (m *Machine) RemoteBye()              { m.dispatch(event{kind: evRemoteBye}) }
func (m *Machine) Hangup()                 { m.dispatch(event{kind: evHangup}) }
func (m *Machine) TransportClosed()        { m.dispatch(event{kind: evTransportClosed}) }

func (m *Machine) RemoteOffer(sdp webrtc.SessionDescription) {
	m.dispatch(event{kind: evOffer, sdp: sdp})
}

func (m *Machine) RemoteAnswer(sdp webrtc.SessionDescription) {
	m.dispatch(event{kind: evAnswer, sdp: sdp})
}

func (m *Machine) RemoteCandidate(c webrtc.ICECandidateInit) {
	m.dispatch(event{kind: evCandidate, candidate: c})
}

// Done is closed once the machine has reached Closed and stopped.
func (m *Machine) Done() <-chan struct{} { return m.done }

// step applies one event. Unexpected events are logged and ignored,
// never fatal.
func (m *Machine) step(ev event) {
	if m.state == Closed {
		return
	}

	switch ev.kind {
	case evMediaPending:
		if m.state == Idle {
			m.setState(WaitingForMedia)
		}

	case evMediaReady:
		m.mediaReady = true
		m.stream = ev.stream
		if m.state == Idle || m.state == WaitingForMedia {
			m.setState(WaitingForPeer)
		}
		m.sendMessage(protocol.Message{Literal: protocol.MediaReadyLiteral})
		m.maybeStart()

	case evCreated:
		m.role = Initiator

	case evJoined:
		m.role = Responder

	case evReady:
		m.channelReady = true
		if m.state == Idle || m.state == WaitingForMedia || m.state == WaitingForPeer {
			m.setState(ChannelReady)
		}
		m.maybeStart()

	case evPeerMediaReady:
		m.peerMediaReady = true
		m.maybeStart()

	case evOffer:
		if m.role != Responder {
			slog.Warn("ignoring offer", "role", m.role.String(), "state", m.state.String())
			return
		}
		if m.state == Negotiating || m.state == Connected {
			slog.Warn("ignoring renegotiation offer", "state", m.state.String())
			return
		}
		sdp := ev.sdp
		m.pendingOffer = &sdp
		m.maybeStart()

	case evAnswer:
		if m.role != Initiator || m.state != Negotiating {
			// A responder never expects an answer, and an answer before
			// the offer went out is a protocol violation. Drop it.
			slog.Warn("ignoring answer", "role", m.role.String(), "state", m.state.String())
			return
		}
		if err := m.pc.SetRemoteDescription(ev.sdp); err != nil {
			slog.Error("set remote answer", "err", err)
			m.close(false)
			return
		}
		m.setState(Connected)

	case evCandidate:
		// Accepted in every state. Applied only once a peer connection
		// exists; buffered until then.
		if m.pc == nil {
			m.pendingCandidates = append(m.pendingCandidates, ev.candidate)
			return
		}
		if err := m.pc.AddICECandidate(ev.candidate); err != nil {
			slog.Warn("add remote candidate", "err", err)
		}

	case evLocalCandidate:
		if ev.local == nil {
			slog.Debug("end of local candidates")
			return
		}
		init := ev.local.ToJSON()
		msg := protocol.SignalingMessage{
			Type:      protocol.TypeCandidate,
			Label:     init.SDPMLineIndex,
			Candidate: init.Candidate,
		}
		if init.SDPMid != nil {
			msg.ID = *init.SDPMid
		}
		m.sendMessage(protocol.Message{Signal: &msg})

	case evHangup:
		m.close(true)

	case evRemoteBye:
		m.close(false)

	case evTransportClosed:
		// No way to say goodbye on a dead channel.
		m.close(false)
	}
}

// maybeStart re-evaluates the start gate. Its inputs can become true in
// any order, so every contributing event funnels through here.
func (m *Machine) maybeStart() {
	if m.state != ChannelReady || !m.mediaReady || !m.channelReady {
		return
	}

	switch m.role {
	case Initiator:
		if !m.peerMediaReady {
			return
		}
		if !m.createPeerConnection() {
			return
		}
		m.setState(Negotiating)
		offer, err := m.pc.CreateOffer()
		if err != nil {
			slog.Error("create offer", "err", err)
			m.close(false)
			return
		}
		if err := m.pc.SetLocalDescription(offer); err != nil {
			slog.Error("set local offer", "err", err)
			m.close(false)
			return
		}
		m.sendMessage(protocol.Message{Signal: &protocol.SignalingMessage{
			Type: protocol.TypeOffer,
			SDP:  offer.SDP,
		}})

	case Responder:
		if m.pendingOffer == nil {
			return
		}
		if !m.createPeerConnection() {
			return
		}
		m.setState(Negotiating)
		if err := m.pc.SetRemoteDescription(*m.pendingOffer); err != nil {
			slog.Error("set remote offer", "err", err)
			m.close(false)
			return
		}
		m.pendingOffer = nil
		m.flushCandidates()
		answer, err := m.pc.CreateAnswer()
		if err != nil {
			slog.Error("create answer", "err", err)
			m.close(false)
			return
		}
		if err := m.pc.SetLocalDescription(answer); err != nil {
			slog.Error("set local answer", "err", err)
			m.close(false)
			return
		}
		m.sendMessage(protocol.Message{Signal: &protocol.SignalingMessage{
			Type: protocol.TypeAnswer,
			SDP:  answer.SDP,
		}})
	}
}

// createPeerConnection builds the engine handle, attaches the local
// stream and wires the candidate callback into the event stream.
// Construction failure is fatal to this session only.
func (m *Machine) createPeerConnection() bool {
	pc, err := m.engine.NewPeerConnection(m.ice)
	if err != nil {
		slog.Error("create peer connection", "err", err)
		m.close(false)
		return false
	}
	m.pc = pc

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		m.dispatch(event{kind: evLocalCandidate, local: c})
	})
	pc.OnRemoteStream(func(s rtc.Stream) {
		slog.Info("remote stream added", "id", s.ID())
	})

	if err := pc.AddStream(m.stream); err != nil {
		slog.Error("attach local stream", "err", err)
		m.close(false)
		return false
	}

	m.flushCandidates()
	return true
}

// flushCandidates applies candidates that arrived before the peer
// connection existed. The engine handles any that precede the remote
// description.
func (m *Machine) flushCandidates() {
	for _, c := range m.pendingCandidates {
		if err := m.pc.AddICECandidate(c); err != nil {
			slog.Warn("add buffered candidate", "err", err)
		}
	}
	m.pendingCandidates = nil
}

// close tears the session down. When sendBye is set the local side is
// released first, then the peer is told.
func (m *Machine) close(sendBye bool) {
	if m.state == Closed {
		return
	}
	if m.pc != nil {
		if err := m.pc.Close(); err != nil {
			slog.Warn("close peer connection", "err", err)
		}
		m.pc = nil
	}
	m.role = Unassigned
	m.pendingOffer = nil
	m.pendingCandidates = nil
	m.setState(Closed)
	if sendBye {
		m.sendMessage(protocol.Message{Literal: protocol.ByeLiteral})
	}
}

func (m *Machine) setState(s State) {
	if m.state == s {
		return
	}
	m.state = s
	m.notify(s)
}

func (m *Machine) sendMessage(msg protocol.Message) {
	if err := m.send(msg); err != nil {
		slog.Warn("send signaling message", "err", err)
	}
}
