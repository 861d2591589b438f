// Package session runs one participant: the signaling channel, the
// create-or-join handshake and the negotiation state machine, wired to
// an external media engine.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pion/webrtc/v4"

	"parley/internal/protocol"
	"parley/internal/rtc"
)

// ErrRoomFull is returned when the requested room already has two
// members. Not retried; recovery is user-initiated.
var ErrRoomFull = errors.New("room is full")

// ErrDisconnected is returned when the signaling channel drops before
// the session ended with a bye.
var ErrDisconnected = errors.New("signaling channel closed")

// Options configures one participant session.
type Options struct {
	// ServerURL is the websocket URL of the signaling server.
	ServerURL string

	// Room is the rendezvous room name.
	Room string

	// ICEServers seeds the engine configuration (STUN, static TURN).
	ICEServers []webrtc.ICEServer

	// TURNCredentialURL, when set and no TURN server is configured,
	// is fetched once to extend ICEServers before negotiation.
	TURNCredentialURL string

	Engine      rtc.Engine
	Media       rtc.MediaSource
	Constraints rtc.Constraints

	// OnState observes machine state changes. Optional.
	OnState func(State)

	// OnRole observes role assignment. Optional.
	OnRole func(Role)
}

// Run drives a full participant session and blocks until it ends: the
// machine closed (local or remote hangup), the room was full, media
// acquisition failed, or the context was canceled.
func Run(ctx context.Context, opts Options) error {
	if opts.Room == "" {
		return fmt.Errorf("room name must not be empty")
	}
	if opts.OnState == nil {
		opts.OnState = func(State) {}
	}
	if opts.OnRole == nil {
		opts.OnRole = func(Role) {}
	}

	ice := opts.ICEServers
	if opts.TURNCredentialURL != "" && !hasTURN(ice) {
		turn, err := fetchTURNServer(ctx, opts.TURNCredentialURL)
		if err != nil {
			// Degrade to STUN-only rather than aborting the call.
			slog.Warn("TURN credential fetch failed", "err", err)
		} else {
			ice = append(ice, *turn)
			slog.Info("TURN server configured", "uri", turn.URLs)
		}
	}

	client := NewClient(opts.ServerURL)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer client.Close()

	machine := NewMachine(Config{
		Engine:     opts.Engine,
		ICEServers: ice,
		Notify:     opts.OnState,
		Send: func(msg protocol.Message) error {
			raw, err := protocol.EncodeMessage(msg)
			if err != nil {
				return err
			}
			return client.Send(&protocol.Envelope{
				Event:   protocol.EventMessage,
				Room:    opts.Room,
				Payload: raw,
			})
		},
	})
	go machine.Run(context.Background())

	// The join request has to reach the server before the machine's
	// media-ready ping: a ping from a client with no room is rejected
	// and never resent. Queue order through the write pump is wire
	// order, so it is queued before capture can produce the ping.
	if err := client.Send(&protocol.Envelope{
		Event: protocol.EventCreateOrJoin,
		Room:  opts.Room,
	}); err != nil {
		stopMachine(machine)
		return err
	}

	// Local capture and the room handshake proceed concurrently; the
	// machine's start gate sorts out whichever finishes first.
	machine.MediaPending()
	mediaErr := make(chan error, 1)
	go func() {
		stream, err := opts.Media.GetUserMedia(ctx, opts.Constraints)
		if err != nil {
			mediaErr <- err
			return
		}
		machine.MediaReady(stream)
	}()

	for {
		select {
		case env, ok := <-client.Incoming():
			if !ok {
				machine.TransportClosed()
				<-machine.Done()
				return ErrDisconnected
			}
			if err := route(machine, opts, env); err != nil {
				stopMachine(machine)
				return err
			}

		case err := <-mediaErr:
			// Fatal to this participant: negotiation never starts.
			stopMachine(machine)
			return fmt.Errorf("media acquisition: %w", err)

		case <-machine.Done():
			return nil

		case <-ctx.Done():
			// Cancellation is the local hangup: say bye and end cleanly.
			stopMachine(machine)
			return nil
		}
	}
}

// stopMachine hangs the machine up and waits for its Run goroutine to
// finish. Every error exit goes through here so no machine is leaked.
func stopMachine(m *Machine) {
	m.Hangup()
	<-m.Done()
}

// route maps one server envelope onto machine events.
func route(machine *Machine, opts Options, env *protocol.Envelope) error {
	switch env.Event {
	case protocol.EventCreated:
		slog.Info("created room", "room", env.Room)
		machine.RoomCreated()
		opts.OnRole(Initiator)

	case protocol.EventJoin:
		// The second participant asked to join our room.
		slog.Info("peer joining room", "room", env.Room)

	case protocol.EventJoined:
		slog.Info("joined room", "room", env.Room)
		machine.RoomJoined()
		opts.OnRole(Responder)

	case protocol.EventFull:
		return fmt.Errorf("%w: %s", ErrRoomFull, env.Room)

	case protocol.EventReady:
		machine.ChannelReadySignal()

	case protocol.EventMessage:
		msg, err := protocol.DecodeMessage(env.Payload)
		if err != nil {
			slog.Warn("undecodable message payload", "err", err)
			return nil
		}
		routeMessage(machine, msg)

	case protocol.EventLog:
		var lines []string
		if err := json.Unmarshal(env.Payload, &lines); err == nil {
			slog.Debug("server log", "lines", strings.Join(lines, " "))
		}

	case protocol.EventIPAddr:
		slog.Info("server ipaddr", "payload", string(env.Payload))

	default:
		slog.Warn("unknown server event", "event", env.Event)
	}
	return nil
}

func routeMessage(machine *Machine, msg protocol.Message) {
	switch {
	case msg.IsBye():
		machine.RemoteBye()

	case msg.IsMediaReady():
		machine.PeerMediaReady()

	case msg.Signal != nil:
		switch msg.Signal.Type {
		case protocol.TypeOffer:
			machine.RemoteOffer(webrtc.SessionDescription{
				Type: webrtc.SDPTypeOffer,
				SDP:  msg.Signal.SDP,
			})
		case protocol.TypeAnswer:
			machine.RemoteAnswer(webrtc.SessionDescription{
				Type: webrtc.SDPTypeAnswer,
				SDP:  msg.Signal.SDP,
			})
		case protocol.TypeCandidate:
			init := webrtc.ICECandidateInit{
				Candidate:     msg.Signal.Candidate,
				SDPMLineIndex: msg.Signal.Label,
			}
			if msg.Signal.ID != "" {
				mid := msg.Signal.ID
				init.SDPMid = &mid
			}
			machine.RemoteCandidate(init)
		}
	}
}
