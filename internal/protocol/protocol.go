// Package protocol defines the signaling wire contract shared by the
// server and the participant client. Event names are the compatibility
// surface and must not be changed.
package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the frame exchanged over the signaling websocket. Payload
// stays raw until the event is dispatched, so relayed frames are
// forwarded byte-identical.
type Envelope struct {
	Event   string          `json:"event"`
	Room    string          `json:"room,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Event name constants.
const (
	EventCreateOrJoin = "create or join"
	EventCreated      = "created"
	EventJoin         = "join"
	EventJoined       = "joined"
	EventFull         = "full"
	EventReady        = "ready"
	EventMessage      = "message"
	EventIPAddr       = "ipaddr"
	EventLog          = "log"
)

// Literal "message" payloads that are plain strings rather than
// SignalingMessage objects.
const (
	MediaReadyLiteral = "got user media"
	ByeLiteral        = "bye"
)

// SignalingMessage types.
const (
	TypeOffer     = "offer"
	TypeAnswer    = "answer"
	TypeCandidate = "candidate"
)

// SignalingMessage is the negotiation payload carried by a "message"
// event. Exactly one shape per Type:
//
//	offer/answer: SDP set
//	candidate:    Label, ID, Candidate set
//
// The candidate keys ("label", "id") mirror RTCIceCandidate's
// sdpMLineIndex and sdpMid fields.
type SignalingMessage struct {
	Type      string  `json:"type"`
	SDP       string  `json:"sdp,omitempty"`
	Label     *uint16 `json:"label,omitempty"`
	ID        string  `json:"id,omitempty"`
	Candidate string  `json:"candidate,omitempty"`
}

// Message is the decoded form of a "message" event payload: either a
// SignalingMessage or one of the string literals.
type Message struct {
	// Literal is MediaReadyLiteral or ByeLiteral when the payload was a
	// plain string; empty otherwise.
	Literal string

	// Signal is set when the payload was a SignalingMessage object.
	Signal *SignalingMessage
}

// IsBye reports whether the message is a hangup.
func (m Message) IsBye() bool { return m.Literal == ByeLiteral }

// IsMediaReady reports whether the message is the peer's media-ready ping.
func (m Message) IsMediaReady() bool { return m.Literal == MediaReadyLiteral }

// DecodeMessage parses a "message" event payload.
func DecodeMessage(raw json.RawMessage) (Message, error) {
	if len(raw) == 0 {
		return Message{}, fmt.Errorf("empty message payload")
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Message{}, fmt.Errorf("decode message literal: %w", err)
		}
		switch s {
		case MediaReadyLiteral, ByeLiteral:
			return Message{Literal: s}, nil
		}
		return Message{}, fmt.Errorf("unknown message literal %q", s)
	}
	var sig SignalingMessage
	if err := json.Unmarshal(raw, &sig); err != nil {
		return Message{}, fmt.Errorf("decode signaling message: %w", err)
	}
	switch sig.Type {
	case TypeOffer, TypeAnswer, TypeCandidate:
		return Message{Signal: &sig}, nil
	}
	return Message{}, fmt.Errorf("unknown signaling message type %q", sig.Type)
}

// EncodeMessage is the inverse of DecodeMessage.
func EncodeMessage(m Message) (json.RawMessage, error) {
	if m.Literal != "" {
		return json.Marshal(m.Literal)
	}
	if m.Signal == nil {
		return nil, fmt.Errorf("message has neither literal nor signal")
	}
	return json.Marshal(m.Signal)
}

// NewEnvelope builds an envelope with an already-marshaled payload.
func NewEnvelope(event, room string, payload any) (*Envelope, error) {
	env := &Envelope{Event: event, Room: room}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Payload = raw
	}
	return env, nil
}
