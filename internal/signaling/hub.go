package signaling

import (
	"log/slog"

	"parley/internal/netutil"
	"parley/internal/protocol"
)

// Hub is the central brain of the signaling server: the room registry
// and the relay. All room state is owned by the single Run goroutine,
// so create-or-join and leave for any room are linearizable without
// per-room locks: the membership check and the mutation happen inside
// one loop iteration.
type Hub struct {
	// Rooms maps room IDs to Room instances.
	Rooms map[string]*Room

	// Register is the channel for registering new clients.
	Register chan *Client

	// Unregister is the channel for unregistering clients.
	Unregister chan *Client

	// Inbound carries every envelope read from a client connection.
	Inbound chan *frame
}

// frame is an inbound envelope tagged with the client that sent it.
type frame struct {
	client *Client
	env    *protocol.Envelope
}

// NewHub creates a new Hub instance.
func NewHub() *Hub {
	return &Hub{
		Rooms:      make(map[string]*Room),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *frame),
	}
}

// Run starts the hub's main processing loop. This is the single
// goroutine that manages all room state.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			// Not in a room yet; membership starts with "create or join".
			slog.Info("client registered", "id", client.ID)

		case client := <-h.Unregister:
			h.handleDisconnect(client)

		case f := <-h.Inbound:
			h.dispatch(f.client, f.env)
		}
	}
}

func (h *Hub) dispatch(c *Client, env *protocol.Envelope) {
	switch env.Event {
	case protocol.EventCreateOrJoin:
		h.createOrJoin(c, env.Room)
	case protocol.EventMessage:
		h.relay(c, env)
	case protocol.EventIPAddr:
		h.sendIPAddrs(c)
	default:
		slog.Warn("unknown event", "event", env.Event, "client", c.ID)
		h.logTo(c, "unknown event "+env.Event)
	}
}

// createOrJoin implements the room registry contract: first joiner
// creates, second joiner completes the pair, a third is turned away.
func (h *Hub) createOrJoin(c *Client, roomID string) {
	h.logTo(c, "Received request to create or join room "+roomID)

	if roomID == "" {
		slog.Warn("create or join with empty room", "client", c.ID)
		h.logTo(c, ErrEmptyRoom.Error())
		return
	}
	if c.RoomID != "" {
		slog.Warn("client already in a room", "client", c.ID, "room", c.RoomID)
		h.logTo(c, ErrAlreadyInRoom.Error())
		return
	}

	room := h.Rooms[roomID]

	switch {
	case room == nil || room.Len() == 0:
		if room == nil {
			room = &Room{ID: roomID}
			h.Rooms[roomID] = room
		}
		room.Add(c)
		c.RoomID = roomID
		slog.Info("room created", "room", roomID, "client", c.ID)
		h.logTo(c, "Client ID "+c.ID+" created room "+roomID)
		h.deliver(c, mustEnvelope(protocol.EventCreated, roomID, c.ID))

	case room.Full():
		slog.Info("room full", "room", roomID, "client", c.ID)
		h.deliver(c, mustEnvelope(protocol.EventFull, roomID, nil))

	default:
		slog.Info("room joined", "room", roomID, "client", c.ID)
		h.logTo(c, "Client ID "+c.ID+" joined room "+roomID)

		// The pre-existing member learns a second peer arrived before
		// the joiner is confirmed, matching the original event order.
		for _, m := range room.Members() {
			h.deliver(m, mustEnvelope(protocol.EventJoin, roomID, nil))
		}
		room.Add(c)
		c.RoomID = roomID
		h.deliver(c, mustEnvelope(protocol.EventJoined, roomID, c.ID))
		for _, m := range room.Members() {
			h.deliver(m, mustEnvelope(protocol.EventReady, roomID, nil))
		}
	}
}

// relay forwards a "message" envelope verbatim to the sender's room
// peer, and only to it. The registry never interprets the payload; the
// only inspection done here is for diagnostics when no peer exists.
func (h *Hub) relay(c *Client, env *protocol.Envelope) {
	h.logTo(c, "Client said: "+string(env.Payload))

	if c.RoomID == "" {
		slog.Warn("message from client with no room", "client", c.ID)
		h.logTo(c, ErrNotInRoom.Error())
		return
	}

	room := h.Rooms[c.RoomID]
	if room == nil {
		slog.Warn("message for unknown room", "client", c.ID, "room", c.RoomID)
		h.logTo(c, ErrNotInRoom.Error())
		return
	}

	peer := room.Peer(c)
	if peer == nil {
		// No peer yet. An early media-ready ping is expected; SDP or
		// candidates with nobody to receive them are a protocol violation.
		if msg, err := protocol.DecodeMessage(env.Payload); err == nil && msg.Signal != nil {
			slog.Warn("dropping negotiation payload with no peer",
				"client", c.ID, "room", c.RoomID, "type", msg.Signal.Type)
		}
		return
	}

	h.deliver(peer, &protocol.Envelope{
		Event:   protocol.EventMessage,
		Room:    c.RoomID,
		Payload: env.Payload,
	})
}

// handleDisconnect implements leave() plus the disconnect-to-hangup
// bridge: a raw connection drop is turned into a relayed "bye" so the
// remaining peer is not left stuck mid-negotiation.
func (h *Hub) handleDisconnect(c *Client) {
	slog.Info("client unregistered", "id", c.ID)

	if c.RoomID != "" {
		if room := h.Rooms[c.RoomID]; room != nil {
			room.Remove(c)

			if room.Len() == 0 {
				delete(h.Rooms, room.ID)
				slog.Info("room destroyed", "room", room.ID)
			} else {
				peer := room.Members()[0]
				bye, _ := protocol.EncodeMessage(protocol.Message{Literal: protocol.ByeLiteral})
				h.deliver(peer, &protocol.Envelope{
					Event:   protocol.EventMessage,
					Room:    room.ID,
					Payload: bye,
				})
			}
		}
		c.RoomID = ""
	}

	// Stop the client's write pump.
	close(c.Send)
}

// sendIPAddrs replies with one "ipaddr" envelope per local IPv4 address.
func (h *Hub) sendIPAddrs(c *Client) {
	for _, addr := range netutil.LocalIPv4Addrs() {
		h.deliver(c, mustEnvelope(protocol.EventIPAddr, "", addr))
	}
}

// logTo echoes a diagnostic line to one client over the "log" event.
// Purely observability; never a substitute for payload delivery.
func (h *Hub) logTo(c *Client, parts ...string) {
	payload := append([]string{"Message from server:"}, parts...)
	h.deliver(c, mustEnvelope(protocol.EventLog, "", payload))
}

// deliver queues an envelope for a client without ever blocking the hub
// loop. A client whose pump stopped draining loses frames instead of
// wedging every room on the server.
func (h *Hub) deliver(c *Client, env *protocol.Envelope) {
	select {
	case c.Send <- env:
	default:
		slog.Warn("dropping frame for slow client", "client", c.ID, "event", env.Event)
	}
}

func mustEnvelope(event, room string, payload any) *protocol.Envelope {
	env, err := protocol.NewEnvelope(event, room, payload)
	if err != nil {
		// Payloads here are strings and string slices; this cannot fail.
		panic(err)
	}
	return env
}
