package signaling

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"parley/internal/protocol"
)

// Tests drive the hub's dispatch directly: every delivery is queued
// synchronously, so the outbox of each fake client can be inspected
// right after the call.

func testClient(id string) *Client {
	return &Client{ID: id, Send: make(chan *protocol.Envelope, 32)}
}

func createOrJoin(h *Hub, c *Client, room string) {
	h.dispatch(c, &protocol.Envelope{Event: protocol.EventCreateOrJoin, Room: room})
}

func sendMessage(h *Hub, c *Client, payload string) {
	h.dispatch(c, &protocol.Envelope{Event: protocol.EventMessage, Payload: json.RawMessage(payload)})
}

// nextEvent pops queued envelopes, skipping "log" diagnostics, and
// requires the next real one to match the wanted event.
func nextEvent(t *testing.T, c *Client, event string) *protocol.Envelope {
	t.Helper()
	for {
		select {
		case env := <-c.Send:
			if env.Event == protocol.EventLog {
				continue
			}
			require.Equal(t, event, env.Event)
			return env
		default:
			t.Fatalf("no %q envelope queued for client %s", event, c.ID)
			return nil
		}
	}
}

// requireSilent asserts that nothing but diagnostics reached the client.
func requireSilent(t *testing.T, c *Client) {
	t.Helper()
	for {
		select {
		case env := <-c.Send:
			require.Equal(t, protocol.EventLog, env.Event, "unexpected %q envelope", env.Event)
		default:
			return
		}
	}
}

func TestCreateOrJoinPairsTwoClients(t *testing.T) {
	h := NewHub()
	a := testClient("a")
	b := testClient("b")

	createOrJoin(h, a, "abc")
	env := nextEvent(t, a, protocol.EventCreated)
	require.Equal(t, "abc", env.Room)
	require.Equal(t, 1, h.Rooms["abc"].Len())
	require.Equal(t, "abc", a.RoomID)

	createOrJoin(h, b, "abc")
	nextEvent(t, a, protocol.EventJoin)
	nextEvent(t, a, protocol.EventReady)
	env = nextEvent(t, b, protocol.EventJoined)
	require.Equal(t, "abc", env.Room)
	nextEvent(t, b, protocol.EventReady)

	require.Equal(t, 2, h.Rooms["abc"].Len())
	// Join order decides the initiator: the creator comes first.
	require.Same(t, a, h.Rooms["abc"].Members()[0])
}

func TestThirdJoinerGetsFullWithoutMutation(t *testing.T) {
	h := NewHub()
	a, b, c := testClient("a"), testClient("b"), testClient("c")

	createOrJoin(h, a, "abc")
	createOrJoin(h, b, "abc")
	createOrJoin(h, c, "abc")

	env := nextEvent(t, c, protocol.EventFull)
	require.Equal(t, "abc", env.Room)
	require.Empty(t, c.RoomID)
	require.Equal(t, 2, h.Rooms["abc"].Len())

	members := h.Rooms["abc"].Members()
	require.Same(t, a, members[0])
	require.Same(t, b, members[1])
}

func TestCreateOrJoinRejections(t *testing.T) {
	h := NewHub()
	a := testClient("a")

	createOrJoin(h, a, "")
	require.Empty(t, a.RoomID)
	requireSilent(t, a)

	createOrJoin(h, a, "abc")
	nextEvent(t, a, protocol.EventCreated)

	// A second request from a participant that already has a room.
	createOrJoin(h, a, "other")
	require.Equal(t, "abc", a.RoomID)
	require.Nil(t, h.Rooms["other"])
	requireSilent(t, a)
}

func TestRelayDeliversVerbatimToPeerOnly(t *testing.T) {
	h := NewHub()
	a, b := testClient("a"), testClient("b")
	c, d := testClient("c"), testClient("d")

	createOrJoin(h, a, "room1")
	createOrJoin(h, b, "room1")
	createOrJoin(h, c, "room2")
	createOrJoin(h, d, "room2")
	for _, cl := range []*Client{a, b, c, d} {
		requireSilent(t, cl)
	}

	payload := `{"type":"offer","sdp":"v=0\r\no=- 42 2 IN IP4 127.0.0.1"}`
	sendMessage(h, a, payload)

	env := nextEvent(t, b, protocol.EventMessage)
	require.JSONEq(t, payload, string(env.Payload))
	// Byte-identical relay, not merely semantically equal.
	require.Equal(t, payload, string(env.Payload))

	requireSilent(t, a)
	requireSilent(t, c)
	requireSilent(t, d)
}

func TestRelayWithoutRoomIsRejected(t *testing.T) {
	h := NewHub()
	a := testClient("a")

	sendMessage(h, a, `"got user media"`)

	var sawRejection bool
	for {
		select {
		case env := <-a.Send:
			require.Equal(t, protocol.EventLog, env.Event)
			var lines []string
			require.NoError(t, json.Unmarshal(env.Payload, &lines))
			for _, l := range lines {
				if l == ErrNotInRoom.Error() {
					sawRejection = true
				}
			}
		default:
			require.True(t, sawRejection, "expected a NotInRoom diagnostic")
			return
		}
	}
}

func TestRelayWithoutPeerIsDropped(t *testing.T) {
	h := NewHub()
	a := testClient("a")
	createOrJoin(h, a, "abc")
	nextEvent(t, a, protocol.EventCreated)

	// Early media-ready ping with no peer yet: a silent no-op.
	sendMessage(h, a, `"got user media"`)
	requireSilent(t, a)

	// SDP with no peer is also dropped (logged server-side), never an error.
	sendMessage(h, a, `{"type":"offer","sdp":"v=0"}`)
	requireSilent(t, a)
	require.Equal(t, 1, h.Rooms["abc"].Len())
}

func TestDisconnectSynthesizesByeAndDestroysEmptyRoom(t *testing.T) {
	h := NewHub()
	a, b := testClient("a"), testClient("b")

	createOrJoin(h, a, "abc")
	createOrJoin(h, b, "abc")

	h.handleDisconnect(a)

	env := nextEvent(t, b, protocol.EventMessage)
	msg, err := protocol.DecodeMessage(env.Payload)
	require.NoError(t, err)
	require.True(t, msg.IsBye())

	require.NotNil(t, h.Rooms["abc"])
	require.Equal(t, 1, h.Rooms["abc"].Len())

	h.handleDisconnect(b)
	require.Nil(t, h.Rooms["abc"])

	// Both send channels are closed so the write pumps stop.
	requireClosed(t, a.Send)
	requireClosed(t, b.Send)
}

// requireClosed drains queued envelopes and asserts the channel was
// closed by the hub.
func requireClosed(t *testing.T, ch chan *protocol.Envelope) {
	t.Helper()
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		default:
			t.Fatal("send channel not closed")
		}
	}
}

func TestRoomReuseAfterDestruction(t *testing.T) {
	h := NewHub()
	a, b := testClient("a"), testClient("b")

	createOrJoin(h, a, "abc")
	h.handleDisconnect(a)
	require.Nil(t, h.Rooms["abc"])

	// The name is free again; the next joiner creates a fresh room.
	createOrJoin(h, b, "abc")
	nextEvent(t, b, protocol.EventCreated)
	require.Same(t, b, h.Rooms["abc"].Members()[0])
}
