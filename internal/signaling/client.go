package signaling

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/protocol"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. SDP blobs fit comfortably.
	maxMessageSize = 64 * 1024
)

// Client is a wrapper for a single websocket connection (a participant).
type Client struct {
	// Hub is the hub that owns this client.
	Hub *Hub

	// Conn is the websocket connection. Nil in hub-level tests.
	Conn *websocket.Conn

	// ID is the connection identifier assigned at upgrade time.
	ID string

	// RoomID is the room the client is a member of, empty when none.
	// Owned by the hub loop.
	RoomID string

	// Send is the buffered channel of outbound envelopes. The hub
	// writes to it; WritePump drains it onto the websocket.
	Send chan *protocol.Envelope
}

// ReadPump pumps envelopes from the websocket connection to the hub.
//
// One ReadPump goroutine per connection; all reads go through it.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var env protocol.Envelope
		if err := c.Conn.ReadJSON(&env); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				slog.Warn("read error", "client", c.ID, "err", err)
			}
			break
		}

		c.Hub.Inbound <- &frame{client: c, env: &env}
	}
}

// WritePump pumps envelopes from the hub to the websocket connection
// and keeps the connection alive with pings.
//
// One WritePump goroutine per connection; all writes go through it.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case env, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteJSON(env); err != nil {
				slog.Warn("write error", "client", c.ID, "err", err)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
