package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"parley/internal/protocol"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// Client manages the websocket message channel to the signaling server.
// It guarantees ordered delivery of incoming envelopes on a single
// channel, which is what the machine's one-event-at-a-time model needs.
type Client struct {
	conn      *websocket.Conn
	serverURL string
	incoming  chan *protocol.Envelope
	outgoing  chan *protocol.Envelope
	done      chan struct{}

	closeOnce sync.Once
}

// NewClient creates a signaling client for the given websocket URL.
func NewClient(serverURL string) *Client {
	return &Client{
		serverURL: serverURL,
		incoming:  make(chan *protocol.Envelope, 32),
		outgoing:  make(chan *protocol.Envelope, 32),
		done:      make(chan struct{}),
	}
}

// Connect establishes the websocket connection and starts the pumps.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("invalid server URL: %w", err)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("connect signaling server: %w", err)
	}

	c.conn = conn
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	go c.readPump()
	go c.writePump()

	return nil
}

// readPump reads envelopes from the connection. Closing the incoming
// channel is the disconnect signal consumed by the session.
func (c *Client) readPump() {
	defer func() {
		c.conn.Close()
		close(c.incoming)
	}()

	c.conn.SetReadDeadline(time.Now().Add(pongWait))

	for {
		var env protocol.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}

		c.incoming <- &env
	}
}

// writePump writes envelopes and keepalive pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case env := <-c.outgoing:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			// Flush anything still queued (the final bye, typically)
			// before saying goodbye on the wire.
			for {
				select {
				case env := <-c.outgoing:
					c.conn.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.conn.WriteJSON(env); err != nil {
						return
					}
					continue
				default:
				}
				break
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send queues an envelope for transmission.
func (c *Client) Send(env *protocol.Envelope) error {
	select {
	case c.outgoing <- env:
		return nil
	case <-c.done:
		return fmt.Errorf("signaling client closed")
	}
}

// Incoming returns the ordered stream of server envelopes. The channel
// closes when the connection drops.
func (c *Client) Incoming() <-chan *protocol.Envelope {
	return c.incoming
}

// Close shuts the connection down cleanly.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}
