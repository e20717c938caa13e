package main

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingPeriod     = 2 * time.Second
	pongWait       = pingPeriod + 5*time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

type frame struct {
	typ  int
	data []byte
}

// Client represents a WebSocket connection
type Client struct {
	hub        *Hub
	conn       *websocket.Conn
	codec      Codec
	send       chan frame
	done       chan struct{}
	closeOnce  sync.Once
	session    *Session
	remoteAddr string
	msgCount   int
	msgResetAt time.Time
}

// NewClient creates a new Client with a fresh connection id
func NewClient(hub *Hub, conn *websocket.Conn, codec Codec, remoteAddr string) *Client {
	c := &Client{
		hub:        hub,
		conn:       conn,
		codec:      codec,
		send:       make(chan frame, sendBufSize),
		done:       make(chan struct{}),
		remoteAddr: remoteAddr,
	}
	c.session = &Session{ID: GenerateID(), RemoteAddr: remoteAddr, Sender: c}
	return c
}

// ReadPump reads messages from the WebSocket connection
func (c *Client) ReadPump() {
	defer c.hub.Detach(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("websocket read failed", "conn_id", c.session.ID, "error", err)
			}
			return
		}

		// Rate limiting
		now := time.Now()
		if now.After(c.msgResetAt) {
			c.msgCount = 0
			c.msgResetAt = now.Add(time.Second)
		}
		c.msgCount++
		if c.msgCount > c.hub.limits.MaxMessagesPerSec {
			c.hub.logger.Warn("rate limit exceeded, disconnecting", "conn_id", c.session.ID, "ip", c.remoteAddr)
			return
		}

		in, err := c.codec.Decode(message)
		if err != nil {
			c.hub.logger.Debug("undecodable message", "conn_id", c.session.ID, "error", err)
			continue
		}
		c.hub.dispatcher.Handle(c.session, in)
	}
}

// WritePump writes messages to the WebSocket connection
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(f.typ, f.data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// Send encodes env with the connection's codec and queues it. Slow clients
// drop messages rather than stall the room.
func (c *Client) Send(env Envelope) {
	data, err := c.codec.Encode(env)
	if err != nil {
		c.hub.logger.Error("encode failed", "event", env.T, "error", err)
		return
	}
	select {
	case <-c.done:
	case c.send <- frame{typ: c.codec.FrameType(), data: data}:
	default:
		// Client too slow, drop message
	}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}
