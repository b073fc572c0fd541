// EventLens - Live Event Engagement Analytics
// Copyright 2026 EventLens Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/eventlens/eventlens

package websocket

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/eventlens/eventlens/internal/logging"
	"github.com/eventlens/eventlens/internal/metrics"
	"github.com/eventlens/eventlens/internal/models"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024 // 64 KB, cursor payloads are small
	sendBufferSize = 256
)

// clientIDCounter generates unique, monotonically increasing IDs for clients.
// Used for log correlation alongside the opaque connection ID.
var clientIDCounter atomic.Uint64

// MessageHandler receives decoded frames and lifecycle events from a client.
// HandleMessage runs on the client's read goroutine; implementations must not
// block on the client's own send path.
type MessageHandler interface {
	HandleMessage(c *Client, msg models.ClientMessage)
	HandleDisconnect(connID string)
}

// Client is the server side of one live websocket connection. It owns the
// read and write pumps; everything else talks to it through TrySend.
type Client struct {
	id      uint64
	connID  string
	conn    *websocket.Conn
	handler MessageHandler
	limiter *rate.Limiter
	send    chan models.ServerMessage

	mu        sync.RWMutex
	sessionID string

	closeOnce sync.Once
}

// NewClient wraps an upgraded connection. msgsPerSecond and burst bound the
// inbound frame rate per connection; frames over the limit are dropped.
func NewClient(conn *websocket.Conn, handler MessageHandler, msgsPerSecond float64, burst int) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		connID:  uuid.NewString(),
		conn:    conn,
		handler: handler,
		limiter: rate.NewLimiter(rate.Limit(msgsPerSecond), burst),
		send:    make(chan models.ServerMessage, sendBufferSize),
	}
}

// ConnID returns the connection's opaque identifier.
func (c *Client) ConnID() string {
	return c.connID
}

// SetSessionID records the tracking session bound to this connection.
// Set once the client joins a room; empty until then.
func (c *Client) SetSessionID(sessionID string) {
	c.mu.Lock()
	c.sessionID = sessionID
	c.mu.Unlock()
}

// PeerSessionID returns the session bound to this connection, "" if none yet.
func (c *Client) PeerSessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessionID
}

// TrySend queues a message for the write pump without blocking. It reports
// false when the buffer is full and the message was dropped.
func (c *Client) TrySend(msg models.ServerMessage) bool {
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// readPump pumps frames from the websocket connection to the handler.
func (c *Client) readPump() {
	defer func() {
		c.handler.HandleDisconnect(c.connID)
		c.closeSend()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
		metrics.WSConnections.Dec()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg models.ClientMessage
		err := c.conn.ReadJSON(&msg)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Error().Err(err).Uint64("client_id", c.id).Msg("unexpected websocket close error")
			}
			break
		}

		if !c.limiter.Allow() {
			metrics.WSMessagesDropped.WithLabelValues("rate_limited").Inc()
			c.TrySend(models.ServerMessage{
				Type: models.MessageTypeError,
				Data: models.ErrorData{Message: "message rate limit exceeded"},
			})
			continue
		}

		// Heartbeat is answered here; everything else is domain traffic.
		if msg.Type == models.MessageTypePing {
			c.TrySend(models.ServerMessage{Type: models.MessageTypePong})
			continue
		}

		c.handler.HandleMessage(c, msg)
	}
}

// writePump pumps queued messages to the websocket connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close() // Explicitly ignore error - best-effort cleanup
	}()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline")
				return
			}

			if !ok {
				// The read pump closed the channel.
				if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
					logging.Error().Err(err).Msg("failed to write close message")
				}
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				logging.Error().Err(err).Msg("failed to write JSON message")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				logging.Error().Err(err).Msg("failed to set write deadline for ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// Start begins reading and writing for the client.
func (c *Client) Start() {
	metrics.WSConnections.Inc()
	go c.writePump()
	go c.readPump()
}
