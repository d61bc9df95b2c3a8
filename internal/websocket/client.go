package websocket

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Subscribers only send control frames
	maxMessageSize = 512

	sendBuffer = 64
)

// CloseReasonSessionEnded is sent to session subscribers when the session is deleted
const CloseReasonSessionEnded = "session ended"

// Client is one WebSocket subscriber to a single topic.
// Closing it stops the write pump, which sends a close frame carrying the
// close reason before the connection is torn down.
type Client struct {
	id        string
	topic     string
	sessionID string
	conn      *websocket.Conn
	hub       *Hub
	logger    zerolog.Logger
	send      chan []byte

	mu          sync.RWMutex
	closed      bool
	closeCode   int
	closeReason string
	closeOnce   sync.Once
}

// NewClient creates a subscriber for topic. Session topics carry the session ID in every log line.
func NewClient(conn *websocket.Conn, topic string, hub *Hub) *Client {
	id := uuid.New().String()
	logCtx := log.With().Str("client_id", id).Str("topic", topic)
	sessionID, isSession := strings.CutPrefix(topic, sessionTopicPrefix)
	if isSession {
		logCtx = logCtx.Str("session_id", sessionID)
	} else {
		sessionID = ""
	}

	return &Client{
		id:        id,
		topic:     topic,
		sessionID: sessionID,
		conn:      conn,
		hub:       hub,
		logger:    logCtx.Logger(),
		send:      make(chan []byte, sendBuffer),
		closeCode: websocket.CloseNormalClosure,
	}
}

// ID returns the client's unique identifier
func (c *Client) ID() string {
	return c.id
}

// Topic returns the topic the client subscribed to
func (c *Client) Topic() string {
	return c.topic
}

// SessionID is the form session the client follows, or empty for the portfolio topic
func (c *Client) SessionID() string {
	return c.sessionID
}

// Send queues a message. A full buffer means the subscriber stopped reading,
// so it is disconnected rather than left to lag behind.
func (c *Client) Send(data []byte) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return ErrClientClosed
	}
	select {
	case c.send <- data:
		c.mu.RUnlock()
		return nil
	default:
	}
	c.mu.RUnlock()

	c.logger.Warn().Msg("WebSocket client too slow, disconnecting")
	c.Disconnect(websocket.ClosePolicyViolation, "too slow")
	return ErrClientClosed
}

// Close disconnects the client with a normal closure
func (c *Client) Close() error {
	return c.Disconnect(websocket.CloseNormalClosure, "")
}

// Disconnect stops delivery and records the close frame the write pump sends.
// Only the first call has any effect.
func (c *Client) Disconnect(code int, reason string) error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.closeCode = code
		c.closeReason = reason
		close(c.send)
		c.mu.Unlock()
	})
	return nil
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

func (c *Client) closeFrame() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return websocket.FormatCloseMessage(c.closeCode, c.closeReason)
}

// ReadPump drains control frames until the peer goes away, then unsubscribes.
// Run it in its own goroutine.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn().Err(err).Msg("WebSocket unexpected close")
			}
			return
		}
	}
}

// WritePump delivers queued events and keeps the connection alive with pings.
// It owns the connection: when it returns the connection is closed.
// Run it in its own goroutine.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				if err := c.conn.WriteMessage(websocket.CloseMessage, c.closeFrame()); err != nil {
					c.logger.Debug().Err(err).Msg("WebSocket close frame not delivered")
				}
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn().Err(err).Msg("WebSocket write error")
				c.Close()
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Debug().Err(err).Msg("WebSocket ping failed")
				c.Close()
				return
			}
		}
	}
}
