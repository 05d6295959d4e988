package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/parleyhq/parley/internal/model"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
	writeWait  = 10 * time.Second
)

// Client is one live realtime connection. It carries the user identity
// resolved during the handshake for its whole lifetime; the identity is
// never re-derived after registration, so broadcasts referencing this
// connection are never anonymous.
type Client struct {
	id   string
	user model.User
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// closed is owned by the hub and only mutated under its lock.
	closed bool

	maxMessageSize int64
}

// NewClient creates a client for an authorized connection. The connection id
// is unique for the client's lifetime and never reused.
func NewClient(conn *websocket.Conn, hub *Hub, user model.User, maxMessageSize int64) *Client {
	if conn != nil && maxMessageSize > 0 {
		conn.SetReadLimit(maxMessageSize)
	}
	return &Client{
		id:             uuid.NewString(),
		user:           user,
		conn:           conn,
		send:           make(chan []byte, 256),
		hub:            hub,
		maxMessageSize: maxMessageSize,
	}
}

// ID returns the connection id.
func (c *Client) ID() string { return c.id }

// User returns the identity attached at handshake time.
func (c *Client) User() model.User { return c.user }

// setupReadConnection configures read deadlines and the pong handler.
func (c *Client) setupReadConnection() {
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set initial read deadline", "username", c.user.Username, "err", err)
	}
	c.conn.SetPongHandler(func(string) error {
		if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			slog.Warn("failed to extend read deadline", "username", c.user.Username, "err", err)
		}
		return nil
	})
}

// handleReadError logs the read failure and reports whether the read loop
// should stop. Every failure mode, graceful close included, funnels into the
// same disconnect path.
func (c *Client) handleReadError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, websocket.ErrReadLimit) {
		slog.Warn("message exceeded maximum size", "username", c.user.Username, "limit", c.maxMessageSize)
		return true
	}

	if websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure) {
		slog.Info("client disconnected", "username", c.user.Username, "err", err)
		return true
	}

	if errors.Is(err, io.EOF) || isExpectedCloseError(err) {
		slog.Info("client connection closed", "username", c.user.Username, "err", err)
		return true
	}

	slog.Warn("websocket read error", "username", c.user.Username, "err", err)
	return true
}

// handleFrame decodes one inbound frame and forwards chat events to the hub.
// Malformed or unknown frames are logged and dropped; they never tear down
// the connection or affect other clients.
func (c *Client) handleFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		slog.Warn("invalid frame", "username", c.user.Username, "err", err)
		return
	}

	switch env.Event {
	case EventChat:
		var chat InboundChat
		if err := json.Unmarshal(env.Data, &chat); err != nil {
			slog.Warn("invalid chat payload", "username", c.user.Username, "err", err)
			return
		}
		select {
		case c.hub.broadcast <- chatRequest{sender: c, message: chat.Message}:
		case <-c.hub.ctx.Done():
		}
	default:
		slog.Debug("ignoring unknown event", "username", c.user.Username, "event", env.Event)
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Warn("error closing connection in readPump", "err", err)
		}
	}()

	c.setupReadConnection()

	for {
		_, raw, err := c.conn.ReadMessage()
		if c.handleReadError(err) {
			break
		}
		c.handleFrame(raw)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil && !isExpectedCloseError(err) {
			slog.Warn("error closing connection in writePump", "err", err)
		}
	}()

	for c.processWriteEvent(ticker) {
	}
}

// processWriteEvent waits for the next write event and returns false when
// the pump should stop.
func (c *Client) processWriteEvent(ticker *time.Ticker) bool {
	select {
	case message, ok := <-c.send:
		return c.handleOutbound(message, ok)
	case <-ticker.C:
		return c.handlePing()
	}
}

// handleOutbound writes one queued frame and returns false if the connection
// should be closed.
func (c *Client) handleOutbound(message []byte, ok bool) bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Warn("failed to set write deadline", "username", c.user.Username, "err", err)
		return false
	}

	if !ok {
		// The hub closed the send channel.
		if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil && !isExpectedCloseError(err) {
			slog.Warn("error writing close message", "username", c.user.Username, "err", err)
		}
		return false
	}

	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		if !isExpectedCloseError(err) {
			slog.Warn("error writing message", "username", c.user.Username, "err", err)
		}
		return false
	}
	return true
}

// handlePing sends a ping to keep the connection alive.
func (c *Client) handlePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		slog.Warn("failed to set write deadline for ping", "username", c.user.Username, "err", err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			slog.Warn("error writing ping", "username", c.user.Username, "err", err)
		}
		return false
	}
	return true
}
