// Package server manages individual WebSocket clients, handling the per
// session state machine, read/write pumps, rate limiting, and lifecycle
// control for each connection.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait         = 10 * time.Second
	membershipTimeout = 5 * time.Second
)

// Client represents one authenticated WebSocket connection. Its identity is
// set once during the handshake and never changes; the group binding starts
// empty and is updated through the hub on successful joins. The registry
// holds the client under an opaque connection handle.
type Client struct {
	handle         string
	conn           *websocket.Conn
	send           chan []byte
	ping           chan struct{}
	hub            *Hub
	oracle         MembershipOracle
	identity       string
	addr           string
	group          string // guarded by hub.mutex
	closed         bool   // guarded by hub.mutex
	alive          atomic.Bool
	maxMessageSize int64
	rateLimiter    *rateLimiter
	rateLimit      RateLimitConfig
}

// MembershipOracle answers whether a user currently belongs to a group. It is
// consulted on every join attempt and never between sends; revocations reach
// the relay through eviction only.
type MembershipOracle interface {
	IsMember(ctx context.Context, identity, groupID string) (bool, error)
}

// NewClient creates a Client for a connection whose credential has already
// been verified. Creating a client without an identity is a programming
// error: no session may ever run unauthenticated.
func NewClient(conn *websocket.Conn, hub *Hub, oracle MembershipOracle, identity, addr string) *Client {
	if identity == "" {
		panic("server: client created without an authenticated identity")
	}

	cfg := currentConfig()
	if conn != nil {
		conn.SetReadLimit(cfg.MaxMessageSize)
	}
	limiter := newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval)

	client := &Client{
		handle:         uuid.NewString(),
		conn:           conn,
		send:           make(chan []byte, 256),
		ping:           make(chan struct{}, 1),
		hub:            hub,
		oracle:         oracle,
		identity:       identity,
		addr:           addr,
		maxMessageSize: cfg.MaxMessageSize,
		rateLimiter:    limiter,
		rateLimit:      cfg.RateLimit,
	}
	client.alive.Store(true)
	return client
}

// requestPing asks the write pump to emit a liveness probe. It never blocks;
// a probe request that is already pending is sufficient.
func (c *Client) requestPing() {
	select {
	case c.ping <- struct{}{}:
	default:
	}
}

// handleReadError logs an appropriate message for a read-loop error. Every
// read error ends the session; the logging just distinguishes expected
// disconnects from genuine faults.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		log.Printf("Message from %s exceeded maximum size of %d bytes", c.addr, c.maxMessageSize)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		log.Printf("Client %s disconnected: %v", c.addr, err)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		log.Printf("Client %s connection closed: %v", c.addr, err)
	default:
		log.Printf("WebSocket read error from %s: %v", c.addr, err)
	}
}

// checkRateLimit verifies if the client has exceeded rate limits
// and returns true if the message should be processed.
func (c *Client) checkRateLimit() bool {
	if c.rateLimiter != nil && !c.rateLimiter.allow() {
		log.Printf("Rate limit exceeded for %s (%d messages per %s); discarding message",
			c.addr, c.rateLimit.Burst, c.rateLimit.RefillInterval)
		return false
	}
	return true
}

// sendError queues a structured error frame for delivery. Failures are
// ignored: the session is either closing or its buffer is full, and both
// resolve through the normal termination path.
func (c *Client) sendError(text string) {
	c.hub.safeSend(c, marshalError(text))
}

// handleEvent runs one step of the session state machine for a raw inbound
// frame. The returned bool reports whether the session may keep reading;
// false means the session is fatally closed (access denied policy).
func (c *Client) handleEvent(rawMessage []byte) bool {
	var event InboundEvent
	if err := json.Unmarshal(rawMessage, &event); err != nil {
		log.Printf("Invalid message from %s: %v", c.addr, err)
		c.sendError(errInvalidFormat)
		return true
	}

	switch event.Event {
	case EventJoinGroup:
		return c.handleJoin(event.GroupID)
	case EventSendMessage:
		return c.handleSend(event.Message)
	default:
		log.Printf("Ignoring unknown event %q from %s", event.Event, c.addr)
		return true
	}
}

// handleJoin re-verifies membership against the oracle and binds the client
// to the group. A failed check is fatal to the session: the client receives
// an access-denied frame and is closed rather than left idle. Joining a
// different group while already joined rebinds; the old binding is dropped.
func (c *Client) handleJoin(groupID string) bool {
	ctx, cancel := context.WithTimeout(c.hub.ctx, membershipTimeout)
	defer cancel()

	member, err := c.oracle.IsMember(ctx, c.identity, groupID)
	if err != nil {
		// Infrastructure failure, not a membership verdict. The client sees
		// the same denial, the log does not.
		log.Printf("Membership check failed for user %s in group %s: %v", c.identity, groupID, err)
		c.sendError(errAccessDenied)
		c.hub.removeClient(c)
		return false
	}
	if !member {
		log.Printf("Access denied: user %s is not in group %s", c.identity, groupID)
		c.sendError(errAccessDenied)
		c.hub.removeClient(c)
		return false
	}

	if !c.hub.bindClient(c, groupID) {
		return false
	}
	log.Printf("User %s joined group %s", c.identity, groupID)
	return true
}

// handleSend forwards an opaque payload to the client's bound group. Sending
// before joining is a recoverable error; the connection stays open.
func (c *Client) handleSend(payload json.RawMessage) bool {
	groupID := c.hub.boundGroup(c)
	if groupID == "" {
		c.sendError(errNotJoined)
		return true
	}

	delivered, err := json.Marshal(OutboundMessage{Sender: c.identity, Message: payload})
	if err != nil {
		log.Printf("Error normalizing message from %s: %v", c.addr, err)
		c.sendError(errInvalidFormat)
		return true
	}

	select {
	case c.hub.broadcast <- BroadcastMessage{GroupID: groupID, Sender: c, Payload: delivered}:
	case <-c.hub.ctx.Done():
		return false
	}
	return true
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
	}()

	c.conn.SetPongHandler(func(string) error {
		c.alive.Store(true)
		return nil
	})

	for {
		_, rawMessage, err := c.conn.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			break
		}

		if !c.checkRateLimit() {
			continue
		}

		if !c.handleEvent(rawMessage) {
			break
		}
	}
}

// writePump owns all writes on the connection: queued frames, liveness
// probes, and the final close frame. When the send channel is closed by the
// hub it drains any remaining frames first, so eviction and access-denied
// notices reach the client before the connection drops.
func (c *Client) writePump() {
	defer c.closeConnection()

	for {
		select {
		case message, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Error setting write deadline for %s: %v", c.addr, err)
				return
			}
			if !ok {
				c.writeCloseMessage()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error writing message to %s: %v", c.addr, err)
				}
				return
			}

		case <-c.ping:
			if !c.writePing() {
				return
			}

		case <-c.hub.ctx.Done():
			c.writeCloseMessage()
			return
		}
	}
}

// closeConnection safely closes the WebSocket connection with proper error handling.
func (c *Client) closeConnection() {
	if err := c.conn.Close(); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error closing connection in writePump: %v", err)
		}
	}
}

// writeCloseMessage sends a close frame to the client.
func (c *Client) writeCloseMessage() {
	if err := c.conn.WriteMessage(websocket.CloseMessage, []byte{}); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing close message to %s: %v", c.addr, err)
		}
	}
}

// writePing emits a liveness probe and reports whether the pump should keep
// running.
func (c *Client) writePing() bool {
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Error setting write deadline for ping to %s: %v", c.addr, err)
		return false
	}
	if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Error writing ping message to %s: %v", c.addr, err)
		}
		return false
	}
	return true
}
