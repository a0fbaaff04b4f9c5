// Package server defines the wire-level message shapes exchanged with relay
// clients and shared helpers reused across client and hub logic.
package server

import (
	"encoding/json"
	"strings"
)

// Client-originated event names.
const (
	EventJoinGroup   = "joinGroup"
	EventSendMessage = "sendMessage"
)

// Wire error texts. The removal notice is part of the contract with the
// group-management subsystem's frontend and must not be reworded.
const (
	errAccessDenied  = "Access denied: Not a group member"
	errNotJoined     = "You must join a group first"
	errInvalidFormat = "Invalid message format"
	errRemoved       = "You have been removed from the group"
)

// InboundEvent is a client request frame. Message is opaque to the relay: it
// carries chat text, call-signaling payloads, or whiteboard drawing events
// indistinguishably.
type InboundEvent struct {
	Event   string          `json:"event"`
	GroupID string          `json:"groupId,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`
}

// OutboundMessage is a broadcast frame delivered to group members, tagging
// the opaque payload with the sender's identity.
type OutboundMessage struct {
	Sender  string          `json:"sender"`
	Message json.RawMessage `json:"message"`
}

// WireError is the structured error frame sent for recoverable protocol
// faults and as the final notice before a forced close.
type WireError struct {
	Error string `json:"error"`
}

// BroadcastMessage encapsulates a message being fanned out by the hub,
// addressed to a group and excluding the originating client from delivery.
type BroadcastMessage struct {
	GroupID string
	Sender  *Client
	Payload []byte
}

func marshalError(text string) []byte {
	payload, err := json.Marshal(WireError{Error: text})
	if err != nil {
		return []byte(`{"error":"internal error"}`)
	}
	return payload
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
