// Package server exposes HTTP handlers: the authenticated WebSocket upgrade,
// the eviction endpoint consumed by the group-management subsystem, and the
// health check.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/collablearn/relay/internal/auth"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

var errNoCredential = errors.New("missing bearer credential")

// bearerFromHandshake extracts the bearer token smuggled through the
// Sec-WebSocket-Protocol header. Browsers cannot set an Authorization header
// on a WebSocket handshake, so clients offer the credential as a negotiated
// subprotocol instead: either the two tokens "Bearer, <token>" or the single
// "Bearer <token>" form. The returned echo value is the subprotocol to select
// in the upgrade response; RFC 6455 requires the server to pick one of the
// offered values or the browser aborts the connection.
func bearerFromHandshake(r *http.Request) (token, echo string, err error) {
	protocols := websocket.Subprotocols(r)

	switch {
	case len(protocols) >= 2 && protocols[0] == "Bearer" && protocols[1] != "":
		return protocols[1], "Bearer", nil
	case len(protocols) == 1 && strings.HasPrefix(protocols[0], "Bearer "):
		token = strings.TrimSpace(strings.TrimPrefix(protocols[0], "Bearer "))
		if token == "" {
			return "", "", errNoCredential
		}
		return token, protocols[0], nil
	default:
		return "", "", errNoCredential
	}
}

// NewWebSocketHandler returns the handler for the WebSocket endpoint. The
// bearer credential is verified before the upgrade completes; a connection
// without a valid credential is rejected with 401 and never reaches the hub.
func NewWebSocketHandler(hub *Hub, verifier auth.Verifier, oracle MembershipOracle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, echo, err := bearerFromHandshake(r)
		if err != nil {
			hub.metrics.AuthFailuresTotal.Inc()
			log.Printf("WebSocket authentication failed for %s: no valid credential provided", r.RemoteAddr)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		identity, err := verifier.Verify(token)
		if err != nil {
			hub.metrics.AuthFailuresTotal.Inc()
			log.Printf("WebSocket authentication failed for %s: %v", r.RemoteAddr, err)
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		responseHeader := http.Header{"Sec-WebSocket-Protocol": {echo}}
		conn, err := upgrader.Upgrade(w, r, responseHeader)
		if err != nil {
			log.Printf("WebSocket upgrade failed: %v", err)
			return
		}

		client := NewClient(conn, hub, oracle, identity, r.RemoteAddr)
		log.Printf("WebSocket authenticated: user %s from %s", identity, r.RemoteAddr)

		// Register the client with the hub; the hub launches the pump goroutines.
		select {
		case hub.register <- client:
		case <-hub.ctx.Done():
			_ = conn.Close()
		}
	}
}

// NewEvictionHandler returns the handler for the internal eviction endpoint.
// The group-management subsystem calls it synchronously after committing a
// membership removal; finding no matching connection is not an error.
func NewEvictionHandler(hub *Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		groupID := chi.URLParam(r, "groupID")
		memberID := chi.URLParam(r, "memberID")
		if groupID == "" || memberID == "" {
			http.Error(w, "groupID and memberID are required", http.StatusBadRequest)
			return
		}

		evicted := hub.Evict(groupID, memberID)

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]int{"evicted": evicted}); err != nil {
			log.Printf("Error writing eviction response: %v", err)
		}
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
// It responds with a plain text message indicating the relay is running.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Relay server is running!")
}
