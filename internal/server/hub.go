// Package server coordinates client registration, group binding, message
// broadcast, and connection cleanup for the relay via the Hub type.
package server

import (
	"context"
	"log"
	"sync"
	"time"
)

// Hub is the registry of live client connections and the group each one is
// currently bound to. Structural mutation (insert, remove, rebind) is guarded
// by the mutex; the run loop serializes broadcasts so a single sender's
// messages reach recipients in the order sent. Broadcast delivery itself
// happens against a snapshot, outside any extended critical section.
type Hub struct {
	clients    map[string]*Client            // connection handle -> client
	groups     map[string]map[string]*Client // group id -> handle -> client
	broadcast  chan BroadcastMessage
	register   chan *Client
	unregister chan *Client
	mutex      sync.RWMutex
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	metrics    *Metrics
}

// NewHub creates and initializes a new Hub. A nil metrics set is replaced
// with an unregistered one so callers never need to nil-check.
func NewHub(metrics *Metrics) *Hub {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
		broadcast:  make(chan BroadcastMessage),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		metrics:    metrics,
	}
}

// Run starts the hub's main event loop, handling client registration,
// unregistration, and message broadcasting. This method should be called in a
// separate goroutine as it runs until Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				log.Printf("Received nil client registration; skipping")
				continue
			}

			h.addClient(client)

			h.wg.Add(2)
			go func() {
				defer h.wg.Done()
				client.writePump()
			}()
			go func() {
				defer h.wg.Done()
				client.readPump()
			}()

		case client := <-h.unregister:
			h.removeClient(client)

		case broadcastMsg := <-h.broadcast:
			h.handleBroadcast(broadcastMsg)
		}
	}
}

// addClient inserts an authenticated client into the registry in the idle
// (ungrouped) state.
func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	client.alive.Store(true)
	h.clients[client.handle] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.metrics.ConnectionsActive.Inc()
	log.Printf("Client %s registered for user %s from %s. Total clients: %d",
		client.handle, client.identity, client.addr, clientCount)
}

// removeClient is the single termination path shared by client disconnect,
// protocol-fatal session errors, health reclamation, eviction, and failed
// deliveries. Removing an already-removed client is a no-op, which is what
// makes the concurrent callers safe against each other.
func (h *Hub) removeClient(client *Client) bool {
	if client == nil {
		return false
	}

	h.mutex.Lock()
	if _, ok := h.clients[client.handle]; !ok {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client.handle)
	h.detachFromGroupLocked(client)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock. The write pump drains any
	// queued frames, sends a close frame, and closes the transport.
	close(client.send)

	h.metrics.ConnectionsActive.Dec()
	log.Printf("Client %s unregistered for user %s. Total clients: %d",
		client.handle, client.identity, clientCount)
	return true
}

// bindClient binds a client to a group after a successful membership check,
// dropping any previous binding. It returns false when the client was
// terminated concurrently, in which case no binding is recorded.
func (h *Hub) bindClient(client *Client, groupID string) bool {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, ok := h.clients[client.handle]; !ok || client.closed {
		return false
	}

	h.detachFromGroupLocked(client)

	members := h.groups[groupID]
	if members == nil {
		members = make(map[string]*Client)
		h.groups[groupID] = members
	}
	members[client.handle] = client
	client.group = groupID

	h.metrics.GroupMembers.WithLabelValues(groupID).Inc()
	return true
}

// detachFromGroupLocked drops the client's group binding, if any. Callers
// must hold the mutex.
func (h *Hub) detachFromGroupLocked(client *Client) {
	if client.group == "" {
		return
	}

	if members, ok := h.groups[client.group]; ok {
		delete(members, client.handle)
		if len(members) == 0 {
			delete(h.groups, client.group)
		}
	}
	h.metrics.GroupMembers.WithLabelValues(client.group).Dec()
	client.group = ""
}

// boundGroup reports the group the client is currently bound to, or "" while
// idle.
func (h *Hub) boundGroup(client *Client) string {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return client.group
}

// ClientCount reports the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// GroupSize reports the number of connections currently bound to a group.
func (h *Hub) GroupSize(groupID string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.groups[groupID])
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Recovered from panic in safeSend: %v", r)
		}
	}()

	// Hold the lock during the entire send operation so removal cannot close
	// the channel mid-send.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	_, exists := h.clients[client.handle]
	if !exists || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

// handleBroadcast fans a message out to every client bound to the target
// group except the sender. Delivery is fire-and-forget per recipient: a
// failed recipient is removed without affecting the others or the sender.
func (h *Hub) handleBroadcast(broadcastMsg BroadcastMessage) {
	recipients := h.groupSnapshot(broadcastMsg.GroupID)
	h.metrics.BroadcastsTotal.Inc()

	var clientsToRemove []*Client
	for _, client := range recipients {
		if broadcastMsg.Sender != nil && client == broadcastMsg.Sender {
			continue
		}
		if h.safeSend(client, broadcastMsg.Payload) {
			h.metrics.DeliveriesTotal.Inc()
		} else {
			h.metrics.DeliveryFailuresTotal.Inc()
			clientsToRemove = append(clientsToRemove, client)
		}
	}

	for _, client := range clientsToRemove {
		if h.removeClient(client) {
			log.Printf("Client %s removed due to full send buffer", client.handle)
		}
	}
}

// groupSnapshot returns a consistent snapshot of the clients bound to a group.
func (h *Hub) groupSnapshot(groupID string) []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	members := h.groups[groupID]
	clients := make([]*Client, 0, len(members))
	for _, client := range members {
		clients = append(clients, client)
	}
	return clients
}

// clientSnapshot returns a consistent snapshot of every registered client.
func (h *Hub) clientSnapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for _, client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// Evict forcibly disconnects every connection bound to groupID for the given
// identity, sending each a removal notice before closing. It is invoked by
// the group-management subsystem after it durably commits a membership
// removal. Zero matches is a no-op; the call is safe concurrently with
// message traffic and the health monitor, and it returns the number of
// connections removed.
func (h *Hub) Evict(groupID, identity string) int {
	h.mutex.RLock()
	var matches []*Client
	for _, client := range h.groups[groupID] {
		if client.identity == identity {
			matches = append(matches, client)
		}
	}
	h.mutex.RUnlock()

	evicted := 0
	notice := marshalError(errRemoved)
	for _, client := range matches {
		h.safeSend(client, notice)
		if h.removeClient(client) {
			evicted++
			h.metrics.EvictionsTotal.Inc()
			log.Printf("Evicted user %s from group %s (client %s)",
				identity, groupID, client.handle)
		}
	}
	return evicted
}

// shutdownClients gracefully closes all active client connections.
func (h *Hub) shutdownClients() {
	log.Println("Shutting down all client connections...")

	clients := h.clientSnapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil {
				if !isExpectedCloseError(err) {
					log.Printf("Error closing client connection from %s: %v", client.addr, err)
				}
			}
		}
	}

	log.Printf("Closed %d client connections", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines
// to complete. It returns after all client connections are closed and
// goroutines have finished, or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	log.Println("Initiating hub shutdown...")

	h.cancel()

	// Wait for Run() to complete
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Hub shutdown completed successfully")
		return nil
	case <-time.After(timeout):
		log.Println("Hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
