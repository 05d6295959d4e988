package server

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// chatRequest is an inbound chat event waiting for fan-out. The sender is
// carried so the broadcast can be tagged with the sender's authenticated
// username.
type chatRequest struct {
	sender  *Client
	message string
}

// Hub owns the set of live connections and the presence ledger. Every
// lifecycle transition (register, deregister) and every broadcast runs
// through the hub's single event loop, so "mutate presence, compute count,
// broadcast" is observed by all connections as one atomic step. The mutex
// additionally guards snapshot reads taken by concurrent senders.
type Hub struct {
	clients  map[*Client]bool
	presence *Ledger

	broadcast  chan chatRequest
	register   chan *Client
	unregister chan *Client

	mutex  sync.RWMutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub creates a hub ready to manage connections.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]bool),
		presence:   NewLedger(),
		broadcast:  make(chan chatRequest),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
}

// Register hands an authorized client to the hub for registration. The hub
// adds it to the live set, counts it in presence, announces the join, and
// starts its pumps.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// CurrentUsers returns the number of live connections.
func (h *Hub) CurrentUsers() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.presence.Count()
}

// Run starts the hub's event loop. It should be called in its own goroutine;
// it returns only after Shutdown.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				slog.Warn("received nil client registration; skipping")
				continue
			}
			h.addClient(client)

		case client := <-h.unregister:
			h.removeClient(client)

		case req := <-h.broadcast:
			h.handleChat(req)
		}
	}
}

// addClient performs the Pending→Live transition: it registers the
// connection, increments presence, starts the pumps, and announces the join
// to every live connection including the new one.
func (h *Hub) addClient(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client] = true
	count := h.presence.Increment(client.id)
	h.mutex.Unlock()

	slog.Info("user connected", "username", client.user.Username, "current_users", count)

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()

	h.announce(client.user.Username, count, true)
}

// removeClient performs the Live→Closed transition: it deregisters the
// connection, decrements presence, and announces the leave to the remaining
// connections. Closed is terminal; a second call for the same client is a
// no-op, since abrupt transport failure can race with an explicit close.
func (h *Hub) removeClient(client *Client) {
	h.mutex.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mutex.Unlock()
		return
	}
	delete(h.clients, client)
	client.closed = true
	count := h.presence.Decrement(client.id)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	slog.Info("user disconnected", "username", client.user.Username, "current_users", count)

	h.announce(client.user.Username, count, false)
}

// handleChat tags a chat event with the sender's authenticated username and
// fans it out to every live connection, the sender included. A marshal
// failure is local to this message.
func (h *Hub) handleChat(req chatRequest) {
	frame, err := encodeEvent(EventChat, ChatEvent{
		Username: req.sender.user.Username,
		Message:  req.message,
	})
	if err != nil {
		slog.Warn("failed to encode chat event", "username", req.sender.user.Username, "err", err)
		return
	}
	h.fanout(frame)
}

// announce broadcasts a presence change: the new user count followed by the
// join/leave event.
func (h *Hub) announce(username string, count int, connected bool) {
	countFrame, err := encodeEvent(EventUserCount, count)
	if err != nil {
		slog.Warn("failed to encode user count event", "err", err)
		return
	}
	userFrame, err := encodeEvent(EventUser, UserEvent{
		Username:     username,
		CurrentUsers: count,
		Connected:    connected,
	})
	if err != nil {
		slog.Warn("failed to encode user event", "err", err)
		return
	}
	h.fanout(countFrame, userFrame)
}

// fanout delivers frames to the snapshot of live connections taken at call
// time. Delivery is best-effort, at most once: a client whose send buffer is
// full is dropped through the normal disconnect path, which announces its
// leave like any other.
func (h *Hub) fanout(frames ...[]byte) {
	clients := h.snapshot()

	var failed []*Client
	for _, client := range clients {
		for _, frame := range frames {
			if !h.safeSend(client, frame) {
				failed = append(failed, client)
				break
			}
		}
	}

	for _, client := range failed {
		slog.Warn("dropping client with full send buffer", "username", client.user.Username)
		h.removeClient(client)
	}
}

// snapshot returns the live connections at the moment of the call.
func (h *Hub) snapshot() []*Client {
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	return clients
}

// safeSend enqueues a frame on a client's send channel. The lock is held for
// the whole operation so a connection mid-teardown is never written to.
func (h *Hub) safeSend(client *Client, frame []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if _, exists := h.clients[client]; !exists || client.closed {
		return false
	}

	select {
	case client.send <- frame:
		return true
	default:
		return false
	}
}

// shutdownClients closes every live connection. Each close runs the normal
// disconnect path in that client's read pump, best-effort.
func (h *Hub) shutdownClients() {
	slog.Info("closing all client connections")

	clients := h.snapshot()
	for _, client := range clients {
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				slog.Warn("error closing client connection", "username", client.user.Username, "err", err)
			}
		}
	}

	slog.Info("closed client connections", "count", len(clients))
}

// Shutdown stops the event loop, closes all connections, and waits for the
// pump goroutines to finish or the timeout to pass.
func (h *Hub) Shutdown(timeout time.Duration) error {
	slog.Info("initiating hub shutdown")

	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		slog.Info("hub shutdown completed")
		return nil
	case <-time.After(timeout):
		slog.Warn("hub shutdown timed out; some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
