// Package realtime bridges short-lived HTTP requests and long-lived socket
// connections: a process-local registry of reachable users, per-connection
// read/write pumps, and the dispatcher that pushes freshly persisted messages
// to connected recipients.
package realtime

import (
	"sync"

	"go.uber.org/zap"
)

// Delivery is the outcome of a realtime send attempt
type Delivery int

const (
	Delivered Delivery = iota
	NotConnected
	SendFailed
)

func (d Delivery) String() string {
	switch d {
	case Delivered:
		return "delivered"
	case NotConnected:
		return "not_connected"
	case SendFailed:
		return "send_failed"
	default:
		return "unknown"
	}
}

// Registry maps a user id to their single currently reachable connection.
// All operations are safe under arbitrary concurrent invocation. The lock is
// never held across a channel send or socket write.
type Registry struct {
	logger  *zap.SugaredLogger
	mu      sync.Mutex
	clients map[int64]*Client
}

func NewRegistry(logger *zap.SugaredLogger) *Registry {
	return &Registry{
		logger:  logger,
		clients: make(map[int64]*Client),
	}
}

// Register installs the client as the current connection for its user and
// returns the displaced client, if any. The registry does not close the
// displaced connection; that stays with its own goroutines, so the caller
// should Close it to release the socket promptly.
func (r *Registry) Register(c *Client) *Client {
	r.mu.Lock()
	prev := r.clients[c.userID]
	r.clients[c.userID] = c
	r.mu.Unlock()

	if prev != nil {
		r.logger.Debugf("superseding connection for user %d", c.userID)
	}

	return prev
}

// Unregister removes the mapping only if c is still the registered connection
// for its user. A late unregister from a superseded connection is a no-op.
func (r *Registry) Unregister(c *Client) {
	r.mu.Lock()
	if r.clients[c.userID] == c {
		delete(r.clients, c.userID)
	}
	r.mu.Unlock()
}

// SendTo attempts a non-blocking delivery to the user's current connection.
// A full or closing backlog means the connection is presumed dead: it is
// evicted and closed, and SendFailed is reported.
func (r *Registry) SendTo(userID int64, env Envelope) Delivery {
	r.mu.Lock()
	c := r.clients[userID]
	r.mu.Unlock()

	if c == nil {
		return NotConnected
	}

	if c.enqueue(env) {
		return Delivered
	}

	r.Unregister(c)
	c.Close()

	return SendFailed
}

// Connected reports whether the user currently has a registered connection
func (r *Registry) Connected(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.clients[userID] != nil
}

// Len returns the number of registered connections
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.clients)
}

// CloseAll closes every registered connection and empties the registry.
// Used during server shutdown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	clients := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		clients = append(clients, c)
	}
	r.clients = make(map[int64]*Client)
	r.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}

	r.logger.Debugf("closed %d realtime connections", len(clients))
}
