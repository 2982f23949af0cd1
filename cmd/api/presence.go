package main

import (
	"sync"

	"github.com/google/uuid"
)

// Conn is the hub's view of a live, authorized connection: a stable handle
// identity, the username bound at handshake, and a non-blocking push.
type Conn interface {
	ID() uuid.UUID
	Username() string
	// Push enqueues a frame for delivery and reports whether it was accepted.
	// It must never block; a slow consumer loses the frame.
	Push(frame ServerFrame) bool
}

// PresenceRegistry tracks which usernames currently have a live, announced
// connection. It keeps a bidirectional index so lookup by username and
// removal by connection handle are both O(1). All methods are safe for
// unsynchronized concurrent callers.
//
// At most one connection is registered per username: a re-registration
// replaces the previous mapping without closing the evicted connection.
type PresenceRegistry struct {
	mu     sync.RWMutex
	byUser map[string]Conn
	byConn map[uuid.UUID]string
}

// NewPresenceRegistry creates an empty registry.
func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		byUser: make(map[string]Conn),
		byConn: make(map[uuid.UUID]string),
	}
}

// Register upserts the mapping for username. If the username is already
// registered to a different connection, that mapping is replaced and the old
// connection's reverse entry dropped, so its later disconnect cleanup cannot
// remove the newer registration. Registering the same connection again is a
// no-op.
func (r *PresenceRegistry) Register(username string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.byUser[username]; ok {
		if old.ID() == c.ID() {
			return
		}
		delete(r.byConn, old.ID())
	}
	r.byUser[username] = c
	r.byConn[c.ID()] = username
}

// Lookup returns the live connection currently registered for username.
func (r *PresenceRegistry) Lookup(username string) (Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.byUser[username]
	return c, ok
}

// RemoveByConnection removes the entry belonging to the given connection
// handle, if any. If the username was re-registered to a newer connection
// before this one's disconnect handler ran, the newer mapping is untouched.
func (r *PresenceRegistry) RemoveByConnection(id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	username, ok := r.byConn[id]
	if !ok {
		return
	}
	delete(r.byConn, id)
	if cur, ok := r.byUser[username]; ok && cur.ID() == id {
		delete(r.byUser, username)
	}
}

// Usernames returns a snapshot of all currently registered usernames.
func (r *PresenceRegistry) Usernames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	usernames := make([]string, 0, len(r.byUser))
	for u := range r.byUser {
		usernames = append(usernames, u)
	}
	return usernames
}

// Len reports how many usernames are currently registered.
func (r *PresenceRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}
