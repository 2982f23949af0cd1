package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/praveshmishra-coder/WebChat-Docker/internal/data"
	"github.com/praveshmishra-coder/WebChat-Docker/internal/normalize"
)

// userDirectory is the account directory consumed at the boundary. The
// roster broadcast lists every known account, not just the ones currently
// online.
type userDirectory interface {
	AllUsernames(ctx context.Context) ([]string, error)
}

// messageLog is the durable message store consumed by the hub.
type messageLog interface {
	SaveMessage(ctx context.Context, fromUser, toUser, text string, sentAt time.Time) (*data.Message, error)
	GetMessageHistory(ctx context.Context, userA, userB string) ([]*data.Message, error)
	GetRecentChats(ctx context.Context, username string, limit int64) ([]*data.Conversation, error)
}

// errIdentityMissing marks a routed call on a connection whose verified
// identity carries no username. Such calls soft-fail: they no-op or return
// empty results instead of failing the connection.
var errIdentityMissing = errors.New("bound identity has no username")

// ConnectionHub orchestrates the routed operations of live connections. It
// holds references to the presence registry and the shared stores but owns
// neither lifecycle; both live as long as the server process.
type ConnectionHub struct {
	presence *PresenceRegistry
	users    userDirectory
	msgs     messageLog

	mu    sync.RWMutex
	conns map[uuid.UUID]Conn // every authorized live connection
}

// NewConnectionHub creates a hub wired to the given registry and stores.
func NewConnectionHub(presence *PresenceRegistry, users userDirectory, msgs messageLog) *ConnectionHub {
	return &ConnectionHub{
		presence: presence,
		users:    users,
		msgs:     msgs,
		conns:    make(map[uuid.UUID]Conn),
	}
}

// Attach records an authorized connection so broadcasts can reach it. The
// connection is not yet present in the registry; that happens on Announce.
func (h *ConnectionHub) Attach(c Conn) {
	h.mu.Lock()
	h.conns[c.ID()] = c
	h.mu.Unlock()
}

// Announce publishes the caller's presence and broadcasts the roster to
// every live connection. The roster is the full account directory minus the
// recipient's own username; it is recomputed on every call. Announce may be
// called any number of times on one connection.
func (h *ConnectionHub) Announce(ctx context.Context, c Conn) error {
	username := c.Username()
	if username == "" {
		return errIdentityMissing
	}

	h.presence.Register(username, c)

	all, err := h.users.AllUsernames(ctx)
	if err != nil {
		return fmt.Errorf("load account directory: %w", err)
	}

	for _, rc := range h.connections() {
		roster := lo.Filter(all, func(u string, _ int) bool { return u != rc.Username() })
		if !rc.Push(ServerFrame{Type: frameRosterUpdated, Usernames: roster}) {
			log.Printf("roster push to %s dropped", rc.Username())
		}
	}

	return nil
}

// Send persists a message and, independently, routes it to the recipient's
// live connection if one is registered. Both effects are attempted on every
// call: a persistence failure does not suppress the delivery attempt, and a
// routing miss is not an error. Only the persistence outcome decides the
// call's result.
func (h *ConnectionHub) Send(ctx context.Context, c Conn, toUser, text string) error {
	fromUser := c.Username()
	if fromUser == "" {
		return errIdentityMissing
	}
	toUser = normalize.Username(toUser)

	_, saveErr := h.msgs.SaveMessage(ctx, fromUser, toUser, text, time.Now())

	if rc, ok := h.presence.Lookup(toUser); ok {
		if !rc.Push(ServerFrame{Type: frameMessageReceived, From: fromUser, Text: text}) {
			log.Printf("delivery to %s dropped (slow consumer)", toUser)
		}
	}

	if saveErr != nil {
		return fmt.Errorf("persist message: %w", saveErr)
	}
	return nil
}

// History returns the full conversation between the caller and withUser,
// oldest first.
func (h *ConnectionHub) History(ctx context.Context, c Conn, withUser string) ([]*data.Message, error) {
	username := c.Username()
	if username == "" {
		return nil, errIdentityMissing
	}

	msgs, err := h.msgs.GetMessageHistory(ctx, username, withUser)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return msgs, nil
}

// RecentChats returns the caller's most recent conversation partners.
func (h *ConnectionHub) RecentChats(ctx context.Context, c Conn) ([]*data.Conversation, error) {
	username := c.Username()
	if username == "" {
		return nil, errIdentityMissing
	}

	chats, err := h.msgs.GetRecentChats(ctx, username, 50)
	if err != nil {
		return nil, fmt.Errorf("load recent chats: %w", err)
	}
	return chats, nil
}

// Disconnect detaches a connection and removes its presence entry, keyed by
// the connection handle since that is the only fact known at disconnect
// time. Safe to call for connections that never announced; callers invoke it
// exactly once per connection.
func (h *ConnectionHub) Disconnect(c Conn) {
	h.mu.Lock()
	delete(h.conns, c.ID())
	h.mu.Unlock()

	h.presence.RemoveByConnection(c.ID())
}

// connections returns a snapshot of all live connections so pushes happen
// outside the hub lock.
func (h *ConnectionHub) connections() []Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns := make([]Conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	return conns
}
