package main

import (
	"context"
	"errors"
	"html"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a client.
	writeWait = 10 * time.Second

	// pongWait is how long a connection may stay silent before it is
	// considered dead; pingPeriod must be shorter.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	// maxFrameSize bounds inbound frames; routed calls are small.
	maxFrameSize = 4096

	// sendBuffer is the per-connection push queue. A full queue drops the
	// push rather than block the sender.
	sendBuffer = 256
)

// wsClient is one live websocket connection with its bound identity. The
// identity is fixed at handshake and never changes for the connection's
// lifetime. Routed calls are dispatched sequentially by the read pump, so
// one connection's calls are processed in the order received.
type wsClient struct {
	id       uuid.UUID
	username string
	conn     *websocket.Conn
	hub      *ConnectionHub
	ctx      context.Context

	send      chan ServerFrame
	done      chan struct{}
	closeOnce sync.Once
}

func newWSClient(ctx context.Context, conn *websocket.Conn, hub *ConnectionHub, username string) *wsClient {
	return &wsClient{
		id:       uuid.New(),
		username: username,
		conn:     conn,
		hub:      hub,
		ctx:      ctx,
		send:     make(chan ServerFrame, sendBuffer),
		done:     make(chan struct{}),
	}
}

// ID returns the connection handle.
func (c *wsClient) ID() uuid.UUID { return c.id }

// Username returns the username bound at handshake; empty when the verified
// identity carried no username.
func (c *wsClient) Username() string { return c.username }

// Push enqueues a frame for the write pump without blocking. It reports
// false when the connection is closing or the buffer is full; the frame is
// then dropped (delivery is best-effort).
func (c *wsClient) Push(f ServerFrame) bool {
	select {
	case <-c.done:
		return false
	case c.send <- f:
		return true
	default:
		return false
	}
}

func (c *wsClient) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// readPump reads and dispatches routed calls until the connection drops,
// then runs disconnect cleanup exactly once.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.close()
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame ClientFrame
		if err := c.conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("websocket read error for %s: %v", c.username, err)
			}
			return
		}
		c.dispatch(frame)
	}
}

// dispatch executes one routed call. Store failures come back to the caller
// as an error frame; a missing bound username soft-fails the call instead.
func (c *wsClient) dispatch(frame ClientFrame) {
	switch frame.Type {
	case frameAnnounce:
		if err := c.hub.Announce(c.ctx, c); err != nil && !errors.Is(err, errIdentityMissing) {
			c.pushError(codeAnnounceFailed, err)
		}

	case frameSend:
		// escape markup before the text is persisted or routed on
		if err := c.hub.Send(c.ctx, c, frame.To, html.EscapeString(frame.Text)); err != nil && !errors.Is(err, errIdentityMissing) {
			c.pushError(codeSendFailed, err)
		}

	case frameHistory:
		msgs, err := c.hub.History(c.ctx, c, frame.With)
		if err != nil && !errors.Is(err, errIdentityMissing) {
			c.pushError(codeHistoryFailed, err)
			return
		}
		// a soft-failed call answers with an empty history
		c.Push(ServerFrame{Type: frameHistory, With: frame.With, Messages: msgs})

	case frameChats:
		chats, err := c.hub.RecentChats(c.ctx, c)
		if err != nil && !errors.Is(err, errIdentityMissing) {
			c.pushError(codeChatsFailed, err)
			return
		}
		c.Push(ServerFrame{Type: frameChats, Conversations: chats})

	default:
		c.Push(ServerFrame{Type: frameError, Code: codeBadFrame, Message: "unknown frame type: " + frame.Type})
	}
}

func (c *wsClient) pushError(code string, err error) {
	c.Push(ServerFrame{Type: frameError, Code: code, Message: err.Error()})
}

// writePump serializes all writes to the connection: queued pushes and
// keepalive pings. It owns the connection teardown.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case f := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
