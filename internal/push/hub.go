// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

// Package push delivers asynchronous discovery results to connected
// conversation sessions. Unlike a broadcast hub, delivery is targeted:
// each session has at most one live connection, and a message for a
// session without a connection is reported undeliverable rather than
// queued forever.
package push

import (
	"context"
	"sync"

	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/metrics"
	"github.com/tomtom215/eventscout/internal/models"
)

// Message types pushed to sessions.
const (
	MessageTypeMoreEvents = "more_events"
	MessageTypePing       = "ping"
	MessageTypePong       = "pong"
)

// Message is one push payload. The flat shape is the contract with
// conversational clients: they switch on Type and render Events with
// the Source attribution and the human-readable Message.
type Message struct {
	Type    string               `json:"type"`
	Events  []models.EventRecord `json:"events,omitempty"`
	Source  string               `json:"source,omitempty"`
	Message string               `json:"message,omitempty"`
}

// DefaultBufferSize is the per-session send queue depth.
const DefaultBufferSize = 64

// SessionConn is the hub's handle for one session's connection. The
// transport (websocket, SSE) drains C and calls the hub's Unregister
// when the connection dies.
type SessionConn struct {
	sessionID string
	ch        chan Message

	closeOnce sync.Once
}

// C is the receive side of the session's send queue. It is closed when
// the connection is unregistered or replaced.
func (c *SessionConn) C() <-chan Message {
	return c.ch
}

// SessionID returns the owning session.
func (c *SessionConn) SessionID() string {
	return c.sessionID
}

func (c *SessionConn) close() {
	c.closeOnce.Do(func() { close(c.ch) })
}

// Hub routes push messages to per-session connections.
type Hub struct {
	mu       sync.RWMutex
	sessions map[string]*SessionConn
	bufSize  int
	closed   bool
}

// NewHub creates a hub with the given per-session buffer size; zero or
// negative falls back to DefaultBufferSize.
func NewHub(bufferSize int) *Hub {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Hub{
		sessions: make(map[string]*SessionConn),
		bufSize:  bufferSize,
	}
}

// Register attaches a connection for the session. A session has one
// connection: registering again closes and replaces the previous one,
// which matches clients reconnecting after a network blip.
func (h *Hub) Register(sessionID string) *SessionConn {
	conn := &SessionConn{
		sessionID: sessionID,
		ch:        make(chan Message, h.bufSize),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.close()
		return conn
	}
	prev := h.sessions[sessionID]
	h.sessions[sessionID] = conn
	if prev != nil {
		// Close under the write lock: Push sends while holding the read
		// lock, so a close can never land mid-send.
		prev.close()
	}
	active := len(h.sessions)
	h.mu.Unlock()

	if prev != nil {
		logging.Debug().Str("session_id", sessionID).Msg("replaced existing push connection")
	}
	metrics.PushSessionsActive.Set(float64(active))
	return conn
}

// Unregister detaches conn. A stale handle (already replaced by a newer
// connection for the same session) is closed without touching the map.
func (h *Hub) Unregister(conn *SessionConn) {
	h.mu.Lock()
	if h.sessions[conn.sessionID] == conn {
		delete(h.sessions, conn.sessionID)
	}
	conn.close()
	active := len(h.sessions)
	h.mu.Unlock()

	metrics.PushSessionsActive.Set(float64(active))
}

// HasConnection reports whether the session currently has a live
// connection. Background jobs poll this to stop working for sessions
// that went away.
func (h *Hub) HasConnection(sessionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.sessions[sessionID]
	return ok
}

// Push enqueues msg for the session and reports whether it was
// accepted. A full queue drops the message: push results are advisory
// and a stalled client must not block a background job.
func (h *Hub) Push(sessionID string, msg Message) bool {
	// The send happens under the read lock. Channels are only closed
	// under the write lock, so the send cannot race a close; the send is
	// non-blocking, so holding the lock is bounded.
	h.mu.RLock()
	defer h.mu.RUnlock()

	conn, ok := h.sessions[sessionID]
	if !ok {
		metrics.PushMessages.WithLabelValues("no_connection").Inc()
		return false
	}

	select {
	case conn.ch <- msg:
		metrics.PushMessages.WithLabelValues("delivered").Inc()
		return true
	default:
		metrics.PushMessages.WithLabelValues("dropped").Inc()
		logging.Warn().
			Str("session_id", sessionID).
			Str("type", msg.Type).
			Msg("push queue full, dropping message")
		return false
	}
}

// CloseAll closes every connection and rejects future registrations.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	for _, conn := range h.sessions {
		conn.close()
	}
	h.sessions = make(map[string]*SessionConn)
	h.closed = true
	h.mu.Unlock()

	metrics.PushSessionsActive.Set(0)
}

// Serve blocks until ctx is canceled, then closes all connections. The
// hub itself is passive; this exists so it slots into the supervision
// tree like every other long-lived component.
func (h *Hub) Serve(ctx context.Context) error {
	<-ctx.Done()
	h.CloseAll()
	return ctx.Err()
}

// String identifies the hub in supervisor logs.
func (h *Hub) String() string {
	return "push-hub"
}
