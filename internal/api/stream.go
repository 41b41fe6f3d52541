// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package api

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/eventscout/internal/logging"
	"github.com/tomtom215/eventscout/internal/push"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS middleware; the
	// upgrader does not need a second gate.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// WebSocket handles GET /ws/{sessionID}: upgrades the connection and
// attaches it to the session's push queue.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		NewResponseWriter(w, r).BadRequest("session ID required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}

	logging.Info().Str("session_id", sessionID).Msg("push channel connected")
	push.NewClient(h.hub, conn, sessionID).Start()
}

// Stream handles GET /api/v1/stream/{sessionID}: the same push feed as
// the websocket, as Server-Sent Events for clients that cannot hold a
// websocket open.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	if sessionID == "" {
		NewResponseWriter(w, r).BadRequest("session ID required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		NewResponseWriter(w, r).InternalError("streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	conn := h.hub.Register(sessionID)
	defer h.hub.Unregister(conn)

	logging.Info().Str("session_id", sessionID).Msg("push stream connected")

	for {
		select {
		case <-r.Context().Done():
			return
		case msg, open := <-conn.C():
			if !open {
				// Hub shut down or a newer connection replaced us.
				return
			}
			data, err := json.Marshal(msg)
			if err != nil {
				logging.Error().Err(err).Msg("failed to marshal stream message")
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", msg.Type, data); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
