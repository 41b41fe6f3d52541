// Eventscout - Conversational Event Discovery Backend
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventscout

package push

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/eventscout/internal/models"
)

func TestPushDeliversToRegisteredSession(t *testing.T) {
	hub := NewHub(4)
	conn := hub.Register("sess-1")

	msg := Message{
		Type:    MessageTypeMoreEvents,
		Events:  []models.EventRecord{{Source: "exa", ExternalID: "1", Title: "Found"}},
		Source:  "exa",
		Message: "Found 1 more event",
	}
	if !hub.Push("sess-1", msg) {
		t.Fatal("Push to registered session failed")
	}

	select {
	case got := <-conn.C():
		if got.Type != MessageTypeMoreEvents || len(got.Events) != 1 {
			t.Errorf("unexpected message: %+v", got)
		}
	default:
		t.Fatal("no message queued")
	}
}

func TestPushWithoutConnection(t *testing.T) {
	hub := NewHub(4)
	if hub.Push("nobody", Message{Type: MessageTypeMoreEvents}) {
		t.Error("Push to unknown session must report false")
	}
	if hub.HasConnection("nobody") {
		t.Error("HasConnection must be false for unknown session")
	}
}

func TestPushDropsWhenQueueFull(t *testing.T) {
	hub := NewHub(1)
	hub.Register("sess-1")

	if !hub.Push("sess-1", Message{Type: MessageTypePing}) {
		t.Fatal("first push should fill the queue")
	}
	if hub.Push("sess-1", Message{Type: MessageTypePing}) {
		t.Error("push to full queue must drop and report false")
	}
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	hub := NewHub(4)
	first := hub.Register("sess-1")
	second := hub.Register("sess-1")

	// The old channel is closed so its pump exits.
	select {
	case _, ok := <-first.C():
		if ok {
			t.Error("expected closed channel, got message")
		}
	case <-time.After(time.Second):
		t.Fatal("replaced connection channel not closed")
	}

	if !hub.Push("sess-1", Message{Type: MessageTypePing}) {
		t.Fatal("push after replacement failed")
	}
	select {
	case <-second.C():
	default:
		t.Error("message did not reach the replacement connection")
	}
}

func TestUnregisterStaleHandleKeepsCurrent(t *testing.T) {
	hub := NewHub(4)
	first := hub.Register("sess-1")
	_ = hub.Register("sess-1")

	hub.Unregister(first)
	if !hub.HasConnection("sess-1") {
		t.Error("unregistering a stale handle must not drop the current connection")
	}
}

func TestCloseAllClosesEverything(t *testing.T) {
	hub := NewHub(4)
	a := hub.Register("sess-a")
	b := hub.Register("sess-b")

	hub.CloseAll()

	for name, conn := range map[string]*SessionConn{"a": a, "b": b} {
		select {
		case _, ok := <-conn.C():
			if ok {
				t.Errorf("session %s: expected close, got message", name)
			}
		case <-time.After(time.Second):
			t.Errorf("session %s: channel not closed", name)
		}
	}

	if hub.HasConnection("sess-a") || hub.HasConnection("sess-b") {
		t.Error("connections survive CloseAll")
	}

	// Registrations after shutdown come back pre-closed.
	late := hub.Register("sess-late")
	if _, ok := <-late.C(); ok {
		t.Error("post-shutdown registration should be closed")
	}
}

// A push racing a disconnect must never send on the closed channel: the
// close happens under the write lock and the send under the read lock,
// so the two cannot overlap. A panic here kills the discovery manager's
// poll goroutine, so this interleaving gets hammered explicitly.
func TestPushRacesDisconnectSafely(t *testing.T) {
	hub := NewHub(1)

	for i := 0; i < 2000; i++ {
		conn := hub.Register("sess-1")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			hub.Push("sess-1", Message{Type: MessageTypePing})
		}()
		go func() {
			defer wg.Done()
			hub.Unregister(conn)
		}()
		wg.Wait()
	}
}

// Same race, but the close comes from a reconnect replacing the
// previous connection instead of an unregister.
func TestPushRacesReplacementSafely(t *testing.T) {
	hub := NewHub(1)
	hub.Register("sess-1")

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			hub.Push("sess-1", Message{Type: MessageTypePing})
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			conn := hub.Register("sess-1")
			go func() {
				for range conn.C() {
				}
			}()
		}
	}()
	wg.Wait()
}

func TestServeClosesOnContextCancel(t *testing.T) {
	hub := NewHub(4)
	conn := hub.Register("sess-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != context.Canceled {
			t.Errorf("Serve returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	select {
	case _, ok := <-conn.C():
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Error("connection not closed on shutdown")
	}
}
