package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHub_BroadcastsToClients(t *testing.T) {
	hub := NewHub()
	upgrader := websocket.Upgrader{}
	registered := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Add(conn)
		close(registered)
		defer func() {
			hub.Remove(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	select {
	case <-registered:
	case <-time.After(2 * time.Second):
		t.Fatal("server never registered the client")
	}
	if hub.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", hub.Count())
	}

	hub.Handle(context.Background(), Event{
		Type: LicenseIssued,
		Data: map[string]any{"license_key": "ABCDEFGH12345678", "plan": "monthly"},
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var got Event
	if err := json.Unmarshal(msg, &got); err != nil {
		t.Fatalf("bad payload %s: %v", msg, err)
	}
	if got.Type != LicenseIssued || got.Data["plan"] != "monthly" {
		t.Errorf("unexpected event %+v", got)
	}
	if got.Data["license_key"] != "****5678" {
		t.Errorf("license key not redacted: %v", got.Data["license_key"])
	}
}

func TestHub_HandleWithoutClients(t *testing.T) {
	hub := NewHub()
	hub.Handle(context.Background(), Event{Type: LicenseExpired})
	if hub.Count() != 0 {
		t.Error("expected no clients")
	}
}

func TestHub_SlowClientDoesNotBlock(t *testing.T) {
	hub := NewHub()
	// No writer drains this queue, like a client stuck on a dead connection.
	stalled := &client{id: "stalled", send: make(chan []byte, 1)}
	hub.clients[&websocket.Conn{}] = stalled

	done := make(chan struct{})
	go func() {
		for i := 0; i < 3; i++ {
			hub.Handle(context.Background(), Event{Type: LicenseActivated})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Handle blocked on a client that is not reading")
	}
	if got := len(stalled.send); got != 1 {
		t.Errorf("queued %d events, want 1 (the rest dropped)", got)
	}
}
