package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"groupbot-gateway/internal/models"

	"github.com/gorilla/websocket"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial() error: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d clients", n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHub_NotifyTriggerFiltersByGroup(t *testing.T) {
	h := NewHub()
	go h.Run()
	defer h.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.ServeWs)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	all := dial(t, srv, "")
	onlyA := dial(t, srv, "?group_id=-1")
	waitForClients(t, h, 2)

	h.NotifyTrigger(models.TriggerLogEntry{GroupID: "-2", DefinitionName: "for b"})
	h.NotifyTrigger(models.TriggerLogEntry{GroupID: "-1", DefinitionName: "for a"})

	read := func(conn *websocket.Conn) WSEvent {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("ReadMessage() error: %v", err)
		}
		var ev WSEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			t.Fatal(err)
		}
		return ev
	}

	ev := read(all)
	if ev.Type != "trigger_log" {
		t.Errorf("type = %q", ev.Type)
	}
	if name := ev.Data.(map[string]interface{})["definition_name"]; name != "for b" {
		t.Errorf("first event for unfiltered client = %v", name)
	}
	if name := read(all).Data.(map[string]interface{})["definition_name"]; name != "for a" {
		t.Errorf("second event for unfiltered client = %v", name)
	}

	if name := read(onlyA).Data.(map[string]interface{})["definition_name"]; name != "for a" {
		t.Errorf("filtered client got %v, want only group -1", name)
	}
}
