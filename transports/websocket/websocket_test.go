package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"reportvoice/core"
	"reportvoice/events/ingest"
	"reportvoice/protocol"
)

func dial(t *testing.T, hub *EventHub, sessionID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSession(r.Context(), w, r, sessionID)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (protocol.MessageType, []byte) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	msgType, raw, err := protocol.Unmarshal(data)
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return msgType, raw
}

func waitForSubscribers(t *testing.T, hub *EventHub, sessionID string, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Subscribers(sessionID) != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers = %d, want %d", hub.Subscribers(sessionID), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestEventHub_DeliversSessionEvents(t *testing.T) {
	hub := NewEventHub(nil, nil)
	conn := dial(t, hub, "s1")

	if msgType, _ := readEnvelope(t, conn); msgType != protocol.MsgHello {
		t.Fatalf("first message = %s", msgType)
	}
	waitForSubscribers(t, hub, "s1", 1)

	core.Emit(context.Background(), hub, "other", &ingest.IngestStoredEvent{}, "test")
	core.Emit(context.Background(), hub, "s1", &ingest.IngestExtractedEvent{Characters: 42}, "test")

	msgType, raw := readEnvelope(t, conn)
	if msgType != protocol.MsgEvent {
		t.Fatalf("type = %s", msgType)
	}
	payload, err := protocol.UnmarshalPayload[protocol.EventPayload](raw)
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.SessionID != "s1" || payload.EventID != "ingest.extracted" {
		t.Errorf("payload = %+v", payload)
	}
}

func TestEventHub_UnsubscribesOnDisconnect(t *testing.T) {
	hub := NewEventHub(nil, nil)
	conn := dial(t, hub, "s2")
	readEnvelope(t, conn)
	waitForSubscribers(t, hub, "s2", 1)

	conn.Close()
	waitForSubscribers(t, hub, "s2", 0)
}

func TestEventHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewEventHub(nil, nil)
	hub.Publish(core.NewEventPacket(&ingest.IngestStoredEvent{}, "nobody", "test"))
	hub.Publish(nil)
}

func TestEventHub_RejectsForeignOrigin(t *testing.T) {
	hub := NewEventHub([]string{"https://allowed.example"}, nil)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeSession(r.Context(), w, r, "s3")
	}))
	defer srv.Close()

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), header)
	if err == nil {
		t.Fatal("expected handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v", resp)
	}
}
