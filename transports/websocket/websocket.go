package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"reportvoice/core"
	"reportvoice/protocol"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	heartbeatInterval = 30 * time.Second
	subscriberBuffer  = 64
)

// EventHub fans stage events out to WebSocket subscribers of the same session.
// It implements core.EventSink; Publish never blocks and drops events for
// subscribers whose buffer is full.
type EventHub struct {
	mu       sync.RWMutex
	sessions map[string]map[*subscriber]struct{}
	upgrader websocket.Upgrader
	logger   *core.Logger
}

type subscriber struct {
	send chan []byte
	once sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() { close(s.send) })
}

// NewEventHub creates an empty hub. allowedOrigins empty accepts any origin.
func NewEventHub(allowedOrigins []string, logger *core.Logger) *EventHub {
	if logger == nil {
		logger = core.GetLogger()
	}
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		origins[o] = true
	}
	return &EventHub{
		sessions: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if len(origins) == 0 {
					return true
				}
				return origins[r.Header.Get("Origin")]
			},
		},
		logger: logger.With(map[string]interface{}{"component": "event_hub"}),
	}
}

// Publish implements core.EventSink.
func (h *EventHub) Publish(packet *core.EventPacket) {
	if packet == nil || packet.SessionID == "" {
		return
	}
	h.mu.RLock()
	subs := h.sessions[packet.SessionID]
	if len(subs) == 0 {
		h.mu.RUnlock()
		return
	}
	data, err := protocol.MarshalEvent(packet)
	if err != nil {
		h.mu.RUnlock()
		h.logger.Warn("dropping unencodable event", "error", err)
		return
	}
	for sub := range subs {
		select {
		case sub.send <- data:
		default:
			h.logger.Debug("subscriber buffer full, event dropped", "session_id", packet.SessionID, "event", packet.Event.GetId())
		}
	}
	h.mu.RUnlock()
}

// Subscribers returns the number of open subscriptions for sessionID.
func (h *EventHub) Subscribers(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions[sessionID])
}

func (h *EventHub) subscribe(sessionID string) *subscriber {
	sub := &subscriber{send: make(chan []byte, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sessions[sessionID] == nil {
		h.sessions[sessionID] = make(map[*subscriber]struct{})
	}
	h.sessions[sessionID][sub] = struct{}{}
	return sub
}

func (h *EventHub) unsubscribe(sessionID string, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.sessions[sessionID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.sessions, sessionID)
		}
	}
	sub.close()
}

// Close drops every subscription; their connections are closed by their writers.
func (h *EventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, subs := range h.sessions {
		for sub := range subs {
			sub.close()
		}
		delete(h.sessions, id)
	}
}

// ServeSession upgrades the request and streams the events of sessionID until
// the client disconnects or ctx is done.
func (h *EventHub) ServeSession(ctx context.Context, w http.ResponseWriter, r *http.Request, sessionID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := h.subscribe(sessionID)
	defer h.unsubscribe(sessionID, sub)
	h.logger.Info("event stream opened", "session_id", sessionID, "remote", conn.RemoteAddr().String())

	readDone := make(chan struct{})
	go h.readLoop(conn, readDone)

	hello, err := protocol.Marshal(protocol.MsgHello, protocol.HelloPayload{SessionID: sessionID, Timestamp: time.Now().UTC()})
	if err == nil {
		if err := writeMessage(conn, hello); err != nil {
			return
		}
	}

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case data, ok := <-sub.send:
			if !ok {
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := writeMessage(conn, data); err != nil {
				h.logger.Debug("event stream write failed", "session_id", sessionID, "error", err)
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			beat, _ := protocol.Marshal(protocol.MsgHeartbeat, protocol.HeartbeatPayload{Timestamp: time.Now().UTC()})
			if err := writeMessage(conn, beat); err != nil {
				return
			}
		case <-readDone:
			h.logger.Info("event stream closed", "session_id", sessionID)
			return
		case <-ctx.Done():
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
			return
		}
	}
}

// readLoop discards client messages and reports disconnects.
func (h *EventHub) readLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				h.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}
	}
}

func writeMessage(conn *websocket.Conn, data []byte) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
