package protocol

import (
	"encoding/json"
	"time"
)

// MessageType enumerates the WebSocket message types of the event stream.
type MessageType string

const (
	// Server -> client
	MsgHello     MessageType = "hello"
	MsgEvent     MessageType = "event"
	MsgHeartbeat MessageType = "heartbeat"
	MsgError     MessageType = "error"
)

// Envelope is the outer JSON wrapper for all WebSocket messages.
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// --- WebSocket payloads ---

// HelloPayload is sent once after a client subscribes to a session.
type HelloPayload struct {
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HeartbeatPayload keeps idle subscriptions alive through proxies.
type HeartbeatPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// EventPayload carries a pipeline stage event.
type EventPayload struct {
	SessionID string          `json:"session_id,omitempty"`
	EventID   string          `json:"event_id"`
	Uid       string          `json:"uid"`
	Relayer   string          `json:"relayer,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// ErrorPayload reports a stream-level problem before the server closes the connection.
type ErrorPayload struct {
	Message string `json:"message"`
}

// --- HTTP bodies ---

// AnalyzeResponse is returned by the report upload endpoint.
type AnalyzeResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// AskResponse is returned by the question endpoint. AudioURL is empty when no
// reply audio was produced.
type AskResponse struct {
	Stage      string `json:"stage"`
	Kind       string `json:"kind,omitempty"`
	Reply      string `json:"reply"`
	Transcript string `json:"transcript,omitempty"`
	Language   string `json:"language,omitempty"`
	AudioURL   string `json:"audio_url,omitempty"`
}

// ErrorResponse is returned for malformed HTTP requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
