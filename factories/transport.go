package factories

import (
	"reportvoice/core"
	"reportvoice/server"
	"reportvoice/transports/websocket"
)

// EventStreamConfig enables the per-session WebSocket event stream.
type EventStreamConfig struct {
	// AllowedOrigins restricts browser origins; empty accepts any.
	AllowedOrigins []string `json:"allowed_origins,omitempty" yaml:"allowed_origins,omitempty"`
}

// TransportFactoryConfig configures the HTTP surface and the optional event stream.
type TransportFactoryConfig struct {
	HTTP   server.ServerConfig `json:"http" yaml:"http"`
	Events *EventStreamConfig  `json:"events,omitempty" yaml:"events,omitempty"`
}

// DefaultTransportFactoryConfig returns the HTTP defaults with the event stream enabled.
func DefaultTransportFactoryConfig() TransportFactoryConfig {
	return TransportFactoryConfig{
		HTTP:   server.DefaultConfig(),
		Events: &EventStreamConfig{},
	}
}

// BuildEventHub returns the WebSocket hub, or nil when the event stream is disabled.
func (c TransportFactoryConfig) BuildEventHub(logger *core.Logger) *websocket.EventHub {
	if c.Events == nil {
		return nil
	}
	return websocket.NewEventHub(c.Events.AllowedOrigins, logger)
}
