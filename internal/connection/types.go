package connection

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no pong)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrHeartbeatTimeout = errors.New("stomp heart-beat timeout")
	ErrHandshakeTimeout = errors.New("stomp handshake timeout")
	ErrRateLimited      = errors.New("publish rate limited")
)

// ProtocolError is a STOMP ERROR frame sent by the server.
type ProtocolError struct {
	Message string // "message" header
	Body    string
}

func (e *ProtocolError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("stomp error: %s", e.Message)
	}
	return fmt.Sprintf("stomp error: %s: %s", e.Message, e.Body)
}

// State is the connection manager state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// TimestampedMessage wraps raw message data with receive timestamp.
type TimestampedMessage struct {
	Data       []byte    // Raw message bytes from WebSocket
	ReceivedAt time.Time // Local timestamp when ReadMessage() returned
}

// ClientConfig configures a WebSocket client.
type ClientConfig struct {
	URL              string        // WebSocket URL (e.g., ws://localhost:8080/websocket)
	Header           http.Header   // Extra handshake headers
	HandshakeTimeout time.Duration // WebSocket upgrade timeout
	PingInterval     time.Duration // How often to send WebSocket pings
	PingTimeout      time.Duration // Max time without ping/pong before considering connection stale
	WriteTimeout     time.Duration // Write deadline for sends
	BufferSize       int           // Message channel buffer size
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     30 * time.Second,
		PingTimeout:      60 * time.Second,
		WriteTimeout:     5 * time.Second,
		BufferSize:       1000,
	}
}

// Config configures the connection manager.
type Config struct {
	URL            string            // WebSocket endpoint
	Host           string            // STOMP host header; defaults to the URL host
	ConnectHeaders map[string]string // Extra CONNECT headers, e.g. Authorization
	SendHeaders    map[string]string // Extra headers on every SEND

	ReconnectDelay    time.Duration // Fixed delay between attempts
	HeartbeatOutgoing time.Duration // Wanted client heart-beat interval, 0 disables
	HeartbeatIncoming time.Duration // Wanted server heart-beat interval, 0 disables
	HeartbeatTimeout  time.Duration // Silence tolerated; 0 means 2x the negotiated incoming interval
	HandshakeTimeout  time.Duration // Time allowed for CONNECTED after the socket opens

	WriteTimeout time.Duration
	PingInterval time.Duration
	PingTimeout  time.Duration
	QueueSize    int // Initial event queue and read buffer size

	PublishRate  float64 // Publishes per second, 0 = unlimited
	PublishBurst int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	client := DefaultClientConfig()
	return Config{
		ReconnectDelay:    5 * time.Second,
		HeartbeatOutgoing: 4 * time.Second,
		HeartbeatIncoming: 4 * time.Second,
		HandshakeTimeout:  client.HandshakeTimeout,
		WriteTimeout:      client.WriteTimeout,
		PingInterval:      client.PingInterval,
		PingTimeout:       client.PingTimeout,
		QueueSize:         client.BufferSize,
	}
}

// clientConfig derives the WebSocket client settings.
func (c Config) clientConfig() ClientConfig {
	cc := DefaultClientConfig()
	cc.URL = c.URL
	if c.HandshakeTimeout > 0 {
		cc.HandshakeTimeout = c.HandshakeTimeout
	}
	if c.PingInterval > 0 {
		cc.PingInterval = c.PingInterval
	}
	if c.PingTimeout > 0 {
		cc.PingTimeout = c.PingTimeout
	}
	if c.WriteTimeout > 0 {
		cc.WriteTimeout = c.WriteTimeout
	}
	if c.QueueSize > 0 {
		cc.BufferSize = c.QueueSize
	}
	return cc
}

// heartbeatTimeout returns the silence allowed for a negotiated incoming
// interval. Zero disables the check.
func (c Config) heartbeatTimeout(negotiatedIn time.Duration) time.Duration {
	if negotiatedIn <= 0 {
		return 0
	}
	if c.HeartbeatTimeout > 0 {
		return c.HeartbeatTimeout
	}
	return 2 * negotiatedIn
}

// Stats provides statistics about the connection manager.
type Stats struct {
	State            State
	Subscriptions    int   // registry entries
	LiveHandles      int   // entries subscribed on the transport
	Attempts         int64 // dial attempts
	Connects         int64 // CONNECTED frames handled
	TransportErrors  int64
	ProtocolErrors   int64
	FrameErrors      int64 // websocket messages that were not valid STOMP
	PublishesSent    int64
	PublishesDropped int64
	QueueDepth       int
}
