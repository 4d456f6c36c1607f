package config

import (
	"time"

	"github.com/rickgao/coin-stream/internal/aggregate"
	"github.com/rickgao/coin-stream/internal/topic"
)

// Default values for optional configuration fields.
const (
	DefaultURL               = "ws://localhost:8080/websocket"
	DefaultReconnectDelay    = 5 * time.Second
	DefaultHeartbeatOutgoing = 4 * time.Second
	DefaultHeartbeatIncoming = 4 * time.Second
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultWriteTimeout      = 5 * time.Second
	DefaultPingInterval      = 30 * time.Second
	DefaultPingTimeout       = 60 * time.Second
	DefaultQueueSize         = 1000
	DefaultPublishRate       = 5.0
	DefaultPublishBurst      = 10
	DefaultLogLevel          = "info"
	DefaultLogFormat         = "text"
	DefaultLogMaxSizeMB      = 100
	DefaultLogMaxBackups     = 3
	DefaultLogMaxAgeDays     = 28
	DefaultHTTPPort          = 8081
)

// Default returns a config with every default applied.
func Default() *StreamerConfig {
	cfg := &StreamerConfig{}
	cfg.applyDefaults()
	return cfg
}

func (c *StreamerConfig) applyDefaults() {
	// Stream defaults
	s := &c.Stream
	if s.URL == "" {
		s.URL = DefaultURL
	}
	if s.ReconnectDelay == 0 {
		s.ReconnectDelay = DefaultReconnectDelay
	}
	if s.HeartbeatOutgoing == 0 {
		s.HeartbeatOutgoing = DefaultHeartbeatOutgoing
	}
	if s.HeartbeatIncoming == 0 {
		s.HeartbeatIncoming = DefaultHeartbeatIncoming
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.PingInterval == 0 {
		s.PingInterval = DefaultPingInterval
	}
	if s.PingTimeout == 0 {
		s.PingTimeout = DefaultPingTimeout
	}
	if s.SubscribePrefix == "" {
		s.SubscribePrefix = topic.DefaultSubscribePrefix
	}
	if s.PublishPrefix == "" {
		s.PublishPrefix = topic.DefaultPublishPrefix
	}
	if s.QueueSize == 0 {
		s.QueueSize = DefaultQueueSize
	}

	// Publish defaults
	if c.Publish.Rate == 0 {
		c.Publish.Rate = DefaultPublishRate
	}
	if c.Publish.Burst == 0 {
		c.Publish.Burst = DefaultPublishBurst
	}

	// Aggregate defaults
	if c.Aggregate.CandleLimit == 0 {
		c.Aggregate.CandleLimit = aggregate.DefaultCandleLimit
	}
	if c.Aggregate.ChatLimit == 0 {
		c.Aggregate.ChatLimit = aggregate.DefaultChatLimit
	}
	if c.Aggregate.TradeLimit == 0 {
		c.Aggregate.TradeLimit = aggregate.DefaultTradeLimit
	}

	// Logging defaults
	l := &c.Logging
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = DefaultLogMaxBackups
	}
	if l.MaxAgeDays == 0 {
		l.MaxAgeDays = DefaultLogMaxAgeDays
	}

	if c.HTTP.Port == 0 {
		c.HTTP.Port = DefaultHTTPPort
	}
}
