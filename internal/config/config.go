// Package config loads the streamer configuration from YAML.
package config

import (
	"time"

	"github.com/rickgao/coin-stream/internal/board"
	"github.com/rickgao/coin-stream/internal/connection"
	"github.com/rickgao/coin-stream/internal/topic"
)

// StreamerConfig is the top-level configuration for cmd/streamer.
type StreamerConfig struct {
	Stream    StreamConfig    `yaml:"stream"`
	Publish   PublishConfig   `yaml:"publish"`
	Aggregate AggregateConfig `yaml:"aggregate"`
	Markets   []string        `yaml:"markets"`
	Focus     FocusConfig     `yaml:"focus"`
	Logging   LoggingConfig   `yaml:"logging"`
	HTTP      HTTPConfig      `yaml:"http"`
}

// StreamConfig holds STOMP connection settings.
type StreamConfig struct {
	URL            string            `yaml:"url"`
	Host           string            `yaml:"host"`
	ConnectHeaders map[string]string `yaml:"connect_headers"`
	SendHeaders    map[string]string `yaml:"send_headers"`

	ReconnectDelay    time.Duration `yaml:"reconnect_delay"`
	HeartbeatOutgoing time.Duration `yaml:"heartbeat_outgoing"`
	HeartbeatIncoming time.Duration `yaml:"heartbeat_incoming"`
	HeartbeatTimeout  time.Duration `yaml:"heartbeat_timeout"`
	HandshakeTimeout  time.Duration `yaml:"handshake_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	PingInterval      time.Duration `yaml:"ping_interval"`
	PingTimeout       time.Duration `yaml:"ping_timeout"`

	SubscribePrefix string `yaml:"subscribe_prefix"`
	PublishPrefix   string `yaml:"publish_prefix"`
	QueueSize       int    `yaml:"queue_size"`

	// DisableHeartbeat turns off STOMP heart-beating in both directions.
	DisableHeartbeat bool `yaml:"disable_heartbeat"`
}

// PublishConfig throttles outbound SEND frames.
type PublishConfig struct {
	Rate  float64 `yaml:"rate"` // per second, 0 = unlimited
	Burst int     `yaml:"burst"`
}

// AggregateConfig bounds the in-memory views.
type AggregateConfig struct {
	CandleLimit int `yaml:"candle_limit"`
	ChatLimit   int `yaml:"chat_limit"`
	TradeLimit  int `yaml:"trade_limit"`
}

// FocusConfig selects the market shown in detail at startup.
type FocusConfig struct {
	Market   string `yaml:"market"`
	Interval string `yaml:"interval"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // empty logs to stdout
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// HTTPConfig holds debug server settings.
type HTTPConfig struct {
	Port     int  `yaml:"port"`
	Disabled bool `yaml:"disabled"`
}

// Connection converts the stream section into connection settings.
func (c *StreamerConfig) Connection() connection.Config {
	s := c.Stream
	cfg := connection.Config{
		URL:               s.URL,
		Host:              s.Host,
		ConnectHeaders:    s.ConnectHeaders,
		SendHeaders:       s.SendHeaders,
		ReconnectDelay:    s.ReconnectDelay,
		HeartbeatOutgoing: s.HeartbeatOutgoing,
		HeartbeatIncoming: s.HeartbeatIncoming,
		HeartbeatTimeout:  s.HeartbeatTimeout,
		HandshakeTimeout:  s.HandshakeTimeout,
		WriteTimeout:      s.WriteTimeout,
		PingInterval:      s.PingInterval,
		PingTimeout:       s.PingTimeout,
		QueueSize:         s.QueueSize,
		PublishRate:       c.Publish.Rate,
		PublishBurst:      c.Publish.Burst,
	}
	if s.DisableHeartbeat {
		cfg.HeartbeatOutgoing = 0
		cfg.HeartbeatIncoming = 0
	}
	return cfg
}

// Board converts the aggregate and prefix settings into board settings.
func (c *StreamerConfig) Board() board.Config {
	return board.Config{
		Naming: topic.Naming{
			SubscribePrefix: c.Stream.SubscribePrefix,
			PublishPrefix:   c.Stream.PublishPrefix,
		},
		CandleLimit: c.Aggregate.CandleLimit,
		ChatLimit:   c.Aggregate.ChatLimit,
		TradeLimit:  c.Aggregate.TradeLimit,
	}
}
