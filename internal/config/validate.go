package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate checks that all required fields are set and values are valid.
func (c *StreamerConfig) Validate() error {
	if c.Stream.URL == "" {
		return errors.New("stream.url is required")
	}
	u, err := url.Parse(c.Stream.URL)
	if err != nil {
		return fmt.Errorf("stream.url is invalid: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("stream.url scheme must be ws or wss, got %q", u.Scheme)
	}

	if c.Stream.ReconnectDelay < 0 {
		return errors.New("stream.reconnect_delay must be >= 0")
	}
	if c.Stream.HeartbeatOutgoing < 0 || c.Stream.HeartbeatIncoming < 0 {
		return errors.New("stream heartbeats must be >= 0")
	}
	if c.Stream.HeartbeatTimeout < 0 {
		return errors.New("stream.heartbeat_timeout must be >= 0")
	}
	if !strings.HasPrefix(c.Stream.SubscribePrefix, "/") {
		return fmt.Errorf("stream.subscribe_prefix must start with /, got %q", c.Stream.SubscribePrefix)
	}
	if !strings.HasPrefix(c.Stream.PublishPrefix, "/") {
		return fmt.Errorf("stream.publish_prefix must start with /, got %q", c.Stream.PublishPrefix)
	}
	if c.Stream.QueueSize < 1 {
		return errors.New("stream.queue_size must be >= 1")
	}

	if c.Publish.Rate < 0 {
		return errors.New("publish.rate must be >= 0")
	}
	if c.Publish.Burst < 1 {
		return errors.New("publish.burst must be >= 1")
	}

	if c.Aggregate.CandleLimit < 1 {
		return errors.New("aggregate.candle_limit must be >= 1")
	}
	if c.Aggregate.ChatLimit < 1 {
		return errors.New("aggregate.chat_limit must be >= 1")
	}
	if c.Aggregate.TradeLimit < 1 {
		return errors.New("aggregate.trade_limit must be >= 1")
	}

	seen := make(map[string]bool, len(c.Markets))
	for _, m := range c.Markets {
		if strings.TrimSpace(m) == "" {
			return errors.New("markets must not contain empty codes")
		}
		if seen[m] {
			return fmt.Errorf("markets contains duplicate %q", m)
		}
		seen[m] = true
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	if !c.HTTP.Disabled && (c.HTTP.Port < 1 || c.HTTP.Port > 65535) {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	return nil
}
