// Package topic builds destination strings for the market-data feed.
//
// Topic strings are part of the wire contract with the server and must be
// produced exactly as below:
//
//	{sub}/coin/ticker/{market}
//	{sub}/coin/orderbook/{market}
//	{sub}/coin/candles/{MARKET}/{interval}
//	{sub}/coin/candles/{MARKET}/candle.1s
//	{sub}/coin/chat/{market}
//	{sub}/coin/trade
//	{pub}/chat/{market}
package topic

import "strings"

// Default prefixes used by the server's broker.
const (
	DefaultSubscribePrefix = "/sub"
	DefaultPublishPrefix   = "/app"
)

// OneSecondInterval is the interval segment of corrected one-second candles.
const OneSecondInterval = "candle.1s"

// Naming holds the broker prefixes. The zero value uses the defaults.
type Naming struct {
	SubscribePrefix string
	PublishPrefix   string
}

// Default returns a Naming with the server's standard prefixes.
func Default() Naming {
	return Naming{
		SubscribePrefix: DefaultSubscribePrefix,
		PublishPrefix:   DefaultPublishPrefix,
	}
}

// Ticker returns the ticker topic of a market.
func (n Naming) Ticker(market string) string {
	return n.sub() + "/coin/ticker/" + market
}

// Orderbook returns the order book topic of a market.
func (n Naming) Orderbook(market string) string {
	return n.sub() + "/coin/orderbook/" + market
}

// Candles returns the candle topic of a market and interval. The market is
// upper-cased and the interval lower-cased, as the server publishes them.
func (n Naming) Candles(market, interval string) string {
	return n.sub() + "/coin/candles/" + strings.ToUpper(market) + "/" + strings.ToLower(interval)
}

// OneSecondCandles returns the corrected one-second candle topic.
func (n Naming) OneSecondCandles(market string) string {
	return n.Candles(market, OneSecondInterval)
}

// Chat returns the topic chat messages of a market are delivered on.
func (n Naming) Chat(market string) string {
	return n.sub() + "/coin/chat/" + market
}

// ChatPublish returns the destination chat drafts are sent to.
func (n Naming) ChatPublish(market string) string {
	return n.pub() + "/chat/" + market
}

// Trade returns the global trade topic. Trades of every market share it.
func (n Naming) Trade() string {
	return n.sub() + "/coin/trade"
}

func (n Naming) sub() string {
	if n.SubscribePrefix == "" {
		return DefaultSubscribePrefix
	}
	return strings.TrimSuffix(n.SubscribePrefix, "/")
}

func (n Naming) pub() string {
	if n.PublishPrefix == "" {
		return DefaultPublishPrefix
	}
	return strings.TrimSuffix(n.PublishPrefix, "/")
}
