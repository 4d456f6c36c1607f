// Package board keeps the folded market state a UI reads: tickers of the
// visible market list plus the detail feeds of one focused market.
//
// Handlers run on the connection's event loop while readers (HTTP, CLI)
// live on other goroutines, so state is guarded by a RWMutex and every
// accessor returns a copy.
package board

import (
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/rickgao/coin-stream/internal/aggregate"
	"github.com/rickgao/coin-stream/internal/codec"
	"github.com/rickgao/coin-stream/internal/model"
	"github.com/rickgao/coin-stream/internal/subscription"
	"github.com/rickgao/coin-stream/internal/topic"
)

// Subscription groups owned by the board.
const (
	GroupTicker = "ticker"
	GroupFocus  = "focus"
)

// Errors
var (
	ErrEmptyMessage = errors.New("chat message is empty")
	ErrNoMarket     = errors.New("market is required")
)

// Subscriber is the part of the connection the board drives.
type Subscriber interface {
	Reconcile(group string, bindings []subscription.Binding)
	Publish(destination string, body any) error
}

// Config holds board bounds and topic naming.
type Config struct {
	Naming      topic.Naming
	CandleLimit int
	ChatLimit   int
	TradeLimit  int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Naming:      topic.Default(),
		CandleLimit: aggregate.DefaultCandleLimit,
		ChatLimit:   aggregate.DefaultChatLimit,
		TradeLimit:  aggregate.DefaultTradeLimit,
	}
}

// MarketView is a snapshot of the focused market.
type MarketView struct {
	Market        string              `json:"market"`
	Interval      string              `json:"interval"`
	Orderbook     model.Orderbook     `json:"orderbook"`
	Candles       []model.Candle      `json:"candles"`
	SecondCandles []model.Candle      `json:"secondCandles"`
	Chat          []model.ChatMessage `json:"chat"`
	Trades        []model.Trade       `json:"trades"`
}

// Board binds subscriptions to aggregated state.
type Board struct {
	cfg    Config
	sub    Subscriber
	logger *slog.Logger

	mu      sync.RWMutex
	watched map[string]struct{}
	tickers map[string]model.Ticker
	focus   MarketView
}

// New creates a Board publishing through sub.
func New(sub Subscriber, cfg Config, logger *slog.Logger) *Board {
	if logger == nil {
		logger = slog.Default()
	}

	return &Board{
		cfg:     cfg,
		sub:     sub,
		logger:  logger,
		watched: make(map[string]struct{}),
		tickers: make(map[string]model.Ticker),
	}
}

// WatchTickers subscribes the ticker topic of every market and drops the
// ones no longer listed. Tickers of dropped markets are forgotten.
func (b *Board) WatchTickers(markets []string) {
	bindings := make([]subscription.Binding, 0, len(markets))
	keep := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		keep[m] = struct{}{}
		bindings = append(bindings, subscription.Binding{
			Topic:   b.cfg.Naming.Ticker(m),
			Handler: subscription.On(codec.DecodeTicker, b.onTicker(m)),
		})
	}

	b.mu.Lock()
	b.watched = keep
	for m := range b.tickers {
		if _, ok := keep[m]; !ok {
			delete(b.tickers, m)
		}
	}
	b.mu.Unlock()

	b.sub.Reconcile(GroupTicker, bindings)
	b.logger.Debug("watching tickers", "markets", len(markets))
}

// Focus switches the detail feeds to market and candle interval. State of
// the previous focus is cleared. An empty market drops the detail feeds.
func (b *Board) Focus(market, interval string) {
	b.mu.Lock()
	changed := b.focus.Market != market || b.focus.Interval != interval
	if changed {
		b.focus = MarketView{Market: market, Interval: interval}
	}
	b.mu.Unlock()

	if market == "" {
		b.sub.Reconcile(GroupFocus, nil)
		return
	}

	n := b.cfg.Naming
	bindings := []subscription.Binding{
		{Topic: n.Orderbook(market), Handler: subscription.On(codec.DecodeOrderbook, b.onOrderbook(market))},
		{Topic: n.OneSecondCandles(market), Handler: subscription.On(codec.DecodeCandle, b.onSecondCandle(market))},
		{Topic: n.Chat(market), Handler: subscription.On(codec.DecodeChat, b.onChat(market))},
		{Topic: n.Trade(), Handler: subscription.On(codec.DecodeTrade, b.onTrade(market))},
	}
	if interval != "" && !strings.EqualFold(interval, topic.OneSecondInterval) {
		bindings = append(bindings, subscription.Binding{
			Topic:   n.Candles(market, interval),
			Handler: subscription.On(codec.DecodeCandle, b.onCandle(market, interval)),
		})
	}
	b.sub.Reconcile(GroupFocus, bindings)

	b.logger.Info("focus", "market", market, "interval", interval)
}

// SendChat publishes a sender-less draft to the chat of market.
func (b *Board) SendChat(market, content string) error {
	if market == "" {
		return ErrNoMarket
	}
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}
	return b.sub.Publish(b.cfg.Naming.ChatPublish(market), codec.ChatDraft(content))
}

// Ticker returns the folded ticker of market.
func (b *Board) Ticker(market string) (model.Ticker, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tickers[market]
	return t, ok
}

// Tickers returns every known ticker ordered by market code.
func (b *Board) Tickers() []model.Ticker {
	b.mu.RLock()
	out := make([]model.Ticker, 0, len(b.tickers))
	for _, t := range b.tickers {
		out = append(out, t)
	}
	b.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Market returns a copy of the focused market state. ok is false when
// market is not the focused one.
func (b *Board) Market(market string) (MarketView, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if market == "" || b.focus.Market != market {
		return MarketView{}, false
	}
	v := b.focus
	v.Orderbook.Units = append([]model.OrderbookUnit(nil), v.Orderbook.Units...)
	v.Candles = append([]model.Candle(nil), v.Candles...)
	v.SecondCandles = append([]model.Candle(nil), v.SecondCandles...)
	v.Chat = append([]model.ChatMessage(nil), v.Chat...)
	v.Trades = append([]model.Trade(nil), v.Trades...)
	return v, true
}

// Focused returns the focused market and interval.
func (b *Board) Focused() (market, interval string) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.focus.Market, b.focus.Interval
}
