// Package aggregate folds streams of payloads into the state a consumer
// reads. Every function is pure: it never mutates its inputs and returns
// the next state.
package aggregate

import "github.com/rickgao/coin-stream/internal/model"

// Default bounds.
const (
	DefaultCandleLimit = 50
	DefaultChatLimit   = 200
	DefaultTradeLimit  = 10
)

// MergeTicker overlays the fields present in in onto prev. Absent fields
// keep their last known value; a first message starts from zero values.
func MergeTicker(prev model.Ticker, in model.TickerUpdate) model.Ticker {
	next := prev
	if in.Code != "" {
		next.Code = in.Code
	}
	if in.TradePrice != nil {
		next.TradePrice = *in.TradePrice
	}
	if in.SignedChangeRate != nil {
		next.SignedChangeRate = *in.SignedChangeRate
	}
	if in.AccTradeVolume != nil {
		next.AccTradeVolume = *in.AccTradeVolume
	}
	if in.AccTradeVolume24h != nil {
		next.AccTradeVolume24h = *in.AccTradeVolume24h
	}
	if in.PrevClosingPrice != nil {
		next.PrevClosingPrice = *in.PrevClosingPrice
	}
	if in.Change != nil {
		next.Change = *in.Change
	}
	if in.Timestamp != nil {
		next.Timestamp = *in.Timestamp
	}
	return next
}

// AppendCandle appends c in arrival order and keeps the newest limit
// points. limit <= 0 means DefaultCandleLimit.
func AppendCandle(buf []model.Candle, c model.Candle, limit int) []model.Candle {
	if limit <= 0 {
		limit = DefaultCandleLimit
	}
	return appendBounded(buf, c, limit)
}

// ReplaceOrderbook returns in as the new snapshot. Nothing of the previous
// snapshot survives.
func ReplaceOrderbook(_ model.Orderbook, in model.Orderbook) model.Orderbook {
	next := in
	next.Units = append([]model.OrderbookUnit(nil), in.Units...)
	return next
}

// AppendChat appends m and keeps the newest limit messages. Sender and
// timestamp are kept as the server sent them. limit <= 0 means
// DefaultChatLimit.
func AppendChat(log []model.ChatMessage, m model.ChatMessage, limit int) []model.ChatMessage {
	if limit <= 0 {
		limit = DefaultChatLimit
	}
	return appendBounded(log, m, limit)
}

// PushTrade puts tr at the front and keeps the newest limit trades.
// limit <= 0 means DefaultTradeLimit.
func PushTrade(list []model.Trade, tr model.Trade, limit int) []model.Trade {
	if limit <= 0 {
		limit = DefaultTradeLimit
	}
	n := min(len(list), limit-1)
	next := make([]model.Trade, 0, n+1)
	next = append(next, tr)
	return append(next, list[:n]...)
}

// appendBounded returns a new slice holding the last limit-1 items of buf
// followed by v.
func appendBounded[T any](buf []T, v T, limit int) []T {
	start := 0
	if len(buf) >= limit {
		start = len(buf) - limit + 1
	}
	next := make([]T, 0, len(buf)-start+1)
	next = append(next, buf[start:]...)
	return append(next, v)
}
