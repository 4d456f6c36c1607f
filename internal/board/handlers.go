package board

import (
	"github.com/rickgao/coin-stream/internal/aggregate"
	"github.com/rickgao/coin-stream/internal/model"
)

// Detail handlers check the focus again: frames of a previous focus can
// still be queued when the focus changes.

func (b *Board) onTicker(market string) func(model.TickerUpdate) {
	return func(u model.TickerUpdate) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if _, ok := b.watched[market]; !ok {
			return
		}
		prev, ok := b.tickers[market]
		if !ok {
			prev.Code = market
		}
		b.tickers[market] = aggregate.MergeTicker(prev, u)
	}
}

func (b *Board) onOrderbook(market string) func(model.Orderbook) {
	return func(ob model.Orderbook) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.focus.Market != market {
			return
		}
		b.focus.Orderbook = aggregate.ReplaceOrderbook(b.focus.Orderbook, ob)
	}
}

func (b *Board) onCandle(market, interval string) func(model.Candle) {
	return func(c model.Candle) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.focus.Market != market || b.focus.Interval != interval {
			return
		}
		b.focus.Candles = aggregate.AppendCandle(b.focus.Candles, c, b.cfg.CandleLimit)
	}
}

func (b *Board) onSecondCandle(market string) func(model.Candle) {
	return func(c model.Candle) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.focus.Market != market {
			return
		}
		b.focus.SecondCandles = aggregate.AppendCandle(b.focus.SecondCandles, c, b.cfg.CandleLimit)
	}
}

func (b *Board) onChat(market string) func(model.ChatMessage) {
	return func(m model.ChatMessage) {
		b.mu.Lock()
		defer b.mu.Unlock()

		if b.focus.Market != market {
			return
		}
		b.focus.Chat = aggregate.AppendChat(b.focus.Chat, m, b.cfg.ChatLimit)
	}
}

// onTrade filters the global trade feed down to market.
func (b *Board) onTrade(market string) func(model.Trade) {
	return func(tr model.Trade) {
		if tr.Code != market {
			return
		}

		b.mu.Lock()
		defer b.mu.Unlock()

		if b.focus.Market != market {
			return
		}
		b.focus.Trades = aggregate.PushTrade(b.focus.Trades, tr, b.cfg.TradeLimit)
	}
}
