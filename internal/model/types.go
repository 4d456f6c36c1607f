package model

import "time"

// -----------------------------------------------------------------------------
// Ticker
// -----------------------------------------------------------------------------

// Change is the direction of the price against the previous close.
type Change string

const (
	ChangeRise Change = "RISE"
	ChangeEven Change = "EVEN"
	ChangeFall Change = "FALL"
)

// Ticker is the folded ticker state for one market.
type Ticker struct {
	Code              string  `json:"code"`
	TradePrice        float64 `json:"tradePrice"`
	SignedChangeRate  float64 `json:"signedChangeRate"`
	AccTradeVolume    float64 `json:"accTradeVolume"`
	AccTradeVolume24h float64 `json:"accTradeVolume24h"`
	PrevClosingPrice  float64 `json:"prevClosingPrice"`
	Change            Change  `json:"change"`
	Timestamp         int64   `json:"timestamp"`
}

// TickerUpdate is one inbound ticker message. A nil field was absent from
// the message and must not overwrite known state.
type TickerUpdate struct {
	Code              string
	TradePrice        *float64
	SignedChangeRate  *float64
	AccTradeVolume    *float64
	AccTradeVolume24h *float64
	PrevClosingPrice  *float64
	Change            *Change
	Timestamp         *int64
}

// -----------------------------------------------------------------------------
// Candle
// -----------------------------------------------------------------------------

// Candle is one OHLCV point.
type Candle struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// -----------------------------------------------------------------------------
// Order book
// -----------------------------------------------------------------------------

// OrderbookUnit is one ask/bid level pair.
type OrderbookUnit struct {
	AskPrice float64 `json:"askPrice"`
	AskSize  float64 `json:"askSize"`
	BidPrice float64 `json:"bidPrice"`
	BidSize  float64 `json:"bidSize"`
}

// Orderbook is a complete book snapshot. The feed always sends the whole
// book, so a snapshot is never merged with an older one.
type Orderbook struct {
	Code         string          `json:"code"`
	Units        []OrderbookUnit `json:"orderbookUnits"`
	TotalAskSize float64         `json:"totalAskSize"`
	TotalBidSize float64         `json:"totalBidSize"`
	Timestamp    int64           `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Chat
// -----------------------------------------------------------------------------

// ChatMessage is a chat line. Sender and Timestamp are filled by the
// server; an outbound draft leaves both empty.
type ChatMessage struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// -----------------------------------------------------------------------------
// Trade
// -----------------------------------------------------------------------------

// AskBid is the aggressor side of a trade.
type AskBid string

const (
	Ask AskBid = "ASK"
	Bid AskBid = "BID"
)

// Trade is one executed trade.
type Trade struct {
	Code         string  `json:"code"`
	TradePrice   float64 `json:"tradePrice"`
	TradeVolume  float64 `json:"tradeVolume"`
	AskBid       AskBid  `json:"askBid"`
	Change       Change  `json:"change"`
	Timestamp    int64   `json:"timestamp"`
	SequentialID int64   `json:"sequentialId"`
}
