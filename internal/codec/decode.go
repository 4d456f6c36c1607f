package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rickgao/coin-stream/internal/model"
)

// Wire types for JSON parsing

// tickerWire is the wire format for ticker messages. Pointers keep
// "absent" distinct from zero.
type tickerWire struct {
	Code              string       `json:"code"`
	TradePrice        *float64     `json:"tradePrice"`
	SignedChangeRate  *float64     `json:"signedChangeRate"`
	AccTradeVolume    *float64     `json:"accTradeVolume"`
	AccTradeVolume24h *float64     `json:"accTradeVolume24h"`
	PrevClosingPrice  *float64     `json:"prevClosingPrice"`
	Change            *string      `json:"change"`
	Timestamp         *json.Number `json:"timestamp"`
}

// candleWire accepts both candle shapes the feed has used:
// {candleDateTime, openingPrice, highPrice, lowPrice, closingPrice, volume}
// and {timestamp, open, high, low, close, volume}.
type candleWire struct {
	CandleDateTime *string  `json:"candleDateTime"`
	OpeningPrice   *float64 `json:"openingPrice"`
	HighPrice      *float64 `json:"highPrice"`
	LowPrice       *float64 `json:"lowPrice"`
	ClosingPrice   *float64 `json:"closingPrice"`

	Timestamp *json.Number `json:"timestamp"`
	Open      *float64     `json:"open"`
	High      *float64     `json:"high"`
	Low       *float64     `json:"low"`
	Close     *float64     `json:"close"`

	Volume *float64 `json:"volume"`
}

// orderbookWire is the wire format for order book snapshots.
type orderbookWire struct {
	Code           string `json:"code"`
	OrderbookUnits []struct {
		AskPrice float64 `json:"askPrice"`
		AskSize  float64 `json:"askSize"`
		BidPrice float64 `json:"bidPrice"`
		BidSize  float64 `json:"bidSize"`
	} `json:"orderbookUnits"`
	TotalAskSize float64      `json:"totalAskSize"`
	TotalBidSize float64      `json:"totalBidSize"`
	Timestamp    *json.Number `json:"timestamp"`
}

// chatWire keeps the timestamp raw: the server sends epoch milliseconds,
// sometimes quoted.
type chatWire struct {
	Sender    string          `json:"sender"`
	Content   string          `json:"content"`
	Timestamp json.RawMessage `json:"timestamp"`
}

// tradeWire is the wire format for trade messages.
type tradeWire struct {
	Code         string       `json:"code"`
	TradePrice   float64      `json:"tradePrice"`
	TradeVolume  float64      `json:"tradeVolume"`
	AskBid       string       `json:"askBid"`
	Change       string       `json:"change"`
	Timestamp    *json.Number `json:"timestamp"`
	SequentialID int64        `json:"sequentialId"`
}

// candleTimeLayouts are tried in order for candleDateTime. Values without
// a zone are read as UTC.
var candleTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// DecodeTicker parses a ticker message, keeping absent fields nil.
func DecodeTicker(body []byte) (model.TickerUpdate, error) {
	var wire tickerWire
	if err := unmarshalObject(body, &wire); err != nil {
		return model.TickerUpdate{}, err
	}

	u := model.TickerUpdate{
		Code:              wire.Code,
		TradePrice:        wire.TradePrice,
		SignedChangeRate:  wire.SignedChangeRate,
		AccTradeVolume:    wire.AccTradeVolume,
		AccTradeVolume24h: wire.AccTradeVolume24h,
		PrevClosingPrice:  wire.PrevClosingPrice,
	}
	if wire.Change != nil {
		c := model.Change(*wire.Change)
		u.Change = &c
	}
	if wire.Timestamp != nil {
		ts, err := numberToMillis(*wire.Timestamp)
		if err != nil {
			return model.TickerUpdate{}, err
		}
		u.Timestamp = &ts
	}
	return u, nil
}

// DecodeCandle parses a candle in either wire shape. A candle needs a time
// and a close price; the long field names win when both shapes are mixed.
func DecodeCandle(body []byte) (model.Candle, error) {
	var wire candleWire
	if err := unmarshalObject(body, &wire); err != nil {
		return model.Candle{}, err
	}

	var c model.Candle
	switch {
	case wire.CandleDateTime != nil:
		t, err := parseCandleTime(*wire.CandleDateTime)
		if err != nil {
			return model.Candle{}, err
		}
		c.Time = t
	case wire.Timestamp != nil:
		ms, err := numberToMillis(*wire.Timestamp)
		if err != nil {
			return model.Candle{}, err
		}
		c.Time = time.UnixMilli(ms).UTC()
	default:
		return model.Candle{}, fmt.Errorf("%w: candle has neither candleDateTime nor timestamp", ErrDecode)
	}

	closePrice := firstOf(wire.ClosingPrice, wire.Close)
	if closePrice == nil {
		return model.Candle{}, fmt.Errorf("%w: candle has neither closingPrice nor close", ErrDecode)
	}
	c.Close = *closePrice
	c.Open = valueOf(firstOf(wire.OpeningPrice, wire.Open))
	c.High = valueOf(firstOf(wire.HighPrice, wire.High))
	c.Low = valueOf(firstOf(wire.LowPrice, wire.Low))
	c.Volume = valueOf(wire.Volume)
	return c, nil
}

// DecodeOrderbook parses a full order book snapshot.
func DecodeOrderbook(body []byte) (model.Orderbook, error) {
	var wire orderbookWire
	if err := unmarshalObject(body, &wire); err != nil {
		return model.Orderbook{}, err
	}

	ob := model.Orderbook{
		Code:         wire.Code,
		Units:        make([]model.OrderbookUnit, 0, len(wire.OrderbookUnits)),
		TotalAskSize: wire.TotalAskSize,
		TotalBidSize: wire.TotalBidSize,
	}
	for _, u := range wire.OrderbookUnits {
		ob.Units = append(ob.Units, model.OrderbookUnit{
			AskPrice: u.AskPrice,
			AskSize:  u.AskSize,
			BidPrice: u.BidPrice,
			BidSize:  u.BidSize,
		})
	}
	if wire.Timestamp != nil {
		ts, err := numberToMillis(*wire.Timestamp)
		if err != nil {
			return model.Orderbook{}, err
		}
		ob.Timestamp = ts
	}
	return ob, nil
}

// DecodeChat parses a chat message. Sender and timestamp are taken
// verbatim from the server.
func DecodeChat(body []byte) (model.ChatMessage, error) {
	var wire chatWire
	if err := unmarshalObject(body, &wire); err != nil {
		return model.ChatMessage{}, err
	}

	msg := model.ChatMessage{
		Sender:  wire.Sender,
		Content: wire.Content,
	}
	if ts := bytes.TrimSpace(wire.Timestamp); len(ts) > 0 && !bytes.Equal(ts, []byte("null")) {
		var s string
		if err := json.Unmarshal(ts, &s); err == nil {
			msg.Timestamp = s
		} else {
			msg.Timestamp = string(ts)
		}
	}
	return msg, nil
}

// DecodeTrade parses a trade message.
func DecodeTrade(body []byte) (model.Trade, error) {
	var wire tradeWire
	if err := unmarshalObject(body, &wire); err != nil {
		return model.Trade{}, err
	}

	tr := model.Trade{
		Code:         wire.Code,
		TradePrice:   wire.TradePrice,
		TradeVolume:  wire.TradeVolume,
		AskBid:       model.AskBid(wire.AskBid),
		Change:       model.Change(wire.Change),
		SequentialID: wire.SequentialID,
	}
	if wire.Timestamp != nil {
		ts, err := numberToMillis(*wire.Timestamp)
		if err != nil {
			return model.Trade{}, err
		}
		tr.Timestamp = ts
	}
	return tr, nil
}

// unmarshalObject rejects anything that is not a JSON object, including
// "null", which json.Unmarshal would otherwise accept into a struct.
func unmarshalObject(body []byte, v any) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return fmt.Errorf("%w: body is not a json object", ErrDecode)
	}
	if err := json.Unmarshal(trimmed, v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func numberToMillis(n json.Number) (int64, error) {
	if i, err := n.Int64(); err == nil {
		return i, nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: bad timestamp %q", ErrDecode, n.String())
	}
	return int64(f), nil
}

func parseCandleTime(s string) (time.Time, error) {
	for _, layout := range candleTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: bad candleDateTime %q", ErrDecode, s)
}

func firstOf(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

func valueOf(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}
