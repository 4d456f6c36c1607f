package aggregate

import (
	"reflect"
	"testing"
	"time"

	"github.com/rickgao/coin-stream/internal/model"
)

func f64(v float64) *float64 { return &v }

func TestMergeTicker_MissingFieldPreserved(t *testing.T) {
	prev := model.Ticker{Code: "KRW-BTC", TradePrice: 100, SignedChangeRate: 0.01}

	next := MergeTicker(prev, model.TickerUpdate{TradePrice: f64(105)})

	want := model.Ticker{Code: "KRW-BTC", TradePrice: 105, SignedChangeRate: 0.01}
	if next != want {
		t.Errorf("MergeTicker = %+v, want %+v", next, want)
	}
	if prev.TradePrice != 100 {
		t.Error("prev was mutated")
	}
}

func TestMergeTicker_FirstMessageStartsFromZero(t *testing.T) {
	fall := model.ChangeFall
	ts := int64(1710000000000)

	next := MergeTicker(model.Ticker{}, model.TickerUpdate{
		Code:             "KRW-ETH",
		PrevClosingPrice: f64(50),
		Change:           &fall,
		Timestamp:        &ts,
	})

	want := model.Ticker{
		Code:             "KRW-ETH",
		PrevClosingPrice: 50,
		Change:           model.ChangeFall,
		Timestamp:        ts,
	}
	if next != want {
		t.Errorf("MergeTicker = %+v, want %+v", next, want)
	}
}

func TestMergeTicker_ExplicitZeroOverwrites(t *testing.T) {
	prev := model.Ticker{SignedChangeRate: 0.05, AccTradeVolume: 10, AccTradeVolume24h: 20}

	next := MergeTicker(prev, model.TickerUpdate{
		SignedChangeRate:  f64(0),
		AccTradeVolume:    f64(11),
		AccTradeVolume24h: f64(21),
	})

	if next.SignedChangeRate != 0 || next.AccTradeVolume != 11 || next.AccTradeVolume24h != 21 {
		t.Errorf("MergeTicker = %+v", next)
	}
}

func TestMergeTicker_NeverRegresses(t *testing.T) {
	rise := model.ChangeRise
	updates := []model.TickerUpdate{
		{Code: "A", TradePrice: f64(1), Change: &rise},
		{SignedChangeRate: f64(0.2)},
		{AccTradeVolume: f64(3)},
		{},
	}

	var state model.Ticker
	for _, u := range updates {
		state = MergeTicker(state, u)
	}

	want := model.Ticker{Code: "A", TradePrice: 1, SignedChangeRate: 0.2, AccTradeVolume: 3, Change: model.ChangeRise}
	if state != want {
		t.Errorf("state = %+v, want %+v", state, want)
	}
}

func candleAt(i int) model.Candle {
	return model.Candle{
		Time:  time.Unix(int64(i), 0).UTC(),
		Close: float64(i),
	}
}

func TestAppendCandle_KeepsNewestFifty(t *testing.T) {
	var buf []model.Candle
	for i := 1; i <= 55; i++ {
		buf = AppendCandle(buf, candleAt(i), 0)
	}

	if len(buf) != 50 {
		t.Fatalf("len = %d, want 50", len(buf))
	}
	for i, c := range buf {
		if want := float64(i + 6); c.Close != want {
			t.Fatalf("buf[%d].Close = %v, want %v", i, c.Close, want)
		}
	}
}

func TestAppendCandle_ArrivalOrderNotSorted(t *testing.T) {
	var buf []model.Candle
	for _, i := range []int{3, 1, 2} {
		buf = AppendCandle(buf, candleAt(i), 50)
	}

	got := []float64{buf[0].Close, buf[1].Close, buf[2].Close}
	if !reflect.DeepEqual(got, []float64{3, 1, 2}) {
		t.Errorf("order = %v, want arrival order [3 1 2]", got)
	}
}

func TestAppendCandle_DoesNotAliasInput(t *testing.T) {
	buf := make([]model.Candle, 2, 10)
	buf[0], buf[1] = candleAt(1), candleAt(2)

	a := AppendCandle(buf, candleAt(3), 50)
	b := AppendCandle(buf, candleAt(4), 50)

	if a[2].Close != 3 || b[2].Close != 4 {
		t.Errorf("appends share storage: a=%v b=%v", a[2].Close, b[2].Close)
	}
	if len(buf) != 2 {
		t.Errorf("input length changed to %d", len(buf))
	}
}

func TestAppendCandle_SmallLimit(t *testing.T) {
	var buf []model.Candle
	for i := 1; i <= 5; i++ {
		buf = AppendCandle(buf, candleAt(i), 1)
	}
	if len(buf) != 1 || buf[0].Close != 5 {
		t.Errorf("buf = %+v, want only the newest point", buf)
	}
}

func TestReplaceOrderbook(t *testing.T) {
	prev := model.Orderbook{
		Code:         "KRW-BTC",
		Units:        []model.OrderbookUnit{{AskPrice: 1, AskSize: 1, BidPrice: 1, BidSize: 1}, {AskPrice: 2}},
		TotalAskSize: 9,
		TotalBidSize: 9,
		Timestamp:    1,
	}
	in := model.Orderbook{
		Code:  "KRW-BTC",
		Units: []model.OrderbookUnit{{AskPrice: 5, AskSize: 0.5, BidPrice: 4, BidSize: 0.25}},
	}

	next := ReplaceOrderbook(prev, in)

	if !reflect.DeepEqual(next, in) {
		t.Errorf("ReplaceOrderbook = %+v, want %+v", next, in)
	}
	if next.TotalAskSize != 0 || next.Timestamp != 0 || len(next.Units) != 1 {
		t.Errorf("old snapshot fields survived: %+v", next)
	}

	in.Units[0].AskPrice = 99
	if next.Units[0].AskPrice != 5 {
		t.Error("snapshot aliases the incoming units")
	}
}

func TestAppendChat(t *testing.T) {
	var log []model.ChatMessage
	for i := 0; i < 205; i++ {
		log = AppendChat(log, model.ChatMessage{Sender: "s", Content: string(rune('a' + i%26)), Timestamp: "1"}, 0)
	}

	if len(log) != DefaultChatLimit {
		t.Fatalf("len = %d, want %d", len(log), DefaultChatLimit)
	}
	if log[len(log)-1].Content != string(rune('a'+204%26)) {
		t.Errorf("last message = %+v", log[len(log)-1])
	}

	small := AppendChat(nil, model.ChatMessage{Sender: "User 1", Content: "hi", Timestamp: "1710000000000"}, 3)
	if small[0].Sender != "User 1" || small[0].Timestamp != "1710000000000" {
		t.Errorf("server fields changed: %+v", small[0])
	}
}

func TestPushTrade_NewestFirstAndBounded(t *testing.T) {
	var list []model.Trade
	for i := int64(1); i <= 12; i++ {
		list = PushTrade(list, model.Trade{SequentialID: i}, 0)
	}

	if len(list) != DefaultTradeLimit {
		t.Fatalf("len = %d, want %d", len(list), DefaultTradeLimit)
	}
	for i, tr := range list {
		if want := int64(12 - i); tr.SequentialID != want {
			t.Errorf("list[%d] = %d, want %d", i, tr.SequentialID, want)
		}
	}
}
