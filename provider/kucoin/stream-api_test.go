package kucoin

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spooky-finn/cryptowave/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStreamAPI(t *testing.T) *KucoinStreamAPI {
	t.Helper()
	btc, err := domain.NewMarketSymbol("btc", "usdt")
	require.NoError(t, err)
	eth, err := domain.NewMarketSymbol("eth", "usdt")
	require.NoError(t, err)

	return NewKucoinStreamAPI("kucoin", nil, []*domain.MarketSymbol{btc, eth})
}

func decodeOne(t *testing.T, s *KucoinStreamAPI, topic, raw string, receipt time.Time) domain.Event {
	t.Helper()
	events, err := s.Decode(topic, json.RawMessage(raw), receipt)
	require.NoError(t, err)
	require.Len(t, events, 1)
	return events[0]
}

func TestKucoinStreamAPI_Topics(t *testing.T) {
	s := newTestStreamAPI(t)

	assert.Equal(t, []string{
		"/market/level2:BTC-USDT,ETH-USDT",
		"/market/ticker:BTC-USDT,ETH-USDT",
		"/market/match:BTC-USDT,ETH-USDT",
		"/market/candles:BTC-USDT_1min",
		"/market/candles:ETH-USDT_1min",
	}, s.Topics())
}

func TestKucoinStreamAPI_DecodeLevel2(t *testing.T) {
	s := newTestStreamAPI(t)
	receipt := time.UnixMilli(1700000000500)

	ev := decodeOne(t, s, "/market/level2:BTC-USDT", `{
		"changes": {"asks": [["18906","0.00331","14103845"]], "bids": [["18891.9","0.15688","14103847"]]},
		"sequenceEnd": 14103847,
		"sequenceStart": 14103844,
		"symbol": "BTC-USDT",
		"time": 1700000000000
	}`, receipt)

	assert.Equal(t, "kucoin", ev.Exchange)
	assert.Equal(t, "BTC-USDT", ev.Symbol)
	assert.Equal(t, receipt, ev.ReceiptTime)
	assert.Equal(t, time.UnixMilli(1700000000000), ev.EventTime)

	delta, ok := ev.Payload.(*domain.BookDelta)
	require.True(t, ok)
	assert.Equal(t, int64(14103844), delta.FirstUpdateID)
	assert.Equal(t, int64(14103847), delta.FinalUpdateID)
	require.Len(t, delta.Asks, 1)
	require.Len(t, delta.Bids, 1)
	assert.Equal(t, "18906", delta.Asks[0].Price.String())
	assert.Equal(t, "0.15688", delta.Bids[0].Quantity.String())
}

func TestKucoinStreamAPI_DecodeTicker(t *testing.T) {
	s := newTestStreamAPI(t)

	ev := decodeOne(t, s, "/market/ticker:ETH-USDT", `{
		"sequence": "1545896668986",
		"price": "0.08",
		"size": "0.011",
		"bestAsk": "0.08",
		"bestAskSize": "0.18",
		"bestBid": "0.049",
		"bestBidSize": "0.036",
		"time": 1704873323416
	}`, time.Now())

	assert.Equal(t, "ETH-USDT", ev.Symbol)
	quote, ok := ev.Payload.(*domain.BestQuote)
	require.True(t, ok)
	assert.Equal(t, "0.049", quote.BidPrice.String())
	assert.Equal(t, "0.036", quote.BidQty.String())
	assert.Equal(t, "0.08", quote.AskPrice.String())
	assert.Equal(t, "0.18", quote.AskQty.String())
	assert.Equal(t, time.UnixMilli(1704873323416), quote.EventTime)
}

func TestKucoinStreamAPI_DecodeMatch(t *testing.T) {
	s := newTestStreamAPI(t)

	ev := decodeOne(t, s, "/market/match:BTC-USDT", `{
		"makerOrderId": "6287c3015c27f000017d0c2f",
		"price": "0.03",
		"sequence": "1637846",
		"side": "sell",
		"size": "0.1",
		"symbol": "BTC-USDT",
		"takerOrderId": "6287c3015c27f000017d0c30",
		"time": "1652999937063015700",
		"tradeId": "6287c3015c27f000017d0c31",
		"type": "match"
	}`, time.Now())

	trade, ok := ev.Payload.(*domain.Trade)
	require.True(t, ok)
	assert.Equal(t, "6287c3015c27f000017d0c31", trade.TradeID)
	assert.Equal(t, domain.SideSell, trade.Side)
	assert.Equal(t, "0.03", trade.Price.String())
	assert.Equal(t, "0.1", trade.Quantity.String())
	assert.Equal(t, time.Unix(0, 1652999937063015700), trade.EventTime)
}

func TestKucoinStreamAPI_DecodeCandle_FinalizesOnNewInterval(t *testing.T) {
	s := newTestStreamAPI(t)
	topic := "/market/candles:BTC-USDT_1min"
	first := decodeOne(t, s, topic,
		`{"symbol":"BTC-USDT","candles":["1589968800","100","105","110","95","1","100"],"time":1589968801000000000}`,
		time.Now())
	c, ok := first.Payload.(*domain.Candle)
	require.True(t, ok)
	assert.False(t, c.IsFinal)
	assert.Equal(t, "1min", c.Interval)
	assert.Equal(t, time.Unix(1589968800, 0), c.IntervalStart)
	assert.Equal(t, time.Unix(1589968860, 0), c.IntervalEnd)
	assert.Equal(t, "105", c.Close.String())

	// same interval, no final candle yet
	decodeOne(t, s, topic,
		`{"symbol":"BTC-USDT","candles":["1589968800","100","107","110","95","2","200"],"time":1589968830000000000}`,
		time.Now())

	events, err := s.Decode(topic,
		json.RawMessage(`{"symbol":"BTC-USDT","candles":["1589968860","107","108","109","106","1","100"],"time":1589968861000000000}`),
		time.Now())
	require.NoError(t, err)
	require.Len(t, events, 2)

	closed := events[0].Payload.(*domain.Candle)
	assert.True(t, closed.IsFinal)
	assert.Equal(t, time.Unix(1589968800, 0), closed.IntervalStart)
	assert.Equal(t, "107", closed.Close.String())

	open := events[1].Payload.(*domain.Candle)
	assert.False(t, open.IsFinal)
	assert.Equal(t, time.Unix(1589968860, 0), open.IntervalStart)
}

func TestKucoinStreamAPI_DecodeErrors(t *testing.T) {
	s := newTestStreamAPI(t)

	tests := []struct {
		name  string
		topic string
		raw   string
	}{
		{"bad json", "/market/level2:BTC-USDT", `{`},
		{"bad level price", "/market/level2:BTC-USDT", `{"changes":{"asks":[["x","1","1"]],"bids":[]},"symbol":"BTC-USDT"}`},
		{"bad ticker", "/market/ticker:BTC-USDT", `{"bestAsk":"","bestAskSize":"1","bestBid":"1","bestBidSize":"1"}`},
		{"bad match time", "/market/match:BTC-USDT", `{"price":"1","size":"1","side":"buy","time":"abc"}`},
		{"short candle", "/market/candles:BTC-USDT_1min", `{"symbol":"BTC-USDT","candles":["1"],"time":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Decode(tt.topic, json.RawMessage(tt.raw), time.Now())
			assert.Error(t, err)
		})
	}
}

func TestKucoinStreamAPI_DecodeIgnoresUnknownTopic(t *testing.T) {
	s := newTestStreamAPI(t)

	events, err := s.Decode("/market/snapshot:BTC-USDT", json.RawMessage(`{}`), time.Now())
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestKucoinDepthUpdateValidator(t *testing.T) {
	v := KucoinDepthUpdateValidator{}
	delta := func(start, end int64) *domain.BookDelta {
		return &domain.BookDelta{FirstUpdateID: start, FinalUpdateID: end}
	}

	tests := []struct {
		name    string
		first   bool
		update  *domain.BookDelta
		last    int64
		wantErr error
	}{
		{"first covered by snapshot", true, delta(90, 100), 100, domain.ErrOrderBookUpdateIsOutdated},
		{"first straddles snapshot", true, delta(95, 105), 100, nil},
		{"first after gap", true, delta(103, 105), 100, domain.ErrSequenceGap},
		{"contiguous", false, delta(101, 104), 100, nil},
		{"overlapping", false, delta(99, 104), 100, nil},
		{"gap", false, delta(102, 104), 100, domain.ErrSequenceGap},
		{"stale", false, delta(95, 100), 100, domain.ErrSequenceGap},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var err error
			if tt.first {
				err = v.IsValidFirstUpd(tt.update, tt.last)
			} else {
				err = v.IsValidUpd(tt.update, tt.last)
			}
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}
