package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestStore(t *testing.T, clock *fakeClock) *RollingWindowStore {
	cfg := WindowConfig{
		Depth:        10 * time.Second,
		Quote:        10 * time.Second,
		Trade:        10 * time.Second,
		Kline:        10 * time.Second,
		MaxStaleness: time.Second,
	}
	return NewRollingWindowStore(testKey(t), cfg, WithClock(clock.Now))
}

func quote(bid string) BestQuote {
	return BestQuote{
		BidPrice: decimal.RequireFromString(bid),
		BidQty:   decimal.NewFromInt(1),
		AskPrice: decimal.RequireFromString(bid).Add(decimal.NewFromInt(1)),
		AskQty:   decimal.NewFromInt(1),
	}
}

func TestRollingWindowStore_StaleEventIsIdempotent(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(t, clock)

	require.Equal(t, Admission_Admitted, s.UpdateBestQuote(clock.now, quote("100")))
	before := s.BestQuotes()

	stale := clock.now.Add(-2 * time.Second)
	for i := 0; i < 2; i++ {
		assert.Equal(t, Admission_Stale, s.UpdateBestQuote(stale, quote("50")))
		assert.Equal(t, Admission_Stale, s.UpdateDepth(stale, nil, nil))
		assert.Equal(t, Admission_Stale, s.UpdateTrade(stale, Trade{TradeID: "1"}))
		assert.Equal(t, Admission_Stale, s.UpdateKline(stale, Candle{IsFinal: true}))
		assert.Equal(t, before, s.BestQuotes())
	}

	assert.Empty(t, s.BidDepth())
	assert.Empty(t, s.Trades())
	assert.Empty(t, s.Klines())
}

func TestRollingWindowStore_EvictsByWallClock(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(t, clock)

	for i := 0; i < 20; i++ {
		require.Equal(t, Admission_Admitted, s.UpdateBestQuote(clock.now, quote("100")))
		require.Equal(t, Admission_Admitted, s.UpdateDepth(clock.now, []PriceLevel{{Price: decimal.NewFromInt(1), Quantity: decimal.NewFromInt(1)}}, nil))
		clock.Advance(time.Second)
	}

	now := clock.now.Add(-time.Second)
	for _, sample := range s.BestQuotes() {
		assert.LessOrEqual(t, now.Sub(sample.EventTime), 10*time.Second)
	}
	assert.Len(t, s.BestQuotes(), 11)
	assert.Len(t, s.BidDepth(), 11)
	assert.Len(t, s.AskDepth(), 11)
}

func TestRollingWindowStore_Klines(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(t, clock)

	open := Candle{Interval: "1m", Open: decimal.NewFromInt(1), Close: decimal.NewFromInt(2)}
	require.Equal(t, Admission_Admitted, s.UpdateKline(clock.now, open))

	open.Close = decimal.NewFromInt(3)
	require.Equal(t, Admission_Admitted, s.UpdateKline(clock.now, open))

	current, ok := s.CurrentKline()
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(3).Equal(current.Close), "in-progress candle is last-write-wins")
	assert.Empty(t, s.Klines(), "in-progress candles are not history")

	final := open
	final.IsFinal = true
	require.Equal(t, Admission_Admitted, s.UpdateKline(clock.now, final))

	_, ok = s.CurrentKline()
	assert.False(t, ok)
	require.Len(t, s.Klines(), 1)
	assert.True(t, s.Klines()[0].Value.IsFinal)
}

func TestRollingWindowStore_Trades(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(t, clock)

	require.Equal(t, Admission_Admitted, s.UpdateTrade(clock.now, Trade{TradeID: "1", Side: SideBuy}))
	require.Equal(t, Admission_Admitted, s.UpdateTrade(clock.now.Add(500*time.Millisecond), Trade{TradeID: "2", Side: SideSell}))

	trades := s.Trades()
	require.Len(t, trades, 2)
	assert.Equal(t, "2", trades[1].Value.TradeID)
}

func TestRollingWindowStore_OutOfOrderIsNotStale(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	s := newTestStore(t, clock)

	require.Equal(t, Admission_Admitted, s.UpdateBestQuote(clock.now, quote("100")))
	require.Equal(t, Admission_Admitted, s.UpdateDepth(clock.now, nil, nil))

	older := clock.now.Add(-500 * time.Millisecond)
	assert.Equal(t, Admission_OutOfOrder, s.UpdateBestQuote(older, quote("99")))
	assert.Equal(t, Admission_OutOfOrder, s.UpdateDepth(older, nil, nil))
	assert.Len(t, s.BestQuotes(), 1)
	assert.Len(t, s.BidDepth(), 1)
	assert.Len(t, s.AskDepth(), 1)
}
