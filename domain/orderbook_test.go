package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustLevels(t *testing.T, depth [][]string) []PriceLevel {
	t.Helper()
	levels, err := ParsePriceLevels(depth)
	require.NoError(t, err)
	return levels
}

func testKey(t *testing.T) SymbolKey {
	t.Helper()
	symbol, err := NewMarketSymbol("BTC", "USDT")
	require.NoError(t, err)
	return NewSymbolKey("binance", symbol)
}

func TestNewOrderBook(t *testing.T) {
	key := testKey(t)
	snapshot := &OrderBookSnapshot{
		LastUpdateId: 123,
		Bids:         mustLevels(t, [][]string{{"9900", "2"}, {"10000", "1"}}),
		Asks:         mustLevels(t, [][]string{{"10200", "2.5"}, {"10100", "1.5"}}),
	}

	ob := NewOrderBook(key, snapshot)

	assert.Equal(t, key, ob.Key, "Key should match")
	assert.Equal(t, snapshot.LastUpdateId, ob.LastUpdateID, "LastUpdateID should match")
	assert.False(t, ob.Synchronized)

	bid, ok := ob.BestBid()
	require.True(t, ok)
	assert.Equal(t, "10000", bid.Price.String(), "bids should be sorted descending")

	ask, ok := ob.BestAsk()
	require.True(t, ok)
	assert.Equal(t, "10100", ask.Price.String(), "asks should be sorted ascending")
}

func TestOrderBook_ApplyLevels(t *testing.T) {
	snapshot := &OrderBookSnapshot{
		LastUpdateId: 123,
		Bids:         mustLevels(t, [][]string{{"10000", "1"}, {"9900", "2"}}),
		Asks:         mustLevels(t, [][]string{{"10.300", "1.5"}, {"10200", "2.5"}}),
	}
	ob := NewOrderBook(testKey(t), snapshot)

	changes := ob.ApplyLevels(124,
		mustLevels(t, [][]string{{"9800", "3"}}),                 // adding new bid
		mustLevels(t, [][]string{{"10.3", "2"}, {"10200", "0"}}), // updating and removing ask
	)

	assert.Equal(t, int64(124), ob.LastUpdateID)
	assert.Len(t, changes, 3)
	assert.Equal(t, [][]string{{"10.3", "2"}}, SerializePriceLevels(ob.Asks(0)),
		"decimal prices must not duplicate levels that differ only in representation")
	assert.Equal(t, [][]string{{"10000", "1"}, {"9900", "2"}, {"9800", "3"}}, SerializePriceLevels(ob.Bids(0)))
}

func TestOrderBook_RemoveMissingLevelIsNotAChange(t *testing.T) {
	ob := NewOrderBook(testKey(t), &OrderBookSnapshot{
		LastUpdateId: 1,
		Bids:         mustLevels(t, [][]string{{"10", "1"}}),
	})

	changes := ob.ApplyLevels(2, mustLevels(t, [][]string{{"11", "0"}}), nil)

	assert.Empty(t, changes)
	bids, asks := ob.Depth()
	assert.Equal(t, 1, bids)
	assert.Equal(t, 0, asks)
}

func TestOrderBook_TakeSnapshot(t *testing.T) {
	snapshot := &OrderBookSnapshot{
		LastUpdateId: 123,
		Bids:         mustLevels(t, [][]string{{"10000", "1"}, {"9900", "2"}}),
		Asks:         mustLevels(t, [][]string{{"10100", "1.5"}, {"10200", "2.5"}}),
	}
	ob := NewOrderBook(testKey(t), snapshot)

	result := ob.TakeSnapshot(2)

	assert.Equal(t, OrderBookSource_LocalOrderBook, result.Source)
	assert.Equal(t, snapshot.LastUpdateId, result.LastUpdateId, "LastUpdateID should match")
	assert.Equal(t, SerializePriceLevels(snapshot.Asks), SerializePriceLevels(result.Asks), "Asks should match")
	assert.Equal(t, SerializePriceLevels(snapshot.Bids), SerializePriceLevels(result.Bids), "Bids should match")
}

func TestLimitDepth(t *testing.T) {
	snapshot := &OrderBookSnapshot{
		LastUpdateId: 123,
		Bids:         mustLevels(t, [][]string{{"10000", "1"}, {"9900", "2"}}),
		Asks:         mustLevels(t, [][]string{{"10.300", "1.5"}, {"10200", "2.5"}}),
	}
	ob := NewOrderBook(testKey(t), snapshot)

	assert.Len(t, ob.Bids(3), 2, "Bids should be limited to 2")
	assert.Len(t, ob.Asks(3), 2, "Asks should be limited to 2")
	assert.Len(t, ob.Bids(1), 1, "Bids should be limited to 1")
	assert.Len(t, ob.Asks(1), 1, "Asks should be limited to 1")
}

func TestParsePriceLevels(t *testing.T) {
	result, err := ParsePriceLevels([][]string{{"10000", "1"}, {"9900", "2", "1234"}})

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(10000).Equal(result[0].Price))
	assert.True(t, decimal.NewFromInt(2).Equal(result[1].Quantity))

	_, err = ParsePriceLevels([][]string{{"abc", "1"}})
	assert.Error(t, err)

	_, err = ParsePriceLevels([][]string{{"1"}})
	assert.Error(t, err)
}

func TestSerializePriceLevels(t *testing.T) {
	levels := []PriceLevel{
		{Price: decimal.NewFromInt(10000), Quantity: decimal.NewFromInt(1)},
		{Price: decimal.NewFromInt(9900), Quantity: decimal.NewFromInt(2)},
	}

	assert.Equal(t, [][]string{{"10000", "1"}, {"9900", "2"}}, SerializePriceLevels(levels))
}
