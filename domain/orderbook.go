package domain

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

type OrderBookSource string

const (
	OrderBookSource_Provider       OrderBookSource = "Provider"
	OrderBookSource_LocalOrderBook OrderBookSource = "LocalOrderBook"
)

type OrderBookSnapshot struct {
	Source       OrderBookSource
	LastUpdateId int64
	Bids         []PriceLevel
	Asks         []PriceLevel
}

type BookSide string

const (
	BookSideBid BookSide = "bid"
	BookSideAsk BookSide = "ask"
)

// LevelChange is a level touched by an applied delta. Quantity zero means the
// level was removed.
type LevelChange struct {
	Side     BookSide
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

// OrderBook keeps bids descending and asks ascending by price. Present levels
// always have quantity > 0. It is not safe for concurrent use; the owner of
// the symbol serializes access.
type OrderBook struct {
	Key            SymbolKey
	LastUpdateID   int64
	LastUpdateTime time.Time
	Synchronized   bool

	bids *btree.BTreeG[PriceLevel]
	asks *btree.BTreeG[PriceLevel]
}

func newSide(less func(a, b PriceLevel) bool) *btree.BTreeG[PriceLevel] {
	return btree.NewBTreeGOptions(less, btree.Options{NoLocks: true})
}

func NewOrderBook(key SymbolKey, snapshot *OrderBookSnapshot) *OrderBook {
	ob := &OrderBook{
		Key:            key,
		LastUpdateID:   snapshot.LastUpdateId,
		LastUpdateTime: time.Now(),

		bids: newSide(func(a, b PriceLevel) bool { return a.Price.GreaterThan(b.Price) }),
		asks: newSide(func(a, b PriceLevel) bool { return a.Price.LessThan(b.Price) }),
	}

	ob.updateDepth(ob.bids, BookSideBid, snapshot.Bids)
	ob.updateDepth(ob.asks, BookSideAsk, snapshot.Asks)

	return ob
}

// ApplyLevels upserts non-zero levels and deletes zero ones on both sides.
// Only levels that actually changed the book are reported.
func (ob *OrderBook) ApplyLevels(finalUpdateID int64, bids, asks []PriceLevel) []LevelChange {
	changes := ob.updateDepth(ob.bids, BookSideBid, bids)
	changes = append(changes, ob.updateDepth(ob.asks, BookSideAsk, asks)...)

	ob.LastUpdateID = finalUpdateID
	ob.LastUpdateTime = time.Now()

	return changes
}

func (ob *OrderBook) updateDepth(depth *btree.BTreeG[PriceLevel], side BookSide, levels []PriceLevel) []LevelChange {
	changes := make([]LevelChange, 0, len(levels))

	for _, level := range levels {
		if level.Quantity.Sign() <= 0 {
			if _, ok := depth.Delete(level); ok {
				changes = append(changes, LevelChange{Side: side, Price: level.Price, Quantity: decimal.Zero})
			}
			continue
		}

		depth.Set(level)
		changes = append(changes, LevelChange{Side: side, Price: level.Price, Quantity: level.Quantity})
	}

	return changes
}

func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	return ob.bids.Min()
}

func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	return ob.asks.Min()
}

func (ob *OrderBook) Bids(limit int) []PriceLevel {
	return limitDepth(ob.bids, limit)
}

func (ob *OrderBook) Asks(limit int) []PriceLevel {
	return limitDepth(ob.asks, limit)
}

func (ob *OrderBook) Depth() (bids int, asks int) {
	return ob.bids.Len(), ob.asks.Len()
}

// TakeSnapshot copies up to limit levels per side; limit <= 0 copies all.
func (ob *OrderBook) TakeSnapshot(limit int) *OrderBookSnapshot {
	return &OrderBookSnapshot{
		Source:       OrderBookSource_LocalOrderBook,
		LastUpdateId: ob.LastUpdateID,
		Bids:         ob.Bids(limit),
		Asks:         ob.Asks(limit),
	}
}

func limitDepth(depth *btree.BTreeG[PriceLevel], limit int) []PriceLevel {
	size := depth.Len()
	if limit > 0 && size > limit {
		size = limit
	}

	out := make([]PriceLevel, 0, size)
	depth.Scan(func(level PriceLevel) bool {
		out = append(out, level)
		return len(out) < size
	})

	return out
}
