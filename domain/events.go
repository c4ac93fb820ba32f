package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Channel string

const (
	ChannelTrades     Channel = "trades"
	ChannelDepth      Channel = "depth"
	ChannelBookTicker Channel = "book_ticker"
	ChannelKline      Channel = "kline"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Event is a decoded record delivered by a FeedSource. Symbol is still in the
// exchange spelling; the dispatcher maps it to a SymbolKey.
type Event struct {
	Exchange    string
	Symbol      string
	EventTime   time.Time
	ReceiptTime time.Time
	Payload     Payload
}

// Payload is the closed set of event kinds: *Trade, *BookDelta, *BestQuote
// and *Candle.
type Payload interface {
	Channel() Channel
	payload()
}

type Trade struct {
	TradeID     string
	Price       decimal.Decimal
	Quantity    decimal.Decimal
	Side        Side
	EventTime   time.Time
	ReceiptTime time.Time
}

// BookDelta carries the levels changed within [FirstUpdateID, FinalUpdateID].
// PrevFinalUpdateID is only set by futures-style feeds.
type BookDelta struct {
	FirstUpdateID     int64
	FinalUpdateID     int64
	PrevFinalUpdateID int64
	Bids              []PriceLevel
	Asks              []PriceLevel
	EventTime         time.Time
}

type BestQuote struct {
	BidPrice  decimal.Decimal
	BidQty    decimal.Decimal
	AskPrice  decimal.Decimal
	AskQty    decimal.Decimal
	EventTime time.Time
}

type Candle struct {
	Interval      string
	Open          decimal.Decimal
	Close         decimal.Decimal
	High          decimal.Decimal
	Low           decimal.Decimal
	IntervalStart time.Time
	IntervalEnd   time.Time
	IsFinal       bool
}

func (*Trade) Channel() Channel     { return ChannelTrades }
func (*BookDelta) Channel() Channel { return ChannelDepth }
func (*BestQuote) Channel() Channel { return ChannelBookTicker }
func (*Candle) Channel() Channel    { return ChannelKline }

func (*Trade) payload()     {}
func (*BookDelta) payload() {}
func (*BestQuote) payload() {}
func (*Candle) payload()    {}
