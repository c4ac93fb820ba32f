package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// FeedSource streams decoded market events. Run blocks until ctx is done or
// the source fails permanently.
type FeedSource interface {
	Run(ctx context.Context, out chan<- Event) error
}

type ProviderSyncAPI interface {
	OrderBookSnapshot(ctx context.Context, symbol *MarketSymbol, limit int) (*OrderBookSnapshot, error)
}

type NotificationSink interface {
	Send(ctx context.Context, alert *Alert) error
}

// Alert is raised by the wave strategy on an abnormal short-term move of the
// best bid.
type Alert struct {
	ID        string
	Key       SymbolKey
	WaveGap   decimal.Decimal
	MaxChange decimal.Decimal
	LastPrice decimal.Decimal
	LastTime  time.Time
	// Span is the time covered by the window the gap was measured over.
	Span      time.Duration
	Threshold decimal.Decimal
}
