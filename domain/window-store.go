package domain

import (
	"sync"
	"time"
)

const (
	DefaultWindow       = 5 * time.Minute
	DefaultMaxStaleness = 1 * time.Second
)

type WindowConfig struct {
	Depth        time.Duration
	Quote        time.Duration
	Trade        time.Duration
	Kline        time.Duration
	MaxStaleness time.Duration
}

func DefaultWindowConfig() WindowConfig {
	return WindowConfig{
		Depth:        DefaultWindow,
		Quote:        DefaultWindow,
		Trade:        DefaultWindow,
		Kline:        DefaultWindow,
		MaxStaleness: DefaultMaxStaleness,
	}
}

type WindowStoreOption func(*RollingWindowStore)

// WithClock overrides the wall clock used for staleness and eviction.
func WithClock(now func() time.Time) WindowStoreOption {
	return func(s *RollingWindowStore) {
		if now != nil {
			s.now = now
		}
	}
}

// RollingWindowStore holds the recent history of one symbol. Every update
// older than MaxStaleness is dropped without touching any buffer.
type RollingWindowStore struct {
	key SymbolKey
	cfg WindowConfig
	now func() time.Time

	bids   *WindowBuffer[[]PriceLevel]
	asks   *WindowBuffer[[]PriceLevel]
	quotes *WindowBuffer[BestQuote]
	trades *WindowBuffer[Trade]
	klines *WindowBuffer[Candle]

	mu           sync.RWMutex
	currentKline *Candle
}

func NewRollingWindowStore(key SymbolKey, cfg WindowConfig, opts ...WindowStoreOption) *RollingWindowStore {
	s := &RollingWindowStore{
		key: key,
		cfg: cfg,
		now: time.Now,

		bids:   NewWindowBuffer[[]PriceLevel](cfg.Depth),
		asks:   NewWindowBuffer[[]PriceLevel](cfg.Depth),
		quotes: NewWindowBuffer[BestQuote](cfg.Quote),
		trades: NewWindowBuffer[Trade](cfg.Trade),
		klines: NewWindowBuffer[Candle](cfg.Kline),
	}
	for _, opt := range opts {
		opt(s)
	}

	return s
}

func (s *RollingWindowStore) Key() SymbolKey {
	return s.key
}

// Admission tells whether a window accepted an event, and why not.
type Admission string

const (
	Admission_Admitted Admission = "admitted"
	// Admission_Stale: older than max staleness relative to the wall clock.
	Admission_Stale Admission = "stale"
	// Admission_OutOfOrder: older than the newest sample already buffered.
	Admission_OutOfOrder Admission = "out_of_order"
)

func pushed(ok bool) Admission {
	if ok {
		return Admission_Admitted
	}
	return Admission_OutOfOrder
}

func (s *RollingWindowStore) admit(eventTime time.Time) (time.Time, bool) {
	now := s.now()
	if now.Sub(eventTime) > s.cfg.MaxStaleness {
		return now, false
	}

	return now, true
}

// UpdateDepth records one depth sample on both sides. The sides always carry
// the same timestamps, so they accept or reject together.
func (s *RollingWindowStore) UpdateDepth(eventTime time.Time, bids, asks []PriceLevel) Admission {
	now, ok := s.admit(eventTime)
	if !ok {
		return Admission_Stale
	}

	if !s.asks.Push(eventTime, asks, now) {
		return Admission_OutOfOrder
	}

	return pushed(s.bids.Push(eventTime, bids, now))
}

func (s *RollingWindowStore) UpdateBestQuote(eventTime time.Time, quote BestQuote) Admission {
	now, ok := s.admit(eventTime)
	if !ok {
		return Admission_Stale
	}

	return pushed(s.quotes.Push(eventTime, quote, now))
}

func (s *RollingWindowStore) UpdateTrade(eventTime time.Time, trade Trade) Admission {
	now, ok := s.admit(eventTime)
	if !ok {
		return Admission_Stale
	}

	return pushed(s.trades.Push(eventTime, trade, now))
}

// UpdateKline appends final candles to the history and clears the in-progress
// candle; a non-final candle replaces the in-progress one.
func (s *RollingWindowStore) UpdateKline(eventTime time.Time, candle Candle) Admission {
	now, ok := s.admit(eventTime)
	if !ok {
		return Admission_Stale
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !candle.IsFinal {
		c := candle
		s.currentKline = &c
		return Admission_Admitted
	}

	s.currentKline = nil
	return pushed(s.klines.Push(eventTime, candle, now))
}

func (s *RollingWindowStore) BidDepth() []Sample[[]PriceLevel] {
	return s.bids.Snapshot()
}

func (s *RollingWindowStore) AskDepth() []Sample[[]PriceLevel] {
	return s.asks.Snapshot()
}

func (s *RollingWindowStore) BestQuotes() []Sample[BestQuote] {
	return s.quotes.Snapshot()
}

func (s *RollingWindowStore) Trades() []Sample[Trade] {
	return s.trades.Snapshot()
}

func (s *RollingWindowStore) Klines() []Sample[Candle] {
	return s.klines.Snapshot()
}

func (s *RollingWindowStore) CurrentKline() (Candle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.currentKline == nil {
		return Candle{}, false
	}

	return *s.currentKline, true
}
