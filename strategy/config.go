package strategy

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/cryptowave/domain"
)

const (
	DefaultMinSpan     = 60 * time.Second
	DefaultMinRenotify = 5 * time.Second
)

var DefaultPriceGap = decimal.NewFromFloat(0.01)

type SymbolConfig struct {
	PriceGap  decimal.Decimal
	PriceWave bool
}

// Config holds the wave strategy settings. Symbols without an entry use
// DefaultPriceGap and have the strategy enabled.
type Config struct {
	MinSpan         time.Duration
	MinRenotify     time.Duration
	DefaultPriceGap decimal.Decimal
	Symbols         map[domain.MarketSymbol]SymbolConfig
}

func DefaultConfig() Config {
	return Config{
		MinSpan:         DefaultMinSpan,
		MinRenotify:     DefaultMinRenotify,
		DefaultPriceGap: DefaultPriceGap,
		Symbols:         map[domain.MarketSymbol]SymbolConfig{},
	}
}

// For resolves the detector settings for a symbol. The second result is false
// when the price wave strategy is disabled for it.
func (c Config) For(symbol domain.MarketSymbol) (WaveConfig, bool) {
	wc := WaveConfig{
		Threshold:   c.DefaultPriceGap,
		MinSpan:     c.MinSpan,
		MinRenotify: c.MinRenotify,
	}
	if wc.Threshold.IsZero() {
		wc.Threshold = DefaultPriceGap
	}

	sc, ok := c.Symbols[symbol]
	if !ok {
		return wc, true
	}
	if !sc.PriceGap.IsZero() {
		wc.Threshold = sc.PriceGap
	}

	return wc, sc.PriceWave
}
