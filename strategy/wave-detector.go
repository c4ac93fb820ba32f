package strategy

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spooky-finn/cryptowave/domain"
)

type WaveConfig struct {
	// Threshold is the relative move (0.01 = 1%) that has to be exceeded.
	Threshold   decimal.Decimal
	MinSpan     time.Duration
	MinRenotify time.Duration
}

// WaveAlertState is the only state carried between Execute calls.
type WaveAlertState struct {
	LastNotifiedTime      time.Time
	LastNotifiedGapRatio  decimal.Decimal
	LastNotifiedMaxChange decimal.Decimal
}

// WaveDetector watches the best bid of one symbol and raises an alert when
// the largest excursion inside the window, measured against the newest bid,
// exceeds the threshold.
//
// Not safe for concurrent use; it is driven by the owner of the symbol.
type WaveDetector struct {
	key   domain.SymbolKey
	cfg   WaveConfig
	state WaveAlertState
}

func NewWaveDetector(key domain.SymbolKey, cfg WaveConfig) *WaveDetector {
	if cfg.MinSpan <= 0 {
		cfg.MinSpan = DefaultMinSpan
	}
	if cfg.MinRenotify <= 0 {
		cfg.MinRenotify = DefaultMinRenotify
	}

	return &WaveDetector{key: key, cfg: cfg}
}

func (d *WaveDetector) State() WaveAlertState {
	return d.state
}

func (d *WaveDetector) Config() WaveConfig {
	return d.cfg
}

// Execute evaluates the best-quote window (oldest first). It returns nil when
// no alert fires.
func (d *WaveDetector) Execute(window []domain.Sample[domain.BestQuote]) *domain.Alert {
	if len(window) < 2 {
		return nil
	}

	last := window[len(window)-1]
	span := last.EventTime.Sub(window[0].EventTime)
	if span < d.cfg.MinSpan {
		return nil
	}

	lastPrice := last.Value.BidPrice
	if lastPrice.IsZero() {
		// an empty bid side carries no price
		return nil
	}

	maxChange := decimal.Zero
	waveGap := decimal.Zero

	for i := len(window) - 1; i >= 0; i-- {
		price := window[i].Value.BidPrice
		if price.IsZero() {
			continue
		}

		diff := lastPrice.Sub(price)
		if diff.Abs().GreaterThan(maxChange.Abs()) {
			maxChange = diff
			waveGap = diff.Div(price)
		}
	}

	if waveGap.Abs().LessThanOrEqual(d.cfg.Threshold) {
		return nil
	}

	if waveGap.Abs().LessThanOrEqual(d.state.LastNotifiedGapRatio.Abs()) {
		// Same or smaller excursion than the last alert; start over so the
		// next reversal is measured fresh.
		d.state.LastNotifiedGapRatio = decimal.Zero
		d.state.LastNotifiedMaxChange = decimal.Zero
		return nil
	}

	if last.EventTime.Sub(d.state.LastNotifiedTime) <= d.cfg.MinRenotify {
		return nil
	}

	d.state = WaveAlertState{
		LastNotifiedTime:      last.EventTime,
		LastNotifiedGapRatio:  waveGap,
		LastNotifiedMaxChange: maxChange,
	}

	return &domain.Alert{
		ID:        uuid.NewString(),
		Key:       d.key,
		WaveGap:   waveGap,
		MaxChange: maxChange,
		LastPrice: lastPrice,
		LastTime:  last.EventTime,
		Span:      span,
		Threshold: d.cfg.Threshold,
	}
}
