package notify

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spooky-finn/cryptowave/domain"
)

const timeLayout = "2006-01-02 15:04:05"

// FormatAlert renders the human readable text used by chat sinks.
func FormatAlert(a *domain.Alert) string {
	return fmt.Sprintf(
		"[%s] short time buy1 wave over size: %s, price diff: %s, now time: %s, current buy1: %s, span: %s, threshold: %s",
		a.Key.String(),
		a.WaveGap.StringFixed(5),
		a.MaxChange.StringFixed(2),
		a.LastTime.UTC().Format(timeLayout),
		a.LastPrice.String(),
		a.Span.Round(time.Millisecond),
		a.Threshold.String(),
	)
}

type alertMessage struct {
	ID        string          `json:"id"`
	Exchange  string          `json:"exchange"`
	Symbol    string          `json:"symbol"`
	WaveGap   decimal.Decimal `json:"wave_gap"`
	MaxChange decimal.Decimal `json:"max_change"`
	LastPrice decimal.Decimal `json:"last_price"`
	LastTime  int64           `json:"last_time"`
	SpanMs    int64           `json:"span_ms"`
	Threshold decimal.Decimal `json:"threshold"`
}

// EncodeAlert is the JSON form published to message buses. Times are unix
// milliseconds.
func EncodeAlert(a *domain.Alert) ([]byte, error) {
	return json.Marshal(alertMessage{
		ID:        a.ID,
		Exchange:  a.Key.Exchange,
		Symbol:    a.Key.Symbol.String(),
		WaveGap:   a.WaveGap,
		MaxChange: a.MaxChange,
		LastPrice: a.LastPrice,
		LastTime:  a.LastTime.UnixMilli(),
		SpanMs:    a.Span.Milliseconds(),
		Threshold: a.Threshold,
	})
}
