package notify

import (
	"context"

	"github.com/spooky-finn/cryptowave/domain"
	"go.uber.org/zap"
)

// LogSink writes alerts to the structured log. It never fails.
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Send(_ context.Context, a *domain.Alert) error {
	s.log.Infow("price wave alert",
		"id", a.ID,
		"key", a.Key.String(),
		"wave_gap", a.WaveGap.String(),
		"max_change", a.MaxChange.String(),
		"last_price", a.LastPrice.String(),
		"last_time", a.LastTime,
		"span", a.Span,
		"threshold", a.Threshold.String(),
	)
	return nil
}
