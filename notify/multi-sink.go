package notify

import (
	"context"
	"errors"

	"github.com/spooky-finn/cryptowave/domain"
)

// MultiSink delivers every alert to all sinks. A failing sink does not stop
// delivery to the others; the failures are joined.
type MultiSink []domain.NotificationSink

func (m MultiSink) Send(ctx context.Context, a *domain.Alert) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Send(ctx, a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
