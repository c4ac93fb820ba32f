package binance

import (
	"testing"

	"github.com/spooky-finn/cryptowave/domain"
	"github.com/stretchr/testify/assert"
)

func TestMarket_DepthUpdateValidator(t *testing.T) {
	// snapshot at 123; next delta chains through pu on futures only
	upd := &domain.BookDelta{FirstUpdateID: 130, FinalUpdateID: 135, PrevFinalUpdateID: 123}

	spot := MarketSpot.DepthUpdateValidator()
	assert.ErrorIs(t, spot.IsValidUpd(upd, 123), domain.ErrSequenceGap)

	futures := MarketFutures.DepthUpdateValidator()
	assert.NoError(t, futures.IsValidUpd(upd, 123))
}

func TestMarket_Endpoints(t *testing.T) {
	assert.Equal(t, spotStreamEndpoint, MarketSpot.StreamEndpoint())
	assert.Equal(t, futuresStreamEndpoint, MarketFutures.StreamEndpoint())
	assert.Equal(t, spotWSAPIEndpoint, MarketSpot.WSAPIEndpoint())
	assert.Equal(t, futuresWSAPIEndpoint, MarketFutures.WSAPIEndpoint())
	assert.Equal(t, "btcusdt@depth@100ms", MarketSpot.depthStream("btcusdt"))
}
