package binance

import "github.com/spooky-finn/cryptowave/domain"

// Market selects the Binance product family. Spot and USD-M futures differ in
// endpoints and in how depth updates chain together.
type Market string

const (
	MarketSpot    Market = "spot"
	MarketFutures Market = "futures"
)

const (
	spotStreamEndpoint    = "wss://stream.binance.com:9443/stream"
	futuresStreamEndpoint = "wss://fstream.binance.com/stream"

	spotWSAPIEndpoint    = "wss://ws-api.binance.com:443/ws-api/v3"
	futuresWSAPIEndpoint = "wss://ws-fapi.binance.com/ws-fapi/v1"
)

// DepthUpdateValidator returns the contiguity rules of the market: spot
// chains U to the previous u+1, futures chains pu to the previous u.
func (m Market) DepthUpdateValidator() domain.IDepthUpdateValidator {
	if m == MarketFutures {
		return domain.FuturesDepthUpdateValidator{}
	}
	return domain.SpotDepthUpdateValidator{}
}

func (m Market) StreamEndpoint() string {
	if m == MarketFutures {
		return futuresStreamEndpoint
	}
	return spotStreamEndpoint
}

func (m Market) WSAPIEndpoint() string {
	if m == MarketFutures {
		return futuresWSAPIEndpoint
	}
	return spotWSAPIEndpoint
}

func (m Market) depthStream(symbol string) string {
	return symbol + "@depth@100ms"
}
