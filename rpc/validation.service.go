package rpc

import (
	"fmt"
	"strings"

	"github.com/spooky-finn/cryptowave/domain"
)

const DefaultMaxDepth = 5000

type ValidationServiceConfig struct {
	AvailableProviders []string
	MaxDepth           int
}

type ValidationService struct {
	config *ValidationServiceConfig
}

func NewValidationService(config *ValidationServiceConfig) *ValidationService {
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultMaxDepth
	}
	return &ValidationService{
		config: config,
	}
}

func (s *ValidationService) IsSupportedProvider(provider string) bool {
	for _, p := range s.config.AvailableProviders {
		if p == provider {
			return true
		}
	}
	return false
}

// MarketSymbol accepts base/quote as well as base_quote.
func (s *ValidationService) MarketSymbol(market string) (*domain.MarketSymbol, error) {
	symbol, err := domain.NewMarketSymbolFromString(strings.Replace(market, "/", "_", 1))
	if err != nil {
		return nil, fmt.Errorf("invalid market symbol %q, expected base/quote", market)
	}
	return symbol, nil
}

func (s *ValidationService) Depth(depth int) (int, error) {
	if depth < 0 || depth > s.config.MaxDepth {
		return 0, fmt.Errorf("max_depth must be within [0, %d]", s.config.MaxDepth)
	}
	return depth, nil
}
