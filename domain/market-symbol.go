package domain

import (
	"fmt"
	"strings"
)

type MarketSymbol struct {
	BaseAsset  string
	QuoteAsset string
}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	base = strings.ToLower(base)
	quote = strings.ToLower(quote)
	if base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	return &MarketSymbol{
		BaseAsset:  base,
		QuoteAsset: quote,
	}, nil
}

func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	split := strings.Split(s, "_")

	if len(split) != 2 {
		return nil, fmt.Errorf("invalid symbol string %q", s)
	}

	return NewMarketSymbol(split[0], split[1])
}

func (ms *MarketSymbol) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", ms.BaseAsset, separator, ms.QuoteAsset)
}

func (ms *MarketSymbol) String() string {
	return fmt.Sprintf("%s_%s", ms.BaseAsset, ms.QuoteAsset)
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	return ms.BaseAsset == other.BaseAsset && ms.QuoteAsset == other.QuoteAsset
}

// SymbolKey identifies all per-instrument state. It is comparable and used
// directly as a map key. Exchange is the configured exchange name, verbatim,
// so every lookup by that name finds the same state.
type SymbolKey struct {
	Exchange string
	Symbol   MarketSymbol
}

func NewSymbolKey(exchange string, symbol *MarketSymbol) SymbolKey {
	return SymbolKey{Exchange: exchange, Symbol: *symbol}
}

func (k SymbolKey) String() string {
	return fmt.Sprintf("%s:%s", k.Exchange, k.Symbol.String())
}

// SymbolMapper translates exchange-specific spellings (BTCUSDT, BTC-USDT) of
// the configured symbols into MarketSymbols.
type SymbolMapper struct {
	bySpelling map[string]MarketSymbol
}

// NewSymbolMapper registers each symbol under the given exchange separator,
// case-insensitively.
func NewSymbolMapper(separator string, symbols []*MarketSymbol) *SymbolMapper {
	m := &SymbolMapper{bySpelling: make(map[string]MarketSymbol, len(symbols))}
	for _, s := range symbols {
		m.bySpelling[strings.ToLower(s.Join(separator))] = *s
	}
	return m
}

func (m *SymbolMapper) Resolve(exchangeSymbol string) (MarketSymbol, bool) {
	s, ok := m.bySpelling[strings.ToLower(exchangeSymbol)]
	return s, ok
}

func (m *SymbolMapper) Symbols() []MarketSymbol {
	out := make([]MarketSymbol, 0, len(m.bySpelling))
	for _, s := range m.bySpelling {
		out = append(out, s)
	}
	return out
}
