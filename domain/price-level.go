package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// PriceLevel is a single (price, quantity) entry. A zero quantity in a delta
// removes the level.
type PriceLevel struct {
	Price    decimal.Decimal
	Quantity decimal.Decimal
}

func NewPriceLevel(price, quantity string) (PriceLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("invalid price %q: %w", price, err)
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return PriceLevel{}, fmt.Errorf("invalid quantity %q: %w", quantity, err)
	}
	return PriceLevel{Price: p, Quantity: q}, nil
}

func (l PriceLevel) IsTombstone() bool {
	return l.Quantity.IsZero()
}

// ParsePriceLevels decodes exchange [price, qty, ...] string tuples. Extra
// tuple elements (kucoin sequence numbers) are ignored.
func ParsePriceLevels(depth [][]string) ([]PriceLevel, error) {
	result := make([]PriceLevel, 0, len(depth))
	for _, level := range depth {
		if len(level) < 2 {
			return nil, fmt.Errorf("malformed price level %v", level)
		}
		l, err := NewPriceLevel(level[0], level[1])
		if err != nil {
			return nil, err
		}
		result = append(result, l)
	}

	return result, nil
}

func SerializePriceLevels(levels []PriceLevel) [][]string {
	result := make([][]string, len(levels))
	for i, level := range levels {
		result[i] = []string{level.Price.String(), level.Quantity.String()}
	}

	return result
}
