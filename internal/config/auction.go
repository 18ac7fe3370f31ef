package config

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// StartingPrice parses the default starting price
func (c AuctionConfig) StartingPrice() (decimal.Decimal, error) {
	price, err := decimal.NewFromString(c.DefaultStartingPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid default starting price %q: %w", c.DefaultStartingPrice, err)
	}
	if price.IsNegative() {
		return decimal.Zero, fmt.Errorf("default starting price cannot be negative")
	}
	return price, nil
}
