// Package pricefeed supplies the SOL/USD price used to value tokens for
// graduation checks.
package pricefeed

import (
	"context"

	"github.com/shopspring/decimal"
)

// Feed returns the current SOL price in USD.
type Feed interface {
	SolPrice(ctx context.Context) (decimal.Decimal, error)
}

// StaticFeed always returns a fixed price. Used in tests and as the
// fallback when no upstream source is configured.
type StaticFeed struct {
	Price decimal.Decimal
}

// NewStaticFeed creates a feed pinned to the given USD price.
func NewStaticFeed(price decimal.Decimal) *StaticFeed {
	return &StaticFeed{Price: price}
}

// SolPrice returns the fixed price.
func (f *StaticFeed) SolPrice(_ context.Context) (decimal.Decimal, error) {
	return f.Price, nil
}

var _ Feed = (*StaticFeed)(nil)
