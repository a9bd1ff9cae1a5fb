package pricefeed

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"curve-launchpad/internal/observability"
)

// CachedFeed wraps an upstream feed with a TTL cache and a fallback price.
//
// Graduation checks must never be blocked by a flaky upstream, so SolPrice
// never returns an error: past the TTL it tries a refresh, and on failure
// serves the last known price, or the fallback if none was ever fetched.
type CachedFeed struct {
	upstream Feed
	ttl      time.Duration
	fallback decimal.Decimal
	logger   *log.Logger

	mu        sync.Mutex
	price     decimal.Decimal
	fetchedAt time.Time
}

// NewCachedFeed creates a caching wrapper around upstream.
func NewCachedFeed(upstream Feed, ttl time.Duration, fallback decimal.Decimal, logger *log.Logger) *CachedFeed {
	if logger == nil {
		logger = log.Default()
	}
	return &CachedFeed{
		upstream: upstream,
		ttl:      ttl,
		fallback: fallback,
		logger:   logger,
	}
}

var _ Feed = (*CachedFeed)(nil)

// SolPrice returns the cached price, refreshing it when stale.
func (f *CachedFeed) SolPrice(ctx context.Context) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fresh := !f.fetchedAt.IsZero() && time.Since(f.fetchedAt) < f.ttl
	if fresh {
		observability.SetPriceFeedStale(false)
		return f.price, nil
	}

	price, err := f.upstream.SolPrice(ctx)
	if err == nil {
		f.price = price
		f.fetchedAt = time.Now()
		observability.RecordPriceFeedRefresh("ok")
		observability.SetPriceFeedStale(false)
		return price, nil
	}

	observability.RecordPriceFeedRefresh("error")
	observability.SetPriceFeedStale(true)
	f.logger.Printf("sol price refresh failed, serving stale/fallback: %v", err)

	if !f.fetchedAt.IsZero() {
		return f.price, nil
	}
	return f.fallback, nil
}
